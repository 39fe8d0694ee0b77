package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// =============================================================================
// AUDIT EVENT TYPES - Maps to Mangle predicates
// =============================================================================

// AuditEventType defines the type of audit event (maps to Mangle predicate)
type AuditEventType string

const (
	// Compile runs -> compile_event/6
	AuditCompileStart    AuditEventType = "compile_start"
	AuditCompileComplete AuditEventType = "compile_complete"
	AuditCompileError    AuditEventType = "compile_error"

	// Kernel events -> kernel_op/5
	AuditKernelLoad  AuditEventType = "kernel_load"
	AuditKernelQuery AuditEventType = "kernel_query"
)

// AuditEvent is one line of the audit log. Each event carries the Mangle
// fact it maps to, so a log can be loaded back into the kernel.
type AuditEvent struct {
	Timestamp  int64          `json:"ts"`
	EventType  AuditEventType `json:"event"`
	RunID      string         `json:"run"`
	Target     string         `json:"target"`
	Success    bool           `json:"success"`
	DurationMs int64          `json:"dur_ms"`
	Count      int            `json:"count"`
	Error      string         `json:"error,omitempty"`
	MangleFact string         `json:"mangle"`
}

var (
	auditFile   *os.File
	auditMu     sync.Mutex
	auditLogger *AuditLogger
)

// AuditLogger writes audit events scoped to one compile run.
type AuditLogger struct {
	runID string
}

// InitAudit opens the audit log at path in append mode. An empty path
// leaves auditing disabled.
func InitAudit(path string) error {
	if path == "" {
		return nil
	}

	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile != nil {
		return nil
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	auditFile = file
	return nil
}

// CloseAudit closes the audit log file
func CloseAudit() {
	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile != nil {
		auditFile.Close()
		auditFile = nil
	}
}

// Audit returns the global audit logger
func Audit() *AuditLogger {
	if auditLogger == nil {
		auditLogger = &AuditLogger{}
	}
	return auditLogger
}

// AuditWithRun creates an audit logger scoped to a compile run
func AuditWithRun(runID string) *AuditLogger {
	return &AuditLogger{runID: runID}
}

// Log writes an audit event
func (a *AuditLogger) Log(event AuditEvent) {
	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile == nil {
		return
	}
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}
	if event.RunID == "" {
		event.RunID = a.runID
	}
	event.MangleFact = generateMangleFact(event)

	data, err := json.Marshal(event)
	if err == nil {
		auditFile.WriteString(string(data) + "\n")
	}
}

// generateMangleFact creates a Mangle-compatible fact string from an event
func generateMangleFact(e AuditEvent) string {
	switch e.EventType {
	case AuditCompileStart, AuditCompileComplete, AuditCompileError:
		return fmt.Sprintf("compile_event(%d, /%s, \"%s\", \"%s\", %v, %d).",
			e.Timestamp, e.EventType, e.RunID, escapeString(e.Target), e.Success, e.DurationMs)

	case AuditKernelLoad, AuditKernelQuery:
		return fmt.Sprintf("kernel_op(%d, /%s, \"%s\", %v, %d).",
			e.Timestamp, e.EventType, escapeString(e.Target), e.Success, e.Count)

	default:
		return fmt.Sprintf("audit_event(%d, /%s, \"%s\", %v).",
			e.Timestamp, e.EventType, escapeString(e.Error), e.Success)
	}
}

func escapeString(s string) string {
	var b strings.Builder
	b.Grow(len(s) + len(s)/10)

	for _, c := range s {
		switch c {
		case '"':
			b.WriteString("\\\"")
		case '\\':
			b.WriteString("\\\\")
		case '\n':
			b.WriteString("\\n")
		case '\r':
			b.WriteString("\\r")
		case '\t':
			b.WriteString("\\t")
		default:
			b.WriteRune(c)
		}
	}
	return b.String()
}

// =============================================================================
// CONVENIENCE METHODS FOR COMMON EVENTS
// =============================================================================

// CompileStart logs the start of a compile run
func (a *AuditLogger) CompileStart(target string) {
	a.Log(AuditEvent{EventType: AuditCompileStart, Target: target, Success: true})
}

// CompileComplete logs a compile run that produced facts
func (a *AuditLogger) CompileComplete(target string, facts int, durationMs int64) {
	a.Log(AuditEvent{
		EventType:  AuditCompileComplete,
		Target:     target,
		Success:    true,
		Count:      facts,
		DurationMs: durationMs,
	})
}

// CompileError logs a failed compile run
func (a *AuditLogger) CompileError(target string, err error, durationMs int64) {
	a.Log(AuditEvent{
		EventType:  AuditCompileError,
		Target:     target,
		Error:      err.Error(),
		DurationMs: durationMs,
	})
}

// KernelLoad logs facts asserted into the kernel
func (a *AuditLogger) KernelLoad(facts int) {
	a.Log(AuditEvent{EventType: AuditKernelLoad, Target: "program", Success: true, Count: facts})
}

// KernelQuery logs a kernel query and its result count
func (a *AuditLogger) KernelQuery(query string, results int, durationMs int64) {
	a.Log(AuditEvent{
		EventType:  AuditKernelQuery,
		Target:     query,
		Success:    true,
		Count:      results,
		DurationMs: durationMs,
	})
}

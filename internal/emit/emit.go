// Package emit serializes a grounded problem into the fact language read by
// the solver: one fact per line, grouped into sections in a fixed order.
package emit

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"spgt/internal/domain"
	"spgt/internal/facts"
	"spgt/internal/logic"
	"spgt/internal/logging"
)

// Source is the grounded model a Program is built from. *grounding.Translator
// implements it.
type Source interface {
	Name() string
	Variables() []logic.Variable
	InitialValues() []domain.Literal
	Goal() logic.Formula
	Actions() []*domain.GroundedAction
	Effects() []*domain.GroundedEffect
}

// FormatVersion identifies the rules that map a grounded model to facts.
// It changes whenever the same inputs would produce a different program.
const FormatVersion = "2"

// Section names, in output order.
const (
	SectionVariables = "variables"
	SectionInitial   = "initial"
	SectionGoal      = "goal"
	SectionActions   = "actions"
	SectionEffects   = "effects"
)

// Section is a named group of facts written as one block.
type Section struct {
	Name  string
	Facts []facts.Fact
}

// Program is a fact program ready to be written.
type Program struct {
	Name     string
	Sections []Section
}

// FromTranslator assembles the program for a grounded source.
func FromTranslator(src Source) *Program {
	p := &Program{Name: src.Name()}

	var vars []facts.Fact
	for _, v := range src.Variables() {
		name := facts.Sanitize(v.Name)
		for _, value := range v.Domain {
			vars = append(vars, facts.New(facts.RelVariableValue, name, facts.Sanitize(value)))
		}
	}

	var initial []facts.Fact
	for _, l := range src.InitialValues() {
		initial = append(initial, facts.New(facts.RelInitialValue,
			facts.Sanitize(l.Variable.Name), facts.Sanitize(l.Value)))
	}

	goal := src.Goal()
	if goal == nil {
		goal = logic.Verum{}
	}

	actions := src.Actions()
	sort.SliceStable(actions, func(i, j int) bool {
		return facts.Sanitize(actions[i].Name) < facts.Sanitize(actions[j].Name)
	})
	var actionFacts []facts.Fact
	for _, a := range actions {
		actionFacts = append(actionFacts, a.Facts()...)
	}

	effects := src.Effects()
	sort.SliceStable(effects, func(i, j int) bool {
		return facts.Sanitize(effects[i].Name) < facts.Sanitize(effects[j].Name)
	})
	var effectFacts []facts.Fact
	for _, e := range effects {
		effectFacts = append(effectFacts, e.Facts()...)
	}

	p.Sections = []Section{
		{Name: SectionVariables, Facts: vars},
		{Name: SectionInitial, Facts: initial},
		{Name: SectionGoal, Facts: []facts.Fact{facts.New(facts.RelGoal, goal.FactLanguage())}},
		{Name: SectionActions, Facts: actionFacts},
		{Name: SectionEffects, Facts: effectFacts},
	}
	logging.Get(logging.CategoryEmit).Debug("program %s: %d facts", p.Name, p.Len())
	return p
}

// Facts returns every fact in output order.
func (p *Program) Facts() []facts.Fact {
	var out []facts.Fact
	for _, s := range p.Sections {
		out = append(out, s.Facts...)
	}
	return out
}

// Lines returns every fact rendered, in output order.
func (p *Program) Lines() []string {
	fs := p.Facts()
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = f.String()
	}
	return out
}

// Len returns the number of facts.
func (p *Program) Len() int {
	n := 0
	for _, s := range p.Sections {
		n += len(s.Facts)
	}
	return n
}

// Stats counts facts per relation.
func (p *Program) Stats() map[string]int {
	out := make(map[string]int)
	for _, s := range p.Sections {
		for _, f := range s.Facts {
			out[f.Relation]++
		}
	}
	return out
}

// Write writes the program one fact per line, with a blank line between
// sections.
func (p *Program) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for i, s := range p.Sections {
		if i > 0 {
			if _, err := bw.WriteString("\n"); err != nil {
				return err
			}
		}
		for _, f := range s.Facts {
			if _, err := bw.WriteString(f.String() + "\n"); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// WriteFile writes the program to path, creating parent directories.
func (p *Program) WriteFile(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := p.Write(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write program: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close output file: %w", err)
	}
	logging.Emit("wrote %d facts to %s", p.Len(), path)
	return nil
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"spgt/internal/mangle"
)

var (
	inspectQuery   string
	inspectExplain string
	inspectRules   string
	inspectJSON    bool
)

// inspectCmd loads a compiled program into the Mangle kernel
var inspectCmd = &cobra.Command{
	Use:   "inspect [domain] [problem]",
	Short: "Analyze a compiled program with the Mangle kernel",
	Long: `Compiles the pair, loads the fact program into a Mangle kernel and
reports what the grounding rules derive: static variables, touched
variables, non-deterministic and inert actions, unreachable values.

Examples:
  spgt inspect domain.yaml p01.yaml
  spgt inspect domain.yaml p01.yaml --query "touches(A, V)"
  spgt inspect domain.yaml p01.yaml --explain "static_variable(V)"
  spgt inspect domain.yaml p01.yaml --rules extra.mg --query "my_rule(X)"`,
	Args: cobra.ExactArgs(2),
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().StringVarP(&inspectQuery, "query", "q", "", "Run a Mangle query")
	inspectCmd.Flags().StringVar(&inspectExplain, "explain", "", "Print the derivation of every answer to a query")
	inspectCmd.Flags().StringVar(&inspectRules, "rules", "", "Extra rule file (default: config mangle.rules_path)")
	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "Emit JSON")
}

// reportEntry is one section of the default inspect report. Entries
// without a query list the first column of the predicate.
type reportEntry struct {
	predicate string
	query     string
}

var report = []reportEntry{
	{predicate: "static_variable"},
	{predicate: "touched"},
	{predicate: "nondeterministic"},
	{predicate: "inert_action"},
	{predicate: "unreachable_value", query: "unreachable_value(V, X)"},
}

func runInspect(cmd *cobra.Command, args []string) error {
	c := currentConfig()
	ctx := commandContext(cmd)

	prog, err := buildProgram(ctx, c, args[0], args[1], "")
	if err != nil {
		return err
	}
	k, err := mangle.NewKernel(c.KernelConfig())
	if err != nil {
		return err
	}
	if err := k.LoadProgram(prog); err != nil {
		return err
	}

	rules := inspectRules
	if rules == "" {
		rules = c.Mangle.RulesPath
	}
	if rules != "" {
		if err := k.LoadRulesFile(rules); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	switch {
	case inspectExplain != "":
		trace, err := mangle.NewTracer(k).Trace(ctx, inspectExplain)
		if err != nil {
			return err
		}
		if inspectJSON {
			data, err := trace.RenderJSON()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(out, string(data))
			return err
		}
		if len(trace.RootNodes) == 0 {
			fmt.Fprintln(out, mutedStyle.Render("no results"))
			return nil
		}
		fmt.Fprint(out, trace.RenderASCII())
		return nil

	case inspectQuery != "":
		rows, err := k.Select(ctx, inspectQuery)
		if err != nil {
			return err
		}
		if inspectJSON {
			return writeJSON(out, rows)
		}
		if len(rows) == 0 {
			fmt.Fprintln(out, mutedStyle.Render("no results"))
			return nil
		}
		for _, row := range rows {
			fmt.Fprintln(out, row)
		}
		return nil
	}

	results := make(map[string][]string, len(report))
	for _, entry := range report {
		var rows []string
		if entry.query != "" {
			rows, err = k.Select(ctx, entry.query)
		} else {
			rows, err = k.Names(entry.predicate)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", entry.predicate, err)
		}
		if rows == nil {
			rows = []string{}
		}
		results[entry.predicate] = rows
	}
	if inspectJSON {
		return writeJSON(out, results)
	}

	fmt.Fprintf(out, "%s\n", headerStyle.Render(prog.Name))
	fmt.Fprint(out, renderCounts(k.GetStats().PredicateCounts))
	for _, entry := range report {
		rows := results[entry.predicate]
		fmt.Fprintf(out, "\n%s (%d)\n", successStyle.Render(entry.predicate), len(rows))
		if len(rows) > 0 {
			fmt.Fprintf(out, "  %s\n", strings.Join(rows, "\n  "))
		}
	}
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

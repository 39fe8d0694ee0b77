package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"spgt/internal/logic"
)

var (
	formulaNNF      bool
	formulaSimplify bool
	formulaFacts    bool
)

// formulaCmd parses and rewrites a formula
var formulaCmd = &cobra.Command{
	Use:   "formula [text]",
	Short: "Parse, rewrite and render a goal formula",
	Long: `Parses a formula in the goal grammar and prints it back, optionally
after the NNF and constant-simplification rewrites, or as a fact term.

Operators: = assign, | or, & and, S since, Z dual since, ! not, Y yesterday.

Examples:
  spgt formula "!(a & b)" --nnf
  spgt formula "a & (b | !c)" --facts`,
	Args: cobra.ExactArgs(1),
	RunE: runFormula,
}

func init() {
	formulaCmd.Flags().BoolVar(&formulaNNF, "nnf", false, "Rewrite to negation normal form")
	formulaCmd.Flags().BoolVar(&formulaSimplify, "simplify", false, "Fold verum and falsum")
	formulaCmd.Flags().BoolVar(&formulaFacts, "facts", false, "Render as a fact term")
}

func runFormula(cmd *cobra.Command, args []string) error {
	f := logic.Parse(args[0])

	if formulaNNF {
		nnf, err := logic.NNF(f)
		if err != nil {
			return err
		}
		f = nnf
	}
	if formulaSimplify {
		f = logic.SimplifyConstants(f)
	}

	if formulaFacts {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), f.FactLanguage())
		return err
	}
	_, err := fmt.Fprintln(cmd.OutOrStdout(), f.String())
	return err
}

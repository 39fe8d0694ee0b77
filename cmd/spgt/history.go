package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	historyLimit int
	historyPrune time.Duration
)

// historyCmd lists recorded compile runs
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show compile runs recorded in the program cache",
	Long: `Lists the most recent compile runs from the program cache, newest
first, with cache statistics. --prune drops cached programs and runs older
than the given age first.

Examples:
  spgt history --cache .spgt/cache.db
  spgt history -n 5
  spgt history --prune 720h`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to show (0 for all)")
	historyCmd.Flags().DurationVar(&historyPrune, "prune", 0, "Delete entries older than this age")
	historyCmd.Flags().StringVar(&cachePath, "cache", "", "Program cache database (default: config cache.path)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	c := currentConfig()
	st, err := openCache(c)
	if err != nil {
		return err
	}
	if st == nil {
		return fmt.Errorf("no program cache configured (set cache.path or pass --cache)")
	}
	defer st.Close()

	out := cmd.OutOrStdout()
	if historyPrune > 0 {
		n, err := st.Prune(time.Now().Add(-historyPrune))
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s %d program(s)\n", successStyle.Render("pruned"), n)
	}

	stats, err := st.Stats()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s\n", headerStyle.Render("program cache"))
	fmt.Fprint(out, renderCounts(map[string]int{
		"programs":   stats.Programs,
		"facts":      stats.Facts,
		"runs":       stats.Runs,
		"cache hits": stats.Hits,
	}))

	runs, err := st.Runs(historyLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, mutedStyle.Render("no runs recorded"))
		return nil
	}
	fmt.Fprintln(out)
	for _, r := range runs {
		status := successStyle.Render("ok")
		switch {
		case r.Error != "":
			status = errorStyle.Render("failed")
		case r.CacheHit:
			status = successStyle.Render("cached")
		}
		fmt.Fprintf(out, "%s  %-6s %s  %d facts  %dms  %s\n",
			r.CreatedAt.Local().Format("2006-01-02 15:04:05"), status, r.Target, r.Facts, r.DurationMs,
			mutedStyle.Render(r.ID))
		if r.Error != "" {
			fmt.Fprintf(out, "    %s\n", r.Error)
		}
	}
	return nil
}

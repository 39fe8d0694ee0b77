package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"spgt/internal/config"
	"spgt/internal/emit"
	"spgt/internal/grounding"
	"spgt/internal/logging"
	"spgt/internal/pddl"
	"spgt/internal/store"
	"spgt/internal/watch"
)

var (
	outputPath string
	goalText   string
	noCompact  bool
	workers    int
	watchMode  bool
	showStats  bool
	cachePath  string
	noCache    bool
)

// compileCmd grounds a domain/problem pair into a fact program
var compileCmd = &cobra.Command{
	Use:   "compile [domain] [problem]",
	Short: "Ground a domain and problem into a fact program",
	Long: `Grounds the lifted domain against the problem's objects and writes the
resulting fact program.

Examples:
  spgt compile domain.yaml p01.yaml
  spgt compile domain.yaml p01.yaml -o p01.lp
  spgt compile domain.yaml p01.yaml -g "(at=p1)&(up=true)"
  spgt compile domain.yaml p01.yaml -o p01.lp --watch
  spgt compile domain.yaml p01.yaml --cache .spgt/cache.db`,
	Args: cobra.ExactArgs(2),
	RunE: runCompile,
}

func init() {
	compileCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file (default: config output.path, else stdout)")
	compileCmd.Flags().StringVarP(&goalText, "goal", "g", "", "Replace the problem goal with this formula")
	compileCmd.Flags().BoolVar(&noCompact, "no-compact", false, "Keep unary predicates as binary variables")
	compileCmd.Flags().IntVar(&workers, "workers", 0, "Concurrent action instantiations (default: config)")
	compileCmd.Flags().BoolVar(&watchMode, "watch", false, "Recompile when the inputs change")
	compileCmd.Flags().BoolVar(&showStats, "stats", false, "Print fact counts per relation")
	compileCmd.Flags().StringVar(&cachePath, "cache", "", "Program cache database (default: config cache.path)")
	compileCmd.Flags().BoolVar(&noCache, "no-cache", false, "Skip the program cache")
}

func runCompile(cmd *cobra.Command, args []string) error {
	c := currentConfig()
	ctx := commandContext(cmd)

	st, err := openCache(c)
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close()
	}

	if watchMode {
		return watchCompile(ctx, cmd, c, st, args[0], args[1])
	}
	_, err = compileOnce(ctx, cmd, c, st, args[0], args[1])
	return err
}

// openCache opens the program cache, or returns nil when caching is off.
func openCache(c *config.Config) (*store.ProgramStore, error) {
	path := cachePath
	if path == "" {
		path = c.Cache.Path
	}
	if noCache || path == "" {
		return nil, nil
	}
	return store.Open(path)
}

// compileOnce runs one tagged compile and writes its program. st may be nil.
func compileOnce(ctx context.Context, cmd *cobra.Command, c *config.Config, st *store.ProgramStore, domainPath, problemPath string) (*emit.Program, error) {
	runID := uuid.NewString()
	log := logging.WithRunID(logging.CategoryGrounding, runID)
	audit := logging.AuditWithRun(runID)
	start := time.Now()

	audit.CompileStart(problemPath)
	log.Info("compiling %s with %s", problemPath, domainPath)

	var extra []grounding.Option
	if noCompact {
		extra = append(extra, grounding.WithUnaryCompaction(false))
	}
	if workers > 0 {
		extra = append(extra, grounding.WithWorkers(workers))
	}
	extra = append(extra, grounding.WithLogger(log.Sugar()))

	prog, key, hit, err := loadOrBuild(ctx, c, st, domainPath, problemPath, extra...)
	if err == nil {
		err = writeProgram(cmd, c, prog)
	}
	elapsed := time.Since(start)

	if st != nil {
		run := store.Run{ID: runID, Target: problemPath, Key: key, CacheHit: hit, DurationMs: elapsed.Milliseconds()}
		if err != nil {
			run.Error = err.Error()
		} else {
			run.Facts = prog.Len()
		}
		if rerr := st.RecordRun(run); rerr != nil {
			log.Warn("failed to record run: %v", rerr)
		}
	}
	if err != nil {
		audit.CompileError(problemPath, err, elapsed.Milliseconds())
		return nil, err
	}
	audit.CompileComplete(problemPath, prog.Len(), elapsed.Milliseconds())

	if logger != nil {
		logger.Info("compiled",
			zap.String("run", runID),
			zap.String("program", prog.Name),
			zap.Int("facts", prog.Len()),
			zap.Bool("cache_hit", hit),
			zap.Duration("elapsed", elapsed))
	}

	verb := "compiled"
	if hit {
		verb = "cached"
	}
	errOut := cmd.ErrOrStderr()
	fmt.Fprintf(errOut, "%s %s: %d facts in %s\n",
		successStyle.Render(verb), prog.Name, prog.Len(), elapsed.Round(time.Millisecond))
	if showStats {
		fmt.Fprint(errOut, renderCounts(prog.Stats()))
	}
	return prog, nil
}

// buildProgram loads, grounds and emits one domain/problem pair. A
// non-empty goal replaces the problem's goal after grounding.
func buildProgram(ctx context.Context, c *config.Config, domainPath, problemPath, goal string, extra ...grounding.Option) (*emit.Program, error) {
	d, err := pddl.LoadDomain(domainPath)
	if err != nil {
		return nil, err
	}
	p, err := pddl.LoadProblem(problemPath)
	if err != nil {
		return nil, err
	}

	opts := append(c.GroundingOptions(), extra...)
	tr, err := grounding.New(d, p, opts...)
	if err != nil {
		return nil, err
	}
	if err := tr.Ground(ctx); err != nil {
		return nil, err
	}
	if goal != "" {
		tr.SetGoal(goal)
	}
	return emit.FromTranslator(tr), nil
}

// loadOrBuild returns the cached program for the inputs when st has one,
// otherwise builds it and caches the result. Cache failures are logged and
// do not fail the compile.
func loadOrBuild(ctx context.Context, c *config.Config, st *store.ProgramStore, domainPath, problemPath string, extra ...grounding.Option) (*emit.Program, string, bool, error) {
	if st == nil {
		prog, err := buildProgram(ctx, c, domainPath, problemPath, goalText, extra...)
		return prog, "", false, err
	}

	key, err := cacheKey(c, domainPath, problemPath)
	if err != nil {
		return nil, "", false, err
	}
	prog, ok, err := st.Get(key)
	if err != nil {
		logging.Get(logging.CategoryStore).Warn("cache lookup failed: %v", err)
	} else if ok {
		logging.StoreDebug("cache hit for %s", problemPath)
		return prog, key, true, nil
	}

	prog, err = buildProgram(ctx, c, domainPath, problemPath, goalText, extra...)
	if err != nil {
		return nil, key, false, err
	}
	if err := st.Put(key, prog); err != nil {
		logging.Get(logging.CategoryStore).Warn("cache store failed: %v", err)
	}
	return prog, key, false, nil
}

// cacheFormat is the program format version folded into cache keys.
var cacheFormat = emit.FormatVersion

// cacheKey hashes everything that changes the emitted program.
func cacheKey(c *config.Config, domainPath, problemPath string) (string, error) {
	d, err := os.ReadFile(domainPath)
	if err != nil {
		return "", fmt.Errorf("failed to read domain: %w", err)
	}
	p, err := os.ReadFile(problemPath)
	if err != nil {
		return "", fmt.Errorf("failed to read problem: %w", err)
	}
	compact := c.Grounding.CompactUnary && !noCompact
	return store.Key([]byte(cacheFormat), d, p, []byte(strconv.FormatBool(compact)), []byte(goalText)), nil
}

func writeProgram(cmd *cobra.Command, c *config.Config, prog *emit.Program) error {
	path := outputPath
	if path == "" {
		path = c.Output.Path
	}
	if path == "" {
		return prog.Write(cmd.OutOrStdout())
	}
	return prog.WriteFile(path)
}

// watchCompile compiles once, then again whenever an input settles after a
// change, until interrupted. Failed recompiles are reported and waited out.
func watchCompile(ctx context.Context, cmd *cobra.Command, c *config.Config, st *store.ProgramStore, domainPath, problemPath string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := compileOnce(ctx, cmd, c, st, domainPath, problemPath); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), errorStyle.Render("error:"), err)
	}

	w, err := watch.New([]string{domainPath, problemPath}, c.GetDebounce(), func(ctx context.Context, paths []string) {
		logging.Watch("recompiling after change to %v", paths)
		if _, err := compileOnce(ctx, cmd, c, st, domainPath, problemPath); err != nil {
			logging.WatchWarn("recompile failed: %v", err)
			fmt.Fprintln(cmd.ErrOrStderr(), errorStyle.Render("error:"), err)
		}
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.ErrOrStderr(), mutedStyle.Render("watching for changes (ctrl-c to stop)"))
	return w.Run(ctx)
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	simpletrack "github.com/captainhcg/SimpleTrack"
	"github.com/captainhcg/SimpleTrack/internal/runtime"
)

// symbolFlags select the repository and the symbol for history and locate.
type symbolFlags struct {
	class    string
	function string
	repo     string
	project  string
}

func (f *symbolFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.class, "class", "", "class name (alone: track the class; with --function: track the method)")
	cmd.Flags().StringVar(&f.function, "function", "", "function or method name")
	cmd.Flags().StringVar(&f.repo, "repo", "", "repository directory; relative files are taken from its root")
	cmd.Flags().StringVar(&f.project, "project", "", "registered project name; relative files are taken from its root")
	cmd.MarkFlagsMutuallyExclusive("repo", "project")
}

type historyFlags struct {
	symbolFlags
	differ  string
	timeout time.Duration
	max     int
	reverse bool
	ref     string
	where   string
}

func newHistoryCmd(a *app) *cobra.Command {
	f := &historyFlags{}
	cmd := &cobra.Command{
		Use:   "history <file>",
		Short: "List the distinct versions of a class or method",
		Long: "Walks the commits that touched <file> and prints every version of the symbol whose text differs " +
			"from the previous one, including a version with no lines when the symbol was absent.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runHistory(cmd, args[0], f)
		},
	}
	f.register(cmd)
	cmd.Flags().StringVar(&f.differ, "differ", "", "change detector: git|lines (default from config)")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "time budget for the walk (default from config)")
	cmd.Flags().IntVar(&f.max, "max", 0, "maximum number of versions (default from config)")
	cmd.Flags().BoolVar(&f.reverse, "reverse", false, "walk oldest first")
	cmd.Flags().StringVar(&f.ref, "ref", "", "walk back from this revision instead of HEAD")
	cmd.Flags().StringVar(&f.where, "where", "", `Risor filter over versions, e.g. 'author == "alice"'`)
	return cmd
}

func (a *app) runHistory(cmd *cobra.Command, file string, f *historyFlags) error {
	ctx := cmd.Context()

	opts, err := a.historyOptions(cmd, f)
	if err != nil {
		return a.outputError(cmd, "history", err)
	}
	tr, path, err := a.openTracker(ctx, f.symbolFlags, file, opts...)
	if err != nil {
		return a.outputError(cmd, "history", err)
	}

	res, err := tr.History(ctx, path, f.class, f.function)
	if err != nil {
		return a.outputError(cmd, "history", err)
	}
	snaps, err := applyFilter(ctx, a.logger, f.where, res.Snapshots)
	if err != nil {
		return a.outputError(cmd, "history", err)
	}

	result := CLIResult{
		Command:   "history",
		Results:   toCLISnapshots(snaps),
		Truncated: res.Truncated,
	}
	if res.Truncated {
		result.Reason = string(res.Reason)
	}
	return a.outputResult(cmd, result)
}

// historyOptions layers command-line flags over the loaded configuration.
func (a *app) historyOptions(cmd *cobra.Command, f *historyFlags) ([]simpletrack.Option, error) {
	differ := a.cfg.Differ
	if cmd.Flags().Changed("differ") {
		differ = f.differ
	}
	kind, err := simpletrack.ParseDiffer(differ)
	if err != nil {
		return nil, err
	}

	timeout := a.cfg.Timeout
	if cmd.Flags().Changed("timeout") {
		timeout = f.timeout
	}
	maxSnapshots := a.cfg.MaxSnapshots
	if cmd.Flags().Changed("max") {
		maxSnapshots = f.max
	}
	if timeout < 0 || maxSnapshots < 0 {
		return nil, fmt.Errorf("--timeout and --max must not be negative")
	}
	reverse := a.cfg.Order == "oldest"
	if cmd.Flags().Changed("reverse") {
		reverse = f.reverse
	}

	return append(a.baseOptions(),
		simpletrack.WithDiffer(kind),
		simpletrack.WithTimeout(timeout),
		simpletrack.WithMaxSnapshots(maxSnapshots),
		simpletrack.WithReverse(reverse),
		simpletrack.WithRef(f.ref),
	), nil
}

// baseOptions are the tracker options every command shares.
func (a *app) baseOptions() []simpletrack.Option {
	return []simpletrack.Option{
		simpletrack.WithGitTimeout(a.cfg.GitTimeout),
		simpletrack.WithLogger(a.logger),
	}
}

// openTracker opens the repository selected by --project or --repo and
// returns the file path to query. Without either flag the repository is
// the one containing the working directory and relative files are taken
// from the working directory.
func (a *app) openTracker(ctx context.Context, f symbolFlags, file string, opts ...simpletrack.Option) (*simpletrack.Tracker, string, error) {
	dir := f.repo
	switch {
	case f.project != "":
		s, err := a.openStore()
		if err != nil {
			return nil, "", err
		}
		p, err := s.ProjectByName(f.project)
		s.Close()
		if err != nil {
			return nil, "", err
		}
		if p == nil {
			return nil, "", fmt.Errorf("unknown project %q (see 'simpletrack project list')", f.project)
		}
		dir = p.Path
	case dir == "":
		dir = "."
		if file != "" && !filepath.IsAbs(file) {
			abs, err := filepath.Abs(file)
			if err != nil {
				return nil, "", fmt.Errorf("resolving file path %q: %w", file, err)
			}
			file = abs
		}
	}

	tr, err := simpletrack.New(ctx, dir, opts...)
	if err != nil {
		return nil, "", err
	}
	return tr, file, nil
}

// applyFilter keeps the snapshots matching expr. An empty expr keeps all.
func applyFilter(ctx context.Context, logger *slog.Logger, expr string, snaps []simpletrack.Snapshot) ([]simpletrack.Snapshot, error) {
	if strings.TrimSpace(expr) == "" {
		return snaps, nil
	}
	filter, err := runtime.NewFilter(ctx, runtime.NewRuntime(runtime.WithLogger(logger)), expr)
	if err != nil {
		return nil, err
	}
	kept, err := filter.Apply(ctx, snaps)
	if err != nil {
		return nil, err
	}
	logger.Debug("filtered history", "where", filter.Expr(), "kept", len(kept), "of", len(snaps))
	return kept, nil
}

type locateFlags struct {
	symbolFlags
	rev string
}

func newLocateCmd(a *app) *cobra.Command {
	f := &locateFlags{}
	cmd := &cobra.Command{
		Use:   "locate <file>",
		Short: "Print the lines of a class or method at one revision",
		Long:  "Locates the symbol in <file> at --rev, or in the working tree copy when --rev is empty.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runLocate(cmd, args[0], f)
		},
	}
	f.register(cmd)
	cmd.Flags().StringVar(&f.rev, "rev", "", "revision to read (default: working tree)")
	return cmd
}

func (a *app) runLocate(cmd *cobra.Command, file string, f *locateFlags) error {
	ctx := cmd.Context()
	tr, path, err := a.openTracker(ctx, f.symbolFlags, file, a.baseOptions()...)
	if err != nil {
		return a.outputError(cmd, "locate", err)
	}
	snap, err := tr.Locate(ctx, f.rev, path, f.class, f.function)
	if err != nil {
		return a.outputError(cmd, "locate", err)
	}
	return a.outputResult(cmd, CLIResult{Command: "locate", Results: toCLISnapshot(*snap)})
}

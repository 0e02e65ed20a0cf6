package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/captainhcg/SimpleTrack/internal/config"
	"github.com/captainhcg/SimpleTrack/internal/slogutil"
	"github.com/captainhcg/SimpleTrack/internal/store"
)

// app holds the persistent flags and what PersistentPreRunE derives from
// them. Each command tree gets its own app, so tests can run commands
// in-process without sharing flag state.
type app struct {
	format     string
	configFile string
	dbPath     string
	verbose    int
	quiet      bool

	cfg    *config.Config
	logger *slog.Logger

	// errorHandled is set by outputError so main() doesn't double-print.
	errorHandled bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	a := &app{}
	err := newRootCmd(a).ExecuteContext(ctx)
	stop()
	if err != nil {
		if !a.errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "simpletrack",
		Short: "Track how a Python class or function changed across git history",
		Long: "SimpleTrack walks a file's git history and reports each distinct version of one class or method, " +
			"re-parsing only the revisions whose changes touch the symbol.",
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		// No Run: prints help by default.
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.format, "format", "json", "output format: json|text")
	pf.StringVar(&a.configFile, "config", "", "config file (default: .simpletrack.yaml in the repo root or $HOME)")
	pf.StringVar(&a.dbPath, "db", "", "project registry database (default: ~/.simpletrack/projects.db)")
	pf.CountVarP(&a.verbose, "verbose", "v", "log more (-v info, -vv debug)")
	pf.BoolVarP(&a.quiet, "quiet", "q", false, "suppress all logging")

	root.AddCommand(newHistoryCmd(a))
	root.AddCommand(newLocateCmd(a))
	root.AddCommand(newProjectCmd(a))
	root.AddCommand(newServeCmd(a))
	return root
}

// setup validates the output format, loads configuration and builds the
// logger. Flags given on the command line win over the config file.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if err := validateFormat(a.format); err != nil {
		return err
	}

	var dirs []string
	if cwd, err := os.Getwd(); err == nil {
		dirs = append(dirs, findRepoRoot(cwd))
	}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, home)
	}
	cfg, err := config.Load(a.configFile, dirs...)
	if err != nil {
		return err
	}
	if a.dbPath != "" {
		cfg.DB = a.dbPath
	}
	a.cfg = cfg

	level := slogutil.LevelFromVerbosity(slogutil.LevelFromString(cfg.LogLevel), a.verbose, a.quiet)
	a.logger = slogutil.NewLogger(cmd.ErrOrStderr(), level)
	if src := config.Source(a.configFile, dirs...); src != "" {
		a.logger.Debug("config loaded", "file", src)
	}
	return nil
}

// openStore opens (creating if needed) the project registry.
func (a *app) openStore() (*store.Store, error) {
	if err := os.MkdirAll(filepath.Dir(a.cfg.DB), 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", filepath.Dir(a.cfg.DB), err)
	}
	s, err := store.NewStore(a.cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("opening registry %s: %w", a.cfg.DB, err)
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// findRepoRoot walks up from startDir looking for a .git entry (a directory,
// or a file for worktrees and submodules). Returns startDir if none is found.
func findRepoRoot(startDir string) string {
	dir := startDir
	for {
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return startDir
		}
		dir = parent
	}
}

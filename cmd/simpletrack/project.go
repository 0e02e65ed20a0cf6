package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/captainhcg/SimpleTrack/internal/store"
)

func newProjectCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage named repositories",
		Long:  "Registers git repositories under short names for use with --project and the HTTP API.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <name> <path>",
		Short: "Register a repository",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runProjectAdd(cmd, args[0], args[1])
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List registered repositories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runProjectList(cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "remove <name>",
		Short: "Forget a repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runProjectRemove(cmd, args[0])
		},
	})
	return cmd
}

func (a *app) runProjectAdd(cmd *cobra.Command, name, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return a.outputError(cmd, "project add", fmt.Errorf("directory not found: %s", path))
	}
	if !info.IsDir() {
		return a.outputError(cmd, "project add", fmt.Errorf("not a directory: %s", path))
	}

	s, err := a.openStore()
	if err != nil {
		return a.outputError(cmd, "project add", err)
	}
	defer s.Close()

	p := &store.Project{Name: name, Path: path}
	if _, err := s.InsertProject(p); err != nil {
		return a.outputError(cmd, "project add", err)
	}
	a.logger.Info("project registered", "name", p.Name, "path", p.Path)
	return a.outputResult(cmd, CLIResult{Command: "project add", Results: toCLIProject(p)})
}

func (a *app) runProjectList(cmd *cobra.Command) error {
	s, err := a.openStore()
	if err != nil {
		return a.outputError(cmd, "project list", err)
	}
	defer s.Close()

	projects, err := s.Projects()
	if err != nil {
		return a.outputError(cmd, "project list", err)
	}
	out := make([]CLIProject, len(projects))
	for i, p := range projects {
		out[i] = toCLIProject(p)
	}
	return a.outputResult(cmd, CLIResult{Command: "project list", Results: out})
}

func (a *app) runProjectRemove(cmd *cobra.Command, name string) error {
	s, err := a.openStore()
	if err != nil {
		return a.outputError(cmd, "project remove", err)
	}
	defer s.Close()

	if err := s.DeleteProject(name); err != nil {
		return a.outputError(cmd, "project remove", err)
	}
	return a.outputResult(cmd, CLIResult{Command: "project remove", Results: CLIProject{Name: name}})
}

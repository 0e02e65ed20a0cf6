package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// outputResult writes result to the command's stdout in the selected format.
func (a *app) outputResult(cmd *cobra.Command, result CLIResult) error {
	w := cmd.OutOrStdout()
	if a.format == "text" {
		return outputResultText(w, result)
	}
	return writeResultJSON(w, result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func (a *app) outputError(cmd *cobra.Command, command string, err error) error {
	a.errorHandled = true
	if a.format == "text" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s\n", err)
		return err
	}
	_ = writeResultJSON(cmd.OutOrStdout(), CLIResult{Command: command, Error: err.Error()})
	return err
}

func writeResultJSON(w io.Writer, result CLIResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputResultText dispatches to the text formatter for the result type.
func outputResultText(w io.Writer, result CLIResult) error {
	switch v := result.Results.(type) {
	case []CLISnapshot:
		formatSnapshotsText(w, v)
	case CLISnapshot:
		formatSnapshotsText(w, []CLISnapshot{v})
	case []CLIProject:
		formatProjectsText(w, v)
	case CLIProject:
		formatProjectsText(w, []CLIProject{v})
	case nil:
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}

	if result.Truncated {
		fmt.Fprintf(w, "\nHistory truncated (%s)\n", result.Reason)
	}
	return nil
}

// formatSnapshotsText prints a summary table followed by each snapshot's
// code.
func formatSnapshotsText(w io.Writer, snaps []CLISnapshot) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", "Revision", "Date", "Author", "Lines", "Subject"})
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for i, s := range snaps {
		table.Append([]string{
			strconv.Itoa(i + 1),
			shortHash(s.Hash),
			s.Date,
			s.Author,
			lineRange(s),
			s.Subject,
		})
	}
	table.Render()

	for i, s := range snaps {
		fmt.Fprintf(w, "\n[%d] %s %s\n", i+1, shortHash(s.Hash), lineRange(s))
		if s.Code == "" {
			fmt.Fprintln(w, "(not present)")
			continue
		}
		fmt.Fprint(w, s.Code)
		if !strings.HasSuffix(s.Code, "\n") {
			fmt.Fprintln(w)
		}
	}
}

// formatProjectsText prints projects as a table.
func formatProjectsText(w io.Writer, projects []CLIProject) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Name", "Path", "Created"})
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, p := range projects {
		table.Append([]string{p.Name, p.Path, p.CreatedAt})
	}
	table.Render()
}

func lineRange(s CLISnapshot) string {
	if s.StartLine == nil || s.EndLine == nil {
		return "-"
	}
	return fmt.Sprintf("%d-%d", *s.StartLine, *s.EndLine)
}

// shortHash abbreviates full commit hashes and leaves other ids alone.
func shortHash(h string) string {
	if len(h) >= 40 {
		return h[:7]
	}
	return h
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}

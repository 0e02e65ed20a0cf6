package main

import (
	simpletrack "github.com/captainhcg/SimpleTrack"
	"github.com/captainhcg/SimpleTrack/internal/store"
)

// CLIResult is the top-level JSON envelope for every command and for the
// HTTP API.
type CLIResult struct {
	Command   string `json:"command"`
	Results   any    `json:"results"`
	Truncated bool   `json:"truncated,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Error     string `json:"error,omitempty"`
}

// CLISnapshot is a JSON-friendly snapshot. Lines are null when the symbol
// was absent at the revision.
type CLISnapshot struct {
	Hash      string `json:"hash"`
	Author    string `json:"author,omitempty"`
	Date      string `json:"date,omitempty"`
	Subject   string `json:"subject,omitempty"`
	StartLine *int   `json:"start_line"`
	EndLine   *int   `json:"end_line"`
	ClassName string `json:"class_name,omitempty"`
	Code      string `json:"code"`
}

// CLIProject is a JSON-friendly registered project.
type CLIProject struct {
	Name      string `json:"name"`
	Path      string `json:"path"`
	CreatedAt string `json:"created_at,omitempty"`
}

func toCLISnapshot(s simpletrack.Snapshot) CLISnapshot {
	out := CLISnapshot{
		ClassName: s.Span.ClassName,
		Code:      s.Code,
	}
	if rev := s.Revision; rev != nil {
		out.Hash = rev.ID
		out.Author = rev.Author
		out.Date = rev.Date
		out.Subject = rev.Subject
	}
	if s.Span.Found() {
		start, end := s.Span.StartLine, s.Span.EndLine
		out.StartLine, out.EndLine = &start, &end
	}
	return out
}

func toCLISnapshots(snaps []simpletrack.Snapshot) []CLISnapshot {
	out := make([]CLISnapshot, len(snaps))
	for i, s := range snaps {
		out[i] = toCLISnapshot(s)
	}
	return out
}

func toCLIProject(p *store.Project) CLIProject {
	out := CLIProject{Name: p.Name, Path: p.Path}
	if !p.CreatedAt.IsZero() {
		out.CreatedAt = p.CreatedAt.UTC().Format("2006-01-02T15:04:05Z")
	}
	return out
}

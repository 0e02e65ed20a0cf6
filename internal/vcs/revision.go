package vcs

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Revision is one commit in a file's history. Its text is fetched from git
// on first use and cached for the lifetime of the value.
type Revision struct {
	ID      string
	Path    string
	Author  string
	Date    string
	Subject string

	repo *Repo
	mu   sync.Mutex
	done bool
	text []byte
	err  error
}

// NewRevision returns a revision whose text is already known. It never
// touches git.
func NewRevision(id, path string, text []byte) *Revision {
	return &Revision{ID: id, Path: path, done: true, text: text}
}

// Revision returns a lazily fetched revision of path at rev, without
// metadata.
func (r *Repo) Revision(rev, path string) *Revision {
	return &Revision{ID: rev, Path: path, repo: r}
}

// ShortID returns the abbreviated identifier used for display.
func (r *Revision) ShortID() string {
	if len(r.ID) > 7 {
		return r.ID[:7]
	}
	return r.ID
}

// Text returns the file's content at this revision. The first call fetches
// it (using that call's context); later calls return the cached result,
// including a cached error. Failures caused by cancellation or a deadline
// are not cached, so a later call with a live context fetches again. A path
// absent at this revision yields ErrPathNotFound.
func (r *Revision) Text(ctx context.Context) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done {
		return r.text, r.err
	}
	if r.repo == nil {
		r.done, r.err = true, fmt.Errorf("vcs: revision %s has no repository", r.ID)
		return nil, r.err
	}

	text, err := r.repo.show(ctx, r.ID, r.Path)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}
	r.done, r.text, r.err = true, text, err
	return text, err
}

// ListOptions controls revision enumeration.
type ListOptions struct {
	// Ref is the revision to walk back from. Defaults to HEAD.
	Ref string
	// Reverse lists oldest first instead of git's native newest first.
	Reverse bool
	// MaxCount limits the number of revisions. Zero means no limit.
	MaxCount int
}

// fieldSep separates formatted fields in git log output.
const fieldSep = "\x1f"

// logFormat is hash, author name, short author date, subject.
const logFormat = "--format=%H%x1f%an%x1f%ad%x1f%s"

// ListRevisions returns the commits that touched path, in git's native order
// (newest first) unless opts.Reverse is set. A failing git invocation is
// returned as an error with no partial result.
func (r *Repo) ListRevisions(ctx context.Context, path string, opts ListOptions) ([]*Revision, error) {
	ref := opts.Ref
	if ref == "" {
		ref = "HEAD"
	}
	args := []string{"log", "--no-color", "--date=short", logFormat}
	if opts.MaxCount > 0 {
		args = append(args, "--max-count="+strconv.Itoa(opts.MaxCount))
	}
	if opts.Reverse {
		args = append(args, "--reverse")
	}
	args = append(args, ref, "--", path)

	out, err := r.run(ctx, args...)
	if err != nil {
		return nil, err
	}

	var revs []*Revision
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, fieldSep, 4)
		if len(parts) != 4 {
			r.logger.Warn("skipping malformed git log line", "line", line)
			continue
		}
		revs = append(revs, &Revision{
			ID:      parts[0],
			Path:    path,
			Author:  parts[1],
			Date:    parts[2],
			Subject: parts[3],
			repo:    r,
		})
	}
	return revs, nil
}

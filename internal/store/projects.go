package store

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
)

var (
	// ErrProjectExists is returned when a project name is already taken.
	ErrProjectExists = errors.New("store: project already exists")
	// ErrProjectNotFound is returned when deleting an unknown project.
	ErrProjectNotFound = errors.New("store: project not found")
	// ErrInvalidProject is returned for an empty name or path.
	ErrInvalidProject = errors.New("store: project needs a name and a path")
)

// --- Project operations ---

// InsertProject registers a project. The path is stored in absolute form.
func (s *Store) InsertProject(p *Project) (int64, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" || strings.TrimSpace(p.Path) == "" {
		return 0, ErrInvalidProject
	}
	abs, err := filepath.Abs(p.Path)
	if err != nil {
		return 0, fmt.Errorf("resolve project path: %w", err)
	}
	p.Path = abs
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}

	res, err := s.db.Exec(
		"INSERT INTO projects (name, path, created_at) VALUES (?, ?, ?)",
		p.Name, p.Path, p.CreatedAt,
	)
	if err != nil {
		var serr sqlite3.Error
		if errors.As(err, &serr) && serr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return 0, fmt.Errorf("%w: %s", ErrProjectExists, p.Name)
		}
		return 0, fmt.Errorf("insert project: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	p.ID = id
	return id, nil
}

// ProjectByName returns the named project, or nil if there is none.
func (s *Store) ProjectByName(name string) (*Project, error) {
	p := &Project{}
	err := s.db.QueryRow(
		"SELECT id, name, path, created_at FROM projects WHERE name = ?", name,
	).Scan(&p.ID, &p.Name, &p.Path, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("project by name: %w", err)
	}
	return p, nil
}

// Projects returns all projects ordered by name.
func (s *Store) Projects() ([]*Project, error) {
	rows, err := s.db.Query("SELECT id, name, path, created_at FROM projects ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("projects: %w", err)
	}
	defer rows.Close()
	var projects []*Project
	for rows.Next() {
		p := &Project{}
		if err := rows.Scan(&p.ID, &p.Name, &p.Path, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// DeleteProject removes the named project.
func (s *Store) DeleteProject(name string) error {
	res, err := s.db.Exec("DELETE FROM projects WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrProjectNotFound, name)
	}
	return nil
}

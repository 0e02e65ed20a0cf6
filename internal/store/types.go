package store

import "time"

// Project is a registered git repository.
type Project struct {
	ID        int64
	Name      string
	Path      string
	CreatedAt time.Time
}

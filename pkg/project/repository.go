// Package project stores the API projects the tool is pointed at.
package project

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/swagdesk/swagdesk/pkg/models"
)

// ErrNotFound is returned when a project id does not exist.
var ErrNotFound = errors.New("project not found")

const createTable = `
CREATE TABLE IF NOT EXISTS projects (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	base_url TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// Repository is a SQLite-backed project store.
type Repository struct {
	db *sql.DB
}

// New opens the store at dbPath and runs auto-migration.
func New(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open projects db: %w", err)
	}
	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate projects table: %w", err)
	}
	return &Repository{db: db}, nil
}

// Create inserts a project with a fresh id.
func (r *Repository) Create(ctx context.Context, name, baseURL string) (models.Project, error) {
	now := time.Now().UTC()
	p := models.Project{
		ID:        uuid.NewString(),
		Name:      name,
		BaseURL:   baseURL,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO projects (id, name, base_url, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.BaseURL, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return models.Project{}, fmt.Errorf("create project: %w", err)
	}
	return p, nil
}

// Get returns a project by id.
func (r *Repository) Get(ctx context.Context, id string) (models.Project, error) {
	var p models.Project
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, base_url, created_at, updated_at FROM projects WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &p.BaseURL, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return models.Project{}, ErrNotFound
	}
	if err != nil {
		return models.Project{}, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

// List returns all projects, newest first.
func (r *Repository) List(ctx context.Context) ([]models.Project, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, base_url, created_at, updated_at FROM projects ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var out []models.Project
	for rows.Next() {
		var p models.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.BaseURL, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Rename updates a project's name.
func (r *Repository) Rename(ctx context.Context, id, name string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE projects SET name = ?, updated_at = ? WHERE id = ?`,
		name, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("rename project: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a project by id.
func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Close releases the database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Package migrate applies the embedded schema migrations with goose.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io"
	"io/fs"

	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"
)

//go:embed migrations/*.sql
var embedded embed.FS

// Migrations returns the migration files rooted at their directory.
func Migrations() fs.FS {
	sub, err := fs.Sub(embedded, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// Manager executes the embedded migrations against a database.
type Manager struct {
	provider *goose.Provider
	log      logrus.FieldLogger
}

type options struct {
	log     logrus.FieldLogger
	verbose bool
}

// Option configures Manager.
type Option func(*options)

// WithLogger reports each applied or rolled back migration to l.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) { o.log = l }
}

// WithVerbose logs every applied statement.
func WithVerbose(v bool) Option {
	return func(o *options) { o.verbose = v }
}

// NewManager constructs a Manager for a Postgres database.
func NewManager(db *sql.DB, opts ...Option) (*Manager, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		o.log = l
	}
	p, err := goose.NewProvider(goose.DialectPostgres, db, Migrations(), goose.WithVerbose(o.verbose))
	if err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Manager{provider: p, log: o.log}, nil
}

func (m *Manager) logResult(r *goose.MigrationResult) {
	if r == nil || r.Source == nil {
		return
	}
	m.log.WithFields(logrus.Fields{
		"version":     r.Source.Version,
		"file":        r.Source.Path,
		"direction":   r.Direction,
		"empty":       r.Empty,
		"duration_ms": r.Duration.Milliseconds(),
	}).Info("migration complete")
}

// Up applies all pending migrations and returns the files applied.
func (m *Manager) Up(ctx context.Context) ([]string, error) {
	results, err := m.provider.Up(ctx)
	if err != nil {
		return nil, fmt.Errorf("migrate up: %w", err)
	}
	applied := make([]string, 0, len(results))
	for _, r := range results {
		m.logResult(r)
		applied = append(applied, r.Source.Path)
	}
	return applied, nil
}

// Down rolls back the most recent migration.
func (m *Manager) Down(ctx context.Context) (string, error) {
	r, err := m.provider.Down(ctx)
	if err != nil {
		return "", fmt.Errorf("migrate down: %w", err)
	}
	m.logResult(r)
	return r.Source.Path, nil
}

// Status describes every known migration and whether it is applied.
func (m *Manager) Status(ctx context.Context) ([]string, error) {
	statuses, err := m.provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("migrate status: %w", err)
	}
	out := make([]string, 0, len(statuses))
	for _, st := range statuses {
		line := fmt.Sprintf("%05d %s %s", st.Source.Version, st.Source.Path, st.State)
		if !st.AppliedAt.IsZero() {
			line += " " + st.AppliedAt.UTC().Format("2006-01-02T15:04:05Z")
		}
		out = append(out, line)
	}
	return out, nil
}

package application

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"
)

var ErrNoMigrations = errors.New("no migration sources registered")

type MigrationStatus struct {
	Version   int64
	Source    string
	Applied   bool
	AppliedAt time.Time
}

type migrationManager struct {
	dsn     string
	log     *logrus.Logger
	sources []fs.FS
}

func NewMigrationManager(dsn string, log *logrus.Logger) MigrationManager {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &migrationManager{dsn: dsn, log: log}
}

func (m *migrationManager) RegisterSchema(fsys ...fs.FS) {
	m.sources = append(m.sources, fsys...)
}

func (m *migrationManager) Up(ctx context.Context) error {
	return m.withProvider(ctx, func(p *goose.Provider) error {
		results, err := p.Up(ctx)
		for _, r := range results {
			m.log.WithFields(logrus.Fields{
				"version":  r.Source.Version,
				"source":   path.Base(r.Source.Path),
				"duration": r.Duration,
			}).Info("migration applied")
		}
		return err
	})
}

func (m *migrationManager) Down(ctx context.Context) error {
	return m.withProvider(ctx, func(p *goose.Provider) error {
		r, err := p.Down(ctx)
		if r != nil {
			m.log.WithField("version", r.Source.Version).Info("migration rolled back")
		}
		return err
	})
}

func (m *migrationManager) Status(ctx context.Context) ([]MigrationStatus, error) {
	var out []MigrationStatus
	err := m.withProvider(ctx, func(p *goose.Provider) error {
		statuses, err := p.Status(ctx)
		if err != nil {
			return err
		}
		for _, s := range statuses {
			out = append(out, MigrationStatus{
				Version:   s.Source.Version,
				Source:    path.Base(s.Source.Path),
				Applied:   s.State == goose.StateApplied,
				AppliedAt: s.AppliedAt,
			})
		}
		return nil
	})
	return out, err
}

func (m *migrationManager) withProvider(ctx context.Context, fn func(p *goose.Provider) error) error {
	if len(m.sources) == 0 {
		return ErrNoMigrations
	}
	dir, err := os.MkdirTemp("", "migrations-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	if err := collectSQLFiles(dir, m.sources); err != nil {
		return err
	}

	db, err := sql.Open("postgres", m.dsn)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectPostgres, db, os.DirFS(dir))
	if err != nil {
		return fmt.Errorf("goose provider: %w", err)
	}
	defer provider.Close()
	return fn(provider)
}

// collectSQLFiles copies every *.sql file from sources into dir so goose sees one
// ordered migration set. Duplicate file names are rejected.
func collectSQLFiles(dir string, sources []fs.FS) error {
	seen := map[string]struct{}{}
	for _, src := range sources {
		var names []string
		err := fs.WalkDir(src, ".", func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.HasSuffix(p, ".sql") {
				names = append(names, p)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("read migration source: %w", err)
		}
		sort.Strings(names)
		for _, name := range names {
			base := path.Base(name)
			if _, dup := seen[base]; dup {
				return fmt.Errorf("duplicate migration file %q", base)
			}
			seen[base] = struct{}{}
			data, err := fs.ReadFile(src, name)
			if err != nil {
				return err
			}
			if err := os.WriteFile(filepath.Join(dir, base), data, 0o600); err != nil {
				return err
			}
		}
	}
	return nil
}

// Package migrations exposes the embedded fediauth schema per SQL dialect so
// hosts can feed it to their own migrator.
package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"

	fediauth "github.com/goliatone/go-fediauth"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"

	migrationsDir = "data/sql/migrations"
)

// dialectDirs maps each dialect to its directory below migrationsDir.
// Postgres files live at the root.
var dialectDirs = []struct {
	dialect string
	dir     string
}{
	{dialect: DialectPostgres, dir: "."},
	{dialect: DialectSQLite, dir: DialectSQLite},
}

type FilesystemSpec struct {
	Dialect string
	Path    string
	FS      fs.FS
}

type Registration struct {
	SourceLabel       string
	ValidationTargets []string
	Filesystems       []FilesystemSpec
}

type RegisterFunc func(ctx context.Context, dialect string, sourceLabel string, fsys fs.FS) error

type Option func(*Registration)

func WithSourceLabel(label string) Option {
	return func(r *Registration) {
		if label = strings.TrimSpace(label); label != "" {
			r.SourceLabel = label
		}
	}
}

// WithValidationTargets limits registration to the listed dialects.
func WithValidationTargets(targets ...string) Option {
	return func(r *Registration) {
		var picked []string
		for _, target := range targets {
			target = strings.ToLower(strings.TrimSpace(target))
			if target != "" && !slices.Contains(picked, target) {
				picked = append(picked, target)
			}
		}
		if len(picked) > 0 {
			r.ValidationTargets = picked
		}
	}
}

// Filesystems returns one filesystem per dialect, read from the embedded
// schema or from root when given. A dialect without *.up.sql files is an
// error.
func Filesystems(root ...fs.FS) ([]FilesystemSpec, error) {
	source := fediauth.GetMigrationsFS()
	if len(root) > 0 && root[0] != nil {
		source = root[0]
	}
	specs := make([]FilesystemSpec, 0, len(dialectDirs))
	for _, entry := range dialectDirs {
		dir := path.Join(migrationsDir, entry.dir)
		sub, err := fs.Sub(source, dir)
		if err != nil {
			return nil, fmt.Errorf("migrations: open %s: %w", dir, err)
		}
		ups, err := fs.Glob(sub, "*.up.sql")
		if err != nil {
			return nil, fmt.Errorf("migrations: list %s: %w", dir, err)
		}
		if len(ups) == 0 {
			return nil, fmt.Errorf("migrations: no %s up migrations in %q", entry.dialect, dir)
		}
		specs = append(specs, FilesystemSpec{Dialect: entry.dialect, Path: dir, FS: sub})
	}
	return specs, nil
}

// Register hands each selected dialect filesystem to registerFn, for example
// persistence.Client.RegisterSQLMigrations.
func Register(ctx context.Context, registerFn RegisterFunc, opts ...Option) (Registration, error) {
	reg := Registration{
		SourceLabel:       "go-fediauth",
		ValidationTargets: []string{DialectPostgres, DialectSQLite},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&reg)
		}
	}
	if registerFn == nil {
		return reg, fmt.Errorf("migrations: register function is required")
	}
	specs, err := Filesystems()
	if err != nil {
		return reg, err
	}
	reg.Filesystems = specs
	for _, spec := range specs {
		if !slices.Contains(reg.ValidationTargets, spec.Dialect) {
			continue
		}
		if err := registerFn(ctx, spec.Dialect, reg.SourceLabel, spec.FS); err != nil {
			return reg, fmt.Errorf("migrations: register %s: %w", spec.Dialect, err)
		}
	}
	return reg, nil
}

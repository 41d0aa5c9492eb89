// Package migrate applies SQL schema migrations with golang-migrate.
package migrate

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

var directions = map[string]func(*migrate.Migrate) error{
	"up":   (*migrate.Migrate).Up,
	"down": (*migrate.Migrate).Down,
}

// Run applies every migration found in source under dir against the database
// at dsn, in the given direction ("up" or "down"). A database already at the
// target version is not an error.
func Run(source fs.FS, dir, dsn, direction string) error {
	if dsn == "" {
		return errors.New("database DSN is empty")
	}
	apply, ok := directions[direction]
	if !ok {
		return fmt.Errorf("direction must be up or down, got %q", direction)
	}

	sourceDriver, err := iofs.New(source, dir)
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", sourceDriver, dsn)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	if err := apply(m); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

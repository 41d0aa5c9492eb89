// fila-migrate runs the postgres backend's migrations from embedded SQL.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/c4ts0up/Fasti-Client/internal/config"
	"github.com/c4ts0up/Fasti-Client/internal/db"
	"github.com/c4ts0up/Fasti-Client/internal/db/migrate"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	flag.Parse()

	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		fmt.Fprintln(os.Stderr, "DB_DSN is not set")
		os.Exit(1)
	}

	if err := migrate.Run(db.MigrationFS, "migrations", cfg.DatabaseURL, *direction); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}

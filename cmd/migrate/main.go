package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/sirupsen/logrus"

	"github.com/ManuelReschke/comanda/internal/pkg/config"
	"github.com/ManuelReschke/comanda/internal/pkg/env"
)

func main() {
	env.SetupEnvFile()
	log := logrus.WithField("app", "migrate")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]

	dbCfg, err := config.LoadDatabase()
	if err != nil {
		log.WithError(err).Fatal("failed to load database configuration")
	}

	log.WithField("driver", dbCfg.Driver).Info("connecting to database")
	m, err := migrate.New(sourceURL(dbCfg.Driver), databaseURL(dbCfg))
	if err != nil {
		log.WithError(err).Fatal("failed to initialise migrations")
	}
	defer func() {
		if sourceErr, dbErr := m.Close(); sourceErr != nil || dbErr != nil {
			log.Errorf("failed to close migration resources: %v, %v", sourceErr, dbErr)
		}
	}()

	switch command {
	case "up":
		err := m.Up()
		switch {
		case errors.Is(err, migrate.ErrNoChange):
			log.Info("no change: database is up to date")
		case err != nil:
			log.WithError(err).Fatal("failed to run migrations")
		default:
			log.Info("migrations applied")
		}

	case "down":
		if err := m.Steps(-1); err != nil {
			log.WithError(err).Fatal("failed to roll back the last migration")
		}
		log.Info("last migration rolled back")

	case "goto":
		if len(os.Args) < 3 {
			log.Fatal("goto needs a version number")
		}
		version, err := strconv.ParseUint(os.Args[2], 10, 64)
		if err != nil {
			log.WithError(err).Fatal("invalid version number")
		}
		err = m.Migrate(uint(version))
		switch {
		case errors.Is(err, migrate.ErrNoChange):
			log.Infof("no change: database is already at version %d", version)
		case err != nil:
			log.WithError(err).Fatalf("failed to migrate to version %d", version)
		default:
			log.Infof("migrated to version %d", version)
		}

	case "status":
		version, dirty, err := m.Version()
		switch {
		case errors.Is(err, migrate.ErrNilVersion):
			log.Info("no migrations applied yet")
		case err != nil:
			log.WithError(err).Fatal("failed to read migration version")
		default:
			log.WithField("dirty", dirty).Infof("current migration version: %d", version)
		}

	default:
		printUsage()
		os.Exit(1)
	}
}

func sourceURL(driver string) string {
	return "file://migrations/" + driver
}

// databaseURL turns DATABASE_URL into a golang-migrate URL. Postgres URLs are
// used as they are; a MySQL DSN gets the scheme prefix and multi statements.
func databaseURL(cfg config.Database) string {
	if cfg.Driver != "mysql" || strings.HasPrefix(cfg.URL, "mysql://") {
		return cfg.URL
	}
	url := "mysql://" + cfg.URL
	if strings.Contains(url, "multiStatements=") {
		return url
	}
	if strings.Contains(url, "?") {
		return url + "&multiStatements=true"
	}
	return url + "?multiStatements=true"
}

func printUsage() {
	fmt.Println("Usage: go run ./cmd/migrate [command]")
	fmt.Println("Commands:")
	fmt.Println("  up     - apply all pending migrations")
	fmt.Println("  down   - roll back the last migration")
	fmt.Println("  goto N - migrate to version N")
	fmt.Println("  status - show the current migration version")
}

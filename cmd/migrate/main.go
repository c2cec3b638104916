// Command migrate applies the gateway schema migrations.
package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/erp/commerce-recurly/internal/infrastructure/config"
	"github.com/erp/commerce-recurly/internal/infrastructure/logger"
	"github.com/erp/commerce-recurly/internal/infrastructure/migration"
	"github.com/erp/commerce-recurly/migrations"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

const usage = `Recurly gateway database migration tool

Usage:
  migrate [flags] <command> [arguments]

Commands:
  up                    Apply all pending migrations
  down                  Roll back all migrations
  step <n>              Apply n migrations (positive=up, negative=down)
  goto <version>        Migrate up or down to a specific version
  version               Show current migration version
  force <version>       Force set migration version (repairs a dirty database)
  create <name> [desc]  Create the next migration file pair (needs -path)
  list                  List available migrations

Flags:
  -path string          Migrations directory (default: the set built into the binary)
  -log-level string     Log level: debug, info, warn, error (default: info)

The database is configured like the server, e.g. RECURLY_GW_DATABASE_HOST
and RECURLY_GW_DATABASE_PASSWORD.

Examples:
  migrate up
  migrate step -1
  migrate -path ./migrations create add_gateway_label_index "Index gateway labels"
`

var errUsage = errors.New("invalid usage")

// dbCommands run against a connected migrator.
var dbCommands = map[string]func(m *migration.Migrator, args []string, log *zap.Logger) error{
	"up": func(m *migration.Migrator, _ []string, _ *zap.Logger) error {
		return m.Up()
	},
	"down": func(m *migration.Migrator, _ []string, _ *zap.Logger) error {
		return m.Down()
	},
	"step": func(m *migration.Migrator, args []string, _ *zap.Logger) error {
		n, err := intArg(args, "step count")
		if err != nil {
			return err
		}
		return m.Steps(n)
	},
	"goto": func(m *migration.Migrator, args []string, _ *zap.Logger) error {
		n, err := intArg(args, "target version")
		if err != nil {
			return err
		}
		if n < 0 {
			return fmt.Errorf("%w: target version must not be negative", errUsage)
		}
		return m.GoTo(uint(n))
	},
	"force": func(m *migration.Migrator, args []string, _ *zap.Logger) error {
		n, err := intArg(args, "version")
		if err != nil {
			return err
		}
		return m.Force(n)
	},
	"version": func(m *migration.Migrator, _ []string, log *zap.Logger) error {
		version, dirty, err := m.Version()
		if err != nil {
			return err
		}
		if version == 0 {
			log.Info("No migrations applied")
			return nil
		}
		log.Info("Current migration version", zap.Uint("version", version), zap.Bool("dirty", dirty))
		return nil
	},
}

func main() {
	migrationsPath := flag.String("path", "", "Read migrations from this directory instead of the embedded set")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	log, err := logger.New(logger.Config{
		Level:   *logLevel,
		Format:  "console",
		Output:  "stdout",
		Service: "commerce-recurly-migrate",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(log, *migrationsPath, flag.Arg(0), flag.Args()[1:]); err != nil {
		log.Error("Migration command failed", zap.String("command", flag.Arg(0)), zap.Error(err))
		if errors.Is(err, errUsage) {
			flag.Usage()
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(log *zap.Logger, path, command string, args []string) error {
	if path != "" {
		abs, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("resolve migrations path: %w", err)
		}
		path = abs
	}

	switch command {
	case "create":
		return create(log, path, args)
	case "list":
		return list(path)
	}

	exec, ok := dbCommands[command]
	if !ok {
		return fmt.Errorf("%w: unknown command %q", errUsage, command)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	m, err := migration.New(db, migration.Source{FS: migrations.FS, Path: path}, log)
	if err != nil {
		return err
	}
	defer m.Close()

	log.Info("Running migration command", zap.String("command", command), zap.String("migrations_path", path))
	return exec(m, args, log)
}

func create(log *zap.Logger, path string, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: create needs a migration name", errUsage)
	}
	if path == "" {
		return fmt.Errorf("%w: create needs -path pointing at the migrations directory", errUsage)
	}
	description := ""
	if len(args) > 1 {
		description = args[1]
	}

	mf, err := migration.CreateMigration(path, args[0], description)
	if err != nil {
		return err
	}
	log.Info("Migration created",
		zap.String("version", mf.Version),
		zap.String("up_file", mf.UpPath),
		zap.String("down_file", mf.DownPath),
	)
	return nil
}

func list(path string) error {
	var fsys fs.FS = migrations.FS
	if path != "" {
		fsys = os.DirFS(path)
	}
	all, err := migration.ListMigrations(fsys)
	if err != nil {
		return err
	}
	for _, m := range all {
		fmt.Println(m)
	}
	return nil
}

func intArg(args []string, name string) (int, error) {
	if len(args) == 0 {
		return 0, fmt.Errorf("%w: %s required", errUsage, name)
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s %q", errUsage, name, args[0])
	}
	return n, nil
}

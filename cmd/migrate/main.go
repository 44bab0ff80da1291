package main

import (
	"context"
	"flag"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/elskow/users-api/internal/migration"
	"github.com/elskow/users-api/internal/server"
)

type command func(ctx context.Context, m *migration.Migrator) error

var target = flag.Int64("version", 0, "target version for down-to")

var commands = map[string]command{
	"up": func(ctx context.Context, m *migration.Migrator) error {
		if err := m.Up(ctx); err != nil {
			return err
		}
		log.Println("Successfully ran migrations")
		return nil
	},
	"down": func(ctx context.Context, m *migration.Migrator) error {
		if err := m.Down(ctx); err != nil {
			return err
		}
		log.Println("Successfully rolled back one migration")
		return nil
	},
	"down-to": func(ctx context.Context, m *migration.Migrator) error {
		if err := m.DownTo(ctx, *target); err != nil {
			return err
		}
		log.Printf("Successfully rolled back to version %d", *target)
		return nil
	},
	"status": func(ctx context.Context, m *migration.Migrator) error {
		return m.Status(ctx)
	},
	"version": func(ctx context.Context, m *migration.Migrator) error {
		version, err := m.Version(ctx)
		if err != nil {
			return err
		}
		latest, err := m.LatestVersion()
		if err != nil {
			return err
		}
		log.Printf("Current migration version: %d (latest available: %d)", version, latest)
		return nil
	},
	"reset": func(ctx context.Context, m *migration.Migrator) error {
		if err := m.Reset(ctx); err != nil {
			return err
		}
		log.Println("Successfully reset migrations")
		return nil
	},
}

func names() string {
	keys := make([]string, 0, len(commands))
	for k := range commands {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, "/")
}

func main() {
	name := flag.String("command", "up", "migration command ("+names()+")")
	flag.Parse()

	run, ok := commands[*name]
	if !ok {
		log.Fatalf("Unknown command %q, expected one of %s", *name, names())
	}

	if os.Getenv("APP_ENV") == "" {
		os.Setenv("APP_ENV", server.EnvDevelopment)
	}

	cfg, err := server.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	migrator, err := migration.NewMigrator(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to create migrator: %v", err)
	}

	err = run(context.Background(), migrator)
	migrator.Close()
	if err != nil {
		log.Fatalf("migrate %s: %v", *name, err)
	}
}

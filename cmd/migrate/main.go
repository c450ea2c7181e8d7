// Command migrate applies the embedded PostgreSQL schema migrations.
//
//	migrate [-dsn URL | -config FILE] -up | -down | -steps N | -version | -force N
package main

import (
	"embed"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"

	"github.com/JaimeStill/courier/internal/config"
)

//go:embed migrations/*.sql
var migrations embed.FS

const envDSN = "COURIER_DB_DSN"

var errConflictingActions = errors.New("choose one of -up, -down, -steps, -version, -force")

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(2)
	}

	if err := run(opts, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}

type action int

const (
	actionNone action = iota
	actionUp
	actionDown
	actionSteps
	actionVersion
	actionForce
)

type options struct {
	dsn    string
	config string
	action action
	steps  int
	force  int
	usage  func()
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	opts := &options{}
	var up, down, version bool

	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.dsn, "dsn", "", "database URL (default from "+envDSN+" or the config file)")
	fs.StringVar(&opts.config, "config", config.BaseConfigFile, "config file supplying the [database] section")
	fs.BoolVar(&up, "up", false, "apply all pending migrations")
	fs.BoolVar(&down, "down", false, "revert all migrations")
	fs.IntVar(&opts.steps, "steps", 0, "apply N migrations, or revert when negative")
	fs.BoolVar(&version, "version", false, "print the current migration version")
	fs.IntVar(&opts.force, "force", -1, "force the recorded version without migrating")
	opts.usage = func() {
		fmt.Fprintln(stderr, "usage: migrate [-dsn URL | -config FILE] -up | -down | -steps N | -version | -force N")
		fs.PrintDefaults()
	}
	fs.Usage = opts.usage

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	var chosen []action
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "up":
			if up {
				chosen = append(chosen, actionUp)
			}
		case "down":
			if down {
				chosen = append(chosen, actionDown)
			}
		case "steps":
			if opts.steps != 0 {
				chosen = append(chosen, actionSteps)
			}
		case "version":
			if version {
				chosen = append(chosen, actionVersion)
			}
		case "force":
			chosen = append(chosen, actionForce)
		}
	})

	switch len(chosen) {
	case 0:
	case 1:
		opts.action = chosen[0]
	default:
		return nil, errConflictingActions
	}
	return opts, nil
}

// resolveDSN prefers -dsn, then COURIER_DB_DSN, then the config file.
func (o *options) resolveDSN() (string, error) {
	if o.dsn != "" {
		return o.dsn, nil
	}
	if dsn := os.Getenv(envDSN); dsn != "" {
		return dsn, nil
	}
	db, err := config.LoadDatabase(o.config)
	if err != nil {
		return "", fmt.Errorf("load database config: %w", err)
	}
	return db.URL(), nil
}

func run(opts *options, stdout io.Writer) error {
	if opts.action == actionNone {
		opts.usage()
		return nil
	}

	dsn, err := opts.resolveDSN()
	if err != nil {
		return err
	}

	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("open migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, dsn)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer m.Close()

	switch opts.action {
	case actionVersion:
		v, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			fmt.Fprintln(stdout, "no migrations applied")
			return nil
		}
		if err != nil {
			return fmt.Errorf("read version: %w", err)
		}
		fmt.Fprintf(stdout, "version: %d, dirty: %v\n", v, dirty)
		return nil
	case actionForce:
		if err := m.Force(opts.force); err != nil {
			return fmt.Errorf("force version %d: %w", opts.force, err)
		}
		fmt.Fprintf(stdout, "forced to version %d\n", opts.force)
		return nil
	case actionUp:
		err = m.Up()
	case actionDown:
		err = m.Down()
	case actionSteps:
		err = m.Steps(opts.steps)
	}

	if errors.Is(err, migrate.ErrNoChange) {
		fmt.Fprintln(stdout, "no change")
		return nil
	}
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	fmt.Fprintln(stdout, "migrations applied")
	return nil
}

// Command courier expands local container files and prints the lineage
// result as JSON.
//
//	courier [-depth N] [-workers N] [-scratch DIR] [-timeout D] [-config FILE] [-keep] path...
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/JaimeStill/courier/internal/config"
	"github.com/JaimeStill/courier/pkg/preprocess"
)

func main() {
	// Variables already set in the environment win over .env entries.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "courier: load .env:", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()

	os.Exit(code)
}

type options struct {
	config  string
	depth   int
	workers int
	scratch string
	timeout string
	keep    bool
	paths   []string
	set     map[string]bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	opts := &options{}

	fs := flag.NewFlagSet("courier", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.config, "config", config.BaseConfigFile, "config file")
	fs.IntVar(&opts.depth, "depth", 3, "maximum nesting depth to expand (default from config)")
	fs.IntVar(&opts.workers, "workers", 1, "concurrent expansions (default from config)")
	fs.StringVar(&opts.scratch, "scratch", "", "scratch directory (default from config)")
	fs.StringVar(&opts.timeout, "timeout", "", "run timeout, e.g. 5m (default from config)")
	fs.BoolVar(&opts.keep, "keep", false, "keep extracted files after printing the result")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: courier [flags] path...")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	opts.set = make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { opts.set[f.Name] = true })

	opts.paths = fs.Args()
	if len(opts.paths) == 0 {
		fs.Usage()
		return nil, preprocess.ErrNoPaths
	}

	return opts, nil
}

// apply overrides cfg with the flags given on the command line.
func (o *options) apply(cfg *config.PreprocessConfig) error {
	if o.set["depth"] {
		if o.depth < 0 {
			return fmt.Errorf("%w: %d", preprocess.ErrInvalidDepth, o.depth)
		}
		depth := o.depth
		cfg.MaxDepth = &depth
	}
	if o.set["workers"] {
		if o.workers < 1 {
			return fmt.Errorf("invalid workers: %d", o.workers)
		}
		cfg.Workers = o.workers
	}
	if o.set["scratch"] {
		cfg.ScratchDir = o.scratch
	}
	if o.set["timeout"] {
		if _, err := time.ParseDuration(o.timeout); err != nil {
			return fmt.Errorf("invalid timeout: %w", err)
		}
		cfg.Timeout = o.timeout
	}
	return nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	local, err := config.LoadLocal(opts.config)
	if err != nil {
		slog.New(slog.NewTextHandler(stderr, nil)).Error("config load failed", "error", err)
		return 1
	}

	logger := local.Log.Logger(stderr)
	cfg := &local.Preprocess

	if err := opts.apply(cfg); err != nil {
		logger.Error("invalid options", "error", err)
		return 1
	}

	pc, err := cfg.ProcessorConfig()
	if err != nil {
		logger.Error("invalid options", "error", err)
		return 1
	}

	result, err := preprocess.New(pc, logger).ProcessBatch(ctx, opts.paths, cfg.Depth())
	if err != nil {
		logger.Error("preprocess failed", "error", err)
		return 1
	}

	if !opts.keep {
		defer func() {
			if err := result.Cleanup(); err != nil {
				logger.Warn("scratch cleanup failed", "dir", result.ScratchDir, "error", err)
			}
		}()
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		logger.Error("write result failed", "error", err)
		return 1
	}

	return 0
}

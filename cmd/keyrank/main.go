// Command keyrank prints the ranked keyphrases of a document or of every
// supported document under a directory.
//
// Usage:
//
//	keyrank [flags] <log-config> <lang> <file-or-dir>
//
// The log config is a YAML file (level, format, output, add_source), or
// "-" for warnings on stderr.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/brunobiangulo/keyrank"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	configPath string
	timeout    time.Duration
	noSemantic bool
	force      bool
	dbPath     string
	jsonOut    bool
	watch      string
	parallel   int
}

func usage(fs *flag.FlagSet) func() {
	return func() {
		fmt.Fprintf(fs.Output(), "usage: keyrank [flags] <log-config> <lang> <file-or-dir>\n\nflags:\n")
		fs.PrintDefaults()
	}
}

func run(args []string, stdout, stderr io.Writer) int {
	var o options
	fs := flag.NewFlagSet("keyrank", flag.ContinueOnError)
	fs.StringVar(&o.configPath, "config", "", "engine config file (YAML)")
	fs.DurationVar(&o.timeout, "timeout", 0, "per-document run timeout (0 keeps the config value)")
	fs.BoolVar(&o.noSemantic, "no-semantic", false, "skip the semantic pass")
	fs.BoolVar(&o.force, "force", false, "re-run documents whose cached result is current")
	fs.StringVar(&o.dbPath, "db", "", "result store path; \"none\" runs without a store")
	fs.BoolVar(&o.jsonOut, "json", false, "print JSON documents instead of score/phrase lines")
	fs.StringVar(&o.watch, "watch", "", "re-scan on a cron schedule, e.g. \"@every 5m\"")
	fs.IntVar(&o.parallel, "parallel", 4, "documents parsed concurrently")
	fs.SetOutput(stderr)
	fs.Usage = usage(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 3 || o.parallel < 1 {
		fs.Usage()
		return 2
	}
	logPath, code, target := fs.Arg(0), fs.Arg(1), fs.Arg(2)

	logCfg, err := loadLogConfig(logPath)
	if err != nil {
		return report(stderr, err)
	}
	logger, logCloser, err := newLogger(logCfg)
	if err != nil {
		return report(stderr, err)
	}
	defer logCloser.Close()
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("loading .env", "error", err)
	}

	cfg, err := engineConfig(o, code)
	if err != nil {
		return report(stderr, err)
	}

	engine, err := keyrank.New(cfg)
	if err != nil {
		return report(stderr, err)
	}
	defer engine.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ex := &extractor{engine: engine, out: stdout, parallel: o.parallel, jsonOut: o.jsonOut}
	if o.noSemantic {
		ex.opts = append(ex.opts, keyrank.WithoutSemantic())
	}
	if o.force {
		ex.opts = append(ex.opts, keyrank.WithForceRerun())
	}

	if o.watch != "" {
		if err := watch(ctx, o.watch, ex, target); err != nil {
			return report(stderr, err)
		}
		return 0
	}

	if err := ex.scan(ctx, target); err != nil {
		return report(stderr, err)
	}
	return 0
}

// report prints err once under the program name. Engine errors already
// carry it.
func report(w io.Writer, err error) int {
	msg := err.Error()
	if !strings.HasPrefix(msg, "keyrank: ") {
		msg = "keyrank: " + msg
	}
	fmt.Fprintln(w, msg)
	return 1
}

// engineConfig layers the config file, KEYRANK_* variables and flags.
func engineConfig(o options, code string) (keyrank.Config, error) {
	cfg, err := keyrank.LoadConfig(o.configPath)
	if err != nil {
		return cfg, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}

	cfg.Language = code
	switch o.dbPath {
	case "":
	case "none":
		cfg.DBPath = ""
		cfg.StorageDir = "none"
		cfg.SenseStore = false
	default:
		cfg.DBPath = o.dbPath
	}
	if o.timeout > 0 {
		cfg.TimeoutMS = int(o.timeout / time.Millisecond)
	}
	if o.noSemantic {
		cfg.DisableSemantic = true
	}
	return cfg, cfg.Validate()
}

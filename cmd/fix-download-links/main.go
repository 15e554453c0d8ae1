package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v2"

	"github.com/thesavant42/fix-download-links/internal/config"
	"github.com/thesavant42/fix-download-links/internal/ui"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	app := newApp()
	if err := app.RunContext(ctx, os.Args); err != nil {
		stop()
		ui.PrintError(os.Stderr, err.Error())
		os.Exit(exitCode(err))
	}
	stop()
}

// exitCode is 2 for configuration mistakes and 1 for everything else
func exitCode(err error) int {
	if errors.Is(err, config.ErrInvalidConfig) || errors.Is(err, ErrUnsupportedStore) {
		return 2
	}
	return 1
}

func newApp() *cli.App {
	return &cli.App{
		Name:           "fix-download-links",
		Usage:          "rewrite stale download links in dataset instances",
		DefaultCommand: "run",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "store",
				Usage: "store URI: mongodb://, postgres://, sqlite://path or a .db file (default $LINKFIX_STORE_URI, $MONGODB_URI, " + config.DefaultStoreURI + ")",
			},
			&cli.StringFlag{
				Name:  "database",
				Usage: "mongo database name (default " + config.DefaultDatabase + ")",
			},
			&cli.StringFlag{
				Name:  "collection",
				Usage: "collection or table holding instances (default " + config.DefaultCollection + ")",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "enable debug logging",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "append logs to this file instead of stderr",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "rewrite matching links (dry-run unless --live)",
				Flags:  append(fixFlags(), runFlags()...),
				Action: RunAction,
			},
			{
				Name:   "scan",
				Usage:  "count links each rule would still rewrite",
				Flags:  append(fixFlags(), scanFlags()...),
				Action: ScanAction,
			},
			{
				Name:      "import",
				Usage:     "load instance documents (JSON array or JSONL) into a SQL store",
				ArgsUsage: "<file>... (- for stdin)",
				Action:    ImportAction,
			},
			{
				Name:  "rules",
				Usage: "print the effective rewrite rules as YAML",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "rules", Usage: "YAML rules file replacing the built-in rules"},
				},
				Action: RulesAction,
			},
		},
	}
}

// fixFlags are shared by run and scan
func fixFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "formats",
			Usage: "comma-separated download formats (default xlsx,xls,csv,csvw)",
		},
		&cli.IntFlag{
			Name:  "limit",
			Usage: "documents per format and rule (default 10)",
		},
		&cli.StringFlag{
			Name:  "rules",
			Usage: "YAML rules file replacing the built-in rules",
		},
	}
}

// loadConfig merges defaults, .env and environment, then command-line flags
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if c.IsSet("store") {
		cfg.StoreURI = c.String("store")
	}
	if c.IsSet("database") {
		cfg.Database = c.String("database")
	}
	if c.IsSet("collection") {
		cfg.Collection = c.String("collection")
	}
	if c.IsSet("verbose") {
		cfg.Verbose = c.Bool("verbose")
	}

	if c.IsSet("formats") {
		cfg.Fix.Formats = config.SplitList(c.String("formats"))
	}
	if c.IsSet("limit") {
		cfg.Fix.Limit = c.Int("limit")
	}
	if c.IsSet("rules") {
		rules, err := config.LoadRules(c.String("rules"))
		if err != nil {
			return nil, err
		}
		cfg.Fix.Rules = rules
	}
	if c.IsSet("skip-unchanged") {
		cfg.Fix.SkipUnchanged = c.Bool("skip-unchanged")
	}
	if c.IsSet("until-clean") {
		cfg.Fix.UntilClean = c.Bool("until-clean")
	}
	if c.IsSet("max-passes") {
		cfg.Fix.MaxPasses = c.Int("max-passes")
	}
	if c.IsSet("dry-run") {
		cfg.Fix.DryRun = c.Bool("dry-run")
	}
	if c.Bool("live") {
		if c.IsSet("dry-run") && c.Bool("dry-run") {
			return nil, fmt.Errorf("%w: --live and --dry-run cannot both be set", config.ErrInvalidConfig)
		}
		cfg.Fix.DryRun = false
	}
	if c.IsSet("audit-file") {
		cfg.Audit.File = c.String("audit-file")
	}
	if c.IsSet("audit-bucket") {
		cfg.Audit.Bucket = c.String("audit-bucket")
	}

	return cfg, nil
}

// newLogger logs to stderr, or appends to path when set
func newLogger(verbose bool, path string) (*log.Logger, func() error, error) {
	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}

	var w io.Writer = os.Stderr
	closeFn := func() error { return nil }
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		w = f
		closeFn = f.Close
	}

	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Prefix:          "fixer",
		Level:           level,
	})
	return logger, closeFn, nil
}

// session bundles what every store-backed command opens
type session struct {
	cfg    *config.Config
	logger *log.Logger
	store  *storeHandle
	closes []func() error
}

func openSession(c *cli.Context) (*session, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	logger, closeLog, err := newLogger(cfg.Verbose, c.String("log-file"))
	if err != nil {
		return nil, err
	}

	store, err := openStore(c.Context, cfg, logger)
	if err != nil {
		_ = closeLog()
		return nil, err
	}
	return &session{cfg: cfg, logger: logger, store: store, closes: []func() error{closeLog}}, nil
}

func (s *session) Close() {
	if err := s.store.Close(); err != nil {
		s.logger.Warn("Failed to close store", "err", err)
	}
	for _, fn := range s.closes {
		_ = fn()
	}
}

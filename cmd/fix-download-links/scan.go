package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/thesavant42/fix-download-links/internal/config"
	"github.com/thesavant42/fix-download-links/internal/db"
	"github.com/thesavant42/fix-download-links/internal/fixer"
	"github.com/thesavant42/fix-download-links/internal/models"
	"github.com/thesavant42/fix-download-links/internal/ui"
)

func scanFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{Name: "plain", Usage: "no spinner; for scripts and CI"},
		&cli.StringFlag{Name: "markdown", Usage: "also write the scan as a markdown report to this file"},
	}
}

// ScanAction reports how many links each rule would still rewrite
func ScanAction(c *cli.Context) error {
	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.Close()

	f, err := fixer.New(s.store, s.cfg.Fix, fixer.WithLogger(s.logger), fixer.WithPrinter(nil))
	if err != nil {
		return err
	}

	var rows []models.ScanRow
	scan := func(ctx context.Context) error {
		var err error
		rows, err = f.Scan(ctx)
		return err
	}
	if c.Bool("plain") {
		err = scan(c.Context)
	} else {
		err = ui.RunWithSpinner(c.Context, fmt.Sprintf("Scanning %s...", s.store), scan)
	}
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	fmt.Fprint(c.App.Writer, ui.RenderScanTable(rows))
	s.logger.Debug("Scan complete", "remaining", fixer.Remaining(rows))

	if path := c.String("markdown"); path != "" {
		if err := os.WriteFile(path, []byte(ui.GenerateMarkdownReport(s.store.String(), rows)), 0o644); err != nil {
			return fmt.Errorf("failed to write markdown report: %w", err)
		}
		ui.PrintSuccess(c.App.ErrWriter, fmt.Sprintf("Report written to %s", path))
	}
	return nil
}

// ImportAction loads instance documents into a SQL-backed store
func ImportAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("%w: import needs at least one file (- for stdin)", config.ErrInvalidConfig)
	}

	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.Close()

	if s.store.sql == nil {
		return fmt.Errorf("%w: import writes to sqlite or postgres stores, not %s", ErrUnsupportedStore, s.store.kind)
	}

	total := 0
	for _, name := range c.Args().Slice() {
		n, err := importFile(c.Context, s.store.sql, name, c.App.Reader)
		if err != nil {
			return err
		}
		s.logger.Info("Imported", "file", name, "documents", n)
		total += n
	}
	ui.PrintSuccess(c.App.ErrWriter, fmt.Sprintf("Imported %d documents into %s", total, s.store))
	return nil
}

func importFile(ctx context.Context, store *db.DB, name string, stdin io.Reader) (int, error) {
	if name == "-" {
		return store.Import(ctx, stdin)
	}
	f, err := os.Open(name)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer f.Close()

	n, err := store.Import(ctx, f)
	if err != nil {
		return 0, fmt.Errorf("failed to import %s: %w", name, err)
	}
	return n, nil
}

// RulesAction prints the effective rules in rules-file format
func RulesAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if err := cfg.Fix.Validate(); err != nil {
		return err
	}

	out, err := config.MarshalRules(cfg.Fix.Rules)
	if err != nil {
		return fmt.Errorf("failed to render rules: %w", err)
	}
	_, err = c.App.Writer.Write(out)
	return err
}

package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v2"

	"github.com/thesavant42/fix-download-links/internal/audit"
	"github.com/thesavant42/fix-download-links/internal/config"
	"github.com/thesavant42/fix-download-links/internal/fixer"
	"github.com/thesavant42/fix-download-links/internal/ui"
)

func runFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{Name: "dry-run", Usage: "print rewrites without writing (default true)"},
		&cli.BoolFlag{Name: "live", Usage: "write rewrites to the store"},
		&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "skip the live-run confirmation"},
		&cli.BoolFlag{Name: "skip-unchanged", Usage: "don't write or count values the rule would leave unchanged"},
		&cli.BoolFlag{Name: "until-clean", Usage: "repeat passes until nothing is rewritten (live only)"},
		&cli.IntFlag{Name: "max-passes", Usage: "upper bound on passes with --until-clean (default 20)"},
		&cli.StringFlag{Name: "audit-file", Usage: "append a JSONL record of every rewrite to this file"},
		&cli.StringFlag{Name: "audit-bucket", Usage: "upload the run's JSONL record to this S3 bucket"},
	}
}

// RunAction rewrites stale links
func RunAction(c *cli.Context) error {
	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.Close()

	fix := s.cfg.Fix
	if !fix.DryRun && !c.Bool("yes") {
		ok, err := ui.ConfirmLiveRun(ui.LivePlan{
			Store:      s.store.String(),
			Formats:    fix.Formats,
			Rules:      ruleNames(fix),
			Limit:      fix.Limit,
			UntilClean: fix.UntilClean,
		})
		if err != nil {
			return fmt.Errorf("confirmation failed (use --yes to skip): %w", err)
		}
		if !ok {
			ui.PrintWarning(c.App.ErrWriter, "live run cancelled")
			return nil
		}
	}

	journal, err := openJournal(s.cfg.Audit)
	if err != nil {
		return err
	}
	defer journal.Close()

	f, err := fixer.New(s.store, fix,
		fixer.WithLogger(s.logger),
		fixer.WithPrinter(audit.NewPrinter(c.App.Writer)),
		fixer.WithJournal(journal),
	)
	if err != nil {
		return err
	}

	s.logger.Info("Starting run", "run_id", f.RunID(), "store", s.store, "dry_run", fix.DryRun, "limit", fix.Limit)
	ui.PrintHeader(c.App.ErrWriter, s.store.String(), fix.DryRun)

	report, runErr := f.Run(c.Context)
	fmt.Fprint(c.App.ErrWriter, ui.RenderRunSummary(report))

	if s.cfg.Audit.Bucket != "" {
		// upload even a partial record; it lives past a failed run
		if err := uploadJournal(context.WithoutCancel(c.Context), s.cfg.Audit, f.RunID(), journal, s.logger); err != nil {
			if runErr != nil {
				s.logger.Error("Failed to upload audit record", "err", err)
				return runErr
			}
			return err
		}
	}
	if runErr != nil {
		return fmt.Errorf("run %s failed after %d rewrites: %w", f.RunID(), report.Done, runErr)
	}

	if fix.DryRun && report.Done > 0 {
		ui.PrintSuccess(c.App.ErrWriter, "Dry run complete. Re-run with --live to apply.")
	}
	return nil
}

// openJournal returns a file-backed journal when a file is configured, an
// in-memory one when only a bucket is, and nil otherwise
func openJournal(cfg config.AuditConfig) (*audit.Journal, error) {
	switch {
	case cfg.File != "":
		return audit.CreateJournal(cfg.File)
	case cfg.Bucket != "":
		return audit.NewJournal(), nil
	}
	return nil, nil
}

func uploadJournal(ctx context.Context, cfg config.AuditConfig, runID string, journal *audit.Journal, logger *log.Logger) error {
	if journal.Len() == 0 {
		logger.Debug("Nothing to upload", "run_id", runID)
		return nil
	}

	uploader, err := audit.NewS3Uploader(audit.S3Config{
		Endpoint:  cfg.Endpoint,
		Region:    cfg.Region,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		Bucket:    cfg.Bucket,
		UseSSL:    cfg.UseSSL,
	})
	if err != nil {
		return fmt.Errorf("failed to configure audit upload: %w", err)
	}

	location, err := uploader.Upload(ctx, audit.ObjectKey(cfg.KeyPrefix, runID), journal.Bytes())
	if err != nil {
		return fmt.Errorf("failed to upload audit record: %w", err)
	}
	logger.Info("Uploaded audit record", "location", location, "records", journal.Len())
	return nil
}

func ruleNames(fix config.Fix) []string {
	names := make([]string, 0, len(fix.Rules))
	for _, r := range fix.Rules {
		names = append(names, r.Name)
	}
	return names
}

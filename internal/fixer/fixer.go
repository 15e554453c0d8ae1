// Package fixer rewrites stale download links in instance documents.
//
// For every configured format and rule the fixer finds at most Limit
// documents whose link matches the rule's pattern, replaces the rule's From
// substring with To, and writes the single field back. Re-run until the
// reported count is zero, or enable UntilClean.
package fixer

import (
	"context"
	"fmt"
	"os"
	"regexp"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/thesavant42/fix-download-links/internal/audit"
	"github.com/thesavant42/fix-download-links/internal/config"
	"github.com/thesavant42/fix-download-links/internal/models"
)

// Store is the document store the fixer reads from and writes to
type Store interface {
	// Find returns up to q.Limit documents whose field matches q.Pattern
	Find(ctx context.Context, q models.FindQuery) ([]models.Match, error)
	// Count returns how many documents have a field matching q.Pattern
	Count(ctx context.Context, q models.CountQuery) (int64, error)
	// UpdateLink sets one field on the document with u.ID, provided the
	// field still equals u.Old, and reports whether a document matched
	UpdateLink(ctx context.Context, u models.Update) (bool, error)
}

// Option configures a Fixer built by New
type Option func(*Fixer)

// WithLogger sets the diagnostic logger
func WithLogger(l *log.Logger) Option {
	return func(f *Fixer) { f.logger = l }
}

// WithPrinter sets where run output goes; defaults to stdout
func WithPrinter(p *audit.Printer) Option {
	return func(f *Fixer) { f.printer = p }
}

// WithJournal records every rewrite outcome
func WithJournal(j *audit.Journal) Option {
	return func(f *Fixer) { f.journal = j }
}

// WithRunID overrides the generated run identifier
func WithRunID(id string) Option {
	return func(f *Fixer) { f.runID = id }
}

type compiledRule struct {
	models.Rule
	re *regexp.Regexp
}

// Fixer applies rewrite rules to a Store
type Fixer struct {
	store   Store
	cfg     config.Fix
	rules   []compiledRule
	logger  *log.Logger
	printer *audit.Printer
	journal *audit.Journal
	runID   string
}

// New validates cfg and returns a fixer bound to store
func New(store Store, cfg config.Fix, opts ...Option) (*Fixer, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", config.ErrInvalidConfig)
	}
	cfg.Formats = append([]string(nil), cfg.Formats...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	rules := make([]compiledRule, 0, len(cfg.Rules))
	for _, r := range cfg.Rules {
		re, err := r.Compile()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
		}
		rules = append(rules, compiledRule{Rule: r, re: re})
	}

	f := &Fixer{
		store:   store,
		cfg:     cfg,
		rules:   rules,
		printer: audit.NewPrinter(os.Stdout),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.runID == "" {
		f.runID = uuid.NewString()
	}
	return f, nil
}

// RunID returns the identifier stamped on this fixer's audit records
func (f *Fixer) RunID() string {
	return f.runID
}

// Config returns the validated configuration
func (f *Fixer) Config() config.Fix {
	return f.cfg
}

// passResult tallies a single sweep over all formats and rules
type passResult struct {
	done      int
	effective int // done rewrites whose value actually changed
}

// Run sweeps every (format, rule) pair once, or repeatedly when UntilClean
// is set in live mode. The report is returned even when the run fails
// part-way.
func (f *Fixer) Run(ctx context.Context) (models.Report, error) {
	report := models.Report{RunID: f.runID, DryRun: f.cfg.DryRun}

	passes := 1
	if f.cfg.UntilClean {
		if f.cfg.DryRun {
			f.warn("Repeat mode ignored in dry-run; the store never changes so it cannot converge")
		} else {
			passes = f.cfg.MaxPasses
		}
	}

	for pass := 1; pass <= passes; pass++ {
		report.Passes = pass
		res, err := f.sweep(ctx, &report)
		if err != nil {
			f.printer.Summary(report.Done)
			return report, err
		}
		f.debug("Pass complete", "pass", pass, "done", res.done, "effective", res.effective)

		if res.done == 0 {
			break
		}
		if res.effective == 0 {
			if passes > 1 {
				f.warn("Pass changed no values, stopping", "pass", pass, "done", res.done)
			}
			break
		}
		if pass == passes && passes > 1 {
			f.warn("Max passes reached with matches remaining", "passes", passes)
		}
	}

	f.printer.Summary(report.Done)
	return report, nil
}

func (f *Fixer) sweep(ctx context.Context, report *models.Report) (passResult, error) {
	var res passResult
	for _, format := range f.cfg.Formats {
		f.printer.Processing(format)
		for _, rule := range f.rules {
			if err := f.apply(ctx, format, rule, report, &res); err != nil {
				return res, err
			}
		}
	}
	return res, nil
}

// apply runs one rule against one format
func (f *Fixer) apply(ctx context.Context, format string, rule compiledRule, report *models.Report, res *passResult) error {
	path := models.FieldPath(format, rule.Field)

	matches, err := f.store.Find(ctx, models.FindQuery{
		Field:    path,
		Pattern:  rule.re,
		Contains: f.requiredSubstring(rule),
		Limit:    f.cfg.Limit,
	})
	if err != nil {
		return fmt.Errorf("failed to find %s for rule %s: %w", path, rule.Name, err)
	}
	f.debug("Matches found", "field", path, "rule", rule.Name, "count", len(matches))

	for _, m := range matches {
		if err := ctx.Err(); err != nil {
			return err
		}

		newValue, found := rule.Rewrite(m.Value)
		rw := models.Rewrite{
			RunID:     f.runID,
			Rule:      rule.Name,
			Format:    format,
			Field:     path,
			ID:        m.ID,
			Old:       m.Value,
			New:       newValue,
			DryRun:    f.cfg.DryRun,
			Unchanged: !found,
		}

		if rw.Unchanged {
			if f.cfg.SkipUnchanged {
				rw.Skipped = true
				report.Skipped++
				f.warn("Skipping value without target substring", "id", m.ID, "field", path, "value", m.Value)
				if err := f.journal.Record(rw); err != nil {
					return err
				}
				continue
			}
			f.warn("Value matched pattern but not substring; rewrite is a no-op", "id", m.ID, "field", path, "rule", rule.Name)
		}

		if err := f.printer.Attempt(rw); err != nil {
			return err
		}

		if !f.cfg.DryRun {
			ok, err := f.store.UpdateLink(ctx, models.Update{
				ID:    m.ID,
				Field: path,
				Old:   m.Value,
				New:   newValue,
			})
			if err != nil {
				return fmt.Errorf("failed to apply rule %s: %w", rule.Name, err)
			}
			if !ok {
				rw.Conflict = true
				report.Conflicts++
				f.warn("Document changed since it was read, not updated", "id", m.ID, "field", path)
				if err := f.journal.Record(rw); err != nil {
					return err
				}
				continue
			}
			rw.Applied = true
		}

		report.Count(rw)
		res.done++
		if !rw.Unchanged {
			res.effective++
		}
		if err := f.journal.Record(rw); err != nil {
			return err
		}
	}
	return nil
}

// requiredSubstring narrows finds to values the rule can change when the
// no-op guard is on, so unfixable values don't take up the limit
func (f *Fixer) requiredSubstring(rule compiledRule) string {
	if f.cfg.SkipUnchanged {
		return rule.From
	}
	return ""
}

func (f *Fixer) warn(msg string, keyvals ...any) {
	if f.logger != nil {
		f.logger.Warn(msg, keyvals...)
	}
}

func (f *Fixer) debug(msg string, keyvals ...any) {
	if f.logger != nil {
		f.logger.Debug(msg, keyvals...)
	}
}

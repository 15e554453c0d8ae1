package models

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultFormats are the keys of the downloads map that get inspected
var DefaultFormats = []string{"xlsx", "xls", "csv", "csvw"}

// Rule describes one stale-link correction: documents whose Field matches
// Pattern get the first occurrence of From replaced by To
type Rule struct {
	Name    string    `yaml:"name" json:"name"`
	Field   LinkField `yaml:"field" json:"field"`
	Pattern string    `yaml:"pattern" json:"pattern"`
	From    string    `yaml:"from" json:"from"`
	To      string    `yaml:"to" json:"to"`
}

// DefaultRules returns the built-in corrections for retired download domains and buckets
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:    "cmd-download-domain",
			Field:   FieldHref,
			Pattern: `onsdigital`,
			From:    "//download.cmd.onsdigital.co.uk/",
			To:      "//download.ons.gov.uk/",
		},
		{
			Name:    "beta-download-domain",
			Field:   FieldHref,
			Pattern: `download.beta.ons`,
			From:    "//download.beta.ons.",
			To:      "//download.ons.",
		},
		{
			Name:    "static-bucket",
			Field:   FieldPublic,
			Pattern: `static-cmd\.s3`,
			From:    "//static-cmd.s3",
			To:      "//ons-dp-production-static.s3",
		},
	}
}

// Validate checks the rule is complete and its pattern compiles
func (r Rule) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("rule name cannot be empty")
	}
	if !r.Field.Valid() {
		return fmt.Errorf("rule %s: invalid field %q (want href or public)", r.Name, r.Field)
	}
	if r.Pattern == "" {
		return fmt.Errorf("rule %s: pattern cannot be empty", r.Name)
	}
	if r.From == "" {
		return fmt.Errorf("rule %s: from cannot be empty", r.Name)
	}
	if _, err := regexp.Compile(r.Pattern); err != nil {
		return fmt.Errorf("rule %s: invalid pattern: %w", r.Name, err)
	}
	return nil
}

// Compile returns the rule's pattern as a regular expression
func (r Rule) Compile() (*regexp.Regexp, error) {
	re, err := regexp.Compile(r.Pattern)
	if err != nil {
		return nil, fmt.Errorf("rule %s: invalid pattern: %w", r.Name, err)
	}
	return re, nil
}

// Rewrite applies the literal substitution to value. The second result
// reports whether From occurred in value at all; when it didn't the value is
// returned unchanged.
func (r Rule) Rewrite(value string) (string, bool) {
	if !strings.Contains(value, r.From) {
		return value, false
	}
	return strings.Replace(value, r.From, r.To, 1), true
}

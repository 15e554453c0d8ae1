package models

import (
	"regexp"
	"strings"
)

// FindQuery selects up to Limit documents whose Field matches Pattern and,
// when Contains is set, also holds Contains as a literal substring
type FindQuery struct {
	Field    string // dotted path, see FieldPath
	Pattern  *regexp.Regexp
	Contains string
	Limit    int
}

// Matches reports whether value satisfies the query
func (q FindQuery) Matches(value string) bool {
	return matchLink(q.Pattern, q.Contains, value)
}

// CountQuery counts documents whose Field matches Pattern (and Contains)
type CountQuery struct {
	Field    string
	Pattern  *regexp.Regexp
	Contains string
}

// Matches reports whether value would be counted by q
func (q CountQuery) Matches(value string) bool {
	return matchLink(q.Pattern, q.Contains, value)
}

func matchLink(re *regexp.Regexp, contains, value string) bool {
	if !re.MatchString(value) {
		return false
	}
	return contains == "" || strings.Contains(value, contains)
}

// Match is one document returned by a find: its store-native identifier
// and the current value of the queried field
type Match struct {
	ID    any
	Value string
}

// Update sets Field to New on the document identified by ID, provided the
// field still holds Old
type Update struct {
	ID    any
	Field string
	Old   string
	New   string
}

// Rewrite is the audit record of one attempted link change
type Rewrite struct {
	RunID     string `json:"run_id"`
	Rule      string `json:"rule"`
	Format    string `json:"format"`
	Field     string `json:"field"`
	ID        any    `json:"id"`
	Old       string `json:"old"`
	New       string `json:"new"`
	DryRun    bool   `json:"dry_run"`
	Unchanged bool   `json:"unchanged,omitempty"` // From was absent; New == Old
	Skipped   bool   `json:"skipped,omitempty"`   // unchanged and guarded, never written
	Applied   bool   `json:"applied,omitempty"`
	Conflict  bool   `json:"conflict,omitempty"` // document changed between find and update
}

// RuleCount is the number of rewrites done for one (format, rule) pair
type RuleCount struct {
	Format string
	Rule   string
	Done   int
}

// Report summarises a fixer run
type Report struct {
	RunID     string
	DryRun    bool
	Done      int // rewrites performed, or simulated in dry-run
	Applied   int
	Unchanged int
	Skipped   int
	Conflicts int
	Passes    int
	Counts    []RuleCount
}

// add records n rewrites against the (format, rule) pair
func (r *Report) add(format, rule string, n int) {
	for i := range r.Counts {
		if r.Counts[i].Format == format && r.Counts[i].Rule == rule {
			r.Counts[i].Done += n
			return
		}
	}
	r.Counts = append(r.Counts, RuleCount{Format: format, Rule: rule, Done: n})
}

// Count records one counted rewrite
func (r *Report) Count(rw Rewrite) {
	r.Done++
	if rw.Applied {
		r.Applied++
	}
	if rw.Unchanged {
		r.Unchanged++
	}
	r.add(rw.Format, rw.Rule, 1)
}

// DoneFor returns the number of rewrites counted for the (format, rule) pair
func (r Report) DoneFor(format, rule string) int {
	for _, c := range r.Counts {
		if c.Format == format && c.Rule == rule {
			return c.Done
		}
	}
	return 0
}

// HostCount is the number of sampled stale links on one registrable domain
type HostCount struct {
	Host  string
	Count int
}

// ScanRow reports how many documents still match one (format, rule) pair
type ScanRow struct {
	Format  string
	Rule    string
	Field   string
	Matches int64
	Hosts   []HostCount
}

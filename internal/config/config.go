package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/thesavant42/fix-download-links/internal/models"
)

const (
	DefaultLimit      = 10
	DefaultMaxPasses  = 20
	DefaultDatabase   = "datasets"
	DefaultCollection = "instances"
	DefaultStoreURI   = "mongodb://localhost:27017"
	DefaultAuditKey   = "fix-download-links"
)

// ErrInvalidConfig wraps every validation failure
var ErrInvalidConfig = errors.New("invalid configuration")

var formatPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Config is the full configuration of one invocation: where the
// instances live, what to rewrite, and where to record it
type Config struct {
	StoreURI   string
	Database   string
	Collection string
	Verbose    bool
	Fix        Fix
	Audit      AuditConfig
}

// Fix is the explicit configuration of a fixer run
type Fix struct {
	Formats       []string
	Limit         int  // per (format, rule) pair, per pass
	DryRun        bool // no writes when true
	SkipUnchanged bool // don't write or count values lacking the rule's From substring
	UntilClean    bool // repeat passes until nothing matches (live mode only)
	MaxPasses     int
	Rules         []models.Rule
}

// AuditConfig says where rewrite records go. An empty File and Bucket
// disable the journal.
type AuditConfig struct {
	File      string // local JSONL journal, empty to disable
	Bucket    string // upload the journal here when set
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	KeyPrefix string
}

// DefaultFix returns the fixer defaults: dry-run, limit 10, built-in formats and rules
func DefaultFix() Fix {
	return Fix{
		Formats:   append([]string(nil), models.DefaultFormats...),
		Limit:     DefaultLimit,
		DryRun:    true,
		MaxPasses: DefaultMaxPasses,
		Rules:     models.DefaultRules(),
	}
}

// Load reads configuration from a .env file (if present) and the environment
func Load() (*Config, error) {
	_ = godotenv.Load()

	fix := DefaultFix()

	if raw := strings.TrimSpace(os.Getenv("LINKFIX_FORMATS")); raw != "" {
		fix.Formats = SplitList(raw)
	}

	var err error
	if fix.Limit, err = envInt("LINKFIX_LIMIT", fix.Limit); err != nil {
		return nil, err
	}
	if fix.MaxPasses, err = envInt("LINKFIX_MAX_PASSES", fix.MaxPasses); err != nil {
		return nil, err
	}
	if fix.DryRun, err = envBool("LINKFIX_DRY_RUN", fix.DryRun); err != nil {
		return nil, err
	}
	if fix.SkipUnchanged, err = envBool("LINKFIX_SKIP_UNCHANGED", fix.SkipUnchanged); err != nil {
		return nil, err
	}
	if fix.UntilClean, err = envBool("LINKFIX_UNTIL_CLEAN", fix.UntilClean); err != nil {
		return nil, err
	}

	if path := strings.TrimSpace(os.Getenv("LINKFIX_RULES_FILE")); path != "" {
		rules, err := LoadRules(path)
		if err != nil {
			return nil, err
		}
		fix.Rules = rules
	}

	verbose, err := envBool("LINKFIX_VERBOSE", false)
	if err != nil {
		return nil, err
	}

	audit, err := loadAuditConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		StoreURI:   firstNonEmpty(strings.TrimSpace(os.Getenv("LINKFIX_STORE_URI")), strings.TrimSpace(os.Getenv("MONGODB_URI")), DefaultStoreURI),
		Database:   firstNonEmpty(strings.TrimSpace(os.Getenv("LINKFIX_DATABASE")), DefaultDatabase),
		Collection: firstNonEmpty(strings.TrimSpace(os.Getenv("LINKFIX_COLLECTION")), DefaultCollection),
		Verbose:    verbose,
		Fix:        fix,
		Audit:      audit,
	}, nil
}

func loadAuditConfig() (AuditConfig, error) {
	useSSL, err := envBool("LINKFIX_AUDIT_S3_USE_SSL", true)
	if err != nil {
		return AuditConfig{}, err
	}
	return AuditConfig{
		File:      strings.TrimSpace(os.Getenv("LINKFIX_AUDIT_FILE")),
		Bucket:    strings.TrimSpace(os.Getenv("LINKFIX_AUDIT_BUCKET")),
		Endpoint:  firstNonEmpty(strings.TrimSpace(os.Getenv("LINKFIX_AUDIT_S3_ENDPOINT")), "s3.amazonaws.com"),
		Region:    firstNonEmpty(strings.TrimSpace(os.Getenv("LINKFIX_AUDIT_S3_REGION")), strings.TrimSpace(os.Getenv("AWS_REGION")), "eu-west-2"),
		AccessKey: firstNonEmpty(strings.TrimSpace(os.Getenv("LINKFIX_AUDIT_S3_ACCESS_KEY")), strings.TrimSpace(os.Getenv("AWS_ACCESS_KEY_ID"))),
		SecretKey: firstNonEmpty(strings.TrimSpace(os.Getenv("LINKFIX_AUDIT_S3_SECRET_KEY")), strings.TrimSpace(os.Getenv("AWS_SECRET_ACCESS_KEY"))),
		UseSSL:    useSSL,
		KeyPrefix: firstNonEmpty(strings.TrimSpace(os.Getenv("LINKFIX_AUDIT_KEY_PREFIX")), DefaultAuditKey),
	}, nil
}

// Validate checks a fix configuration and normalizes its format set:
// duplicates are dropped keeping first-seen order
func (f *Fix) Validate() error {
	formats := make([]string, 0, len(f.Formats))
	seen := make(map[string]bool)
	for _, format := range f.Formats {
		format = strings.TrimSpace(format)
		if format == "" || seen[format] {
			continue
		}
		if !formatPattern.MatchString(format) {
			return fmt.Errorf("%w: format %q must be alphanumeric", ErrInvalidConfig, format)
		}
		seen[format] = true
		formats = append(formats, format)
	}
	if len(formats) == 0 {
		return fmt.Errorf("%w: at least one format is required", ErrInvalidConfig)
	}
	f.Formats = formats

	if f.Limit <= 0 {
		return fmt.Errorf("%w: limit must be positive, got %d", ErrInvalidConfig, f.Limit)
	}
	if f.UntilClean && f.MaxPasses <= 0 {
		return fmt.Errorf("%w: max passes must be positive, got %d", ErrInvalidConfig, f.MaxPasses)
	}
	if len(f.Rules) == 0 {
		return fmt.Errorf("%w: at least one rule is required", ErrInvalidConfig)
	}

	names := make(map[string]bool)
	for _, r := range f.Rules {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		if names[r.Name] {
			return fmt.Errorf("%w: duplicate rule name %q", ErrInvalidConfig, r.Name)
		}
		names[r.Name] = true
	}
	return nil
}

// MaxRewrites is the upper bound on rewrites in a single pass
func (f Fix) MaxRewrites() int {
	return f.Limit * len(f.Rules) * len(f.Formats)
}

// SplitList splits a comma or whitespace separated list
func SplitList(raw string) []string {
	return strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
}

func envInt(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidConfig, key, raw)
	}
	return v, nil
}

func envBool(key string, def bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%w: %s=%q is not a boolean", ErrInvalidConfig, key, raw)
	}
	return v, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

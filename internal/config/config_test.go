package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/thesavant42/fix-download-links/internal/models"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("LINKFIX_STORE_URI", "")
	t.Setenv("MONGODB_URI", "")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, []string{"xlsx", "xls", "csv", "csvw"}, cfg.Fix.Formats)
	require.Equal(t, 10, cfg.Fix.Limit)
	require.True(t, cfg.Fix.DryRun, "dry-run must default to true")
	require.False(t, cfg.Fix.SkipUnchanged)
	require.False(t, cfg.Fix.UntilClean)
	require.Len(t, cfg.Fix.Rules, 3)
	require.Equal(t, "datasets", cfg.Database)
	require.Equal(t, "instances", cfg.Collection)
	require.Equal(t, DefaultStoreURI, cfg.StoreURI)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("LINKFIX_STORE_URI", "sqlite://rehearsal.db")
	t.Setenv("LINKFIX_FORMATS", "csv, xlsx")
	t.Setenv("LINKFIX_LIMIT", "250")
	t.Setenv("LINKFIX_DRY_RUN", "false")
	t.Setenv("LINKFIX_SKIP_UNCHANGED", "true")
	t.Setenv("LINKFIX_AUDIT_BUCKET", "audit")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "sqlite://rehearsal.db", cfg.StoreURI)
	require.Equal(t, []string{"csv", "xlsx"}, cfg.Fix.Formats)
	require.Equal(t, 250, cfg.Fix.Limit)
	require.False(t, cfg.Fix.DryRun)
	require.True(t, cfg.Fix.SkipUnchanged)
	require.Equal(t, "audit", cfg.Audit.Bucket)
	require.Equal(t, DefaultAuditKey, cfg.Audit.KeyPrefix)
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{key: "LINKFIX_LIMIT", value: "ten"},
		{key: "LINKFIX_DRY_RUN", value: "maybe"},
		{key: "LINKFIX_MAX_PASSES", value: "1.5"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.True(t, errors.Is(err, ErrInvalidConfig), "got %v", err)
		})
	}
}

func TestFixValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Fix)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Fix) {}},
		{name: "zero limit", mutate: func(f *Fix) { f.Limit = 0 }, wantErr: true},
		{name: "negative limit", mutate: func(f *Fix) { f.Limit = -3 }, wantErr: true},
		{name: "no formats", mutate: func(f *Fix) { f.Formats = nil }, wantErr: true},
		{name: "blank formats", mutate: func(f *Fix) { f.Formats = []string{" ", ""} }, wantErr: true},
		{name: "format with dot", mutate: func(f *Fix) { f.Formats = []string{"csv.href"} }, wantErr: true},
		{name: "no rules", mutate: func(f *Fix) { f.Rules = nil }, wantErr: true},
		{name: "duplicate rule", mutate: func(f *Fix) { f.Rules = append(f.Rules, f.Rules[0]) }, wantErr: true},
		{name: "until clean without passes", mutate: func(f *Fix) { f.UntilClean = true; f.MaxPasses = 0 }, wantErr: true},
		{name: "invalid rule", mutate: func(f *Fix) { f.Rules = []models.Rule{{Name: "x"}} }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := DefaultFix()
			tt.mutate(&f)
			err := f.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() error %v does not wrap ErrInvalidConfig", err)
			}
		})
	}
}

func TestFixValidateDedupesFormats(t *testing.T) {
	f := DefaultFix()
	f.Formats = []string{"csv", "xlsx", "csv", " xlsx "}
	require.NoError(t, f.Validate())
	require.Equal(t, []string{"csv", "xlsx"}, f.Formats)
	require.Equal(t, 10*3*2, f.MaxRewrites())
}

func TestRulesRoundTripThroughFile(t *testing.T) {
	data, err := MarshalRules(models.DefaultRules())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, data, 0644))

	rules, err := LoadRules(path)
	require.NoError(t, err)
	require.Equal(t, models.DefaultRules(), rules)
}

func TestParseRules(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		want    int
		wantErr bool
	}{
		{
			name: "single rule",
			yaml: `
rules:
  - name: old-bucket
    field: public
    pattern: 'old-bucket\.s3'
    from: //old-bucket.s3
    to: //new-bucket.s3
`,
			want: 1,
		},
		{name: "empty", yaml: "rules: []", wantErr: true},
		{name: "bad field", yaml: "rules:\n  - {name: a, field: size, pattern: a, from: a, to: b}", wantErr: true},
		{name: "not yaml", yaml: "rules: [", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rules, err := ParseRules([]byte(tt.yaml))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseRules() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(rules) != tt.want {
				t.Errorf("ParseRules() = %d rules, want %d", len(rules), tt.want)
			}
		})
	}
}

func TestSplitList(t *testing.T) {
	require.Equal(t, []string{"a", "b", "c"}, SplitList("a, b,c"))
	require.Empty(t, SplitList(" , "))
}

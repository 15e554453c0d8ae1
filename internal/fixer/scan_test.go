package fixer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/thesavant42/fix-download-links/internal/config"
	"github.com/thesavant42/fix-download-links/internal/models"
)

func TestScan(t *testing.T) {
	store := setupStore(t,
		`{"id": "a", "downloads": {"csv": {"href": "http://download.cmd.onsdigital.co.uk/a.csv", "public": "http://static-cmd.s3.amazonaws.com/a.csv"}}}`,
		`{"id": "b", "downloads": {"csv": {"href": "http://download.cmd.onsdigital.co.uk/b.csv"}}}`,
		`{"id": "c", "downloads": {"xls": {"href": "https://download.beta.ons.gov.uk/c.xls"}}}`,
	)
	before, err := store.Document(context.Background(), "a")
	require.NoError(t, err)

	f := newTestFixer(t, store, liveConfig(), nil)
	rows, err := f.Scan(context.Background())
	require.NoError(t, err)

	// one row per (format, rule) pair
	require.Len(t, rows, len(models.DefaultFormats)*len(models.DefaultRules()))
	require.Equal(t, int64(4), Remaining(rows))

	byKey := make(map[string]models.ScanRow)
	for _, r := range rows {
		byKey[r.Format+"/"+r.Rule] = r
	}

	csvHref := byKey["csv/cmd-download-domain"]
	require.Equal(t, int64(2), csvHref.Matches)
	require.Equal(t, "downloads.csv.href", csvHref.Field)
	require.Equal(t, []models.HostCount{{Host: "onsdigital.co.uk", Count: 2}}, csvHref.Hosts)

	require.Equal(t, int64(1), byKey["csv/static-bucket"].Matches)
	require.Equal(t, int64(1), byKey["xls/beta-download-domain"].Matches)
	require.Equal(t, int64(0), byKey["xlsx/cmd-download-domain"].Matches)
	require.Empty(t, byKey["xlsx/cmd-download-domain"].Hosts)

	after, err := store.Document(context.Background(), "a")
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestScanSampleBoundedByLimit(t *testing.T) {
	fake := newFakeStore()
	for _, id := range []string{"a", "b", "c"} {
		fake.put(id, "downloads.csv.href", "http://download.cmd.onsdigital.co.uk/"+id+".csv")
	}

	cfg := config.DefaultFix()
	cfg.Formats = []string{"csv"}
	cfg.Limit = 2
	f := newTestFixer(t, fake, cfg, nil)

	rows, err := f.Scan(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(3), rows[0].Matches)
	require.Equal(t, 2, rows[0].Hosts[0].Count)
}

func TestGroupHosts(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		want   []models.HostCount
	}{
		{
			name:   "empty",
			values: nil,
			want:   []models.HostCount{},
		},
		{
			name: "registrable domains",
			values: []string{
				"http://download.cmd.onsdigital.co.uk/a.csv",
				"https://www.onsdigital.co.uk/b.csv",
				"http://static-cmd.s3.amazonaws.com/c.csv",
			},
			want: []models.HostCount{
				{Host: "onsdigital.co.uk", Count: 2},
				{Host: "static-cmd.s3.amazonaws.com", Count: 1},
			},
		},
		{
			name:   "ties sort by host",
			values: []string{"http://b.example.org/x", "http://a.example.com/y"},
			want: []models.HostCount{
				{Host: "example.com", Count: 1},
				{Host: "example.org", Count: 1},
			},
		},
		{
			name:   "unparsable",
			values: []string{"not a url", "://bad"},
			want:   []models.HostCount{{Host: "(unparsed)", Count: 2}},
		},
		{
			name:   "bare suffix falls back to host",
			values: []string{"http://localhost:9000/x"},
			want:   []models.HostCount{{Host: "localhost", Count: 1}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, GroupHosts(tt.values))
		})
	}
}

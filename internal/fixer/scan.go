package fixer

import (
	"context"
	"fmt"
	"net/url"
	"sort"

	"golang.org/x/net/publicsuffix"

	"github.com/thesavant42/fix-download-links/internal/models"
)

// Scan counts the documents each (format, rule) pair would still touch,
// without modifying anything. Up to Limit matching values per pair are
// sampled and grouped by registrable domain.
func (f *Fixer) Scan(ctx context.Context) ([]models.ScanRow, error) {
	var rows []models.ScanRow
	for _, format := range f.cfg.Formats {
		for _, rule := range f.rules {
			path := models.FieldPath(format, rule.Field)

			contains := f.requiredSubstring(rule)
			n, err := f.store.Count(ctx, models.CountQuery{Field: path, Pattern: rule.re, Contains: contains})
			if err != nil {
				return nil, fmt.Errorf("failed to count %s for rule %s: %w", path, rule.Name, err)
			}

			row := models.ScanRow{
				Format:  format,
				Rule:    rule.Name,
				Field:   path,
				Matches: n,
			}
			if n > 0 {
				sample, err := f.store.Find(ctx, models.FindQuery{Field: path, Pattern: rule.re, Contains: contains, Limit: f.cfg.Limit})
				if err != nil {
					return nil, fmt.Errorf("failed to sample %s for rule %s: %w", path, rule.Name, err)
				}
				values := make([]string, 0, len(sample))
				for _, m := range sample {
					values = append(values, m.Value)
				}
				row.Hosts = GroupHosts(values)
			}
			f.debug("Scanned", "field", path, "rule", rule.Name, "matches", n)
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// Remaining sums the matches of a scan
func Remaining(rows []models.ScanRow) int64 {
	var total int64
	for _, r := range rows {
		total += r.Matches
	}
	return total
}

// GroupHosts counts link values per registrable domain, most frequent first
func GroupHosts(values []string) []models.HostCount {
	counts := make(map[string]int)
	for _, v := range values {
		counts[registrableHost(v)]++
	}

	hosts := make([]models.HostCount, 0, len(counts))
	for h, n := range counts {
		hosts = append(hosts, models.HostCount{Host: h, Count: n})
	}
	sort.Slice(hosts, func(i, j int) bool {
		if hosts[i].Count != hosts[j].Count {
			return hosts[i].Count > hosts[j].Count
		}
		return hosts[i].Host < hosts[j].Host
	})
	return hosts
}

func registrableHost(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return "(unparsed)"
	}
	host := u.Hostname()
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return domain
}

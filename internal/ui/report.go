package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/thesavant42/fix-download-links/internal/models"
)

// maxHostsShown caps the hosts listed per scan row
const maxHostsShown = 3

// PrintHeader prints a styled header naming the store and mode
func PrintHeader(w io.Writer, store string, dryRun bool) {
	mode := SuccessStyle.Render("dry-run")
	if !dryRun {
		mode = WarningStyle.Render("live")
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, TitleStyle.Render("Download link fixer"))
	fmt.Fprintf(w, "%s %s\n", InfoStyle.Render("Store:"), store)
	fmt.Fprintf(w, "%s %s\n", InfoStyle.Render("Mode:"), mode)
	fmt.Fprintln(w)
}

// RenderRunSummary formats a run report, one line per (format, rule) pair
// that had any rewrites
func RenderRunSummary(r models.Report) string {
	var sb strings.Builder

	verb := "rewritten"
	if r.DryRun {
		verb = "would be rewritten"
	}
	sb.WriteString(TitleStyle.Render(fmt.Sprintf("Run %s", r.RunID)))
	sb.WriteString("\n")

	for _, c := range r.Counts {
		fmt.Fprintf(&sb, "  %-6s %-24s %s\n", c.Format, c.Rule, AccentStyle.Render(fmt.Sprintf("%d", c.Done)))
	}

	fmt.Fprintf(&sb, "%s %s", AccentStyle.Render(fmt.Sprintf("%d", r.Done)), NormalStyle.Render(verb))
	if r.Passes > 1 {
		fmt.Fprintf(&sb, " over %d passes", r.Passes)
	}
	sb.WriteString("\n")

	if r.Unchanged > 0 {
		sb.WriteString(WarningStyle.Render(fmt.Sprintf("%d matched the pattern but not the substring (written unchanged)", r.Unchanged)))
		sb.WriteString("\n")
	}
	if r.Skipped > 0 {
		sb.WriteString(HintStyle.Render(fmt.Sprintf("%d skipped as no-ops", r.Skipped)))
		sb.WriteString("\n")
	}
	if r.Conflicts > 0 {
		sb.WriteString(WarningStyle.Render(fmt.Sprintf("%d changed by another writer and left alone", r.Conflicts)))
		sb.WriteString("\n")
	}
	return sb.String()
}

// RenderScanTable formats scan rows as a bordered table.
//
// This is a non-interactive report, so the table structure is built with
// string formatting and lipgloss only colors the text.
func RenderScanTable(rows []models.ScanRow) string {
	if len(rows) == 0 {
		return HintStyle.Render("No formats or rules to scan") + "\n"
	}

	colWidths := []int{6, 24, 24, 8, 36} // Format, Rule, Field, Matches, Hosts
	totalWidth := 2
	for _, w := range colWidths {
		totalWidth += w + 3
	}
	totalWidth -= 1

	separator := strings.Repeat("─", totalWidth-2)
	var sb strings.Builder

	sb.WriteString(BorderStyle.Render("┌"+separator+"┐") + "\n")
	sb.WriteString(HeaderStyle.Render(formatRow(colWidths, "Format", "Rule", "Field", "Matches", "Hosts")) + "\n")
	sb.WriteString(BorderStyle.Render("├"+separator+"┤") + "\n")

	var total int64
	for _, r := range rows {
		total += r.Matches
		line := formatRow(colWidths,
			truncate(r.Format, colWidths[0]),
			truncate(r.Rule, colWidths[1]),
			truncate(r.Field, colWidths[2]),
			fmt.Sprintf("%d", r.Matches),
			truncate(hostSummary(r.Hosts), colWidths[4]),
		)
		if r.Matches > 0 {
			sb.WriteString(AccentStyle.Render(line) + "\n")
		} else {
			sb.WriteString(NormalStyle.Render(line) + "\n")
		}
	}

	sb.WriteString(BorderStyle.Render("└"+separator+"┘") + "\n")
	if total == 0 {
		sb.WriteString(SuccessStyle.Render("No stale links found") + "\n")
	} else {
		sb.WriteString(AccentStyle.Render(fmt.Sprintf("%d stale links remaining", total)) + "\n")
	}
	return sb.String()
}

// GenerateMarkdownReport generates a markdown report of a scan
func GenerateMarkdownReport(store string, rows []models.ScanRow) string {
	var sb strings.Builder

	sb.WriteString("# Stale download links\n\n")
	sb.WriteString(fmt.Sprintf("**Store:** %s\n\n", store))

	if len(rows) == 0 {
		sb.WriteString("No data\n")
		return sb.String()
	}

	sb.WriteString("| Format | Rule | Field | Matches | Hosts |\n")
	sb.WriteString("|--------|------|-------|---------|-------|\n")

	var total int64
	for _, r := range rows {
		total += r.Matches
		sb.WriteString(fmt.Sprintf("| %s | %s | `%s` | %d | %s |\n",
			r.Format, r.Rule, r.Field, r.Matches, hostSummary(r.Hosts)))
	}

	sb.WriteString(fmt.Sprintf("\n**Total:** %d\n", total))
	return sb.String()
}

// PrintSuccess prints a success message
func PrintSuccess(w io.Writer, message string) {
	fmt.Fprintln(w, SuccessStyle.Render(message))
}

// PrintWarning prints a warning message
func PrintWarning(w io.Writer, message string) {
	fmt.Fprintln(w, WarningStyle.Render("Warning: "+message))
}

// PrintError prints an error message
func PrintError(w io.Writer, message string) {
	fmt.Fprintln(w, ErrorStyle.Render("Error: "+message))
}

func formatRow(widths []int, cols ...string) string {
	var sb strings.Builder
	sb.WriteString("│")
	for i, c := range cols {
		fmt.Fprintf(&sb, " %-*s │", widths[i], c)
	}
	return sb.String()
}

func hostSummary(hosts []models.HostCount) string {
	if len(hosts) == 0 {
		return "-"
	}
	parts := make([]string, 0, maxHostsShown+1)
	for i, h := range hosts {
		if i == maxHostsShown {
			parts = append(parts, fmt.Sprintf("+%d more", len(hosts)-maxHostsShown))
			break
		}
		parts = append(parts, fmt.Sprintf("%s (%d)", h.Host, h.Count))
	}
	return strings.Join(parts, ", ")
}

// truncate shortens s to width, marking the cut with "..."
func truncate(s string, width int) string {
	if len(s) <= width {
		return s
	}
	if width <= 3 {
		return s[:width]
	}
	return s[:width-3] + "..."
}

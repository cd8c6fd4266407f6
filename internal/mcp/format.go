package mcp

import (
	"fmt"
	"strings"
)

// FormatSearchResults formats settings results as markdown.
func FormatSearchResults(query string, results []SettingResultOutput) string {
	if len(results) == 0 {
		return fmt.Sprintf("No settings found for \"%s\"", query)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Settings matching \"%s\"\n\n", query))
	sb.WriteString(fmt.Sprintf("Found %d result", len(results)))
	if len(results) != 1 {
		sb.WriteString("s")
	}
	sb.WriteString("\n\n")

	for i, r := range results {
		formatResult(&sb, i+1, r)
	}

	return sb.String()
}

// FormatRecentQueries formats saved queries as a markdown list.
func FormatRecentQueries(queries []string) string {
	if len(queries) == 0 {
		return "No saved queries."
	}

	var sb strings.Builder
	sb.WriteString("## Recent queries\n\n")
	for _, q := range queries {
		fmt.Fprintf(&sb, "- %s\n", q)
	}
	return sb.String()
}

func formatResult(sb *strings.Builder, num int, r SettingResultOutput) {
	fmt.Fprintf(sb, "### %d. %s", num, r.Title)
	if r.Score > 0 {
		fmt.Fprintf(sb, " (score: %.2f)", r.Score)
	}
	sb.WriteString("\n")

	if len(r.Breadcrumbs) > 0 {
		fmt.Fprintf(sb, "**Path:** %s\n", strings.Join(r.Breadcrumbs, " > "))
	}
	if r.Summary != "" {
		fmt.Fprintf(sb, "%s\n", r.Summary)
	}

	switch {
	case r.Action != "":
		fmt.Fprintf(sb, "**Opens:** `%s`", r.Action)
	case r.Class != "":
		fmt.Fprintf(sb, "**Opens:** `%s`", r.Class)
	}
	if r.Key != "" {
		fmt.Fprintf(sb, " (key `%s`)", r.Key)
	}
	sb.WriteString("\n\n")
}

// clampLimit ensures limit is within bounds.
func clampLimit(limit, defaultVal, min, max int) int {
	if limit <= 0 {
		return defaultVal
	}
	if limit < min {
		return min
	}
	if limit > max {
		return max
	}
	return limit
}

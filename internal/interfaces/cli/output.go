package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/turtacn/clauselens/pkg/types/profile"
)

const previewRunes = 96

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// PrintError writes err to stderr in red.
func PrintError(cmd *cobra.Command, err error) {
	if err == nil {
		return
	}
	fmt.Fprintln(cmd.ErrOrStderr(), color.RedString("Error:"), err.Error())
}

func preview(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= previewRunes {
		return s
	}
	r := []rune(s)
	return string(r[:previewRunes-1]) + "…"
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

// renderProfile writes a human summary of p.
func renderProfile(w io.Writer, p *profile.Profile) {
	bold := color.New(color.Bold).SprintFunc()
	q := p.Meta.Quality

	fmt.Fprintf(w, "%s %s\n", bold("Document type:"), p.DocumentType)
	fmt.Fprintf(w, "%s %s\n", bold("Jurisdiction: "), orDash(p.Jurisdiction))
	if len(p.StatutesOrCodes) > 0 {
		fmt.Fprintf(w, "%s %s\n", bold("Statutes:     "), strings.Join(p.StatutesOrCodes, "; "))
	}
	fmt.Fprintf(w, "%s %s\n", bold("Model:        "), p.Meta.Model)
	fmt.Fprintf(w, "%s %d spans, coverage %.3f, mean confidence %.3f\n",
		bold("Quality:      "), q.SpanCount, q.CoverageRatio, q.MeanSpanConfidence)
	for _, f := range q.RedFlags {
		fmt.Fprintln(w, color.RedString("  ! %s", f))
	}

	if len(p.Topics) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, bold("Topics"))
		rows := make([][]string, 0, len(p.Topics))
		for _, t := range p.Topics {
			rows = append(rows, []string{t.Category, fmt.Sprint(t.Count)})
		}
		fmt.Fprint(w, FormatTable([]string{"CATEGORY", "COUNT"}, rows))
	}

	if len(p.ImportantDates) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, bold("Dates"))
		rows := make([][]string, 0, len(p.ImportantDates))
		for _, d := range p.ImportantDates {
			rows = append(rows, []string{d.ISODate, d.Role, fmt.Sprintf("%.2f", d.RoleConfidence), d.RawText})
		}
		fmt.Fprint(w, FormatTable([]string{"DATE", "ROLE", "CONF", "TEXT"}, rows))
	}

	if len(p.Clauses) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, bold("Clauses"))
		for _, c := range p.Clauses {
			conf := fmt.Sprintf("%.2f", c.Confidence)
			if c.Confidence < 0.6 {
				conf = color.YellowString(conf)
			}
			fmt.Fprintf(w, "  [%s] %s / %s: %s\n", conf, c.Section, c.Category, preview(c.Text))
		}
	}

	if len(p.KeyPoints) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, bold("Key points"))
		for _, k := range p.KeyPoints {
			fmt.Fprintf(w, "  - %s\n", preview(k))
		}
	}
}

// renderRefined writes a human summary of r.
func renderRefined(w io.Writer, r *profile.RefinedProfile) {
	bold := color.New(color.Bold).SprintFunc()
	sq := r.Meta.SourceQuality

	fmt.Fprintf(w, "%s %s\n", bold("Document type:"), r.DocumentType)
	fmt.Fprintf(w, "%s %s\n", bold("Jurisdiction: "), orDash(r.Jurisdiction))
	fmt.Fprintf(w, "%s %d used, %d dropped, mean confidence %.3f\n",
		bold("Spans:        "), sq.SpansUsed, sq.SpansDropped, sq.MeanSpanConfidence)
	if r.LegalContext.Scope != "" {
		fmt.Fprintf(w, "%s %s\n", bold("Scope:        "), preview(r.LegalContext.Scope))
	}
	if r.LegalContext.Exemptions != "" {
		fmt.Fprintf(w, "%s %s\n", bold("Exemptions:   "), preview(r.LegalContext.Exemptions))
	}

	for _, b := range profile.Buckets {
		entries := r.Bucket(b)
		if len(entries) == 0 {
			continue
		}
		name := string(b)
		if b == profile.BucketPenalties {
			name = color.RedString(name)
		}
		fmt.Fprintf(w, "\n%s (%d)\n", bold(name), len(entries))
		for _, e := range entries {
			fmt.Fprintf(w, "  - %s\n", preview(e))
		}
	}

	if len(r.Dates) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, bold("Dates"))
		rows := make([][]string, 0, len(r.Dates))
		for _, d := range r.Dates {
			rows = append(rows, []string{d.ISODate, d.Role, fmt.Sprintf("%.3f", d.RoleConfidence), preview(d.Evidence)})
		}
		fmt.Fprint(w, FormatTable([]string{"DATE", "ROLE", "CONF", "EVIDENCE"}, rows))
	}
}

// FormatTable renders headers and rows as an aligned text table.
func FormatTable(headers []string, rows [][]string) string {
	if len(headers) == 0 {
		return ""
	}
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = utf8.RuneCountInString(h)
	}
	for _, row := range rows {
		for i := 0; i < len(row) && i < len(widths); i++ {
			if n := utf8.RuneCountInString(row[i]); n > widths[i] {
				widths[i] = n
			}
		}
	}

	var sb strings.Builder
	writeRow := func(cells []string) {
		sb.WriteString("  ")
		for i := range headers {
			if i > 0 {
				sb.WriteString("  ")
			}
			v := ""
			if i < len(cells) {
				v = cells[i]
			}
			if i == len(headers)-1 {
				sb.WriteString(v)
			} else {
				sb.WriteString(padRight(v, widths[i]))
			}
		}
		sb.WriteString("\n")
	}

	writeRow(headers)
	seps := make([]string, len(headers))
	for i, w := range widths {
		seps[i] = strings.Repeat("-", w)
	}
	writeRow(seps)
	for _, row := range rows {
		writeRow(row)
	}
	return sb.String()
}

func padRight(s string, width int) string {
	n := utf8.RuneCountInString(s)
	if n >= width {
		return s
	}
	return s + strings.Repeat(" ", width-n)
}

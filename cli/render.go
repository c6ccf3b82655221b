package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/grovetools/pulse/internal/daemon/command"
	"github.com/grovetools/pulse/pkg/models"
)

// whenFields are checked in order for the item's time column.
var whenFields = []string{"start", "due", "when", "at"}

func newTable(headers ...string) *table.Table {
	t := DefaultTheme
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(t.Border).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return t.Header
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
}

func itemWhen(it models.Item) string {
	for _, f := range whenFields {
		if v := it.Field(f); v != "" {
			return v
		}
	}
	return ""
}

// RenderItems writes a table of coded items.
func RenderItems(w io.Writer, items []models.Item) {
	t := DefaultTheme
	if len(items) == 0 {
		fmt.Fprintln(w, t.Muted.Render("  (no items)"))
		return
	}
	tbl := newTable("CODE", "TITLE", "STATUS", "WHEN")
	for _, it := range items {
		tbl.Row(
			t.CodeStyle(it.Category).Render(it.Code.String()),
			it.Title(),
			it.Field("status"),
			itemWhen(it),
		)
	}
	fmt.Fprintln(w, tbl.String())
}

// RenderSnapshot writes the requested sections. No sections means all.
func RenderSnapshot(w io.Writer, snap *models.Snapshot, sections []models.Section) {
	t := DefaultTheme
	if len(sections) == 0 {
		sections = models.Sections
	}
	fmt.Fprintln(w, t.Muted.Render(fmt.Sprintf("version %d, updated %s", snap.Version, snap.UpdatedAt.Local().Format("15:04:05"))))
	for _, sec := range sections {
		fmt.Fprintln(w)
		fmt.Fprintln(w, t.Section.Render(strings.ToUpper(string(sec))))
		switch sec {
		case models.SectionSummary:
			renderSummary(w, snap.Summary)
		case models.SectionStatus:
			renderStatus(w, snap.Status)
		default:
			RenderItems(w, snap.Items(sec))
		}
	}
}

func renderSummary(w io.Writer, s models.Summary) {
	t := DefaultTheme
	if s.Text == "" && len(s.Highlights) == 0 {
		fmt.Fprintln(w, t.Muted.Render("  (empty)"))
		return
	}
	if s.Text != "" {
		fmt.Fprintln(w, "  "+s.Text)
	}
	for _, h := range s.Highlights {
		fmt.Fprintln(w, "  - "+h)
	}
}

func renderStatus(w io.Writer, s models.Status) {
	t := DefaultTheme
	if s.Message != "" {
		fmt.Fprintln(w, "  "+s.Message)
	}
	if len(s.Collectors) == 0 {
		fmt.Fprintln(w, t.Muted.Render("  (no collectors have run)"))
		return
	}
	tbl := newTable("COLLECTOR", "ITEMS", "LAST RUN", "ERROR")
	for _, name := range sortedKeys(s.Collectors) {
		cs := s.Collectors[name]
		last := ""
		if !cs.LastRun.IsZero() {
			last = cs.LastRun.Local().Format("15:04:05")
		}
		errText := ""
		if cs.Error != "" {
			errText = t.Error.Render(cs.Error)
		}
		tbl.Row(name, fmt.Sprint(cs.Items), last, errText)
	}
	fmt.Fprintln(w, tbl.String())
}

// RenderReport writes one line per command segment.
func RenderReport(w io.Writer, report *command.Report) {
	t := DefaultTheme
	for _, o := range report.Outcomes {
		mark := t.Success.Render("ok")
		if !o.OK() {
			mark = t.Error.Render(string(o.Kind))
		}
		line := fmt.Sprintf("[%d] %s  %s", o.Index, mark, o.Segment)
		switch {
		case o.Error != "":
			line += "  " + t.Muted.Render(o.Error)
		case o.Message != "":
			line += "  " + o.Message
		}
		fmt.Fprintln(w, line)
		if o.Item != nil && o.OK() {
			RenderItems(w, []models.Item{*o.Item})
		}
	}
}

// RenderCodes writes the code table.
func RenderCodes(w io.Writer, entries []models.CodeEntry) {
	t := DefaultTheme
	if len(entries) == 0 {
		fmt.Fprintln(w, t.Muted.Render("no codes assigned"))
		return
	}
	tbl := newTable("CODE", "CATEGORY", "KEY", "PRESENT")
	for _, e := range entries {
		cat, _ := models.ParseCategory(e.Category)
		present := t.Muted.Render("no")
		if e.Present {
			present = t.Success.Render("yes")
		}
		tbl.Row(t.CodeStyle(cat).Render(e.Code), e.Category, e.Key, present)
	}
	fmt.Fprintln(w, tbl.String())
}

// RenderVerbs writes the verb table.
func RenderVerbs(w io.Writer, verbs []models.VerbInfo) {
	tbl := newTable("VERB", "ALIASES", "CODE", "DESCRIPTION")
	for _, v := range verbs {
		tbl.Row(v.Name, strings.Join(v.Aliases, ", "), v.Code, v.Description)
	}
	fmt.Fprintln(w, tbl.String())
}

func sortedKeys(m map[string]models.CollectorStatus) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

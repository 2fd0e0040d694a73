// Package export writes harvest results to an xlsx workbook: one sheet
// with every business, one with contactable businesses, and one per
// category.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/harvest-cli/internal/model"
)

const (
	sheetAll     = "All Businesses"
	sheetContact = "With Contact Info"

	// Excel rejects sheet names longer than 31 characters.
	maxSheetName = 31

	// maxColWidth keeps description columns readable instead of
	// page-wide.
	maxColWidth = 60
)

var columns = []struct {
	header string
	value  func(model.BusinessRecord) string
}{
	{"Name", func(r model.BusinessRecord) string { return r.Name }},
	{"Category", func(r model.BusinessRecord) string { return r.Category }},
	{"Description", func(r model.BusinessRecord) string { return r.Description }},
	{"Address", func(r model.BusinessRecord) string { return r.Address }},
	{"Phone", func(r model.BusinessRecord) string { return r.Phone }},
	{"Email", func(r model.BusinessRecord) string { return r.Email }},
	{"Website", func(r model.BusinessRecord) string { return r.Website }},
	{"Source_URL", func(r model.BusinessRecord) string { return r.SourceURL }},
}

// Summary reports what a Write produced.
type Summary struct {
	Path        string `json:"path"`
	Records     int    `json:"records"`
	WithContact int    `json:"with_contact"`
	Sheets      int    `json:"sheets"`
}

// Sink writes workbooks to a fixed path.
type Sink struct {
	path string
}

func NewSink(path string) *Sink {
	return &Sink{path: path}
}

// Write renders recs into a workbook. With partial set the file name
// gains a _partial suffix so an interrupted run never masquerades as a
// finished export.
func (s *Sink) Write(recs []model.BusinessRecord, partial bool) (*Summary, error) {
	path := s.path
	if partial {
		path = partialPath(path)
	}

	f := xlsx.NewFile()
	seen := map[string]bool{}

	if err := addSheet(f, seen, sheetAll, recs); err != nil {
		return nil, err
	}

	var contactable []model.BusinessRecord
	for _, r := range recs {
		if r.HasContact() {
			contactable = append(contactable, r)
		}
	}
	if err := addSheet(f, seen, sheetContact, contactable); err != nil {
		return nil, err
	}

	for _, g := range groupByCategory(recs) {
		if err := addSheet(f, seen, g.name, g.recs); err != nil {
			return nil, err
		}
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, eris.Wrapf(err, "export: create directory %s", dir)
		}
	}
	if err := f.Save(path); err != nil {
		return nil, eris.Wrapf(err, "export: save workbook %s", path)
	}

	return &Summary{
		Path:        path,
		Records:     len(recs),
		WithContact: len(contactable),
		Sheets:      len(f.Sheets),
	}, nil
}

// addSheet writes one sheet: bold header, one row per record, column
// widths sized to content.
func addSheet(f *xlsx.File, seen map[string]bool, name string, recs []model.BusinessRecord) error {
	name = uniqueSheetName(seen, name)

	sheet, err := f.AddSheet(name)
	if err != nil {
		return eris.Wrapf(err, "export: add sheet %s", name)
	}

	headerStyle := xlsx.NewStyle()
	headerStyle.Font = *xlsx.NewFont(11, "Calibri")
	headerStyle.Font.Bold = true
	headerStyle.ApplyFont = true

	widths := make([]int, len(columns))

	header := sheet.AddRow()
	for i, col := range columns {
		cell := header.AddCell()
		cell.SetString(col.header)
		cell.SetStyle(headerStyle)
		widths[i] = utf8.RuneCountInString(col.header)
	}

	for _, rec := range recs {
		row := sheet.AddRow()
		for i, col := range columns {
			v := col.value(rec)
			row.AddCell().SetString(v)
			if n := utf8.RuneCountInString(v); n > widths[i] {
				widths[i] = n
			}
		}
	}

	for i, w := range widths {
		w += 2
		if w > maxColWidth {
			w = maxColWidth
		}
		sheet.SetColWidth(i, i, float64(w))
	}
	return nil
}

type categoryGroup struct {
	name string
	recs []model.BusinessRecord
}

// groupByCategory splits multi-category records on the chain's ", "
// joiner, so a business tagged twice appears on both sheets.
func groupByCategory(recs []model.BusinessRecord) []categoryGroup {
	byName := map[string][]model.BusinessRecord{}
	for _, r := range recs {
		for _, cat := range strings.Split(r.Category, ", ") {
			cat = strings.TrimSpace(cat)
			if cat == "" {
				continue
			}
			byName[cat] = append(byName[cat], r)
		}
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	groups := make([]categoryGroup, 0, len(names))
	for _, name := range names {
		groups = append(groups, categoryGroup{name: name, recs: byName[name]})
	}
	return groups
}

// uniqueSheetName sanitizes name for Excel and de-collides it against
// sheets already in the workbook.
func uniqueSheetName(seen map[string]bool, name string) string {
	base := sanitizeSheetName(name)

	candidate := truncateRunes(base, maxSheetName)
	for n := 2; seen[strings.ToLower(candidate)]; n++ {
		suffix := fmt.Sprintf(" (%d)", n)
		candidate = truncateRunes(base, maxSheetName-utf8.RuneCountInString(suffix)) + suffix
	}
	seen[strings.ToLower(candidate)] = true
	return candidate
}

func sanitizeSheetName(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '[', ']', ':', '*', '?', '/', '\\':
			return -1
		}
		return r
	}, name)
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	if cleaned == "" {
		return "Uncategorized"
	}
	return cleaned
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:max]))
}

// partialPath inserts a _partial marker before the extension.
func partialPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "_partial" + ext
}

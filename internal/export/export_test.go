package export

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/harvest-cli/internal/model"
)

func testRecords() []model.BusinessRecord {
	return []model.BusinessRecord{
		{
			Name:      "Esoteric Brewing",
			Category:  "Restaurants",
			Address:   "918 E McMillan St, Cincinnati, OH 45206",
			Phone:     "513-555-0142",
			Email:     "info@esotericbrewing.com",
			Website:   "https://esotericbrewing.com",
			SourceURL: "https://thevoiceofblackcincinnati.com/black-owned-business/esoteric-brewing/",
		},
		{
			Name:      "Alpha Barbershop",
			Category:  "Beauty and Barber",
			Phone:     "513-555-0107",
			SourceURL: "https://thevoiceofblackcincinnati.com/black-owned-business/alpha-barbershop/",
		},
		{
			Name:      "Quiet Consulting",
			Category:  "Restaurants, Catering",
			SourceURL: "https://thevoiceofblackcincinnati.com/black-owned-business/quiet-consulting/",
		},
	}
}

func writeWorkbook(t *testing.T, recs []model.BusinessRecord, partial bool) (*Summary, *xlsx.File) {
	t.Helper()
	sink := NewSink(filepath.Join(t.TempDir(), "results.xlsx"))
	sum, err := sink.Write(recs, partial)
	require.NoError(t, err)

	f, err := xlsx.OpenFile(sum.Path)
	require.NoError(t, err)
	return sum, f
}

func sheetValues(t *testing.T, sheet *xlsx.Sheet) [][]string {
	t.Helper()
	var rows [][]string
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return rows
}

func TestSink_Write_AllBusinessesSheet(t *testing.T) {
	sum, f := writeWorkbook(t, testRecords(), false)

	assert.Equal(t, 3, sum.Records)

	sheet, ok := f.Sheet["All Businesses"]
	require.True(t, ok)

	rows := sheetValues(t, sheet)
	require.Len(t, rows, 4) // header + 3 records
	assert.Equal(t, []string{
		"Name", "Category", "Description", "Address", "Phone", "Email", "Website", "Source_URL",
	}, rows[0])
	assert.Equal(t, "Esoteric Brewing", rows[1][0])
	assert.Equal(t, "513-555-0142", rows[1][4])
	assert.Equal(t, "https://thevoiceofblackcincinnati.com/black-owned-business/esoteric-brewing/", rows[1][7])
}

func TestSink_Write_ContactSheetFiltersRecords(t *testing.T) {
	_, f := writeWorkbook(t, testRecords(), false)

	sheet, ok := f.Sheet["With Contact Info"]
	require.True(t, ok)

	rows := sheetValues(t, sheet)
	require.Len(t, rows, 3) // header + the two records with contact fields
	assert.Equal(t, "Esoteric Brewing", rows[1][0])
	assert.Equal(t, "Alpha Barbershop", rows[2][0])
}

func TestSink_Write_CategorySheets(t *testing.T) {
	sum, f := writeWorkbook(t, testRecords(), false)

	// Multi-category records land on every matching sheet.
	restaurants, ok := f.Sheet["Restaurants"]
	require.True(t, ok)
	assert.Len(t, sheetValues(t, restaurants), 3)

	catering, ok := f.Sheet["Catering"]
	require.True(t, ok)
	assert.Len(t, sheetValues(t, catering), 2)

	_, ok = f.Sheet["Beauty and Barber"]
	assert.True(t, ok)

	assert.Equal(t, 5, sum.Sheets) // 2 fixed + 3 categories
}

func TestSink_Write_EmptyRecords(t *testing.T) {
	sum, f := writeWorkbook(t, nil, false)

	assert.Equal(t, 0, sum.Records)
	assert.Equal(t, 2, sum.Sheets)

	rows := sheetValues(t, f.Sheet["All Businesses"])
	assert.Len(t, rows, 1) // header only
}

func TestSink_Write_PartialSuffix(t *testing.T) {
	sink := NewSink(filepath.Join(t.TempDir(), "results.xlsx"))
	sum, err := sink.Write(testRecords(), true)
	require.NoError(t, err)

	assert.Equal(t, "results_partial.xlsx", filepath.Base(sum.Path))
	_, err = xlsx.OpenFile(sum.Path)
	assert.NoError(t, err)
}

func TestSink_Write_SanitizesCategorySheetNames(t *testing.T) {
	recs := []model.BusinessRecord{
		{Name: "A", Category: `Kids[Fun]:Club?/\*`, SourceURL: "https://example.com/a/"},
		{Name: "B", Category: "Professional Services and Business Development Consulting", SourceURL: "https://example.com/b/"},
	}
	_, f := writeWorkbook(t, recs, false)

	_, ok := f.Sheet["KidsFunClub"]
	assert.True(t, ok)

	// Long names cut to Excel's 31-character limit.
	_, ok = f.Sheet["Professional Services and Busin"]
	assert.True(t, ok)
}

func TestUniqueSheetName_Collisions(t *testing.T) {
	seen := map[string]bool{}
	assert.Equal(t, "Sales", uniqueSheetName(seen, "Sales*"))
	assert.Equal(t, "Sales (2)", uniqueSheetName(seen, "Sales?"))
	assert.Equal(t, "sales (3)", uniqueSheetName(seen, "sales"))
}

func TestPartialPath(t *testing.T) {
	assert.Equal(t, "results_partial.xlsx", partialPath("results.xlsx"))
	assert.Equal(t, filepath.Join("out", "r_partial.xlsx"), partialPath(filepath.Join("out", "r.xlsx")))
	assert.Equal(t, "results_partial", partialPath("results"))
}

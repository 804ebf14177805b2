package export

import (
	"fmt"
	"strings"

	"reportal/internal/aggregate"
	"reportal/internal/core"

	"github.com/xuri/excelize/v2"
)

// Document is a renderable table. Summary, when present, becomes a second
// sheet named "Summary Statistics".
type Document struct {
	Sheet   string
	Columns []string
	Rows    [][]string
	Summary *aggregate.Summary
}

const summarySheet = "Summary Statistics"

// Render produces the xlsx bytes for a document. Every cell passes
// through sanitization first so control characters from free-text fields
// cannot corrupt the workbook.
func Render(doc Document) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := doc.Sheet
	if sheet == "" {
		sheet = "Report"
	}
	sheet = sanitizeSheetName(sheet)
	f.SetSheetName("Sheet1", sheet)

	widths := make([]int, len(doc.Columns))
	header := make([]any, len(doc.Columns))
	for i, col := range doc.Columns {
		col = SanitizeCell(col)
		header[i] = col
		widths[i] = len(col)
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header row: %w", err)
	}

	for r, row := range doc.Rows {
		cells := make([]any, len(row))
		for c, val := range row {
			val = SanitizeCell(val)
			cells[c] = val
			if c < len(widths) && len(val) > widths[c] {
				widths[c] = len(val)
			}
		}
		addr, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return nil, fmt.Errorf("cell address for row %d: %w", r, err)
		}
		if err := f.SetSheetRow(sheet, addr, &cells); err != nil {
			return nil, fmt.Errorf("write row %d: %w", r, err)
		}
	}

	for i, w := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, fmt.Errorf("column name %d: %w", i, err)
		}
		if err := f.SetColWidth(sheet, col, col, float64(w+4)); err != nil {
			return nil, fmt.Errorf("set column width: %w", err)
		}
	}

	if doc.Summary != nil {
		if err := writeSummary(f, *doc.Summary); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSummary(f *excelize.File, s aggregate.Summary) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}
	rows := [][]any{
		{"Statistic", "Value"},
		{"Count", s.Count},
		{"Sum", s.Sum.String()},
		{"Average", s.Average.String()},
	}
	for i, row := range rows {
		addr, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("summary cell address: %w", err)
		}
		if err := f.SetSheetRow(summarySheet, addr, &row); err != nil {
			return fmt.Errorf("write summary row: %w", err)
		}
	}
	return nil
}

// Template builds a blank upload workbook for a kind. The header row lists
// the kind's fields in schema order so a filled copy round-trips through
// the bulk upload endpoint.
func Template(kind core.Kind) ([]byte, error) {
	if !core.ValidKind(kind) {
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownKind, kind)
	}
	sc := core.SchemaFor(kind)
	cols := make([]string, 0, len(sc.Fields))
	for _, field := range sc.Fields {
		cols = append(cols, field.Name)
	}
	return Render(Document{Sheet: string(kind), Columns: cols})
}

// SanitizeCell strips the control characters xlsx cannot represent and
// collapses carriage returns to plain newlines.
func SanitizeCell(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '\n' || r == '\t' {
			b.WriteRune(r)
			continue
		}
		if r < 0x20 || r == 0x7f {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func sanitizeSheetName(name string) string {
	name = SanitizeCell(name)
	for _, forbidden := range []string{"\\", "/", "?", "*", "[", "]", ":"} {
		name = strings.ReplaceAll(name, forbidden, " ")
	}
	if len(name) > 31 {
		name = name[:31]
	}
	if strings.TrimSpace(name) == "" {
		name = "Report"
	}
	return name
}

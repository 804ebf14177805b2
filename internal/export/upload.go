package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// ParseWorkbook reads the first sheet of an uploaded xlsx file and returns
// the header row and the data rows beneath it. Short rows are padded so
// every row has a value for every header column.
func ParseWorkbook(data []byte) (columns []string, rows [][]string, err error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, fmt.Errorf("workbook has no sheets")
	}
	all, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	if len(all) == 0 {
		return nil, nil, fmt.Errorf("sheet %q is empty", sheets[0])
	}

	columns = all[0]
	for _, row := range all[1:] {
		if isBlankRow(row) {
			continue
		}
		padded := make([]string, len(columns))
		copy(padded, row)
		rows = append(rows, padded)
	}
	return columns, rows, nil
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if cell != "" {
			return false
		}
	}
	return true
}

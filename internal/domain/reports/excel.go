package reports

import (
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"
)

const (
	sheetReport  = "Sheet1"
	sheetSummary = "Summary"
	headerRow    = 4
)

// renderXLSX writes the dataset to a workbook: title rows, a bold header on
// row 4, data, an optional totals row, and a Summary sheet when the dataset
// has one. Right aligned columns are written as numbers.
func renderXLSX(institution string, ds Dataset) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	bold, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDDDDD"}, Pattern: 1},
	})
	if err != nil {
		return nil, err
	}
	title, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}})
	if err != nil {
		return nil, err
	}

	set := func(sheet string, col, row int, value any) error {
		name, err := excelize.CoordinatesToCellName(col, row)
		if err != nil {
			return err
		}
		return f.SetCellValue(sheet, name, value)
	}

	if err := set(sheetReport, 1, 1, institution+": "+ds.Title); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(sheetReport, "A1", "A1", title); err != nil {
		return nil, err
	}
	if ds.Subtitle != "" {
		if err := set(sheetReport, 1, 2, ds.Subtitle); err != nil {
			return nil, err
		}
	}

	for i, c := range ds.Columns {
		if err := set(sheetReport, i+1, headerRow, c.Header); err != nil {
			return nil, err
		}
		colName, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(sheetReport, colName, colName, c.Width/2+6); err != nil {
			return nil, err
		}
	}
	if len(ds.Columns) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(ds.Columns), headerRow)
		if err := f.SetCellStyle(sheetReport, "A4", last, bold); err != nil {
			return nil, err
		}
	}

	writeRow := func(rowNum int, values []string) error {
		for i, c := range ds.Columns {
			v := cell(values, i)
			if c.Right {
				if n, err := strconv.ParseFloat(v, 64); err == nil {
					if err := set(sheetReport, i+1, rowNum, n); err != nil {
						return err
					}
					continue
				}
			}
			if err := set(sheetReport, i+1, rowNum, v); err != nil {
				return err
			}
		}
		return nil
	}

	rowNum := headerRow + 1
	for _, row := range ds.Rows {
		if err := writeRow(rowNum, row); err != nil {
			return nil, err
		}
		rowNum++
	}
	if len(ds.Totals) > 0 {
		if err := writeRow(rowNum, ds.Totals); err != nil {
			return nil, err
		}
		first, _ := excelize.CoordinatesToCellName(1, rowNum)
		last, _ := excelize.CoordinatesToCellName(len(ds.Columns), rowNum)
		if err := f.SetCellStyle(sheetReport, first, last, bold); err != nil {
			return nil, err
		}
	}

	if len(ds.Summary) > 0 {
		f.NewSheet(sheetSummary)
		if err := f.SetColWidth(sheetSummary, "A", "B", 24); err != nil {
			return nil, err
		}
		for i, kv := range ds.Summary {
			if err := set(sheetSummary, 1, i+1, kv[0]); err != nil {
				return nil, err
			}
			var value any = kv[1]
			if n, err := strconv.ParseFloat(kv[1], 64); err == nil {
				value = n
			}
			if err := set(sheetSummary, 2, i+1, value); err != nil {
				return nil, err
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write %s workbook: %w", ds.Title, err)
	}
	return buf.Bytes(), nil
}

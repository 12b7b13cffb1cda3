package utils

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// MaxSpreadsheetRows caps rows read per sheet
const MaxSpreadsheetRows = 5000

// XLSXToText renders every sheet of a workbook as "Sheet" headings followed by
// one " | " separated line per non-empty row
func XLSXToText(data []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheetNames := f.GetSheetList()
	if len(sheetNames) == 0 {
		return "", fmt.Errorf("no sheets found in workbook")
	}

	var b strings.Builder
	for _, sheet := range sheetNames {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("failed to read sheet '%s': %w", sheet, err)
		}

		var lines []string
		for i, row := range rows {
			if i >= MaxSpreadsheetRows {
				break
			}
			cells := make([]string, 0, len(row))
			for _, cell := range row {
				cells = append(cells, strings.TrimSpace(cell))
			}
			line := strings.TrimRight(strings.Join(cells, " | "), " |")
			if strings.Trim(line, " |") == "" {
				continue
			}
			lines = append(lines, line)
		}
		if len(lines) == 0 {
			continue
		}

		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(sheet)
		b.WriteString("\n")
		b.WriteString(strings.Join(lines, "\n"))
	}

	return TruncateText(NormalizeText(b.String()), MaxDocumentTextSize), nil
}

package ingest

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Column headers recognized on the first sheet. Matching is case-insensitive
// and by substring so decorated headers ("Komisi ✅") still resolve.
const (
	linkHeaderKeyword       = "link"
	commissionHeaderKeyword = "komisi"
)

// SpreadsheetResult reports what a parsed workbook yielded before any of it
// reaches the queue.
type SpreadsheetResult struct {
	URLs        []string
	Unparseable int
}

type spreadsheetColumns struct {
	link       int
	commission int
}

// ParseSpreadsheet reads the first sheet of an xlsx workbook and returns the
// product urls of rows whose commission cell is non-empty. Rows missing a
// url, and rows shorter than the link column, count as unparseable instead
// of failing the whole file.
func ParseSpreadsheet(r io.Reader) (*SpreadsheetResult, error) {
	rows, err := openSheetRows(r)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return &SpreadsheetResult{}, nil
	}

	cols, err := locateColumns(rows[0])
	if err != nil {
		return nil, err
	}

	result := &SpreadsheetResult{}
	for _, row := range rows[1:] {
		if isBlankRow(row) {
			continue
		}

		url := cellAt(row, cols.link)
		commission := cellAt(row, cols.commission)
		if url == "" || commission == "" {
			result.Unparseable++
			continue
		}

		result.URLs = append(result.URLs, url)
	}
	return result, nil
}

func openSheetRows(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

func locateColumns(header []string) (spreadsheetColumns, error) {
	cols := spreadsheetColumns{link: -1, commission: -1}
	for i, cell := range header {
		normalized := strings.ToLower(strings.TrimSpace(cell))
		if cols.link == -1 && strings.Contains(normalized, linkHeaderKeyword) {
			cols.link = i
		}
		if cols.commission == -1 && strings.Contains(normalized, commissionHeaderKeyword) {
			cols.commission = i
		}
	}

	if cols.link == -1 {
		return cols, fmt.Errorf("missing product link column in header row")
	}
	if cols.commission == -1 {
		return cols, fmt.Errorf("missing commission column in header row")
	}
	return cols, nil
}

func cellAt(row []string, index int) string {
	if index < 0 || index >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[index])
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

package ingest

import (
	"bytes"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func buildWorkbook(t *testing.T, rows [][]any) *bytes.Reader {
	t.Helper()

	f := excelize.NewFile()
	for i, row := range rows {
		for j, value := range row {
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				t.Fatalf("CoordinatesToCellName() error = %v", err)
			}
			if err := f.SetCellValue("Sheet1", cell, value); err != nil {
				t.Fatalf("SetCellValue() error = %v", err)
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	return bytes.NewReader(buf.Bytes())
}

func TestParseSpreadsheetKeepsCheckedRows(t *testing.T) {
	t.Parallel()

	workbook := buildWorkbook(t, [][]any{
		{"Link Produk", "Komisi ✅"},
		{"https://shop.example/item/1", "x"},
		{"https://shop.example/item/2", ""},
		{"https://shop.example/item/3", "✅"},
		{"", ""},
		{"", "x"},
	})

	result, err := ParseSpreadsheet(workbook)
	if err != nil {
		t.Fatalf("ParseSpreadsheet() error = %v", err)
	}

	wantURLs := []string{"https://shop.example/item/1", "https://shop.example/item/3"}
	if len(result.URLs) != len(wantURLs) {
		t.Fatalf("URLs = %v, want %v", result.URLs, wantURLs)
	}
	for i, want := range wantURLs {
		if result.URLs[i] != want {
			t.Fatalf("URLs[%d] = %q, want %q", i, result.URLs[i], want)
		}
	}

	// Row 2 (no checkmark) and the url-less checked row.
	if result.Unparseable != 2 {
		t.Fatalf("Unparseable = %d, want 2", result.Unparseable)
	}
}

func TestParseSpreadsheetHeaderMatchingIsLoose(t *testing.T) {
	t.Parallel()

	workbook := buildWorkbook(t, [][]any{
		{"ignored", "PRODUCT LINK", "komisi (centang)"},
		{"x", "https://shop.example/item/1", "yes"},
	})

	result, err := ParseSpreadsheet(workbook)
	if err != nil {
		t.Fatalf("ParseSpreadsheet() error = %v", err)
	}
	if len(result.URLs) != 1 || result.URLs[0] != "https://shop.example/item/1" {
		t.Fatalf("URLs = %v, want the single checked url", result.URLs)
	}
}

func TestParseSpreadsheetMissingColumns(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		header []any
	}{
		{name: "no link column", header: []any{"name", "komisi"}},
		{name: "no commission column", header: []any{"link produk", "harga"}},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			workbook := buildWorkbook(t, [][]any{tc.header})
			if _, err := ParseSpreadsheet(workbook); err == nil {
				t.Fatal("ParseSpreadsheet() expected header error")
			}
		})
	}
}

func TestParseSpreadsheetEmptyWorkbook(t *testing.T) {
	t.Parallel()

	workbook := buildWorkbook(t, nil)
	result, err := ParseSpreadsheet(workbook)
	if err != nil {
		t.Fatalf("ParseSpreadsheet() error = %v", err)
	}
	if len(result.URLs) != 0 || result.Unparseable != 0 {
		t.Fatalf("result = %+v, want empty", result)
	}
}

func TestParseSpreadsheetRejectsNonWorkbook(t *testing.T) {
	t.Parallel()

	if _, err := ParseSpreadsheet(strings.NewReader("not a workbook")); err == nil {
		t.Fatal("ParseSpreadsheet() expected error for non-xlsx input")
	}
}

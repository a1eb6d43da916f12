// Package ingest implements the Tabular Reader, Column Mapper, and Row
// Normalizer stages of the ingestion pipeline (C1-C3).
package ingest

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/qax-os/excelize/v2"

	domainerrors "github.com/eloym/formasur/internal/domain/errors"
)

// CellKind classifies the original type excelize reported for a cell,
// so downstream normalization can tell a numeric "0" apart from a
// string "0" without re-parsing formatting.
type CellKind int

const (
	CellKindString CellKind = iota
	CellKindNumber
	CellKindDate
)

// Cell is one raw value as read from the workbook, with its header name
// and original kind preserved.
type Cell struct {
	Header string
	Raw    string
	Kind   CellKind
}

// Row is a single sheet row, indexed by header name. The reader
// preserves the original header names and does not interpret content.
type Row map[string]Cell

// Workbook is the decoded result of reading one sheet: its header order
// and the rows beneath it.
type Workbook struct {
	Headers []string
	Rows    []Row
}

// Reader opens office-XML spreadsheet files (C1).
type Reader struct{}

// NewReader constructs a Reader.
func NewReader() *Reader {
	return &Reader{}
}

// ReadSheet opens path and reads the sheet named by sheetRef, which may
// be a sheet name (string) or a zero-based index (int). An empty
// sheetRef selects the workbook's first sheet.
func (r *Reader) ReadSheet(path string, sheetRef any) (Workbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return Workbook{}, domainerrors.NewInputError(path, "unable to open workbook", err)
	}
	defer f.Close()

	sheetName, err := resolveSheetName(f, path, sheetRef)
	if err != nil {
		return Workbook{}, err
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return Workbook{}, domainerrors.NewInputError(path, "unable to read sheet "+sheetName, err)
	}
	if len(rows) == 0 {
		return Workbook{}, nil
	}

	headers := make([]string, len(rows[0]))
	copy(headers, rows[0])

	wb := Workbook{Headers: headers}
	for rowIdx, rawRow := range rows[1:] {
		row := make(Row, len(headers))
		for colIdx, header := range headers {
			if header == "" {
				continue
			}
			var raw string
			if colIdx < len(rawRow) {
				raw = rawRow[colIdx]
			}
			axis, axisErr := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			kind := CellKindString
			if axisErr == nil {
				kind = classifyCell(f, sheetName, axis, raw)
			}
			row[header] = Cell{Header: header, Raw: raw, Kind: kind}
		}
		wb.Rows = append(wb.Rows, row)
	}
	return wb, nil
}

func resolveSheetName(f *excelize.File, path string, sheetRef any) (string, error) {
	names := f.GetSheetList()
	switch v := sheetRef.(type) {
	case nil:
		if len(names) == 0 {
			return "", domainerrors.NewSheetNotFoundError(path, "")
		}
		return names[0], nil
	case string:
		if v == "" {
			if len(names) == 0 {
				return "", domainerrors.NewSheetNotFoundError(path, "")
			}
			return names[0], nil
		}
		for _, n := range names {
			if n == v {
				return n, nil
			}
		}
		return "", domainerrors.NewSheetNotFoundError(path, v)
	case int:
		if v < 0 || v >= len(names) {
			return "", domainerrors.NewSheetNotFoundError(path, fmt.Sprintf("index %d", v))
		}
		return names[v], nil
	default:
		return "", domainerrors.NewInputError(path, "unsupported sheet reference", nil)
	}
}

// classifyCell inspects excelize's reported cell type to distinguish
// numbers and dates from plain strings, falling back to a syntactic
// guess when the style-based classification is inconclusive.
func classifyCell(f *excelize.File, sheetName, axis, raw string) CellKind {
	cellType, err := f.GetCellType(sheetName, axis)
	if err == nil {
		switch cellType {
		case excelize.CellTypeNumber:
			return CellKindNumber
		case excelize.CellTypeDate:
			return CellKindDate
		}
	}
	if raw == "" {
		return CellKindString
	}
	if _, convErr := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64); convErr == nil {
		return CellKindNumber
	}
	return CellKindString
}

package suite

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/abdul-hamid-achik/contractkit/packages/assertions"
	"github.com/abdul-hamid-achik/contractkit/packages/core/config"
	"github.com/abdul-hamid-achik/contractkit/packages/core/runner"
	"github.com/abdul-hamid-achik/contractkit/packages/spec"
)

// Reserved table columns. Every other column becomes a row value.
const (
	// ColumnName names the row.
	ColumnName = "_name"
	// ColumnStatus holds the expected status codes, comma separated.
	ColumnStatus = "_status"
	// ColumnExpectPrefix starts a column whose cell the body value at the
	// rest of the column name must equal, as in "expect.data.id".
	ColumnExpectPrefix = "expect."
)

// Rows returns the scenario's inline rows followed by the rows of its data
// source.
func (s *Suite) Rows(doc ScenarioDoc) ([]runner.Row, error) {
	var rows []runner.Row
	for i, r := range doc.Rows {
		expect, err := s.response(r.Expect)
		if err != nil {
			return nil, fmt.Errorf("scenario %s row %d: %w", doc.Name, i+1, err)
		}
		rows = append(rows, runner.Row{Name: r.Name, Values: r.Values, Expect: expect})
	}

	if doc.Data == nil {
		return rows, nil
	}
	table, err := s.readTable(*doc.Data)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", doc.Name, err)
	}
	tableRows, err := RowsFromTable(table)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", doc.Name, err)
	}
	return append(rows, tableRows...), nil
}

func (s *Suite) readTable(d DataDoc) ([][]string, error) {
	switch {
	case d.CSV != "" && d.XLSX != "":
		return nil, config.Fatalf("suite", "data source sets both csv and xlsx")
	case d.CSV != "":
		return ReadCSV(s.resolvePath(d.CSV))
	case d.XLSX != "":
		return ReadXLSX(s.resolvePath(d.XLSX), d.Sheet)
	}
	return nil, config.Fatalf("suite", "data source needs csv or xlsx")
}

func (s *Suite) resolvePath(p string) string {
	if filepath.IsAbs(p) || s.Dir == "" {
		return p
	}
	return filepath.Join(s.Dir, p)
}

// ReadCSV reads every record of a CSV file, header first.
func ReadCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, config.WrapFatal("suite", "cannot open data file", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	var records [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, config.WrapFatal("suite", "cannot parse "+path, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// ReadXLSX reads the rows of sheet, or of the first sheet when sheet is
// empty, header first.
func ReadXLSX(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, config.WrapFatal("suite", "cannot open workbook", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, config.Fatalf("suite", "workbook %s has no sheets", path)
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, config.WrapFatal("suite", "cannot read sheet "+sheet, err)
	}
	return rows, nil
}

// RowsFromTable turns a header row and data rows into executor rows.
// Blank lines are skipped and short rows are padded with empty cells. A
// table with only a header has zero rows.
func RowsFromTable(table [][]string) ([]runner.Row, error) {
	if len(table) == 0 {
		return nil, nil
	}
	header := make([]string, len(table[0]))
	for i, h := range table[0] {
		header[i] = strings.TrimSpace(h)
		if header[i] == "" {
			return nil, config.Fatalf("suite", "data column %d has no name", i+1)
		}
	}

	var rows []runner.Row
	for lineNo, record := range table[1:] {
		if isBlank(record) {
			continue
		}
		row, err := rowFromRecord(header, record)
		if err != nil {
			return nil, fmt.Errorf("data row %d: %w", lineNo+2, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func rowFromRecord(header, record []string) (runner.Row, error) {
	row := runner.Row{Values: make(map[string]any, len(header))}
	var opts []spec.ResponseOption
	for i, col := range header {
		cell := ""
		if i < len(record) {
			cell = strings.TrimSpace(record[i])
		}
		switch {
		case col == ColumnName:
			row.Name = cell
		case col == ColumnStatus:
			if cell == "" {
				continue
			}
			codes, err := parseStatuses(cell)
			if err != nil {
				return runner.Row{}, err
			}
			opts = append(opts, spec.ExpectStatus(codes...))
		case strings.HasPrefix(col, ColumnExpectPrefix):
			if cell == "" {
				continue
			}
			opts = append(opts, spec.ExpectBody(strings.TrimPrefix(col, ColumnExpectPrefix), assertions.Equals(cell)))
		default:
			row.Values[col] = cell
		}
	}
	if len(opts) > 0 {
		row.Expect = spec.NewResponse(opts...)
	}
	return row, nil
}

func parseStatuses(cell string) ([]int, error) {
	var codes []int
	for _, part := range strings.Split(cell, ",") {
		code, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || code < 100 || code > 599 {
			return nil, config.Fatalf("suite", "invalid status %q", part)
		}
		codes = append(codes, code)
	}
	return codes, nil
}

func isBlank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

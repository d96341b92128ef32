// Package ingest reads uploaded spreadsheets and infers their column schema.
package ingest

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/aryan0dhankhar/insightdash/internal/domain"
)

// Inferred column types
const (
	TypeString  = "string"
	TypeInteger = "integer"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
	TypeDate    = "date"
)

// ErrUnsupported is returned for source types that are stored but not parsed
var ErrUnsupported = errors.New("source type is not parsed")

// Result is what a parse learned about a file
type Result struct {
	Columns  []domain.Column
	RowCount int64
}

// TypeFor maps a file name to a data source type
func TypeFor(fileName string) (string, bool) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv":
		return domain.SourceCSV, true
	case ".xlsx", ".xlsm":
		return domain.SourceExcel, true
	case ".json":
		return domain.SourceJSON, true
	case ".parquet":
		return domain.SourceParquet, true
	}
	return "", false
}

// ParseFile reads the file at path as sourceType
func ParseFile(sourceType, path string) (*Result, error) {
	switch sourceType {
	case domain.SourceCSV:
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return ParseCSV(f)
	case domain.SourceJSON:
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return ParseJSON(f)
	case domain.SourceExcel:
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return ParseExcel(f)
	}
	return nil, fmt.Errorf("%s: %w", sourceType, ErrUnsupported)
}

// ParseCSV treats the first record as the header
func ParseCSV(r io.Reader) (*Result, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.New("csv file is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	inf := newInferrer(header)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv row %d: %w", inf.rows+2, err)
		}
		inf.add(record)
	}
	return inf.result(), nil
}

// ParseJSON accepts an array of flat objects. Columns are the union of keys, sorted.
func ParseJSON(r io.Reader) (*Result, error) {
	var rows []map[string]any
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("json file must be an array of objects: %w", err)
	}

	keys := map[string]struct{}{}
	for _, row := range rows {
		for k := range row {
			keys[k] = struct{}{}
		}
	}
	header := make([]string, 0, len(keys))
	for k := range keys {
		header = append(header, k)
	}
	sort.Strings(header)

	inf := newInferrer(header)
	for _, row := range rows {
		record := make([]string, len(header))
		for i, k := range header {
			if v, ok := row[k]; ok && v != nil {
				record[i] = fmt.Sprint(v)
			}
		}
		inf.add(record)
	}
	return inf.result(), nil
}

// ParseExcel reads the first sheet of a workbook
func ParseExcel(r io.Reader) (*Result, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %s is empty", sheets[0])
	}

	inf := newInferrer(rows[0])
	for _, row := range rows[1:] {
		inf.add(row)
	}
	return inf.result(), nil
}

type inferrer struct {
	header []string
	kinds  []string
	rows   int64
}

func newInferrer(header []string) *inferrer {
	cols := make([]string, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("column_%d", i+1)
		}
		cols[i] = h
	}
	return &inferrer{header: cols, kinds: make([]string, len(cols))}
}

func (inf *inferrer) add(record []string) {
	inf.rows++
	for i := range inf.header {
		if i >= len(record) {
			continue
		}
		v := strings.TrimSpace(record[i])
		if v == "" {
			continue
		}
		inf.kinds[i] = widen(inf.kinds[i], classify(v))
	}
}

func (inf *inferrer) result() *Result {
	cols := make([]domain.Column, len(inf.header))
	for i, name := range inf.header {
		kind := inf.kinds[i]
		if kind == "" {
			kind = TypeString
		}
		cols[i] = domain.Column{Name: name, Type: kind}
	}
	return &Result{Columns: cols, RowCount: inf.rows}
}

func classify(v string) string {
	if _, err := strconv.ParseInt(v, 10, 64); err == nil {
		return TypeInteger
	}
	if _, err := strconv.ParseFloat(v, 64); err == nil {
		return TypeNumber
	}
	if _, err := strconv.ParseBool(v); err == nil {
		return TypeBoolean
	}
	if _, err := time.Parse("2006-01-02", v); err == nil {
		return TypeDate
	}
	if _, err := time.Parse(time.RFC3339, v); err == nil {
		return TypeDate
	}
	return TypeString
}

// widen merges the type seen so far with a new observation
func widen(current, next string) string {
	switch {
	case current == "" || current == next:
		return next
	case (current == TypeInteger && next == TypeNumber) || (current == TypeNumber && next == TypeInteger):
		return TypeNumber
	}
	return TypeString
}

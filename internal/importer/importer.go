// Package importer reads department schedule rows from XLSX or CSV files.
//
// The first row is a header. Recognized columns (Korean or English):
//
//	제목/title  시작일/start  종료일/end  부서/dept  설명/description
//	인쇄/printable  반복/repeat  반복종료/until
package importer

import (
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	apperrors "schoolcal/internal/errors"
	"schoolcal/internal/model"
	"schoolcal/internal/recur"
)

const (
	colTitle       = "title"
	colStart       = "start"
	colEnd         = "end"
	colDept        = "dept"
	colDescription = "description"
	colPrintable   = "printable"
	colRepeat      = "repeat"
	colUntil       = "until"
)

var headerAliases = map[string]string{
	"제목": colTitle, "일정": colTitle, "title": colTitle, "summary": colTitle,
	"시작일": colStart, "시작": colStart, "날짜": colStart, "start": colStart, "date": colStart,
	"종료일": colEnd, "종료": colEnd, "end": colEnd,
	"부서": colDept, "dept": colDept, "department": colDept,
	"설명": colDescription, "비고": colDescription, "description": colDescription,
	"인쇄": colPrintable, "printable": colPrintable,
	"반복": colRepeat, "repeat": colRepeat,
	"반복종료": colUntil, "until": colUntil,
}

// ReadFile reads the raw cell grid of an .xlsx or .csv file.
func ReadFile(path string) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return readXLSX(path)
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return readCSV(f)
	default:
		return nil, apperrors.WithMetadata(apperrors.CodeValidation, "unsupported import file type", map[string]string{"path": filepath.Base(path)})
	}
}

func readCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1
	var rows [][]string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeValidation, "read csv", err)
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	sht := f.GetSheetName(0)
	if sht == "" {
		sht = "Sheet1"
	}
	return f.GetRows(sht)
}

// Options controls Parse.
type Options struct {
	// DefaultDept is used when a row has no department column value.
	DefaultDept string
	// NewID generates event ids; nil uses uuid.
	NewID func() string
}

// Parse converts a cell grid into department events. Any unparseable row
// fails the whole import, so nothing is written on error.
func Parse(rows [][]string, opts Options) ([]model.DepartmentEvent, error) {
	if len(rows) == 0 {
		return nil, apperrors.Validation("import file is empty")
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	idx := columnIndex(rows[0])
	if _, ok := idx[colTitle]; !ok {
		return nil, apperrors.Validation("import header has no title column")
	}
	if _, ok := idx[colStart]; !ok {
		return nil, apperrors.Validation("import header has no start column")
	}

	var out []model.DepartmentEvent
	for i, rec := range rows[1:] {
		line := i + 2
		get := func(col string) string {
			j, ok := idx[col]
			if !ok || j >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[j])
		}
		if isBlank(rec) {
			continue
		}

		evs, err := parseRow(get, opts)
		if err != nil {
			return nil, apperrors.WrapWithMetadata(apperrors.CodeValidation, "invalid import row", map[string]string{"row": strconv.Itoa(line)}, err)
		}
		out = append(out, evs...)
	}
	return out, nil
}

func parseRow(get func(string) string, opts Options) ([]model.DepartmentEvent, error) {
	title := get(colTitle)
	if title == "" {
		return nil, errors.New("title is required")
	}
	start, err := parseCellDate(get(colStart))
	if err != nil {
		return nil, err
	}
	end := start
	if s := get(colEnd); s != "" {
		if end, err = parseCellDate(s); err != nil {
			return nil, err
		}
	}
	if end.Before(start) {
		return nil, errors.New("end date is before start date")
	}
	dept := get(colDept)
	if dept == "" {
		dept = opts.DefaultDept
	}
	if dept == "" {
		return nil, errors.New("department is required")
	}

	ev := model.DepartmentEvent{
		ID:          opts.NewID(),
		Title:       title,
		StartDate:   start,
		EndDate:     end,
		DeptID:      dept,
		Visibility:  "public",
		Description: get(colDescription),
		IsPrintable: parseBool(get(colPrintable), true),
		Source:      model.SourceImport,
	}

	repeat := get(colRepeat)
	if repeat == "" {
		return []model.DepartmentEvent{ev}, nil
	}
	freq, err := recur.ParseFreq(repeat)
	if err != nil {
		return nil, err
	}
	until, err := parseCellDate(get(colUntil))
	if err != nil {
		return nil, err
	}
	return recur.Expand(ev, recur.Pattern{Freq: freq, Start: start, Until: until}, opts.NewID)
}

func columnIndex(header []string) map[string]int {
	m := map[string]int{}
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if col, ok := headerAliases[key]; ok {
			if _, dup := m[col]; !dup {
				m[col] = i
			}
		}
	}
	return m
}

var dateLayouts = []string{
	"2006-01-02",
	"2006.01.02",
	"2006. 1. 2.",
	"2006. 1. 2",
	"2006/01/02",
	"2006/1/2",
	"20060102",
	"01-02-06",
	"1/2/2006",
	"1/2/06",
}

// parseCellDate accepts the usual written forms and Excel serial numbers.
func parseCellDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("date is required")
	}
	for _, l := range dateLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return model.Truncate(t), nil
		}
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 0 && serial < 2958466 {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err == nil {
			return model.Truncate(t), nil
		}
	}
	return time.Time{}, errors.New("unrecognized date " + strconv.Quote(s))
}

func parseBool(s string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return def
	case "y", "yes", "true", "1", "o", "예":
		return true
	case "n", "no", "false", "0", "x", "아니오":
		return false
	}
	return def
}

func isBlank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

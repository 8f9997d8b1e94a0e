package exporter

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"fundscope/pkg/contracts/domain"
)

const maxSheetName = 31

// WriteWorkbook writes every section of rep to w as an xlsx workbook, one
// sheet per section in report order. Numeric cells are stored as numbers.
func WriteWorkbook(w io.Writer, rep *domain.Report) error {
	return WriteSections(w, rep.Sections)
}

// WriteSections writes the given sections as an xlsx workbook.
func WriteSections(w io.Writer, sections []domain.Section) error {
	if len(sections) == 0 {
		return fmt.Errorf("no sections to export")
	}

	f := excelize.NewFile()
	defer f.Close()

	used := make(map[string]bool, len(sections))
	for i, sec := range sections {
		name := uniqueSheetName(sec.ID, used)

		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
				return fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}

		headers, rows := SectionTable(sec)
		if err := writeSheet(f, name, headers, rows); err != nil {
			return fmt.Errorf("sheet %s: %w", name, err)
		}
	}

	f.SetActiveSheet(0)
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, headers []string, rows [][]string) error {
	header := make([]interface{}, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}

	for r, row := range rows {
		cells := make([]interface{}, len(row))
		for i, v := range row {
			cells[i] = cellValue(v)
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
			return err
		}
	}
	return nil
}

// cellValue stores numeric text as a number so spreadsheets can chart it.
func cellValue(v string) interface{} {
	if v == "" {
		return v
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return v
}

func uniqueSheetName(id string, used map[string]bool) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '_'
		}
		return r
	}, id)
	if name == "" {
		name = "section"
	}
	if len(name) > maxSheetName {
		name = name[:maxSheetName]
	}

	candidate := name
	for n := 2; used[strings.ToLower(candidate)]; n++ {
		suffix := fmt.Sprintf("_%d", n)
		base := name
		if len(base)+len(suffix) > maxSheetName {
			base = base[:maxSheetName-len(suffix)]
		}
		candidate = base + suffix
	}
	used[strings.ToLower(candidate)] = true
	return candidate
}

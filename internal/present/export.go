package present

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/KaramelBytes/csvoracle-cli/internal/table"
	"github.com/KaramelBytes/csvoracle-cli/internal/utils"
)

const sheetName = "Sheet1"

// ErrUnsupportedFormat is returned for export paths that are not .csv or .xlsx.
var ErrUnsupportedFormat = errors.New("unsupported export format (use .csv or .xlsx)")

// Export writes t to path, choosing the format from the extension.
func Export(path string, t *table.Table) error {
	if t == nil {
		return errors.New("nothing to export")
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return exportCSV(path, t)
	case ".xlsx":
		return exportXLSX(path, t)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

func exportCSV(path string, t *table.Table) error {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.Write(t.Columns); err != nil {
		return err
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return err
	}
	return utils.SafeWriteFile(path, buf.Bytes())
}

func exportXLSX(path string, t *table.Table) error {
	f := excelize.NewFile()
	defer f.Close()

	for col, name := range t.Columns {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, cell, name); err != nil {
			return err
		}
	}
	for r, row := range t.Rows {
		for col, v := range row {
			if v == "" {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(col+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheetName, cell, cellValue(v)); err != nil {
				return err
			}
		}
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return fmt.Errorf("encode xlsx: %w", err)
	}
	return utils.SafeWriteFile(path, buf.Bytes())
}

// cellValue keeps numbers numeric so spreadsheets can sum them.
func cellValue(v string) any {
	if n, err := strconv.ParseInt(v, 10, 64); err == nil && strconv.FormatInt(n, 10) == v {
		return n
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return f
	}
	return v
}

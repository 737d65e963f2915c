package excel

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"goencode/domain/core"
	"goencode/internal"

	"github.com/xuri/excelize/v2"
	"gonum.org/v1/gonum/mat"
)

// DataReader handles reading Excel and CSV files
type DataReader struct {
	filePath string
	fileType string // "xlsx" or "csv"
	logger   *internal.Logger
}

// NewDataReader creates a new data reader that handles both Excel and CSV files
func NewDataReader(filePath string, logger *internal.Logger) *DataReader {
	ext := strings.ToLower(filepath.Ext(filePath))
	fileType := "xlsx"
	if ext == ".csv" {
		fileType = "csv"
	}
	return &DataReader{filePath: filePath, fileType: fileType, logger: internal.OrDefault(logger).With("excel")}
}

// Sheets reads every sheet of the workbook in workbook order. A CSV file is a
// single sheet named after the file.
func (r *DataReader) Sheets() ([]Sheet, error) {
	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s file %s", core.ErrNotFound, strings.ToUpper(r.fileType), r.filePath)
	}

	switch r.fileType {
	case "csv":
		rows, err := r.readCSVRows()
		if err != nil {
			return nil, err
		}
		name := strings.TrimSuffix(filepath.Base(r.filePath), filepath.Ext(r.filePath))
		return []Sheet{{Name: name, Rows: rows}}, nil
	case "xlsx":
		return r.readExcelSheets()
	default:
		return nil, fmt.Errorf("unsupported file type: %s", r.fileType)
	}
}

// readExcelSheets reads raw cell values from every sheet
func (r *DataReader) readExcelSheets() ([]Sheet, error) {
	startTime := time.Now()
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()
	r.logger.Debug("%s opened in %.2fms", r.filePath, float64(time.Since(startTime).Nanoseconds())/1e6)

	var sheets []Sheet
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %s: %w", name, err)
		}
		sheets = append(sheets, Sheet{Name: name, Rows: rows})
	}
	r.logger.Debug("%s: %d sheets read in %.2fms", r.filePath, len(sheets), float64(time.Since(startTime).Nanoseconds())/1e6)
	return sheets, nil
}

// readCSVRows reads CSV data
func (r *DataReader) readCSVRows() ([][]string, error) {
	file, err := os.Open(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	readStart := time.Now()
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	r.logger.Debug("%s read in %.2fms (%d rows)", r.filePath, float64(time.Since(readStart).Nanoseconds())/1e6, len(rows))
	return rows, nil
}

// ParseMatrix converts string rows into a dense matrix. A first row that does
// not parse as numbers is returned as the header.
func ParseMatrix(rows [][]string) (*mat.Dense, []string, error) {
	var header []string
	if len(rows) > 0 && !numericRow(rows[0]) {
		header = make([]string, len(rows[0]))
		for i, h := range rows[0] {
			header[i] = strings.TrimSpace(h)
		}
		rows = rows[1:]
	}
	if len(rows) == 0 {
		return nil, header, core.NewShapeError("sheet", "no data rows")
	}

	cols := len(rows[0])
	if cols == 0 {
		return nil, header, core.NewShapeError("sheet", "empty first data row")
	}
	data := make([]float64, 0, len(rows)*cols)
	for i, row := range rows {
		if len(row) != cols {
			return nil, header, core.NewShapeError("sheet", "row %d has %d cells, want %d", i+1, len(row), cols)
		}
		for j, cell := range row {
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				return nil, header, fmt.Errorf("%w: cell %s is not numeric: %q", core.ErrInvalidInputShape, cellName(j, i+1), cell)
			}
			data = append(data, v)
		}
	}
	return mat.NewDense(len(rows), cols, data), header, nil
}

func numericRow(row []string) bool {
	if len(row) == 0 {
		return false
	}
	for _, cell := range row {
		if _, err := strconv.ParseFloat(strings.TrimSpace(cell), 64); err != nil {
			return false
		}
	}
	return true
}

func cellName(col, row int) string {
	name, err := excelize.CoordinatesToCellName(col+1, row+1)
	if err != nil {
		return fmt.Sprintf("(%d,%d)", row, col)
	}
	return name
}

package repository

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/andresuchdata/restock/backend-go/internal/domain"
	"github.com/xuri/excelize/v2"
)

var requiredUsageColumns = []string{"ingredient_id", "quantity_used", "usage_date"}

// FileUsageSource serves usage records loaded from a CSV or XLSX export.
type FileUsageSource struct {
	records  map[int64][]domain.UsageRecord
	unrouted int
}

// OpenUsageFile loads a .csv or .xlsx usage export. The first row must name
// the ingredient_id, quantity_used and usage_date columns.
func OpenUsageFile(path string) (*FileUsageSource, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		rows, err := readXLSXRows(path)
		if err != nil {
			return nil, err
		}
		return newFileUsageSource(rows)
	default:
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open usage file %s: %w", path, err)
		}
		defer f.Close()
		return NewCSVUsageSource(f)
	}
}

// NewCSVUsageSource reads a CSV usage export.
func NewCSVUsageSource(r io.Reader) (*FileUsageSource, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record: %w", err)
		}
		rows = append(rows, record)
	}
	return newFileUsageSource(rows)
}

func readXLSXRows(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx file %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("xlsx file %s has no sheets", path)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read rows from sheet %s: %w", sheets[0], err)
	}
	return rows, nil
}

func newFileUsageSource(rows [][]string) (*FileUsageSource, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("usage file is empty")
	}

	// Map header to indices
	colMap := make(map[string]int)
	for i, col := range rows[0] {
		colMap[strings.ToLower(strings.TrimSpace(col))] = i
	}
	for _, col := range requiredUsageColumns {
		if _, ok := colMap[col]; !ok {
			return nil, fmt.Errorf("missing required column: %s", col)
		}
	}

	cell := func(row []string, col string) string {
		idx := colMap[col]
		if idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	src := &FileUsageSource{records: make(map[int64][]domain.UsageRecord)}
	for _, row := range rows[1:] {
		id, err := strconv.ParseInt(cell(row, "ingredient_id"), 10, 64)
		if err != nil {
			src.unrouted++
			continue
		}
		src.records[id] = append(src.records[id], domain.UsageRecord{
			IngredientID: id,
			Quantity:     cell(row, "quantity_used"),
			Date:         cell(row, "usage_date"),
		})
	}
	return src, nil
}

func (s *FileUsageSource) Usage(ctx context.Context, ingredientID int64) ([]domain.UsageRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	records := s.records[ingredientID]
	out := make([]domain.UsageRecord, len(records))
	copy(out, records)
	return out, nil
}

// All returns every loaded record, ordered by ingredient.
func (s *FileUsageSource) All() []domain.UsageRecord {
	var out []domain.UsageRecord
	for _, id := range s.Ingredients() {
		out = append(out, s.records[id]...)
	}
	return out
}

// Ingredients lists the ingredient ids present in the file.
func (s *FileUsageSource) Ingredients() []int64 {
	ids := make([]int64, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Unrouted counts rows dropped because their ingredient_id could not be read.
func (s *FileUsageSource) Unrouted() int {
	return s.unrouted
}

package repository

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/andresuchdata/restock/backend-go/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const usageCSV = `usage_date,ingredient_id,quantity_used
2025-03-01,1,2.5
2025-03-02,1,abc
2025-03-01,2,4
oops,x,1
2025-03-03,1
`

func TestCSVUsageSource(t *testing.T) {
	src, err := NewCSVUsageSource(strings.NewReader(usageCSV))
	require.NoError(t, err)

	records, err := src.Usage(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, []domain.UsageRecord{
		{IngredientID: 1, Quantity: "2.5", Date: "2025-03-01"},
		{IngredientID: 1, Quantity: "abc", Date: "2025-03-02"},
		{IngredientID: 1, Quantity: "", Date: "2025-03-03"},
	}, records)
	assert.Equal(t, []int64{1, 2}, src.Ingredients())
	assert.Equal(t, 1, src.Unrouted())
	assert.Len(t, src.All(), 4)

	none, err := src.Usage(context.Background(), 99)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestCSVUsageSourceMissingColumn(t *testing.T) {
	_, err := NewCSVUsageSource(strings.NewReader("ingredient_id,usage_date\n1,2025-01-01\n"))
	assert.ErrorContains(t, err, "quantity_used")

	_, err = NewCSVUsageSource(strings.NewReader(""))
	assert.Error(t, err)
}

func TestOpenUsageFileXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.xlsx")
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"ingredient_id", "quantity_used", "usage_date"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{"7", "1.25", "2025-04-01"}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]interface{}{"7", "3", "2025-04-02"}))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	src, err := OpenUsageFile(path)
	require.NoError(t, err)

	records, err := src.Usage(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "1.25", records[0].Quantity)
}

func TestOpenUsageFileCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.csv")
	require.NoError(t, os.WriteFile(path, []byte(usageCSV), 0o644))

	src, err := OpenUsageFile(path)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, src.Ingredients())

	_, err = OpenUsageFile(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestUsageSourceFunc(t *testing.T) {
	var src UsageSource = UsageSourceFunc(func(_ context.Context, id int64) ([]domain.UsageRecord, error) {
		return []domain.UsageRecord{{IngredientID: id}}, nil
	})

	records, err := src.Usage(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), records[0].IngredientID)
}

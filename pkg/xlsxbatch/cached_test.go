package xlsxbatch

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ukaji3/xlsxbatch-go/pkg/xlsxbatch/models"
)

func openTestCached(t *testing.T, opts SheetOptions) *CachedSheet {
	t.Helper()
	c, err := openTestBook(t, testParts()).OpenCachedSheet("Data", opts)
	require.NoError(t, err)
	return c
}

func TestCachedSheetRanges(t *testing.T) {
	c := openTestCached(t, SheetOptions{FirstRowIsHeader: true})
	assert.Equal(t, "Data", c.SheetName())

	top, bottom := c.RowRange()
	assert.Equal(t, models.RowNum(2), top)
	assert.Equal(t, models.RowNum(6), bottom)

	left, right := c.ColumnRange()
	assert.Equal(t, models.ColNum(1), left)
	assert.Equal(t, models.ColNum(3), right)

	header, err := c.HeaderRow()
	require.NoError(t, err)
	assert.Equal(t, models.Shared("id"), header.Cells[0])

	assert.Len(t, c.Rows(), 4)
	assert.Len(t, c.MergedRanges(), 1)
}

func TestCachedSheetCellValue(t *testing.T) {
	c := openTestCached(t, SheetOptions{FirstRowIsHeader: true})

	tests := []struct {
		addr     string
		expected models.CellValue
	}{
		{"C2", models.Date(44197)},
		{"b2", models.Shared("alice")},
		{"B4", models.Blank()},
		{"A3", models.Blank()},
		{"C5", models.Time(0.5)},
		{"$A$6", models.Shared("Total")},
	}
	for _, tt := range tests {
		got, err := c.CellValue(tt.addr)
		if err != nil {
			t.Errorf("CellValue(%q) error: %v", tt.addr, err)
			continue
		}
		if !got.Equal(tt.expected) {
			t.Errorf("CellValue(%q) = %#v, expected %#v", tt.addr, got, tt.expected)
		}
	}

	for _, addr := range []string{"A1", "D2", "A7", "A", "2"} {
		_, err := c.CellValue(addr)
		assert.ErrorIs(t, err, ErrInvalidAddress, addr)
	}
}

func TestCachedSheetMergeInfo(t *testing.T) {
	c := openTestCached(t, SheetOptions{})

	v, merged, extent, err := c.CellValueWithMergeInfo("A6")
	require.NoError(t, err)
	assert.Equal(t, models.Shared("Total"), v)
	assert.True(t, merged)
	require.NotNil(t, extent)
	assert.Equal(t, models.Extent{Rows: 1, Cols: 2}, *extent)

	v, merged, extent, err = c.CellValueWithMergeInfo("B6")
	require.NoError(t, err)
	assert.True(t, v.IsBlank())
	assert.True(t, merged)
	assert.Nil(t, extent)

	_, merged, _, err = c.CellValueWithMergeInfo("C6")
	require.NoError(t, err)
	assert.False(t, merged)
}

func TestCachedSheetIter(t *testing.T) {
	c := openTestCached(t, SheetOptions{FirstRowIsHeader: true})

	batch, err := c.Iter(true).NextBatch()
	require.NoError(t, err)
	assert.Equal(t, []models.RowNum{2, 3, 4, 5, 6}, batch.Rows)
	assert.Empty(t, batch.Data[1])

	it := c.Iter(false)
	batch, err = it.NextBatch()
	require.NoError(t, err)
	assert.Equal(t, []models.RowNum{2, 4, 5, 6}, batch.Rows)
	_, err = it.NextBatch()
	assert.ErrorIs(t, err, io.EOF)
}

func TestCachedSheetBatches(t *testing.T) {
	c := openTestCached(t, SheetOptions{BatchSize: 2})
	var got []models.RowNum
	for batch, err := range c.Iter(true).Batches() {
		require.NoError(t, err)
		assert.LessOrEqual(t, batch.Len(), 2)
		got = append(got, batch.Rows...)
	}
	assert.Equal(t, []models.RowNum{1, 2, 3, 4, 5, 6}, got)
}

func TestCachedSheetRightColumn(t *testing.T) {
	c := openTestCached(t, SheetOptions{RightCol: 5})
	_, right := c.ColumnRange()
	assert.Equal(t, models.ColNum(5), right)
	v, err := c.CellValue("E2")
	require.NoError(t, err)
	assert.True(t, v.IsBlank())

	// Without a dimension element the widest row decides.
	s, err := openTestBook(t, replaced(`<dimension ref="A1:C6"/>`, "")).OpenSheet("Data", SheetOptions{})
	require.NoError(t, err)
	cached, err := s.ToCached()
	require.NoError(t, err)
	_, right = cached.ColumnRange()
	assert.Equal(t, models.ColNum(3), right)
}

func TestCachedSheetUsedRange(t *testing.T) {
	c := openTestCached(t, SheetOptions{LeftCol: 2})
	used, ok := c.UsedRange()
	require.True(t, ok)
	assert.Equal(t, models.MergedRange{
		TopLeft:     models.Address{Row: 1, Col: 2},
		BottomRight: models.Address{Row: 6, Col: 3},
	}, used)

	table, ok := c.DetectTable(DefaultTableParams())
	assert.True(t, ok)
	assert.Equal(t, used, table)

	_, ok = c.DetectTable(TableParams{DensityMin: 0.99, MinNonemptyCells: 1})
	assert.False(t, ok)

	empty, err := openTestBook(t, withSheet(`<worksheet><sheetData/></worksheet>`)).OpenCachedSheet("Data", SheetOptions{})
	require.NoError(t, err)
	_, ok = empty.UsedRange()
	assert.False(t, ok)
	_, err = empty.Iter(true).NextBatch()
	assert.ErrorIs(t, err, io.EOF)
	_, err = empty.HeaderRow()
	assert.ErrorIs(t, err, ErrConfiguration)
}

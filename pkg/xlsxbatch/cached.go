package xlsxbatch

import (
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/tiendc/go-deepcopy"

	"github.com/ukaji3/xlsxbatch-go/pkg/xlsxbatch/cellref"
	"github.com/ukaji3/xlsxbatch-go/pkg/xlsxbatch/models"
)

// CachedSheet holds a whole decoded sheet in memory for random access.
type CachedSheet struct {
	name      string
	rows      map[models.RowNum][]models.CellValue
	top       models.RowNum
	bottom    models.RowNum
	left      models.ColNum
	right     models.ColNum
	header    *models.Row
	merged    []models.MergedRange
	batchSize int
}

// ToCached drains the remaining rows of the sheet into a CachedSheet. The
// right column of an unbounded sheet is the wider of its widest row and its
// dimension element, which writers do not always keep current.
func (s *Sheet) ToCached() (*CachedSheet, error) {
	if s.headerPending {
		if err := s.takeHeader(); err != nil {
			return nil, err
		}
	}

	c := &CachedSheet{
		name:      s.name,
		rows:      make(map[models.RowNum][]models.CellValue),
		left:      s.opts.LeftCol,
		right:     s.opts.RightCol,
		header:    s.header,
		batchSize: s.opts.BatchSize,
	}
	widest := 0
	for {
		row, err := s.NextRow()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		c.rows[row.Num] = row.Cells
		c.bottom = row.Num
		widest = max(widest, len(row.Cells))
	}

	merged, err := s.MergedRanges()
	if err != nil {
		return nil, err
	}
	c.merged = merged

	if s.opts.Unbounded() {
		c.right = c.left
		if widest > 0 {
			c.right = c.left + models.ColNum(widest-1)
		}
		if dim, ok := s.Dimension(); ok && dim.BottomRight.Col > c.right {
			c.right = dim.BottomRight.Col
		}
	}

	c.top = s.opts.SkipRows + 1
	if s.opts.FirstRowIsHeader {
		c.top++
	}
	return c, nil
}

// SheetName returns the name of the sheet.
func (c *CachedSheet) SheetName() string { return c.name }

// RowRange returns the first and last data rows.
func (c *CachedSheet) RowRange() (models.RowNum, models.RowNum) { return c.top, c.bottom }

// ColumnRange returns the first and last columns.
func (c *CachedSheet) ColumnRange() (models.ColNum, models.ColNum) { return c.left, c.right }

// MergedRanges returns the merged blocks of the sheet.
func (c *CachedSheet) MergedRanges() []models.MergedRange {
	return append([]models.MergedRange(nil), c.merged...)
}

// Rows returns the decoded rows keyed by row number. Rows without cells are
// absent.
func (c *CachedSheet) Rows() map[models.RowNum][]models.CellValue { return c.rows }

// HeaderRow returns a copy of the header row.
func (c *CachedSheet) HeaderRow() (*models.Row, error) {
	if c.header == nil {
		return nil, fmt.Errorf("%w: sheet %q has no header row", ErrConfiguration, c.name)
	}
	var out models.Row
	if err := deepcopy.Copy(&out, c.header); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *CachedSheet) lookup(addr string) (models.RowNum, models.ColNum, models.CellValue, error) {
	row, col, err := cellref.ParseAddress(addr)
	if err != nil {
		return 0, 0, models.Blank(), err
	}
	if row < c.top || row > c.bottom || col < c.left || col > c.right {
		return 0, 0, models.Blank(), fmt.Errorf("%w: %s outside %d:%d rows, %d:%d columns",
			ErrInvalidAddress, addr, c.top, c.bottom, c.left, c.right)
	}
	return row, col, cellAt(c.rows[row], c.left, col), nil
}

// CellValue returns the value at an A1 address. Cells inside the sheet's
// range that hold nothing are Blank.
func (c *CachedSheet) CellValue(addr string) (models.CellValue, error) {
	_, _, v, err := c.lookup(addr)
	return v, err
}

// CellValueWithMergeInfo is CellValue that also reports whether the cell is
// part of a merged block, and the block's extent when the cell is its
// top-left corner.
func (c *CachedSheet) CellValueWithMergeInfo(addr string) (models.CellValue, bool, *models.Extent, error) {
	row, col, v, err := c.lookup(addr)
	if err != nil {
		return v, false, nil, err
	}
	merged, extent := cellref.IsMergedCell(c.merged, row, col)
	return v, merged, extent, nil
}

// UsedRange returns the bounding box of non-blank cells.
func (c *CachedSheet) UsedRange() (models.MergedRange, bool) {
	var (
		used  models.MergedRange
		found bool
	)
	for num, cells := range c.rows {
		for i, v := range cells {
			if v.IsBlank() {
				continue
			}
			col := c.left + models.ColNum(i)
			if !found {
				used = models.MergedRange{
					TopLeft:     models.Address{Row: num, Col: col},
					BottomRight: models.Address{Row: num, Col: col},
				}
				found = true
				continue
			}
			used.TopLeft.Row = min(used.TopLeft.Row, num)
			used.BottomRight.Row = max(used.BottomRight.Row, num)
			used.TopLeft.Col = min(used.TopLeft.Col, col)
			used.BottomRight.Col = max(used.BottomRight.Col, col)
		}
	}
	return used, found
}

// TableParams holds thresholds for DetectTable.
type TableParams struct {
	DensityMin       float64
	MinNonemptyCells int
}

// DefaultTableParams returns default table detection thresholds.
func DefaultTableParams() TableParams {
	return TableParams{
		DensityMin:       0.04,
		MinNonemptyCells: 3,
	}
}

// DetectTable returns the used range when it is dense enough to be a table.
func (c *CachedSheet) DetectTable(params TableParams) (models.MergedRange, bool) {
	used, ok := c.UsedRange()
	if !ok {
		return used, false
	}
	nonEmpty := 0
	for num, cells := range c.rows {
		if num < used.TopLeft.Row || num > used.BottomRight.Row {
			continue
		}
		for _, v := range cells {
			if !v.IsBlank() {
				nonEmpty++
			}
		}
	}
	if nonEmpty < params.MinNonemptyCells {
		return used, false
	}
	ext := used.Extent()
	density := float64(nonEmpty) / (float64(ext.Rows) * float64(ext.Cols))
	return used, density >= params.DensityMin
}

// Iter returns a batch iterator over the row range. With keepEmpty, rows
// with no cells are returned as empty placeholders.
func (c *CachedSheet) Iter(keepEmpty bool) *CachedIterator {
	return &CachedIterator{sheet: c, next: c.top, keepEmpty: keepEmpty}
}

// CachedIterator walks a CachedSheet in batches.
type CachedIterator struct {
	sheet     *CachedSheet
	next      models.RowNum
	keepEmpty bool
	done      bool
}

// NextBatch returns up to the sheet's batch size rows, or io.EOF.
func (it *CachedIterator) NextBatch() (*models.Batch, error) {
	c := it.sheet
	batch := models.NewBatch(c.batchSize)
	for !it.done && it.next <= c.bottom && batch.Len() < c.batchSize {
		num := it.next
		if num == c.bottom {
			it.done = true
		} else {
			it.next++
		}
		cells, ok := c.rows[num]
		if !ok {
			if !it.keepEmpty {
				continue
			}
			cells = []models.CellValue{}
		}
		batch.Append(models.Row{Num: num, Cells: cells})
	}
	if batch.Len() == 0 {
		return nil, io.EOF
	}
	return batch, nil
}

// Batches iterates over the remaining batches.
func (it *CachedIterator) Batches() iter.Seq2[*models.Batch, error] {
	return batches(it.NextBatch)
}

// Package models defines the data structures produced by the xlsxbatch decoder.
package models

import "math"

// RowNum is a 1-based worksheet row number.
type RowNum uint32

// ColNum is a 1-based worksheet column number.
type ColNum uint16

const (
	// MaxColNum is the "unbounded" right column: rows extend to their last
	// populated cell instead of being padded to a fixed width.
	MaxColNum = ColNum(math.MaxUint16)
	// MaxRowNum is the largest representable row number.
	MaxRowNum = RowNum(math.MaxUint32)
	// MaxColumns is the last real worksheet column (XFD).
	MaxColumns = ColNum(16384)
)

// Address is a cell position.
type Address struct {
	Row RowNum `json:"r"`
	Col ColNum `json:"c"`
}

// Extent is the size of a merged block anchored at its top-left cell.
type Extent struct {
	Rows RowNum `json:"rows"`
	Cols ColNum `json:"cols"`
}

// MergedRange represents an inclusive rectangle of merged cells.
type MergedRange struct {
	// TopLeft is the anchor cell that carries the value.
	TopLeft Address `json:"top_left"`
	// BottomRight is the last cell of the block (inclusive).
	BottomRight Address `json:"bottom_right"`
}

// Contains reports whether the cell lies inside the range.
func (m MergedRange) Contains(row RowNum, col ColNum) bool {
	return m.TopLeft.Row <= row && m.TopLeft.Col <= col &&
		m.BottomRight.Row >= row && m.BottomRight.Col >= col
}

// Extent returns the number of rows and columns covered by the range.
func (m MergedRange) Extent() Extent {
	return Extent{
		Rows: m.BottomRight.Row - m.TopLeft.Row + 1,
		Cols: m.BottomRight.Col - m.TopLeft.Col + 1,
	}
}

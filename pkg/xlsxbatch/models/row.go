package models

// Row is one decoded worksheet row. Cells[0] is the sheet's left column.
type Row struct {
	Num   RowNum
	Cells []CellValue
}

// Batch groups consecutively decoded rows.
type Batch struct {
	// Rows holds the row numbers, parallel to Data.
	Rows []RowNum
	// Data holds the cells of each row.
	Data [][]CellValue
}

// NewBatch returns a batch with room for n rows.
func NewBatch(n int) *Batch {
	return &Batch{
		Rows: make([]RowNum, 0, n),
		Data: make([][]CellValue, 0, n),
	}
}

// Append adds a row to the batch.
func (b *Batch) Append(r Row) {
	b.Rows = append(b.Rows, r.Num)
	b.Data = append(b.Data, r.Cells)
}

// Len returns the number of rows in the batch.
func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Rows)
}

// Row returns the i-th row of the batch.
func (b *Batch) Row(i int) Row {
	return Row{Num: b.Rows[i], Cells: b.Data[i]}
}

package models

// SheetData represents the decoded content of a single sheet.
type SheetData struct {
	// Header is the header row when the sheet was read with one.
	Header *CellRow `json:"header,omitempty"`
	// Rows contains decoded data rows.
	Rows []CellRow `json:"rows,omitempty"`
	// MergedRanges contains the merged blocks declared by the sheet.
	MergedRanges []string `json:"merged_ranges,omitempty"`
	// Captured holds values snapshotted from fixed addresses above the header.
	Captured map[string]interface{} `json:"captured,omitempty"`
	// PrintAreas contains user-defined print areas.
	PrintAreas []string `json:"print_areas,omitempty"`
}

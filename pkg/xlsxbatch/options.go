// Package xlsxbatch streams rows out of Office Open XML spreadsheets in
// fixed-size batches without loading whole worksheets into memory.
package xlsxbatch

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ukaji3/xlsxbatch-go/pkg/xlsxbatch/models"
)

// DefaultBatchSize is the number of rows per batch when none is configured.
const DefaultBatchSize = 100

// OpenOptions configures how a workbook is opened.
type OpenOptions struct {
	// LoadSharedStrings reads the shared string table when the workbook is
	// opened. Otherwise it is read on the first sheet open.
	LoadSharedStrings bool
	// Logger receives debug output. Nil means no logging.
	Logger *zap.Logger
}

// DefaultOpenOptions returns default open options.
func DefaultOpenOptions() OpenOptions {
	return OpenOptions{
		LoadSharedStrings: true,
	}
}

func (o OpenOptions) logger() *zap.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return zap.NewNop()
}

// SheetOptions configures how rows of one sheet are decoded.
type SheetOptions struct {
	// BatchSize is the maximum number of rows per batch. Zero means
	// DefaultBatchSize.
	BatchSize int
	// SkipRows drops every row numbered SkipRows or lower.
	SkipRows models.RowNum
	// LeftCol is the first column read. Zero means column A.
	LeftCol models.ColNum
	// RightCol is the last column read. Zero or models.MaxColNum means
	// unbounded; any other value pads every row to the full width.
	RightCol models.ColNum
	// FirstRowIsHeader takes the first surviving row as the header.
	FirstRowIsHeader bool
}

// DefaultSheetOptions returns default sheet options.
func DefaultSheetOptions() SheetOptions {
	return SheetOptions{
		BatchSize: DefaultBatchSize,
		LeftCol:   1,
		RightCol:  models.MaxColNum,
	}
}

// Unbounded reports whether rows extend to their last populated cell.
func (o SheetOptions) Unbounded() bool {
	return o.RightCol == models.MaxColNum
}

// Width returns the number of columns of a padded row, or 0 when unbounded.
func (o SheetOptions) Width() int {
	if o.Unbounded() {
		return 0
	}
	return int(o.RightCol) - int(o.LeftCol) + 1
}

func (o SheetOptions) normalize() (SheetOptions, error) {
	if o.BatchSize < 0 {
		return o, fmt.Errorf("%w: batch size %d", ErrConfiguration, o.BatchSize)
	}
	if o.BatchSize == 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.LeftCol == 0 {
		o.LeftCol = 1
	}
	if o.RightCol == 0 {
		o.RightCol = models.MaxColNum
	}
	if o.RightCol < o.LeftCol {
		return o, fmt.Errorf("%w: right column %d before left column %d", ErrConfiguration, o.RightCol, o.LeftCol)
	}
	return o, nil
}

// Mode represents the extraction mode.
type Mode string

const (
	// ModeLight extracts rows and the header only.
	ModeLight Mode = "light"
	// ModeStandard extracts rows, header, captured values, merged ranges and
	// print areas of visible sheets.
	ModeStandard Mode = "standard"
	// ModeVerbose extracts everything ModeStandard does, for hidden sheets too.
	ModeVerbose Mode = "verbose"
)

// ExtractOptions configures Extract.
type ExtractOptions struct {
	// Mode specifies the extraction mode (light, standard, verbose).
	Mode Mode
	// Sheet is applied to every extracted sheet.
	Sheet SheetOptions
	// Capture maps A1 addresses to keys, snapshotted above the header row.
	// It requires Sheet.FirstRowIsHeader.
	Capture map[string]string
	// IncludeHidden specifies whether hidden sheets are extracted.
	// If nil, defaults to true for verbose mode, false otherwise.
	IncludeHidden *bool
	// IncludePrintAreas specifies whether to include print areas.
	// If nil, defaults to false for light mode, true otherwise.
	IncludePrintAreas *bool
	// Logger receives warnings about sheets that failed to decode.
	Logger *zap.Logger
}

// DefaultExtractOptions returns default extraction options.
func DefaultExtractOptions() ExtractOptions {
	return ExtractOptions{
		Mode:  ModeStandard,
		Sheet: DefaultSheetOptions(),
	}
}

// ShouldIncludeHidden returns whether to extract hidden sheets.
func (o ExtractOptions) ShouldIncludeHidden() bool {
	if o.IncludeHidden != nil {
		return *o.IncludeHidden
	}
	return o.Mode == ModeVerbose
}

// ShouldIncludePrintAreas returns whether to include print areas.
func (o ExtractOptions) ShouldIncludePrintAreas() bool {
	if o.IncludePrintAreas != nil {
		return *o.IncludePrintAreas
	}
	return o.Mode != ModeLight
}

// IncludesMerged returns whether the mode reads merged ranges.
func (m Mode) IncludesMerged() bool {
	return m != ModeLight
}

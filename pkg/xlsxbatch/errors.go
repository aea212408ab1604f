package xlsxbatch

import (
	"errors"
	"fmt"

	"github.com/ukaji3/xlsxbatch-go/pkg/xlsxbatch/cellref"
	"github.com/ukaji3/xlsxbatch-go/pkg/xlsxbatch/convert"
	"github.com/ukaji3/xlsxbatch-go/pkg/xlsxbatch/models"
	"github.com/ukaji3/xlsxbatch-go/pkg/xlsxbatch/parser"
)

// ErrFileNotFound indicates the input file does not exist.
var ErrFileNotFound = errors.New("file not found")

// Error kinds raised by the parts parsers and value layers.
var (
	ErrMalformedContainer        = parser.ErrMalformedContainer
	ErrMalformedXML              = parser.ErrMalformedXML
	ErrMissingAttribute          = parser.ErrMissingAttribute
	ErrUnknownRelationship       = parser.ErrUnknownRelationship
	ErrSharedStringCountMismatch = parser.ErrSharedStringCountMismatch
	ErrInvalidAddress            = cellref.ErrInvalidAddress
	ErrTypeCoercion              = convert.ErrTypeCoercion
)

var (
	// ErrMergeCountMismatch indicates a mergeCells element whose count
	// attribute disagrees with the number of mergeCell children.
	ErrMergeCountMismatch = errors.New("merge count mismatch")
	// ErrSheetNotFound indicates a sheet name absent from the workbook.
	ErrSheetNotFound = errors.New("sheet not found")
	// ErrConfiguration indicates an invalid option or a call made in the
	// wrong decoder state.
	ErrConfiguration = errors.New("configuration error")
	// ErrHeaderMismatch indicates a header row rejected by the header check.
	ErrHeaderMismatch = fmt.Errorf("%w: header mismatch", ErrConfiguration)
)

// DecodeError represents an error while decoding a sheet part.
type DecodeError struct {
	Sheet string
	Part  string
	Row   models.RowNum // 0 when the error is not tied to a row
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("decode error in sheet %q (%s, row %d): %v", e.Sheet, e.Part, e.Row, e.Err)
	}
	return fmt.Sprintf("decode error in sheet %q (%s): %v", e.Sheet, e.Part, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// NewDecodeError creates a new DecodeError.
func NewDecodeError(sheet, part string, row models.RowNum, err error) *DecodeError {
	return &DecodeError{
		Sheet: sheet,
		Part:  part,
		Row:   row,
		Err:   err,
	}
}

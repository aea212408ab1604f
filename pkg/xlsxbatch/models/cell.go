package models

import (
	"fmt"
	"strconv"
)

// Kind identifies the raw representation held by a CellValue.
type Kind uint8

const (
	// KindBlank is an empty cell or one with no value.
	KindBlank Kind = iota
	// KindBool is a boolean cell.
	KindBool
	// KindNumber is a numeric cell without a date or time format.
	KindNumber
	// KindDate is a serial formatted as a date.
	KindDate
	// KindTime is a serial formatted as a time of day.
	KindTime
	// KindDatetime is a serial formatted as a date and time.
	KindDatetime
	// KindShared is text from the shared string table.
	KindShared
	// KindString is inline or formula text.
	KindString
	// KindError is an error value such as #DIV/0!.
	KindError
)

var kindNames = [...]string{
	KindBlank:    "Blank",
	KindBool:     "Bool",
	KindNumber:   "Number",
	KindDate:     "Date",
	KindTime:     "Time",
	KindDatetime: "Datetime",
	KindShared:   "Shared",
	KindString:   "String",
	KindError:    "Error",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// IsSerial reports whether the kind stores a spreadsheet number, either plain
// or as a day serial.
func (k Kind) IsSerial() bool {
	return k == KindNumber || k == KindDate || k == KindTime || k == KindDatetime
}

// IsText reports whether the kind stores a string from the sheet.
func (k Kind) IsText() bool {
	return k == KindShared || k == KindString
}

// CellValue is one decoded cell. Date, Time and Datetime keep the raw day
// serial counted from 1899-12-30; the convert package turns them into
// calendar values.
//
// Shared values hold a string that shares its bytes with the book's shared
// string table, so no copy is made per cell.
type CellValue struct {
	kind Kind
	num  float64
	str  string
}

// Blank returns an empty cell.
func Blank() CellValue { return CellValue{} }

// Bool returns a boolean cell.
func Bool(b bool) CellValue {
	v := CellValue{kind: KindBool}
	if b {
		v.num = 1
	}
	return v
}

// Number returns a plain numeric cell.
func Number(f float64) CellValue { return CellValue{kind: KindNumber, num: f} }

// Date returns a cell holding a day serial displayed as a date.
func Date(serial float64) CellValue { return CellValue{kind: KindDate, num: serial} }

// Time returns a cell holding a day serial displayed as a time of day.
func Time(serial float64) CellValue { return CellValue{kind: KindTime, num: serial} }

// Datetime returns a cell holding a day serial displayed as date and time.
func Datetime(serial float64) CellValue { return CellValue{kind: KindDatetime, num: serial} }

// Shared returns a cell whose text came from the shared string table.
func Shared(s string) CellValue { return CellValue{kind: KindShared, str: s} }

// String returns a cell holding text owned by the cell itself.
func String(s string) CellValue { return CellValue{kind: KindString, str: s} }

// Error returns a cell holding a spreadsheet error such as "#DIV/0!".
func Error(s string) CellValue { return CellValue{kind: KindError, str: s} }

// Kind returns the variant tag.
func (v CellValue) Kind() Kind { return v.kind }

// IsBlank reports whether the cell is empty.
func (v CellValue) IsBlank() bool { return v.kind == KindBlank }

// Float returns the number or day serial; it is 0 for non-numeric kinds.
func (v CellValue) Float() float64 {
	if v.kind.IsSerial() {
		return v.num
	}
	return 0
}

// Text returns the string payload of Shared, String and Error cells.
func (v CellValue) Text() string { return v.str }

// BoolValue returns the payload of a Bool cell.
func (v CellValue) BoolValue() bool { return v.kind == KindBool && v.num != 0 }

// Equal reports whether two cells carry the same kind and payload.
func (v CellValue) Equal(o CellValue) bool {
	return v.kind == o.kind && v.num == o.num && v.str == o.str
}

// GoString renders the cell in a debugging form such as Number(1.5).
func (v CellValue) GoString() string {
	switch v.kind {
	case KindBlank:
		return "Blank"
	case KindBool:
		return fmt.Sprintf("Bool(%t)", v.BoolValue())
	case KindShared, KindString, KindError:
		return fmt.Sprintf("%s(%q)", v.kind, v.str)
	default:
		return fmt.Sprintf("%s(%s)", v.kind, strconv.FormatFloat(v.num, 'f', -1, 64))
	}
}

// CellRow is the JSON view of a decoded row.
type CellRow struct {
	// R is the row index (1-based).
	R int `json:"r"`
	// C maps column letters to cell values.
	C map[string]interface{} `json:"c"`
}

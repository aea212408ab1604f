// Package convert turns decoded cell values into Go values and back.
//
// Every conversion returns (value, ok, err). ok is false when the cell holds
// no value: a blank cell, or a text cell equal to one of the converter's
// null sentinels. err wraps ErrTypeCoercion when the cell cannot represent
// the requested type.
package convert

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/ukaji3/xlsxbatch-go/pkg/xlsxbatch/models"
)

// ErrTypeCoercion indicates a cell value that cannot be converted to the
// requested type.
var ErrTypeCoercion = errors.New("type coercion failed")

const (
	dateLayout     = "2006-01-02"
	timeLayout     = "15:04:05"
	datetimeLayout = "2006-01-02 15:04:05"

	// boolThreshold is the magnitude above which a number reads as true.
	boolThreshold = 0.009
)

// Converter holds the text fallback rules used when a cell stores a string.
// Layouts are tried in order; when none parses and the text is one of
// NullSentinels the result is "no value", otherwise an error.
type Converter struct {
	DateLayouts     []string
	TimeLayouts     []string
	DatetimeLayouts []string
	// NullSentinels apply to numeric and date/time targets only.
	NullSentinels []string
}

// NewConverter returns a Converter with the default layouts and sentinels.
func NewConverter() *Converter {
	return &Converter{
		DateLayouts:     []string{"2006-1-2", "2006/1/2"},
		TimeLayouts:     []string{"15:04:05", "15:04"},
		DatetimeLayouts: []string{"2006-1-2 15:04:05", "2006/1/2 15:04:05", "2006-1-2T15:04:05"},
		NullSentinels:   []string{"", "-", "--", "#N/A"},
	}
}

// Default is the converter used by Get.
var Default = NewConverter()

// As converts v to T using c.
func As[T Target](c *Converter, v models.CellValue) (T, bool, error) {
	var zero T
	var (
		out any
		ok  bool
		err error
	)
	switch any(zero).(type) {
	case string:
		out, ok, err = c.String(v)
	case float64:
		out, ok, err = c.Float(v)
	case int64:
		out, ok, err = c.Int(v)
	case bool:
		out, ok, err = c.Bool(v)
	case Date:
		out, ok, err = c.Date(v)
	case TimeOfDay:
		out, ok, err = c.TimeOfDay(v)
	case Datetime:
		out, ok, err = c.Datetime(v)
	case Date32:
		out, ok, err = c.Date32(v)
	case Timestamp:
		out, ok, err = c.Timestamp(v)
	}
	if err != nil || !ok {
		return zero, ok, err
	}
	return out.(T), true, nil
}

// Get converts v to T using the Default converter.
func Get[T Target](v models.CellValue) (T, bool, error) {
	return As[T](Default, v)
}

func mismatch(v models.CellValue, target string) error {
	return fmt.Errorf("%w: %#v to %s", ErrTypeCoercion, v, target)
}

func (c *Converter) isNull(s string) bool {
	return slices.Contains(c.NullSentinels, strings.TrimSpace(s))
}

// fallback runs the final two steps of a text conversion chain: a null
// sentinel gives "no value", anything else is an error.
func fallback[T any](c *Converter, v models.CellValue, target string) (T, bool, error) {
	var zero T
	if c.isNull(v.Text()) {
		return zero, false, nil
	}
	return zero, false, mismatch(v, target)
}

func parseLayouts(layouts []string, s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// String renders v as text. Blank gives "" and error cells give their code.
func (c *Converter) String(v models.CellValue) (string, bool, error) {
	switch v.Kind() {
	case models.KindBlank:
		return "", true, nil
	case models.KindBool:
		return strconv.FormatBool(v.BoolValue()), true, nil
	case models.KindNumber:
		return strconv.FormatFloat(v.Float(), 'f', -1, 64), true, nil
	case models.KindDate:
		return dateFromSerial(v.Float()).String(), true, nil
	case models.KindTime:
		return timeOfDayFromSerial(v.Float()).String(), true, nil
	case models.KindDatetime:
		return datetimeFromSerial(v.Float()).String(), true, nil
	default:
		return v.Text(), true, nil
	}
}

// Float returns the number or day serial held by v.
func (c *Converter) Float(v models.CellValue) (float64, bool, error) {
	switch k := v.Kind(); {
	case k == models.KindBlank:
		return 0, false, nil
	case k.IsSerial():
		return v.Float(), true, nil
	case k == models.KindBool:
		if v.BoolValue() {
			return 1, true, nil
		}
		return 0, true, nil
	case k.IsText():
		if f, err := strconv.ParseFloat(strings.TrimSpace(v.Text()), 64); err == nil {
			return f, true, nil
		}
		return fallback[float64](c, v, "float64")
	}
	return 0, false, mismatch(v, "float64")
}

// Int returns the integer part of the number held by v.
func (c *Converter) Int(v models.CellValue) (int64, bool, error) {
	switch k := v.Kind(); {
	case k == models.KindBlank:
		return 0, false, nil
	case k.IsSerial():
		f := math.Trunc(v.Float())
		if f < math.MinInt64 || f >= math.MaxInt64 || math.IsNaN(f) {
			return 0, false, mismatch(v, "int64")
		}
		return int64(f), true, nil
	case k == models.KindBool:
		if v.BoolValue() {
			return 1, true, nil
		}
		return 0, true, nil
	case k.IsText():
		if n, err := strconv.ParseInt(strings.TrimSpace(v.Text()), 10, 64); err == nil {
			return n, true, nil
		}
		return fallback[int64](c, v, "int64")
	}
	return 0, false, mismatch(v, "int64")
}

// Bool reads numbers as true when their magnitude exceeds 0.009 and text
// with strconv.ParseBool.
func (c *Converter) Bool(v models.CellValue) (bool, bool, error) {
	switch k := v.Kind(); {
	case k == models.KindBlank:
		return false, false, nil
	case k == models.KindBool:
		return v.BoolValue(), true, nil
	case k.IsSerial():
		return math.Abs(v.Float()) > boolThreshold, true, nil
	case k.IsText():
		if b, err := strconv.ParseBool(strings.TrimSpace(v.Text())); err == nil {
			return b, true, nil
		}
	}
	return false, false, mismatch(v, "bool")
}

// Date returns the calendar date of a serial, or parses text with
// DateLayouts.
func (c *Converter) Date(v models.CellValue) (Date, bool, error) {
	switch k := v.Kind(); {
	case k == models.KindBlank:
		return Date{}, false, nil
	case k.IsSerial():
		return dateFromSerial(v.Float()), true, nil
	case k.IsText():
		if t, ok := parseLayouts(c.DateLayouts, v.Text()); ok {
			return Date{t}, true, nil
		}
		return fallback[Date](c, v, "Date")
	}
	return Date{}, false, mismatch(v, "Date")
}

// TimeOfDay returns the time part of a serial, or parses text with
// TimeLayouts.
func (c *Converter) TimeOfDay(v models.CellValue) (TimeOfDay, bool, error) {
	switch k := v.Kind(); {
	case k == models.KindBlank:
		return 0, false, nil
	case k.IsSerial():
		return timeOfDayFromSerial(v.Float()), true, nil
	case k.IsText():
		if t, ok := parseLayouts(c.TimeLayouts, v.Text()); ok {
			return NewTimeOfDay(t.Hour(), t.Minute(), t.Second()), true, nil
		}
		return fallback[TimeOfDay](c, v, "TimeOfDay")
	}
	return 0, false, mismatch(v, "TimeOfDay")
}

// Datetime returns the wall clock of a serial, or parses text with
// DatetimeLayouts.
func (c *Converter) Datetime(v models.CellValue) (Datetime, bool, error) {
	switch k := v.Kind(); {
	case k == models.KindBlank:
		return Datetime{}, false, nil
	case k.IsSerial():
		return datetimeFromSerial(v.Float()), true, nil
	case k.IsText():
		if t, ok := parseLayouts(c.DatetimeLayouts, v.Text()); ok {
			return Datetime{t}, true, nil
		}
		return fallback[Datetime](c, v, "Datetime")
	}
	return Datetime{}, false, mismatch(v, "Datetime")
}

// Date32 returns days since 1970-01-01.
func (c *Converter) Date32(v models.CellValue) (Date32, bool, error) {
	switch k := v.Kind(); {
	case k == models.KindBlank:
		return 0, false, nil
	case k.IsSerial():
		return date32FromSerial(v.Float()), true, nil
	case k.IsText():
		if t, ok := parseLayouts(c.DateLayouts, v.Text()); ok {
			return Date32(t.Unix() / secondsPerDay), true, nil
		}
		return fallback[Date32](c, v, "Date32")
	}
	return 0, false, mismatch(v, "Date32")
}

// Timestamp returns seconds since the Unix epoch. Text is tried with
// DatetimeLayouts first and DateLayouts second.
func (c *Converter) Timestamp(v models.CellValue) (Timestamp, bool, error) {
	switch k := v.Kind(); {
	case k == models.KindBlank:
		return 0, false, nil
	case k.IsSerial():
		return timestampFromSerial(v.Float()), true, nil
	case k.IsText():
		if t, ok := parseLayouts(c.DatetimeLayouts, v.Text()); ok {
			return Timestamp(t.Unix()), true, nil
		}
		if t, ok := parseLayouts(c.DateLayouts, v.Text()); ok {
			return Timestamp(t.Unix()), true, nil
		}
		return fallback[Timestamp](c, v, "Timestamp")
	}
	return 0, false, mismatch(v, "Timestamp")
}

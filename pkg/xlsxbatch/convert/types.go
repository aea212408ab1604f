package convert

import (
	"fmt"
	"time"
)

// Date is a calendar date. The wrapped time is midnight UTC.
type Date struct {
	time.Time
}

// NewDate returns the date y-m-d.
func NewDate(y int, m time.Month, d int) Date {
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

func (d Date) String() string { return d.Format(dateLayout) }

// TimeOfDay counts seconds since midnight.
type TimeOfDay int32

// NewTimeOfDay returns h:m:s as a TimeOfDay.
func NewTimeOfDay(h, m, s int) TimeOfDay {
	return TimeOfDay(h*3600 + m*60 + s)
}

func (t TimeOfDay) Hour() int   { return int(t) / 3600 }
func (t TimeOfDay) Minute() int { return int(t) % 3600 / 60 }
func (t TimeOfDay) Second() int { return int(t) % 60 }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour(), t.Minute(), t.Second())
}

// Datetime is a wall-clock date and time without a zone. The wrapped time
// is expressed in UTC.
type Datetime struct {
	time.Time
}

// NewDatetime returns the naive datetime y-m-d h:mi:s.
func NewDatetime(y int, m time.Month, d, h, mi, s int) Datetime {
	return Datetime{time.Date(y, m, d, h, mi, s, 0, time.UTC)}
}

func (d Datetime) String() string { return d.Format(datetimeLayout) }

// Date32 counts days since 1970-01-01.
type Date32 int32

// Timestamp counts seconds since the Unix epoch, reading the cell's wall
// clock as UTC.
type Timestamp int64

// UTC returns the timestamp with the wall clock taken as UTC.
func (t Timestamp) UTC() int64 { return int64(t) }

// Local returns the timestamp with the wall clock taken in the process'
// local zone.
func (t Timestamp) Local() int64 {
	_, offset := time.Now().Zone()
	return int64(t) - int64(offset)
}

// Target is the closed set of types a CellValue converts to and from.
type Target interface {
	string | float64 | int64 | bool | Date | TimeOfDay | Datetime | Date32 | Timestamp
}

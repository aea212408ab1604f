package convert

import (
	"math"
	"time"
)

const (
	secondsPerDay = 86400

	// unixEpochSerial is the day serial of 1970-01-01.
	unixEpochSerial = 25569
)

// Serial day 0. Choosing 1899-12-30 instead of 1900-01-00 absorbs the
// phantom 1900-02-29 for every serial from 61 on.
var epoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// splitSerial splits a day serial into whole days and rounded seconds of the
// day. A fraction that rounds up to 86400 seconds rolls over to the next day.
func splitSerial(serial float64) (days int64, secs int64) {
	whole := math.Floor(serial)
	days = int64(whole)
	secs = int64(math.Round((serial - whole) * secondsPerDay))
	if secs >= secondsPerDay {
		days++
		secs -= secondsPerDay
	}
	return days, secs
}

// TimeFromSerial converts a day serial to a UTC wall-clock time.
func TimeFromSerial(serial float64) time.Time {
	days, secs := splitSerial(serial)
	return time.Unix((days-unixEpochSerial)*secondsPerDay+secs, 0).UTC()
}

// SerialFromTime converts the wall clock of t to a day serial. The zone of t
// is ignored.
func SerialFromTime(t time.Time) float64 {
	y, m, d := t.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	days := midnight.Unix()/secondsPerDay + unixEpochSerial
	secs := t.Hour()*3600 + t.Minute()*60 + t.Second()
	frac := (float64(secs) + float64(t.Nanosecond())/1e9) / secondsPerDay
	return float64(days) + frac
}

func dateFromSerial(serial float64) Date {
	days, _ := splitSerial(serial)
	return Date{epoch.AddDate(0, 0, int(days))}
}

func timeOfDayFromSerial(serial float64) TimeOfDay {
	_, secs := splitSerial(serial)
	return TimeOfDay(secs)
}

func datetimeFromSerial(serial float64) Datetime {
	return Datetime{TimeFromSerial(serial)}
}

func date32FromSerial(serial float64) Date32 {
	days, _ := splitSerial(serial)
	return Date32(days - unixEpochSerial)
}

func timestampFromSerial(serial float64) Timestamp {
	days, secs := splitSerial(serial)
	return Timestamp((days-unixEpochSerial)*secondsPerDay + secs)
}

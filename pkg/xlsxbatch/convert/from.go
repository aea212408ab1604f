package convert

import (
	"github.com/ukaji3/xlsxbatch-go/pkg/xlsxbatch/models"
)

// From encodes a Go value as a CellValue. Calendar types become day serials
// tagged with the matching display kind.
func From[T Target](v T) models.CellValue {
	switch x := any(v).(type) {
	case string:
		return models.String(x)
	case float64:
		return models.Number(x)
	case int64:
		return models.Number(float64(x))
	case bool:
		return models.Bool(x)
	case Date:
		return models.Date(float64(int64(SerialFromTime(x.Time))))
	case TimeOfDay:
		return models.Time(float64(x) / secondsPerDay)
	case Datetime:
		return models.Datetime(SerialFromTime(x.Time))
	case Date32:
		return models.Date(float64(x) + unixEpochSerial)
	case Timestamp:
		return models.Datetime(float64(x)/secondsPerDay + unixEpochSerial)
	}
	return models.Blank()
}

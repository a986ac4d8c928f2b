package tinyfat

import (
	"time"
)

// DecodeDate converts a FAT date stamp into a time.Time at 00:00:00 UTC.
// The stamp is relative to the MS-DOS epoch 1980-01-01:
//  Bits 0-4:  day of month, 1-31
//  Bits 5-8:  month of year, 1-12
//  Bits 9-15: years since 1980, 0-127
// A day or month of 0 is invalid, in this case time.Time{} is returned so that
// time.Time.IsZero() can be used to detect it.
// Months above 12 are normalized by time.Date and roll into the next year.
func DecodeDate(stamp uint16) time.Time {
	day := int(stamp & 0x1F)
	month := int(stamp >> 5 & 0x0F)
	year := 1980 + int(stamp>>9&0x7F)

	if day == 0 || month == 0 {
		return time.Time{}
	}

	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// DecodeTime converts a FAT time stamp with 2 second granularity into the time of day.
//  Bits 0-4:   2 second count, 0-29
//  Bits 5-10:  minutes, 0-59
//  Bits 11-15: hours, 0-23
// The returned time is on January 1 of year 1 so that midnight is time.Time{}.
// Out of range values are capped at 23:59:59.
func DecodeTime(stamp uint16) time.Time {
	seconds := int(stamp&0x1F) * 2
	minutes := int(stamp >> 5 & 0x3F)
	hours := int(stamp >> 11 & 0x1F)

	result := time.Date(1, 1, 1, hours, minutes, seconds, 0, time.UTC)
	if result.Day() != 1 {
		return time.Date(1, 1, 1, 23, 59, 59, 0, time.UTC)
	}

	return result
}

// decodeTimestamp combines a date and time stamp. An invalid date results in time.Time{}.
func decodeTimestamp(date, clock uint16) time.Time {
	d := DecodeDate(date)
	if d.IsZero() {
		return time.Time{}
	}

	c := DecodeTime(clock)
	return time.Date(d.Year(), d.Month(), d.Day(), c.Hour(), c.Minute(), c.Second(), 0, time.UTC)
}

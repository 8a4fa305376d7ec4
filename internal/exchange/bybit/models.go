package bybit

import (
	"strconv"
	"time"
)

// The v5 API serializes every numeric field as a string. Blank fields
// parse to zero; callers treat zero as "not reported".

func parseFloat64(s string) float64 {
	if s == "" {
		return 0
	}
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

func parseInt64(s string) int64 {
	if s == "" {
		return 0
	}
	i, _ := strconv.ParseInt(s, 10, 64)
	return i
}

// parseTimestamp converts a millisecond timestamp string to time.Time.
func parseTimestamp(ts string) time.Time {
	if ts == "" {
		return time.Time{}
	}
	msec, _ := strconv.ParseInt(ts, 10, 64)
	return time.UnixMilli(msec)
}

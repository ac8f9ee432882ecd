package analytics

import "time"

// DefaultRangeDays is the lookback window used by the stats endpoints
// when the caller does not override it.
const DefaultRangeDays = 30

// LastNDays returns the closed [start, end] window covering the last
// n days, where end is the current UTC instant. Used only to bound the
// storage queries behind the stats endpoints.
func LastNDays(days int) (start, end time.Time) {
	end = time.Now().UTC()
	start = end.AddDate(0, 0, -days)
	return start, end
}

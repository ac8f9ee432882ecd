package analytics

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Period is the granularity of a time-bucketed aggregation.
type Period string

const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

// DataPoint is a single (timestamp, value) pair extracted from a domain
// record. Callers skip records which miss either field before building
// the points slice.
type DataPoint struct {
	At    time.Time
	Value float64
}

// PeriodBucket is one aggregated period in the output series.
type PeriodBucket struct {
	Period  string  `json:"period"`
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

// AggregateByPeriod buckets the given points by day, week or month and
// averages the values per bucket (rounded to 2 decimals). An unknown
// period falls back to day buckets. The result is sorted ascending by
// bucket key; the zero-padded key formats make the lexicographic order
// chronological. Input order is irrelevant.
func AggregateByPeriod(points []DataPoint, period Period) []PeriodBucket {
	if len(points) == 0 {
		return []PeriodBucket{}
	}

	type accumulator struct {
		sum   float64
		count int
	}
	buckets := make(map[string]*accumulator)

	for _, p := range points {
		key := PeriodKey(p.At, period)
		acc, ok := buckets[key]
		if !ok {
			acc = &accumulator{}
			buckets[key] = acc
		}
		acc.sum += p.Value
		acc.count++
	}

	keys := make([]string, 0, len(buckets))
	for key := range buckets {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	result := make([]PeriodBucket, 0, len(keys))
	for _, key := range keys {
		acc := buckets[key]
		result = append(result, PeriodBucket{
			Period:  key,
			Average: Round2(acc.sum / float64(acc.count)),
			Count:   acc.count,
		})
	}

	return result
}

// PeriodKey derives the bucket key for a timestamp:
// day -> YYYY-MM-DD, week -> YYYY-Www, month -> YYYY-MM.
// Week numbering is NOT ISO-8601: weeks begin on Sunday, and all days
// before the first Sunday of the year belong to week 00. The dashboard
// clients depend on this exact keying, so keep it stable.
func PeriodKey(t time.Time, period Period) string {
	switch period {
	case PeriodWeek:
		week := (t.YearDay() - 1 + 7 - int(t.Weekday())) / 7
		return fmt.Sprintf("%04d-W%02d", t.Year(), week)
	case PeriodMonth:
		return t.Format("2006-01")
	default:
		// day, and the documented fallback for unknown period values
		return t.Format("2006-01-02")
	}
}

// ParseTimestamp parses an ISO-8601 timestamp string. A trailing "Z" is
// treated as UTC offset +00:00; a timestamp without offset is assumed
// UTC; a bare date parses to midnight UTC.
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05.999999999",
		"2006-01-02",
	} {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp: %q", value)
}

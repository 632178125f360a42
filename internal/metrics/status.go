package metrics

import (
	"sort"
	"strconv"
)

// StatusBucket is the response count for one HTTP status code.
type StatusBucket struct {
	Code  string
	Class string
	Count int
}

// FlattenStatusCodes converts a status code->count map into StatusBucket
// rows sorted by descending count, then by code for stability.
func FlattenStatusCodes(codes map[string]int) []StatusBucket {
	if len(codes) == 0 {
		return nil
	}
	rows := make([]StatusBucket, 0, len(codes))
	for code, count := range codes {
		rows = append(rows, StatusBucket{Code: code, Class: statusClass(code), Count: count})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count == rows[j].Count {
			return rows[i].Code < rows[j].Code
		}
		return rows[i].Count > rows[j].Count
	})
	return rows
}

func statusClass(code string) string {
	n, err := strconv.Atoi(code)
	if err != nil || n < 100 || n > 599 {
		return "other"
	}
	return strconv.Itoa(n/100) + "xx"
}

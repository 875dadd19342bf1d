package scanform

import (
	"regexp"
	"strconv"
	"strings"
)

const noValidLabelsMarker = "no valid labels found"

var failedLabelPattern = regexp.MustCompile(`Label ID:\s*(\d+)`)

// ParseFailure splits submitted label ids using the remote API's rejection
// message. Ids mentioned as "Label ID: <n>" fail unless they were never
// submitted; a "No valid labels found" message fails everything.
func ParseFailure(message string, submitted []int64) Reconciliation {
	submitted = uniqueLabelIDs(submitted)
	if strings.Contains(strings.ToLower(message), noValidLabelsMarker) {
		return Reconciliation{FailedLabels: submitted, ValidLabels: []int64{}}
	}

	mentioned := map[int64]struct{}{}
	for _, match := range failedLabelPattern.FindAllStringSubmatch(message, -1) {
		id, err := strconv.ParseInt(match[1], 10, 64)
		if err != nil {
			continue
		}
		mentioned[id] = struct{}{}
	}

	result := Reconciliation{FailedLabels: []int64{}, ValidLabels: []int64{}}
	for _, id := range submitted {
		if _, failed := mentioned[id]; failed {
			result.FailedLabels = append(result.FailedLabels, id)
			continue
		}
		result.ValidLabels = append(result.ValidLabels, id)
	}
	return result
}

// uniqueLabelIDs keeps the first occurrence of every positive id.
func uniqueLabelIDs(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

package enums

import (
	"fmt"
	"strings"
)

// LabelStatus is the lifecycle state of a purchased shipping label.
type LabelStatus string

const (
	LabelStatusCreated   LabelStatus = "created"
	LabelStatusPurchased LabelStatus = "purchased"
	LabelStatusRefunded  LabelStatus = "refunded"
	LabelStatusError     LabelStatus = "error"
)

var validLabelStatuses = []LabelStatus{
	LabelStatusCreated,
	LabelStatusPurchased,
	LabelStatusRefunded,
	LabelStatusError,
}

// String implements fmt.Stringer.
func (s LabelStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known LabelStatus.
func (s LabelStatus) IsValid() bool {
	for _, candidate := range validLabelStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseLabelStatus converts raw input into a LabelStatus, ignoring case and
// surrounding whitespace.
func ParseLabelStatus(value string) (LabelStatus, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validLabelStatuses {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid label status %q", value)
}

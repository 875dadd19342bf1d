package scanform

import (
	"regexp"
	"strings"
	"time"

	"github.com/jinzhu/now"

	"github.com/angelmondragon/scanform-backend/pkg/enums"
)

var (
	numericDateRe = regexp.MustCompile(`\b\d{4}[-/.]\d{1,2}[-/.]\d{1,2}|\b\d{1,2}/\d{1,2}/\d{4}\b|^\d{8}$`)
	monthNameRe   = regexp.MustCompile(`(?i)\b(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\b`)
	yearRe        = regexp.MustCompile(`\b\d{4}\b`)
	dayRe         = regexp.MustCompile(`\b\d{1,2}\b`)
	clockRe       = regexp.MustCompile(`\d{1,2}:\d{2}(:\d{2})?`)
)

// DefaultCarrier is the only carrier that supports scan forms today.
const DefaultCarrier = "usps"

// Eligibility decides whether a single label may be placed on a scan form.
type Eligibility struct {
	Carrier string
}

// IsEligible is a pure predicate over the label's own fields.
func (e Eligibility) IsEligible(label Label) bool {
	status, err := enums.ParseLabelStatus(label.Status)
	if err != nil || status != enums.LabelStatusPurchased {
		return false
	}
	if !strings.EqualFold(strings.TrimSpace(label.CarrierID), e.carrier()) {
		return false
	}
	if strings.TrimSpace(label.Tracking.String()) == "" {
		return false
	}
	return !label.Refunded()
}

func (e Eligibility) carrier() string {
	if c := strings.TrimSpace(e.Carrier); c != "" {
		return c
	}
	return DefaultCarrier
}

// Threshold resolves the minimum shipping date a shipment must reach.
type Threshold struct {
	Fixed      time.Time
	OffsetDays int
	Clock      func() time.Time
}

func (t Threshold) now() time.Time {
	if t.Clock != nil {
		return t.Clock().UTC()
	}
	return time.Now().UTC()
}

// MinDate is the configured fixed date, or the start of the current UTC day
// moved back by OffsetDays.
func (t Threshold) MinDate() time.Time {
	if !t.Fixed.IsZero() {
		return t.Fixed.UTC()
	}
	return now.New(t.now()).BeginningOfDay().AddDate(0, 0, -t.OffsetDays)
}

// ShipDateEligible reports whether raw parses to a time on or after minDate.
// Anything unparseable fails closed.
func ShipDateEligible(raw string, minDate, ref time.Time) bool {
	parsed, ok := parseTimestamp(raw, ref)
	if !ok {
		return false
	}
	return !parsed.Before(minDate)
}

// parseTimestamp accepts the loose date formats found in stored metadata.
// Inputs without a full calendar date ("12", "10:30", "2024-03") are
// rejected; a missing clock time is completed from ref.
func parseTimestamp(raw string, ref time.Time) (time.Time, bool) {
	trimmed := strings.TrimSpace(raw)
	if !hasCalendarDate(trimmed) {
		return time.Time{}, false
	}
	parsed, err := now.New(ref.UTC()).Parse(trimmed)
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}

func hasCalendarDate(s string) bool {
	if s == "" {
		return false
	}
	if numericDateRe.MatchString(s) {
		return true
	}
	if !monthNameRe.MatchString(s) || !yearRe.MatchString(s) {
		return false
	}
	// month name and year still need a day of month
	stripped := clockRe.ReplaceAllString(yearRe.ReplaceAllString(s, ""), "")
	return dayRe.MatchString(stripped)
}

// shipmentEligibility evaluates every shipment date of one order once.
func shipmentEligibility(dates map[string]ShipmentDate, minDate, ref time.Time) map[string]bool {
	out := make(map[string]bool, len(dates))
	for key, date := range dates {
		out[key] = ShipDateEligible(date.ShippingDate, minDate, ref)
	}
	return out
}

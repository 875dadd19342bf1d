package scanform

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
)

// OriginKey fingerprints an address for grouping. Street, city and postcode
// compare case-insensitively; state and country are upper-cased.
func OriginKey(addr Address) string {
	parts := []string{
		strings.ToLower(strings.TrimSpace(addr.Address)),
		strings.ToLower(strings.TrimSpace(addr.Address2)),
		strings.ToLower(strings.TrimSpace(addr.City)),
		strings.ToUpper(strings.TrimSpace(addr.State)),
		strings.ToLower(strings.TrimSpace(addr.Postcode)),
		strings.ToUpper(strings.TrimSpace(addr.Country)),
	}
	return hashString(strings.Join(parts, "|"))
}

func hashString(input string) string {
	sum := md5.Sum([]byte(input))
	return hex.EncodeToString(sum[:])
}

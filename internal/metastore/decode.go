package metastore

import (
	"bytes"
	"encoding/json"
)

// Decode unmarshals a raw stored value. Empty, null and malformed payloads
// all report ok=false so a single corrupt record is treated as absent.
func Decode[T any](raw string) (T, bool) {
	var out T
	trimmed := bytes.TrimSpace([]byte(raw))
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return out, false
	}
	if err := json.Unmarshal(trimmed, &out); err != nil {
		return out, false
	}
	return out, true
}

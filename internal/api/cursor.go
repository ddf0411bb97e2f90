package api

import (
	"encoding/base64"
	"encoding/json/v2"
	"fmt"
)

// Cursor tokens are JSON-encoded string tuples wrapped in base64url, so
// a composite continuation key (e.g. timestamp plus shelf ID) travels
// through a transport that only carries opaque strings. Timestamps go
// in as decimal strings to keep 64-bit precision.

// EncodeCursor builds an opaque cursor token from tuple parts. An empty
// tuple encodes to the empty cursor (first page).
func EncodeCursor(parts ...string) string {
	if len(parts) == 0 {
		return ""
	}
	raw, err := json.Marshal(parts)
	if err != nil {
		// A []string never fails to marshal.
		panic(fmt.Sprintf("encode cursor: %v", err))
	}
	return base64.URLEncoding.EncodeToString(raw)
}

// DecodeCursor unwraps a cursor token back into its tuple parts. The
// empty cursor decodes to nil.
func DecodeCursor(cursor string) ([]string, error) {
	if cursor == "" {
		return nil, nil
	}
	raw, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor: %w", err)
	}
	var parts []string
	if err := json.Unmarshal(raw, &parts); err != nil {
		return nil, fmt.Errorf("invalid cursor: %w", err)
	}
	return parts, nil
}

// Package pagination normalizes page sizes and encodes opaque keyset cursors.
package pagination

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// PageSizeConfig configures page size normalization.
type PageSizeConfig struct {
	Default int
	Max     int
}

// ClampPageSize applies defaults and limits for page sizes.
func ClampPageSize(value int, cfg PageSizeConfig) int {
	pageSize := value
	if pageSize <= 0 {
		pageSize = cfg.Default
	}
	if cfg.Max > 0 && pageSize > cfg.Max {
		pageSize = cfg.Max
	}
	if pageSize <= 0 {
		pageSize = 1
	}
	return pageSize
}

// Cursor is the decoded state of a keyset page token.
type Cursor struct {
	// After is the last key of the previous page.
	After string `json:"after"`
	// FilterHash invalidates tokens when the filter changes between pages.
	FilterHash string `json:"fh,omitempty"`
}

// EncodeCursor returns an opaque token for the cursor.
func EncodeCursor(c Cursor) (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal cursor: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// DecodeCursor decodes a token produced by EncodeCursor and checks that it
// was issued for the same filter.
func DecodeCursor(token string, filter string) (Cursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Cursor{}, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("decode page token: %w", err)
	}
	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return Cursor{}, fmt.Errorf("unmarshal page token: %w", err)
	}
	if c.FilterHash != HashFilter(filter) {
		return Cursor{}, fmt.Errorf("page token does not match filter")
	}
	return c, nil
}

// HashFilter returns a short stable hash of a filter expression; empty
// filters hash to the empty string.
func HashFilter(filter string) string {
	filter = strings.TrimSpace(filter)
	if filter == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(filter))
	return hex.EncodeToString(sum[:8])
}

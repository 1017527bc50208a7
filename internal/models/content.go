// Package models provides data model definitions for the xmemory cloud service.
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// MemoryItem is one normalized entry of a memory export. Key is the semantic
// identity used by the diff engine; ID may be synthesized during parsing.
type MemoryItem struct {
	ID        string `json:"id"`
	Key       string `json:"key"`
	Value     string `json:"value"`
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// MemoryContent is the normalized form of a raw export. Raw preserves the
// original input verbatim; Items is a derived, best-effort parse.
type MemoryContent struct {
	Raw      string            `json:"raw"`
	Items    []MemoryItem      `json:"items"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Value implements driver.Valuer so MemoryContent can be stored as a JSON
// text column.
func (c MemoryContent) Value() (driver.Value, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal memory content: %w", err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner for MemoryContent.
func (c *MemoryContent) Scan(value interface{}) error {
	if value == nil {
		*c = MemoryContent{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into MemoryContent", value)
	}
	return json.Unmarshal(data, c)
}

// ModifiedItem pairs the previous and current form of an item whose value
// changed between two versions.
type ModifiedItem struct {
	Before MemoryItem `json:"before"`
	After  MemoryItem `json:"after"`
}

// VersionDiff describes the structural change between two memory contents,
// keyed by item Key.
type VersionDiff struct {
	Added    []MemoryItem   `json:"added"`
	Removed  []MemoryItem   `json:"removed"`
	Modified []ModifiedItem `json:"modified"`
	Summary  string         `json:"summary"`
}

// Empty reports whether the diff carries no changes.
func (d *VersionDiff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Modified) == 0
}

// Value implements driver.Valuer so a VersionDiff can be stored as a JSON
// text column.
func (d VersionDiff) Value() (driver.Value, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal version diff: %w", err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner for VersionDiff.
func (d *VersionDiff) Scan(value interface{}) error {
	if value == nil {
		*d = VersionDiff{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into VersionDiff", value)
	}
	return json.Unmarshal(data, d)
}

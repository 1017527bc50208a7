// Package memory tests for export normalization.
package memory

import (
	"encoding/json"
	"testing"

	"github.com/xmemory/xmemory/internal/models"
)

// TestParse_bareArray verifies the ChatGPT-style bare array shape.
func TestParse_bareArray(t *testing.T) {
	raw := `[{"key":"Likes Go","value":"prefers explicit errors"},{"key":"Timezone","value":"UTC+8"}]`

	content := Parse(raw)

	if content.Raw != raw {
		t.Error("Parse() must preserve the raw input verbatim")
	}
	if len(content.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(content.Items))
	}
	if content.Items[0].Key != "Likes Go" || content.Items[0].Value != "prefers explicit errors" {
		t.Errorf("item 0 = %+v", content.Items[0])
	}
	if content.Items[1].Key != "Timezone" || content.Items[1].Value != "UTC+8" {
		t.Errorf("item 1 = %+v", content.Items[1])
	}
}

// TestParse_roundTrip verifies key/value pairs survive a marshal-parse cycle
// in order.
func TestParse_roundTrip(t *testing.T) {
	items := []models.MemoryItem{
		{ID: "a", Key: "one", Value: "1"},
		{ID: "b", Key: "two", Value: "2"},
		{ID: "c", Key: "three", Value: "3"},
	}
	raw, err := json.Marshal(items)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	content := Parse(string(raw))

	if len(content.Items) != len(items) {
		t.Fatalf("items = %d, want %d", len(content.Items), len(items))
	}
	for i, want := range items {
		got := content.Items[i]
		if got.Key != want.Key || got.Value != want.Value {
			t.Errorf("item %d = {%q %q}, want {%q %q}", i, got.Key, got.Value, want.Key, want.Value)
		}
	}
}

// TestParse_wrappedMemories verifies the Claude-style envelope shape.
func TestParse_wrappedMemories(t *testing.T) {
	raw := `{"memories":[{"title":"Project","content":"working on xmemory"}],"metadata":{"exported_at":"2026-01-15T00:00:00Z","source":"claude"}}`

	content := Parse(raw)

	if len(content.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(content.Items))
	}
	if content.Items[0].Key != "Project" {
		t.Errorf("key fallback to title failed: %q", content.Items[0].Key)
	}
	if content.Items[0].Value != "working on xmemory" {
		t.Errorf("value fallback to content failed: %q", content.Items[0].Value)
	}
	if content.Metadata["exported_at"] != "2026-01-15T00:00:00Z" {
		t.Errorf("metadata not preserved: %v", content.Metadata)
	}
	if content.Metadata["source"] != "claude" {
		t.Errorf("metadata not preserved: %v", content.Metadata)
	}
}

// TestParse_wrappedWithoutMetadata verifies exported_at is synthesized.
func TestParse_wrappedWithoutMetadata(t *testing.T) {
	content := Parse(`{"memories":[]}`)

	if len(content.Items) != 0 {
		t.Errorf("items = %d, want 0", len(content.Items))
	}
	if content.Metadata["exported_at"] == "" {
		t.Error("exported_at should be synthesized when metadata is absent")
	}
}

// TestParse_keyAndValueFallbacks verifies the per-item fallback chains.
func TestParse_keyAndValueFallbacks(t *testing.T) {
	raw := `[{"note":"no recognized fields"},{"title":"Titled"},"bare string"]`

	content := Parse(raw)

	if len(content.Items) != 3 {
		t.Fatalf("items = %d, want 3", len(content.Items))
	}
	if content.Items[0].Key != "Memory 1" {
		t.Errorf("positional key fallback = %q, want \"Memory 1\"", content.Items[0].Key)
	}
	if content.Items[0].Value != `{"note":"no recognized fields"}` {
		t.Errorf("value fallback to element JSON = %q", content.Items[0].Value)
	}
	if content.Items[1].Key != "Titled" {
		t.Errorf("title fallback = %q", content.Items[1].Key)
	}
	if content.Items[2].Value != "bare string" {
		t.Errorf("string element value = %q", content.Items[2].Value)
	}
	if content.Items[2].ID != "item-2" {
		t.Errorf("synthesized id = %q, want item-2", content.Items[2].ID)
	}
}

// TestParse_malformedNeverFails verifies the fallback path for non-JSON input.
func TestParse_malformedNeverFails(t *testing.T) {
	inputs := []string{
		"not json at all",
		"{truncated",
		"42",
		`"just a string"`,
		"",
	}

	for _, raw := range inputs {
		content := Parse(raw)
		if content.Raw != raw {
			t.Errorf("Parse(%q) did not preserve raw", raw)
		}
		if len(content.Items) != 1 {
			t.Errorf("Parse(%q) items = %d, want 1 fallback item", raw, len(content.Items))
			continue
		}
		item := content.Items[0]
		if item.ID != "item-0" || item.Key != "Memory" || item.Value != raw {
			t.Errorf("Parse(%q) fallback item = %+v", raw, item)
		}
	}
}

// TestParse_emptyArray verifies an empty export is valid, not a fallback.
func TestParse_emptyArray(t *testing.T) {
	content := Parse("[]")

	if len(content.Items) != 0 {
		t.Errorf("items = %d, want 0", len(content.Items))
	}
	if content.Raw != "[]" {
		t.Errorf("raw = %q", content.Raw)
	}
}

package memory

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/xmemory/xmemory/internal/models"
)

// exportVariant identifies the recognized shapes of a raw memory export.
type exportVariant int

const (
	variantArray   exportVariant = iota // top-level JSON array of items
	variantWrapped                      // {"memories": [...], "metadata": {...}}
	variantUnknown                      // anything else, including malformed JSON
)

// rawExportItem is the loose per-item shape shared by ChatGPT and Claude
// exports. All fields are optional; parsing fills the gaps.
type rawExportItem struct {
	ID        string `json:"id"`
	Key       string `json:"key"`
	Title     string `json:"title"`
	Value     string `json:"value"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// wrappedExport is the Claude-style envelope.
type wrappedExport struct {
	Memories []json.RawMessage          `json:"memories"`
	Metadata map[string]json.RawMessage `json:"metadata"`
}

// Parse normalizes a raw export string into a MemoryContent. It is total:
// malformed JSON or an unrecognized shape degrades to a single synthetic item
// wrapping the whole input, never an error.
func Parse(raw string) models.MemoryContent {
	variant, elements, metadata := detectVariant(raw)
	switch variant {
	case variantArray:
		return models.MemoryContent{
			Raw:      raw,
			Items:    parseItems(elements),
			Metadata: map[string]string{"exported_at": time.Now().UTC().Format(time.RFC3339)},
		}
	case variantWrapped:
		meta := stringifyMetadata(metadata)
		if _, ok := meta["exported_at"]; !ok {
			meta["exported_at"] = time.Now().UTC().Format(time.RFC3339)
		}
		return models.MemoryContent{
			Raw:      raw,
			Items:    parseItems(elements),
			Metadata: meta,
		}
	default:
		return fallbackContent(raw)
	}
}

// detectVariant classifies the raw input into one of the supported shapes.
func detectVariant(raw string) (exportVariant, []json.RawMessage, map[string]json.RawMessage) {
	var elements []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &elements); err == nil {
		return variantArray, elements, nil
	}

	var wrapped wrappedExport
	if err := json.Unmarshal([]byte(raw), &wrapped); err == nil && wrapped.Memories != nil {
		return variantWrapped, wrapped.Memories, wrapped.Metadata
	}

	return variantUnknown, nil, nil
}

// parseItems maps raw export elements to normalized items. Key falls back
// through key, title, then a positional label; value through value, content,
// then the element's own JSON.
func parseItems(elements []json.RawMessage) []models.MemoryItem {
	items := make([]models.MemoryItem, 0, len(elements))
	for i, element := range elements {
		items = append(items, parseItem(element, i))
	}
	return items
}

func parseItem(element json.RawMessage, index int) models.MemoryItem {
	item := models.MemoryItem{
		ID:  fmt.Sprintf("item-%d", index),
		Key: fmt.Sprintf("Memory %d", index+1),
	}

	var obj rawExportItem
	if err := json.Unmarshal(element, &obj); err == nil {
		if obj.ID != "" {
			item.ID = obj.ID
		}
		switch {
		case obj.Key != "":
			item.Key = obj.Key
		case obj.Title != "":
			item.Key = obj.Title
		}
		switch {
		case obj.Value != "":
			item.Value = obj.Value
		case obj.Content != "":
			item.Value = obj.Content
		default:
			item.Value = string(element)
		}
		item.CreatedAt = obj.CreatedAt
		item.UpdatedAt = obj.UpdatedAt
		return item
	}

	// Non-object element: a bare string becomes its unquoted value, anything
	// else keeps its JSON form.
	var s string
	if err := json.Unmarshal(element, &s); err == nil {
		item.Value = s
	} else {
		item.Value = string(element)
	}
	return item
}

// fallbackContent wraps an unparseable export in a single synthetic item so a
// sync never fails on odd input.
func fallbackContent(raw string) models.MemoryContent {
	return models.MemoryContent{
		Raw: raw,
		Items: []models.MemoryItem{
			{
				ID:    "item-0",
				Key:   "Memory",
				Value: raw,
			},
		},
		Metadata: map[string]string{"exported_at": time.Now().UTC().Format(time.RFC3339)},
	}
}

// stringifyMetadata flattens free-form export metadata to strings. JSON
// strings keep their unquoted value, everything else its compact JSON.
func stringifyMetadata(metadata map[string]json.RawMessage) map[string]string {
	out := make(map[string]string, len(metadata))
	for k, v := range metadata {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			out[k] = s
			continue
		}
		out[k] = string(v)
	}
	return out
}

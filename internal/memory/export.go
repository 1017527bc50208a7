package memory

import (
	"encoding/json"

	"github.com/xmemory/xmemory/internal/models"
)

// ExportRaw reconstructs a downloadable export for a memory. The original
// raw input is returned verbatim when present; otherwise the export is
// rebuilt from the normalized items in the platform's native shape:
// chatgpt gets a bare item array, claude the {memories, metadata} envelope,
// anything else a pretty-printed dump of the whole content.
func ExportRaw(platform string, content models.MemoryContent) string {
	if content.Raw != "" {
		return content.Raw
	}

	switch platform {
	case models.PlatformChatGPT:
		data, err := json.MarshalIndent(content.Items, "", "  ")
		if err != nil {
			return content.Raw
		}
		return string(data)
	case models.PlatformClaude:
		envelope := map[string]interface{}{
			"memories": content.Items,
			"metadata": content.Metadata,
		}
		data, err := json.MarshalIndent(envelope, "", "  ")
		if err != nil {
			return content.Raw
		}
		return string(data)
	default:
		data, err := json.MarshalIndent(content, "", "  ")
		if err != nil {
			return content.Raw
		}
		return string(data)
	}
}

package memory

import (
	"fmt"
	"strings"

	"github.com/xmemory/xmemory/internal/models"
)

// NoChanges is the summary sentinel for a diff that carries no changes.
const NoChanges = "no changes"

// keyMap indexes items by Key while preserving first-occurrence order.
// Duplicate keys within one content are last-write-wins: the later item
// replaces the earlier one, at the earlier position.
type keyMap struct {
	order []string
	items map[string]models.MemoryItem
}

func newKeyMap(items []models.MemoryItem) keyMap {
	m := keyMap{items: make(map[string]models.MemoryItem, len(items))}
	for _, item := range items {
		if _, seen := m.items[item.Key]; !seen {
			m.order = append(m.order, item.Key)
		}
		m.items[item.Key] = item
	}
	return m
}

// Diff computes the structural change from old to new, keyed by item Key.
// Only presence and the Value field matter: a changed ID or timestamp on the
// same key is not a modification.
func Diff(oldContent, newContent models.MemoryContent) models.VersionDiff {
	oldMap := newKeyMap(oldContent.Items)
	newMap := newKeyMap(newContent.Items)

	diff := models.VersionDiff{
		Added:    []models.MemoryItem{},
		Removed:  []models.MemoryItem{},
		Modified: []models.ModifiedItem{},
	}

	for _, key := range newMap.order {
		newItem := newMap.items[key]
		oldItem, exists := oldMap.items[key]
		switch {
		case !exists:
			diff.Added = append(diff.Added, newItem)
		case oldItem.Value != newItem.Value:
			diff.Modified = append(diff.Modified, models.ModifiedItem{Before: oldItem, After: newItem})
		}
	}

	for _, key := range oldMap.order {
		if _, exists := newMap.items[key]; !exists {
			diff.Removed = append(diff.Removed, oldMap.items[key])
		}
	}

	diff.Summary = summarize(&diff)
	return diff
}

// summarize renders a diff as a compact "+N, -N, ~N" line.
func summarize(diff *models.VersionDiff) string {
	var parts []string
	if len(diff.Added) > 0 {
		parts = append(parts, fmt.Sprintf("+%d", len(diff.Added)))
	}
	if len(diff.Removed) > 0 {
		parts = append(parts, fmt.Sprintf("-%d", len(diff.Removed)))
	}
	if len(diff.Modified) > 0 {
		parts = append(parts, fmt.Sprintf("~%d", len(diff.Modified)))
	}
	if len(parts) == 0 {
		return NoChanges
	}
	return strings.Join(parts, ", ")
}

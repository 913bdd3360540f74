package transform

import (
	"sort"
	"strings"
)

// DefaultPartIDByPrefix is the serial prefix lookup shipped with the service.
var DefaultPartIDByPrefix = map[string]string{
	"00": "A3925DD2-F7C3-4E27-B487-E547F8F980E2",
	"05": "B159B8DA-AD61-4C25-97C8-C82CF7955D06",
}

type prefixEntry struct {
	prefix string
	partID string
}

// PrefixTable resolves a device serial to a part id. It is immutable after
// construction and safe for concurrent use.
type PrefixTable struct {
	entries []prefixEntry
}

// NewPrefixTable copies the mapping. Empty prefixes are ignored.
func NewPrefixTable(byPrefix map[string]string) PrefixTable {
	entries := make([]prefixEntry, 0, len(byPrefix))
	for prefix, partID := range byPrefix {
		prefix = strings.TrimSpace(prefix)
		partID = strings.TrimSpace(partID)
		if prefix == "" || partID == "" {
			continue
		}
		entries = append(entries, prefixEntry{prefix: prefix, partID: partID})
	}
	// Longest prefix first, then lexical for a stable order.
	sort.Slice(entries, func(i, j int) bool {
		if len(entries[i].prefix) != len(entries[j].prefix) {
			return len(entries[i].prefix) > len(entries[j].prefix)
		}
		return entries[i].prefix < entries[j].prefix
	})
	return PrefixTable{entries: entries}
}

// Resolve returns the part id of the longest prefix matching serial, or nil.
func (t PrefixTable) Resolve(serial string) *string {
	if serial == "" {
		return nil
	}
	for _, e := range t.entries {
		if strings.HasPrefix(serial, e.prefix) {
			partID := e.partID
			return &partID
		}
	}
	return nil
}

// Len reports the number of usable prefixes.
func (t PrefixTable) Len() int { return len(t.entries) }

package vocab

import "strings"

// Hit is one blocked phrase found in a text.
type Hit struct {
	Phrase      string `json:"phrase"`
	Replacement string `json:"replacement,omitempty"`
	Count       int    `json:"count"`
}

// Scan returns the blocked phrases present in text (case-insensitive), in list
// order, each reported once with its occurrence count. It returns nil when
// nothing is found.
func Scan(text string, list List) []Hit {
	if len(list) == 0 || text == "" {
		return nil
	}

	normalizedText := strings.ToLower(text)
	seen := make(map[string]bool)
	var hits []Hit

	for _, p := range list {
		normalizedPhrase := strings.ToLower(strings.TrimSpace(p.Pattern))
		if normalizedPhrase == "" || seen[normalizedPhrase] {
			continue
		}
		if count := strings.Count(normalizedText, normalizedPhrase); count > 0 {
			seen[normalizedPhrase] = true
			hits = append(hits, Hit{Phrase: p.Pattern, Replacement: p.Replacement, Count: count})
		}
	}
	return hits
}

// ScanStrings is Scan for a plain phrase list.
func ScanStrings(text string, phrases []string) []Hit {
	return Scan(text, List(nil).Merge("", phrases))
}

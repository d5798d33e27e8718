package sanitize

import "strings"

// Clean collapses whitespace runs to single spaces, trims the ends,
// then drops repeated whole words keeping only the first occurrence of
// each (case-sensitive exact match). The generation backend sometimes
// stutters filler tokens in its low-latency mode; word-level dedup is
// a cheap guard against that. It is knowingly lossy on intentional
// repetition ("no no" becomes "no") and that trade-off is accepted.
func Clean(text string) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}

	seen := make(map[string]struct{}, len(words))
	kept := words[:0]
	for _, word := range words {
		if _, dup := seen[word]; dup {
			continue
		}
		seen[word] = struct{}{}
		kept = append(kept, word)
	}
	return strings.Join(kept, " ")
}

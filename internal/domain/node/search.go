package node

import "strings"

// MatchesText reports whether any property's string form contains text,
// ignoring case.
func (r Record) MatchesText(text string) bool {
	for _, v := range r.Properties {
		if containsFold(v.String(), text) {
			return true
		}
	}
	return false
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

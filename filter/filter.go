// Package filter implements the banned-word check applied to relayed chat.
// The list is built once at startup and is immutable afterwards, so lookups
// need no locking.
package filter

import "strings"

// List is a set of lowercased words matched as case-insensitive substrings.
// Matching is not limited to whole-word boundaries.
type List struct {
	words []string
}

// New builds a List from words, lowercasing and dropping empty entries.
func New(words []string) *List {
	l := &List{}
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			l.words = append(l.words, w)
		}
	}
	return l
}

// Match reports whether message contains any listed word and returns the
// first word that matched.
func (l *List) Match(message string) (string, bool) {
	msg := strings.ToLower(message)
	for _, w := range l.words {
		if strings.Contains(msg, w) {
			return w, true
		}
	}
	return "", false
}

// Len returns the number of words on the list.
func (l *List) Len() int { return len(l.words) }

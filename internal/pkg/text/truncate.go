// Package text holds small string helpers shared by the gateway and
// the notifier.
package text

// Truncate cuts s to at most max bytes and marks the cut with an
// ellipsis. The cut never splits a UTF-8 sequence.
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && s[cut]&0xC0 == 0x80 {
		cut--
	}
	return s[:cut] + "..."
}

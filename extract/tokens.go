package extract

import "unicode/utf8"

// EstimateTokens gives a fast token count estimate without a tokenizer
// dependency: utf8 rune count / 3. English averages ~4 chars/token and CJK
// ~1.5, so /3 is a workable middle ground for mixed content.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	est := n / 3
	if est < 1 {
		return 1
	}
	return est
}

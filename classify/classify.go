// Package classify turns a completed fetch into a usability verdict.
//
// The classifier is a pure, total function: every combination of inputs
// yields exactly one verdict from the five-way taxonomy, with no I/O and
// no side effects. The thresholds were validated empirically — bot walls
// are short (blocked pages cluster around 300 chars), real articles that
// merely discuss CAPTCHAs are long, so signature matches are gated on
// content length.
package classify

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/use-agent/justscrape/models"
)

// Length thresholds, in characters.
const (
	// blockedMaxLength gates bot-wall signature matches: longer content
	// containing the same phrases is treated as an article about the topic.
	blockedMaxLength = 1500

	// thinMaxLength separates thin pages from usable ones.
	thinMaxLength = 500

	// shortLength marks near-certainly-degenerate content.
	shortLength = 200

	// solidLength and richLength raise confidence for usable content.
	solidLength = 2000
	richLength  = 5000
)

// blockedPatterns are bot-wall signatures, matched case-insensitively
// against title+content. Validated against Cloudflare interstitials,
// Medium and Reddit block pages.
var blockedPatterns = []string{
	`verify you are human`,
	`captcha`,
	`cloudflare`,
	`blocked by network security`,
	`please enable javascript`,
	`just a moment\.\.\.`,
	`checking your browser`,
	`ray id:`,
	`access denied`,
	`bot detection`,
}

var blockedRegex = regexp.MustCompile(`(?i)` + strings.Join(blockedPatterns, "|"))

// blockedTitles are exact (case-insensitive) titles of known challenge
// pages. These convict regardless of content length.
var blockedTitles = map[string]struct{}{
	"just a moment...":   {},
	"attention required": {},
	"access denied":      {},
}

// Classify assigns a usability verdict to a completed fetch.
//
// Rules apply in order, first match wins:
//  1. encoding failure
//  2. empty content
//  3. bot-wall signature in title+content, gated on short length
//  4. exact blocked-page title
//  5. thin content
//  6. usable, confidence graded by length and paragraph structure
func Classify(content, title string, hadMarkup, encodingFailure bool) models.Verdict {
	if encodingFailure {
		return models.Verdict{
			Status:           models.StatusEncodingFailure,
			Confidence:       models.ConfidenceHigh,
			DetectedPatterns: []string{"encoding_failure"},
		}
	}

	length := len(content)
	if length == 0 {
		return models.Verdict{
			Status:           models.StatusEmpty,
			Confidence:       models.ConfidenceHigh,
			DetectedPatterns: []string{"no_content"},
		}
	}

	combined := strings.ToLower(title + " " + content)
	if matches := blockedRegex.FindAllString(combined, -1); len(matches) > 0 && length < blockedMaxLength {
		confidence := models.ConfidenceMedium
		if length < thinMaxLength {
			confidence = models.ConfidenceHigh
		}
		return models.Verdict{
			Status:           models.StatusBlocked,
			Confidence:       confidence,
			DetectedPatterns: dedupe(matches),
		}
	}

	if _, ok := blockedTitles[strings.ToLower(title)]; ok {
		return models.Verdict{
			Status:           models.StatusBlocked,
			Confidence:       models.ConfidenceHigh,
			DetectedPatterns: []string{"title:" + title},
		}
	}

	if length < thinMaxLength {
		confidence := models.ConfidenceMedium
		if length < shortLength {
			confidence = models.ConfidenceHigh
		}
		return models.Verdict{
			Status:           models.StatusThin,
			Confidence:       confidence,
			DetectedPatterns: []string{fmt.Sprintf("content_length:%d", length)},
		}
	}

	return models.Verdict{
		Status:           models.StatusUsable,
		Confidence:       usableConfidence(content, length),
		DetectedPatterns: []string{},
	}
}

// usableConfidence grades usable content by length and paragraph structure.
func usableConfidence(content string, length int) models.Confidence {
	hasParagraphs := strings.Count(content, "\n\n") >= 2 || strings.Count(content, "\n") >= 5

	switch {
	case length >= richLength && hasParagraphs:
		return models.ConfidenceHigh
	case length >= solidLength:
		if hasParagraphs {
			return models.ConfidenceHigh
		}
		return models.ConfidenceMedium
	case length >= thinMaxLength:
		return models.ConfidenceMedium
	default:
		return models.ConfidenceLow
	}
}

// dedupe removes repeated pattern matches while keeping first-seen order.
func dedupe(matches []string) []string {
	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		m = strings.ToLower(m)
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}

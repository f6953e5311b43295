package models

// Status is the usability judgment for a completed fetch.
type Status string

const (
	// StatusUsable means the content is trustworthy enough to hand to a caller.
	StatusUsable Status = "usable"

	// StatusThin means a page came back but carries too little content to trust.
	StatusThin Status = "thin"

	// StatusBlocked means the page is a bot wall (CAPTCHA, challenge page).
	StatusBlocked Status = "blocked"

	// StatusEncodingFailure means the body could not be decoded into text.
	StatusEncodingFailure Status = "encoding-failure"

	// StatusEmpty means no content at all was obtained.
	StatusEmpty Status = "empty"

	// StatusError marks a batch entry whose retrieval failed outright
	// (hard error or panic). Never produced by the classifier.
	StatusError Status = "error"
)

// Confidence grades how certain the classifier is about a Status.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Verdict is the classifier's usability judgment for one FetchResult.
// It is derived deterministically: identical inputs always produce an
// identical Verdict.
type Verdict struct {
	Status     Status     `json:"status"`
	Confidence Confidence `json:"confidence"`

	// DetectedPatterns lists the evidence behind the judgment: matched
	// bot-wall phrases, crossed length thresholds, or title markers.
	DetectedPatterns []string `json:"detected_patterns"`
}

// Usable reports whether the verdict allows the content to be used.
func (v Verdict) Usable() bool {
	return v.Status == StatusUsable
}

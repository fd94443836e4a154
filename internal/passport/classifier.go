package passport

import (
	"fmt"
	"regexp"
	"strings"
)

// MinPassportIndicators is the number of independent signals required before
// text is accepted as a passport. A single signal such as the word "passport"
// is not enough.
const MinPassportIndicators = 2

// MinFieldLabels is the number of standard field labels indicator 3 needs.
const MinFieldLabels = 3

var (
	// One uppercase letter and seven digits, standing alone.
	passportNumberToken = regexp.MustCompile(`\b[A-Z][0-9]{7}\b`)

	// MRZ document type and issuing state. OCR often doubles the filler and
	// inserts a space, so both spellings are accepted.
	mrzPrefixPattern = regexp.MustCompile(`(?i)P<\s?IND|P<<\s?IND`)

	fieldLabelPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)NATIONALITY`),
		regexp.MustCompile(`(?i)DATE\s+OF\s+BIRTH`),
		regexp.MustCompile(`(?i)DATE\s+OF\s+ISSUE`),
		regexp.MustCompile(`(?i)DATE\s+OF\s+EXPIRY`),
		regexp.MustCompile(`(?i)SURNAME|GIVEN\s+NAME`),
		regexp.MustCompile(`(?i)PLACE\s+OF\s+BIRTH`),
	}

	issuerPhrases = []string{
		"republic of india",
		"भारत गणराज्य",
		"passport",
		"पासपोर्ट",
	}
)

// Classify decides whether text plausibly belongs to a passport by counting
// independent indicators.
func Classify(text string) ClassificationVerdict {
	lower := strings.ToLower(text)
	count := 0
	reasons := make([]string, 0, 4)

	for _, phrase := range issuerPhrases {
		if strings.Contains(lower, phrase) {
			count++
			reasons = append(reasons, "Contains 'Republic of India' or 'Passport' text")
			break
		}
	}

	if hasPassportNumberToken(text) {
		count++
		reasons = append(reasons, "Contains passport number pattern")
	}

	if labels := countFieldLabels(text); labels >= MinFieldLabels {
		count++
		reasons = append(reasons, fmt.Sprintf("Contains %d passport field labels", labels))
	}

	if hasMRZPrefix(text) {
		count++
		reasons = append(reasons, "Contains MRZ (Machine Readable Zone) code")
	}

	return ClassificationVerdict{
		Valid:          count >= MinPassportIndicators,
		IndicatorCount: count,
		Reasons:        reasons,
	}
}

func hasPassportNumberToken(text string) bool {
	return passportNumberToken.MatchString(text)
}

func hasMRZPrefix(text string) bool {
	return mrzPrefixPattern.MatchString(text)
}

func countFieldLabels(text string) int {
	n := 0
	for _, p := range fieldLabelPatterns {
		if p.MatchString(text) {
			n++
		}
	}
	return n
}

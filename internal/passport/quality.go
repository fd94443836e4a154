package passport

import "unicode/utf8"

const (
	// MinTextLength is the shortest recognized text considered a complete read.
	MinTextLength = 100

	qualityPenaltyPerIssue = 30
)

// Quality gate issue messages
const (
	IssueTextTooShort     = "Text extraction too short - image may be blurred"
	IssueNumberNotVisible = "Passport number area not clearly visible"
	IssueMRZMissing       = "MRZ (Machine Readable Zone) missing or unclear"
)

// CheckQuality reports every quality problem found in a single pass. No check
// short-circuits the others.
func CheckQuality(raw RawOCRResult) QualityVerdict {
	issues := make([]string, 0, 4)

	if utf8.RuneCountInString(raw.Text) < MinTextLength {
		issues = append(issues, IssueTextTooShort)
	}

	if !hasPassportNumberToken(raw.Text) {
		issues = append(issues, IssueNumberNotVisible)
	}

	if !hasMRZPrefix(raw.Text) {
		issues = append(issues, IssueMRZMissing)
	}

	if raw.ExitCode != OCRSuccessExitCode && raw.ErrorDetails != "" {
		issues = append(issues, raw.ErrorDetails)
	}

	confidence := 100 - qualityPenaltyPerIssue*len(issues)
	if confidence < 0 {
		confidence = 0
	}

	return QualityVerdict{
		Passed:     len(issues) == 0,
		Issues:     issues,
		Confidence: confidence,
	}
}

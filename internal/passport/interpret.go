package passport

import "strings"

// Stage names where a pipeline run stopped
type Stage string

const (
	StageAcquisition    Stage = "acquisition"
	StageClassification Stage = "classification"
	StageQuality        Stage = "quality"
	StageCompleted      Stage = "completed"
)

// User-facing outcome messages
const (
	MessageExtractionFailed = "Failed to extract text from image"
	MessageNotPassport      = "The uploaded document does not appear to be a passport"
	MessageQualityPrefix    = "Passport image quality issues detected: "
	MessageSuccess          = "Passport data extracted successfully"
)

// Outcome is the structured result of one passport run. Failures are data,
// never errors.
type Outcome struct {
	Success      bool            `json:"success"`
	IsPassport   *bool           `json:"isPassport,omitempty"`
	QualityIssue bool            `json:"qualityIssue,omitempty"`
	Message      string          `json:"message"`
	Reasons      []string        `json:"reason,omitempty"`
	Issues       []string        `json:"issues,omitempty"`
	Error        string          `json:"error,omitempty"`
	Data         *ScoredRecord   `json:"data,omitempty"`
	QualityCheck *QualityVerdict `json:"qualityCheck,omitempty"`
	Stage        Stage           `json:"stage"`
}

// AcquisitionFailure builds the outcome for a provider or transport failure.
func AcquisitionFailure(errMsg string) *Outcome {
	return &Outcome{
		Success: false,
		Message: MessageExtractionFailed,
		Error:   errMsg,
		Stage:   StageAcquisition,
	}
}

// Interpret runs classification, the quality gate, extraction, reconciliation
// and scoring over an acquired OCR result.
func Interpret(raw RawOCRResult) *Outcome {
	if !raw.Success {
		return AcquisitionFailure(raw.Error)
	}

	verdict := Classify(raw.Text)
	if !verdict.Valid {
		return &Outcome{
			Success:    false,
			IsPassport: boolPtr(false),
			Message:    MessageNotPassport,
			Reasons:    verdict.Reasons,
			Stage:      StageClassification,
		}
	}

	quality := CheckQuality(raw)
	if !quality.Passed {
		return &Outcome{
			Success:      false,
			IsPassport:   boolPtr(true),
			QualityIssue: true,
			Message:      MessageQualityPrefix + strings.Join(quality.Issues, ", "),
			Issues:       quality.Issues,
			QualityCheck: &quality,
			Stage:        StageQuality,
		}
	}

	record := Score(Reconcile(ExtractFields(raw.Text), ExtractMRZ(raw.Text)))
	return &Outcome{
		Success:      true,
		IsPassport:   boolPtr(true),
		Message:      MessageSuccess,
		Data:         &record,
		QualityCheck: &quality,
		Stage:        StageCompleted,
	}
}

func boolPtr(b bool) *bool { return &b }

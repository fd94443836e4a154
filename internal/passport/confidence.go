package passport

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Confidence values assigned per field
const (
	BaseConfidence           = 50
	MRZConfidence            = 95
	ValidPassportNumberScore = 90
	ValidDateScore           = 85
	ValidGenderScore         = 90
	ValidNameScore           = 80
	InvalidNameScore         = 60
	InvalidFieldScore        = BaseConfidence
)

// Thresholds of the form's auto-fill policy. The form enforces them; they are
// exported so callers compare against the same numbers.
const (
	AutoFillThreshold = 70
	ReviewThreshold   = 50
)

var (
	passportNumberFormat = regexp.MustCompile(`^[A-Z]\d{7}$`)
	dateFormat           = regexp.MustCompile(`^\d{2}-\d{2}-\d{4}$`)
	nameFormat           = regexp.MustCompile(`^[A-Z\s]+$`)
)

// FillDecision is what the form does with a scored field
type FillDecision string

const (
	FillAuto   FillDecision = "auto"
	FillReview FillDecision = "review"
	FillManual FillDecision = "manual"
)

// ScoredField is one non-empty field with its confidence
type ScoredField struct {
	Field      Field  `json:"field"`
	Value      string `json:"value"`
	Confidence int    `json:"confidence"`
	Source     Source `json:"source"`
}

// Decision applies the form's auto-fill policy to the field.
func (f ScoredField) Decision() FillDecision {
	switch {
	case f.Confidence >= AutoFillThreshold:
		return FillAuto
	case f.Confidence >= ReviewThreshold:
		return FillReview
	}
	return FillManual
}

// ScoredRecord is the final output handed to the form
type ScoredRecord struct {
	Fields []ScoredField
}

// Lookup returns the scored field for f, if it was extracted.
func (r ScoredRecord) Lookup(f Field) (ScoredField, bool) {
	for _, sf := range r.Fields {
		if sf.Field == f {
			return sf, true
		}
	}
	return ScoredField{}, false
}

// MarshalJSON emits the flat form shape: {"surname": "X", "surnameConfidence": 80, ...}
func (r ScoredRecord) MarshalJSON() ([]byte, error) {
	flat := make(map[string]interface{}, len(r.Fields)*2)
	for _, sf := range r.Fields {
		flat[string(sf.Field)] = sf.Value
		flat[string(sf.Field)+"Confidence"] = sf.Confidence
	}
	return json.Marshal(flat)
}

// UnmarshalJSON reads the flat form shape back. Provenance is not part of the
// wire shape, so every field comes back as SourceText.
func (r *ScoredRecord) UnmarshalJSON(data []byte) error {
	var flat map[string]json.RawMessage
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	r.Fields = r.Fields[:0]
	for _, f := range AllFields {
		raw, ok := flat[string(f)]
		if !ok {
			continue
		}
		sf := ScoredField{Field: f, Source: SourceText}
		if err := json.Unmarshal(raw, &sf.Value); err != nil {
			return err
		}
		if c, ok := flat[string(f)+"Confidence"]; ok {
			if err := json.Unmarshal(c, &sf.Confidence); err != nil {
				return err
			}
		}
		r.Fields = append(r.Fields, sf)
	}
	return nil
}

// Score assigns a confidence to every non-empty reconciled field.
func Score(rec ReconciledRecord) ScoredRecord {
	scored := make([]ScoredField, 0, len(AllFields))
	for _, f := range AllFields {
		v := rec.Fields.Get(f)
		if v == "" {
			continue
		}
		src := rec.SourceOf(f)
		scored = append(scored, ScoredField{
			Field:      f,
			Value:      v,
			Confidence: fieldConfidence(f, v, src),
			Source:     src,
		})
	}
	return ScoredRecord{Fields: scored}
}

// fieldConfidence scores one value. The MRZ tag wins outright; validators only
// run for fields that did not come from MRZ.
func fieldConfidence(f Field, value string, src Source) int {
	if src == SourceMRZ {
		return MRZConfidence
	}

	switch {
	case f == FieldPassportNumber:
		if passportNumberFormat.MatchString(value) {
			return ValidPassportNumberScore
		}
		return InvalidFieldScore
	case isDateField(f):
		if dateFormat.MatchString(value) {
			return ValidDateScore
		}
		return InvalidFieldScore
	case f == FieldGender:
		if value == GenderMale || value == GenderFemale {
			return ValidGenderScore
		}
		return InvalidFieldScore
	case f == FieldSurname || f == FieldGivenName:
		if nameFormat.MatchString(value) {
			return ValidNameScore
		}
		return InvalidNameScore
	}
	return BaseConfidence
}

func isDateField(f Field) bool {
	return strings.Contains(strings.ToLower(string(f)), "date")
}

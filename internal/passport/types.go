/**
 * Passport OCR types - records passed between pipeline stages
 *
 * Every record is built fresh per OCR invocation and never mutated after
 * construction; each stage derives the next record from the previous one.
 */

package passport

// OCRSuccessExitCode is the provider exit code that signals a clean parse.
const OCRSuccessExitCode = 1

// RawOCRResult is the output of the text acquisition stage
type RawOCRResult struct {
	Success      bool   `json:"success"`
	Text         string `json:"text"`
	ExitCode     int    `json:"exitCode"`
	ErrorDetails string `json:"errorDetails,omitempty"`
	Error        string `json:"error,omitempty"`
}

// ClassificationVerdict says whether recognized text plausibly came from a passport
type ClassificationVerdict struct {
	Valid          bool     `json:"isValid"`
	IndicatorCount int      `json:"indicatorCount"`
	Reasons        []string `json:"reasons"`
}

// QualityVerdict says whether recognized text is clear enough for field extraction
type QualityVerdict struct {
	Passed     bool     `json:"passed"`
	Issues     []string `json:"issues"`
	Confidence int      `json:"confidence"`
}

// Source records where a reconciled field value came from
type Source string

const (
	SourceText Source = "TEXT"
	SourceMRZ  Source = "MRZ"
)

// Gender values produced by both extractors
const (
	GenderMale   = "MALE"
	GenderFemale = "FEMALE"
)

// Field names a passport field. The string value is the JSON key the form uses.
type Field string

const (
	FieldTravelDocumentType  Field = "travelDocumentType"
	FieldPassportCountryCode Field = "passportCountryCode"
	FieldPassportNumber      Field = "passportNumber"
	FieldSurname             Field = "surname"
	FieldGivenName           Field = "givenName"
	FieldNationality         Field = "nationality"
	FieldGender              Field = "gender"
	FieldDateOfBirth         Field = "dateOfBirth"
	FieldPlaceOfBirth        Field = "placeOfBirth"
	FieldDateOfIssue         Field = "dateOfIssue"
	FieldDateOfExpiry        Field = "dateOfExpiry"
	FieldIsBiometric         Field = "isBiometric"
)

// AllFields lists every field in output order.
var AllFields = []Field{
	FieldTravelDocumentType,
	FieldPassportCountryCode,
	FieldPassportNumber,
	FieldSurname,
	FieldGivenName,
	FieldNationality,
	FieldGender,
	FieldDateOfBirth,
	FieldPlaceOfBirth,
	FieldDateOfIssue,
	FieldDateOfExpiry,
	FieldIsBiometric,
}

// MRZRecord holds the fields decoded from a TD3 machine readable zone
type MRZRecord struct {
	PassportNumber string `json:"passportNumber"`
	Nationality    string `json:"nationality"`
	DateOfBirth    string `json:"dateOfBirth"`
	DateOfExpiry   string `json:"dateOfExpiry"`
	Gender         string `json:"gender"`
	Surname        string `json:"surname"`
	GivenName      string `json:"givenName"`
	Source         Source `json:"source"`
}

// ExtractedFieldSet is the heuristic free-text extraction result
type ExtractedFieldSet struct {
	TravelDocumentType  string `json:"travelDocumentType"`
	PassportCountryCode string `json:"passportCountryCode"`
	PassportNumber      string `json:"passportNumber"`
	Surname             string `json:"surname"`
	GivenName           string `json:"givenName"`
	Nationality         string `json:"nationality"`
	Gender              string `json:"gender"`
	DateOfBirth         string `json:"dateOfBirth"`
	PlaceOfBirth        string `json:"placeOfBirth"`
	DateOfIssue         string `json:"dateOfIssue"`
	DateOfExpiry        string `json:"dateOfExpiry"`
	IsBiometric         string `json:"isBiometric"`
}

// Get returns the value stored for f
func (s ExtractedFieldSet) Get(f Field) string {
	switch f {
	case FieldTravelDocumentType:
		return s.TravelDocumentType
	case FieldPassportCountryCode:
		return s.PassportCountryCode
	case FieldPassportNumber:
		return s.PassportNumber
	case FieldSurname:
		return s.Surname
	case FieldGivenName:
		return s.GivenName
	case FieldNationality:
		return s.Nationality
	case FieldGender:
		return s.Gender
	case FieldDateOfBirth:
		return s.DateOfBirth
	case FieldPlaceOfBirth:
		return s.PlaceOfBirth
	case FieldDateOfIssue:
		return s.DateOfIssue
	case FieldDateOfExpiry:
		return s.DateOfExpiry
	case FieldIsBiometric:
		return s.IsBiometric
	}
	return ""
}

// ReconciledRecord is the merge of free-text fields and the MRZ record
type ReconciledRecord struct {
	Fields  ExtractedFieldSet
	sources map[Field]Source
}

// SourceOf reports the provenance of f. Fields never touched by MRZ are SourceText.
func (r ReconciledRecord) SourceOf(f Field) Source {
	if s, ok := r.sources[f]; ok {
		return s
	}
	return SourceText
}

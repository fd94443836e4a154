package passport

import (
	"regexp"
	"strings"
)

// Constant values for the single document family handled here
const (
	DocumentTypeOrdinary = "Ordinary"
	CountryCodeIndia     = "IND"
	NationalityIndian    = "INDIAN"
	BiometricYes         = "yes"
	BiometricNo          = "no"

	// Passports issued from this year on carry a chip.
	biometricSinceYear = 2008
)

// matcher extracts one field value from text. Matchers for a field are tried
// in order and the first match wins.
type matcher func(text string) (string, bool)

// firstMatch runs matchers in order and returns the first hit, or "".
func firstMatch(text string, matchers []matcher) string {
	for _, m := range matchers {
		if v, ok := m(text); ok {
			return v
		}
	}
	return ""
}

// capture returns a matcher yielding the trimmed first submatch of re.
func capture(re *regexp.Regexp) matcher {
	return func(text string) (string, bool) {
		m := re.FindStringSubmatch(text)
		if m == nil {
			return "", false
		}
		v := strings.TrimSpace(m[1])
		return v, v != ""
	}
}

// labeledValue is capture that also refuses values that are really the next
// field's label, which happens when a label is printed without its value.
func labeledValue(re *regexp.Regexp) matcher {
	inner := capture(re)
	return func(text string) (string, bool) {
		v, ok := inner(text)
		if !ok {
			return "", false
		}
		first := strings.ToUpper(strings.Fields(v)[0])
		if labelWords[first] {
			return "", false
		}
		return strings.TrimRight(v, " ,.-"), true
	}
}

var labelWords = map[string]bool{
	"SURNAME":     true,
	"GIVEN":       true,
	"NAME":        true,
	"SEX":         true,
	"DATE":        true,
	"NATIONALITY": true,
	"PLACE":       true,
	"PASSPORT":    true,
}

const (
	// value run: letters and spaces in any case, never crossing a newline
	nameValue  = `((?i:[A-Z][A-Z ]*?))`
	placeValue = `((?i:[A-Z][A-Z ,.\-]*?))`

	surnameStop = `(?:\s+(?i:given|sex|date|nationality|place)|[ \t]*\n|[ \t]*$)`
	givenStop   = `(?:\s+(?i:sex|date|nationality|place)|[ \t]*\n|[ \t]*$)`
	placeStop   = `(?:\s+(?i:date|sex|nationality|given|surname|passport)|[ \t]*\n|[ \t]*$)`
	lineStop    = `(?:[ \t]*\n|[ \t]*$)`
)

var (
	passportNumberMatchers = []matcher{
		capture(regexp.MustCompile(`(?i:passport\s*(?:no|number|n0)\.?)\s*[:\-]?\s*([A-Z][0-9]{7})\b`)),
		capture(regexp.MustCompile(`(?i:\b(?:no|number|n0)\.?)\s*[:\-]?\s*([A-Z][0-9]{7})\b`)),
		capture(regexp.MustCompile(`\b([A-Z][0-9]{7})\b`)),
	}

	genderMatchers = []matcher{
		capture(regexp.MustCompile(`(?i:\bsex)\s*[:\-/]?\s*([MF])\b`)),
		capture(regexp.MustCompile(`(?i:\bsex)\s*/[^\n]*\n\s*([MF])\b`)),
	}

	surnameMatchers = []matcher{
		labeledValue(regexp.MustCompile(`(?i:surname)\s*[:\-]?\s*` + nameValue + surnameStop)),
		labeledValue(regexp.MustCompile(`(?i:(?:family|last)\s*name)\s*[:\-]?\s*` + nameValue + surnameStop)),
		labeledValue(regexp.MustCompile(`(?i:surname)\s*/[^\n]*\n\s*` + nameValue + lineStop)),
	}

	givenNameMatchers = []matcher{
		labeledValue(regexp.MustCompile(`(?i:given\s*names?(?:\(s\))?)\s*[:\-]?\s*` + nameValue + givenStop)),
		labeledValue(regexp.MustCompile(`(?i:first\s*name)\s*[:\-]?\s*` + nameValue + givenStop)),
		labeledValue(regexp.MustCompile(`(?i:given\s*names?(?:\(s\))?)\s*/[^\n]*\n\s*` + nameValue + lineStop)),
	}

	fullNameMatchers = []matcher{
		labeledValue(regexp.MustCompile(`(?i:\bname)\s*[:\-]?\s*` + nameValue + surnameStop)),
	}

	placeOfBirthMatchers = []matcher{
		labeledValue(regexp.MustCompile(`(?i:place\s*of\s*birth)\s*[:\-]?\s*` + placeValue + placeStop)),
		labeledValue(regexp.MustCompile(`(?i:place\s*of\s*birth)\s*/[^\n]*\n\s*` + placeValue + lineStop)),
		labeledValue(regexp.MustCompile(`(?i:birth\s*place)\s*[:\-]?\s*` + placeValue + placeStop)),
	}

	biometricKeywords = regexp.MustCompile(`(?i)chip|biometric|electronic`)

	honorifics = map[string]bool{"MR": true, "MRS": true, "DR": true, "MS": true, "MISS": true}
)

// ExtractFields runs the heuristic free-text extraction. Fields with no
// matching pattern are left empty.
func ExtractFields(text string) ExtractedFieldSet {
	text = normalizeNewlines(text)

	surname := firstMatch(text, surnameMatchers)
	given := firstMatch(text, givenNameMatchers)
	if given != "" {
		given = stripHonorifics(given)
	}
	if surname == "" && given == "" {
		surname, given = splitFullName(firstMatch(text, fullNameMatchers))
	}

	issue := firstMatch(text, dateMatchers(FieldDateOfIssue))

	return ExtractedFieldSet{
		TravelDocumentType:  DocumentTypeOrdinary,
		PassportCountryCode: CountryCodeIndia,
		PassportNumber:      strings.ToUpper(firstMatch(text, passportNumberMatchers)),
		Surname:             surname,
		GivenName:           given,
		Nationality:         extractNationality(text),
		Gender:              extractGender(text),
		DateOfBirth:         firstMatch(text, dateMatchers(FieldDateOfBirth)),
		PlaceOfBirth:        firstMatch(text, placeOfBirthMatchers),
		DateOfIssue:         issue,
		DateOfExpiry:        firstMatch(text, dateMatchers(FieldDateOfExpiry)),
		IsBiometric:         detectBiometric(text, issue),
	}
}

func extractNationality(text string) string {
	if strings.Contains(strings.ToUpper(text), "INDIA") {
		return NationalityIndian
	}
	return ""
}

func extractGender(text string) string {
	switch strings.ToUpper(firstMatch(text, genderMatchers)) {
	case "M":
		return GenderMale
	case "F":
		return GenderFemale
	}
	return ""
}

// detectBiometric always resolves to "yes" for this document family. The
// keyword and issue-year checks are kept as separate branches but neither can
// currently change the answer.
func detectBiometric(text, dateOfIssue string) string {
	flag := BiometricYes
	if biometricKeywords.MatchString(text) {
		flag = BiometricYes
	}
	if dateYear(dateOfIssue) >= biometricSinceYear {
		flag = BiometricYes
	}
	return flag
}

func stripHonorifics(name string) string {
	words := strings.Fields(name)
	kept := words[:0]
	for _, w := range words {
		if honorifics[strings.ToUpper(strings.TrimSuffix(w, "."))] {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}

// splitFullName treats the last word as the surname and the rest as given
// names. A single word is a given name only.
func splitFullName(full string) (string, string) {
	words := strings.Fields(full)
	switch len(words) {
	case 0:
		return "", ""
	case 1:
		return "", stripHonorifics(words[0])
	}
	return words[len(words)-1], stripHonorifics(strings.Join(words[:len(words)-1], " "))
}

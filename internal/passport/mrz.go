/**
 * MRZ Parser - TD3 machine readable zone decoding
 *
 * Line 1: P<IND SURNAME<<GIVEN<NAMES<<<<<<<<<<<<<<<<<<<<<
 * Line 2: NUMBER<<<C NAT YYMMDD C S YYMMDD C ...
 *
 * Parsing is all-or-nothing: any malformed offset yields a parse error and
 * the pipeline falls back to free-text extraction alone.
 */

package passport

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

const (
	mrzFiller      = "<"
	mrzNameDivider = "<<"
	mrzPrefix      = "P<IND"
	mrzPrefixLoose = "P<<IND"

	// TD3 line 2 offsets
	mrzNumberStart = 0
	mrzNumberEnd   = 9
	mrzBirthStart  = 13
	mrzBirthEnd    = 19
	mrzSexIndex    = 20
	mrzExpiryStart = 21
	mrzExpiryEnd   = 27

	// Two-digit years above this pivot are 19xx, the rest 20xx.
	mrzCenturyPivot = 30

	mrzNationality = "INDIAN"
)

// ErrMRZNotFound is returned when the text holds no MRZ line pair.
var ErrMRZNotFound = errors.New("mrz not found")

// MRZParseErrorReason enumerates the ways a located MRZ can be malformed
type MRZParseErrorReason string

const (
	MRZLineTooShort  MRZParseErrorReason = "LINE_TOO_SHORT"
	MRZInvalidDate   MRZParseErrorReason = "INVALID_DATE"
	MRZMissingNumber MRZParseErrorReason = "MISSING_NUMBER"
)

// MRZParseError describes why a located MRZ block could not be decoded
type MRZParseError struct {
	Reason MRZParseErrorReason
	Detail string
}

func (e *MRZParseError) Error() string {
	return fmt.Sprintf("mrz parse failed: %s: %s", e.Reason, e.Detail)
}

// ExtractMRZ returns the decoded MRZ record or nil when none could be parsed.
func ExtractMRZ(text string) *MRZRecord {
	rec, err := ParseMRZ(text)
	if err != nil {
		return nil
	}
	return rec
}

// ParseMRZ locates the first TD3 line pair in text and decodes it.
func ParseMRZ(text string) (*MRZRecord, error) {
	line1, line2, ok := locateMRZ(text)
	if !ok {
		return nil, ErrMRZNotFound
	}
	return decodeTD3(line1, line2)
}

// locateMRZ scans top to bottom for a line starting with the document prefix
// and returns it together with the next raw line.
func locateMRZ(text string) (string, string, bool) {
	lines := strings.Split(normalizeNewlines(text), "\n")
	for i, raw := range lines {
		line := compactUpper(raw)
		if !strings.HasPrefix(line, mrzPrefix) && !strings.HasPrefix(line, mrzPrefixLoose) {
			continue
		}
		if i+1 >= len(lines) {
			return "", "", false
		}
		if strings.HasPrefix(line, mrzPrefixLoose) {
			line = mrzPrefix + line[len(mrzPrefixLoose):]
		}
		return line, compactUpper(lines[i+1]), true
	}
	return "", "", false
}

func decodeTD3(line1, line2 string) (*MRZRecord, error) {
	if len(line2) < mrzExpiryEnd {
		return nil, &MRZParseError{
			Reason: MRZLineTooShort,
			Detail: fmt.Sprintf("line 2 has %d characters, need %d", len(line2), mrzExpiryEnd),
		}
	}

	number := strings.ReplaceAll(line2[mrzNumberStart:mrzNumberEnd], mrzFiller, "")
	if number == "" {
		return nil, &MRZParseError{Reason: MRZMissingNumber, Detail: "passport number is all filler"}
	}

	dob, err := expandMRZDate(line2[mrzBirthStart:mrzBirthEnd])
	if err != nil {
		return nil, err
	}
	expiry, err := expandMRZDate(line2[mrzExpiryStart:mrzExpiryEnd])
	if err != nil {
		return nil, err
	}

	surname, givenName := splitMRZName(line1[len(mrzPrefix):])

	return &MRZRecord{
		PassportNumber: number,
		Nationality:    mrzNationality,
		DateOfBirth:    dob,
		DateOfExpiry:   expiry,
		Gender:         mrzGender(line2[mrzSexIndex]),
		Surname:        surname,
		GivenName:      givenName,
		Source:         SourceMRZ,
	}, nil
}

// expandMRZDate turns yymmdd into dd-mm-yyyy.
func expandMRZDate(yymmdd string) (string, error) {
	for _, r := range yymmdd {
		if !unicode.IsDigit(r) {
			return "", &MRZParseError{Reason: MRZInvalidDate, Detail: fmt.Sprintf("%q is not yymmdd", yymmdd)}
		}
	}
	yy := int(yymmdd[0]-'0')*10 + int(yymmdd[1]-'0')
	century := 2000
	if yy > mrzCenturyPivot {
		century = 1900
	}
	return fmt.Sprintf("%s-%s-%04d", yymmdd[4:6], yymmdd[2:4], century+yy), nil
}

func mrzGender(code byte) string {
	switch code {
	case 'M':
		return GenderMale
	case 'F':
		return GenderFemale
	}
	return ""
}

// splitMRZName splits the name section on the double filler.
func splitMRZName(section string) (string, string) {
	parts := strings.Split(section, mrzNameDivider)
	surname := cleanMRZName(parts[0])
	given := ""
	if len(parts) > 1 {
		given = cleanMRZName(parts[1])
	}
	return surname, given
}

func cleanMRZName(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, mrzFiller, " "))
}

// compactUpper drops all whitespace and upper-cases the line.
func compactUpper(s string) string {
	return strings.ToUpper(strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s))
}

func normalizeNewlines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}

package passport

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var monthNames = []string{
	"january", "february", "march", "april", "may", "june",
	"july", "august", "september", "october", "november", "december",
}

// dateLabel holds the label regex fragment for each dated field
var dateLabel = map[Field]string{
	FieldDateOfBirth:  `(?i:date\s*of\s*birth)`,
	FieldDateOfIssue:  `(?i:date\s*of\s*issue)`,
	FieldDateOfExpiry: `(?i:date\s*of\s*expiry)`,
}

// dateMatchers builds the ordered alternatives for one dated field:
// numeric directly after the label, day + month name, numeric with loose
// whitespace, numeric after an explicit colon.
func dateMatchers(f Field) []matcher {
	label := dateLabel[f]
	return []matcher{
		numericDate(regexp.MustCompile(label + `\s*[:\-]?\s*(\d{2})[/\-](\d{2})[/\-](\d{4})`)),
		monthNameDate(regexp.MustCompile(label + `\s*[:\-]?\s*(\d{1,2})\s+([A-Za-z]{3,9})\.?\s+(\d{4})`)),
		numericDate(regexp.MustCompile(label + `[^\d]{0,40}?(\d{1,2})\s*[/\-.]\s*(\d{1,2})\s*[/\-.]\s*(\d{4})`)),
		numericDate(regexp.MustCompile(label + `\s*:\s*(\d{1,2})[/\-](\d{1,2})[/\-](\d{4})`)),
	}
}

// numericDate matches day, month, year groups and normalizes to dd-mm-yyyy.
// Day and month are range checked independently; impossible combinations such
// as 31/02 are accepted.
func numericDate(re *regexp.Regexp) matcher {
	return func(text string) (string, bool) {
		m := re.FindStringSubmatch(text)
		if m == nil {
			return "", false
		}
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		return formatDate(day, month, m[3])
	}
}

func monthNameDate(re *regexp.Regexp) matcher {
	return func(text string) (string, bool) {
		m := re.FindStringSubmatch(text)
		if m == nil {
			return "", false
		}
		day, _ := strconv.Atoi(m[1])
		month := monthFromName(m[2])
		if month == 0 {
			return "", false
		}
		return formatDate(day, month, m[3])
	}
}

func formatDate(day, month int, year string) (string, bool) {
	if day < 1 || day > 31 || month < 1 || month > 12 {
		return "", false
	}
	return fmt.Sprintf("%02d-%02d-%s", day, month, year), true
}

// monthFromName resolves a month by case-insensitive three-letter prefix, so
// both "Jan" and "January" (and OCR variants like "Sept") resolve. Returns 0
// when nothing matches.
func monthFromName(name string) int {
	lower := strings.ToLower(name)
	if len(lower) < 3 {
		return 0
	}
	for i, full := range monthNames {
		if strings.HasPrefix(lower, full[:3]) {
			return i + 1
		}
	}
	return 0
}

// dateYear returns the year of a dd-mm-yyyy value, or 0.
func dateYear(date string) int {
	if len(date) != len("dd-mm-yyyy") {
		return 0
	}
	y, err := strconv.Atoi(date[6:])
	if err != nil {
		return 0
	}
	return y
}

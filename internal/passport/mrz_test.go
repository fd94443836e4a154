package passport

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mrzBlock builds a TD3 pair around the given line 2 fields
func mrzBlock(number, birth, sex, expiry string) string {
	return "P<INDSHARMA<<RAHUL<KUMAR<<<<<<<<<<<<<<<<<<<<<\n" +
		number + "0IND" + birth + "9" + sex + expiry + "3<<<<<<<<<<<<<<02"
}

func TestParseMRZRoundTrip(t *testing.T) {
	rec, err := ParseMRZ("Some header\n" + mrzBlock("J8369854<", "850815", "F", "300109"))
	require.NoError(t, err)

	assert.Equal(t, "J8369854", rec.PassportNumber)
	assert.Equal(t, "15-08-1985", rec.DateOfBirth)
	assert.Equal(t, GenderFemale, rec.Gender)
	assert.Equal(t, "09-01-2030", rec.DateOfExpiry)
	assert.Equal(t, "SHARMA", rec.Surname)
	assert.Equal(t, "RAHUL KUMAR", rec.GivenName)
	assert.Equal(t, NationalityIndian, rec.Nationality)
	assert.Equal(t, SourceMRZ, rec.Source)
}

func TestExpandMRZDateCenturyPivot(t *testing.T) {
	testCases := []struct {
		yymmdd string
		want   string
	}{
		{"050315", "15-03-2005"},
		{"851231", "31-12-1985"},
		{"300101", "01-01-2030"},
		{"310101", "01-01-1931"},
		{"000229", "29-02-2000"},
	}

	for _, tc := range testCases {
		t.Run(tc.yymmdd, func(t *testing.T) {
			got, err := expandMRZDate(tc.yymmdd)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseMRZGenderCodes(t *testing.T) {
	for code, want := range map[string]string{"M": GenderMale, "F": GenderFemale, "<": "", "X": ""} {
		rec, err := ParseMRZ(mrzBlock("M1234567<", "850815", code, "250109"))
		require.NoError(t, err, code)
		assert.Equal(t, want, rec.Gender, code)
	}
}

// TestParseMRZTolerantPrefix covers the doubled filler and stray spaces OCR
// commonly produces on line 1, and lowercase reads.
func TestParseMRZTolerantPrefix(t *testing.T) {
	text := "p<< indsharma<<rahul<<<<<<<<<<<<<<<<<<<<<<<<<\n" +
		"m1234567<0ind 8508159m 2501093<<<<<<<<<<<<<<02"

	rec, err := ParseMRZ(text)
	require.NoError(t, err)

	assert.Equal(t, "SHARMA", rec.Surname)
	assert.Equal(t, "RAHUL", rec.GivenName)
	assert.Equal(t, "M1234567", rec.PassportNumber)
	assert.Equal(t, GenderMale, rec.Gender)
}

func TestParseMRZCRLF(t *testing.T) {
	text := "REPUBLIC OF INDIA\r\n" + "P<INDSHARMA<<RAHUL<<<<<<<<\r\nM1234567<0IND8508159M2501093<<<<<<<<<<<<<<02\r\n"

	rec, err := ParseMRZ(text)
	require.NoError(t, err)
	assert.Equal(t, "M1234567", rec.PassportNumber)
}

func TestParseMRZFailures(t *testing.T) {
	testCases := []struct {
		name       string
		text       string
		wantReason MRZParseErrorReason
		notFound   bool
	}{
		{
			name:     "no prefix line",
			text:     "REPUBLIC OF INDIA\nM1234567<0IND8508159M2501093",
			notFound: true,
		},
		{
			name:     "prefix on last line",
			text:     "header\nP<INDSHARMA<<RAHUL<<<<",
			notFound: true,
		},
		{
			name:       "second line too short",
			text:       "P<INDSHARMA<<RAHUL<<<<\nM1234567<0IND850815",
			wantReason: MRZLineTooShort,
		},
		{
			name:       "letter in birth date",
			text:       mrzBlock("M1234567<", "85O815", "M", "250109"),
			wantReason: MRZInvalidDate,
		},
		{
			name:       "filler in expiry date",
			text:       mrzBlock("M1234567<", "850815", "M", "25<109"),
			wantReason: MRZInvalidDate,
		},
		{
			name:       "number all filler",
			text:       mrzBlock("<<<<<<<<<", "850815", "M", "250109"),
			wantReason: MRZMissingNumber,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec, err := ParseMRZ(tc.text)
			require.Error(t, err)
			assert.Nil(t, rec)

			if tc.notFound {
				assert.True(t, errors.Is(err, ErrMRZNotFound))
			} else {
				var parseErr *MRZParseError
				require.True(t, errors.As(err, &parseErr))
				assert.Equal(t, tc.wantReason, parseErr.Reason)
			}

			assert.Nil(t, ExtractMRZ(tc.text), "extraction is all-or-nothing")
		})
	}
}

func TestParseMRZFirstPrefixWins(t *testing.T) {
	text := mrzBlock("M1234567<", "850815", "M", "250109") + "\n" +
		mrzBlock("Z7654321<", "900101", "F", "310101")

	rec, err := ParseMRZ(text)
	require.NoError(t, err)
	assert.Equal(t, "M1234567", rec.PassportNumber)
}

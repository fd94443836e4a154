package passport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func textFields() ExtractedFieldSet {
	return ExtractedFieldSet{
		TravelDocumentType:  DocumentTypeOrdinary,
		PassportCountryCode: CountryCodeIndia,
		PassportNumber:      "Z9999999",
		Surname:             "SHARMA",
		GivenName:           "RAHUL",
		Nationality:         NationalityIndian,
		Gender:              GenderFemale,
		DateOfBirth:         "01-01-1980",
		PlaceOfBirth:        "DELHI",
		DateOfIssue:         "10-01-2015",
		DateOfExpiry:        "09-01-2025",
		IsBiometric:         BiometricYes,
	}
}

func mrzRecord() *MRZRecord {
	return &MRZRecord{
		PassportNumber: "M1234567",
		Nationality:    NationalityIndian,
		DateOfBirth:    "15-08-1985",
		DateOfExpiry:   "09-01-2030",
		Gender:         GenderMale,
		Surname:        "VERMA",
		GivenName:      "ANIL",
		Source:         SourceMRZ,
	}
}

func TestReconcileMRZPrecedence(t *testing.T) {
	rec := Reconcile(textFields(), mrzRecord())

	for f, want := range map[Field]string{
		FieldPassportNumber: "M1234567",
		FieldDateOfBirth:    "15-08-1985",
		FieldDateOfExpiry:   "09-01-2030",
		FieldGender:         GenderMale,
		FieldNationality:    NationalityIndian,
	} {
		assert.Equal(t, want, rec.Fields.Get(f), f)
		assert.Equal(t, SourceMRZ, rec.SourceOf(f), f)
	}

	for _, f := range []Field{FieldPlaceOfBirth, FieldDateOfIssue, FieldIsBiometric, FieldTravelDocumentType} {
		assert.Equal(t, textFields().Get(f), rec.Fields.Get(f), f)
		assert.Equal(t, SourceText, rec.SourceOf(f), f)
	}
}

// TestReconcileNamesNotClobbered verifies MRZ names only fill empty slots
func TestReconcileNamesNotClobbered(t *testing.T) {
	rec := Reconcile(textFields(), mrzRecord())

	assert.Equal(t, "SHARMA", rec.Fields.Surname)
	assert.Equal(t, "RAHUL", rec.Fields.GivenName)
	assert.Equal(t, SourceText, rec.SourceOf(FieldSurname))
	assert.Equal(t, SourceText, rec.SourceOf(FieldGivenName))
}

func TestReconcileFillsEmptyNames(t *testing.T) {
	fields := textFields()
	fields.Surname = ""
	fields.GivenName = ""

	rec := Reconcile(fields, mrzRecord())

	assert.Equal(t, "VERMA", rec.Fields.Surname)
	assert.Equal(t, "ANIL", rec.Fields.GivenName)
	assert.Equal(t, SourceMRZ, rec.SourceOf(FieldSurname))
	assert.Equal(t, SourceMRZ, rec.SourceOf(FieldGivenName))
}

func TestReconcilePassportNumberLength(t *testing.T) {
	testCases := []struct {
		name       string
		mrzNumber  string
		wantNumber string
		wantSource Source
	}{
		{"eight characters", "M1234567", "M1234567", SourceMRZ},
		{"eight characters in unusual shape", "12345678", "12345678", SourceMRZ},
		{"seven characters", "M123456", "Z9999999", SourceText},
		{"nine characters", "M12345678", "Z9999999", SourceText},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mrz := mrzRecord()
			mrz.PassportNumber = tc.mrzNumber

			rec := Reconcile(textFields(), mrz)

			assert.Equal(t, tc.wantNumber, rec.Fields.PassportNumber)
			assert.Equal(t, tc.wantSource, rec.SourceOf(FieldPassportNumber))
		})
	}
}

func TestReconcileEmptyMRZValuesKeepText(t *testing.T) {
	mrz := mrzRecord()
	mrz.Gender = ""

	rec := Reconcile(textFields(), mrz)

	assert.Equal(t, GenderFemale, rec.Fields.Gender)
	assert.Equal(t, SourceText, rec.SourceOf(FieldGender))
}

func TestReconcileWithoutMRZ(t *testing.T) {
	rec := Reconcile(textFields(), nil)

	assert.Equal(t, textFields(), rec.Fields)
	for _, f := range AllFields {
		assert.Equal(t, SourceText, rec.SourceOf(f), f)
	}
}

func TestReconcileDoesNotMutateInput(t *testing.T) {
	fields := textFields()

	Reconcile(fields, mrzRecord())

	assert.Equal(t, textFields(), fields)
}

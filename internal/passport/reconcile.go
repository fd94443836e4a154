package passport

// mrzPassportNumberLength is the only MRZ passport number length trusted over
// free text.
const mrzPassportNumberLength = 8

// Reconcile merges free-text fields with the MRZ record. MRZ wins outright for
// passport number, birth date, gender, expiry date and nationality. Names are
// taken from MRZ only where free text found nothing.
func Reconcile(fields ExtractedFieldSet, mrz *MRZRecord) ReconciledRecord {
	out := fields
	sources := make(map[Field]Source)
	if mrz == nil {
		return ReconciledRecord{Fields: out, sources: sources}
	}

	override := func(f Field, dst *string, v string) {
		if v == "" {
			return
		}
		*dst = v
		sources[f] = SourceMRZ
	}

	if len(mrz.PassportNumber) == mrzPassportNumberLength {
		override(FieldPassportNumber, &out.PassportNumber, mrz.PassportNumber)
	}
	override(FieldDateOfBirth, &out.DateOfBirth, mrz.DateOfBirth)
	override(FieldGender, &out.Gender, mrz.Gender)
	override(FieldDateOfExpiry, &out.DateOfExpiry, mrz.DateOfExpiry)
	override(FieldNationality, &out.Nationality, mrz.Nationality)

	if out.Surname == "" {
		override(FieldSurname, &out.Surname, mrz.Surname)
	}
	if out.GivenName == "" {
		override(FieldGivenName, &out.GivenName, mrz.GivenName)
	}

	return ReconciledRecord{Fields: out, sources: sources}
}

package registration

import "fmt"

// Stage is one screen of the wizard, numbered from 1.
type Stage int

const (
	StagePersonal Stage = iota + 1
	StageSecurity
	StageDemographics
	StageLocation
)

const (
	FirstStage = StagePersonal
	LastStage  = StageLocation
)

var stageTitles = map[Stage]string{
	StagePersonal:     "Personal",
	StageSecurity:     "Security",
	StageDemographics: "Demographics",
	StageLocation:     "Location",
}

func (s Stage) String() string {
	if title, ok := stageTitles[s]; ok {
		return title
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

func (s Stage) Valid() bool {
	return s >= FirstStage && s <= LastStage
}

// Next returns the following stage, clamped to the last one.
func (s Stage) Next() Stage {
	return clampStage(s + 1)
}

// Previous returns the preceding stage, clamped to the first one.
func (s Stage) Previous() Stage {
	return clampStage(s - 1)
}

func clampStage(s Stage) Stage {
	return min(max(s, FirstStage), LastStage)
}

// Fields lists the fields entered on a stage, in display order.
func (s Stage) Fields() []Field {
	switch s {
	case StagePersonal:
		return []Field{FieldFirstname, FieldMiddlename, FieldLastname, FieldEmail, FieldUsername}
	case StageSecurity:
		return []Field{FieldPassword, FieldConfirmPassword}
	case StageDemographics:
		return []Field{FieldDateOfBirth, FieldGender, FieldRole, FieldContactNumber}
	case StageLocation:
		return []Field{
			FieldRegion, FieldProvince, FieldCityMunicipality, FieldBarangay,
			FieldStreetName, FieldHouseBuildingNumber, FieldSubdivisionVillage, FieldPostalCode,
		}
	}
	return nil
}

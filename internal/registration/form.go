// Package registration drives the 4-stage account creation wizard: form state, per-stage
// validation, cascading address selection and submission.
package registration

import (
	"errors"
	"strings"

	"mechconnect/internal/geography"
)

// Field is a registration field name as the backend spells it.
type Field string

const (
	FieldFirstname           Field = "firstname"
	FieldLastname            Field = "lastname"
	FieldMiddlename          Field = "middlename"
	FieldEmail               Field = "email"
	FieldUsername            Field = "username"
	FieldPassword            Field = "password"
	FieldConfirmPassword     Field = "confirm_password"
	FieldDateOfBirth         Field = "date_of_birth"
	FieldGender              Field = "gender"
	FieldRole                Field = "role"
	FieldHouseBuildingNumber Field = "house_building_number"
	FieldStreetName          Field = "street_name"
	FieldSubdivisionVillage  Field = "subdivision_village"
	FieldBarangay            Field = "barangay"
	FieldCityMunicipality    Field = "city_municipality"
	FieldProvince            Field = "province"
	FieldRegion              Field = "region"
	FieldPostalCode          Field = "postal_code"
	FieldContactNumber       Field = "contact_number"
)

const DefaultRole = "client"

// Roles a user can register as.
var Roles = []string{"client", "mechanic", "shop_owner"}

var ErrUnknownField = errors.New("unknown registration field")

// Form is the registration form state. It is a value: every setter returns a new Form
// and leaves the receiver untouched.
type Form struct {
	Firstname           string `json:"firstname"`
	Lastname            string `json:"lastname"`
	Middlename          string `json:"middlename"`
	Email               string `json:"email"`
	Username            string `json:"username"`
	Password            string `json:"password"`
	ConfirmPassword     string `json:"confirm_password"`
	DateOfBirth         string `json:"date_of_birth,omitempty"`
	Gender              string `json:"gender"`
	Role                string `json:"role"`
	HouseBuildingNumber string `json:"house_building_number"`
	StreetName          string `json:"street_name"`
	SubdivisionVillage  string `json:"subdivision_village"`
	Barangay            string `json:"barangay"`
	CityMunicipality    string `json:"city_municipality"`
	Province            string `json:"province"`
	Region              string `json:"region"`
	PostalCode          string `json:"postal_code"`
	ContactNumber       string `json:"contact_number"`
}

// NewForm returns an empty form registering a client.
func NewForm() Form {
	return Form{Role: DefaultRole}
}

var fieldRefs = map[Field]func(*Form) *string{
	FieldFirstname:           func(f *Form) *string { return &f.Firstname },
	FieldLastname:            func(f *Form) *string { return &f.Lastname },
	FieldMiddlename:          func(f *Form) *string { return &f.Middlename },
	FieldEmail:               func(f *Form) *string { return &f.Email },
	FieldUsername:            func(f *Form) *string { return &f.Username },
	FieldPassword:            func(f *Form) *string { return &f.Password },
	FieldConfirmPassword:     func(f *Form) *string { return &f.ConfirmPassword },
	FieldDateOfBirth:         func(f *Form) *string { return &f.DateOfBirth },
	FieldGender:              func(f *Form) *string { return &f.Gender },
	FieldRole:                func(f *Form) *string { return &f.Role },
	FieldHouseBuildingNumber: func(f *Form) *string { return &f.HouseBuildingNumber },
	FieldStreetName:          func(f *Form) *string { return &f.StreetName },
	FieldSubdivisionVillage:  func(f *Form) *string { return &f.SubdivisionVillage },
	FieldBarangay:            func(f *Form) *string { return &f.Barangay },
	FieldCityMunicipality:    func(f *Form) *string { return &f.CityMunicipality },
	FieldProvince:            func(f *Form) *string { return &f.Province },
	FieldRegion:              func(f *Form) *string { return &f.Region },
	FieldPostalCode:          func(f *Form) *string { return &f.PostalCode },
	FieldContactNumber:       func(f *Form) *string { return &f.ContactNumber },
}

// Get returns a field by name; unknown names read as "".
func (f Form) Get(field Field) string {
	ref, ok := fieldRefs[field]
	if !ok {
		return ""
	}
	return *ref(&f)
}

// Set returns a copy of the form with one field replaced.
func (f Form) Set(field Field, value string) (Form, error) {
	ref, ok := fieldRefs[field]
	if !ok {
		return f, ErrUnknownField
	}
	*ref(&f) = value
	return f, nil
}

func (f Form) WithFirstname(v string) Form           { f.Firstname = v; return f }
func (f Form) WithLastname(v string) Form            { f.Lastname = v; return f }
func (f Form) WithMiddlename(v string) Form          { f.Middlename = v; return f }
func (f Form) WithEmail(v string) Form               { f.Email = v; return f }
func (f Form) WithUsername(v string) Form            { f.Username = v; return f }
func (f Form) WithPassword(v string) Form            { f.Password = v; return f }
func (f Form) WithConfirmPassword(v string) Form     { f.ConfirmPassword = v; return f }
func (f Form) WithDateOfBirth(v string) Form         { f.DateOfBirth = v; return f }
func (f Form) WithGender(v string) Form              { f.Gender = v; return f }
func (f Form) WithRole(v string) Form                { f.Role = v; return f }
func (f Form) WithHouseBuildingNumber(v string) Form { f.HouseBuildingNumber = v; return f }
func (f Form) WithStreetName(v string) Form          { f.StreetName = v; return f }
func (f Form) WithSubdivisionVillage(v string) Form  { f.SubdivisionVillage = v; return f }
func (f Form) WithBarangay(v string) Form            { f.Barangay = v; return f }
func (f Form) WithCityMunicipality(v string) Form    { f.CityMunicipality = v; return f }
func (f Form) WithProvince(v string) Form            { f.Province = v; return f }
func (f Form) WithRegion(v string) Form              { f.Region = v; return f }
func (f Form) WithPostalCode(v string) Form          { f.PostalCode = v; return f }
func (f Form) WithContactNumber(v string) Form       { f.ContactNumber = v; return f }

// geographyFields maps each geography level to the form field it fills.
var geographyFields = map[geography.Level]Field{
	geography.Region:   FieldRegion,
	geography.Province: FieldProvince,
	geography.City:     FieldCityMunicipality,
	geography.Barangay: FieldBarangay,
}

// GeographyField returns the form field fed by a geography level.
func GeographyField(level geography.Level) Field {
	return geographyFields[level]
}

// ResetBelow clears the address fields for every level strictly below level.
func (f Form) ResetBelow(level geography.Level) Form {
	for l, ok := level.Child(); ok; l, ok = l.Child() {
		*fieldRefs[geographyFields[l]](&f) = ""
	}
	return f
}

// WithGeography writes the names of the units selected in state into the address fields.
// Levels without a selection are cleared.
func (f Form) WithGeography(state geography.State) Form {
	for level, field := range geographyFields {
		name := ""
		if unit, ok := state.Lookup(level, state.Selected(level)); ok {
			name = unit.Name
		}
		*fieldRefs[field](&f) = name
	}
	return f
}

// Redacted returns a copy without password fields, for drafts and logs.
func (f Form) Redacted() Form {
	f.Password = ""
	f.ConfirmPassword = ""
	return f
}

// Payload is the form as it is sent to the backend: fields trimmed and role defaulted.
func (f Form) Payload() Form {
	for field, ref := range fieldRefs {
		if field == FieldPassword || field == FieldConfirmPassword {
			continue
		}
		p := ref(&f)
		*p = strings.TrimSpace(*p)
	}
	if f.Role == "" {
		f.Role = DefaultRole
	}
	return f
}

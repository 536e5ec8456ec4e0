package registration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	// Freeze time for deterministic date checks.
	timeNow = func() time.Time {
		return time.Date(2026, 2, 20, 12, 0, 0, 0, time.UTC)
	}
}

func completeForm() Form {
	return NewForm().
		WithFirstname("Ana").
		WithLastname("Cruz").
		WithEmail("a@x.com").
		WithUsername("ana").
		WithPassword("pass123").
		WithConfirmPassword("pass123").
		WithRegion("R1").
		WithProvince("P1").
		WithCityMunicipality("C1").
		WithBarangay("B1")
}

func TestValidate_CompleteFormPassesEveryStage(t *testing.T) {
	form := completeForm()
	for stage := FirstStage; stage <= LastStage; stage++ {
		result := Validate(stage, form)
		assert.True(t, result.Valid, "stage %s: %s", stage, result.Message)
		assert.NoError(t, result.Err())
	}
}

func TestValidate_MissingRequiredField(t *testing.T) {
	for stage, fields := range requiredFields {
		for _, field := range fields {
			t.Run(stage.String()+"/"+string(field), func(t *testing.T) {
				form, err := completeForm().Set(field, "")
				require.NoError(t, err)

				result := Validate(stage, form)
				assert.False(t, result.Valid)
				assert.Contains(t, result.Missing, field)

				var validationErr *ValidationError
				require.ErrorAs(t, result.Err(), &validationErr)
				assert.Equal(t, stage, validationErr.Stage)
			})
		}
	}
}

func TestValidate_WhitespaceCountsAsMissing(t *testing.T) {
	result := Validate(StagePersonal, completeForm().WithFirstname("   "))
	assert.False(t, result.Valid)
	assert.Equal(t, MessageRequired, result.Message)
}

func TestValidate_Messages(t *testing.T) {
	assert.Equal(t, MessageRequired, Validate(StagePersonal, NewForm()).Message)
	assert.Equal(t, MessageRequired, Validate(StageSecurity, NewForm()).Message)
	assert.Contains(t, Validate(StageLocation, NewForm()).Message, "select complete address")
}

func TestValidate_PasswordMismatch(t *testing.T) {
	forms := []Form{
		completeForm().WithConfirmPassword("different"),
		NewForm().WithPassword("a").WithConfirmPassword("b"),
		NewForm().WithPassword("pass123").WithConfirmPassword("pass123 "),
	}
	for _, form := range forms {
		result := Validate(StageSecurity, form)
		assert.False(t, result.Valid)
		assert.Contains(t, result.Message, "do not match")
	}
}

func TestValidate_Demographics(t *testing.T) {
	tests := []struct {
		name    string
		form    Form
		valid   bool
		message string
	}{
		{"empty form", Form{}, true, ""},
		{"valid values", NewForm().WithDateOfBirth("1990-05-01").WithContactNumber("+63 (917) 123-4567").WithGender("Female").WithRole("mechanic"), true, ""},
		{"bad date", NewForm().WithDateOfBirth("05/01/1990"), false, "YYYY-MM-DD"},
		{"future date", NewForm().WithDateOfBirth("2030-01-01"), false, "future"},
		{"bad contact", NewForm().WithContactNumber("call me"), false, "contact number"},
		{"bad role", NewForm().WithRole("admin"), false, "Role must be one of"},
		{"bad gender", NewForm().WithGender("robot"), false, "Gender must be one of"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Validate(StageDemographics, tt.form)
			assert.Equal(t, tt.valid, result.Valid)
			assert.Contains(t, result.Message, tt.message)
		})
	}
}

func TestValidate_UnknownStage(t *testing.T) {
	assert.False(t, Validate(Stage(9), completeForm()).Valid)
}

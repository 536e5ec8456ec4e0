package registration

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mechconnect/internal/geography"
)

func TestNewForm_DefaultsRole(t *testing.T) {
	form := NewForm()
	assert.Equal(t, "client", form.Role)
	assert.Empty(t, form.Firstname)
}

func TestSetters_DoNotMutateReceiver(t *testing.T) {
	original := NewForm()
	updated := original.WithFirstname("Ana").WithEmail("a@x.com")

	assert.Empty(t, original.Firstname)
	assert.Empty(t, original.Email)
	assert.Equal(t, "Ana", updated.Firstname)
	assert.Equal(t, "a@x.com", updated.Email)
}

func TestSetAndGet(t *testing.T) {
	form := NewForm()
	for field := range fieldRefs {
		next, err := form.Set(field, "v-"+string(field))
		require.NoError(t, err)
		assert.Equal(t, "v-"+string(field), next.Get(field), field)
		assert.NotEqual(t, next.Get(field), form.Get(field), "receiver changed for %s", field)
	}

	_, err := form.Set("favourite_colour", "blue")
	assert.ErrorIs(t, err, ErrUnknownField)
	assert.Empty(t, form.Get("favourite_colour"))
}

func TestResetBelow(t *testing.T) {
	full := NewForm().WithRegion("R").WithProvince("P").WithCityMunicipality("C").WithBarangay("B")

	tests := []struct {
		level geography.Level
		want  [4]string
	}{
		{geography.Region, [4]string{"R", "", "", ""}},
		{geography.Province, [4]string{"R", "P", "", ""}},
		{geography.City, [4]string{"R", "P", "C", ""}},
		{geography.Barangay, [4]string{"R", "P", "C", "B"}},
	}
	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			got := full.ResetBelow(tt.level)
			assert.Equal(t, tt.want, [4]string{got.Region, got.Province, got.CityMunicipality, got.Barangay})
		})
	}
}

func TestWithGeography(t *testing.T) {
	state := geography.State{
		Regions:   []geography.Unit{{Code: "R1", Name: "Ilocos Region"}},
		Provinces: []geography.Unit{{Code: "P1", Name: "Ilocos Norte"}},
		Region:    "R1",
		Province:  "P1",
	}
	form := NewForm().WithCityMunicipality("stale city").WithBarangay("stale barangay")

	got := form.WithGeography(state)
	assert.Equal(t, "Ilocos Region", got.Region)
	assert.Equal(t, "Ilocos Norte", got.Province)
	assert.Empty(t, got.CityMunicipality)
	assert.Empty(t, got.Barangay)
}

func TestRedacted(t *testing.T) {
	form := NewForm().WithUsername("ana").WithPassword("pass123").WithConfirmPassword("pass123")
	redacted := form.Redacted()

	assert.Empty(t, redacted.Password)
	assert.Empty(t, redacted.ConfirmPassword)
	assert.Equal(t, "ana", redacted.Username)
	assert.Equal(t, "pass123", form.Password)
}

func TestPayload(t *testing.T) {
	form := Form{Firstname: "  Ana ", Password: " spaced "}
	payload := form.Payload()

	assert.Equal(t, "Ana", payload.Firstname)
	assert.Equal(t, " spaced ", payload.Password, "passwords are sent as typed")
	assert.Equal(t, DefaultRole, payload.Role)

	data, err := json.Marshal(payload)
	require.NoError(t, err)

	var decoded map[string]string
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "client", decoded["role"])
	assert.Contains(t, decoded, "confirm_password")
	assert.Contains(t, decoded, "city_municipality")
	assert.NotContains(t, decoded, "date_of_birth", "empty dates are omitted")
}

func TestStage(t *testing.T) {
	assert.Equal(t, StageSecurity, StagePersonal.Next())
	assert.Equal(t, StageLocation, StageLocation.Next())
	assert.Equal(t, StagePersonal, StagePersonal.Previous())
	assert.Equal(t, StageDemographics, StageLocation.Previous())
	assert.Equal(t, "Security", StageSecurity.String())
	assert.False(t, Stage(0).Valid())
	assert.Len(t, StagePersonal.Fields(), 5)
}

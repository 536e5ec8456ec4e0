package registration

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"
)

const (
	MessageRequired          = "Please fill in all required fields"
	MessagePasswordMismatch  = "Passwords do not match"
	MessageIncompleteAddress = "Please select complete address (region, province, city/municipality and barangay)"
)

const dateLayout = "2006-01-02"

// timeNow is swapped in tests.
var timeNow = time.Now

var (
	contactNumberPattern = regexp.MustCompile(`^[\d\s\-+()]+$`)
	genders              = []string{"male", "female", "other"}
)

var requiredFields = map[Stage][]Field{
	StagePersonal: {FieldFirstname, FieldLastname, FieldEmail, FieldUsername},
	StageSecurity: {FieldPassword, FieldConfirmPassword},
	StageLocation: {FieldRegion, FieldProvince, FieldCityMunicipality, FieldBarangay},
}

// ValidationResult is the outcome of checking one stage.
type ValidationResult struct {
	Valid   bool
	Message string
	Stage   Stage
	Missing []Field
}

// Err returns the result as a *ValidationError, or nil when valid.
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return &ValidationError{Stage: r.Stage, Message: r.Message, Missing: r.Missing}
}

// ValidationError is a client-side rejection. It never reaches the network.
type ValidationError struct {
	Stage   Stage
	Message string
	Missing []Field
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Validate checks the fields of one stage. It does no I/O.
func Validate(stage Stage, form Form) ValidationResult {
	if !stage.Valid() {
		return ValidationResult{Stage: stage, Message: fmt.Sprintf("unknown stage %d", int(stage))}
	}

	var missing []Field
	for _, field := range requiredFields[stage] {
		if strings.TrimSpace(form.Get(field)) == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		message := MessageRequired
		if stage == StageLocation {
			message = MessageIncompleteAddress
		}
		return ValidationResult{Stage: stage, Message: message, Missing: missing}
	}

	switch stage {
	case StageSecurity:
		if form.Password != form.ConfirmPassword {
			return ValidationResult{Stage: stage, Message: MessagePasswordMismatch}
		}
	case StageDemographics:
		if message := validateDemographics(form); message != "" {
			return ValidationResult{Stage: stage, Message: message}
		}
	}

	return ValidationResult{Valid: true, Stage: stage}
}

// validateDemographics checks the format of optional fields that were filled in.
func validateDemographics(form Form) string {
	if dob := strings.TrimSpace(form.DateOfBirth); dob != "" {
		date, err := time.Parse(dateLayout, dob)
		if err != nil {
			return "Date of birth must be in YYYY-MM-DD format"
		}
		if date.After(timeNow()) {
			return "Date of birth cannot be in the future"
		}
	}

	if contact := strings.TrimSpace(form.ContactNumber); contact != "" && !contactNumberPattern.MatchString(contact) {
		return "Please enter a valid contact number"
	}

	if role := strings.TrimSpace(form.Role); role != "" && !slices.Contains(Roles, role) {
		return fmt.Sprintf("Role must be one of %s", strings.Join(Roles, ", "))
	}

	if gender := strings.ToLower(strings.TrimSpace(form.Gender)); gender != "" && !slices.Contains(genders, gender) {
		return fmt.Sprintf("Gender must be one of %s", strings.Join(genders, ", "))
	}

	return ""
}

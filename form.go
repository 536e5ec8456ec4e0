package main

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"mechconnect/internal/registration"
)

const (
	wizardPrefix = "wizard"
	loginModalID = "login:submit"

	actionBack     = "back"
	actionContinue = "continue"
	actionSubmit   = "submit"
	actionRetry    = "retry"
)

var fieldInputs = map[registration.Field]discordgo.TextInput{
	registration.FieldFirstname:           {Label: "First Name", Placeholder: "Ana", Required: true, MaxLength: 100},
	registration.FieldMiddlename:          {Label: "Middle Name", MaxLength: 100},
	registration.FieldLastname:            {Label: "Last Name", Placeholder: "Cruz", Required: true, MaxLength: 100},
	registration.FieldEmail:               {Label: "Email Address", Placeholder: "ana@example.com", Required: true, MaxLength: 254},
	registration.FieldUsername:            {Label: "Username", Required: true, MinLength: 3, MaxLength: 150},
	registration.FieldPassword:            {Label: "Password", Required: true, MaxLength: 128},
	registration.FieldConfirmPassword:     {Label: "Confirm Password", Required: true, MaxLength: 128},
	registration.FieldDateOfBirth:         {Label: "Date of Birth", Placeholder: "YYYY-MM-DD", MinLength: 10, MaxLength: 10},
	registration.FieldGender:              {Label: "Gender", Placeholder: "male, female or other", MaxLength: 10},
	registration.FieldRole:                {Label: "Role", Placeholder: "client, mechanic or shop_owner", MaxLength: 20},
	registration.FieldContactNumber:       {Label: "Contact Number", Placeholder: "+63 917 123 4567", MaxLength: 20},
	registration.FieldStreetName:          {Label: "Street", MaxLength: 200},
	registration.FieldHouseBuildingNumber: {Label: "House / Building Number", MaxLength: 50},
	registration.FieldSubdivisionVillage:  {Label: "Subdivision / Village", MaxLength: 200},
	registration.FieldPostalCode:          {Label: "Postal Code", MaxLength: 10},
}

var secretFields = []registration.Field{registration.FieldPassword, registration.FieldConfirmPassword}

// ModalFields are the fields of a stage that are typed into a modal.
// Address units are picked with /address instead.
func ModalFields(stage registration.Stage) []registration.Field {
	return lo.Filter(stage.Fields(), func(field registration.Field, _ int) bool {
		_, ok := fieldInputs[field]
		return ok
	})
}

// StageModal builds the modal for a stage, pre-filled from the form. Passwords are never pre-filled.
func StageModal(stage registration.Stage, form registration.Form) *discordgo.InteractionResponseData {
	fields := ModalFields(stage)
	components := make([]discordgo.MessageComponent, 0, len(fields))

	for _, field := range fields {
		component := fieldInputs[field]
		component.CustomID = string(field)
		component.Style = discordgo.TextInputShort
		if !lo.Contains(secretFields, field) {
			component.Value = form.Get(field)
		}

		// Each field is contained within its own row.
		components = append(components, discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{component},
		})
	}

	return &discordgo.InteractionResponseData{
		CustomID:   fmt.Sprintf("%s:%d", wizardPrefix, stage),
		Title:      fmt.Sprintf("Registration: %s", stage),
		Components: components,
	}
}

func LoginModal() *discordgo.InteractionResponseData {
	return &discordgo.InteractionResponseData{
		CustomID: loginModalID,
		Title:    "Login",
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{discordgo.TextInput{
				CustomID: "username", Label: "Username", Style: discordgo.TextInputShort, Required: true, MaxLength: 150,
			}}},
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{discordgo.TextInput{
				CustomID: "password", Label: "Password", Style: discordgo.TextInputShort, Required: true, MaxLength: 128,
			}}},
		},
	}
}

func button(label, action string, style discordgo.ButtonStyle, disabled bool) discordgo.Button {
	return discordgo.Button{
		Label:    label,
		Style:    style,
		CustomID: wizardPrefix + ":" + action,
		Disabled: disabled,
	}
}

func RetryButton() discordgo.Button {
	return button("Retry", actionRetry, discordgo.PrimaryButton, false)
}

// StageMessage shows where the user is in the wizard, what they entered so far and what to do next.
func StageMessage(stage registration.Stage, form registration.Form, note string) *discordgo.InteractionResponseData {
	var lines []string
	if note != "" {
		lines = append(lines, note, "")
	}

	fields := lo.FilterMap(stage.Fields(), func(field registration.Field, _ int) (*discordgo.MessageEmbedField, bool) {
		value := form.Get(field)
		if value == "" {
			return nil, false
		}
		if lo.Contains(secretFields, field) {
			value = "••••••"
		}
		return &discordgo.MessageEmbedField{Name: fieldLabel(field), Value: value, Inline: true}, true
	})

	buttons := []discordgo.MessageComponent{
		button("Back", actionBack, discordgo.SecondaryButton, stage == registration.FirstStage),
	}
	if stage == registration.LastStage {
		lines = append(lines, "Pick your region, province, city and barangay with `/address`, then press **Submit**.")
		buttons = append(buttons,
			button("Address Details", actionContinue, discordgo.SecondaryButton, false),
			button("Submit", actionSubmit, discordgo.SuccessButton, false),
		)
	} else {
		lines = append(lines, fmt.Sprintf("Press **Continue** to fill in your %s details.", strings.ToLower(stage.String())))
		buttons = append(buttons, button("Continue", actionContinue, discordgo.PrimaryButton, false))
	}

	message := embed(fmt.Sprintf("Step %d of %d: %s", stage, registration.LastStage, stage), strings.Join(lines, "\n"), colorInfo)
	message.Fields = fields

	return &discordgo.InteractionResponseData{
		Embeds:     []*discordgo.MessageEmbed{message},
		Components: []discordgo.MessageComponent{discordgo.ActionsRow{Components: buttons}},
	}
}

func SuccessMessage(title, description string) *discordgo.InteractionResponseData {
	return &discordgo.InteractionResponseData{
		Embeds:     []*discordgo.MessageEmbed{embed(title, description, colorSuccess)},
		Components: []discordgo.MessageComponent{},
	}
}

// ApplyModal writes submitted values into the wizard. Unknown inputs are logged and skipped.
func ApplyModal(wizard *registration.Controller, values map[string]string) {
	for id, value := range values {
		if err := wizard.SetField(registration.Field(id), value); err != nil {
			log.WithField("input", id).Warn("Ignoring unexpected modal input")
		}
	}
}

func fieldLabel(field registration.Field) string {
	if input, ok := fieldInputs[field]; ok {
		return input.Label
	}
	switch field {
	case registration.FieldCityMunicipality:
		return "City / Municipality"
	}
	return strings.ToUpper(string(field[:1])) + string(field[1:])
}

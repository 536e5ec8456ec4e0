package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"mechconnect/internal/api"
	"mechconnect/internal/registration"
)

const (
	mechanicModalID = "account:mechanic"
	passwordModalID = "account:password"
)

var (
	ProfileCommandDefinition = &discordgo.ApplicationCommand{
		Name:        "profile",
		Description: "Show your MechConnect profile",
	}
	SwitchRoleCommandDefinition = &discordgo.ApplicationCommand{
		Name:        "switchrole",
		Description: "Switch the role you are acting as",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "role",
				Description: "The role to switch to",
				Required:    true,
				Choices: lo.Map(registration.Roles, func(role string, _ int) *discordgo.ApplicationCommandOptionChoice {
					return &discordgo.ApplicationCommandOptionChoice{Name: api.RoleLabel(role), Value: role}
				}),
			},
		},
	}
	MechanicCommandDefinition = &discordgo.ApplicationCommand{
		Name:        "mechanic",
		Description: "Register your account as a mechanic",
	}
	PasswordCommandDefinition = &discordgo.ApplicationCommand{
		Name:        "password",
		Description: "Change your MechConnect password",
	}
)

func textInputRow(input discordgo.TextInput) discordgo.ActionsRow {
	if input.Style == 0 {
		input.Style = discordgo.TextInputShort
	}
	return discordgo.ActionsRow{Components: []discordgo.MessageComponent{input}}
}

func MechanicModal() *discordgo.InteractionResponseData {
	return &discordgo.InteractionResponseData{
		CustomID: mechanicModalID,
		Title:    "Become a Mechanic",
		Components: []discordgo.MessageComponent{
			textInputRow(discordgo.TextInput{CustomID: "contact_number", Label: "Contact Number", Placeholder: "+63 917 123 4567", Required: true, MaxLength: 20}),
			textInputRow(discordgo.TextInput{CustomID: "bio", Label: "Bio", Style: discordgo.TextInputParagraph, Placeholder: "Your experience and specialties", MaxLength: 1000}),
		},
	}
}

func PasswordModal() *discordgo.InteractionResponseData {
	return &discordgo.InteractionResponseData{
		CustomID: passwordModalID,
		Title:    "Change Password",
		Components: []discordgo.MessageComponent{
			textInputRow(discordgo.TextInput{CustomID: "old_password", Label: "Current Password", Required: true, MaxLength: 128}),
			textInputRow(discordgo.TextInput{CustomID: "new_password", Label: "New Password", Required: true, MinLength: 8, MaxLength: 128}),
			textInputRow(discordgo.TextInput{CustomID: "confirm_password", Label: "Confirm New Password", Required: true, MinLength: 8, MaxLength: 128}),
		},
	}
}

// ProfileMessage renders a profile as an embed with one field per detail the server sent.
func ProfileMessage(profile *api.Profile) *discordgo.InteractionResponseData {
	description := fmt.Sprintf("**%s** (`%s`)", profile.Name(), profile.Username)
	if profile.IsVerified {
		description += " ✔"
	}

	fields := []*discordgo.MessageEmbedField{
		{Name: "Active Role", Value: api.RoleLabel(profile.ActiveRole), Inline: true},
	}
	if len(profile.UserType) > 0 {
		roles := lo.Map(profile.UserType, func(role string, _ int) string { return api.RoleLabel(role) })
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Role" + Plural(len(roles)), Value: strings.Join(roles, ", "), Inline: true})
	}
	if profile.Email != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Email", Value: profile.Email, Inline: true})
	}
	if rp, ok := profile.ActiveProfile(); ok && rp.ContactNumber != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Contact Number", Value: rp.ContactNumber, Inline: true})
	}
	if address := profile.Address; address != nil {
		parts := lo.Compact([]string{address.Barangay, address.CityMunicipality, address.Province, address.Region})
		if len(parts) > 0 {
			fields = append(fields, &discordgo.MessageEmbedField{Name: "Address", Value: strings.Join(parts, ", ")})
		}
	}

	message := SuccessMessage("Profile", description)
	message.Embeds[0].Fields = fields
	return message
}

func (b *Bot) ProfileCommandHandler(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	log := interactionLogger(interaction, "profile")

	user, err := b.sessions.Get(UserID(interaction))
	if err != nil {
		HandleError(session, interaction, err, "Could not load your profile.")
		return
	}
	if !Defer(session, interaction) {
		return
	}

	profile, err := user.Client.Profile(context.Background())
	if err != nil {
		log.WithError(err).Info("Profile lookup failed")
		Edit(session, interaction, ErrorMessage(registration.Describe(err)))
		return
	}

	log.WithFields(logrus.Fields{"account": profile.ID, "activeRole": profile.ActiveRole}).Debug("Loaded profile")
	Edit(session, interaction, ProfileMessage(profile))
}

func (b *Bot) SwitchRoleCommandHandler(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	log := interactionLogger(interaction, "switchrole")

	user, err := b.sessions.Get(UserID(interaction))
	if err != nil {
		HandleError(session, interaction, err, "Could not switch roles.")
		return
	}
	if !Defer(session, interaction) {
		return
	}

	ctx := context.Background()
	role := interaction.ApplicationCommandData().Options[0].StringValue()
	log = log.WithField("role", role)

	status, err := user.Client.RoleStatus(ctx)
	if err != nil {
		log.WithError(err).Info("Role status failed")
		Edit(session, interaction, ErrorMessage(registration.Describe(err)))
		return
	}
	if message, ok := SwitchRoleCheck(status, role); !ok {
		Edit(session, interaction, ErrorMessage(message))
		return
	}

	message, err := user.Client.SwitchRole(ctx, role)
	if err != nil {
		log.WithError(err).Info("Role switch failed")
		Edit(session, interaction, ErrorMessage(registration.Describe(err)))
		return
	}
	log.Info("Switched role")
	Edit(session, interaction, SuccessMessage("Role switched", message))
}

// SwitchRoleCheck says why a switch to role should not be sent, if it should not.
func SwitchRoleCheck(status *api.RoleStatus, role string) (string, bool) {
	label := api.RoleLabel(role)
	switch {
	case status.ActiveRole == role:
		return fmt.Sprintf("You are already acting as a %s.", label), false
	case !status.Has(role) && role == "mechanic":
		return "You are not registered as a mechanic. Use /mechanic to register.", false
	case !status.Has(role):
		return fmt.Sprintf("You are not registered as a %s.", label), false
	}
	return "", true
}

func (b *Bot) MechanicCommandHandler(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	err := session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: MechanicModal(),
	})
	if err != nil {
		interactionLogger(interaction, "mechanic").WithError(err).Error("Could not open mechanic modal")
	}
}

func (b *Bot) PasswordCommandHandler(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	err := session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: PasswordModal(),
	})
	if err != nil {
		interactionLogger(interaction, "password").WithError(err).Error("Could not open password modal")
	}
}

// AccountModalHandler handles the mechanic registration and password change modals.
func (b *Bot) AccountModalHandler(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	data := interaction.ModalSubmitData()
	log := interactionLogger(interaction, "account").WithField("modal", data.CustomID)

	user, err := b.sessions.Get(UserID(interaction))
	if err != nil {
		HandleError(session, interaction, err, "Could not reach your account.")
		return
	}
	if !Defer(session, interaction) {
		return
	}

	ctx := context.Background()
	values := ModalValues(data)

	var title, message string
	switch data.CustomID {
	case mechanicModalID:
		title = "Mechanic registration"
		message, err = user.Client.RegisterMechanic(ctx, api.MechanicApplication{ContactNumber: values["contact_number"], Bio: values["bio"]})
	case passwordModalID:
		title = "Password changed"
		message, err = user.Client.ChangePassword(ctx, values["old_password"], values["new_password"], values["confirm_password"])
	default:
		log.Warn("Unhandled modal")
		Edit(session, interaction, ErrorMessage("That form is no longer supported."))
		return
	}

	if err != nil {
		log.WithError(err).Info("Account update failed")
		Edit(session, interaction, ErrorMessage(registration.Describe(err)))
		return
	}
	log.Info("Account updated")
	Edit(session, interaction, SuccessMessage(title, message))
}

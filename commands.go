package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"mechconnect/internal/geography"
	"mechconnect/internal/registration"
)

// Discord shows at most 25 autocomplete choices.
const maxChoices = 25

var (
	RegisterCommandDefinition = &discordgo.ApplicationCommand{
		Name:        "register",
		Description: "Create a MechConnect account",
	}
	// Options are declared top-down; each one's choices depend on the option above it.
	AddressOptions = []*discordgo.ApplicationCommandOption{
		addressOption("region", "Your region"),
		addressOption("province", "Your province"),
		addressOption("city", "Your city or municipality"),
		addressOption("barangay", "Your barangay"),
	}
	AddressCommandDefinition = &discordgo.ApplicationCommand{
		Name:        "address",
		Description: "Pick the address for your registration",
		Options:     AddressOptions,
	}
	LoginCommandDefinition = &discordgo.ApplicationCommand{
		Name:        "login",
		Description: "Log in to MechConnect",
	}
	LogoutCommandDefinition = &discordgo.ApplicationCommand{
		Name:        "logout",
		Description: "Log out of MechConnect",
	}
	WhoamiCommandDefinition = &discordgo.ApplicationCommand{
		Name:        "whoami",
		Description: "Show the MechConnect account you are logged in as",
	}
)

var addressLevels = map[string]geography.Level{
	"region":   geography.Region,
	"province": geography.Province,
	"city":     geography.City,
	"barangay": geography.Barangay,
}

func addressOption(name, description string) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:         discordgo.ApplicationCommandOptionString,
		Name:         name,
		Description:  description,
		Required:     true,
		Autocomplete: true,
	}
}

func CommandDefinitions() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		RegisterCommandDefinition,
		AddressCommandDefinition,
		LoginCommandDefinition,
		LogoutCommandDefinition,
		WhoamiCommandDefinition,
		ProfileCommandDefinition,
		SwitchRoleCommandDefinition,
		MechanicCommandDefinition,
		PasswordCommandDefinition,
	}
}

type handlerFunc func(session *discordgo.Session, interaction *discordgo.InteractionCreate)

type Bot struct {
	sessions *Sessions
	commands map[string]handlerFunc
}

func NewBot(sessions *Sessions) *Bot {
	b := &Bot{sessions: sessions}
	b.commands = map[string]handlerFunc{
		RegisterCommandDefinition.Name:   b.RegisterCommandHandler,
		AddressCommandDefinition.Name:    b.AddressCommandHandler,
		LoginCommandDefinition.Name:      b.LoginCommandHandler,
		LogoutCommandDefinition.Name:     b.LogoutCommandHandler,
		WhoamiCommandDefinition.Name:     b.WhoamiCommandHandler,
		ProfileCommandDefinition.Name:    b.ProfileCommandHandler,
		SwitchRoleCommandDefinition.Name: b.SwitchRoleCommandHandler,
		MechanicCommandDefinition.Name:   b.MechanicCommandHandler,
		PasswordCommandDefinition.Name:   b.PasswordCommandHandler,
	}
	return b
}

// HandleInteraction routes every interaction the bot receives.
func (b *Bot) HandleInteraction(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	switch interaction.Type {
	case discordgo.InteractionApplicationCommand, discordgo.InteractionApplicationCommandAutocomplete:
		name := interaction.ApplicationCommandData().Name
		if handler, ok := b.commands[name]; ok {
			handler(session, interaction)
			return
		}
		interactionLogger(interaction, name).Warn("Unhandled command")
	case discordgo.InteractionMessageComponent:
		b.ButtonHandler(session, interaction)
	case discordgo.InteractionModalSubmit:
		b.ModalHandler(session, interaction)
	}
}

// RegisterCommandHandler opens the user's wizard where they left off.
func (b *Bot) RegisterCommandHandler(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	log := interactionLogger(interaction, "register")

	wizard, err := b.sessions.Wizard(context.Background(), UserID(interaction))
	if err != nil {
		HandleError(session, interaction, err, "Could not start registration.")
		return
	}

	if wizard.State() == registration.StateDone {
		b.sessions.Finish(context.Background(), UserID(interaction))
		if wizard, err = b.sessions.Wizard(context.Background(), UserID(interaction)); err != nil {
			HandleError(session, interaction, err, "Could not start registration.")
			return
		}
	}

	stage := wizard.Stage()
	log.WithField("stage", stage.String()).Debug("Opening registration")

	if stage == registration.LastStage {
		Respond(session, interaction, StageMessage(stage, wizard.Form(), ""))
		return
	}

	err = session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: StageModal(stage, wizard.Form()),
	})
	if err != nil {
		log.WithError(err).Error("Could not open registration modal")
	}
}

// AddressCommandHandler serves the cascading autocomplete and, when run, selects all four units in order.
func (b *Bot) AddressCommandHandler(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	log := interactionLogger(interaction, "address")
	ctx := context.Background()

	wizard, err := b.sessions.Wizard(ctx, UserID(interaction))
	if err != nil {
		HandleError(session, interaction, err, "Could not start registration.")
		return
	}

	data := interaction.ApplicationCommandData()
	codes := lo.Associate(data.Options, func(option *discordgo.ApplicationCommandInteractionDataOption) (string, string) {
		return option.Name, strings.TrimSpace(option.StringValue())
	})

	switch interaction.Type {
	case discordgo.InteractionApplicationCommandAutocomplete:
		focused, ok := lo.Find(data.Options, func(option *discordgo.ApplicationCommandInteractionDataOption) bool {
			return option.Focused
		})
		if !ok {
			return
		}
		level, known := addressLevels[focused.Name]
		if !known {
			log.WithField("focusedOption", focused.Name).Warn("Unhandled autocomplete option")
			return
		}

		units, err := AddressChoices(ctx, wizard, level, codes)
		if err != nil {
			log.WithField("level", level.String()).WithError(err).Debug("No address choices")
		}

		err = session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionApplicationCommandAutocompleteResult,
			Data: &discordgo.InteractionResponseData{
				Choices: UnitChoices(geography.Filter(units, focused.StringValue(), maxChoices)),
			},
		})
		if err != nil {
			log.WithError(err).Error("Could not send autocomplete choices")
		}

	case discordgo.InteractionApplicationCommand:
		if !Defer(session, interaction) {
			return
		}

		if err := SelectAddress(ctx, wizard, codes); err != nil {
			log.WithError(err).Info("Address selection failed")
			var buttons []discordgo.MessageComponent
			if errors.Is(err, geography.ErrFetchFailed) {
				buttons = append(buttons, RetryButton())
			}
			Edit(session, interaction, ErrorMessage(registration.Describe(err), buttons...))
			return
		}

		b.sessions.SaveDraft(ctx, UserID(interaction), wizard)
		form := wizard.Form()
		Edit(session, interaction, StageMessage(wizard.Stage(), form, AddressNote(form)))
	}
}

// AddressNote lists the selected units from barangay up to region.
func AddressNote(form registration.Form) string {
	names := lo.Map(AddressOptions, func(option *discordgo.ApplicationCommandOption, _ int) string {
		return form.Get(registration.GeographyField(addressLevels[option.Name]))
	})
	return fmt.Sprintf("Address set to %s.", strings.Join(lo.Reverse(names), ", "))
}

// AddressChoices returns the units to offer for level, making sure the levels above it are
// selected as the user has typed them so far.
func AddressChoices(ctx context.Context, wizard *registration.Controller, level geography.Level, codes map[string]string) ([]geography.Unit, error) {
	if len(wizard.Geography().Regions) == 0 {
		if err := wizard.LoadRegions(ctx); err != nil {
			return nil, err
		}
	}

	for _, option := range AddressOptions {
		above := addressLevels[option.Name]
		if above >= level {
			break
		}
		if err := ensureSelected(ctx, wizard, above, codes[option.Name]); err != nil {
			return nil, err
		}
	}
	return wizard.Geography().Units(level), nil
}

// SelectAddress selects every level from region down to barangay.
func SelectAddress(ctx context.Context, wizard *registration.Controller, codes map[string]string) error {
	if len(wizard.Geography().Regions) == 0 {
		if err := wizard.LoadRegions(ctx); err != nil {
			return err
		}
	}

	for _, option := range AddressOptions {
		if err := ensureSelected(ctx, wizard, addressLevels[option.Name], codes[option.Name]); err != nil {
			return err
		}
	}
	return nil
}

// ensureSelected selects code at level unless it already is selected with its children loaded.
func ensureSelected(ctx context.Context, wizard *registration.Controller, level geography.Level, code string) error {
	if code == "" {
		return geography.ErrUnknownUnit
	}

	state := wizard.Geography()
	if state.Selected(level) == code {
		child, ok := level.Child()
		if !ok || len(state.Units(child)) > 0 {
			return nil
		}
	}

	switch level {
	case geography.Region:
		return wizard.SelectRegion(ctx, code)
	case geography.Province:
		return wizard.SelectProvince(ctx, code)
	case geography.City:
		return wizard.SelectCity(ctx, code)
	default:
		return wizard.SelectBarangay(ctx, code)
	}
}

func UnitChoices(units []geography.Unit) []*discordgo.ApplicationCommandOptionChoice {
	return lo.Map(units, func(unit geography.Unit, _ int) *discordgo.ApplicationCommandOptionChoice {
		return &discordgo.ApplicationCommandOptionChoice{Name: unit.Name, Value: unit.Code}
	})
}

func (b *Bot) LoginCommandHandler(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	err := session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: LoginModal(),
	})
	if err != nil {
		interactionLogger(interaction, "login").WithError(err).Error("Could not open login modal")
	}
}

func (b *Bot) LogoutCommandHandler(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	user, err := b.sessions.Get(UserID(interaction))
	if err != nil {
		HandleError(session, interaction, err, "Could not log out.")
		return
	}
	if !Defer(session, interaction) {
		return
	}

	if err := user.Client.Logout(context.Background()); err != nil {
		interactionLogger(interaction, "logout").WithError(err).Warn("Logout failed")
		Edit(session, interaction, ErrorMessage(registration.Describe(err)))
		return
	}
	Edit(session, interaction, SuccessMessage("Logged out", "You have been logged out of MechConnect."))
}

func (b *Bot) WhoamiCommandHandler(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	log := interactionLogger(interaction, "whoami")

	user, err := b.sessions.Get(UserID(interaction))
	if err != nil {
		HandleError(session, interaction, err, "Could not check your session.")
		return
	}
	if !Defer(session, interaction) {
		return
	}

	account, authenticated, err := user.Client.CheckSession(context.Background())
	switch {
	case err != nil:
		log.WithError(err).Warn("Session check failed")
		Edit(session, interaction, ErrorMessage(registration.Describe(err)))
	case !authenticated:
		Edit(session, interaction, ErrorMessage("You are not logged in. Use /login first."))
	default:
		log.WithFields(logrus.Fields{"account": account.ID, "roles": account.RoleNames()}).Debug("Session is valid")
		Edit(session, interaction, SuccessMessage("Logged in", AccountSummary(account.FullName(), account.Username, account.RoleNames())))
	}
}

func AccountSummary(name, username string, roles []string) string {
	description := fmt.Sprintf("You are logged in as **%s** (`%s`).", name, username)
	if len(roles) > 0 {
		description += fmt.Sprintf("\nRole%s: %s", Plural(len(roles)), strings.Join(roles, ", "))
	}
	return description
}

package main

import (
	"context"
	"errors"
	"strconv"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"

	"mechconnect/internal/geography"
	"mechconnect/internal/registration"
)

// ModalHandler receives the wizard stage modals, the login modal and the account modals.
func (b *Bot) ModalHandler(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	data := interaction.ModalSubmitData()
	switch data.CustomID {
	case loginModalID:
		b.LoginModalHandler(session, interaction)
		return
	case mechanicModalID, passwordModalID:
		b.AccountModalHandler(session, interaction)
		return
	}

	log := interactionLogger(interaction, "register")
	prefix, action := splitCustomID(data.CustomID)
	stageNumber, err := strconv.Atoi(action)
	if prefix != wizardPrefix || err != nil {
		log.WithField("customID", data.CustomID).Warn("Unhandled modal")
		return
	}

	ctx := context.Background()
	userID := UserID(interaction)
	wizard, err := b.sessions.Wizard(ctx, userID)
	if err != nil {
		HandleError(session, interaction, err, "Could not load your registration.")
		return
	}

	// A modal left open across a Back click belongs to a stage the wizard has moved away from.
	stage := registration.Stage(stageNumber)
	if stage != wizard.Stage() {
		log.WithFields(logrus.Fields{"modal": stage.String(), "current": wizard.Stage().String()}).Debug("Stale modal submitted")
		Respond(session, interaction, StageMessage(wizard.Stage(), wizard.Form(), "That form was for a different step. Here is where you are now."))
		return
	}

	ApplyModal(wizard, ModalValues(data))

	// The last stage is only submitted with the Submit button.
	if stage == registration.LastStage {
		b.sessions.SaveDraft(ctx, userID, wizard)
		Respond(session, interaction, StageMessage(stage, wizard.Form(), "Address details saved."))
		return
	}

	result, err := wizard.Next(ctx)
	if err != nil {
		HandleError(session, interaction, err, registration.Describe(err))
		return
	}
	b.sessions.SaveDraft(ctx, userID, wizard)

	if !result.Valid {
		log.WithField("missing", result.Missing).Debug("Stage rejected")
		Respond(session, interaction, ErrorMessage(result.Message, button("Edit", actionContinue, discordgo.PrimaryButton, false)))
		return
	}
	Respond(session, interaction, StageMessage(wizard.Stage(), wizard.Form(), ""))
}

// ButtonHandler handles the Back, Continue, Submit and Retry buttons.
func (b *Bot) ButtonHandler(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	data := interaction.MessageComponentData()
	prefix, action := splitCustomID(data.CustomID)
	log := interactionLogger(interaction, "register").WithField("button", action)
	if prefix != wizardPrefix {
		log.WithField("customID", data.CustomID).Warn("Unhandled component")
		return
	}

	ctx := context.Background()
	userID := UserID(interaction)
	wizard, err := b.sessions.Wizard(ctx, userID)
	if err != nil {
		HandleError(session, interaction, err, "Could not load your registration.")
		return
	}

	switch action {
	case actionBack:
		stage := wizard.Previous()
		b.sessions.SaveDraft(ctx, userID, wizard)
		Respond(session, interaction, StageMessage(stage, wizard.Form(), ""))

	case actionContinue:
		err := session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseModal,
			Data: StageModal(wizard.Stage(), wizard.Form()),
		})
		if err != nil {
			log.WithError(err).Error("Could not open registration modal")
		}

	case actionSubmit:
		if !Defer(session, interaction) {
			return
		}
		result, err := wizard.Next(ctx)
		Edit(session, interaction, b.submissionOutcome(ctx, userID, wizard, result, err))

	case actionRetry:
		if !Defer(session, interaction) {
			return
		}
		pendingSubmit := wizard.LastError() != nil
		err := wizard.Retry(ctx)
		switch {
		case errors.Is(err, geography.ErrFetchFailed):
			Edit(session, interaction, ErrorMessage(registration.Describe(err), RetryButton()))
		case pendingSubmit:
			Edit(session, interaction, b.submissionOutcome(ctx, userID, wizard, registration.ValidationResult{Valid: true}, err))
		case err != nil:
			Edit(session, interaction, ErrorMessage(registration.Describe(err), RetryButton()))
		default:
			Edit(session, interaction, StageMessage(wizard.Stage(), wizard.Form(), ""))
		}

	default:
		log.Warn("Unhandled button")
	}
}

// submissionOutcome turns the result of submitting the last stage into a message.
func (b *Bot) submissionOutcome(ctx context.Context, userID string, wizard *registration.Controller, result registration.ValidationResult, err error) *discordgo.InteractionResponseData {
	log := logrus.WithFields(logrus.Fields{"user": userID, "state": wizard.State()})

	switch {
	case errors.Is(err, registration.ErrAlreadyRegistered), err == nil && wizard.State() == registration.StateDone:
		confirmation := wizard.Confirmation()
		b.sessions.Finish(ctx, userID)
		log.Info("Registration complete")
		return SuccessMessage("Registration complete", confirmation)
	case err != nil:
		log.WithError(err).Info("Submission failed")
		return ErrorMessage(registration.Describe(err), button("Back", actionBack, discordgo.SecondaryButton, false), RetryButton())
	case !result.Valid:
		return ErrorMessage(result.Message, button("Back", actionBack, discordgo.SecondaryButton, false))
	}
	return StageMessage(wizard.Stage(), wizard.Form(), "")
}

func (b *Bot) LoginModalHandler(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	log := interactionLogger(interaction, "login")

	user, err := b.sessions.Get(UserID(interaction))
	if err != nil {
		HandleError(session, interaction, err, "Could not log in.")
		return
	}
	if !Defer(session, interaction) {
		return
	}

	values := ModalValues(interaction.ModalSubmitData())
	account, err := user.Client.Login(context.Background(), values["username"], values["password"])
	if err != nil {
		log.WithError(err).Info("Login failed")
		Edit(session, interaction, ErrorMessage(registration.Describe(err)))
		return
	}

	log.WithField("account", account.ID).Info("Logged in")
	Edit(session, interaction, SuccessMessage("Welcome back", AccountSummary(account.FullName(), account.Username, account.RoleNames())))
}

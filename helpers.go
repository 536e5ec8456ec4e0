package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/davecgh/go-spew/spew"
	log "github.com/sirupsen/logrus"
)

const (
	colorInfo    = 0x3498db
	colorSuccess = 0x2ecc71
	colorError   = 0xe74c3c
)

var timeNow = time.Now

func Plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

func GetFooterText() string {
	return fmt.Sprintf("MechConnect • %s", timeNow().Format("Jan 2, 3:04 PM MST"))
}

// UserID works for guild interactions (Member) and direct messages (User).
func UserID(interaction *discordgo.InteractionCreate) string {
	if interaction.Member != nil && interaction.Member.User != nil {
		return interaction.Member.User.ID
	}
	if interaction.User != nil {
		return interaction.User.ID
	}
	return ""
}

// interactionLogger scopes log lines to one interaction.
func interactionLogger(interaction *discordgo.InteractionCreate, command string) *log.Entry {
	return log.WithFields(log.Fields{
		"interaction": interaction.ID,
		"user":        UserID(interaction),
		"command":     command,
	})
}

func embed(title, description string, color int) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       color,
		Footer:      &discordgo.MessageEmbedFooter{Text: GetFooterText()},
	}
}

// responseType picks how to answer: clicks and modals opened from a message edit that message,
// everything else gets a new one.
func responseType(interaction *discordgo.InteractionCreate) discordgo.InteractionResponseType {
	switch {
	case interaction.Type == discordgo.InteractionMessageComponent:
		return discordgo.InteractionResponseUpdateMessage
	case interaction.Type == discordgo.InteractionModalSubmit && interaction.Message != nil:
		return discordgo.InteractionResponseUpdateMessage
	}
	return discordgo.InteractionResponseChannelMessageWithSource
}

// Respond answers an interaction with an ephemeral message.
func Respond(session *discordgo.Session, interaction *discordgo.InteractionCreate, data *discordgo.InteractionResponseData) {
	data.Flags |= discordgo.MessageFlagsEphemeral
	response := &discordgo.InteractionResponse{Type: responseType(interaction), Data: data}
	if err := session.InteractionRespond(interaction.Interaction, response); err != nil {
		log.WithField("dump", spew.Sdump(response)).WithError(err).Error("Could not respond to interaction")
	}
}

// Defer acknowledges an interaction that will take longer than Discord's three seconds.
// The answer is sent later with Edit.
func Defer(session *discordgo.Session, interaction *discordgo.InteractionCreate) bool {
	kind := discordgo.InteractionResponseDeferredChannelMessageWithSource
	if responseType(interaction) == discordgo.InteractionResponseUpdateMessage {
		kind = discordgo.InteractionResponseDeferredMessageUpdate
	}

	err := session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: kind,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	})
	if err != nil {
		interactionLogger(interaction, "defer").WithError(err).Error("Could not defer interaction")
		return false
	}
	return true
}

// Edit replaces a deferred response.
func Edit(session *discordgo.Session, interaction *discordgo.InteractionCreate, data *discordgo.InteractionResponseData) {
	components := data.Components
	if components == nil {
		components = []discordgo.MessageComponent{}
	}
	embeds := data.Embeds
	if embeds == nil {
		embeds = []*discordgo.MessageEmbed{}
	}
	_, err := session.InteractionResponseEdit(interaction.Interaction, &discordgo.WebhookEdit{
		Content:    &data.Content,
		Embeds:     &embeds,
		Components: &components,
	})
	if err != nil {
		interactionLogger(interaction, "edit").WithError(err).Error("Could not edit interaction response")
	}
}

// HandleError logs err and shows message to the user.
func HandleError(session *discordgo.Session, interaction *discordgo.InteractionCreate, err error, message string) {
	entry := interactionLogger(interaction, "error")
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Warn(message)

	Respond(session, interaction, ErrorMessage(message))
}

func ErrorMessage(message string, buttons ...discordgo.MessageComponent) *discordgo.InteractionResponseData {
	data := &discordgo.InteractionResponseData{
		Embeds: []*discordgo.MessageEmbed{embed("Something went wrong", message, colorError)},
	}
	if len(buttons) > 0 {
		data.Components = []discordgo.MessageComponent{discordgo.ActionsRow{Components: buttons}}
	}
	return data
}

// ModalValues collects the text inputs of a submitted modal by custom ID.
// Discord delivers rows and inputs as pointers; values are accepted too.
func ModalValues(data discordgo.ModalSubmitInteractionData) map[string]string {
	values := make(map[string]string)
	for _, row := range data.Components {
		var children []discordgo.MessageComponent
		switch r := row.(type) {
		case *discordgo.ActionsRow:
			children = r.Components
		case discordgo.ActionsRow:
			children = r.Components
		}

		for _, child := range children {
			switch input := child.(type) {
			case *discordgo.TextInput:
				values[input.CustomID] = input.Value
			case discordgo.TextInput:
				values[input.CustomID] = input.Value
			}
		}
	}
	return values
}

// splitCustomID splits "prefix:action" custom IDs.
func splitCustomID(id string) (prefix, action string) {
	prefix, action, _ = strings.Cut(id, ":")
	return prefix, action
}

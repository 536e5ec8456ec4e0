package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bwmarrin/discordgo"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"mechconnect/internal/config"
	"mechconnect/internal/store"
)

var (
	envFile  string
	logLevel string
	cfg      *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "mechconnect",
	Short: "MechConnect account registration bot",
	Long: `Runs the MechConnect registration wizard as a Discord bot.

Users create an account with /register, pick their address with /address
and manage their session with /login, /logout and /whoami. Logged-in users
can view /profile, change roles with /switchrole, register as a mechanic
with /mechanic and change their /password.

Run without a subcommand to start the bot.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		files := lo.Compact([]string{envFile})
		if cfg, err = config.Load(files...); err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel = logLevel
		}
		if err := cfg.ConfigureLogging(); err != nil {
			return err
		}
		// scan only talks to the geography API.
		if cmd.Name() == "scan" {
			return nil
		}
		return cfg.Validate()
	},
	RunE: runBot,
}

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Connect to Discord and serve the registration commands",
	RunE:  runBot,
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Download the region and province lists into a directory",
	Long: `Walks every region of the geography API and writes its provinces to
<dir>/<region code>.json. Files that already exist with content are skipped,
so an interrupted scan can be resumed.`,
	RunE: runScan,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "path to a .env file (default .env)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
	scanCmd.Flags().String("dir", "geography", "output directory")

	rootCmd.AddCommand(botCmd, scanCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runBot(cmd *cobra.Command, args []string) error {
	if cfg.BotToken == "" {
		return fmt.Errorf("BOT_TOKEN is not set")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	drafts, closeDrafts, err := openDrafts(ctx)
	if err != nil {
		return err
	}
	defer closeDrafts()

	bot := NewBot(NewSessions(cfg, drafts))
	defer bot.sessions.Close()

	session, err := discordgo.New("Bot " + cfg.BotToken)
	if err != nil {
		return fmt.Errorf("invalid bot parameters: %w", err)
	}

	session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		log.Infof("Logged in as: %v#%v", s.State.User.Username, s.State.User.Discriminator)

		guilds := s.State.Guilds
		log.Infof("Connected to %d server%s", len(guilds), Plural(len(guilds)))
	})
	session.AddHandler(bot.HandleInteraction)

	if err := session.Open(); err != nil {
		return fmt.Errorf("cannot open the session: %w", err)
	}
	defer session.Close()

	definitions := CommandDefinitions()
	log.Infof("Adding %d command%s...", len(definitions), Plural(len(definitions)))
	registered := make([]*discordgo.ApplicationCommand, 0, len(definitions))
	for _, definition := range definitions {
		command, err := session.ApplicationCommandCreate(session.State.User.ID, cfg.TargetGuild, definition)
		if err != nil {
			return fmt.Errorf("registering '%v' command: %w", definition.Name, err)
		}
		registered = append(registered, command)
	}

	log.Info("Press Ctrl+C to exit")
	<-ctx.Done()

	log.Infof("Removing %d command%s...", len(registered), Plural(len(registered)))
	for _, command := range registered {
		if err := session.ApplicationCommandDelete(session.State.User.ID, cfg.TargetGuild, command.ID); err != nil {
			log.WithField("command", command.Name).WithError(err).Error("Cannot delete command")
		}
	}

	log.Info("Gracefully shutting down.")
	return nil
}

// openDrafts connects to Redis when REDIS_URL is set. Without it, drafts are not kept.
func openDrafts(ctx context.Context) (store.Store, func(), error) {
	if cfg.RedisURL == "" {
		log.Warn("REDIS_URL is not set, unfinished registrations will not survive a restart")
		return store.Nop{}, func() {}, nil
	}

	drafts, err := store.Open(ctx, cfg.RedisURL, cfg.DraftTTL)
	if err != nil {
		return nil, nil, err
	}
	return drafts, func() { drafts.Close() }, nil
}

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"groupplay/internal/config"
	"groupplay/internal/domain"
	"groupplay/internal/session"
	"groupplay/internal/store/remote"
)

const releaseVersion = "0.1.0"

func main() {
	log.SetFlags(0)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cobra.CheckErr(newCmd().ExecuteContext(ctx))
}

func newCmd() *cobra.Command {
	v := config.NewViper()

	cmd := &cobra.Command{
		Use:     "partyctl",
		Short:   "Terminal client for groupplay rooms.",
		Version: releaseVersion,
	}

	fs := cmd.PersistentFlags()
	fs.String("name", "", "display name (env: GROUPPLAY_NAME)")
	config.AddFlags(fs, config.ClientFlags...)
	config.BindFlags(v, fs)

	var category string
	host := &cobra.Command{
		Use:   "host",
		Short: "Create a room and host it",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := parseCategory(category)
			if err != nil {
				return err
			}
			return play(cmd.Context(), v, func(ctx context.Context, client *session.Client) error {
				code, err := client.CreateRoom(ctx, c)
				if err != nil {
					return err
				}
				fmt.Printf("room %s created\n", code)
				return nil
			})
		},
	}
	host.Flags().StringVarP(&category, "category", "c", string(domain.CategoryChill), "prompt category")

	join := &cobra.Command{
		Use:   "join CODE",
		Short: "Join an existing room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return play(cmd.Context(), v, func(ctx context.Context, client *session.Client) error {
				if err := client.JoinRoom(ctx, args[0], ""); err != nil {
					return err
				}
				fmt.Printf("joined room %s\n", domain.NormalizeRoomCode(args[0]))
				return nil
			})
		},
	}

	cmd.AddCommand(host, join)

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}

func parseCategory(s string) (domain.Category, error) {
	c, err := domain.ParseCategory(s)
	if err != nil {
		return "", fmt.Errorf("%w: %q", err, s)
	}
	return c, nil
}

// play dials the relay, enters a room with enter and runs the command loop
func play(ctx context.Context, v *viper.Viper, enter func(context.Context, *session.Client) error) error {
	cfg := config.Load(v)
	logger := cfg.NewLogger(os.Stderr)

	backend, err := remote.Dial(ctx, cfg.Server.RelayURL, logger)
	if err != nil {
		return fmt.Errorf("dial relay: %w", err)
	}
	defer backend.Close()

	sessionCfg := cfg.SessionConfig(domain.DefaultRand)
	sessionCfg.DisplayName = v.GetString("name")

	client := session.NewClient(backend, sessionCfg, logger)
	defer client.Close()

	if err := enter(ctx, client); err != nil {
		return err
	}

	return newREPL(client, os.Stdin, os.Stdout).run(ctx)
}

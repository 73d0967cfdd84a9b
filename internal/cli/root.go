// Package cli defines the Cobra commands of the rosenkoenig terminal client.
// This file contains the root command and the shared client config helpers.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"rosenkoenig/internal/client"
	"rosenkoenig/internal/config"
	"rosenkoenig/internal/game"
)

var (
	configPath string
	serverURL  string
	logFile    string
	version    = "dev" // set via ldflags at build time
)

const requestTimeout = 15 * time.Second

var rootCmd = &cobra.Command{
	Use:   "rosenkoenig",
	Short: "Play Rosenkönig against another player in the terminal",
	Long: `Rosenkönig is a two-player territory game on a 9x9 board.
Each turn a player moves the shared crown with one of their cards and
claims the destination cell. The larger connected territory wins.`,
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command. Called from main.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Client config file (default ~/.config/rosenkoenig/client.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "Server URL, overrides the saved one")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write client logs to this file")

	rootCmd.AddCommand(guestCmd)
	rootCmd.AddCommand(newCmd)
	rootCmd.AddCommand(joinCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(forfeitCmd)
}

// clientConfigPath resolves --config or the default location
func clientConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.DefaultClientPath()
}

// loadClient reads the saved client config and applies --server
func loadClient() (*config.ClientConfig, string, error) {
	path, err := clientConfigPath()
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.ReadClientConfig(path)
	if err != nil {
		return nil, "", err
	}
	if serverURL != "" {
		cfg.ServerURL = serverURL
	}
	return cfg, path, nil
}

// newAPI builds an API client for cfg. Commands that act as a player need
// a saved identity first.
func newAPI(cfg *config.ClientConfig, needIdentity bool) (*client.API, error) {
	if needIdentity && (cfg.Token == "" || cfg.PlayerID == "") {
		return nil, errors.New("no saved identity, run \"rosenkoenig guest\" first")
	}
	return client.NewAPI(cfg.ServerURL, cfg.Token, requestTimeout)
}

// sessionArg returns the session id argument or the last session used
func sessionArg(cfg *config.ClientConfig, args []string) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	if cfg.LastSession == "" {
		return "", errors.New("no session id given and no previous session saved")
	}
	return cfg.LastSession, nil
}

// newLogger logs to --log-file when set and discards otherwise, since the
// board owns the terminal while playing.
func newLogger() (*zap.Logger, error) {
	if logFile == "" {
		return zap.NewNop(), nil
	}
	zcfg := zap.NewDevelopmentConfig()
	zcfg.OutputPaths = []string{logFile}
	zcfg.ErrorOutputPaths = []string{logFile}
	return zcfg.Build()
}

// explain turns a server error into a message for the terminal. Transport
// failures keep their detail since there is no last known state to show.
func explain(action string, err error) error {
	if errors.Is(err, game.ErrTransport) {
		return fmt.Errorf("%s: %w", action, err)
	}
	return fmt.Errorf("%s: %s", action, game.Describe(err))
}

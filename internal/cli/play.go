package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"rosenkoenig/internal/client"
	"rosenkoenig/internal/config"
	"rosenkoenig/internal/realtime"
	"rosenkoenig/internal/tui"
)

var playCmd = &cobra.Command{
	Use:   "play [session-id]",
	Short: "Open a session on the interactive board",
	Long: `Open a session on the interactive board. Without an id the last
created or joined session is reopened.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPlay,
}

func runPlay(cmd *cobra.Command, args []string) error {
	cfg, path, err := loadClient()
	if err != nil {
		return err
	}
	id, err := sessionArg(cfg, args)
	if err != nil {
		return err
	}
	api, err := newAPI(cfg, true)
	if err != nil {
		return err
	}

	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer logger.Sync()

	feed, err := realtime.NewRemoteFeed(api.BaseURL(), api.Token(), logger.Named("feed"))
	if err != nil {
		return err
	}

	g := client.NewGame(api, feed, cfg.PlayerID, logger)
	defer g.Close()

	if err := g.Open(cmd.Context(), id); err != nil {
		return explain("opening session", err)
	}

	if cfg.LastSession != id {
		cfg.LastSession = id
		if err := config.WriteClientConfig(path, cfg); err != nil {
			return err
		}
	}

	return tui.Run(tui.NewModel(g))
}

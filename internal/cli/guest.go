package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"rosenkoenig/internal/config"
)

var guestCmd = &cobra.Command{
	Use:   "guest [name]",
	Short: "Create a guest identity and save it",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runGuest,
}

func runGuest(cmd *cobra.Command, args []string) error {
	cfg, path, err := loadClient()
	if err != nil {
		return err
	}
	api, err := newAPI(cfg, false)
	if err != nil {
		return err
	}

	name := ""
	if len(args) > 0 {
		name = args[0]
	}
	guest, err := api.Guest(cmd.Context(), name)
	if err != nil {
		return explain("creating guest", err)
	}

	cfg.PlayerID = guest.PlayerID
	cfg.Token = guest.Token
	cfg.LastSession = ""
	if err := config.WriteClientConfig(path, cfg); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (%s), token valid until %s\n",
		guest.Name, guest.PlayerID, guest.ExpiresAt.Local().Format("2006-01-02 15:04"))
	return nil
}

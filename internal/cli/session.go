package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"rosenkoenig/internal/config"
)

var (
	listLimit int
)

var newCmd = &cobra.Command{
	Use:   "new",
	Short: "Create a session and wait for an opponent",
	Args:  cobra.NoArgs,
	RunE:  runNew,
}

var joinCmd = &cobra.Command{
	Use:   "join <session-id>",
	Short: "Take the second seat of a waiting session",
	Args:  cobra.ExactArgs(1),
	RunE:  runJoin,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions waiting for an opponent",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var forfeitCmd = &cobra.Command{
	Use:   "forfeit [session-id]",
	Short: "Give up a session in progress",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runForfeit,
}

func init() {
	listCmd.Flags().IntVar(&listLimit, "limit", 20, "Maximum number of sessions to list")
}

func runNew(cmd *cobra.Command, args []string) error {
	cfg, path, err := loadClient()
	if err != nil {
		return err
	}
	api, err := newAPI(cfg, true)
	if err != nil {
		return err
	}

	session, err := api.CreateSession(cmd.Context())
	if err != nil {
		return explain("creating session", err)
	}

	cfg.LastSession = session.ID
	if err := config.WriteClientConfig(path, cfg); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created session %s\nShare the id and run \"rosenkoenig play\" to wait for your opponent.\n", session.ID)
	return nil
}

func runJoin(cmd *cobra.Command, args []string) error {
	cfg, path, err := loadClient()
	if err != nil {
		return err
	}
	api, err := newAPI(cfg, true)
	if err != nil {
		return err
	}

	session, err := api.JoinSession(cmd.Context(), args[0])
	if err != nil {
		return explain("joining session", err)
	}

	cfg.LastSession = session.ID
	if err := config.WriteClientConfig(path, cfg); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Joined session %s\n", session.ID)
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadClient()
	if err != nil {
		return err
	}
	api, err := newAPI(cfg, true)
	if err != nil {
		return err
	}

	sessions, err := api.OpenSessions(cmd.Context(), listLimit)
	if err != nil {
		return explain("listing sessions", err)
	}

	out := cmd.OutOrStdout()
	if len(sessions) == 0 {
		fmt.Fprintln(out, "No open sessions.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tCREATED BY\tCREATED")
	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%s\n", s.ID, s.PlayerA, s.CreatedAt.Local().Format("15:04:05"))
	}
	return w.Flush()
}

func runForfeit(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadClient()
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

	session, err := api.Forfeit(cmd.Context(), id)
	if err != nil {
		return explain("forfeiting", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Forfeited session %s, seat %s wins\n", session.ID, session.Winner)
	return nil
}

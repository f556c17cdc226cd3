// relay-panel is a terminal control panel for the relay.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"relay-server/client"
	"relay-server/panel"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfg = viper.New()

	rootCmd = &cobra.Command{
		Use:   "relay-panel",
		Short: "Relay control panel",
		RunE:  runPanel,
	}

	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Print login and command statistics",
		RunE:  showStats,
	}
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("url", "http://localhost:3536", "Relay API base URL")
	flags.String("api-key", "", "Shared API key (defaults to $API_KEY)")
	rootCmd.Flags().Duration("poll", time.Second, "Status poll interval")
	rootCmd.Flags().Duration("confirm-timeout", panel.DefaultConfirmTimeout, "How long to wait for the relay to confirm a change")

	cfg.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	cfg.AutomaticEnv()
	_ = cfg.BindEnv("url", "RELAY_URL")
	_ = cfg.BindPFlag("url", flags.Lookup("url"))
	_ = cfg.BindPFlag("api_key", flags.Lookup("api-key"))
	_ = cfg.BindPFlag("poll", rootCmd.Flags().Lookup("poll"))
	_ = cfg.BindPFlag("confirm_timeout", rootCmd.Flags().Lookup("confirm-timeout"))

	rootCmd.AddCommand(statsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newClient() *client.Client {
	return client.New(cfg.GetString("url"), cfg.GetString("api_key")).WithUserAgent("relay-panel/1")
}

func runPanel(cmd *cobra.Command, args []string) error {
	m := newModel(newClient(), panel.New(cfg.GetDuration("confirm_timeout")), cfg.GetDuration("poll"))
	p := tea.NewProgram(m)
	_, err := p.Run()
	return err
}

func showStats(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	report, err := newClient().Stats(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	s := report.Summary
	fmt.Fprintf(out, "Storage: %s\n\n", report.Storage)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\tTOTAL\t24H\t7D")
	fmt.Fprintf(w, "logins\t%d\t%d\t%d\n", s.TotalLogins, s.Logins24h, s.Logins7d)
	fmt.Fprintf(w, "commands\t%d\t%d\t%d\n", s.TotalCommands, s.Commands24h, s.Commands7d)
	w.Flush()

	if len(s.CommandTypeBreakdown) > 0 {
		fmt.Fprintln(out)
		w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "COMMAND TYPE\tCOUNT")
		for kind, n := range s.CommandTypeBreakdown {
			fmt.Fprintf(w, "%s\t%d\n", kind, n)
		}
		w.Flush()
	}

	if len(report.RecentCommands) > 0 {
		fmt.Fprintln(out)
		w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tCOMMAND")
		for _, e := range report.RecentCommands {
			fmt.Fprintf(w, "%s\t%s\n", e.Time, e.CommandType)
		}
		w.Flush()
	}
	return nil
}

// relay-sim runs a software relay board against the relay API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"relay-server/client"
	"relay-server/device"
	"relay-server/logs"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfg = viper.New()

	rootCmd = &cobra.Command{
		Use:   "relay-sim",
		Short: "Simulated relay device",
		Long:  "Polls the relay API for commands, drives a virtual relay and reports its state on every heartbeat.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logs.Init(logs.Options{Level: cfg.GetString("log_level")})
		},
	}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Heartbeat until interrupted",
		RunE:  runSimulator,
	}

	onceCmd = &cobra.Command{
		Use:   "once",
		Short: "Perform a single heartbeat and print the resulting state",
		RunE:  runOnce,
	}
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("url", "http://localhost:3536", "Relay API base URL")
	flags.String("api-key", "", "Shared API key (defaults to $API_KEY)")
	flags.String("timezone", "Europe/Copenhagen", "Timezone schedules are evaluated in")
	flags.String("log-level", "info", "Log level")
	runCmd.Flags().Duration("interval", device.DefaultHeartbeat, "Heartbeat interval")

	cfg.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	cfg.AutomaticEnv()
	_ = cfg.BindEnv("url", "RELAY_URL")
	_ = cfg.BindPFlag("url", flags.Lookup("url"))
	_ = cfg.BindPFlag("api_key", flags.Lookup("api-key"))
	_ = cfg.BindPFlag("timezone", flags.Lookup("timezone"))
	_ = cfg.BindPFlag("log_level", flags.Lookup("log-level"))
	_ = cfg.BindPFlag("interval", runCmd.Flags().Lookup("interval"))

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(onceCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newSimulator() (*device.Simulator, error) {
	loc, err := time.LoadLocation(cfg.GetString("timezone"))
	if err != nil {
		return nil, fmt.Errorf("invalid timezone: %w", err)
	}
	api := client.New(cfg.GetString("url"), cfg.GetString("api_key")).WithUserAgent("relay-sim/1")
	return device.NewSimulator(api, loc), nil
}

func runSimulator(cmd *cobra.Command, args []string) error {
	sim, err := newSimulator()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logs.Logger.Infof("simulating relay against %s", cfg.GetString("url"))
	if err := sim.Run(ctx, cfg.GetDuration("interval")); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func runOnce(cmd *cobra.Command, args []string) error {
	sim, err := newSimulator()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := sim.Step(ctx); err != nil {
		return err
	}

	relay, schedule := sim.State()
	fmt.Fprintf(cmd.OutOrStdout(), "relay: %s\n", relay)
	if schedule != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "schedule: %s %s (active=%t executed=%t)\n",
			schedule.ResolvedDateTime(), schedule.Action, schedule.Active, schedule.Executed)
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "schedule: none")
	}
	return nil
}

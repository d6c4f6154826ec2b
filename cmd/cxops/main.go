package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/cxops/internal/config"
)

var version = "dev"

var noColor bool
var debug bool

var rootCmd = &cobra.Command{
	Use:   "cxops",
	Short: "Contact-center tenant operations console",
	Long: `cxops drives day-to-day tenant operations against the contact-center
platform API: run report jobs, export and clean up call lists, pull
completed contacts, download call recordings, and watch live queue and
agent activity.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelWarn
		if debug {
			level = slog.LevelDebug
		} else if cfg, err := config.Load(); err == nil {
			switch strings.ToLower(cfg.Log.Level) {
			case "debug":
				level = slog.LevelDebug
			case "info":
				level = slog.LevelInfo
			}
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the cxops version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("cxops version %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(listsCmd)
	rootCmd.AddCommand(contactsCmd)
	rootCmd.AddCommand(recordingsCmd)
	rootCmd.AddCommand(dashboardCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}

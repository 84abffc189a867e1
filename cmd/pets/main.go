package main

import (
	"os"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

const defaultServer = "http://localhost:8080"

var rootCmd = &cobra.Command{
	Use:           "pets",
	Short:         "Pixel Pets break reminders",
	Long:          "Run the Pixel Pets reminder server or control a running one.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().String("server", serverFromEnv(), "Base URL of a running pets server (env PETS_SERVER)")
	rootCmd.PersistentFlags().StringP("output", "o", "", "Output format (json)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(remindCmd, statusCmd, ackCmd, snoozeCmd, cancelCmd)
}

func serverFromEnv() string {
	if u := strings.TrimSpace(os.Getenv("PETS_SERVER")); u != "" {
		return u
	}
	return defaultServer
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

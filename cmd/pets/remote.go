package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"pixel_pets/internal/domain/reminder"
	"pixel_pets/internal/infra/httpapi"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var remindCmd = &cobra.Command{
	Use:   "remind",
	Short: "Start a recurring reminder",
	Example: `  pets remind --minutes 25 --animal fox
  pets remind --seconds 90`,
	Args: cobra.NoArgs,
	RunE: runRemind,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current reminder",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runRemote(cmd, reminder.Command{Type: reminder.CmdGetStatus}, "")
	},
}

var ackCmd = &cobra.Command{
	Use:   "ack",
	Short: "Dismiss the pet",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runRemote(cmd, reminder.Command{Type: reminder.CmdAcknowledgeReminder}, "Pet dismissed")
	},
}

var snoozeCmd = &cobra.Command{
	Use:   "snooze",
	Short: "Hide the pet and bring it back later",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runRemote(cmd, reminder.Command{Type: reminder.CmdSnoozeReminder}, "Reminder snoozed")
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Stop the reminder",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runRemote(cmd, reminder.Command{Type: reminder.CmdCancelTimer}, "Reminder cancelled")
	},
}

func init() {
	remindCmd.Flags().Float64("seconds", 0, "Reminder interval in seconds")
	remindCmd.Flags().Float64("minutes", 0, "Reminder interval in minutes, used when --seconds is not set")
	remindCmd.Flags().String("animal", string(reminder.AnimalCat), "Pet to show (cat|fox)")
	remindCmd.MarkFlagsOneRequired("seconds", "minutes")
}

func runRemind(cmd *cobra.Command, _ []string) error {
	seconds, _ := cmd.Flags().GetFloat64("seconds")
	minutes, _ := cmd.Flags().GetFloat64("minutes")
	animal, _ := cmd.Flags().GetString("animal")

	c := reminder.Command{Type: reminder.CmdSetReminder, Seconds: seconds, Minutes: minutes, Animal: animal}
	d, err := c.Duration()
	if err != nil {
		return err
	}
	return runRemote(cmd, c, fmt.Sprintf("Reminder set: %s every %s", animal, d))
}

func runRemote(cmd *cobra.Command, c reminder.Command, done string) error {
	server, _ := cmd.Flags().GetString("server")
	output, _ := cmd.Flags().GetString("output")

	ctx, cancel := context.WithTimeout(cmd.Context(), 20*time.Second)
	defer cancel()

	res, err := httpapi.NewClient(server).Execute(ctx, c)
	if err != nil {
		pterm.Error.Printfln("Could not reach the pets server at %s", server)
		return err
	}

	if output == "json" {
		return writeJSON(os.Stdout, res)
	}
	if !res.Success {
		return errors.New(res.Error)
	}
	if c.Type == reminder.CmdGetStatus {
		return printStatus(res, time.Now())
	}
	pterm.Success.Println(done)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printStatus(res reminder.Result, now time.Time) error {
	if res.State == nil {
		pterm.Warning.Println("Server returned no reminder state")
		return nil
	}
	st := res.State
	rows := pterm.TableData{
		{"Phase", string(res.Phase)},
		{"Active", fmt.Sprintf("%t", st.IsActive)},
		{"Animal", string(st.Animal)},
	}
	if interval := st.Interval(); interval > 0 {
		rows = append(rows, []string{"Every", interval.String()})
	}
	if !st.NextTriggerTime.IsZero() {
		left := max(st.NextTriggerTime.Sub(now).Round(time.Second), 0)
		rows = append(rows, []string{"Next visit", fmt.Sprintf("%s (in %s)", st.NextTriggerTime.Format(time.Kitchen), left)})
	}
	return pterm.DefaultTable.WithData(rows).Render()
}

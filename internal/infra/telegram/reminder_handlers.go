package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"pixel_pets/internal/app"
	"pixel_pets/internal/domain/reminder"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const commandTimeout = 10 * time.Second

// CommandExecutor runs reminder commands.
type CommandExecutor interface {
	Execute(ctx context.Context, cmd reminder.Command) (reminder.Result, error)
}

// RegisterReminderHandlers wires the reminder commands and the inline pet
// buttons. Only users allowed by subscriptions.CanControl may use them.
func RegisterReminderHandlers(
	ctx context.Context,
	b Registrar,
	executor CommandExecutor,
	subscriptions *app.SubscriptionService,
	baseLogger *logrus.Entry,
) {
	reminderLogger := baseLogger.WithField("handler_group", "reminder")

	run := func(c telebot.Context, handler string, cmd reminder.Command) (reminder.Result, bool, error) {
		logCtx := reminderLogger.WithFields(logrus.Fields{
			"handler":   handler,
			"sender_id": c.Sender().ID,
		})
		if !subscriptions.CanControl(c.Sender().ID) {
			logCtx.Warn("Unauthorized access attempt")
			return reminder.Result{}, false, c.Send("Sorry, you are not allowed to control the reminder.")
		}

		cctx, cancel := context.WithTimeout(ctx, commandTimeout)
		defer cancel()
		res, err := executor.Execute(cctx, cmd)
		if err != nil {
			logCtx.WithError(err).Error("Command not executed")
			return reminder.Result{}, false, c.Send("The reminder service is unavailable right now.")
		}
		if !res.Success {
			logCtx.WithField("error", res.Error).Warn("Command failed")
			return res, false, c.Send("Could not do that: " + res.Error)
		}
		logCtx.Info("Command executed")
		return res, true, nil
	}

	b.Handle("/remind", func(c telebot.Context) error {
		cmd, err := parseRemindArgs(c.Args())
		if err != nil {
			return c.Send(err.Error() + "\nUsage: /remind <seconds|duration> [cat|fox]")
		}
		_, ok, err := run(c, "/remind", cmd)
		if !ok {
			return err
		}
		animal, _ := reminder.ParseAnimal(cmd.Animal)
		return c.Send(fmt.Sprintf("Reminder set: the %s will visit every %s.", animal, formatSeconds(cmd.Seconds)))
	})

	b.Handle("/status", func(c telebot.Context) error {
		res, ok, err := run(c, "/status", reminder.Command{Type: reminder.CmdGetStatus})
		if !ok {
			return err
		}
		return c.Send(formatStatus(res, time.Now()))
	})

	b.Handle("/ack", func(c telebot.Context) error {
		if _, ok, err := run(c, "/ack", reminder.Command{Type: reminder.CmdAcknowledgeReminder}); !ok {
			return err
		}
		return c.Send("Pet dismissed. Enjoy the break!")
	})

	b.Handle("/snooze", func(c telebot.Context) error {
		if _, ok, err := run(c, "/snooze", reminder.Command{Type: reminder.CmdSnoozeReminder}); !ok {
			return err
		}
		return c.Send("Snoozed. The pet will be back soon.")
	})

	b.Handle("/cancel", func(c telebot.Context) error {
		if _, ok, err := run(c, "/cancel", reminder.Command{Type: reminder.CmdCancelTimer}); !ok {
			return err
		}
		return c.Send("Reminder cancelled.")
	})

	callback := func(handler string, cmd reminder.Command, done string) telebot.HandlerFunc {
		return func(c telebot.Context) error {
			logCtx := reminderLogger.WithFields(logrus.Fields{
				"handler":   handler,
				"sender_id": c.Sender().ID,
			})
			if !subscriptions.CanControl(c.Sender().ID) {
				logCtx.Warn("Unauthorized callback")
				return c.Respond(&telebot.CallbackResponse{Text: "You are not allowed to do that."})
			}
			cctx, cancel := context.WithTimeout(ctx, commandTimeout)
			defer cancel()
			res, err := executor.Execute(cctx, cmd)
			if err != nil || !res.Success {
				logCtx.WithError(err).WithField("error_text", res.Error).Error("Callback command failed")
				return c.Respond(&telebot.CallbackResponse{Text: "Something went wrong."})
			}
			logCtx.Info("Callback handled")
			return c.Respond(&telebot.CallbackResponse{Text: done})
		}
	}
	b.Handle(&btnAck, callback("pet_ack", reminder.Command{Type: reminder.CmdAcknowledgeReminder}, "Enjoy the break!"))
	b.Handle(&btnSnooze, callback("pet_snooze", reminder.Command{Type: reminder.CmdSnoozeReminder}, "Snoozed."))
}

// parseRemindArgs accepts "/remind 90", "/remind 25m fox" and similar.
func parseRemindArgs(args []string) (reminder.Command, error) {
	if len(args) < 1 || len(args) > 2 {
		return reminder.Command{}, errors.New("expected an interval and an optional animal")
	}
	seconds, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		d, derr := time.ParseDuration(args[0])
		if derr != nil {
			return reminder.Command{}, fmt.Errorf("invalid interval %q", args[0])
		}
		seconds = d.Seconds()
	}
	cmd := reminder.Command{Type: reminder.CmdSetReminder, Seconds: seconds}
	if _, err := cmd.Duration(); err != nil {
		return reminder.Command{}, err
	}
	if len(args) == 2 {
		cmd.Animal = strings.ToLower(args[1])
	}
	return cmd, nil
}

func formatSeconds(seconds float64) string {
	return time.Duration(seconds * float64(time.Second)).String()
}

func formatStatus(res reminder.Result, now time.Time) string {
	if res.State == nil {
		return "No reminder information available."
	}
	st := res.State
	var sb strings.Builder
	fmt.Fprintf(&sb, "Reminder: %s\n", res.Phase)
	fmt.Fprintf(&sb, "Animal: %s\n", st.Animal)
	if st.IntervalSeconds > 0 {
		fmt.Fprintf(&sb, "Every: %s\n", formatSeconds(st.IntervalSeconds))
	}
	if !st.NextTriggerTime.IsZero() {
		left := st.NextTriggerTime.Sub(now).Round(time.Second)
		if left < 0 {
			left = 0
		}
		fmt.Fprintf(&sb, "Next visit in: %s", left)
	}
	return strings.TrimRight(sb.String(), "\n")
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"rollcall/internal/attendance"
	"rollcall/internal/profile"
	"rollcall/internal/session"
	"rollcall/internal/sheetsync"
)

var syncFlags struct {
	preparer string
	unit     string
	group    string
	url      string
}

var syncCmd = &cobra.Command{
	Use:   "sync [owner-id] [session-id]",
	Short: "Push one session to the sheet webhook now",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := session.ID(args[1])
		if _, _, err := session.Parse(id); err != nil {
			return err
		}
		cfg := loadConfig()
		log := newLogger(cfg)
		job := sheetsync.Job{
			OwnerID: args[0],
			Session: id,
			Profile: profile.Profile{
				PreparerName: syncFlags.preparer,
				UnitLabel:    syncFlags.unit,
				GroupLabel:   syncFlags.group,
				SyncURL:      syncFlags.url,
			}.Normalize(),
		}

		return withService(cmd.Context(), cfg, log, func(svc *attendance.Service) error {
			w := sheetsync.NewWorker(svc, sheetsync.NewClient(cfg.SyncWebhookURL), nil, log)
			p, err := w.Sync(cmd.Context(), job)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "synced %s: %d entries\n", id, len(p.Attendance))
			return nil
		})
	},
}

func init() {
	f := syncCmd.Flags()
	f.StringVar(&syncFlags.preparer, "preparer", "", "preparer name sent with the payload")
	f.StringVar(&syncFlags.unit, "unit", "", "unit label")
	f.StringVar(&syncFlags.group, "group", "", "group label")
	f.StringVar(&syncFlags.url, "url", "", "webhook url (default SYNC_WEBHOOK_URL)")
}

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"rollcall/internal/session"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Work with session identifiers",
}

var sessionCurrentCmd = &cobra.Command{
	Use:   "current",
	Short: "Print the session for the local time now",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), session.Current(time.Now()))
	},
}

var sessionDeriveCmd = &cobra.Command{
	Use:   "derive [date] [AM|PM]",
	Short: "Build the identifier for a date and period",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := session.ParseDate(args[0])
		if err != nil {
			return fmt.Errorf("date: %w", err)
		}
		p := session.Period(args[1])
		if !p.Valid() {
			return fmt.Errorf("period must be %s or %s", session.AM, session.PM)
		}
		fmt.Fprintln(cmd.OutOrStdout(), session.Derive(d, p))
		return nil
	},
}

var sessionParseCmd = &cobra.Command{
	Use:   "parse [session-id]",
	Short: "Show the date and period an identifier encodes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, p, err := session.Parse(session.ID(args[0]))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "date:   %s\nperiod: %s\n", d.Format("Monday 2006-01-02"), p)
		return nil
	},
}

func init() {
	sessionCmd.AddCommand(sessionCurrentCmd, sessionDeriveCmd, sessionParseCmd)
}

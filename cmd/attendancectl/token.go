package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"rollcall/internal/auth"
	"rollcall/internal/profile"
)

var tokenFlags struct {
	role     string
	preparer string
	unit     string
	group    string
	syncURL  string
	ttl      time.Duration
}

var tokenCmd = &cobra.Command{
	Use:   "token [owner-id]",
	Short: "Mint an access token for an owner",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		p := profile.Profile{
			PreparerName: tokenFlags.preparer,
			UnitLabel:    tokenFlags.unit,
			GroupLabel:   tokenFlags.group,
			SyncURL:      tokenFlags.syncURL,
		}.Normalize()
		if p.PreparerName == "" {
			p.PreparerName = args[0]
		}
		if err := p.Validate(); err != nil {
			return err
		}
		switch tokenFlags.role {
		case auth.RoleOwner, auth.RoleViewer:
		default:
			return fmt.Errorf("role must be %s or %s", auth.RoleOwner, auth.RoleViewer)
		}
		ttl := tokenFlags.ttl
		if ttl <= 0 {
			ttl = cfg.AccessTTL
		}
		tok, err := auth.Issue(args[0], tokenFlags.role, p, cfg.JWTIssuer, cfg.JWTSigningKey, ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok.AccessToken)
		fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", tok.ExpiresAt.Format(time.RFC3339))
		return nil
	},
}

func init() {
	f := tokenCmd.Flags()
	f.StringVar(&tokenFlags.role, "role", auth.RoleOwner, "owner or viewer")
	f.StringVar(&tokenFlags.preparer, "preparer", "", "preparer name printed on reports")
	f.StringVar(&tokenFlags.unit, "unit", "", "unit label, e.g. 10A")
	f.StringVar(&tokenFlags.group, "group", "", "group label")
	f.StringVar(&tokenFlags.syncURL, "sync-url", "", "sheet webhook for this owner")
	f.DurationVar(&tokenFlags.ttl, "ttl", 0, "token lifetime (default ACCESS_TTL)")
}

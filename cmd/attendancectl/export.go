package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"rollcall/internal/attendance"
	"rollcall/internal/profile"
	"rollcall/internal/report"
	"rollcall/internal/session"
)

var exportFlags struct {
	owner    string
	kind     string
	session  string
	start    string
	end      string
	preparer string
	unit     string
	group    string
	outDir   string
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write an absentee report to disk",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := report.ParseKind(exportFlags.kind)
		if err != nil {
			return err
		}
		sel := report.Selector{Kind: kind, Session: session.ID(exportFlags.session)}
		if kind == report.Range {
			if sel.Start, err = session.ParseDate(exportFlags.start); err != nil {
				return fmt.Errorf("--start: %w", err)
			}
			if sel.End, err = session.ParseDate(exportFlags.end); err != nil {
				return fmt.Errorf("--end: %w", err)
			}
		}

		cfg := loadConfig()
		log := newLogger(cfg)
		req := report.Request{
			Scope:    attendance.Scope{OwnerID: exportFlags.owner},
			Selector: sel,
			Profile: profile.Profile{
				PreparerName: exportFlags.preparer,
				UnitLabel:    exportFlags.unit,
				GroupLabel:   exportFlags.group,
			}.Normalize(),
		}

		return withService(cmd.Context(), cfg, log, func(svc *attendance.Service) error {
			res, err := report.NewExporter(svc, report.HTMLRenderer{}, nil, log).Export(cmd.Context(), req)
			if err != nil {
				return err
			}
			if res.NoData {
				fmt.Fprintln(cmd.OutOrStdout(), "no sessions in range, nothing written")
				return nil
			}
			path := filepath.Join(exportFlags.outDir, res.Artifact.Filename)
			if err := os.WriteFile(path, res.Artifact.Body, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d sessions, %d absentees\n", path, len(res.Sessions), len(res.Matrix.Rows))
			return nil
		})
	},
}

func init() {
	f := exportCmd.Flags()
	f.StringVar(&exportFlags.owner, "owner", "", "owner id; empty exports every owner")
	f.StringVar(&exportFlags.kind, "range", "single", "single, range or all")
	f.StringVar(&exportFlags.session, "session", "", "session id for a single export (default current)")
	f.StringVar(&exportFlags.start, "start", "", "first date of a range export")
	f.StringVar(&exportFlags.end, "end", "", "last date of a range export")
	f.StringVar(&exportFlags.preparer, "preparer", "", "preparer name printed on the report")
	f.StringVar(&exportFlags.unit, "unit", "", "unit label")
	f.StringVar(&exportFlags.group, "group", "", "group label")
	f.StringVar(&exportFlags.outDir, "out", ".", "directory the report is written to")
}

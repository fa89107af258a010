package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"cpted-sync/internal/domain"
	"cpted-sync/internal/export"
	"cpted-sync/internal/scoring"

	"github.com/spf13/cobra"
)

func newNewCommand(opts *RootOptions) *cobra.Command {
	var property, address, propertyType, assessor string

	cmd := &cobra.Command{
		Use:   "new",
		Short: "Create a new assessment from the checklist template",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, _, err := opts.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			a, err := st.CreateAssessment(cmd.Context(), property, address, propertyType, assessor)
			if err != nil {
				return err
			}
			fmt.Printf("created assessment %s\n", a.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&property, "property", "", "property name")
	cmd.Flags().StringVar(&address, "address", "", "property address")
	cmd.Flags().StringVar(&propertyType, "type", "", "property type")
	cmd.Flags().StringVar(&assessor, "assessor", "", "assessor name")
	_ = cmd.MarkFlagRequired("property")

	return cmd
}

func newListCommand(opts *RootOptions) *cobra.Command {
	var remote bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List assessments (local by default, --remote for the server)",
		RunE: func(cmd *cobra.Command, args []string) error {
			var summaries []domain.AssessmentSummary

			if remote {
				log, err := opts.newLogger()
				if err != nil {
					return err
				}
				client := opts.newClient(log)
				if summaries, err = client.ListAssessments(cmd.Context()); err != nil {
					return err
				}
			} else {
				st, _, err := opts.openStore()
				if err != nil {
					return err
				}
				defer st.Close()
				if summaries, err = st.ListAssessments(cmd.Context()); err != nil {
					return err
				}
			}

			if len(summaries) == 0 {
				fmt.Println("no assessments")
				return nil
			}
			for _, s := range summaries {
				synced := "never synced"
				if s.SyncedAt != nil {
					synced = "synced " + s.SyncedAt.Local().Format("2006-01-02 15:04")
				}
				fmt.Printf("%s  %-12s %-6s %-30s %s\n",
					s.ID, s.Status, formatScore(s.OverallScore), s.PropertyName, synced)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&remote, "remote", false, "list assessments on the server instead")
	return cmd
}

func newShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <assessment-id>",
		Short: "Show zone rollups and scoring progress for one assessment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, _, err := opts.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			d, err := st.GetAssessment(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			a := d.Assessment
			fmt.Printf("%s  %s (%s)\n", a.ID, a.PropertyName, a.Status)
			fmt.Printf("overall score: %s\n\n", formatScore(a.OverallScore))

			for _, z := range d.ZoneScores {
				counts := scoring.CountsFor(scoring.FilterZone(d.ItemScores, z.ZoneKey))
				state := " "
				if z.Completed {
					state = "x"
				}
				fmt.Printf("[%s] %-24s avg %-6s %d/%d addressed (%d n/a)\n",
					state, z.ZoneName, formatScore(z.AverageScore),
					counts.Addressed, counts.Total, counts.NA)
			}

			unsynced := 0
			for _, p := range d.Photos {
				if !p.Synced {
					unsynced++
				}
			}
			fmt.Printf("\nphotos: %d (%d awaiting upload)\n", len(d.Photos), unsynced)
			return nil
		},
	}
}

func newScoreCommand(opts *RootOptions) *cobra.Command {
	var notes string

	cmd := &cobra.Command{
		Use:   "score <item-id> <1-5|na|clear>",
		Short: "Score a checklist item, mark it N/A, or clear it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, _, err := opts.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			itemID := args[0]
			switch strings.ToLower(args[1]) {
			case "na":
				err = st.SetItemNA(cmd.Context(), itemID, true)
			case "clear":
				if err = st.SetItemNA(cmd.Context(), itemID, false); err == nil {
					err = st.SetItemScore(cmd.Context(), itemID, nil)
				}
			default:
				v, convErr := strconv.Atoi(args[1])
				if convErr != nil {
					return fmt.Errorf("score must be 1-5, na or clear, got %q", args[1])
				}
				err = st.SetItemScore(cmd.Context(), itemID, &v)
			}
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("notes") {
				if err := st.SetItemNotes(cmd.Context(), itemID, notes); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&notes, "notes", "", "free-text notes for the item")
	return cmd
}

func newExportCommand(opts *RootOptions) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export <assessment-id>",
		Short: "Export one assessment to an Excel workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, _, err := opts.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			d, err := st.GetAssessment(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			data, err := export.Workbook(d)
			if err != nil {
				return err
			}

			if out == "" {
				out = args[0] + ".xlsx"
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("failed to write workbook: %w", err)
			}
			fmt.Printf("exported to %s\n", out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default <assessment-id>.xlsx)")
	return cmd
}

func newDeleteCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <assessment-id>",
		Short: "Delete a local assessment, its children and its photos",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, _, err := opts.openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			return st.DeleteAssessment(cmd.Context(), args[0])
		},
	}
}

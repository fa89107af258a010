package cli

import (
	"errors"
	"fmt"

	"cpted-sync/internal/syncer"

	"github.com/spf13/cobra"
)

func newPushCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "push <assessment-id>",
		Short: "Upload one assessment to the server",
		Long: "Uploads the assessment's current local state. The server applies it in one " +
			"transaction and recomputes all scores from the raw items; photo binaries " +
			"follow individually and are retried on the next push if they fail.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, log, err := opts.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			res, err := opts.newSyncer(st, log).Push(cmd.Context(), args[0])
			if err != nil {
				if errors.Is(err, syncer.ErrConflict) {
					return fmt.Errorf("another device has pushed this assessment; pull first, then push again")
				}
				return err
			}

			fmt.Printf("pushed at %s (version %d)\n", res.SyncedAt.Local().Format("2006-01-02 15:04:05"), res.SyncVersion)
			if res.PhotosUploaded > 0 || res.PhotosFailed > 0 {
				fmt.Printf("photos: %d uploaded, %d failed (will retry on next push)\n",
					res.PhotosUploaded, res.PhotosFailed)
			}
			return nil
		},
	}
}

func newPullCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pull <assessment-id>",
		Short: "Download one assessment from the server, replacing the local copy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, log, err := opts.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			res, err := opts.newSyncer(st, log).Pull(cmd.Context(), args[0], func(p syncer.Progress) {
				if p.Total > 0 {
					fmt.Printf("[%s] %d/%d %s\n", p.Phase, p.Current, p.Total, p.Message)
				} else {
					fmt.Printf("[%s] %s\n", p.Phase, p.Message)
				}
			})
			if err != nil {
				if errors.Is(err, syncer.ErrNotFound) {
					return fmt.Errorf("assessment %s does not exist on the server", args[0])
				}
				return err
			}

			fmt.Printf("pulled %s: %d photos downloaded, %d failed\n",
				res.AssessmentID, res.PhotosDownloaded, res.PhotosFailed)
			return nil
		},
	}
}

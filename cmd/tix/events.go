package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/tix/internal/model"
	"github.com/alfredjeanlab/tix/internal/session"
	"github.com/alfredjeanlab/tix/internal/store"
	"github.com/alfredjeanlab/tix/internal/store/postgres"
	tixsync "github.com/alfredjeanlab/tix/internal/sync"
	"github.com/alfredjeanlab/tix/internal/view"
)

var eventsCmd = &cobra.Command{
	Use:     "events",
	Short:   "List events with the active account's tickets",
	GroupID: "views",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fromMirror, _ := cmd.Flags().GetBool("mirror")
		jsonl, _ := cmd.Flags().GetBool("jsonl")
		ctx := cmd.Context()

		a, err := openReadyApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		var snap model.Snapshot
		if fromMirror {
			snap, err = loadMirror(ctx, a.session.State())
		} else {
			err = a.reader.Resync(ctx)
			snap = a.reader.Cache().Snapshot()
		}
		if err != nil {
			return err
		}
		return renderSnapshot(cmd.OutOrStdout(), snap, jsonl)
	},
}

func init() {
	eventsCmd.Flags().Bool("mirror", false, "read the last snapshot mirrored to TIX_DATABASE_URL instead of the ledger")
	eventsCmd.Flags().Bool("jsonl", false, "write the snapshot as JSONL (header, events, holdings)")
}

// renderSnapshot writes snap in the selected output format.
func renderSnapshot(w io.Writer, snap model.Snapshot, jsonl bool) error {
	switch {
	case jsonl:
		return tixsync.ExportJSONL(w, snap)
	case jsonOutput:
		return printJSON(w, view.Rows(snap, view.System().Now()))
	default:
		printRows(w, view.Rows(snap, view.System().Now()))
		return nil
	}
}

// loadMirror reads the mirrored snapshot for the session's network,
// contract and account.
func loadMirror(ctx context.Context, st session.State) (model.Snapshot, error) {
	if cfg.DatabaseURL == "" {
		return model.Snapshot{}, fmt.Errorf("--mirror requires TIX_DATABASE_URL")
	}
	s, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return model.Snapshot{}, err
	}
	defer s.Close()

	snap, err := store.LoadSnapshot(ctx, s, st.NetworkID, st.Ledger.Address(), st.Account)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("loading mirror: %w", err)
	}
	snap.Generation = st.Generation
	return snap, nil
}

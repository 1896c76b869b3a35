package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/tix/internal/session"
	tixsync "github.com/alfredjeanlab/tix/internal/sync"
	"github.com/alfredjeanlab/tix/internal/ui"
	"github.com/alfredjeanlab/tix/internal/view"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Short:   "Re-render the event table on every resync",
	GroupID: "views",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		interval, _ := cmd.Flags().GetDuration("interval")
		if !cmd.Flags().Changed("interval") {
			interval = cfg.PollInterval
		}
		ctx := cmd.Context()

		a, initErr, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()
		if initErr != nil {
			logger.Warn("waiting for a deployment on this network", "err", initErr)
		}

		out := cmd.OutOrStdout()
		var mu sync.Mutex
		sched := tixsync.NewScheduler(a.reader, interval, logger,
			tixsync.WithPublisher(a.publisher),
			tixsync.WithNetworkChecker(a.session),
			tixsync.WithOnSync(func(o tixsync.Outcome) {
				mu.Lock()
				defer mu.Unlock()
				renderOutcome(out, o)
			}),
		)
		a.session.OnChange(func(session.State) { sched.Trigger() })

		sched.Start()
		<-ctx.Done()
		sched.Stop()
		return nil
	},
}

func init() {
	watchCmd.Flags().Duration("interval", 0, "poll interval (default TIX_POLL_INTERVAL; 0 polls only on account changes)")
}

// renderOutcome prints one scheduler outcome. A failed resync keeps the
// last table on screen and reports the error below it.
func renderOutcome(w io.Writer, o tixsync.Outcome) {
	if o.Err != nil {
		fmt.Fprintf(w, "%s %s: %v\n", ui.RenderMuted(o.At.Format("15:04:05")), ui.RenderError("resync failed"), o.Err)
		return
	}
	if jsonOutput {
		_ = printJSON(w, view.Rows(o.Snapshot, o.At))
		return
	}
	fmt.Fprintf(w, "%s %s %s\n",
		ui.RenderMuted(o.At.Format("15:04:05")),
		ui.RenderAccent(o.Snapshot.Account.Hex()),
		ui.RenderMuted(fmt.Sprintf("(generation %d)", o.Snapshot.Generation)),
	)
	printRows(w, view.Rows(o.Snapshot, o.At))
	fmt.Fprintln(w)
}

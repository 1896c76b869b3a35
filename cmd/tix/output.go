package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/tix/internal/actions"
	"github.com/alfredjeanlab/tix/internal/model"
	"github.com/alfredjeanlab/tix/internal/ui"
	"github.com/alfredjeanlab/tix/internal/view"
)

// nameWidth caps the NAME column so rows stay on one line.
const nameWidth = 32

// otherColumns approximates the cells used by every column except NAME.
const otherColumns = 72

// nameColumn narrows the NAME column on terminals too small for nameWidth.
func nameColumn(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok {
		return nameWidth
	}
	n := ui.Width(f, otherColumns+nameWidth) - otherColumns
	switch {
	case n < 8:
		return 8
	case n > nameWidth:
		return nameWidth
	}
	return n
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// printError renders err for the user, with a hint for the failure kinds
// the user can act on.
func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "%s %v\n", ui.RenderError("Error:"), err)

	var (
		connErr  *model.ConnectionError
		noDeploy *model.NoDeploymentError
		txErr    *model.TransactionError
	)
	switch {
	case errors.As(err, &connErr):
		fmt.Fprintln(w, ui.RenderMuted("  check TIX_RPC_URL and that the node or wallet is running"))
	case errors.As(err, &noDeploy):
		fmt.Fprintln(w, ui.RenderMuted("  set TIX_CONTRACT_ADDRESS or add the network with 'tix deployments set'"))
	case errors.As(err, &txErr) && errors.Is(err, model.ErrReverted):
		fmt.Fprintln(w, ui.RenderMuted("  the contract rejected the transaction; nothing was changed"))
	}
}

// printRows writes the event table. Only the last column is colored so
// escape codes do not skew the tabwriter alignment.
func printRows(w io.Writer, rows []view.Row) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No events.")
		return
	}

	width := nameColumn(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tDATE\tPRICE\tLEFT\tHELD\tSTATUS")
	for _, r := range rows {
		status := "active"
		if r.Finished {
			status = "finished"
		}
		if r.IsAdmin {
			status += " (admin)"
		}
		switch {
		case r.Finished:
			status = ui.RenderMuted(status)
		case r.Held.Sign() > 0:
			status = ui.RenderAccent(status)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s/%s\t%s\t%s\n",
			r.ID,
			ui.Truncate(r.Name, width),
			r.DateText,
			r.PriceText,
			r.Remaining, r.Total,
			r.Held,
			status,
		)
	}
	tw.Flush()
}

func printResult(w io.Writer, res *actions.Result) {
	fmt.Fprintf(w, "%s %s by %s\n", ui.RenderOK("✓"), res.Method, res.Account.Hex())
	if res.Receipt != nil {
		fmt.Fprintf(w, "  tx %s (block %d, gas %d)\n", res.Receipt.TxHash.Hex(), res.Receipt.BlockNumber, res.Receipt.GasUsed)
	}
	fmt.Fprintf(w, "  action %s\n", res.ActionID)
}

// reportAction prints the outcome of a submitted action followed by the
// refreshed table. A result with an error means the transaction landed but
// the refresh failed.
func reportAction(cmd *cobra.Command, a *app, res *actions.Result, err error) error {
	if res == nil {
		return err
	}
	out := cmd.OutOrStdout()
	if jsonOutput {
		if jerr := printJSON(out, res); jerr != nil {
			return jerr
		}
		return err
	}

	printResult(out, res)
	if err != nil {
		return err
	}
	fmt.Fprintln(out)
	printRows(out, view.Rows(a.reader.Cache().Snapshot(), view.System().Now()))
	return nil
}

package main

import (
	"fmt"
	"math/big"

	"github.com/spf13/cobra"
)

var buyCmd = &cobra.Command{
	Use:     "buy <event-id> [amount]",
	Short:   "Buy tickets for an event, paying amount × price",
	GroupID: "ledger",
	Args:    cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseEventID(args[0])
		if err != nil {
			return err
		}
		amount := big.NewInt(1)
		if len(args) == 2 {
			if amount, err = parseCount(args[1]); err != nil {
				return err
			}
		}

		ctx := cmd.Context()
		a, err := openReadyApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		// The price is taken from a fresh read of the events.
		if err := a.reader.ResyncEvents(ctx); err != nil {
			return err
		}
		events := a.reader.Cache().Events()
		if id >= uint64(len(events)) {
			return fmt.Errorf("event %d does not exist (%d events)", id, len(events))
		}

		res, err := a.submitter.BuyTicket(ctx, events[id], amount)
		return reportAction(cmd, a, res, err)
	},
}

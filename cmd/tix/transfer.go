package main

import (
	"github.com/spf13/cobra"
)

var transferCmd = &cobra.Command{
	Use:     "transfer <event-id> <amount> <to>",
	Short:   "Transfer tickets to another account",
	GroupID: "ledger",
	Args:    cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseEventID(args[0])
		if err != nil {
			return err
		}
		amount, err := parseCount(args[1])
		if err != nil {
			return err
		}
		to, err := parseAddress(args[2])
		if err != nil {
			return err
		}

		a, err := openReadyApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		res, err := a.submitter.TransferTicket(cmd.Context(), id, amount, to)
		return reportAction(cmd, a, res, err)
	},
}

package main

import (
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/tix/internal/actions"
)

var createCmd = &cobra.Command{
	Use:     "create <name>",
	Short:   "Organize a new event administered by the active account",
	GroupID: "ledger",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dateStr, _ := cmd.Flags().GetString("date")
		priceStr, _ := cmd.Flags().GetString("price")
		ticketsStr, _ := cmd.Flags().GetString("tickets")

		date, err := actions.ParseDate(dateStr)
		if err != nil {
			return err
		}
		price, err := parseWei(priceStr)
		if err != nil {
			return err
		}
		tickets, err := parseCount(ticketsStr)
		if err != nil {
			return err
		}

		a, err := openReadyApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		res, err := a.submitter.CreateEvent(cmd.Context(), actions.CreateEventParams{
			Name:        args[0],
			Date:        date,
			Price:       price,
			TicketCount: tickets,
		})
		return reportAction(cmd, a, res, err)
	},
}

func init() {
	createCmd.Flags().String("date", "", "end date (YYYY-MM-DD or RFC 3339)")
	createCmd.Flags().String("price", "0", "ticket price in wei, or with an ether suffix (e.g. 0.01ether)")
	createCmd.Flags().String("tickets", "", "number of tickets")
	_ = createCmd.MarkFlagRequired("date")
	_ = createCmd.MarkFlagRequired("tickets")
}

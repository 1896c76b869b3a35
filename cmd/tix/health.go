package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/tix/internal/client"
	"github.com/alfredjeanlab/tix/internal/ui"
)

var healthCmd = &cobra.Command{
	Use:     "health [addr]",
	Short:   "Check the health of a running tix serve",
	GroupID: "system",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := cfg.HealthAddr
		if len(args) == 1 {
			addr = args[0]
		}
		if strings.HasPrefix(addr, ":") {
			addr = "localhost" + addr
		}

		c, err := client.NewHealthClient(addr)
		if err != nil {
			return err
		}
		defer c.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()
		statuses, err := c.CheckAll(ctx)
		if err != nil {
			return fmt.Errorf("checking health: %w", err)
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			if err := printJSON(out, statuses); err != nil {
				return err
			}
		} else {
			for _, st := range statuses {
				s := ui.RenderOK(st.Status)
				if !st.Serving() {
					s = ui.RenderError(st.Status)
				}
				fmt.Fprintf(out, "%-9s %s\n", st.Service+":", s)
			}
		}

		for _, st := range statuses {
			if !st.Serving() {
				return fmt.Errorf("unhealthy: %s is %s", st.Service, st.Status)
			}
		}
		return nil
	},
}

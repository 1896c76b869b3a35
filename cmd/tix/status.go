package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/tix/internal/ui"
)

type statusView struct {
	RPCURL     string `json:"rpc_url"`
	NetworkID  uint64 `json:"network_id"`
	Contract   string `json:"contract,omitempty"`
	Account    string `json:"account,omitempty"`
	Ready      bool   `json:"ready"`
	Generation uint64 `json:"generation"`
	Problem    string `json:"problem,omitempty"`
}

var statusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Show the connected account, network and contract",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, initErr, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		st := a.session.State()
		sv := statusView{
			RPCURL:     cfg.RPCURL,
			NetworkID:  st.NetworkID,
			Ready:      st.Ready(),
			Generation: st.Generation,
		}
		if st.Ledger != nil {
			sv.Contract = st.Ledger.Address().Hex()
		}
		if st.HasAccount {
			sv.Account = st.Account.Hex()
		}
		if initErr != nil {
			sv.Problem = initErr.Error()
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(out, sv)
		}

		ready := ui.RenderOK("ready")
		if !sv.Ready {
			ready = ui.RenderError("not ready")
		}
		fmt.Fprintf(out, "Provider:  %s\n", sv.RPCURL)
		fmt.Fprintf(out, "Network:   %d\n", sv.NetworkID)
		fmt.Fprintf(out, "Contract:  %s\n", orNone(sv.Contract))
		fmt.Fprintf(out, "Account:   %s\n", orNone(sv.Account))
		fmt.Fprintf(out, "Session:   %s\n", ready)
		if sv.Problem != "" {
			fmt.Fprintf(out, "Problem:   %s\n", sv.Problem)
		}
		return nil
	},
}

func orNone(s string) string {
	if s == "" {
		return ui.RenderMuted("(none)")
	}
	return s
}

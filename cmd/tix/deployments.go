package main

import (
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strconv"
	"text/tabwriter"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/tix/internal/ledger"
)

var deploymentsCmd = &cobra.Command{
	Use:     "deployments",
	Short:   "Manage the network → contract address registry",
	GroupID: "system",
}

var deploymentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known deployments",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := loadDeployments()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			m := make(map[string]string, len(d))
			for id, addr := range d {
				m[strconv.FormatUint(id, 10)] = addr.Hex()
			}
			return printJSON(out, m)
		}

		if len(d) == 0 {
			fmt.Fprintln(out, "No deployments. Set TIX_ARTIFACT or TIX_DEPLOYMENTS.")
		} else {
			ids := make([]uint64, 0, len(d))
			for id := range d {
				ids = append(ids, id)
			}
			slices.Sort(ids)

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "NETWORK\tCONTRACT")
			for _, id := range ids {
				fmt.Fprintf(tw, "%d\t%s\n", id, d[id].Hex())
			}
			tw.Flush()
		}
		if cfg.ContractAddress != (common.Address{}) {
			fmt.Fprintf(out, "\nTIX_CONTRACT_ADDRESS overrides all networks with %s\n", cfg.ContractAddress.Hex())
		}
		return nil
	},
}

var deploymentsSetCmd = &cobra.Command{
	Use:   "set <network-id> <address>",
	Short: "Record a deployment in the TIX_DEPLOYMENTS file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid network id %q", args[0])
		}
		addr, err := parseAddress(args[1])
		if err != nil {
			return err
		}
		return updateDeploymentsFile(cmd, ledger.Deployments{id: addr})
	},
}

var deploymentsImportCmd = &cobra.Command{
	Use:   "import <artifact.json>",
	Short: "Copy the networks of a build artifact into the TIX_DEPLOYMENTS file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		art, err := ledger.LoadArtifact(args[0])
		if err != nil {
			return err
		}
		d, err := art.Deployments()
		if err != nil {
			return err
		}
		return updateDeploymentsFile(cmd, d)
	},
}

func init() {
	deploymentsCmd.AddCommand(deploymentsListCmd)
	deploymentsCmd.AddCommand(deploymentsSetCmd)
	deploymentsCmd.AddCommand(deploymentsImportCmd)
}

// updateDeploymentsFile merges add into the TOML registry, creating the
// file when it does not exist yet.
func updateDeploymentsFile(cmd *cobra.Command, add ledger.Deployments) error {
	path := cfg.DeploymentsPath
	if path == "" {
		return errors.New("TIX_DEPLOYMENTS is not set")
	}

	existing, err := ledger.LoadDeploymentsFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		existing = ledger.Deployments{}
	} else if err != nil {
		return err
	}

	merged := existing.Merge(add)
	if err := ledger.SaveDeploymentsFile(path, merged); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Recorded %d deployment(s) in %s\n", len(add), path)
	return nil
}

package ledger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"

	"github.com/alfredjeanlab/tix/internal/model"
)

// Deployments maps a network ID to the contract address deployed on it.
type Deployments map[uint64]common.Address

// Lookup returns the contract address for networkID.
func (d Deployments) Lookup(networkID uint64) (common.Address, error) {
	addr, ok := d[networkID]
	if !ok || addr == (common.Address{}) {
		return common.Address{}, &model.NoDeploymentError{NetworkID: networkID}
	}
	return addr, nil
}

// Merge returns a new registry with the entries of d overlaid by other.
func (d Deployments) Merge(other Deployments) Deployments {
	out := make(Deployments, len(d)+len(other))
	for k, v := range d {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// Artifact is the subset of a Truffle build artifact the client reads.
type Artifact struct {
	ContractName string                     `json:"contractName"`
	ABI          json.RawMessage            `json:"abi"`
	Networks     map[string]ArtifactNetwork `json:"networks"`
}

// ArtifactNetwork is one entry of an artifact's networks map.
type ArtifactNetwork struct {
	Address         string `json:"address"`
	TransactionHash string `json:"transactionHash,omitempty"`
}

// ParseArtifact decodes a build artifact.
func ParseArtifact(r io.Reader) (*Artifact, error) {
	var a Artifact
	if err := json.NewDecoder(r).Decode(&a); err != nil {
		return nil, fmt.Errorf("decoding artifact: %w", err)
	}
	return &a, nil
}

// LoadArtifact reads a build artifact from path.
func LoadArtifact(path string) (*Artifact, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseArtifact(f)
}

// Deployments extracts the network registry from the artifact.
func (a *Artifact) Deployments() (Deployments, error) {
	return parseNetworks(a.Networks, func(n ArtifactNetwork) string { return n.Address })
}

// deploymentsFile is the TOML layout of a deployment registry:
//
//	[networks]
//	"3" = "0x…"
//	"5777" = "0x…"
type deploymentsFile struct {
	Networks map[string]string `toml:"networks"`
}

// LoadDeploymentsFile reads a TOML deployment registry from path.
func LoadDeploymentsFile(path string) (Deployments, error) {
	var f deploymentsFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("reading deployments %s: %w", path, err)
	}
	return parseNetworks(f.Networks, func(s string) string { return s })
}

// SaveDeploymentsFile writes d to path in the layout LoadDeploymentsFile reads.
func SaveDeploymentsFile(path string, d Deployments) error {
	f := deploymentsFile{Networks: make(map[string]string, len(d))}
	for id, addr := range d {
		f.Networks[strconv.FormatUint(id, 10)] = addr.Hex()
	}
	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer out.Close()
	return toml.NewEncoder(out).Encode(f)
}

func parseNetworks[V any](networks map[string]V, address func(V) string) (Deployments, error) {
	d := make(Deployments, len(networks))
	for key, v := range networks {
		id, err := strconv.ParseUint(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid network id %q: %w", key, err)
		}
		raw := address(v)
		if !common.IsHexAddress(raw) {
			return nil, fmt.Errorf("network %s: invalid address %q", key, raw)
		}
		d[id] = common.HexToAddress(raw)
	}
	return d, nil
}

package sync

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alfredjeanlab/tix/internal/model"
)

// header is the first JSONL record written by ExportJSONL.
type header struct {
	Version      string         `json:"version"`
	Type         string         `json:"type"`
	Timestamp    time.Time      `json:"timestamp"`
	NetworkID    uint64         `json:"network_id"`
	Contract     common.Address `json:"contract"`
	Account      common.Address `json:"account"`
	EventCount   int            `json:"event_count"`
	HoldingCount int            `json:"holding_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ExportJSONL writes snap to w as JSONL: a header line, then one line per
// event in ID order, then one line per holding. The header timestamp is the
// snapshot's sync time, so exporting the same snapshot twice is
// byte-identical.
func ExportJSONL(w io.Writer, snap model.Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:      "1",
		Type:         "header",
		Timestamp:    snap.HoldingsSyncedAt.UTC(),
		NetworkID:    snap.NetworkID,
		Contract:     snap.Contract,
		Account:      snap.Account,
		EventCount:   len(snap.Events),
		HoldingCount: len(snap.Holdings),
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	for _, ev := range snap.Events {
		if err := enc.Encode(record{Type: "event", Data: ev}); err != nil {
			return fmt.Errorf("encode event %d: %w", ev.ID, err)
		}
	}
	for _, h := range snap.Holdings {
		if err := enc.Encode(record{Type: "holding", Data: h}); err != nil {
			return fmt.Errorf("encode holding %d: %w", h.EventID, err)
		}
	}
	return nil
}

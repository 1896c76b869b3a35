package postgres

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alfredjeanlab/tix/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanEvent scans a single row into a model.Event.
// The row must contain columns in the order defined by eventColumns.
func scanEvent(row scannable) (model.Event, error) {
	var (
		ev                            model.Event
		admin                         string
		date, price, remaining, total string
	)
	if err := row.Scan(&ev.ID, &admin, &ev.Name, &date, &price, &remaining, &total); err != nil {
		return model.Event{}, err
	}
	ev.Admin = common.HexToAddress(admin)

	var err error
	if ev.Date, err = parseNumeric(date); err != nil {
		return model.Event{}, fmt.Errorf("event %d date: %w", ev.ID, err)
	}
	if ev.Price, err = parseNumeric(price); err != nil {
		return model.Event{}, fmt.Errorf("event %d price: %w", ev.ID, err)
	}
	if ev.TicketsRemaining, err = parseNumeric(remaining); err != nil {
		return model.Event{}, fmt.Errorf("event %d tickets_remaining: %w", ev.ID, err)
	}
	if ev.TicketsTotal, err = parseNumeric(total); err != nil {
		return model.Event{}, fmt.Errorf("event %d tickets_total: %w", ev.ID, err)
	}
	return ev, nil
}

// scanHolding scans an (event_id, owner, quantity) row into a model.Holding.
func scanHolding(row scannable) (model.Holding, error) {
	var (
		h        model.Holding
		owner    string
		quantity string
	)
	if err := row.Scan(&h.EventID, &owner, &quantity); err != nil {
		return model.Holding{}, err
	}
	h.Owner = common.HexToAddress(owner)

	q, err := parseNumeric(quantity)
	if err != nil {
		return model.Holding{}, fmt.Errorf("holding %d quantity: %w", h.EventID, err)
	}
	h.Quantity = q
	return h, nil
}

// numeric renders v for a NUMERIC(78,0) column. Nil is stored as zero.
func numeric(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func parseNumeric(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid numeric %q", s)
	}
	return v, nil
}

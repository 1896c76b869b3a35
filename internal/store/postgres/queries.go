package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alfredjeanlab/tix/internal/model"
	"github.com/alfredjeanlab/tix/internal/store"
)

// eventColumns is the column list used for SELECT statements on ledger_events.
const eventColumns = `id, admin, name, date, price, tickets_remaining, tickets_total`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// eventsScope is the empty owner used for the events row in ledger_sync_state.
const eventsScope = ""

func queryReplaceEvents(ctx context.Context, db executor, networkID uint64, contract common.Address, events []model.Event, syncedAt time.Time) error {
	c := contract.Hex()
	if _, err := db.ExecContext(ctx,
		`DELETE FROM ledger_events WHERE network_id = $1 AND contract = $2`,
		networkID, c,
	); err != nil {
		return fmt.Errorf("clear events: %w", err)
	}

	for _, ev := range events {
		if _, err := db.ExecContext(ctx, `
			INSERT INTO ledger_events (
				network_id, contract, id, admin, name, date,
				price, tickets_remaining, tickets_total
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			networkID, c, ev.ID, ev.Admin.Hex(), ev.Name, numeric(ev.Date),
			numeric(ev.Price), numeric(ev.TicketsRemaining), numeric(ev.TicketsTotal),
		); err != nil {
			return fmt.Errorf("insert event %d: %w", ev.ID, err)
		}
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO ledger_sync_state (network_id, contract, owner, events_synced_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (network_id, contract, owner)
		DO UPDATE SET events_synced_at = EXCLUDED.events_synced_at`,
		networkID, c, eventsScope, syncedAt,
	)
	return err
}

func queryListEvents(ctx context.Context, db executor, networkID uint64, contract common.Address) ([]model.Event, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM ledger_events
		WHERE network_id = $1 AND contract = $2
		ORDER BY id`,
		networkID, contract.Hex(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []model.Event{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func queryReplaceHoldings(ctx context.Context, db executor, networkID uint64, contract, owner common.Address, holdings []model.Holding, syncedAt time.Time) error {
	c, o := contract.Hex(), owner.Hex()
	if _, err := db.ExecContext(ctx,
		`DELETE FROM ledger_holdings WHERE network_id = $1 AND contract = $2 AND owner = $3`,
		networkID, c, o,
	); err != nil {
		return fmt.Errorf("clear holdings: %w", err)
	}

	for _, h := range holdings {
		if _, err := db.ExecContext(ctx, `
			INSERT INTO ledger_holdings (network_id, contract, owner, event_id, quantity)
			VALUES ($1, $2, $3, $4, $5)`,
			networkID, c, o, h.EventID, numeric(h.Quantity),
		); err != nil {
			return fmt.Errorf("insert holding %d: %w", h.EventID, err)
		}
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO ledger_sync_state (network_id, contract, owner, holdings_synced_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (network_id, contract, owner)
		DO UPDATE SET holdings_synced_at = EXCLUDED.holdings_synced_at`,
		networkID, c, o, syncedAt,
	)
	return err
}

func queryListHoldings(ctx context.Context, db executor, networkID uint64, contract, owner common.Address) ([]model.Holding, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT event_id, owner, quantity FROM ledger_holdings
		WHERE network_id = $1 AND contract = $2 AND owner = $3
		ORDER BY event_id`,
		networkID, contract.Hex(), owner.Hex(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	holdings := []model.Holding{}
	for rows.Next() {
		h, err := scanHolding(rows)
		if err != nil {
			return nil, err
		}
		holdings = append(holdings, h)
	}
	return holdings, rows.Err()
}

// querySyncTimes returns store.ErrNotFound when events were never mirrored
// for the scope. A missing holdings row yields a zero holdings time.
func querySyncTimes(ctx context.Context, db executor, networkID uint64, contract, owner common.Address) (time.Time, time.Time, error) {
	var eventsAt, holdingsAt sql.NullTime
	err := db.QueryRowContext(ctx, `
		SELECT events_synced_at FROM ledger_sync_state
		WHERE network_id = $1 AND contract = $2 AND owner = $3`,
		networkID, contract.Hex(), eventsScope,
	).Scan(&eventsAt)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !eventsAt.Valid) {
		return time.Time{}, time.Time{}, store.ErrNotFound
	}
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	err = db.QueryRowContext(ctx, `
		SELECT holdings_synced_at FROM ledger_sync_state
		WHERE network_id = $1 AND contract = $2 AND owner = $3`,
		networkID, contract.Hex(), owner.Hex(),
	).Scan(&holdingsAt)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, time.Time{}, err
	}
	return eventsAt.Time, holdingsAt.Time, nil
}

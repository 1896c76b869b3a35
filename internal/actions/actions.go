// Package actions submits ledger transactions on behalf of the active
// account and refreshes the cache once each one is final.
package actions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alfredjeanlab/tix/internal/events"
	"github.com/alfredjeanlab/tix/internal/idgen"
	"github.com/alfredjeanlab/tix/internal/ledger"
	"github.com/alfredjeanlab/tix/internal/model"
	"github.com/alfredjeanlab/tix/internal/session"
)

// StateSource supplies the session an action runs under.
type StateSource interface {
	State() session.State
}

// Resyncer refreshes events and, by cascade, holdings.
type Resyncer interface {
	ResyncEvents(ctx context.Context) error
}

// Result describes a transaction that reached finality.
type Result struct {
	ActionID string
	Method   string
	Account  common.Address
	Receipt  *ledger.Receipt
}

// CreateEventParams are the user-supplied fields of a new event.
type CreateEventParams struct {
	Name        string
	Date        time.Time
	Price       *big.Int // wei per ticket
	TicketCount *big.Int
}

// Submitter runs one action at a time: submit, await the receipt, resync.
type Submitter struct {
	session   StateSource
	reader    Resyncer
	publisher events.Publisher
	newID     idgen.Generator
	logger    *slog.Logger

	mu sync.Mutex
}

// Option configures a Submitter.
type Option func(*Submitter)

// WithPublisher publishes action outcomes.
func WithPublisher(p events.Publisher) Option {
	return func(s *Submitter) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithIDGenerator overrides how action IDs are generated.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(s *Submitter) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// WithLogger sets the submitter logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Submitter) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewSubmitter(sess StateSource, reader Resyncer, opts ...Option) *Submitter {
	s := &Submitter{
		session:   sess,
		reader:    reader,
		publisher: &events.NoopPublisher{},
		newID:     idgen.NewActionID,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateEvent creates an event administered by the active account.
func (s *Submitter) CreateEvent(ctx context.Context, p CreateEventParams) (*Result, error) {
	return s.run(ctx, ledger.MethodCreateEvent, func(l ledger.Ledger, from common.Address) (*ledger.Receipt, error) {
		return l.CreateEvent(ctx, from, ledger.CreateEventRequest{
			Name:        p.Name,
			Date:        big.NewInt(p.Date.Unix()),
			Price:       p.Price,
			TicketCount: p.TicketCount,
		})
	})
}

// BuyTicket buys amount tickets for ev, attaching amount × ev.Price wei.
// Whether the event is still open is left to the ledger.
func (s *Submitter) BuyTicket(ctx context.Context, ev model.Event, amount *big.Int) (*Result, error) {
	return s.run(ctx, ledger.MethodBuyTicket, func(l ledger.Ledger, from common.Address) (*ledger.Receipt, error) {
		if amount == nil || ev.Price == nil {
			return nil, &model.TransactionError{Method: ledger.MethodBuyTicket, Err: errors.New("amount and price are required")}
		}
		return l.BuyTicket(ctx, from, ledger.BuyTicketRequest{
			EventID: ev.ID,
			Amount:  amount,
			Value:   new(big.Int).Mul(amount, ev.Price),
		})
	})
}

// TransferTicket moves amount of the active account's tickets for eventID
// to another account. Ownership is checked by the ledger.
func (s *Submitter) TransferTicket(ctx context.Context, eventID uint64, amount *big.Int, to common.Address) (*Result, error) {
	return s.run(ctx, ledger.MethodTransferTicket, func(l ledger.Ledger, from common.Address) (*ledger.Receipt, error) {
		return l.TransferTicket(ctx, from, ledger.TransferTicketRequest{
			EventID: eventID,
			Amount:  amount,
			To:      to,
		})
	})
}

// run submits one action and resyncs after it. A transaction failure
// returns a *model.TransactionError and skips the resync. A resync failure
// after a final transaction returns both the result and the error.
func (s *Submitter) run(ctx context.Context, method string, submit func(ledger.Ledger, common.Address) (*ledger.Receipt, error)) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.session.State()
	if !st.Ready() {
		return nil, model.ErrNotReady
	}
	actionID, err := s.newID()
	if err != nil {
		return nil, err
	}
	logger := s.logger.With("action", actionID, "method", method, "account", st.Account.Hex())
	logger.Info("submitting action")

	receipt, err := submit(st.Ledger, st.Account)
	if err != nil {
		var txErr *model.TransactionError
		if !errors.As(err, &txErr) {
			txErr = &model.TransactionError{Method: method, Err: err}
			err = txErr
		}
		logger.Warn("action failed", "err", err)
		failed := events.ActionFailed{ActionID: actionID, Method: method, Account: st.Account, Error: err.Error()}
		if txErr.TxHash != (common.Hash{}) {
			failed.TxHash = &txErr.TxHash
		}
		s.publish(ctx, logger, events.TopicActionFailed, failed)
		return nil, err
	}

	res := &Result{ActionID: actionID, Method: method, Account: st.Account, Receipt: receipt}
	logger.Info("action final", "tx", receipt.TxHash.Hex(), "block", receipt.BlockNumber)
	s.publish(ctx, logger, events.TopicActionSubmitted, events.ActionSubmitted{
		ActionID: actionID,
		Method:   method,
		Account:  st.Account,
		TxHash:   receipt.TxHash,
		Block:    receipt.BlockNumber,
	})

	if err := s.reader.ResyncEvents(ctx); err != nil {
		logger.Error("resync after action failed", "err", err)
		return res, fmt.Errorf("refreshing after %s: %w", method, err)
	}
	return res, nil
}

func (s *Submitter) publish(ctx context.Context, logger *slog.Logger, topic string, event any) {
	if err := s.publisher.Publish(ctx, topic, event); err != nil {
		logger.Warn("publishing action event failed", "topic", topic, "err", err)
	}
}

// dateOnly is the layout of an HTML date input.
const dateOnly = "2006-01-02"

// ParseDate accepts a calendar date (midnight UTC) or an RFC 3339 timestamp.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(dateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD or RFC 3339", s)
	}
	return t, nil
}

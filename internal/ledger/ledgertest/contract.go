// Package ledgertest provides an in-memory event ticketing contract that
// enforces the same rules as the deployed one, and a JSON-RPC server that
// exposes it the way a node with wallet-managed accounts would.
package ledgertest

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/alfredjeanlab/tix/internal/ledger"
	"github.com/alfredjeanlab/tix/internal/model"
)

// DefaultAddress is the contract address used when none is configured.
var DefaultAddress = common.HexToAddress("0x00000000000000000000000000000000000e4e47")

// ReadHook runs before a read is answered. id is the event ID for events
// and tickets reads and unused for nextId. A non-nil error fails the read.
type ReadHook func(ctx context.Context, method string, id uint64) error

// Submission records one successful write.
type Submission struct {
	Method string
	From   common.Address
	Value  *big.Int
	TxHash common.Hash
	Block  uint64
}

// Contract is an in-memory ledger.Ledger. It is safe for concurrent use.
type Contract struct {
	address common.Address
	now     func() time.Time

	mu          sync.Mutex
	events      []model.Event
	tickets     map[common.Address]map[uint64]*big.Int
	submissions []Submission
	block       uint64
	readHook    ReadHook
	writeErr    error

	nextIDReads  atomic.Int64
	eventReads   atomic.Int64
	holdingReads atomic.Int64
}

// Compile-time check that Contract implements ledger.Ledger.
var _ ledger.Ledger = (*Contract)(nil)

// Option configures a Contract.
type Option func(*Contract)

// WithAddress sets the contract address.
func WithAddress(addr common.Address) Option {
	return func(c *Contract) { c.address = addr }
}

// WithClock sets the contract's notion of block time.
func WithClock(now func() time.Time) Option {
	return func(c *Contract) { c.now = now }
}

// New returns an empty contract.
func New(opts ...Option) *Contract {
	c := &Contract{
		address: DefaultAddress,
		now:     time.Now,
		tickets: make(map[common.Address]map[uint64]*big.Int),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Address returns the contract address.
func (c *Contract) Address() common.Address { return c.address }

// SetReadHook installs h for all subsequent reads. Pass nil to remove it.
func (c *Contract) SetReadHook(h ReadHook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readHook = h
}

// FailWrites makes every subsequent write fail with err before reaching the
// contract rules. Pass nil to restore normal behavior.
func (c *Contract) FailWrites(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeErr = err
}

// Submissions returns the successful writes in order.
func (c *Contract) Submissions() []Submission {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Submission(nil), c.submissions...)
}

// ReadCounts returns how many nextId, events and tickets reads were served.
func (c *Contract) ReadCounts() (nextID, events, holdings int64) {
	return c.nextIDReads.Load(), c.eventReads.Load(), c.holdingReads.Load()
}

// Seed appends an event directly, bypassing the date check. Useful for
// finished events.
func (c *Contract) Seed(admin common.Address, name string, date int64, price, ticketCount int64) uint64 {
	return c.SeedAt(admin, name, big.NewInt(date), price, ticketCount)
}

// SeedAt is Seed with a full-width date, for dates past int64.
func (c *Contract) SeedAt(admin common.Address, name string, date *big.Int, price, ticketCount int64) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.appendEvent(admin, name, date, big.NewInt(price), big.NewInt(ticketCount))
}

// Grant sets owner's ticket balance for an event directly.
func (c *Contract) Grant(owner common.Address, eventID uint64, qty int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setBalance(owner, eventID, big.NewInt(qty))
}

// --- Reads ---

func (c *Contract) NextID(ctx context.Context) (uint64, error) {
	c.nextIDReads.Add(1)
	if err := c.runReadHook(ctx, ledger.MethodNextID, 0); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return uint64(len(c.events)), nil
}

// GetEvent answers like the contract's public mapping getter: IDs that were
// never assigned read as a zero-valued record.
func (c *Contract) GetEvent(ctx context.Context, id uint64) (*model.Event, error) {
	c.eventReads.Add(1)
	if err := c.runReadHook(ctx, ledger.MethodEvents, id); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if id >= uint64(len(c.events)) {
		return &model.Event{Date: new(big.Int), Price: new(big.Int), TicketsRemaining: new(big.Int), TicketsTotal: new(big.Int)}, nil
	}
	ev := c.events[id].Clone()
	return &ev, nil
}

func (c *Contract) GetHolding(ctx context.Context, owner common.Address, eventID uint64) (*model.Holding, error) {
	c.holdingReads.Add(1)
	if err := c.runReadHook(ctx, ledger.MethodTickets, eventID); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return &model.Holding{EventID: eventID, Owner: owner, Quantity: new(big.Int).Set(c.balance(owner, eventID))}, nil
}

func (c *Contract) runReadHook(ctx context.Context, method string, id uint64) error {
	c.mu.Lock()
	hook := c.readHook
	c.mu.Unlock()
	if hook == nil {
		return nil
	}
	return hook(ctx, method, id)
}

// --- Writes ---

func (c *Contract) CreateEvent(_ context.Context, from common.Address, req ledger.CreateEventRequest) (*ledger.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.precheck(ledger.MethodCreateEvent, req.Date, req.Price, req.TicketCount); err != nil {
		return nil, err
	}
	if req.Date.Cmp(big.NewInt(c.now().Unix())) <= 0 {
		return nil, revert(ledger.MethodCreateEvent, "can only organize event at a future date")
	}
	if req.TicketCount.Sign() <= 0 {
		return nil, revert(ledger.MethodCreateEvent, "can only organize event with at least 1 ticket")
	}
	c.appendEvent(from, req.Name, req.Date, req.Price, req.TicketCount)
	return c.mine(ledger.MethodCreateEvent, from, nil), nil
}

func (c *Contract) BuyTicket(_ context.Context, from common.Address, req ledger.BuyTicketRequest) (*ledger.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.precheck(ledger.MethodBuyTicket, req.Amount); err != nil {
		return nil, err
	}
	ev, err := c.activeEvent(ledger.MethodBuyTicket, req.EventID)
	if err != nil {
		return nil, err
	}
	value := req.Value
	if value == nil {
		value = new(big.Int)
	}
	cost := new(big.Int).Mul(req.Amount, ev.Price)
	if value.Cmp(cost) != 0 {
		return nil, revert(ledger.MethodBuyTicket, "ether sent must be equal to total ticket cost")
	}
	if ev.TicketsRemaining.Cmp(req.Amount) < 0 {
		return nil, revert(ledger.MethodBuyTicket, "not enough ticket left")
	}
	ev.TicketsRemaining = new(big.Int).Sub(ev.TicketsRemaining, req.Amount)
	c.setBalance(from, req.EventID, new(big.Int).Add(c.balance(from, req.EventID), req.Amount))
	return c.mine(ledger.MethodBuyTicket, from, value), nil
}

func (c *Contract) TransferTicket(_ context.Context, from common.Address, req ledger.TransferTicketRequest) (*ledger.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.precheck(ledger.MethodTransferTicket, req.Amount); err != nil {
		return nil, err
	}
	if _, err := c.activeEvent(ledger.MethodTransferTicket, req.EventID); err != nil {
		return nil, err
	}
	have := c.balance(from, req.EventID)
	if have.Cmp(req.Amount) < 0 {
		return nil, revert(ledger.MethodTransferTicket, "not enough ticket")
	}
	c.setBalance(from, req.EventID, new(big.Int).Sub(have, req.Amount))
	c.setBalance(req.To, req.EventID, new(big.Int).Add(c.balance(req.To, req.EventID), req.Amount))
	return c.mine(ledger.MethodTransferTicket, from, nil), nil
}

// precheck applies the injected write failure and rejects values that
// cannot be encoded as uint256. Callers hold c.mu.
func (c *Contract) precheck(method string, values ...*big.Int) error {
	if c.writeErr != nil {
		return &model.TransactionError{Method: method, Err: c.writeErr}
	}
	for i, v := range values {
		if err := ledger.CheckUint256(fmt.Sprintf("argument %d", i), v); err != nil {
			return &model.TransactionError{Method: method, Err: err}
		}
	}
	return nil
}

func (c *Contract) activeEvent(method string, id uint64) (*model.Event, error) {
	if id >= uint64(len(c.events)) {
		return nil, revert(method, "this event does not exist")
	}
	ev := &c.events[id]
	if big.NewInt(c.now().Unix()).Cmp(ev.Date) >= 0 {
		return nil, revert(method, "event must be active")
	}
	return ev, nil
}

func (c *Contract) appendEvent(admin common.Address, name string, date, price, count *big.Int) uint64 {
	id := uint64(len(c.events))
	c.events = append(c.events, model.Event{
		ID:               id,
		Admin:            admin,
		Name:             name,
		Date:             new(big.Int).Set(date),
		Price:            new(big.Int).Set(price),
		TicketsRemaining: new(big.Int).Set(count),
		TicketsTotal:     new(big.Int).Set(count),
	})
	return id
}

func (c *Contract) balance(owner common.Address, eventID uint64) *big.Int {
	if v, ok := c.tickets[owner][eventID]; ok {
		return v
	}
	return new(big.Int)
}

func (c *Contract) setBalance(owner common.Address, eventID uint64, v *big.Int) {
	if c.tickets[owner] == nil {
		c.tickets[owner] = make(map[uint64]*big.Int)
	}
	c.tickets[owner][eventID] = v
}

func (c *Contract) mine(method string, from common.Address, value *big.Int) *ledger.Receipt {
	c.block++
	var seq [8]byte
	binary.BigEndian.PutUint64(seq[:], c.block)
	hash := crypto.Keccak256Hash(c.address.Bytes(), seq[:])
	sub := Submission{Method: method, From: from, TxHash: hash, Block: c.block}
	if value != nil {
		sub.Value = new(big.Int).Set(value)
	}
	c.submissions = append(c.submissions, sub)
	return &ledger.Receipt{TxHash: hash, BlockNumber: c.block, GasUsed: 21000}
}

func revert(method, reason string) error {
	return &model.TransactionError{Method: method, Err: fmt.Errorf("%w: %s", model.ErrReverted, reason)}
}

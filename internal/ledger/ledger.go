// Package ledger is the client boundary to the event ticketing contract:
// a transport-agnostic Reader/Writer interface and a go-ethereum
// implementation that talks JSON-RPC to a node or wallet provider.
package ledger

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alfredjeanlab/tix/internal/model"
)

// Contract method names.
const (
	MethodNextID         = "nextId"
	MethodEvents         = "events"
	MethodTickets        = "tickets"
	MethodCreateEvent    = "createEvent"
	MethodBuyTicket      = "buyTicket"
	MethodTransferTicket = "transferTicket"
)

// MaxEvents bounds the event count a resync will fetch. Every resync holds
// the full collection in memory, so a larger nextId is refused.
const MaxEvents = 1 << 20

// ErrTooManyEvents is returned when nextId exceeds MaxEvents.
var ErrTooManyEvents = errors.New("event count exceeds limit")

// Reader is the read surface of the contract. Reads are independent and
// safe to issue concurrently.
type Reader interface {
	// NextID returns the exclusive upper bound of assigned event IDs.
	NextID(ctx context.Context) (uint64, error)
	GetEvent(ctx context.Context, id uint64) (*model.Event, error)
	GetHolding(ctx context.Context, owner common.Address, eventID uint64) (*model.Holding, error)
}

// Writer is the write surface of the contract. Each call returns once the
// transaction is final (its receipt is available). Every failure is a
// *model.TransactionError.
type Writer interface {
	CreateEvent(ctx context.Context, from common.Address, req CreateEventRequest) (*Receipt, error)
	BuyTicket(ctx context.Context, from common.Address, req BuyTicketRequest) (*Receipt, error)
	TransferTicket(ctx context.Context, from common.Address, req TransferTicketRequest) (*Receipt, error)
}

// Ledger is a handle bound to one deployed contract.
type Ledger interface {
	Reader
	Writer

	// Address is the contract address the handle is bound to.
	Address() common.Address
}

// CreateEventRequest holds the arguments of createEvent. Date is unix seconds.
type CreateEventRequest struct {
	Name        string
	Date        *big.Int
	Price       *big.Int
	TicketCount *big.Int
}

// BuyTicketRequest holds the arguments of buyTicket. Value is the wei
// attached to the transaction.
type BuyTicketRequest struct {
	EventID uint64
	Amount  *big.Int
	Value   *big.Int
}

// TransferTicketRequest holds the arguments of transferTicket.
type TransferTicketRequest struct {
	EventID uint64
	Amount  *big.Int
	To      common.Address
}

// Receipt summarizes a mined transaction.
type Receipt struct {
	TxHash      common.Hash `json:"tx_hash"`
	BlockNumber uint64      `json:"block_number"`
	GasUsed     uint64      `json:"gas_used"`
}

// Binder binds a ledger handle for a network. It returns a
// *model.NoDeploymentError when the network has no known deployment.
type Binder interface {
	Bind(networkID uint64) (Ledger, error)
}

// BinderFunc adapts a function to the Binder interface.
type BinderFunc func(networkID uint64) (Ledger, error)

// Bind calls f(networkID).
func (f BinderFunc) Bind(networkID uint64) (Ledger, error) { return f(networkID) }

package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/alfredjeanlab/tix/internal/model"
)

// ErrNoAddress is returned by every call on a handle bound to the zero
// address, i.e. a network without a deployment.
var ErrNoAddress = errors.New("no contract address bound")

// EthLedger implements Ledger over Ethereum JSON-RPC. Reads are eth_call
// through a bound contract; writes are eth_sendTransaction so the provider
// signs for the sending account, followed by polling for the receipt.
type EthLedger struct {
	address     common.Address
	rpc         *rpc.Client
	eth         *ethclient.Client
	contract    *bind.BoundContract
	receiptPoll time.Duration
	logger      *slog.Logger
}

// Compile-time check that EthLedger implements Ledger.
var _ Ledger = (*EthLedger)(nil)

// Option configures an EthLedger.
type Option func(*EthLedger)

// WithReceiptPoll sets how often a pending transaction's receipt is polled.
func WithReceiptPoll(d time.Duration) Option {
	return func(l *EthLedger) {
		if d > 0 {
			l.receiptPoll = d
		}
	}
}

// WithLogger sets the logger used for transaction progress.
func WithLogger(logger *slog.Logger) Option {
	return func(l *EthLedger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewEthLedger binds the contract at address using the given RPC client.
// The client is shared and not closed by the ledger.
func NewEthLedger(rc *rpc.Client, address common.Address, opts ...Option) *EthLedger {
	ec := ethclient.NewClient(rc)
	l := &EthLedger{
		address:     address,
		rpc:         rc,
		eth:         ec,
		contract:    bind.NewBoundContract(address, ContractABI, ec, ec, ec),
		receiptPoll: time.Second,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// NewBinder returns a Binder that resolves the contract address for a
// network from deployments and binds an EthLedger to it.
func NewBinder(rc *rpc.Client, deployments Deployments, opts ...Option) Binder {
	return BinderFunc(func(networkID uint64) (Ledger, error) {
		addr, err := deployments.Lookup(networkID)
		if err != nil {
			return nil, err
		}
		return NewEthLedger(rc, addr, opts...), nil
	})
}

// Address returns the bound contract address.
func (l *EthLedger) Address() common.Address { return l.address }

// --- Reads ---

func (l *EthLedger) NextID(ctx context.Context) (uint64, error) {
	out, err := l.call(ctx, MethodNextID)
	if err != nil {
		return 0, err
	}
	return decodeNextID(out)
}

func (l *EthLedger) GetEvent(ctx context.Context, id uint64) (*model.Event, error) {
	out, err := l.call(ctx, MethodEvents, new(big.Int).SetUint64(id))
	if err != nil {
		return nil, err
	}
	return decodeEvent(out)
}

func (l *EthLedger) GetHolding(ctx context.Context, owner common.Address, eventID uint64) (*model.Holding, error) {
	out, err := l.call(ctx, MethodTickets, owner, new(big.Int).SetUint64(eventID))
	if err != nil {
		return nil, err
	}
	qty, err := bigAt(out, 0, "tickets")
	if err != nil {
		return nil, err
	}
	return &model.Holding{EventID: eventID, Owner: owner, Quantity: qty}, nil
}

func (l *EthLedger) call(ctx context.Context, method string, args ...any) ([]any, error) {
	if l.address == (common.Address{}) {
		return nil, ErrNoAddress
	}
	var out []any
	if err := l.contract.Call(&bind.CallOpts{Context: ctx}, &out, method, args...); err != nil {
		return nil, fmt.Errorf("calling %s: %w", method, err)
	}
	return out, nil
}

// --- Writes ---

func (l *EthLedger) CreateEvent(ctx context.Context, from common.Address, req CreateEventRequest) (*Receipt, error) {
	return l.transact(ctx, from, nil, MethodCreateEvent,
		req.Name, req.Date, req.Price, req.TicketCount)
}

func (l *EthLedger) BuyTicket(ctx context.Context, from common.Address, req BuyTicketRequest) (*Receipt, error) {
	return l.transact(ctx, from, req.Value, MethodBuyTicket,
		new(big.Int).SetUint64(req.EventID), req.Amount)
}

func (l *EthLedger) TransferTicket(ctx context.Context, from common.Address, req TransferTicketRequest) (*Receipt, error) {
	return l.transact(ctx, from, nil, MethodTransferTicket,
		new(big.Int).SetUint64(req.EventID), req.Amount, req.To)
}

// sendTxArgs is the eth_sendTransaction parameter object. Gas is left to
// the provider to estimate.
type sendTxArgs struct {
	From  common.Address  `json:"from"`
	To    *common.Address `json:"to"`
	Data  hexutil.Bytes   `json:"data"`
	Value *hexutil.Big    `json:"value,omitempty"`
}

func (l *EthLedger) transact(ctx context.Context, from common.Address, value *big.Int, method string, args ...any) (*Receipt, error) {
	if l.address == (common.Address{}) {
		return nil, &model.TransactionError{Method: method, Err: ErrNoAddress}
	}
	if err := checkArgs(ContractABI.Methods[method], value, args); err != nil {
		return nil, &model.TransactionError{Method: method, Err: err}
	}
	data, err := ContractABI.Pack(method, args...)
	if err != nil {
		return nil, &model.TransactionError{Method: method, Err: fmt.Errorf("packing arguments: %w", err)}
	}

	to := l.address
	txArgs := sendTxArgs{From: from, To: &to, Data: data}
	if value != nil && value.Sign() > 0 {
		txArgs.Value = (*hexutil.Big)(value)
	}

	var hash common.Hash
	if err := l.rpc.CallContext(ctx, &hash, "eth_sendTransaction", txArgs); err != nil {
		if reason, ok := rejectedReason(err); ok {
			err = fmt.Errorf("%w: %s", model.ErrReverted, reason)
		}
		return nil, &model.TransactionError{Method: method, Err: err}
	}
	l.logger.Info("transaction submitted", "method", method, "tx", hash.Hex(), "from", from.Hex())

	receipt, err := l.waitMined(ctx, hash)
	if err != nil {
		return nil, &model.TransactionError{Method: method, TxHash: hash, Err: err}
	}
	if receipt.Status == types.ReceiptStatusFailed {
		return nil, &model.TransactionError{Method: method, TxHash: hash, Err: model.ErrReverted}
	}

	r := &Receipt{TxHash: hash, GasUsed: receipt.GasUsed}
	if receipt.BlockNumber != nil {
		r.BlockNumber = receipt.BlockNumber.Uint64()
	}
	l.logger.Info("transaction mined", "method", method, "tx", hash.Hex(), "block", r.BlockNumber)
	return r, nil
}

// checkArgs rejects integer arguments the ABI encoder would panic on or
// silently wrap, before anything reaches the provider.
func checkArgs(m abi.Method, value *big.Int, args []any) error {
	for i, arg := range args {
		v, ok := arg.(*big.Int)
		if !ok {
			continue
		}
		field := fmt.Sprintf("argument %d", i)
		if i < len(m.Inputs) && m.Inputs[i].Name != "" {
			field = m.Inputs[i].Name
		}
		if err := CheckUint256(field, v); err != nil {
			return err
		}
	}
	if value != nil {
		return CheckUint256("value", value)
	}
	return nil
}

// waitMined polls for the receipt of hash until it is available or ctx ends.
func (l *EthLedger) waitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(l.receiptPoll)
	defer ticker.Stop()

	for {
		receipt, err := l.eth.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("fetching receipt: %w", err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// rejectedReason reports whether the node refused a transaction because its
// gas estimation reverted, and the revert reason if one was given.
func rejectedReason(err error) (string, bool) {
	rest, ok := strings.CutPrefix(err.Error(), "execution reverted")
	if !ok {
		return "", false
	}
	return strings.TrimPrefix(rest, ": "), true
}

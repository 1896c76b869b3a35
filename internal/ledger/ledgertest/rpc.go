package ledgertest

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/alfredjeanlab/tix/internal/ledger"
	"github.com/alfredjeanlab/tix/internal/model"
)

// Node serves a Contract over Ethereum JSON-RPC. Accounts are unlocked:
// eth_sendTransaction is signed on behalf of any listed account.
type Node struct {
	Contract *Contract

	mu           sync.Mutex
	networkID    uint64
	accounts     []common.Address
	receipts     map[common.Hash]*types.Receipt
	pending      map[common.Hash]int
	pendingPolls int
	mineReverts  bool
	failed       uint64
	calls        map[string]int
}

// NewNode returns a node on networkID exposing c and the given accounts.
func NewNode(c *Contract, networkID uint64, accounts ...common.Address) *Node {
	return &Node{
		Contract:  c,
		networkID: networkID,
		accounts:  append([]common.Address(nil), accounts...),
		receipts:  make(map[common.Hash]*types.Receipt),
		pending:   make(map[common.Hash]int),
		calls:     make(map[string]int),
	}
}

// Serve starts an HTTP server for the node and returns its URL. The server
// is closed when the test ends.
func (n *Node) Serve(t testing.TB) string {
	t.Helper()
	srv := httptest.NewServer(n)
	t.Cleanup(srv.Close)
	return srv.URL
}

// SetAccounts replaces the exposed accounts.
func (n *Node) SetAccounts(accounts ...common.Address) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.accounts = append([]common.Address(nil), accounts...)
}

// SetNetworkID changes the reported network.
func (n *Node) SetNetworkID(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.networkID = id
}

// SetPendingPolls makes each new transaction's receipt read as pending for
// the given number of polls.
func (n *Node) SetPendingPolls(polls int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pendingPolls = polls
}

// MineReverts makes rejected transactions mine with a failed status instead
// of being refused at submission.
func (n *Node) MineReverts(on bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.mineReverts = on
}

// Calls returns how many times method was requested.
func (n *Node) Calls(method string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls[method]
}

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type txArgs struct {
	From  common.Address  `json:"from"`
	To    *common.Address `json:"to"`
	Data  hexutil.Bytes   `json:"data"`
	Input hexutil.Bytes   `json:"input"`
	Value *hexutil.Big    `json:"value"`
}

func (a txArgs) calldata() []byte {
	if len(a.Input) > 0 {
		return a.Input
	}
	return a.Data
}

func (n *Node) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	n.mu.Lock()
	n.calls[req.Method]++
	n.mu.Unlock()

	resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	result, err := n.dispatch(r.Context(), req)
	if err != nil {
		resp["error"] = rpcError{Code: -32000, Message: err.Error()}
	} else {
		raw, merr := json.Marshal(result)
		if merr != nil {
			resp["error"] = rpcError{Code: -32603, Message: merr.Error()}
		} else {
			resp["result"] = json.RawMessage(raw)
		}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp) //nolint:errcheck
}

func (n *Node) dispatch(ctx context.Context, req rpcRequest) (any, error) {
	switch req.Method {
	case "eth_accounts":
		n.mu.Lock()
		defer n.mu.Unlock()
		return append([]common.Address{}, n.accounts...), nil
	case "net_version":
		n.mu.Lock()
		defer n.mu.Unlock()
		return strconv.FormatUint(n.networkID, 10), nil
	case "eth_chainId":
		n.mu.Lock()
		defer n.mu.Unlock()
		return hexutil.Uint64(n.networkID), nil
	case "eth_getCode":
		var addr common.Address
		if err := param(req, 0, &addr); err != nil {
			return nil, err
		}
		if addr == n.Contract.Address() {
			return hexutil.Bytes{0x60, 0x80}, nil
		}
		return hexutil.Bytes{}, nil
	case "eth_call":
		var args txArgs
		if err := param(req, 0, &args); err != nil {
			return nil, err
		}
		return n.call(ctx, args)
	case "eth_sendTransaction":
		var args txArgs
		if err := param(req, 0, &args); err != nil {
			return nil, err
		}
		return n.send(ctx, args)
	case "eth_getTransactionReceipt":
		var hash common.Hash
		if err := param(req, 0, &hash); err != nil {
			return nil, err
		}
		return n.receipt(hash), nil
	default:
		return nil, fmt.Errorf("the method %s does not exist/is not available", req.Method)
	}
}

func param(req rpcRequest, i int, v any) error {
	if i >= len(req.Params) {
		return fmt.Errorf("missing value for required argument %d", i)
	}
	return json.Unmarshal(req.Params[i], v)
}

func (n *Node) call(ctx context.Context, args txArgs) (hexutil.Bytes, error) {
	if args.To == nil || *args.To != n.Contract.Address() {
		return hexutil.Bytes{}, nil
	}
	data := args.calldata()
	if len(data) < 4 {
		return nil, errors.New("execution reverted")
	}
	method, err := ledger.ContractABI.MethodById(data[:4])
	if err != nil {
		return nil, err
	}
	in, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, err
	}

	switch method.Name {
	case ledger.MethodNextID:
		next, err := n.Contract.NextID(ctx)
		if err != nil {
			return nil, err
		}
		return method.Outputs.Pack(new(big.Int).SetUint64(next))
	case ledger.MethodEvents:
		ev, err := n.Contract.GetEvent(ctx, in[0].(*big.Int).Uint64())
		if err != nil {
			return nil, err
		}
		return method.Outputs.Pack(new(big.Int).SetUint64(ev.ID), ev.Admin, ev.Name,
			ev.Date, ev.Price, ev.TicketsTotal, ev.TicketsRemaining)
	case ledger.MethodTickets:
		h, err := n.Contract.GetHolding(ctx, in[0].(common.Address), in[1].(*big.Int).Uint64())
		if err != nil {
			return nil, err
		}
		return method.Outputs.Pack(h.Quantity)
	default:
		return nil, fmt.Errorf("method %s is not a view", method.Name)
	}
}

func (n *Node) send(ctx context.Context, args txArgs) (common.Hash, error) {
	if !n.unlocked(args.From) {
		return common.Hash{}, fmt.Errorf("unknown account %s", args.From.Hex())
	}
	if args.To == nil || *args.To != n.Contract.Address() {
		return common.Hash{}, errors.New("only contract calls are supported")
	}
	data := args.calldata()
	if len(data) < 4 {
		return common.Hash{}, errors.New("execution reverted")
	}
	method, err := ledger.ContractABI.MethodById(data[:4])
	if err != nil {
		return common.Hash{}, err
	}
	in, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return common.Hash{}, err
	}
	var value *big.Int
	if args.Value != nil {
		value = args.Value.ToInt()
	}

	var rec *ledger.Receipt
	switch method.Name {
	case ledger.MethodCreateEvent:
		rec, err = n.Contract.CreateEvent(ctx, args.From, ledger.CreateEventRequest{
			Name:        in[0].(string),
			Date:        in[1].(*big.Int),
			Price:       in[2].(*big.Int),
			TicketCount: in[3].(*big.Int),
		})
	case ledger.MethodBuyTicket:
		rec, err = n.Contract.BuyTicket(ctx, args.From, ledger.BuyTicketRequest{
			EventID: in[0].(*big.Int).Uint64(),
			Amount:  in[1].(*big.Int),
			Value:   value,
		})
	case ledger.MethodTransferTicket:
		rec, err = n.Contract.TransferTicket(ctx, args.From, ledger.TransferTicketRequest{
			EventID: in[0].(*big.Int).Uint64(),
			Amount:  in[1].(*big.Int),
			To:      in[2].(common.Address),
		})
	default:
		return common.Hash{}, fmt.Errorf("method %s is not a transaction", method.Name)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if err != nil {
		if !errors.Is(err, model.ErrReverted) {
			var txErr *model.TransactionError
			if errors.As(err, &txErr) {
				err = txErr.Err
			}
			return common.Hash{}, err
		}
		if !n.mineReverts {
			return common.Hash{}, fmt.Errorf("execution reverted: %s", revertReason(err))
		}
		n.failed++
		var seq [8]byte
		binary.BigEndian.PutUint64(seq[:], n.failed)
		hash := crypto.Keccak256Hash([]byte("reverted"), seq[:])
		n.store(hash, types.ReceiptStatusFailed, 0, 21000)
		return hash, nil
	}
	n.store(rec.TxHash, types.ReceiptStatusSuccessful, rec.BlockNumber, rec.GasUsed)
	return rec.TxHash, nil
}

// store records a receipt. Callers hold n.mu.
func (n *Node) store(hash common.Hash, status, block, gas uint64) {
	n.receipts[hash] = &types.Receipt{
		Type:              types.LegacyTxType,
		Status:            status,
		CumulativeGasUsed: gas,
		Logs:              []*types.Log{},
		TxHash:            hash,
		GasUsed:           gas,
		BlockNumber:       new(big.Int).SetUint64(block),
	}
	if n.pendingPolls > 0 {
		n.pending[hash] = n.pendingPolls
	}
}

func (n *Node) receipt(hash common.Hash) *types.Receipt {
	n.mu.Lock()
	defer n.mu.Unlock()
	if left := n.pending[hash]; left > 0 {
		n.pending[hash] = left - 1
		return nil
	}
	return n.receipts[hash]
}

// revertReason extracts the require message from a contract rejection.
func revertReason(err error) string {
	var txErr *model.TransactionError
	if errors.As(err, &txErr) {
		err = txErr.Err
	}
	return strings.TrimPrefix(err.Error(), model.ErrReverted.Error()+": ")
}

func (n *Node) unlocked(addr common.Address) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, a := range n.accounts {
		if a == addr {
			return true
		}
	}
	return false
}

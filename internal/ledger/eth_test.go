package ledger_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/alfredjeanlab/tix/internal/ledger"
	"github.com/alfredjeanlab/tix/internal/ledger/ledgertest"
	"github.com/alfredjeanlab/tix/internal/model"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestLedger(t *testing.T) (*ledger.EthLedger, *ledgertest.Node) {
	t.Helper()
	node := ledgertest.NewNode(ledgertest.New(), 5777, alice, bob)
	rc, err := rpc.DialContext(context.Background(), node.Serve(t))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(rc.Close)
	l := ledger.NewEthLedger(rc, node.Contract.Address(),
		ledger.WithReceiptPoll(5*time.Millisecond),
		ledger.WithLogger(quietLogger()))
	return l, node
}

func future() int64 { return time.Now().Add(24 * time.Hour).Unix() }

func TestEthLedger_Reads(t *testing.T) {
	l, node := newTestLedger(t)
	ctx := context.Background()
	date := future()
	node.Contract.Seed(alice, "Concert", date, 100, 10)
	node.Contract.Seed(bob, "Play", date+60, 250, 3)
	node.Contract.Grant(alice, 1, 2)

	next, err := l.NextID(ctx)
	if err != nil {
		t.Fatalf("NextID: %v", err)
	}
	if next != 2 {
		t.Errorf("NextID = %d, want 2", next)
	}

	ev, err := l.GetEvent(ctx, 1)
	if err != nil {
		t.Fatalf("GetEvent: %v", err)
	}
	if ev.ID != 1 || ev.Name != "Play" || ev.Admin != bob || ev.Date.Int64() != date+60 {
		t.Errorf("GetEvent = %+v", ev)
	}
	if ev.Price.Int64() != 250 || ev.TicketsTotal.Int64() != 3 || ev.TicketsRemaining.Int64() != 3 {
		t.Errorf("price/total/remaining = %s/%s/%s, want 250/3/3", ev.Price, ev.TicketsTotal, ev.TicketsRemaining)
	}

	h, err := l.GetHolding(ctx, alice, 1)
	if err != nil {
		t.Fatalf("GetHolding: %v", err)
	}
	if h.EventID != 1 || h.Owner != alice || h.Quantity.Int64() != 2 {
		t.Errorf("GetHolding = %+v", h)
	}

	h, err = l.GetHolding(ctx, bob, 0)
	if err != nil {
		t.Fatalf("GetHolding: %v", err)
	}
	if h.Quantity.Sign() != 0 {
		t.Errorf("unheld quantity = %s, want 0", h.Quantity)
	}
}

func TestEthLedger_UnassignedEventReadsZero(t *testing.T) {
	l, _ := newTestLedger(t)

	ev, err := l.GetEvent(context.Background(), 7)
	if err != nil {
		t.Fatalf("GetEvent: %v", err)
	}
	if ev.ID != 0 || ev.Name != "" || ev.Admin != (common.Address{}) {
		t.Errorf("GetEvent(7) = %+v, want zero record", ev)
	}
}

func TestEthLedger_CreateEvent(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()
	date := future()

	rec, err := l.CreateEvent(ctx, alice, ledger.CreateEventRequest{
		Name:        "Launch",
		Date:        big.NewInt(date),
		Price:       big.NewInt(5),
		TicketCount: big.NewInt(20),
	})
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	if rec.TxHash == (common.Hash{}) {
		t.Error("receipt has zero tx hash")
	}
	if rec.BlockNumber != 1 {
		t.Errorf("BlockNumber = %d, want 1", rec.BlockNumber)
	}

	ev, err := l.GetEvent(ctx, 0)
	if err != nil {
		t.Fatalf("GetEvent: %v", err)
	}
	if ev.Admin != alice || ev.Name != "Launch" || ev.Date.Int64() != date || ev.TicketsRemaining.Int64() != 20 {
		t.Errorf("created event = %+v", ev)
	}
}

func TestEthLedger_CreateEventPastDateRefused(t *testing.T) {
	l, _ := newTestLedger(t)

	_, err := l.CreateEvent(context.Background(), alice, ledger.CreateEventRequest{
		Name:        "Yesterday",
		Date:        big.NewInt(time.Now().Add(-time.Hour).Unix()),
		Price:       big.NewInt(1),
		TicketCount: big.NewInt(1),
	})
	var txErr *model.TransactionError
	if !errors.As(err, &txErr) {
		t.Fatalf("err = %v, want *model.TransactionError", err)
	}
	if txErr.Method != ledger.MethodCreateEvent {
		t.Errorf("Method = %q, want %q", txErr.Method, ledger.MethodCreateEvent)
	}
	if txErr.TxHash != (common.Hash{}) {
		t.Errorf("TxHash = %s, want zero for a refused submission", txErr.TxHash.Hex())
	}
	if !strings.Contains(err.Error(), "future date") {
		t.Errorf("err = %q, want the revert reason", err)
	}
}

func TestEthLedger_BuyAndTransfer(t *testing.T) {
	l, node := newTestLedger(t)
	ctx := context.Background()
	node.Contract.Seed(alice, "Concert", future(), 100, 10)

	if _, err := l.BuyTicket(ctx, bob, ledger.BuyTicketRequest{
		EventID: 0, Amount: big.NewInt(3), Value: big.NewInt(300),
	}); err != nil {
		t.Fatalf("BuyTicket: %v", err)
	}
	subs := node.Contract.Submissions()
	if len(subs) != 1 || subs[0].Value.Int64() != 300 || subs[0].From != bob {
		t.Fatalf("submissions = %+v, want one 300 wei buy from bob", subs)
	}

	if _, err := l.TransferTicket(ctx, bob, ledger.TransferTicketRequest{
		EventID: 0, Amount: big.NewInt(1), To: alice,
	}); err != nil {
		t.Fatalf("TransferTicket: %v", err)
	}

	for _, tc := range []struct {
		owner common.Address
		want  int64
	}{
		{bob, 2},
		{alice, 1},
	} {
		h, err := l.GetHolding(ctx, tc.owner, 0)
		if err != nil {
			t.Fatalf("GetHolding: %v", err)
		}
		if h.Quantity.Int64() != tc.want {
			t.Errorf("holding of %s = %s, want %d", tc.owner.Hex(), h.Quantity, tc.want)
		}
	}

	ev, err := l.GetEvent(ctx, 0)
	if err != nil {
		t.Fatalf("GetEvent: %v", err)
	}
	if ev.TicketsRemaining.Int64() != 7 {
		t.Errorf("TicketsRemaining = %s, want 7", ev.TicketsRemaining)
	}
}

func TestEthLedger_BuyTicketRejections(t *testing.T) {
	tests := []struct {
		name   string
		req    ledger.BuyTicketRequest
		reason string
	}{
		{"wrong value", ledger.BuyTicketRequest{EventID: 0, Amount: big.NewInt(2), Value: big.NewInt(100)}, "equal to total ticket cost"},
		{"sold out", ledger.BuyTicketRequest{EventID: 0, Amount: big.NewInt(11), Value: big.NewInt(1100)}, "not enough ticket left"},
		{"unknown event", ledger.BuyTicketRequest{EventID: 9, Amount: big.NewInt(1), Value: big.NewInt(100)}, "does not exist"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, node := newTestLedger(t)
			node.Contract.Seed(alice, "Concert", future(), 100, 10)

			_, err := l.BuyTicket(context.Background(), bob, tt.req)
			var txErr *model.TransactionError
			if !errors.As(err, &txErr) {
				t.Fatalf("err = %v, want *model.TransactionError", err)
			}
			if !errors.Is(err, model.ErrReverted) {
				t.Errorf("err = %v, want ErrReverted", err)
			}
			if !strings.Contains(err.Error(), tt.reason) {
				t.Errorf("err = %q, want it to contain %q", err, tt.reason)
			}
			if len(node.Contract.Submissions()) != 0 {
				t.Error("rejected purchase was recorded")
			}
		})
	}
}

func TestEthLedger_MinedRevert(t *testing.T) {
	l, node := newTestLedger(t)
	node.MineReverts(true)
	node.Contract.Seed(alice, "Concert", future(), 100, 10)

	_, err := l.BuyTicket(context.Background(), bob, ledger.BuyTicketRequest{
		EventID: 0, Amount: big.NewInt(1), Value: big.NewInt(1),
	})
	if !errors.Is(err, model.ErrReverted) {
		t.Fatalf("err = %v, want ErrReverted", err)
	}
	var txErr *model.TransactionError
	if !errors.As(err, &txErr) || txErr.TxHash == (common.Hash{}) {
		t.Errorf("err = %v, want a TransactionError carrying the tx hash", err)
	}
}

func TestEthLedger_WaitsForPendingReceipt(t *testing.T) {
	l, node := newTestLedger(t)
	node.SetPendingPolls(3)
	node.Contract.Seed(alice, "Concert", future(), 0, 10)

	if _, err := l.BuyTicket(context.Background(), bob, ledger.BuyTicketRequest{
		EventID: 0, Amount: big.NewInt(1),
	}); err != nil {
		t.Fatalf("BuyTicket: %v", err)
	}
	if got := node.Calls("eth_getTransactionReceipt"); got != 4 {
		t.Errorf("receipt polls = %d, want 4", got)
	}
}

func TestEthLedger_CancelWhilePending(t *testing.T) {
	l, node := newTestLedger(t)
	node.SetPendingPolls(1 << 20)
	node.Contract.Seed(alice, "Concert", future(), 0, 10)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := l.BuyTicket(ctx, bob, ledger.BuyTicketRequest{EventID: 0, Amount: big.NewInt(1)})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	var txErr *model.TransactionError
	if !errors.As(err, &txErr) || txErr.TxHash == (common.Hash{}) {
		t.Errorf("err = %v, want the submitted tx hash to be reported", err)
	}
}

func TestEthLedger_FarFutureDate(t *testing.T) {
	l, node := newTestLedger(t)
	date := new(big.Int).Lsh(big.NewInt(1), 70)
	node.Contract.SeedAt(alice, "Eventually", date, 1, 1)

	ev, err := l.GetEvent(context.Background(), 0)
	if err != nil {
		t.Fatalf("GetEvent: %v", err)
	}
	if ev.Date.Cmp(date) != 0 {
		t.Errorf("date = %s, want %s", ev.Date, date)
	}
}

func TestEthLedger_InvalidUintNeverSent(t *testing.T) {
	huge := new(big.Int).Lsh(big.NewInt(1), 256)
	tests := []struct {
		name   string
		submit func(l *ledger.EthLedger) error
	}{
		{"pre-epoch date", func(l *ledger.EthLedger) error {
			_, err := l.CreateEvent(context.Background(), alice, ledger.CreateEventRequest{
				Name: "x", Date: big.NewInt(-86400), Price: big.NewInt(1), TicketCount: big.NewInt(1),
			})
			return err
		}},
		{"nil price", func(l *ledger.EthLedger) error {
			_, err := l.CreateEvent(context.Background(), alice, ledger.CreateEventRequest{
				Name: "x", Date: big.NewInt(future()), TicketCount: big.NewInt(1),
			})
			return err
		}},
		{"nil ticket count", func(l *ledger.EthLedger) error {
			_, err := l.CreateEvent(context.Background(), alice, ledger.CreateEventRequest{
				Name: "x", Date: big.NewInt(future()), Price: big.NewInt(1),
			})
			return err
		}},
		{"negative buy amount", func(l *ledger.EthLedger) error {
			_, err := l.BuyTicket(context.Background(), alice, ledger.BuyTicketRequest{
				EventID: 0, Amount: big.NewInt(-1), Value: big.NewInt(0),
			})
			return err
		}},
		{"negative value", func(l *ledger.EthLedger) error {
			_, err := l.BuyTicket(context.Background(), alice, ledger.BuyTicketRequest{
				EventID: 0, Amount: big.NewInt(1), Value: big.NewInt(-100),
			})
			return err
		}},
		{"nil transfer amount", func(l *ledger.EthLedger) error {
			_, err := l.TransferTicket(context.Background(), alice, ledger.TransferTicketRequest{EventID: 0, To: bob})
			return err
		}},
		{"wider than 256 bits", func(l *ledger.EthLedger) error {
			_, err := l.TransferTicket(context.Background(), alice, ledger.TransferTicketRequest{EventID: 0, Amount: huge, To: bob})
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, node := newTestLedger(t)
			node.Contract.Seed(alice, "Concert", future(), 100, 10)

			err := tt.submit(l)
			var txErr *model.TransactionError
			if !errors.As(err, &txErr) {
				t.Fatalf("err = %v, want *model.TransactionError", err)
			}
			if !errors.Is(err, model.ErrInvalidUint) {
				t.Errorf("err = %v, want ErrInvalidUint", err)
			}
			if n := node.Calls("eth_sendTransaction"); n != 0 {
				t.Errorf("eth_sendTransaction called %d times", n)
			}
		})
	}
}

func TestEthLedger_ZeroAddress(t *testing.T) {
	_, node := newTestLedger(t)
	rc, err := rpc.DialContext(context.Background(), node.Serve(t))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer rc.Close()
	l := ledger.NewEthLedger(rc, common.Address{})

	if _, err := l.NextID(context.Background()); !errors.Is(err, ledger.ErrNoAddress) {
		t.Errorf("NextID err = %v, want ErrNoAddress", err)
	}
	_, err = l.CreateEvent(context.Background(), alice, ledger.CreateEventRequest{
		Name: "x", Date: big.NewInt(future()), Price: big.NewInt(1), TicketCount: big.NewInt(1),
	})
	if !errors.Is(err, ledger.ErrNoAddress) {
		t.Errorf("CreateEvent err = %v, want ErrNoAddress", err)
	}
	if node.Calls("eth_sendTransaction") != 0 {
		t.Error("transaction was sent to the zero address")
	}
}

func TestNewBinder(t *testing.T) {
	node := ledgertest.NewNode(ledgertest.New(), 5777, alice)
	rc, err := rpc.DialContext(context.Background(), node.Serve(t))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer rc.Close()

	binder := ledger.NewBinder(rc, ledger.Deployments{5777: node.Contract.Address()})

	l, err := binder.Bind(5777)
	if err != nil {
		t.Fatalf("Bind(5777): %v", err)
	}
	if l.Address() != node.Contract.Address() {
		t.Errorf("Address = %s, want %s", l.Address().Hex(), node.Contract.Address().Hex())
	}

	l, err = binder.Bind(3)
	var nd *model.NoDeploymentError
	if !errors.As(err, &nd) || nd.NetworkID != 3 {
		t.Fatalf("Bind(3) err = %v, want NoDeploymentError for 3", err)
	}
	if l != nil {
		t.Error("Bind(3) returned a ledger")
	}
}

package ledger

import (
	"bytes"
	_ "embed"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/alfredjeanlab/tix/internal/model"
)

//go:embed contract/EventContract.abi.json
var contractABIJSON []byte

// ContractABI is the parsed interface of the event ticketing contract.
var ContractABI = mustParseABI(contractABIJSON)

func mustParseABI(data []byte) abi.ABI {
	parsed, err := abi.JSON(bytes.NewReader(data))
	if err != nil {
		panic(fmt.Sprintf("ledger: invalid embedded ABI: %v", err))
	}
	return parsed
}

// decodeNextID converts the unpacked nextId output.
func decodeNextID(out []any) (uint64, error) {
	n, err := bigAt(out, 0, "nextId")
	if err != nil {
		return 0, err
	}
	if !n.IsUint64() || n.Uint64() > MaxEvents {
		return 0, fmt.Errorf("%w: nextId %s", ErrTooManyEvents, n)
	}
	return n.Uint64(), nil
}

var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// CheckUint256 reports whether v can be encoded as a uint256 argument.
func CheckUint256(field string, v *big.Int) error {
	switch {
	case v == nil:
		return fmt.Errorf("%s: %w: missing", field, model.ErrInvalidUint)
	case v.Sign() < 0 || v.Cmp(maxUint256) > 0:
		return fmt.Errorf("%s: %w: %s", field, model.ErrInvalidUint, v)
	}
	return nil
}

// decodeEvent converts the unpacked outputs of events(id).
func decodeEvent(out []any) (*model.Event, error) {
	if len(out) != 7 {
		return nil, fmt.Errorf("events: got %d outputs, want 7", len(out))
	}
	id, err := bigAt(out, 0, "id")
	if err != nil {
		return nil, err
	}
	if !id.IsUint64() {
		return nil, fmt.Errorf("events: id %s out of range", id)
	}
	admin, ok := out[1].(common.Address)
	if !ok {
		return nil, fmt.Errorf("events: admin has type %T", out[1])
	}
	name, ok := out[2].(string)
	if !ok {
		return nil, fmt.Errorf("events: name has type %T", out[2])
	}
	date, err := bigAt(out, 3, "date")
	if err != nil {
		return nil, err
	}
	price, err := bigAt(out, 4, "price")
	if err != nil {
		return nil, err
	}
	total, err := bigAt(out, 5, "ticketCount")
	if err != nil {
		return nil, err
	}
	remaining, err := bigAt(out, 6, "ticketRemaining")
	if err != nil {
		return nil, err
	}
	return &model.Event{
		ID:               id.Uint64(),
		Admin:            admin,
		Name:             name,
		Date:             date,
		Price:            price,
		TicketsRemaining: remaining,
		TicketsTotal:     total,
	}, nil
}

func bigAt(out []any, i int, field string) (*big.Int, error) {
	if i >= len(out) {
		return nil, fmt.Errorf("%s: missing output %d", field, i)
	}
	v, ok := out[i].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s has type %T", field, out[i])
	}
	return v, nil
}

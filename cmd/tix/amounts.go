package main

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"
)

// parseCount parses a non-negative integer ticket count.
func parseCount(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q: must be a non-negative integer", s)
	}
	return v, nil
}

// parseWei parses a price. A bare integer or a "wei" suffix is wei; an
// "ether" or "eth" suffix may carry a decimal fraction that must resolve to
// a whole number of wei.
func parseWei(s string) (*big.Int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, unit := range []string{"ether", "eth"} {
		if num, ok := strings.CutSuffix(s, unit); ok {
			r, ok := new(big.Rat).SetString(strings.TrimSpace(num))
			if !ok || r.Sign() < 0 {
				return nil, fmt.Errorf("invalid price %q", s)
			}
			r.Mul(r, new(big.Rat).SetInt64(params.Ether))
			if !r.IsInt() {
				return nil, fmt.Errorf("invalid price %q: finer than 1 wei", s)
			}
			return new(big.Int).Set(r.Num()), nil
		}
	}
	return parseCount(strings.TrimSuffix(s, "wei"))
}

func parseEventID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid event id %q", s)
	}
	return id, nil
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

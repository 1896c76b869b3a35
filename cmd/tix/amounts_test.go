package main

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestParseWei(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "1000", want: "1000"},
		{in: "1000wei", want: "1000"},
		{in: "0", want: "0"},
		{in: "1ether", want: "1000000000000000000"},
		{in: "0.25 ETH", want: "250000000000000000"},
		{in: "0.000000000000000001ether", want: "1"},
		{in: "0.0000000000000000001ether", wantErr: true},
		{in: "-5", wantErr: true},
		{in: "1.5", wantErr: true},
		{in: "abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseWei(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseWei(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			want, _ := new(big.Int).SetString(tt.want, 10)
			if got.Cmp(want) != 0 {
				t.Errorf("parseWei(%q) = %s, want %s", tt.in, got, want)
			}
		})
	}
}

func TestParseCount(t *testing.T) {
	if v, err := parseCount("340282366920938463463374607431768211456"); err != nil || v.BitLen() != 129 {
		t.Errorf("parseCount(2^128) = %v, %v", v, err)
	}
	for _, in := range []string{"", "-1", "1e3", "two"} {
		if _, err := parseCount(in); err == nil {
			t.Errorf("parseCount(%q) should fail", in)
		}
	}
}

func TestParseEventIDAndAddress(t *testing.T) {
	if id, err := parseEventID("42"); err != nil || id != 42 {
		t.Errorf("parseEventID(42) = %d, %v", id, err)
	}
	if _, err := parseEventID("-1"); err == nil {
		t.Error("parseEventID(-1) should fail")
	}

	addr, err := parseAddress("0x0000000000000000000000000000000000000b0b")
	if err != nil || addr != common.HexToAddress("0x0b0b") {
		t.Errorf("parseAddress = %s, %v", addr.Hex(), err)
	}
	if _, err := parseAddress("0x0b0b"); err == nil {
		t.Error("short address should be rejected")
	}
}

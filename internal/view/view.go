// Package view derives what the shell shows from a cache snapshot. Every
// function here is pure; time comes in through a Clock or an explicit now.
package view

import (
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"

	"github.com/alfredjeanlab/tix/internal/model"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// System returns the wall clock.
func System() Clock { return systemClock{} }

type fixedClock time.Time

func (c fixedClock) Now() time.Time { return time.Time(c) }

// Fixed returns a clock that always reports t.
func Fixed(t time.Time) Clock { return fixedClock(t) }

var millisPerSecond = big.NewInt(1000)

// IsFinished reports whether ev has ended at now, compared at millisecond
// resolution. The date is a uint256, so the comparison is done in big.Int.
// A missing date reads as zero, like an unassigned contract record.
func IsFinished(ev model.Event, now time.Time) bool {
	end := new(big.Int)
	if ev.Date != nil {
		end.Mul(ev.Date, millisPerSecond)
	}
	return big.NewInt(now.UnixMilli()).Cmp(end) >= 0
}

// lastDisplayable is the latest instant a calendar date is rendered for.
var lastDisplayable = time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC).Unix()

// EndTime converts ev's date to a time. ok is false when the date lies
// beyond year 9999 or is missing.
func EndTime(ev model.Event) (t time.Time, ok bool) {
	if ev.Date == nil || !ev.Date.IsInt64() || ev.Date.Int64() > lastDisplayable {
		return time.Time{}, false
	}
	return time.Unix(ev.Date.Int64(), 0).UTC(), true
}

// Row is one rendered event line.
type Row struct {
	ID        uint64
	Name      string
	Admin     common.Address
	IsAdmin   bool      // the active account administers the event
	Date      time.Time // zero when the date cannot be displayed
	DateText  string
	Price     *big.Int
	PriceText string
	Remaining *big.Int
	Total     *big.Int
	Held      *big.Int
	Finished  bool
}

// Rows builds one row per cached event, in ID order, joined with the active
// account's holding for that event.
func Rows(snap model.Snapshot, now time.Time) []Row {
	rows := make([]Row, 0, len(snap.Events))
	for _, ev := range snap.Events {
		held := new(big.Int)
		if h, ok := snap.HoldingFor(ev.ID); ok && h.Quantity != nil {
			held = h.Quantity
		}
		date, ok := EndTime(ev)
		dateText := FormatDate(date)
		if !ok {
			dateText = "unix " + ev.Date.String()
		}
		rows = append(rows, Row{
			ID:        ev.ID,
			Name:      ev.Name,
			Admin:     ev.Admin,
			IsAdmin:   snap.Account != (common.Address{}) && ev.Admin == snap.Account,
			Date:      date,
			DateText:  dateText,
			Price:     ev.Price,
			PriceText: FormatWei(ev.Price),
			Remaining: ev.TicketsRemaining,
			Total:     ev.TicketsTotal,
			Held:      held,
			Finished:  IsFinished(ev, now),
		})
	}
	return rows
}

// FormatDate renders t as a UTC calendar date and time.
func FormatDate(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04 UTC")
}

// FormatWei renders a wei amount exactly.
func FormatWei(v *big.Int) string {
	if v == nil {
		return "0 wei"
	}
	return v.String() + " wei"
}

var weiPerEther = big.NewInt(params.Ether)

// FormatEther renders a wei amount in ether without rounding, trimming
// trailing zeros.
func FormatEther(v *big.Int) string {
	if v == nil {
		return "0 ETH"
	}
	s := new(big.Rat).SetFrac(v, weiPerEther).FloatString(18)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	return s + " ETH"
}

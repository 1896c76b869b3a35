package idgen

import (
	"regexp"
	"testing"
)

var actionPattern = regexp.MustCompile(`^act-[0-9a-z]{12}$`)

func TestNewActionID_Format(t *testing.T) {
	for i := 0; i < 100; i++ {
		id, err := NewActionID()
		if err != nil {
			t.Fatalf("NewActionID() error on iteration %d: %v", i, err)
		}
		if !actionPattern.MatchString(id) {
			t.Fatalf("NewActionID() = %q, does not match %s", id, actionPattern)
		}
	}
}

func TestNewActionID_Uniqueness(t *testing.T) {
	const count = 10_000
	seen := make(map[string]struct{}, count)
	for i := 0; i < count; i++ {
		id, err := NewActionID()
		if err != nil {
			t.Fatalf("NewActionID() error on iteration %d: %v", i, err)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate ID after %d generations: %q", i, id)
		}
		seen[id] = struct{}{}
	}
}

func TestNew_Prefix(t *testing.T) {
	id, err := New("sync-")
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if len(id) != len("sync-")+length || id[:5] != "sync-" {
		t.Errorf("New(%q) = %q", "sync-", id)
	}
}

func TestSequence(t *testing.T) {
	gen := Sequence("act-")
	for _, want := range []string{"act-1", "act-2", "act-3"} {
		got, err := gen()
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	}
}

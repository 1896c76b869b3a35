package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/alfredjeanlab/tix/internal/model"
)

func nonEmptyLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}

func testSnapshot() model.Snapshot {
	return model.Snapshot{
		NetworkID: 5777,
		Account:   bob,
		Events: []model.Event{
			{ID: 0, Admin: alice, Name: "Opening <night>", Date: big.NewInt(1767225600), Price: big.NewInt(100), TicketsRemaining: big.NewInt(3), TicketsTotal: big.NewInt(5)},
			{ID: 1, Admin: alice, Name: "Closing", Date: big.NewInt(1767312000), Price: big.NewInt(250), TicketsRemaining: big.NewInt(10), TicketsTotal: big.NewInt(10)},
		},
		Holdings: []model.Holding{
			{EventID: 0, Owner: bob, Quantity: big.NewInt(2)},
			{EventID: 1, Owner: bob, Quantity: big.NewInt(0)},
		},
		EventsSyncedAt:   syncedAt,
		HoldingsSyncedAt: syncedAt,
	}
}

func TestExportJSONL_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := ExportJSONL(&buf, model.Snapshot{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := nonEmptyLines(buf.String())
	if len(lines) != 1 {
		t.Fatalf("expected 1 line (header only), got %d", len(lines))
	}
	var h header
	if err := json.Unmarshal([]byte(lines[0]), &h); err != nil {
		t.Fatalf("unmarshal header: %v", err)
	}
	if h.Version != "1" || h.Type != "header" || h.EventCount != 0 || h.HoldingCount != 0 {
		t.Fatalf("unexpected header: %+v", h)
	}
}

func TestExportJSONL_EventsThenHoldings(t *testing.T) {
	var buf bytes.Buffer
	if err := ExportJSONL(&buf, testSnapshot()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := nonEmptyLines(buf.String())
	// 1 header + 2 events + 2 holdings
	if len(lines) != 5 {
		t.Fatalf("expected 5 lines, got %d:\n%s", len(lines), buf.String())
	}

	wantTypes := []string{"header", "event", "event", "holding", "holding"}
	for i, line := range lines {
		var r struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal([]byte(line), &r); err != nil {
			t.Fatalf("line %d: %v", i, err)
		}
		if r.Type != wantTypes[i] {
			t.Errorf("line %d type = %q, want %q", i, r.Type, wantTypes[i])
		}
	}

	var ev struct {
		Data model.Event `json:"data"`
	}
	if err := json.Unmarshal([]byte(lines[1]), &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Data.Name != "Opening <night>" || ev.Data.Price.Int64() != 100 {
		t.Errorf("event line = %+v", ev.Data)
	}
	if !strings.Contains(lines[1], "<night>") {
		t.Errorf("HTML was escaped: %s", lines[1])
	}
}

func TestExportJSONL_Deterministic(t *testing.T) {
	var a, b bytes.Buffer
	if err := ExportJSONL(&a, testSnapshot()); err != nil {
		t.Fatal(err)
	}
	if err := ExportJSONL(&b, testSnapshot()); err != nil {
		t.Fatal(err)
	}
	if a.String() != b.String() {
		t.Error("exporting the same snapshot twice differed")
	}
}

func TestFileDestination(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exports", "snapshot.jsonl")
	d := NewFileDestination(path)

	if err := d.Write(context.Background(), testSnapshot()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	snap := testSnapshot()
	snap.Events = snap.Events[:1]
	snap.Holdings = nil
	if err := d.Write(context.Background(), snap); err != nil {
		t.Fatalf("second Write: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if n := len(nonEmptyLines(string(data))); n != 2 {
		t.Errorf("file has %d lines, want 2 (replaced, not appended)", n)
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, want only the export", len(entries))
	}
}

type fakePutter struct {
	in   *s3.PutObjectInput
	body []byte
	err  error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.in = in
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, f.err
}

func TestS3Destination_Write(t *testing.T) {
	put := &fakePutter{}
	d := &S3Destination{client: put, bucket: "snapshots", key: "tix/snapshot.jsonl"}

	if err := d.Write(context.Background(), testSnapshot()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if *put.in.Bucket != "snapshots" || *put.in.Key != "tix/snapshot.jsonl" {
		t.Errorf("bucket/key = %s/%s", *put.in.Bucket, *put.in.Key)
	}
	if *put.in.ContentType != "application/x-ndjson" {
		t.Errorf("ContentType = %s", *put.in.ContentType)
	}
	if n := len(nonEmptyLines(string(put.body))); n != 5 {
		t.Errorf("uploaded %d lines, want 5", n)
	}

	put.err = errors.New("access denied")
	if err := d.Write(context.Background(), testSnapshot()); err == nil {
		t.Error("expected error from a failed upload")
	}
}

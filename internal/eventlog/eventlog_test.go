package eventlog

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
)

func TestNilWriterDiscardsEverything(t *testing.T) {
	w, err := New("")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if w != nil {
		t.Fatal("empty dir should disable logging")
	}
	if err := w.Log("a_0000000000", "ball_spawned", map[string]any{"size": 80}); err != nil {
		t.Fatalf("nil writer log: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("nil writer close: %v", err)
	}
}

func TestWriteAndReadBack(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	events := []struct {
		arenaID string
		typ     string
		data    any
	}{
		{"a_1111111111", "ball_spawned", map[string]any{"ball_id": "b_0a0a0a0a", "size": 80.0}},
		{"a_1111111111", "ball_collision", map[string]any{"ball_id": "b_0a0a0a0a", "other_id": "b_0b0b0b0b", "speed": 4.25}},
		{"a_2222222222", "arena_cleared", map[string]any{"removed": 3.0}},
	}
	for _, e := range events {
		if err := w.Log(e.arenaID, e.typ, e.data); err != nil {
			t.Fatalf("log %s: %v", e.typ, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := filepath.Glob(filepath.Join(dir, "events-*.jsonl.zst"))
	if err != nil || len(files) != 1 {
		t.Fatalf("expected one rotated file, got %v (%v)", files, err)
	}

	f, err := os.Open(files[0])
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		t.Fatalf("zstd reader: %v", err)
	}
	defer dec.Close()

	var got []Entry
	sc := bufio.NewScanner(dec)
	for sc.Scan() {
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("unmarshal line %q: %v", sc.Text(), err)
		}
		got = append(got, e)
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}

	if len(got) != len(events) {
		t.Fatalf("read %d entries, want %d", len(got), len(events))
	}
	for i, e := range events {
		if got[i].ArenaID != e.arenaID || got[i].Type != e.typ {
			t.Errorf("entry %d: got (%s,%s), want (%s,%s)", i, got[i].ArenaID, got[i].Type, e.arenaID, e.typ)
		}
		if got[i].At.IsZero() {
			t.Errorf("entry %d: missing timestamp", i)
		}
	}

	var collision map[string]any
	if err := json.Unmarshal(got[1].Data, &collision); err != nil {
		t.Fatalf("unmarshal collision payload: %v", err)
	}
	if collision["speed"] != 4.25 {
		t.Errorf("collision speed = %v, want 4.25", collision["speed"])
	}
}

func TestNewRejectsUnwritablePath(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "not-a-dir")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := New(filepath.Join(file, "events")); err == nil {
		t.Error("expected error when the log root cannot be created")
	}
}

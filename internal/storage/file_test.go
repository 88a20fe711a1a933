package storage

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestFileRecorder_AppendAndLoad(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "logs", "journal.jsonl")
	rec, err := NewFileRecorder(p)
	if err != nil {
		t.Fatalf("init recorder: %v", err)
	}

	ev1 := Event{Timestamp: time.Unix(1, 0).UTC(), ChatID: -100, UserID: 1, Kind: KindText, Question: "hi", Answer: "hello"}
	ev2 := Event{Timestamp: time.Unix(2, 0).UTC(), ChatID: -100, UserID: 2, Kind: KindText, Question: "foo", Error: "provider generate: boom"}
	if err := rec.AppendInteraction(ev1); err != nil {
		t.Fatalf("append1: %v", err)
	}
	if err := rec.AppendInteraction(ev2); err != nil {
		t.Fatalf("append2: %v", err)
	}

	events, err := rec.LoadInteractions()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("want 2, got %d", len(events))
	}
	if events[0].UserID != 1 || events[1].UserID != 2 {
		t.Fatalf("order mismatch: %+v", events)
	}
	if events[1].Error == "" || events[0].Kind != KindText {
		t.Fatalf("fields lost: %+v", events)
	}

	st, err := os.Stat(p)
	if err != nil || st.Size() == 0 {
		t.Fatalf("file not written")
	}
}

func TestFileRecorder_SkipsBrokenLines(t *testing.T) {
	p := filepath.Join(t.TempDir(), "journal.jsonl")
	if err := os.WriteFile(p, []byte("{not json}\n\n{\"chat_id\":5,\"kind\":\"sticker\"}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	rec, err := NewFileRecorder(p)
	if err != nil {
		t.Fatalf("init recorder: %v", err)
	}
	events, err := rec.LoadInteractions()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(events) != 1 || events[0].ChatID != 5 || events[0].Kind != KindSticker {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestFileRecorder_ConcurrentAppends(t *testing.T) {
	rec, err := NewFileRecorder(filepath.Join(t.TempDir(), "journal.jsonl"))
	if err != nil {
		t.Fatalf("init recorder: %v", err)
	}
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = rec.AppendInteraction(Event{ChatID: int64(i), Kind: KindText})
		}(i)
	}
	wg.Wait()
	events, err := rec.LoadInteractions()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(events) != 20 {
		t.Fatalf("want 20 events, got %d", len(events))
	}
}

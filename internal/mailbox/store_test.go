package mailbox

import (
	"encoding/json"
	"fmt"
	"regexp"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func payload(i int) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{"summary":"message %d"}`, i))
}

func TestStoreKeepsFIFOOrder(t *testing.T) {
	store := newTestStore(t)
	for i := 1; i <= 3; i++ {
		if _, err := store.Append([]string{"alice"}, payload(i)); err != nil {
			t.Fatal(err)
		}
	}

	msgs, err := store.Messages("alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 3 {
		t.Fatalf("len = %d", len(msgs))
	}
	for i, m := range msgs {
		var body struct {
			Summary string `json:"summary"`
		}
		if err := json.Unmarshal(m.Message, &body); err != nil {
			t.Fatal(err)
		}
		if want := fmt.Sprintf("message %d", i+1); body.Summary != want {
			t.Fatalf("msgs[%d] = %q, want %q", i, body.Summary, want)
		}
	}
}

func TestStoreIsolatesUsers(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.Append([]string{"alice"}, payload(1)); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Append([]string{"bob"}, payload(2)); err != nil {
		t.Fatal(err)
	}

	msgs, err := store.Messages("alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 {
		t.Fatalf("alice sees %d messages", len(msgs))
	}
}

func TestStoreFansOutToAllUsers(t *testing.T) {
	store := newTestStore(t)
	n, err := store.Append([]string{"alice", "bob", "carol"}, payload(7))
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("users written = %d", n)
	}

	var stamps []float64
	for _, user := range []string{"alice", "bob", "carol"} {
		msgs, err := store.Messages(user)
		if err != nil {
			t.Fatal(err)
		}
		if len(msgs) != 1 {
			t.Fatalf("%s sees %d messages", user, len(msgs))
		}
		stamps = append(stamps, msgs[0].Timestamp)
	}
	if stamps[0] != stamps[1] || stamps[1] != stamps[2] {
		t.Fatalf("one post must share one timestamp: %v", stamps)
	}
}

func TestStoreEmptyQueueIsEmptySlice(t *testing.T) {
	store := newTestStore(t)
	msgs, err := store.Messages("ghost")
	if err != nil {
		t.Fatal(err)
	}
	if msgs == nil || len(msgs) != 0 {
		t.Fatalf("msgs = %#v, want empty non-nil slice", msgs)
	}
	raw, err := json.Marshal(msgs)
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != "[]" {
		t.Fatalf("marshal = %s, want []", raw)
	}
}

func TestFormatTimestampLayout(t *testing.T) {
	got := formatTimestamp(1700000000.25)
	if !regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}$`).MatchString(got) {
		t.Fatalf("formatted = %q", got)
	}
	parsed, err := time.ParseInLocation(timeLayout, got, time.Local)
	if err != nil {
		t.Fatal(err)
	}
	if parsed.Unix() != 1700000000 {
		t.Fatalf("round-trip second = %d", parsed.Unix())
	}
}

package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

func TestParseEventType(t *testing.T) {
	for _, valid := range []string{"create", "update", "delete"} {
		if _, err := ParseEventType(valid); err != nil {
			t.Errorf("ParseEventType(%q) returned error: %v", valid, err)
		}
	}
	if _, err := ParseEventType("rename"); err == nil {
		t.Error("expected error for unknown event type")
	} else if KindOf(err) != SchemaError {
		t.Errorf("expected SchemaError, got %v", KindOf(err))
	}
}

func TestFileEventRejectsUnknownEventType(t *testing.T) {
	payload := `{"event_type":"moved","relative_path":"a/b.txt","user_id":"u1","timestamp":1.5}`
	var ev FileEvent
	err := json.Unmarshal([]byte(payload), &ev)
	if err == nil {
		t.Fatal("expected unmarshal to fail for unknown event_type")
	}
	if KindOf(err) != SchemaError {
		t.Errorf("expected SchemaError, got %v", KindOf(err))
	}
}

func TestExtractedDocRejectsUnknownStatus(t *testing.T) {
	payload := `{"event_type":"create","relative_path":"a.txt","user_id":"u1","timestamp":1,"status":"pending"}`
	var doc ExtractedDoc
	if err := json.Unmarshal([]byte(payload), &doc); err == nil {
		t.Fatal("expected unmarshal to fail for unknown status")
	}
}

func TestFileEventNullContentRoundTrip(t *testing.T) {
	ev := FileEvent{
		EventType:    EventDelete,
		RelativePath: "docs/gone.txt",
		UserID:       "u1",
		Timestamp:    1724578800.25,
		LikedUsers:   []string{"u2"},
		GitCommitted: true,
		FileContent:  nil,
	}
	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded FileEvent
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.FileContent != nil {
		t.Error("expected file_content to stay null")
	}
	if decoded.EventType != EventDelete {
		t.Errorf("event type = %q, want delete", decoded.EventType)
	}
	if decoded.Timestamp != ev.Timestamp {
		t.Errorf("timestamp = %v, want %v", decoded.Timestamp, ev.Timestamp)
	}
}

func TestMailboxPostKeepsMessageOpaque(t *testing.T) {
	raw := `{"user_list":["u1","u2"],"message":{"event_type":"create","summary":"hi"}}`
	var post MailboxPost
	if err := json.Unmarshal([]byte(raw), &post); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(post.UserList) != 2 {
		t.Errorf("user_list length = %d, want 2", len(post.UserList))
	}
	var echo struct {
		Summary string `json:"summary"`
	}
	if err := json.Unmarshal(post.Message, &echo); err != nil {
		t.Fatalf("message should stay valid JSON: %v", err)
	}
	if echo.Summary != "hi" {
		t.Errorf("summary = %q, want hi", echo.Summary)
	}
}

func TestKindOfUnwrapsNestedErrors(t *testing.T) {
	inner := E(NotFound, "missing file", nil)
	wrapped := fmt.Errorf("handling request: %w", inner)
	if KindOf(wrapped) != NotFound {
		t.Errorf("KindOf = %v, want NotFound", KindOf(wrapped))
	}
	if KindOf(errors.New("plain")) != "" {
		t.Error("plain errors should have no kind")
	}
}

package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType names a filesystem change flowing through the pipeline.
type EventType string

const (
	EventCreate EventType = "create"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
)

// ParseEventType validates a wire tag.
func ParseEventType(s string) (EventType, error) {
	switch EventType(s) {
	case EventCreate, EventUpdate, EventDelete:
		return EventType(s), nil
	}
	return "", E(SchemaError, fmt.Sprintf("unknown event_type %q", s), nil)
}

func (t *EventType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return E(SchemaError, "event_type must be a string", err)
	}
	parsed, err := ParseEventType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// DocStatus reports how preprocessing ended for one document.
type DocStatus string

const (
	StatusProcessed        DocStatus = "processed"
	StatusExtractionFailed DocStatus = "extraction_failed"
	StatusDeleted          DocStatus = "deleted"
)

func (s *DocStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return E(SchemaError, "status must be a string", err)
	}
	switch DocStatus(raw) {
	case StatusProcessed, StatusExtractionFailed, StatusDeleted:
		*s = DocStatus(raw)
		return nil
	}
	return E(SchemaError, fmt.Sprintf("unknown status %q", raw), nil)
}

// Reply status tags shared by every request/reply socket.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Diff classification on update events.
const (
	DiffModification = "modification"
	DiffNewFile      = "new_file"
)

// FileEvent is the watcher's outbound record of one filesystem change.
// FileContent carries base64-encoded raw bytes and is null on delete.
type FileEvent struct {
	EventType    EventType `json:"event_type"`
	RelativePath string    `json:"relative_path"`
	UserID       string    `json:"user_id"`
	Timestamp    float64   `json:"timestamp"`
	LikedUsers   []string  `json:"liked_users"`
	GitCommitted bool      `json:"git_committed"`
	FileContent  *string   `json:"file_content"`
	FileSize     int       `json:"file_size"`
	DiffType     string    `json:"diff_type,omitempty"`
	DiffContent  string    `json:"diff_content,omitempty"`
}

// ExtractedDoc is the preprocessor's outbound record: the file event plus
// extracted plain text. Content is null when status is not processed.
type ExtractedDoc struct {
	EventType          EventType `json:"event_type"`
	RelativePath       string    `json:"relative_path"`
	UserID             string    `json:"user_id"`
	Timestamp          float64   `json:"timestamp"`
	LikedUsers         []string  `json:"liked_users"`
	ProcessedTimestamp float64   `json:"processed_timestamp"`
	Content            *string   `json:"content"`
	ContentLength      int       `json:"content_length"`
	Status             DocStatus `json:"status"`
	DiffType           string    `json:"diff_type,omitempty"`
	DiffContent        string    `json:"diff_content,omitempty"`
}

// Chunk is one contiguous span of a document's extracted text. Offsets are
// rune-based and Text equals the content slice [CharStart, CharEnd).
type Chunk struct {
	ChunkIndex int    `json:"chunk_index"`
	Text       string `json:"text"`
	CharStart  int    `json:"char_start"`
	CharEnd    int    `json:"char_end"`
	WordStart  int    `json:"word_start"`
	WordEnd    int    `json:"word_end"`
}

// Notification is the message body delivered to subscribed users after a
// document is indexed, updated, or removed.
type Notification struct {
	EventType    EventType `json:"event_type"`
	RelativePath string    `json:"relative_path"`
	Summary      string    `json:"summary"`
	Timestamp    float64   `json:"timestamp"`
}

// FileRequest asks the watcher for one file's raw bytes.
type FileRequest struct {
	RelativePath string `json:"relative_path"`
}

// FileReply answers a FileRequest. FileContent is base64-encoded.
type FileReply struct {
	Status       string `json:"status"`
	RelativePath string `json:"relative_path,omitempty"`
	FileName     string `json:"file_name,omitempty"`
	FileSize     int    `json:"file_size,omitempty"`
	FileContent  string `json:"file_content,omitempty"`
	Error        string `json:"error,omitempty"`
}

// TextReply answers an extracted-text fetch against the preprocessor.
type TextReply struct {
	Status        string `json:"status"`
	RelativePath  string `json:"relative_path,omitempty"`
	FileName      string `json:"file_name,omitempty"`
	FileSize      int    `json:"file_size,omitempty"`
	Content       string `json:"content,omitempty"`
	ContentLength int    `json:"content_length,omitempty"`
	Error         string `json:"error,omitempty"`
}

// AccessRequest asks the authorization oracle for one user's readable paths.
type AccessRequest struct {
	UserID string `json:"user_id"`
}

// AccessReply answers an AccessRequest with the user's allow-list.
type AccessReply struct {
	Status   string   `json:"status"`
	PathList []string `json:"pathlist"`
	Error    string   `json:"error,omitempty"`
}

// MailboxPost delivers one message to a list of users. Message is stored
// opaquely and returned byte-for-byte on read.
type MailboxPost struct {
	UserList []string        `json:"user_list"`
	Message  json.RawMessage `json:"message"`
}

// MailboxAck answers a MailboxPost.
type MailboxAck struct {
	Status        string `json:"status"`
	UsersNotified int    `json:"users_notified,omitempty"`
	Error         string `json:"error,omitempty"`
}

// UnixNow returns the current time as fractional Unix seconds, the timestamp
// convention used on every wire payload.
func UnixNow() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}

// Package domain defines the persistence and wire models for chat sessions,
// messages, and feedback. ChatSession is mapped with GORM and mirrors the
// remote "chats" document collection: the message list and the feedback
// snapshot are embedded JSON columns rather than child tables, because the
// document, not the row, is the unit of synchronization.
package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// ServerStatus is the tri-state connectivity status of the answering
// backend. It is process-local and never persisted.
type ServerStatus string

const (
	// StatusChecking is the initial state before the health probe resolves.
	StatusChecking ServerStatus = "checking"
	// StatusOnline permits outgoing sends.
	StatusOnline ServerStatus = "online"
	// StatusOffline blocks outgoing sends client-side.
	StatusOffline ServerStatus = "offline"
)

// Message sender values.
const (
	SenderUser = "user"
	SenderBot  = "bot"
)

// Message kind markers carried on synthetic bot messages.
const (
	MessageTypeWelcome          = "welcome"
	MessageTypeFeedbackResponse = "feedback_response"
)

// Message is a single utterance within a session. Messages are value
// objects embedded in the session document; once appended to a sequence
// they are never rewritten or removed.
//
// Fields:
//   - ID: time-derived identifier (unix milliseconds), unique within one
//     session; collisions inside the same millisecond are bumped by one.
//   - Text / Sender / Timestamp: the utterance itself.
//   - Type: optional synthetic-message marker (welcome, feedback_response).
//   - IsError: marks a locally generated failure notice; never persisted
//     as a real answer.
//   - AssistantID: backend assistant identity, bot messages only.
//   - ShouldAskFeedback: backend's request to solicit feedback for this
//     specific bot message.
type Message struct {
	ID                int64     `json:"id"`
	Text              string    `json:"text"`
	Sender            string    `json:"sender"`
	Timestamp         time.Time `json:"timestamp"`
	Type              string    `json:"type,omitempty"`
	IsError           bool      `json:"isError,omitempty"`
	AssistantID       string    `json:"assistantId,omitempty"`
	ShouldAskFeedback bool      `json:"shouldAskFeedback,omitempty"`
}

// MessageList is the JSON-encoded ordered message sequence of a session.
// Insertion order is the durable conversation order.
type MessageList []Message

// Value implements driver.Valuer, serializing the list as JSON text.
func (l MessageList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner, accepting TEXT or BLOB columns.
func (l *MessageList) Scan(v any) error {
	switch s := v.(type) {
	case nil:
		*l = nil
		return nil
	case string:
		return json.Unmarshal([]byte(s), l)
	case []byte:
		return json.Unmarshal(s, l)
	default:
		return errors.New("domain: unsupported column type for MessageList")
	}
}

// Int64List is a JSON-encoded list of message ids. Used for the
// feedbacksGiven snapshot, which is fully replaced on every write.
type Int64List []int64

// Value implements driver.Valuer.
func (l Int64List) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (l *Int64List) Scan(v any) error {
	switch s := v.(type) {
	case nil:
		*l = nil
		return nil
	case string:
		return json.Unmarshal([]byte(s), l)
	case []byte:
		return json.Unmarshal(s, l)
	default:
		return errors.New("domain: unsupported column type for Int64List")
	}
}

// ChatSession is one logical conversation between a user and the answering
// backend, persisted as one document in the "chats" collection. A session
// document exists in the store if and only if at least one successful
// exchange has completed; sessions are never created empty.
type ChatSession struct {
	ID             string      `json:"id"             gorm:"type:varchar(128);primaryKey"`
	UserID         string      `json:"userId"         gorm:"type:varchar(64);not null;index:idx_user_sessions"`
	Title          string      `json:"title"          gorm:"type:varchar(255);not null"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
	Messages       MessageList `json:"messages"       gorm:"type:text"`
	ThreadID       string      `json:"threadId"       gorm:"type:varchar(128)"`
	Curso          string      `json:"curso"          gorm:"type:varchar(128)"`
	Carrera        string      `json:"carrera"        gorm:"type:varchar(128)"`
	FeedbacksGiven Int64List   `json:"feedbacksGiven" gorm:"type:text"`
}

// TableName returns the database table name for ChatSession.
func (ChatSession) TableName() string { return "chats" }

// HasFeedback reports whether feedback was already recorded for messageID.
func (s *ChatSession) HasFeedback(messageID int64) bool {
	for _, id := range s.FeedbacksGiven {
		if id == messageID {
			return true
		}
	}
	return false
}

// Answer is the answering service's successful reply to a question.
type Answer struct {
	Text              string
	AssistantID       string
	ShouldAskFeedback bool
	ThreadID          string
}

// FeedbackRecord is a single structured satisfaction submission tied to one
// session and one bot message. Write-once; the JSON tags are the feedback
// collaborator's wire format.
type FeedbackRecord struct {
	ChatID         string `json:"chatId"`
	UserID         string `json:"userId"`
	Curso          string `json:"curso"`
	Carrera        string `json:"carrera"`
	Satisfecho     bool   `json:"satisfecho"`
	Comentario     string `json:"comentario"`
	AssistantID    string `json:"assistantId"`
	ThreadID       string `json:"threadId"`
	NumeroMensajes int    `json:"numeroMensajes"`
}

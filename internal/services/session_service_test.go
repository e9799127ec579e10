package services

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/univassist/chat-engine/internal/domain"
	"github.com/univassist/chat-engine/internal/repo"
)

func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("session_service_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func userMsg(id int64, text string) domain.Message {
	return domain.Message{ID: id, Sender: domain.SenderUser, Text: text, Timestamp: time.UnixMilli(id).UTC()}
}

func botMsg(id int64, text string) domain.Message {
	return domain.Message{ID: id, Sender: domain.SenderBot, Text: text, Timestamp: time.UnixMilli(id).UTC()}
}

func TestAppend_CreatesDocumentOnFirstExchange(t *testing.T) {
	db := newServiceDB(t)
	svc := NewSessionService(db)
	svc.now = func() time.Time { return time.UnixMilli(1700000000000) }
	ctx := context.Background()

	conv := &domain.ChatSession{
		UserID:   "u1",
		Curso:    "Taller de Proyecto 1",
		Carrera:  "Ingeniería de Software",
		Messages: domain.MessageList{botMsg(1, "¡Hola!")}, // welcome, pre-exchange
	}
	pair := []domain.Message{userMsg(2, "¿Cuáles son los temas?"), botMsg(3, "Los temas son...")}

	id, err := svc.Append(ctx, conv, pair, "thread_9")
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if id != "u1_1700000000000" {
		t.Fatalf("synthesized id = %q", id)
	}

	doc, err := svc.Load(ctx, id, "u1")
	if err != nil {
		t.Fatalf("load after create: %v", err)
	}
	// Full document: welcome + pair, in order.
	if len(doc.Messages) != 3 || doc.Messages[1].Text != "¿Cuáles son los temas?" {
		t.Fatalf("document messages: %+v", doc.Messages)
	}
	if doc.Title != "¿Cuáles son los temas?" {
		t.Fatalf("title = %q", doc.Title)
	}
	if doc.ThreadID != "thread_9" || doc.Curso != "Taller de Proyecto 1" {
		t.Fatalf("metadata: %+v", doc)
	}
}

func TestAppend_MergesIntoExistingDocument(t *testing.T) {
	db := newServiceDB(t)
	svc := NewSessionService(db)
	ctx := context.Background()

	conv := &domain.ChatSession{
		UserID:   "u1",
		Messages: domain.MessageList{userMsg(1, "q1"), botMsg(2, "a1")},
	}
	id, err := svc.Append(ctx, conv, conv.Messages, "")
	if err != nil {
		t.Fatalf("first append: %v", err)
	}
	conv.ID = id

	// Second exchange transmits only the new pair.
	pair := []domain.Message{userMsg(3, "q2"), botMsg(4, "a2")}
	got, err := svc.Append(ctx, conv, pair, "thread_2")
	if err != nil {
		t.Fatalf("second append: %v", err)
	}
	if got != id {
		t.Fatalf("identity must be stable, got %q want %q", got, id)
	}

	doc, _ := svc.Load(ctx, id, "u1")
	if len(doc.Messages) != 4 || doc.Messages[3].Text != "a2" {
		t.Fatalf("merge result: %+v", doc.Messages)
	}
	if doc.ThreadID != "thread_2" {
		t.Fatalf("thread id not updated: %q", doc.ThreadID)
	}
}

func TestAppend_RoundTripPreservesOrder(t *testing.T) {
	db := newServiceDB(t)
	svc := NewSessionService(db)
	ctx := context.Background()

	conv := &domain.ChatSession{UserID: "u1"}
	var want []string
	for i := 0; i < 3; i++ {
		pair := []domain.Message{
			userMsg(int64(10+2*i), fmt.Sprintf("q%d", i)),
			botMsg(int64(11+2*i), fmt.Sprintf("a%d", i)),
		}
		want = append(want, pair[0].Text, pair[1].Text)

		id, err := svc.Append(ctx, conv, pair, "")
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		conv.ID = id
		conv.Messages = append(conv.Messages, pair...)
	}

	doc, err := svc.Load(ctx, conv.ID, "u1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	for i, m := range doc.Messages {
		if m.Text != want[i] {
			t.Fatalf("persisted order diverged at %d: got %q want %q", i, m.Text, want[i])
		}
	}
}

func TestLoad_NotFoundAndForbidden(t *testing.T) {
	db := newServiceDB(t)
	svc := NewSessionService(db)
	ctx := context.Background()

	if _, err := svc.Load(ctx, "missing", "u1"); err != ErrSessionNotFound {
		t.Fatalf("want ErrSessionNotFound, got %v", err)
	}

	conv := &domain.ChatSession{UserID: "owner"}
	id, err := svc.Append(ctx, conv, []domain.Message{userMsg(1, "q"), botMsg(2, "a")}, "")
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	if _, err := svc.Load(ctx, id, "intruder"); err != ErrForbiddenSession {
		t.Fatalf("want ErrForbiddenSession, got %v", err)
	}
}

func TestMarkFeedbackGiven_ReplacesSnapshot(t *testing.T) {
	db := newServiceDB(t)
	svc := NewSessionService(db)
	ctx := context.Background()

	conv := &domain.ChatSession{UserID: "u1"}
	id, err := svc.Append(ctx, conv, []domain.Message{userMsg(1, "q"), botMsg(2, "a")}, "")
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	if err := svc.MarkFeedbackGiven(ctx, id, []int64{2}); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if err := svc.MarkFeedbackGiven(ctx, id, []int64{2, 9}); err != nil {
		t.Fatalf("mark again: %v", err)
	}

	doc, _ := svc.Load(ctx, id, "u1")
	if len(doc.FeedbacksGiven) != 2 || doc.FeedbacksGiven[1] != 9 {
		t.Fatalf("snapshot: %v", doc.FeedbacksGiven)
	}
}

func TestDeriveTitle(t *testing.T) {
	svc := NewSessionService(nil)

	long := strings.Repeat("pregunta ", 10) // 90 runes
	longCapped := "P" + collapseWhitespace(long)[1:]
	cases := map[string]struct {
		messages domain.MessageList
		want     string
	}{
		"first user message": {
			domain.MessageList{botMsg(1, "¡Hola!"), userMsg(2, "¿Qué material hay?")},
			"¿Qué material hay?",
		},
		"leading letter capitalized past punctuation": {
			domain.MessageList{userMsg(1, "¿qué material hay?")},
			"¿Qué material hay?",
		},
		"no user message": {
			domain.MessageList{botMsg(1, "¡Hola!")},
			defaultTitle,
		},
		"long message truncated": {
			domain.MessageList{userMsg(1, long)},
			string([]rune(longCapped)[:50]) + "...",
		},
		"whitespace collapsed": {
			domain.MessageList{userMsg(1, "  hola \n  mundo ")},
			"Hola mundo",
		},
	}

	for name, tc := range cases {
		if got := svc.deriveTitle(tc.messages); got != tc.want {
			t.Errorf("%s: deriveTitle = %q, want %q", name, got, tc.want)
		}
	}
}

func TestListPage(t *testing.T) {
	db := newServiceDB(t)
	svc := NewSessionService(db)
	ctx := context.Background()

	items, total, err := svc.ListPage(ctx, "u1", 0, 0)
	if err != nil || total != 0 || len(items) != 0 {
		t.Fatalf("empty list: %v %d %v", items, total, err)
	}

	for i := 0; i < 3; i++ {
		conv := &domain.ChatSession{UserID: "u1"}
		svc.now = func() time.Time { return time.UnixMilli(int64(1000 + i)) }
		if _, err := svc.Append(ctx, conv, []domain.Message{userMsg(int64(i*2+1), "q"), botMsg(int64(i*2+2), "a")}, ""); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	items, total, err = svc.ListPage(ctx, "u1", 1, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 3 || len(items) != 2 {
		t.Fatalf("page = %d items, total %d", len(items), total)
	}
}

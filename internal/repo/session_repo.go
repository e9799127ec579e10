// Package repo implements the session document store, backed by GORM over
// pure-Go SQLite. This file provides the repository functions for the
// ChatSession document.
//
// The store's contract mirrors a document database with an additive-merge
// primitive on the message list: AppendMessages unions new messages into
// the stored sequence by message id inside a transaction, so concurrent
// appends from different devices never overwrite each other's lists.
// Scalar fields (updatedAt, threadId, curso, carrera) are last-writer-wins.
//
// Error semantics:
//   - A missing session surfaces as ErrNotFound (gorm.ErrRecordNotFound).
//   - Ownership is NOT checked here; the service layer distinguishes
//     NotFound from Forbidden because it needs the stored owner to decide.
package repo

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/univassist/chat-engine/internal/domain"
)

// ErrNotFound is returned when a requested session document does not exist.
// It aliases gorm.ErrRecordNotFound for convenience across layers.
var ErrNotFound = gorm.ErrRecordNotFound

// NewSessionID synthesizes a session identity from the owner and a
// timestamp in the `<ownerID>_<unixMillis>` form. The owner prefix makes
// identities self-describing in logs and URLs.
func NewSessionID(userID string, now time.Time) string {
	return fmt.Sprintf("%s_%d", userID, now.UnixMilli())
}

// GetSession fetches a session document by id regardless of owner.
// Returns ErrNotFound when the document does not exist.
func GetSession(ctx context.Context, db *gorm.DB, id string) (*domain.ChatSession, error) {
	var s domain.ChatSession
	if err := db.WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateSession writes a brand-new session document in full. The caller is
// responsible for having synthesized the id and accumulated all messages
// exchanged so far.
func CreateSession(ctx context.Context, db *gorm.DB, s *domain.ChatSession) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	s.UpdatedAt = s.CreatedAt
	return db.WithContext(ctx).Create(s).Error
}

// AppendMessages merges newMessages into the stored message list of the
// session identified by id, and refreshes the thread/profile metadata.
//
// The merge is additive: messages whose id is already present are skipped,
// never rewritten, and the stored order is preserved with new messages
// appended. The read-merge-write runs inside one transaction.
func AppendMessages(ctx context.Context, db *gorm.DB, id string, newMessages []domain.Message, threadID, curso, carrera string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var s domain.ChatSession
		if err := tx.Where("id = ?", id).First(&s).Error; err != nil {
			return err
		}

		seen := make(map[int64]struct{}, len(s.Messages))
		for _, m := range s.Messages {
			seen[m.ID] = struct{}{}
		}
		merged := s.Messages
		for _, m := range newMessages {
			if _, dup := seen[m.ID]; dup {
				continue
			}
			merged = append(merged, m)
			seen[m.ID] = struct{}{}
		}

		updates := map[string]any{
			"messages":   merged,
			"updated_at": time.Now().UTC(),
		}
		if threadID != "" {
			updates["thread_id"] = threadID
		}
		if curso != "" {
			updates["curso"] = curso
		}
		if carrera != "" {
			updates["carrera"] = carrera
		}
		return tx.Model(&domain.ChatSession{}).Where("id = ?", id).Updates(updates).Error
	})
}

// ReplaceFeedbackGiven overwrites the feedbacksGiven snapshot of a session
// with the provided array. Unlike the message list this field is fully
// replaced on every write, not additively merged.
func ReplaceFeedbackGiven(ctx context.Context, db *gorm.DB, id string, given domain.Int64List) error {
	res := db.WithContext(ctx).
		Model(&domain.ChatSession{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"feedbacks_given": given,
			"updated_at":      time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CountSessions returns the total number of sessions owned by userID.
func CountSessions(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.ChatSession{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	return total, err
}

// ListSessionsPage returns a paginated slice of a user's sessions, most
// recently updated first. The caller computes offset and limit.
func ListSessionsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.ChatSession, error) {
	var out []domain.ChatSession
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// SessionsStats returns aggregate metadata for a user's sessions: the row
// count and the greatest UpdatedAt among them. Used for weak ETags on the
// history listing. When the user has no sessions, maxUpdatedAt is nil.
func SessionsStats(ctx context.Context, db *gorm.DB, userID string) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.ChatSession{}).Where("user_id = ?", userID)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Avoid MAX() -> TEXT coercion in SQLite.
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}

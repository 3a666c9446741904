package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	maxUserAgentLen = 512
	maxPlatformLen  = 64
	DefaultListSize = 50
)

type store interface {
	Insert(ctx context.Context, s SignIn) error
	ListByUser(ctx context.Context, userID string, limit int) ([]SignIn, error)
}

type Recorder struct {
	store store
	now   func() time.Time
}

func NewRecorder(store *Repository) *Recorder {
	return &Recorder{store: store, now: time.Now}
}

// Record appends a sign-in for userID. The partition is a pure function of
// userAgent.
func (r *Recorder) Record(ctx context.Context, userID, userAgent, platform string) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate uuid v7: %w", err)
	}

	return r.store.Insert(ctx, SignIn{
		ID:         id.String(),
		UserID:     userID,
		UserAgent:  clip(userAgent, maxUserAgentLen),
		Platform:   clip(platform, maxPlatformLen),
		DeviceType: Classify(userAgent),
		LoginedAt:  r.now().UTC(),
	})
}

// List returns up to limit sign-ins of userID, newest first.
func (r *Recorder) List(ctx context.Context, userID string, limit int) ([]SignIn, error) {
	if limit <= 0 || limit > DefaultListSize {
		limit = DefaultListSize
	}
	return r.store.ListByUser(ctx, userID, limit)
}

func clip(value string, limit int) string {
	value = strings.TrimSpace(value)
	if len(value) <= limit {
		return value
	}
	return strings.ToValidUTF8(value[:limit], "")
}

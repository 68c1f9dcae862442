// Package access issues and validates one-time meeting join links.
package access

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/classmeet/backend/internal/models"
	"github.com/classmeet/backend/pkg/utils"
)

// DefaultTokenLength is used when the configured length is not positive.
const DefaultTokenLength = 32

// Store persists access links.
type Store interface {
	Create(ctx context.Context, l *models.AccessLink) error
	GetByToken(ctx context.Context, token string) (*models.AccessLink, error)
	MarkUsed(ctx context.Context, l *models.AccessLink) (bool, error)
}

// Issuer creates a link per allocated participant.
type Issuer struct {
	store       Store
	baseURL     string
	tokenLength int
	now         func() time.Time
}

// NewIssuer creates an issuer that builds links as baseURL/token.
func NewIssuer(store Store, baseURL string, tokenLength int) *Issuer {
	if tokenLength <= 0 {
		tokenLength = DefaultTokenLength
	}
	return &Issuer{store: store, baseURL: strings.TrimRight(baseURL, "/"), tokenLength: tokenLength, now: time.Now}
}

// Issue stores a fresh token for the user that expires when the meeting is purged and
// returns the join URL.
func (i *Issuer) Issue(ctx context.Context, m *models.Meeting, userID uuid.UUID) (string, error) {
	token, err := utils.NewToken(i.tokenLength)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	expires := m.DeleteAt
	if expires.IsZero() {
		expires = i.now().Add(24 * time.Hour)
	}
	l := &models.AccessLink{MeetingID: m.ID, UserID: userID, Token: token, ExpiresAt: expires}
	if err := i.store.Create(ctx, l); err != nil {
		return "", fmt.Errorf("store access link: %w", err)
	}
	return i.baseURL + "/" + token, nil
}

package meet

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/linguadesk/internal/ids"
)

// TTL is how long a meeting code stays resolvable after creation.
const TTL = 24 * time.Hour

// MaxCodeAttempts bounds how many fresh codes Create tries after a collision.
const MaxCodeAttempts = 5

var (
	ErrNotFound      = errors.New("meeting not found")
	ErrCodeTaken     = errors.New("meeting code already in use")
	ErrCodeExhausted = errors.New("could not allocate a unique meeting code")
)

type Session struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	OwnerID   string    `json:"ownerId"`
	DocID     *string   `json:"docId"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}

// View is what anyone holding the code gets back: a pointer to the bound
// document's share link, never the document itself.
type View struct {
	ID          string    `json:"id"`
	Code        string    `json:"code"`
	DocID       *string   `json:"docId"`
	SharedToken *string   `json:"sharedToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
	CreatedAt   time.Time `json:"createdAt"`
}

type CreateSessionRequest struct {
	DocID *string `json:"docId" binding:"omitempty,max=64"`
}

// New does not check that docID exists or belongs to ownerID.
func New(ownerID string, docID *string, now time.Time) Session {
	if docID != nil && *docID == "" {
		docID = nil
	}

	return Session{
		ID:        ids.NewID(),
		Code:      ids.NewMeetCode(),
		OwnerID:   ownerID,
		DocID:     docID,
		ExpiresAt: now.Add(TTL),
		CreatedAt: now,
	}
}

func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

func (s Session) View(sharedToken *string) View {
	return View{
		ID:          s.ID,
		Code:        s.Code,
		DocID:       s.DocID,
		SharedToken: sharedToken,
		ExpiresAt:   s.ExpiresAt,
		CreatedAt:   s.CreatedAt,
	}
}

// Allocate builds sessions and offers them to insert until one is accepted.
// insert reports ErrCodeTaken for a code collision; any other error aborts.
func Allocate(ctx context.Context, build func() Session, insert func(context.Context, Session) error) (Session, error) {
	for attempt := 0; attempt < MaxCodeAttempts; attempt++ {
		s := build()

		err := insert(ctx, s)
		if err == nil {
			return s, nil
		}

		if !errors.Is(err, ErrCodeTaken) {
			return Session{}, err
		}
	}

	return Session{}, ErrCodeExhausted
}

type SessionReader interface {
	Resolve(ctx context.Context, code string) (Session, *string, error)
}

// Lookup resolves a public code as of now. Malformed, unknown and expired
// codes are all ErrNotFound.
func Lookup(ctx context.Context, r SessionReader, code string, now time.Time) (View, error) {
	if !ids.IsMeetCode(code) {
		return View{}, ErrNotFound
	}

	s, token, err := r.Resolve(ctx, code)
	if err != nil {
		return View{}, err
	}

	if s.Expired(now) {
		return View{}, ErrNotFound
	}

	return s.View(token), nil
}

package memory

import (
	"context"
	"sync"
	"time"

	"github.com/geocoder89/linguadesk/internal/domain/meet"
)

type SharedTokenLookup interface {
	SharedTokenFor(ctx context.Context, docID string) (*string, error)
}

type MeetRepo struct {
	mu     sync.RWMutex
	byCode map[string]meet.Session
	docs   SharedTokenLookup
	now    func() time.Time

	// newCode overrides code generation in tests
	newCode func() string
}

func NewMeetRepo(docs SharedTokenLookup) *MeetRepo {
	return &MeetRepo{
		byCode: make(map[string]meet.Session),
		docs:   docs,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (r *MeetRepo) Create(ctx context.Context, ownerID string, docID *string) (meet.Session, error) {
	build := func() meet.Session {
		s := meet.New(ownerID, docID, r.now())
		if r.newCode != nil {
			s.Code = r.newCode()
		}
		return s
	}

	return meet.Allocate(ctx, build, r.insert)
}

func (r *MeetRepo) insert(_ context.Context, s meet.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byCode[s.Code]; taken {
		return meet.ErrCodeTaken
	}

	r.byCode[s.Code] = s
	return nil
}

// Resolve returns the session for code and the bound document's share token, if any.
func (r *MeetRepo) Resolve(ctx context.Context, code string) (meet.Session, *string, error) {
	r.mu.RLock()
	s, ok := r.byCode[code]
	r.mu.RUnlock()

	if !ok {
		return meet.Session{}, nil, meet.ErrNotFound
	}

	if s.DocID == nil || r.docs == nil {
		return s, nil, nil
	}

	token, err := r.docs.SharedTokenFor(ctx, *s.DocID)
	if err != nil {
		return meet.Session{}, nil, err
	}

	return s, token, nil
}

package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/geocoder89/linguadesk/internal/config"
	"github.com/geocoder89/linguadesk/internal/domain/meet"
	"github.com/gin-gonic/gin"
)

type MeetStore interface {
	Create(ctx context.Context, ownerID string, docID *string) (meet.Session, error)
	Resolve(ctx context.Context, code string) (meet.Session, *string, error)
}

type MeetHandler struct {
	repo MeetStore
	now  func() time.Time
}

func NewMeetHandler(repo MeetStore) *MeetHandler {
	return &MeetHandler{repo: repo, now: time.Now}
}

// WithClock replaces the time source used for expiry checks.
func (h *MeetHandler) WithClock(now func() time.Time) *MeetHandler {
	if now != nil {
		h.now = now
	}
	return h
}

func (h *MeetHandler) CreateSession(ctx *gin.Context) {
	ownerID, ok := requesterID(ctx)
	if !ok {
		return
	}

	var req meet.CreateSessionRequest

	if !BindOptionalJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeoutFrom(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	s, err := h.repo.Create(cctx, ownerID, req.DocID)
	if err != nil {
		if errors.Is(err, meet.ErrCodeExhausted) {
			logFailure(ctx, "meeting code space exhausted", err)
		} else {
			logFailure(ctx, "create meeting failed", err)
		}
		RespondInternal(ctx, "Could not create meeting")
		return
	}

	ctx.JSON(http.StatusCreated, s)
}

func (h *MeetHandler) ResolveSession(ctx *gin.Context) {
	code := strings.ToUpper(strings.TrimSpace(ctx.Param("code")))

	cctx, cancel := config.WithTimeoutFrom(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	v, err := meet.Lookup(cctx, h.repo, code, h.now().UTC())
	if err != nil {
		if errors.Is(err, meet.ErrNotFound) {
			RespondNotFound(ctx, "Meeting not found")
			return
		}
		logFailure(ctx, "resolve meeting failed", err)
		RespondInternal(ctx, "Could not fetch meeting")
		return
	}

	ctx.JSON(http.StatusOK, v)
}

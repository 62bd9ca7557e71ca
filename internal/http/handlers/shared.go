package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/geocoder89/linguadesk/internal/config"
	"github.com/geocoder89/linguadesk/internal/domain/document"
	"github.com/gin-gonic/gin"
)

type SharedResolver interface {
	Resolve(ctx context.Context, token string) (document.View, error)
}

type SharedHandler struct {
	resolver SharedResolver
}

func NewSharedHandler(resolver SharedResolver) *SharedHandler {
	return &SharedHandler{resolver: resolver}
}

// GetShared serves the read-only projection to anyone holding the token.
func (h *SharedHandler) GetShared(ctx *gin.Context) {
	cctx, cancel := config.WithTimeoutFrom(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	v, err := h.resolver.Resolve(cctx, ctx.Param("token"))
	if err != nil {
		if errors.Is(err, document.ErrNotFound) {
			RespondNotFound(ctx, "Document not found")
			return
		}
		logFailure(ctx, "resolve shared document failed", err)
		RespondInternal(ctx, "Could not fetch document")
		return
	}

	etag, ok := viewETag(v)
	if !ok {
		ctx.JSON(http.StatusOK, v)
		return
	}

	respondWithETag(ctx, etag, v)
}

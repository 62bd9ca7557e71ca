package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/linguadesk/internal/config"
	"github.com/geocoder89/linguadesk/internal/domain/document"
	"github.com/geocoder89/linguadesk/internal/http/middlewares"
	"github.com/geocoder89/linguadesk/internal/observability"
	"github.com/gin-gonic/gin"
)

type DocumentStore interface {
	ListByOwner(ctx context.Context, ownerID string) ([]document.Document, error)
	Create(ctx context.Context, ownerID, title string) (document.Document, error)
	GetOwned(ctx context.Context, id, requesterID string) (document.Document, error)
	Replace(ctx context.Context, id, requesterID string, patch document.Patch) (document.Document, error)
	Delete(ctx context.Context, id, requesterID string) error
}

// ShareInvalidator drops cached public views after a shared document changes.
type ShareInvalidator interface {
	Invalidate(ctx context.Context, token string)
}

type DocsHandler struct {
	repo   DocumentStore
	shares ShareInvalidator
}

func NewDocsHandler(repo DocumentStore, shares ShareInvalidator) *DocsHandler {
	return &DocsHandler{repo: repo, shares: shares}
}

func requesterID(ctx *gin.Context) (string, bool) {
	id, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Missing identity")
		return "", false
	}
	return id, true
}

// documentParam reads :id and tags the request's log records with it.
func documentParam(ctx *gin.Context) string {
	id := ctx.Param("id")
	ctx.Request = ctx.Request.WithContext(
		observability.WithLogAttrs(ctx.Request.Context(), slog.String("doc_id", id)),
	)
	return id
}

func (h *DocsHandler) ListDocuments(ctx *gin.Context) {
	ownerID, ok := requesterID(ctx)
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeoutFrom(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	docs, err := h.repo.ListByOwner(cctx, ownerID)
	if err != nil {
		logFailure(ctx, "list documents failed", err)
		RespondInternal(ctx, "Could not list documents")
		return
	}

	ctx.JSON(http.StatusOK, docs)
}

func (h *DocsHandler) CreateDocument(ctx *gin.Context) {
	ownerID, ok := requesterID(ctx)
	if !ok {
		return
	}

	var req document.CreateDocumentRequest

	if !BindOptionalJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeoutFrom(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	d, err := h.repo.Create(cctx, ownerID, req.Title)
	if err != nil {
		logFailure(ctx, "create document failed", err)
		RespondInternal(ctx, "Could not create document")
		return
	}

	ctx.JSON(http.StatusCreated, d)
}

func (h *DocsHandler) GetDocument(ctx *gin.Context) {
	ownerID, ok := requesterID(ctx)
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeoutFrom(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	d, err := h.repo.GetOwned(cctx, documentParam(ctx), ownerID)
	if err != nil {
		h.respondStoreError(ctx, "get document failed", "Could not fetch document", err)
		return
	}

	respondWithETag(ctx, documentETag(d), d)
}

func (h *DocsHandler) UpdateDocument(ctx *gin.Context) {
	ownerID, ok := requesterID(ctx)
	if !ok {
		return
	}

	var patch document.Patch

	if !BindJSON(ctx, &patch) {
		return
	}

	cctx, cancel := config.WithTimeoutFrom(ctx.Request.Context(), 5*time.Second)
	defer cancel()

	d, err := h.repo.Replace(cctx, documentParam(ctx), ownerID, patch)
	if err != nil {
		if errors.Is(err, document.ErrInvalidPage) {
			RespondBadRequest(ctx, err.Error(), nil)
			return
		}
		h.respondStoreError(ctx, "update document failed", "Could not update document", err)
		return
	}

	if d.SharedToken != nil {
		h.invalidate(ctx, *d.SharedToken)
	}

	ctx.JSON(http.StatusOK, d)
}

func (h *DocsHandler) DeleteDocument(ctx *gin.Context) {
	ownerID, ok := requesterID(ctx)
	if !ok {
		return
	}

	id := documentParam(ctx)

	cctx, cancel := config.WithTimeoutFrom(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	// read first: the token is gone with the row
	d, err := h.repo.GetOwned(cctx, id, ownerID)
	if err != nil {
		h.respondStoreError(ctx, "delete document failed", "Could not delete document", err)
		return
	}

	if err := h.repo.Delete(cctx, id, ownerID); err != nil {
		h.respondStoreError(ctx, "delete document failed", "Could not delete document", err)
		return
	}

	if d.SharedToken != nil {
		h.invalidate(ctx, *d.SharedToken)
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true})
}

// respondStoreError maps missing and foreign documents to the same 404.
func (h *DocsHandler) respondStoreError(ctx *gin.Context, logMsg, message string, err error) {
	if errors.Is(err, document.ErrNotFound) {
		RespondNotFound(ctx, "Document not found")
		return
	}

	logFailure(ctx, logMsg, err)
	RespondInternal(ctx, message)
}

func (h *DocsHandler) invalidate(ctx *gin.Context, token string) {
	if h.shares == nil {
		return
	}

	// detached from the request so a client disconnect cannot leave a stale view
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx.Request.Context()), 2*time.Second)
	defer cancel()

	h.shares.Invalidate(cctx, token)
}

package handlers

import (
	"net/http"
	"strings"

	"github.com/geocoder89/linguadesk/internal/translate"
	"github.com/gin-gonic/gin"
)

type TranslateHandler struct {
	translator translate.Translator
}

func NewTranslateHandler(translator translate.Translator) *TranslateHandler {
	return &TranslateHandler{translator: translator}
}

// Translate is a pass-through to the configured translator. Upstream details
// never reach the client.
func (h *TranslateHandler) Translate(ctx *gin.Context) {
	var req translate.Request

	if !BindJSON(ctx, &req) {
		return
	}

	if strings.TrimSpace(req.Text) == "" {
		RespondBadRequest(ctx, "Missing text", nil)
		return
	}

	out, err := h.translator.Translate(ctx.Request.Context(), req.WithDefaults())
	if err != nil {
		logFailure(ctx, "translate failed", err)
		RespondError(ctx, http.StatusInternalServerError, "translation_failed", "Translation failed", nil)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"translation": out})
}

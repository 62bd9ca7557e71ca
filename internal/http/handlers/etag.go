package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/geocoder89/linguadesk/internal/domain/document"
	"github.com/gin-gonic/gin"
)

// documentETag versions an owner's document. Every Replace bumps UpdatedAt,
// so id + UpdatedAt changes exactly when the stored document does.
func documentETag(d document.Document) string {
	return `"` + d.ID + "." + strconv.FormatInt(d.UpdatedAt.UnixNano(), 36) + `"`
}

// viewETag hashes the shared projection; it carries no timestamp to version by.
func viewETag(v document.View) (string, bool) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", false
	}

	sum := sha256.Sum256(b)

	return `"` + hex.EncodeToString(sum[:16]) + `"`, true
}

// respondWithETag answers 304 when the client already holds this version.
// Autosaving editors re-read documents often and most reads are unchanged.
func respondWithETag(ctx *gin.Context, etag string, payload any) {
	ctx.Header("ETag", etag)
	ctx.Header("Cache-Control", "private, no-cache")

	if ifNoneMatchMatches(ctx.GetHeader("If-None-Match"), etag) {
		ctx.Status(http.StatusNotModified)
		return
	}

	ctx.JSON(http.StatusOK, payload)
}

func ifNoneMatchMatches(headerValue, currentETag string) bool {
	if strings.TrimSpace(headerValue) == "" || strings.TrimSpace(currentETag) == "" {
		return false
	}

	if strings.TrimSpace(headerValue) == "*" {
		return true
	}

	current := normalizeETag(currentETag)

	for _, part := range strings.Split(headerValue, ",") {
		if normalizeETag(part) == current {
			return true
		}
	}

	return false
}

func normalizeETag(raw string) string {
	v := strings.TrimSpace(raw)

	// weak validators (W/"...") compare equal for GET
	return strings.TrimSpace(strings.TrimPrefix(v, "W/"))
}

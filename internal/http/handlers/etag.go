package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/geocoder89/clubevents/internal/domain/event"
	"github.com/gin-gonic/gin"
)

// RespondEventWithETag tags a single event with its store version, so the
// validator changes exactly when the stored record does.
func RespondEventWithETag(ctx *gin.Context, e event.Event) {
	respondWithETag(ctx, eventETag(e), e)
}

// RespondJSONWithETag hashes the rendered payload; used for lists.
func RespondJSONWithETag(ctx *gin.Context, payload any) {
	b, err := json.Marshal(payload)
	if err != nil {
		ctx.JSON(http.StatusOK, payload)
		return
	}
	sum := sha256.Sum256(b)
	respondWithETag(ctx, `"`+hex.EncodeToString(sum[:16])+`"`, payload)
}

func respondWithETag(ctx *gin.Context, etag string, payload any) {
	ctx.Header("ETag", etag)

	if ifNoneMatchMatches(ctx.GetHeader("If-None-Match"), etag) {
		ctx.Status(http.StatusNotModified)
		return
	}

	ctx.JSON(http.StatusOK, payload)
}

func eventETag(e event.Event) string {
	return `"` + e.ID + "-v" + strconv.Itoa(e.Version) + `"`
}

func ifNoneMatchMatches(headerValue, currentETag string) bool {
	headerValue = strings.TrimSpace(headerValue)
	if headerValue == "" {
		return false
	}
	if headerValue == "*" {
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

// normalizeETag drops the weak prefix; If-None-Match uses weak comparison.
func normalizeETag(raw string) string {
	return strings.TrimPrefix(strings.TrimSpace(raw), "W/")
}

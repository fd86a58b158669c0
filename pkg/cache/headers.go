package cache

import (
	"net/http"
	"strconv"
	"strings"
)

const (
	HeaderCacheTags     = "Cache-Tags"
	HeaderCacheContexts = "X-Cache-Contexts"
	HeaderCacheControl  = "Cache-Control"
	HeaderAttachments   = "X-Attachments"

	// permanentTTL is what a permanent fragment advertises to HTTP caches.
	permanentTTL = 31536000
)

// CacheControl returns the Cache-Control value matching age.
func CacheControl(age MaxAge) string {
	switch age = age.normalize(); {
	case !age.Cacheable():
		return "must-revalidate, no-cache, private"
	case age == MaxAgePermanent:
		return "max-age=" + strconv.Itoa(permanentTTL) + ", public"
	default:
		return "max-age=" + strconv.Itoa(int(age)) + ", public"
	}
}

// WriteHeaders exposes the bubbled metadata of a response as HTTP headers.
// Empty tag, context and attachment lists produce no header.
func WriteHeaders(h http.Header, b Bubbleable) {
	if len(b.Tags) > 0 {
		h.Set(HeaderCacheTags, strings.Join(b.Tags, " "))
	}
	if len(b.Contexts) > 0 {
		h.Set(HeaderCacheContexts, strings.Join(b.Contexts, " "))
	}
	if len(b.Attachments) > 0 {
		h.Set(HeaderAttachments, b.Attachments.String())
	}
	h.Set(HeaderCacheControl, CacheControl(b.MaxAge))
}

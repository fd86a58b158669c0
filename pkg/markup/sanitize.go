package markup

import (
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	adminPolicyOnce sync.Once
	adminPolicy     *bluemonday.Policy
)

// Sanitize filters raw through the admin allow-list: user-generated content
// elements plus the structural tags themes emit. Scripts, event handlers and
// unsafe URL schemes are removed.
func Sanitize(raw string) HTML {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	return HTML(adminSanitizer().Sanitize(raw))
}

func adminSanitizer() *bluemonday.Policy {
	adminPolicyOnce.Do(func() {
		adminPolicy = newAdminPolicy()
	})
	return adminPolicy
}

func newAdminPolicy(extra ...string) *bluemonday.Policy {
	policy := bluemonday.UGCPolicy()
	policy.AllowElements(
		"article", "aside", "details", "figcaption", "figure", "footer",
		"header", "main", "mark", "nav", "section", "summary", "time",
	)
	if len(extra) > 0 {
		policy.AllowElements(extra...)
	}
	policy.AllowAttrs("class", "id", "role", "title").Globally()
	policy.AllowDataAttributes()
	policy.AllowAttrs("datetime").OnElements("time")
	return policy
}

// NewSanitizer returns a filter using the admin allow-list extended with
// elements. With no extra elements it is Sanitize.
func NewSanitizer(elements ...string) func(string) HTML {
	if len(elements) == 0 {
		return Sanitize
	}
	policy := newAdminPolicy(elements...)
	return func(raw string) HTML {
		if strings.TrimSpace(raw) == "" {
			return ""
		}
		return HTML(policy.Sanitize(raw))
	}
}

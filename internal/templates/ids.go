package templates

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]`)

// NewTemplateID derives a storage key from the template name: the name
// lower-cased with every other character replaced by '-', cut to 20
// characters, followed by the creation time in base 36 milliseconds.
func NewTemplateID(name string, now time.Time) string {
	slug := nonSlugChars.ReplaceAllString(strings.ToLower(name), "-")
	if len(slug) > 20 {
		slug = slug[:20]
	}
	return slug + "-" + strconv.FormatInt(now.UnixMilli(), 36)
}

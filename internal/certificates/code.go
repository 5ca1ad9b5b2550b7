package certificates

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"certificate-studio/generator-backend/internal/templates"
)

const base36Digits = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewCertificateCode returns cert_<base36 millis>_<6 random base36 chars>.
func NewCertificateCode(now time.Time) string {
	random := uuid.New()
	suffix := make([]byte, 6)
	for i := range suffix {
		suffix[i] = base36Digits[int(random[i])%len(base36Digits)]
	}
	return "cert_" + strconv.FormatInt(now.UnixMilli(), 36) + "_" + string(suffix)
}

var unsafeFileChars = regexp.MustCompile(`[\x00-\x1f\x7f/\\:*?"<>|]+`)

// FileNameFor names the PDF after the recipient:
// certificate-<name>.pdf, or certificate-generated.pdf when there is no
// name. The name is the value of the field with ID "name", falling back to
// the first field of kind name.
func FileNameFor(tpl *templates.Template, values map[string]string) string {
	name := ""
	if tpl != nil {
		if v, ok := tpl.ValueFor(values, "name"); ok {
			name = v
		} else {
			for _, f := range tpl.Fields {
				if f.Kind == templates.FieldKindName {
					name, _ = tpl.ValueFor(values, f.ID)
					break
				}
			}
		}
	}

	name = strings.TrimSpace(unsafeFileChars.ReplaceAllString(name, "-"))
	if name == "" {
		name = "generated"
	}
	return "certificate-" + name + ".pdf"
}

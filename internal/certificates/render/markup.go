package render

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

// blockTags start and end a line of their own.
var blockTags = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "ul": true, "ol": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"blockquote": true, "pre": true, "tr": true, "table": true, "hr": true,
	"section": true, "article": true, "header": true, "footer": true,
}

type markupConverter struct {
	policy *bluemonday.Policy
}

func newMarkupConverter() *markupConverter {
	return &markupConverter{policy: bluemonday.UGCPolicy()}
}

// Lines turns substituted element content into the lines to draw.
func (m *markupConverter) Lines(content string, mode MarkupMode) []string {
	if mode == MarkupLiteral {
		return strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")
	}
	return htmlLines(m.policy.Sanitize(content))
}

func htmlLines(sanitized string) []string {
	var (
		lines   []string
		current strings.Builder
	)
	flush := func() {
		if line := collapseSpace(current.String()); line != "" {
			lines = append(lines, line)
		}
		current.Reset()
	}

	z := html.NewTokenizer(strings.NewReader(sanitized))
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			// io.EOF; a strings.Reader cannot fail otherwise
			flush()
			return lines
		case html.TextToken:
			current.WriteString(z.Token().Data)
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			if blockTags[string(name)] {
				flush()
			}
		}
	}
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

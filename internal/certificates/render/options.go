package render

import (
	"fmt"
	"strings"
	"time"
)

// MarkupMode selects how text element content is interpreted.
type MarkupMode string

const (
	// MarkupText sanitizes the content as HTML and lays out its text, with
	// block tags and <br> starting new lines.
	MarkupText MarkupMode = "text"
	// MarkupLiteral draws the content as-is, splitting only on newlines.
	MarkupLiteral MarkupMode = "literal"
)

// OverflowPolicy selects what happens when text does not fit its box.
type OverflowPolicy string

const (
	// OverflowShrink reduces the font size until the text fits, down to
	// MinFontSize, then clips to the box.
	OverflowShrink OverflowPolicy = "shrink"
	// OverflowClip draws at the nominal size and clips to the box.
	OverflowClip OverflowPolicy = "clip"
	// OverflowVisible draws at the nominal size, clipped only by the canvas.
	OverflowVisible OverflowPolicy = "overflow"
)

const (
	DefaultDecodeTimeout     = 5 * time.Second
	DefaultDecodeConcurrency = 4

	// MinFontSize is the smallest size OverflowShrink will use, in pixels.
	MinFontSize = 6.0

	defaultFontSize = 16.0
)

// Options configures a Compositor.
type Options struct {
	DecodeTimeout     time.Duration
	DecodeConcurrency int
	Markup            MarkupMode
	Overflow          OverflowPolicy
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		DecodeTimeout:     DefaultDecodeTimeout,
		DecodeConcurrency: DefaultDecodeConcurrency,
		Markup:            MarkupText,
		Overflow:          OverflowShrink,
	}
}

// ParseMarkupMode parses a configured markup mode. Empty means MarkupText.
func ParseMarkupMode(s string) (MarkupMode, error) {
	switch MarkupMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", MarkupText:
		return MarkupText, nil
	case MarkupLiteral:
		return MarkupLiteral, nil
	default:
		return "", fmt.Errorf("unknown markup mode %q", s)
	}
}

// ParseOverflowPolicy parses a configured overflow policy. Empty means
// OverflowShrink.
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch OverflowPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", OverflowShrink:
		return OverflowShrink, nil
	case OverflowClip:
		return OverflowClip, nil
	case OverflowVisible:
		return OverflowVisible, nil
	default:
		return "", fmt.Errorf("unknown overflow policy %q", s)
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.DecodeTimeout <= 0 {
		o.DecodeTimeout = d.DecodeTimeout
	}
	if o.DecodeConcurrency <= 0 {
		o.DecodeConcurrency = d.DecodeConcurrency
	}
	if o.Markup == "" {
		o.Markup = d.Markup
	}
	if o.Overflow == "" {
		o.Overflow = d.Overflow
	}
	return o
}

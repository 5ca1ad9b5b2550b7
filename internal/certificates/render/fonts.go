package render

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
)

// FontBook maps font family names to parsed fonts. Registered families are
// matched case-insensitively; anything else falls back to the Go fonts.
type FontBook struct {
	mu       sync.RWMutex
	families map[string]*opentype.Font

	regular *opentype.Font
	bold    *opentype.Font
	italic  *opentype.Font
	mono    *opentype.Font
}

// NewFontBook creates a font book holding only the built-in Go fonts.
func NewFontBook() (*FontBook, error) {
	b := &FontBook{families: make(map[string]*opentype.Font)}

	builtins := []struct {
		dst  **opentype.Font
		name string
		data []byte
	}{
		{&b.regular, "goregular", goregular.TTF},
		{&b.bold, "gobold", gobold.TTF},
		{&b.italic, "goitalic", goitalic.TTF},
		{&b.mono, "gomono", gomono.TTF},
	}
	for _, f := range builtins {
		parsed, err := opentype.Parse(f.data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse built-in font %s: %w", f.name, err)
		}
		*f.dst = parsed
	}

	return b, nil
}

// Register parses a TTF or OTF font and makes it available under family.
func (b *FontBook) Register(family string, data []byte) error {
	f, err := opentype.Parse(data)
	if err != nil {
		return fmt.Errorf("failed to parse font %q: %w", family, err)
	}
	b.register(family, f)
	return nil
}

func (b *FontBook) register(family string, f *opentype.Font) {
	key := normalizeFamily(family)
	if key == "" {
		return
	}
	b.mu.Lock()
	b.families[key] = f
	b.mu.Unlock()
}

// LoadDir registers every .ttf and .otf file under dir. Each font is known
// by its file name without extension and by the family name stored in the
// font itself. It returns the number of files loaded.
func (b *FontBook) LoadDir(dir string) (int, error) {
	loaded := 0
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".ttf" && ext != ".otf" {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read font %s: %w", path, err)
		}
		f, err := opentype.Parse(data)
		if err != nil {
			return fmt.Errorf("failed to parse font %s: %w", path, err)
		}

		b.register(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)), f)
		if name, err := f.Name(nil, sfnt.NameIDFamily); err == nil {
			b.register(name, f)
		}
		loaded++
		return nil
	})
	if err != nil {
		return loaded, err
	}
	return loaded, nil
}

// Lookup resolves a family name, which may be a comma separated CSS list
// such as "Georgia, serif".
func (b *FontBook) Lookup(family string) *opentype.Font {
	candidates := strings.Split(family, ",")

	b.mu.RLock()
	for _, c := range candidates {
		if f, ok := b.families[normalizeFamily(c)]; ok {
			b.mu.RUnlock()
			return f
		}
	}
	b.mu.RUnlock()

	name := strings.ToLower(family)
	switch {
	case strings.Contains(name, "mono"), strings.Contains(name, "courier"), strings.Contains(name, "consolas"):
		return b.mono
	case strings.Contains(name, "bold"):
		return b.bold
	case strings.Contains(name, "italic"), strings.Contains(name, "oblique"):
		return b.italic
	default:
		return b.regular
	}
}

// Face returns a face for family at size pixels. The caller must Close it.
func (b *FontBook) Face(family string, size float64) (font.Face, error) {
	face, err := opentype.NewFace(b.Lookup(family), &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %gpx face for %q: %w", size, family, err)
	}
	return face, nil
}

func normalizeFamily(family string) string {
	return strings.ToLower(strings.Trim(strings.TrimSpace(family), `"'`))
}

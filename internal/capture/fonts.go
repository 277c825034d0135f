package capture

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
)

// FontLibrary loads OpenType fonts from disk and caches faces per
// (family, size). Lookups that find no matching family fall back to the
// first loaded font, then to a builtin bitmap face.
type FontLibrary struct {
	mu    sync.Mutex
	fonts map[string]*sfnt.Font
	order []string
	faces map[faceKey]font.Face
}

type faceKey struct {
	family string
	size   float64
}

// LoadFonts parses every .ttf/.otf file under dir. Files that fail to
// parse are skipped; an empty or missing directory yields a usable library
// that serves only the builtin fallback face.
func LoadFonts(dir string) (*FontLibrary, error) {
	lib := &FontLibrary{
		fonts: make(map[string]*sfnt.Font),
		faces: make(map[faceKey]font.Face),
	}
	if dir == "" {
		return lib, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return lib, nil
		}
		return nil, fmt.Errorf("capture: read fonts dir: %w", err)
	}
	var buf sfnt.Buffer
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".ttf" && ext != ".otf" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		parsed, err := opentype.Parse(data)
		if err != nil {
			continue
		}
		family, err := parsed.Name(&buf, sfnt.NameIDFamily)
		if err != nil || family == "" {
			family = strings.TrimSuffix(entry.Name(), ext)
		}
		key := foldFamily(family)
		if _, ok := lib.fonts[key]; !ok {
			lib.fonts[key] = parsed
			lib.order = append(lib.order, key)
		}
	}
	return lib, nil
}

// Families lists the loaded font family keys in load order.
func (l *FontLibrary) Families() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.order...)
}

// Face returns a rendering face for the family at the pixel size.
func (l *FontLibrary) Face(family string, sizePx float64) font.Face {
	if sizePx <= 0 {
		sizePx = 16
	}
	key := faceKey{family: foldFamily(family), size: sizePx}

	l.mu.Lock()
	defer l.mu.Unlock()
	if face, ok := l.faces[key]; ok {
		return face
	}
	parsed := l.fonts[key.family]
	if parsed == nil && len(l.order) > 0 {
		parsed = l.fonts[l.order[0]]
	}
	if parsed == nil {
		return basicfont.Face7x13
	}
	face, err := opentype.NewFace(parsed, &opentype.FaceOptions{
		Size:    sizePx,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return basicfont.Face7x13
	}
	l.faces[key] = face
	return face
}

func foldFamily(family string) string {
	return strings.ToLower(strings.TrimSpace(family))
}

package render

import (
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/gomonobolditalic"
	"golang.org/x/image/font/gofont/gomonoitalic"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

type fontKey struct {
	mono   bool
	bold   bool
	italic bool
}

var (
	fontsOnce sync.Once
	fonts     map[fontKey]*opentype.Font
)

func loadFonts() {
	sources := map[fontKey][]byte{
		{}:                                     goregular.TTF,
		{bold: true}:                           gobold.TTF,
		{italic: true}:                         goitalic.TTF,
		{bold: true, italic: true}:             gobolditalic.TTF,
		{mono: true}:                           gomono.TTF,
		{mono: true, bold: true}:               gomonobold.TTF,
		{mono: true, italic: true}:             gomonoitalic.TTF,
		{mono: true, bold: true, italic: true}: gomonobolditalic.TTF,
	}
	fonts = make(map[fontKey]*opentype.Font, len(sources))
	for key, ttf := range sources {
		if f, err := opentype.Parse(ttf); err == nil {
			fonts[key] = f
		}
	}
}

func isMonospace(family string) bool {
	family = strings.ToLower(family)
	return strings.Contains(family, "mono") || strings.Contains(family, "courier") || strings.Contains(family, "consol")
}

// newFace returns a fresh face for style. Faces hold scratch buffers, so each
// render call gets its own. Unknown families fall back to the bundled sans.
func newFace(style Style) font.Face {
	fontsOnce.Do(loadFonts)

	f, ok := fonts[fontKey{mono: isMonospace(style.FontFamily), bold: style.Bold, italic: style.Italic}]
	if !ok {
		return basicfont.Face7x13
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    style.FontSize,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return basicfont.Face7x13
	}
	return face
}

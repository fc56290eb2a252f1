package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"cert-studio/studio-backend/pkg/apperr"
)

// SourceKind says where a field's text comes from.
type SourceKind int

const (
	DataColumn SourceKind = iota
	StaticText
)

// Source is either a column of the data row or a literal string.
type Source struct {
	Kind        SourceKind
	ColumnIndex int
	Text        string
}

func Column(i int) Source { return Source{Kind: DataColumn, ColumnIndex: i} }

func Static(text string) Source { return Source{Kind: StaticText, Text: text} }

// Align is the horizontal anchoring of a text run relative to the field x.
type Align int

const (
	AlignStart Align = iota
	AlignCenter
	AlignEnd
)

func (a Align) String() string {
	switch a {
	case AlignCenter:
		return "center"
	case AlignEnd:
		return "right"
	default:
		return "left"
	}
}

// Style describes how a field is painted. FontSize is in background pixels.
type Style struct {
	FontFamily string
	FontSize   float64
	Bold       bool
	Italic     bool
	Underline  bool
	Color      color.RGBA
	Align      Align
}

// FieldDescriptor is one placeable text element. Y is the text baseline.
type FieldDescriptor struct {
	ID     string
	X      float64
	Y      float64
	Source Source
	Style  Style
}

const (
	defaultFontSize   = 32
	defaultFontFamily = "Arial"
)

// fieldWire is the editor's JSON shape.
type fieldWire struct {
	ID             json.RawMessage `json:"id,omitempty"`
	X              float64         `json:"x"`
	Y              float64         `json:"y"`
	FieldType      string          `json:"fieldType,omitempty"`
	ColumnIndex    int             `json:"columnIndex"`
	CustomText     string          `json:"customText"`
	FontSize       float64         `json:"fontSize"`
	Color          string          `json:"color"`
	FontFamily     string          `json:"fontFamily"`
	FontWeight     string          `json:"fontWeight"`
	FontStyle      string          `json:"fontStyle"`
	TextDecoration string          `json:"textDecoration"`
	TextAlign      string          `json:"textAlign"`
}

func (f FieldDescriptor) MarshalJSON() ([]byte, error) {
	w := fieldWire{
		X:              f.X,
		Y:              f.Y,
		FieldType:      "data",
		ColumnIndex:    f.Source.ColumnIndex,
		FontSize:       f.Style.FontSize,
		Color:          FormatColor(f.Style.Color),
		FontFamily:     f.Style.FontFamily,
		FontWeight:     "normal",
		FontStyle:      "normal",
		TextDecoration: "none",
		TextAlign:      f.Style.Align.String(),
	}
	if f.ID != "" {
		id, err := json.Marshal(f.ID)
		if err != nil {
			return nil, err
		}
		w.ID = id
	}
	if f.Source.Kind == StaticText {
		w.FieldType = "static"
		w.ColumnIndex = 0
		w.CustomText = f.Source.Text
	}
	if f.Style.Bold {
		w.FontWeight = "bold"
	}
	if f.Style.Italic {
		w.FontStyle = "italic"
	}
	if f.Style.Underline {
		w.TextDecoration = "underline"
	}
	return json.Marshal(w)
}

func (f *FieldDescriptor) UnmarshalJSON(data []byte) error {
	var w fieldWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	c, err := ParseColor(w.Color)
	if err != nil {
		return err
	}
	align, err := parseAlign(w.TextAlign)
	if err != nil {
		return err
	}

	out := FieldDescriptor{
		ID: rawID(w.ID),
		X:  w.X,
		Y:  w.Y,
		Style: Style{
			FontFamily: w.FontFamily,
			FontSize:   w.FontSize,
			Bold:       isBold(w.FontWeight),
			Italic:     strings.EqualFold(w.FontStyle, "italic") || strings.EqualFold(w.FontStyle, "oblique"),
			Underline:  strings.Contains(strings.ToLower(w.TextDecoration), "underline"),
			Color:      c,
			Align:      align,
		},
	}
	if out.Style.FontFamily == "" {
		out.Style.FontFamily = defaultFontFamily
	}
	if out.Style.FontSize <= 0 {
		out.Style.FontSize = defaultFontSize
	}

	switch {
	case w.FieldType == "static", w.FieldType == "" && w.CustomText != "":
		out.Source = Static(w.CustomText)
	default:
		out.Source = Column(w.ColumnIndex)
	}

	*f = out
	return nil
}

// rawID accepts both string and numeric ids.
func rawID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func isBold(weight string) bool {
	weight = strings.ToLower(strings.TrimSpace(weight))
	if weight == "bold" || weight == "bolder" {
		return true
	}
	n, err := strconv.Atoi(weight)
	return err == nil && n >= 600
}

func parseAlign(s string) (Align, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "left", "start":
		return AlignStart, nil
	case "center":
		return AlignCenter, nil
	case "right", "end":
		return AlignEnd, nil
	default:
		return AlignStart, fmt.Errorf("%w: unknown text alignment %q", apperr.ErrInvalidInput, s)
	}
}

// ParseColor reads "#RRGGBB" or "#RGB". An empty string is black.
func ParseColor(s string) (color.RGBA, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if s == "" {
		return color.RGBA{A: 0xff}, nil
	}
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return color.RGBA{}, fmt.Errorf("%w: invalid color %q", apperr.ErrInvalidInput, s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("%w: invalid color %q", apperr.ErrInvalidInput, s)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}

// FormatColor is the inverse of ParseColor.
func FormatColor(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// ParseFields decodes an editor field list.
func ParseFields(data []byte) ([]FieldDescriptor, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var fields []FieldDescriptor
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: fields: %v", apperr.ErrInvalidInput, err)
	}
	return fields, nil
}

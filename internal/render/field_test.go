package render

import (
	"encoding/json"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cert-studio/studio-backend/pkg/apperr"
)

func TestParseFieldsEditorPayload(t *testing.T) {
	payload := `[
		{"id": 1717171717, "x": 1000, "y": 700, "columnIndex": 2, "customText": "",
		 "fontSize": 48, "color": "#1a2b3c", "fontFamily": "Montserrat", "fontWeight": "bold",
		 "fontStyle": "italic", "textDecoration": "underline", "textAlign": "center", "fieldType": "data"},
		{"id": "f-2", "x": 10, "y": 20, "customText": "Certificado de asistencia", "fontSize": 0,
		 "textAlign": "right"}
	]`

	fields, err := ParseFields([]byte(payload))
	require.NoError(t, err)
	require.Len(t, fields, 2)

	data := fields[0]
	assert.Equal(t, "1717171717", data.ID)
	assert.Equal(t, Column(2), data.Source)
	assert.Equal(t, Style{
		FontFamily: "Montserrat",
		FontSize:   48,
		Bold:       true,
		Italic:     true,
		Underline:  true,
		Color:      color.RGBA{R: 0x1a, G: 0x2b, B: 0x3c, A: 0xff},
		Align:      AlignCenter,
	}, data.Style)

	static := fields[1]
	assert.Equal(t, "f-2", static.ID)
	assert.Equal(t, Static("Certificado de asistencia"), static.Source)
	assert.Equal(t, float64(defaultFontSize), static.Style.FontSize)
	assert.Equal(t, defaultFontFamily, static.Style.FontFamily)
	assert.Equal(t, AlignEnd, static.Style.Align)
	assert.Equal(t, black, static.Style.Color)
}

func TestFieldJSONRoundTripKeepsMeaning(t *testing.T) {
	in := FieldDescriptor{
		ID:     "a",
		X:      12.5,
		Y:      40,
		Source: Static("Hola"),
		Style:  Style{FontFamily: "Lato", FontSize: 20, Bold: true, Color: red, Align: AlignEnd},
	}
	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out FieldDescriptor
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestParseFieldsRejectsBadInput(t *testing.T) {
	for _, payload := range []string{
		`{"not": "a list"}`,
		`[{"color": "#12345"}]`,
		`[{"color": "#zzzzzz"}]`,
		`[{"textAlign": "justify"}]`,
	} {
		_, err := ParseFields([]byte(payload))
		assert.ErrorIs(t, err, apperr.ErrInvalidInput, payload)
	}

	fields, err := ParseFields(nil)
	require.NoError(t, err)
	assert.Empty(t, fields)
}

func TestParseColorShortForm(t *testing.T) {
	c, err := ParseColor("#f00")
	require.NoError(t, err)
	assert.Equal(t, red, c)
	assert.Equal(t, "#ff0000", FormatColor(c))
}

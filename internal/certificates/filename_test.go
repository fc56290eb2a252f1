package certificates

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"cert-studio/studio-backend/internal/render"
	"cert-studio/studio-backend/pkg/archive"
)

func TestFileName(t *testing.T) {
	tests := []struct {
		name  string
		row   render.DataRow
		index int
		want  string
	}{
		{
			name: "all slots",
			row:  render.DataRow{"7", "12345678", "Ana  María Díaz", "Docente", "extra"},
			want: "7_12345678_Ana María Díaz_(Docente).pdf",
		},
		{
			name:  "missing sequence falls back to index",
			row:   render.DataRow{" ", "12345678", "Ana"},
			index: 4,
			want:  "5_12345678_Ana_().pdf",
		},
		{
			name:  "empty row",
			row:   nil,
			index: 0,
			want:  "1___().pdf",
		},
		{
			name: "reserved characters",
			row:  render.DataRow{"1", "12/34", `Jose "Pepe"`, "Jefe: Area?"},
			want: "1_12_34_Jose _Pepe__(Jefe_ Area_).pdf",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FileName(tt.row, tt.index))
		})
	}
}

func TestUniqueName(t *testing.T) {
	out := archive.New()
	assert.Equal(t, "a.pdf", uniqueName(out, "a.pdf"))

	out.Put("a.pdf", nil)
	assert.Equal(t, "a_2.pdf", uniqueName(out, "a.pdf"))

	out.Put("a_2.pdf", nil)
	assert.Equal(t, "a_3.pdf", uniqueName(out, "a.pdf"))
}

package chunking

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// paragraph builds a distinct paragraph of exactly n runes ending in a period.
func paragraph(i, n int) string {
	prefix := fmt.Sprintf("Paragraph %d ", i)
	return prefix + strings.Repeat("x", n-len(prefix)-1) + "."
}

func paragraphs(count, n int) []string {
	out := make([]string, count)
	for i := range out {
		out[i] = paragraph(i, n)
	}
	return out
}

func TestAssembleChunks_Empty(t *testing.T) {
	assert.Empty(t, AssembleChunks(nil, 1000, 1, false))
	assert.Empty(t, AssembleChunks([]string{}, 1000, 1, true))
}

func TestAssembleChunks_AllEmptySectionsFallBack(t *testing.T) {
	got := AssembleChunks([]string{"", ""}, 1000, 1, false)

	assert.Equal(t, []string{"\n\n"}, got)
}

func TestAssembleChunks_SingleChunk(t *testing.T) {
	got := AssembleChunks([]string{"Hola.", "Mundo."}, 1000, 1, false)

	assert.Equal(t, []string{"Hola.\n\nMundo."}, got)
}

func TestAssembleChunks_SlidingOverlap(t *testing.T) {
	sections := paragraphs(6, 300)

	chunks := AssembleChunks(sections, 1000, 1, false)

	require.Len(t, chunks, 3)
	assert.Equal(t, strings.Join(sections[0:3], "\n\n"), chunks[0])
	assert.Equal(t, strings.Join(sections[2:5], "\n\n"), chunks[1])
	assert.Equal(t, strings.Join(sections[4:6], "\n\n"), chunks[2])

	for i := 0; i < len(chunks)-1; i++ {
		current := strings.Split(chunks[i], "\n\n")
		next := strings.Split(chunks[i+1], "\n\n")
		assert.Equal(t, current[len(current)-1], next[0], "chunk %d overlap", i)
	}
}

func TestAssembleChunks_OverlapOfTwo(t *testing.T) {
	sections := paragraphs(6, 200)

	chunks := AssembleChunks(sections, 1000, 2, false)

	require.Len(t, chunks, 2)
	assert.Equal(t, strings.Join(sections[0:4], "\n\n"), chunks[0])
	assert.Equal(t, strings.Join(sections[2:6], "\n\n"), chunks[1])
}

func TestAssembleChunks_NoOverlap(t *testing.T) {
	sections := paragraphs(4, 400)

	chunks := AssembleChunks(sections, 1000, 0, false)

	require.Len(t, chunks, 2)
	assert.Equal(t, strings.Join(sections[0:2], "\n\n"), chunks[0])
	assert.Equal(t, strings.Join(sections[2:4], "\n\n"), chunks[1])
}

func TestAssembleChunks_OverlapDroppedWhenItBreaksSizeBound(t *testing.T) {
	sections := paragraphs(3, 600)

	chunks := AssembleChunks(sections, 1000, 1, false)

	assert.Equal(t, sections, chunks)
}

func TestAssembleChunks_SizeBound(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 60; i++ {
		fmt.Fprintf(&b, "Sentence number %d has a handful of words in it. ", i)
	}
	sections := []string{
		strings.TrimSpace(b.String()),
		"Short closing paragraph.",
		"Otro párrafo de cierre con varias palabras cortas para probar el ajuste final de cada fragmento",
	}

	for _, maxChars := range []int{60, 120, 333, 1000} {
		chunks := AssembleChunks(sections, maxChars, 1, false)
		require.NotEmpty(t, chunks)
		for _, c := range chunks {
			assert.LessOrEqual(t, len([]rune(c)), maxChars, "max_chars=%d", maxChars)
		}
	}
}

func TestAssembleChunks_Coverage(t *testing.T) {
	sections := append(paragraphs(5, 350), "Cierre.")

	chunks := AssembleChunks(sections, 1000, 1, false)

	joined := strings.Join(chunks, "\n\n")
	for _, s := range sections {
		assert.Contains(t, joined, s)
	}
}

func TestAssembleChunks_Deterministic(t *testing.T) {
	sections := append(paragraphs(7, 280), strings.Repeat("palabra ", 300))

	first := AssembleChunks(sections, 500, 1, false)
	second := AssembleChunks(sections, 500, 1, false)

	assert.Equal(t, first, second)
}

func TestAssembleChunks_FAQSectionPerChunk(t *testing.T) {
	long := "1. ¿Pregunta larga?\n" + strings.Repeat("respuesta ", 150)
	sections := []string{long, "2. ¿Corta?\nSí."}

	chunks := AssembleChunks(sections, 100, 1, true)

	assert.Equal(t, sections, chunks)
}

func TestAssembleChunks_FAQCarryOver(t *testing.T) {
	sections := []string{
		"1. ¿Primera pregunta?",
		"2. ¿Segunda?\nRespuesta dos.",
		"3. Tercera\nRespuesta tres.",
		"4. ¿Sin respuesta?",
	}

	chunks := AssembleChunks(sections, 1000, 1, true)

	require.Len(t, chunks, 3)
	assert.Equal(t, "1. ¿Primera pregunta?\n\n2. ¿Segunda?\nRespuesta dos.", chunks[0])
	assert.Equal(t, "3. Tercera\nRespuesta tres.", chunks[1])
	assert.Equal(t, "4. ¿Sin respuesta?", chunks[2])
	for _, c := range chunks[:len(chunks)-1] {
		assert.False(t, strings.HasSuffix(strings.TrimSpace(c), "?"))
	}
}

func TestAssembleChunks_FAQChainedCarryOver(t *testing.T) {
	chunks := AssembleChunks([]string{"1. ¿A?", "2. ¿B?", "3. C\nrespuesta"}, 1000, 0, true)

	assert.Equal(t, []string{"1. ¿A?\n\n2. ¿B?\n\n3. C\nrespuesta"}, chunks)
}

func TestMergeLabelParagraphs(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{
			name: "colon label",
			in:   []string{"Horario:", "Lunes a viernes.", "Fin."},
			want: []string{"Horario:\nLunes a viernes.", "Fin."},
		},
		{
			name: "question label",
			in:   []string{"¿Cómo llegar?", "En autobús."},
			want: []string{"¿Cómo llegar?\nEn autobús."},
		},
		{
			name: "chained labels",
			in:   []string{"Contacto:", "Teléfono:", "555-1234"},
			want: []string{"Contacto:\nTeléfono:\n555-1234"},
		},
		{
			name: "trailing label kept",
			in:   []string{"Texto.", "¿Preguntas?"},
			want: []string{"Texto.", "¿Preguntas?"},
		},
		{
			name: "long paragraph is not a label",
			in:   []string{strings.Repeat("a", 201) + ":", "siguiente"},
			want: []string{strings.Repeat("a", 201) + ":", "siguiente"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MergeLabelParagraphs(tt.in))
		})
	}
}

package pipeline

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reconstruct(chunks []string, overlap int) string {
	var b strings.Builder
	for i, c := range chunks {
		if i == 0 {
			b.WriteString(c)
			continue
		}
		b.WriteString(string([]rune(c)[overlap:]))
	}
	return b.String()
}

func TestNewSplitterValidation(t *testing.T) {
	_, err := NewSplitter(0, 0)
	assert.Error(t, err)
	_, err = NewSplitter(100, 100)
	assert.Error(t, err)
	_, err = NewSplitter(100, -1)
	assert.Error(t, err)
	s, err := NewSplitter(100, 0)
	require.NoError(t, err)
	assert.Equal(t, 100, s.Size())
}

func TestSplitEmpty(t *testing.T) {
	s, err := NewSplitter(1000, 200)
	require.NoError(t, err)
	assert.Empty(t, s.Chunks(""))
	for range s.Split("") {
		t.Fatal("empty text must not yield spans")
	}
}

func TestSplitProperties(t *testing.T) {
	texts := []string{
		"a",
		strings.Repeat("x", 999),
		strings.Repeat("y", 1000),
		strings.Repeat("z", 1001),
		strings.Repeat("Go 并发编程与分布式系统。", 400),
		strings.Repeat("résumé ", 731),
	}
	params := [][2]int{{1000, 200}, {1000, 0}, {10, 3}, {7, 6}, {1, 0}}

	for _, p := range params {
		s, err := NewSplitter(p[0], p[1])
		require.NoError(t, err)
		for _, text := range texts {
			chunks := s.Chunks(text)
			require.NotEmpty(t, chunks)
			assert.Equal(t, text, reconstruct(chunks, p[1]), "size=%d overlap=%d", p[0], p[1])

			for i, c := range chunks {
				n := utf8.RuneCountInString(c)
				assert.LessOrEqual(t, n, p[0])
				if i < len(chunks)-1 {
					assert.Equal(t, p[0], n)
					next := []rune(chunks[i+1])
					cur := []rune(c)
					assert.Equal(t, string(cur[len(cur)-p[1]:]), string(next[:p[1]]))
				}
			}
		}
	}
}

func TestSplitSpanOffsets(t *testing.T) {
	s, err := NewSplitter(4, 1)
	require.NoError(t, err)
	text := "简历分析服务ab"

	var spans []Span
	for sp := range s.Split(text) {
		spans = append(spans, sp)
	}
	require.Len(t, spans, 3)
	assert.Equal(t, Span{Index: 0, Start: 0, End: 4, Text: "简历分析"}, spans[0])
	assert.Equal(t, Span{Index: 1, Start: 3, End: 7, Text: "析服务a"}, spans[1])
	assert.Equal(t, Span{Index: 2, Start: 6, End: 8, Text: "ab"}, spans[2])
}

func TestSplitIsRestartableAndStoppable(t *testing.T) {
	s, err := NewSplitter(3, 1)
	require.NoError(t, err)
	seq := s.Split("abcdefghij")

	var first, second []string
	for sp := range seq {
		first = append(first, sp.Text)
	}
	for sp := range seq {
		second = append(second, sp.Text)
		if len(second) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"abc", "cde", "efg", "ghi", "ij"}, first)
	assert.Equal(t, first[:2], second)
}

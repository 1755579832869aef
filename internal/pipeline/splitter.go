package pipeline

import (
	"fmt"
	"iter"
)

// Span 是一次切分产生的窗口，Start/End 为字符（rune）偏移，左闭右开。
type Span struct {
	Index int
	Start int
	End   int
	Text  string
}

// Splitter 按固定字符窗口切分文本，相邻窗口共享 overlap 个字符。
type Splitter struct {
	size    int
	overlap int
}

// NewSplitter 要求 size > 0 且 0 <= overlap < size。
func NewSplitter(size, overlap int) (*Splitter, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size 必须大于 0, 当前为 %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap 必须在 [0, %d) 范围内, 当前为 %d", size, overlap)
	}
	return &Splitter{size: size, overlap: overlap}, nil
}

func (s *Splitter) Size() int    { return s.size }
func (s *Splitter) Overlap() int { return s.overlap }

// Split 惰性地产出窗口。每次 range 都会重新切分，空文本不产出任何窗口。
// 除最后一个窗口外，每个窗口都恰好 size 个字符。
func (s *Splitter) Split(text string) iter.Seq[Span] {
	return func(yield func(Span) bool) {
		runes := []rune(text)
		if len(runes) == 0 {
			return
		}
		step := s.size - s.overlap
		for i, start := 0, 0; start < len(runes); i, start = i+1, start+step {
			end := min(start+s.size, len(runes))
			if !yield(Span{Index: i, Start: start, End: end, Text: string(runes[start:end])}) {
				return
			}
			if end == len(runes) {
				return
			}
		}
	}
}

// Chunks 收集 Split 的全部窗口文本。
func (s *Splitter) Chunks(text string) []string {
	var chunks []string
	for span := range s.Split(text) {
		chunks = append(chunks, span.Text)
	}
	return chunks
}

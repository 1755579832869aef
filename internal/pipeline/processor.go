// Package pipeline 定义了简历入库的核心流程：提取、切块、向量化替换。
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"careerforge-go/internal/apperror"
	"careerforge-go/internal/model"
	"careerforge-go/pkg/log"
)

// TextExtractor 从原始文件内容中提取纯文本。
type TextExtractor interface {
	Extract(ctx context.Context, fileName string, data []byte) (string, error)
}

// ChunkReplacer 用新的分块整体替换向量存储中的语料。
type ChunkReplacer interface {
	ReplaceAll(ctx context.Context, chunks []model.Chunk) error
}

// Document 是待入库的原始文件。
type Document struct {
	Name string
	Data []byte
}

// IngestResult 描述一次入库的结果。
type IngestResult struct {
	Source     string
	Chunks     int
	Characters int
}

// Processor 封装了文件处理的所有依赖和逻辑。
type Processor struct {
	extractor TextExtractor
	splitter  *Splitter
	store     ChunkReplacer
}

// NewProcessor 创建一个新的 Processor 实例。
func NewProcessor(extractor TextExtractor, splitter *Splitter, store ChunkReplacer) *Processor {
	return &Processor{extractor: extractor, splitter: splitter, store: store}
}

// Splitter 返回当前使用的切分器。
func (p *Processor) Splitter() *Splitter {
	return p.splitter
}

// Ingest 提取文本、切块并整体替换向量存储中的内容。
// 任何一步失败都不会留下部分写入的分块。
func (p *Processor) Ingest(ctx context.Context, doc Document) (*IngestResult, error) {
	const op = "pipeline.Ingest"
	log.Infof("[Processor] 开始处理文件, FileName: %s, 大小: %d 字节", doc.Name, len(doc.Data))

	if len(doc.Data) == 0 {
		log.Warnf("[Processor] 文件 '%s' 内容为空, 处理中止", doc.Name)
		return nil, apperror.New(apperror.KindInvalidInput, op, errors.New("文件内容为空"))
	}

	// 1. 提取文本
	log.Info("[Processor] 步骤1: 提取文本内容")
	text, err := p.extractor.Extract(ctx, doc.Name, doc.Data)
	if err != nil {
		log.Errorf("[Processor] 提取文本失败, FileName: %s, Error: %v", doc.Name, err)
		return nil, err
	}

	// 2. 空文本直接拒绝，例如扫描版 PDF
	if strings.TrimSpace(text) == "" {
		log.Warnf("[Processor] 提取的文本内容为空, 处理中止, FileName: %s", doc.Name)
		return nil, apperror.New(apperror.KindInvalidInput, op, fmt.Errorf("未能从 %s 中提取到文本", doc.Name))
	}
	chars := utf8.RuneCountInString(text)
	log.Infof("[Processor] 步骤1: 文本提取成功, 内容长度: %d 字符", chars)

	// 3. 文本切块
	log.Infof("[Processor] 步骤2: 进行文本分块, chunkSize: %d, chunkOverlap: %d", p.splitter.Size(), p.splitter.Overlap())
	var chunks []model.Chunk
	for span := range p.splitter.Split(text) {
		chunks = append(chunks, model.Chunk{
			Content: span.Text,
			Metadata: map[string]any{
				model.MetaSource:     doc.Name,
				model.MetaChunkIndex: span.Index,
				model.MetaStart:      span.Start,
				model.MetaEnd:        span.End,
			},
		})
	}
	log.Infof("[Processor] 步骤2: 文本分块完成, 共生成 %d 个分块", len(chunks))

	// 4. 向量化并替换
	log.Info("[Processor] 步骤3: 向量化并替换向量存储中的旧内容")
	if err := p.store.ReplaceAll(ctx, chunks); err != nil {
		log.Errorf("[Processor] 替换向量存储失败, FileName: %s, Error: %v", doc.Name, err)
		return nil, fmt.Errorf("写入向量存储失败: %w", err)
	}

	log.Infof("[Processor] 文件处理成功完成, FileName: %s, 分块数: %d", doc.Name, len(chunks))
	return &IngestResult{Source: doc.Name, Chunks: len(chunks), Characters: chars}, nil
}

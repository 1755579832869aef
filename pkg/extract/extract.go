// Package extract 在本地从 PDF、DOCX、TXT、MD 文件中提取纯文本。
package extract

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"

	"careerforge-go/internal/apperror"
)

// LocalExtractor 按文件扩展名选择解析方式。
type LocalExtractor struct{}

// NewLocalExtractor 创建本地提取器。
func NewLocalExtractor() *LocalExtractor {
	return &LocalExtractor{}
}

// Supported 判断扩展名是否可以被本地解析。
func Supported(fileName string) bool {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".pdf", ".docx", ".txt", ".md":
		return true
	}
	return false
}

// Extract 实现 pipeline.TextExtractor。
// 不支持或损坏的文件返回 KindInvalidInput。
func (e *LocalExtractor) Extract(ctx context.Context, fileName string, data []byte) (string, error) {
	const op = "extract.Local"
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var (
		text string
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(fileName)); ext {
	case ".pdf":
		text, err = extractPDF(data)
	case ".docx":
		text, err = extractDocx(data)
	case ".txt", ".md":
		text = string(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")))
	default:
		return "", apperror.Newf(apperror.KindInvalidInput, op, "不支持的文件类型: %q", ext)
	}
	if err != nil {
		return "", apperror.New(apperror.KindInvalidInput, op, fmt.Errorf("解析 %s 失败: %w", fileName, err))
	}
	return text, nil
}

// extractPDF 按页序提取，任意一页失败则整个文档失败。
func extractPDF(data []byte) (text string, err error) {
	// 损坏的 PDF 可能导致解析库 panic
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf 解析异常: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("读取 pdf 失败: %w", err)
	}
	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("读取 pdf 第 %d 页失败: %w", i, err)
		}
		b.WriteString(pageText)
		if !strings.HasSuffix(pageText, "\n") {
			b.WriteString("\n")
		}
	}
	return b.String(), nil
}

var (
	docxParagraphEnd = regexp.MustCompile(`</w:p>`)
	docxTag          = regexp.MustCompile(`<[^>]+>`)
	docxBlankLines   = regexp.MustCompile(`\n{3,}`)
)

func extractDocx(data []byte) (string, error) {
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("读取 docx 失败: %w", err)
	}
	defer doc.Close()

	raw := doc.Editable().GetContent()
	raw = docxParagraphEnd.ReplaceAllString(raw, "\n")
	raw = docxTag.ReplaceAllString(raw, "")
	raw = unescapeXML(raw)
	return strings.TrimSpace(docxBlankLines.ReplaceAllString(raw, "\n\n")), nil
}

var xmlEntities = strings.NewReplacer("&lt;", "<", "&gt;", ">", "&quot;", `"`, "&apos;", "'", "&amp;", "&")

func unescapeXML(s string) string {
	return xmlEntities.Replace(s)
}

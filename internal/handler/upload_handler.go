package handler

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"careerforge-go/internal/service"
	"careerforge-go/pkg/log"
)

// multipartOverhead 是 multipart 边界和头部预留的字节数。
const multipartOverhead = 1 << 20

// UploadHandler 处理简历上传和查询。
type UploadHandler struct {
	resumeService service.ResumeService
	maxBytes      int64
}

// NewUploadHandler 创建一个新的 UploadHandler 实例，maxBytes 为单个文件的大小上限。
func NewUploadHandler(resumeService service.ResumeService, maxBytes int64) *UploadHandler {
	return &UploadHandler{resumeService: resumeService, maxBytes: maxBytes}
}

// UploadResume 处理 POST /upload-resume，表单字段名为 file。
func (h *UploadHandler) UploadResume(c *gin.Context) {
	if h.maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+multipartOverhead)
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		log.Warnf("[UploadHandler] 获取上传文件失败: %v", err)
		writeBadRequest(c, "缺少 file 字段或文件过大")
		return
	}
	if h.maxBytes > 0 && fileHeader.Size > h.maxBytes {
		writeBadRequest(c, fmt.Sprintf("文件大小 %d 超过上限 %d 字节", fileHeader.Size, h.maxBytes))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		writeBadRequest(c, "无法读取上传的文件")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeBadRequest(c, "读取上传文件失败")
		return
	}

	log.Infof("[UploadHandler] 收到简历上传, FileName: %s, 大小: %d", fileHeader.Filename, len(data))
	result, err := h.resumeService.Upload(c.Request.Context(), fileHeader.Filename, data)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// CurrentResume 处理 GET /resume。
func (h *UploadHandler) CurrentResume(c *gin.Context) {
	view, err := h.resumeService.Current(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if view == nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "尚未上传简历", "kind": "not_found"})
		return
	}
	c.JSON(http.StatusOK, view)
}

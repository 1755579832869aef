package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"careerforge-go/internal/service"
	"careerforge-go/pkg/log"
)

type analyzeRequest struct {
	JobDescription string `json:"job_description"`
}

// AnalysisHandler 处理简历与职位的匹配分析请求。
type AnalysisHandler struct {
	analysisService service.AnalysisService
}

// NewAnalysisHandler 创建一个新的 AnalysisHandler 实例。
func NewAnalysisHandler(analysisService service.AnalysisService) *AnalysisHandler {
	return &AnalysisHandler{analysisService: analysisService}
}

// Analyze 处理 POST /analyze。
func (h *AnalysisHandler) Analyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, "请求体必须是包含 job_description 的 JSON")
		return
	}
	log.Infof("[AnalysisHandler] 收到分析请求, job_description 长度: %d", len(req.JobDescription))

	result, err := h.analysisService.Analyze(c.Request.Context(), req.JobDescription)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

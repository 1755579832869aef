package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"careerforge-go/internal/service"
)

type roadmapRequest struct {
	ProjectIdea   string   `json:"project_idea"`
	TechnicalGaps []string `json:"technical_gaps"`
}

// RoadmapHandler 处理路线图生成请求。
type RoadmapHandler struct {
	roadmapService service.RoadmapService
}

// NewRoadmapHandler 创建一个新的 RoadmapHandler 实例。
func NewRoadmapHandler(roadmapService service.RoadmapService) *RoadmapHandler {
	return &RoadmapHandler{roadmapService: roadmapService}
}

// Generate 处理 POST /generate-roadmap。
func (h *RoadmapHandler) Generate(c *gin.Context) {
	var req roadmapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, "请求体必须是包含 project_idea 和 technical_gaps 的 JSON")
		return
	}

	roadmap, err := h.roadmapService.GenerateRoadmap(c.Request.Context(), req.ProjectIdea, req.TechnicalGaps)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, roadmap)
}

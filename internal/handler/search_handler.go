package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"careerforge-go/internal/service"
	"careerforge-go/pkg/log"
)

// SearchHandler 结构体定义了搜索相关的处理器。
type SearchHandler struct {
	searchService service.SearchService
}

// NewSearchHandler 创建一个新的 SearchHandler 实例。
func NewSearchHandler(searchService service.SearchService) *SearchHandler {
	return &SearchHandler{
		searchService: searchService,
	}
}

// Search 处理 GET /search?query=&k=，k 缺省时使用配置的 top_k。
func (h *SearchHandler) Search(c *gin.Context) {
	query := c.Query("query")
	if query == "" {
		writeBadRequest(c, "query 参数不能为空")
		return
	}
	k, err := strconv.Atoi(c.DefaultQuery("k", "0"))
	if err != nil || k < 0 {
		k = 0
	}

	results, err := h.searchService.Search(c.Request.Context(), query, k)
	if err != nil {
		writeError(c, err)
		return
	}

	log.Infof("[SearchHandler] 检索成功, query: '%s', 返回 %d 条结果", query, len(results))
	c.JSON(http.StatusOK, gin.H{"data": results, "count": len(results)})
}

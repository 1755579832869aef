package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Pinger 报告依赖是否可用。
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health 返回 /healthz 的处理函数，检查向量存储是否可达。
func Health(store Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := store.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "detail": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"careerforge-go/internal/apperror"
	"careerforge-go/pkg/log"
)

// statusOf 把错误类别映射为 HTTP 状态码，只在传输层使用。
func statusOf(kind apperror.Kind) int {
	switch kind {
	case apperror.KindInvalidInput:
		return http.StatusBadRequest
	case apperror.KindUnavailable:
		return http.StatusServiceUnavailable
	case apperror.KindMalformedOutput:
		return http.StatusBadGateway
	case apperror.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeError 以 {detail, kind} 的格式返回错误。
func writeError(c *gin.Context, err error) {
	kind := apperror.KindOf(err)
	status := statusOf(kind)
	if status >= http.StatusInternalServerError {
		log.Errorf("[Handler] %s %s 失败, kind: %s, error: %v", c.Request.Method, c.Request.URL.Path, kind, err)
	} else {
		log.Warnf("[Handler] %s %s 请求无效: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, gin.H{"detail": err.Error(), "kind": kind.String()})
}

func writeBadRequest(c *gin.Context, detail string) {
	writeError(c, apperror.Newf(apperror.KindInvalidInput, "handler", "%s", detail))
}

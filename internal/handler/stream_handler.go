package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"careerforge-go/internal/apperror"
	"careerforge-go/internal/service"
	"careerforge-go/pkg/log"
)

var (
	upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true // 允许所有来源
		},
	}
)

// wsRequest 是客户端发送的消息：分析请求或 {"type":"stop"}。
type wsRequest struct {
	Type           string `json:"type"`
	JobDescription string `json:"job_description"`
}

// lockedConn 串行化对同一连接的写入。
type lockedConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// WriteMessage 满足 llm.MessageWriter 接口。
func (l *lockedConn) WriteMessage(messageType int, data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conn.WriteMessage(messageType, data)
}

func (l *lockedConn) writeJSON(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Errorf("[StreamHandler] 序列化消息失败: %v", err)
		return
	}
	if err := l.WriteMessage(websocket.TextMessage, b); err != nil {
		log.Warnf("[StreamHandler] 写入 WebSocket 失败: %v", err)
	}
}

// StreamHandler 负责通过 WebSocket 流式下发分析结果。
type StreamHandler struct {
	analysisService service.AnalysisService
	timeout         time.Duration
}

// NewStreamHandler 创建一个新的 StreamHandler，timeout 限制单次分析的时长。
func NewStreamHandler(analysisService service.AnalysisService, timeout time.Duration) *StreamHandler {
	return &StreamHandler{analysisService: analysisService, timeout: timeout}
}

// Handle 处理一个传入的 WebSocket 连接。
// 同一连接上同时只运行一次分析，分析期间仍可接收停止指令。
func (h *StreamHandler) Handle(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()
	log.Infof("[StreamHandler] WebSocket 连接已建立, remote: %s", conn.RemoteAddr())

	ctx, cancel := context.WithCancel(context.Background())

	out := &lockedConn{conn: conn}
	var (
		stopped atomic.Bool
		busy    atomic.Bool
		wg      sync.WaitGroup

		// runMu 保护 runCancel，它取消当前正在进行的那次分析
		runMu     sync.Mutex
		runCancel context.CancelFunc
	)
	cancelRun := func() {
		runMu.Lock()
		defer runMu.Unlock()
		if runCancel != nil {
			runCancel()
		}
	}
	defer wg.Wait()
	defer cancel()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Warnf("[StreamHandler] 从 WebSocket 读取消息失败: %v", err)
			return
		}

		var req wsRequest
		if err := json.Unmarshal(message, &req); err != nil {
			out.writeJSON(gin.H{"type": "error", "kind": apperror.KindInvalidInput.String(), "detail": "消息必须是 JSON"})
			continue
		}

		if req.Type == "stop" {
			log.Info("[StreamHandler] 收到停止指令，正在中断流式响应...")
			stopped.Store(true)
			cancelRun()
			out.writeJSON(gin.H{
				"type":      "stop",
				"message":   "响应已停止",
				"timestamp": time.Now().UnixMilli(),
			})
			continue
		}

		if !busy.CompareAndSwap(false, true) {
			out.writeJSON(gin.H{"type": "error", "kind": apperror.KindInvalidInput.String(), "detail": "上一次分析尚未完成"})
			continue
		}
		stopped.Store(false)
		runCtx, stop := context.WithCancel(ctx)
		runMu.Lock()
		runCancel = stop
		runMu.Unlock()

		wg.Add(1)
		go func(jobDescription string) {
			defer wg.Done()
			defer busy.Store(false)
			defer stop()
			h.stream(runCtx, out, jobDescription, stopped.Load)
		}(req.JobDescription)
	}
}

func (h *StreamHandler) stream(ctx context.Context, out *lockedConn, jobDescription string, shouldStop func() bool) {
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	result, err := h.analysisService.StreamAnalyze(ctx, jobDescription, out, shouldStop)
	switch {
	case shouldStop():
		// 被停止的分析只发送完成通知，取消导致的错误不再下发
		log.Infof("[StreamHandler] 分析已被客户端停止, err: %v", err)
	case err != nil:
		log.Errorf("[StreamHandler] 处理流式响应失败: %v", err)
		out.writeJSON(gin.H{"type": "error", "kind": apperror.KindOf(err).String(), "detail": err.Error()})
	default:
		out.writeJSON(gin.H{"type": "result", "data": result})
	}
	sendCompletion(out)
}

// sendCompletion 无论成功与否都发送完成通知。
func sendCompletion(out *lockedConn) {
	out.writeJSON(gin.H{
		"type":      "completion",
		"status":    "finished",
		"message":   "响应已完成",
		"timestamp": time.Now().UnixMilli(),
	})
}

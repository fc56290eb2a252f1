package jobs

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"cert-studio/studio-backend/internal/httpio"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

type Handler struct {
	manager  *Manager
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

func NewHandler(manager *Manager, logger *zap.Logger) *Handler {
	return &Handler{
		manager: manager,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	jobs := rg.Group("/jobs")
	{
		jobs.GET("/:id", h.Get)
		jobs.GET("/:id/download", h.Download)
		jobs.GET("/:id/ws", h.Stream)
		jobs.DELETE("/:id", h.Cancel)
	}
}

// Accepted writes the 202 response for a freshly submitted job.
func Accepted(c *gin.Context, snap Snapshot) {
	c.Header("Location", "/api/v1/jobs/"+snap.ID)
	c.JSON(http.StatusAccepted, gin.H{"job_id": snap.ID, "job": snap})
}

func (h *Handler) Get(c *gin.Context) {
	snap, err := h.manager.Get(c.Param("id"))
	if err != nil {
		httpio.Error(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *Handler) Download(c *gin.Context) {
	data, snap, err := h.manager.Result(c.Param("id"))
	if err != nil {
		httpio.Error(c, h.logger, err)
		return
	}
	if snap.DownloadURL != "" && c.Query("inline") == "" {
		c.Redirect(http.StatusFound, snap.DownloadURL)
		return
	}
	httpio.Archive(c, snap.FileName, data)
}

func (h *Handler) Cancel(c *gin.Context) {
	if err := h.manager.Cancel(c.Param("id")); err != nil {
		httpio.Error(c, h.logger, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "cancellation requested"})
}

// Stream pushes job snapshots over a websocket until the job finishes or the
// client goes away.
func (h *Handler) Stream(c *gin.Context) {
	updates, stop, err := h.manager.Subscribe(c.Param("id"))
	if err != nil {
		httpio.Error(c, h.logger, err)
		return
	}
	defer stop()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	closed := make(chan struct{})
	go readPump(conn, closed)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case snap, ok := <-updates:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "job finished"))
				return
			}
			if err := conn.WriteJSON(snap); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}

// readPump drains client frames so pongs and close frames are processed.
func readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

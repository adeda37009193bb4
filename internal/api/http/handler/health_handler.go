package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kennethnrk/fasttext-services/internal/common/constants"
	"github.com/kennethnrk/fasttext-services/internal/host"
	"github.com/kennethnrk/fasttext-services/internal/store"
)

// Pinger checks a backing dependency such as the vector cache.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HostInfoFunc returns the latest machine snapshot, if one was taken.
type HostInfoFunc func() (store.HostInfo, bool, error)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	host     Host
	cache    Pinger
	hostInfo HostInfoFunc
}

// NewHealthHandler creates a new health handler. cache and hostInfo may be nil.
func NewHealthHandler(h Host, cache Pinger, hostInfo HostInfoFunc) *HealthHandler {
	return &HealthHandler{host: h, cache: cache, hostInfo: hostInfo}
}

// HealthStatus represents the health check response
type HealthStatus struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components"`
	Services   []host.Status     `json:"services"`
	Host       *store.HostInfo   `json:"host,omitempty"`
}

// Health handles GET /health. A failed service or an unreachable cache
// makes the process unhealthy; services still loading do not.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	components := make(map[string]string)
	healthy := true

	statuses := h.host.Statuses()
	for _, s := range statuses {
		switch s.Status {
		case constants.InstanceStatusReady:
			components["service:"+s.Name] = "ok"
		case constants.InstanceStatusFailed:
			components["service:"+s.Name] = "error: " + s.Error
			healthy = false
		default:
			components["service:"+s.Name] = string(s.Status)
		}
	}

	if h.cache != nil {
		if err := h.cache.Ping(ctx); err != nil {
			components["cache"] = "error: " + err.Error()
			healthy = false
		} else {
			components["cache"] = "ok"
		}
	} else {
		components["cache"] = "not configured"
	}

	resp := HealthStatus{Components: components, Services: statuses}
	if h.hostInfo != nil {
		if info, found, err := h.hostInfo(); err != nil {
			components["host"] = "error: " + err.Error()
		} else if found {
			resp.Host = &info
		}
	}

	resp.Status = "healthy"
	httpStatus := http.StatusOK
	if !healthy {
		resp.Status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}
	c.JSON(httpStatus, resp)
}

// Ready handles GET /ready. It succeeds once every service has a loaded model.
func (h *HealthHandler) Ready(c *gin.Context) {
	if !h.host.Ready() {
		var pending []string
		for _, s := range h.host.Statuses() {
			if s.Status != constants.InstanceStatusReady {
				pending = append(pending, s.Name)
			}
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "pending": pending})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kennethnrk/fasttext-services/internal/dataset"
	"github.com/kennethnrk/fasttext-services/internal/host"
	"github.com/kennethnrk/fasttext-services/internal/service"
)

// Host is the part of *host.Host the handlers need.
type Host interface {
	Process(ctx context.Context, name string, in service.Inputs) (service.Outputs, error)
	Statuses() []host.Status
	Ready() bool
}

// ProcessRequest is the body of POST /api/v1/services/:name/process. Each
// input dataset is a records array or a split object.
type ProcessRequest struct {
	Inputs map[string]*dataset.Dataset `json:"inputs" binding:"required"`
}

type ProcessResponse struct {
	Service string                      `json:"service"`
	Outputs map[string]*dataset.Dataset `json:"outputs"`
}

type ServiceList struct {
	Ready    bool          `json:"ready"`
	Services []host.Status `json:"services"`
}

type ServiceHandler struct {
	host Host
}

func NewServiceHandler(h Host) *ServiceHandler {
	return &ServiceHandler{host: h}
}

// Process handles POST /api/v1/services/:name/process
func (h *ServiceHandler) Process(c *gin.Context) {
	var req ProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		respondError(c, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		return
	}
	for name, d := range req.Inputs {
		if d == nil {
			respondError(c, http.StatusBadRequest, CodeInvalidRequest, "input dataset "+name+" is null")
			return
		}
	}

	name := c.Param("name")
	outputs, err := h.host.Process(c.Request.Context(), name, req.Inputs)
	if err != nil {
		HandleError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, ProcessResponse{Service: name, Outputs: outputs})
}

// List handles GET /api/v1/services
func (h *ServiceHandler) List(c *gin.Context) {
	respondSuccess(c, http.StatusOK, ServiceList{Ready: h.host.Ready(), Services: h.host.Statuses()})
}

package station

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aqmesh/station-api/internal/handler"
	"github.com/aqmesh/station-api/internal/service/report"
)

type Handler struct {
	service *report.Service
}

func NewHandler(service *report.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/stations/:id/reports", h.ListReports)
}

func (h *Handler) ListReports(c *gin.Context) {
	result, err := h.service.StationReports(c.Request.Context(), c.Param("id"))
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(result))
}

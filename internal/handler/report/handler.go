package report

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aqmesh/station-api/internal/handler"
	"github.com/aqmesh/station-api/internal/ledger"
	"github.com/aqmesh/station-api/internal/model"
	"github.com/aqmesh/station-api/internal/service/report"
	apperrors "github.com/aqmesh/station-api/pkg/errors"
)

type Handler struct {
	service       *report.Service
	defaultSigner string
}

func NewHandler(service *report.Service, defaultSigner string) *Handler {
	return &Handler{
		service:       service,
		defaultSigner: defaultSigner,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/reports", h.SubmitReport)
}

func (h *Handler) SubmitReport(c *gin.Context) {
	var req model.Report
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("malformed report payload"))
		return
	}

	signer := handler.Signer(c, h.defaultSigner)
	if !ledger.ValidAddress(signer) {
		handler.RespondError(c, apperrors.NewInvalidIdentity(signer))
		return
	}

	contentID, err := h.service.Submit(c.Request.Context(), signer, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(gin.H{
		"contentId": contentID,
		"reportId":  req.ReportID,
	}))
}

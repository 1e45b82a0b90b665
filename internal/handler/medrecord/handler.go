package medrecord

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aqmesh/station-api/internal/handler"
	"github.com/aqmesh/station-api/internal/ledger"
	"github.com/aqmesh/station-api/internal/service/medrecord"
	apperrors "github.com/aqmesh/station-api/pkg/errors"
)

type Handler struct {
	service       *medrecord.Service
	defaultSigner string
}

func NewHandler(service *medrecord.Service, defaultSigner string) *Handler {
	return &Handler{
		service:       service,
		defaultSigner: defaultSigner,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	patients := r.Group("/patients")
	{
		patients.GET("/:id", h.GetPatient)
		patients.GET("/:id/records", h.ListRecords)
		patients.POST("/:id/records", h.AppendRecord)
	}
}

func (h *Handler) GetPatient(c *gin.Context) {
	info, err := h.service.PatientInfo(c.Request.Context(), c.Param("id"))
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(info))
}

func (h *Handler) ListRecords(c *gin.Context) {
	bundle, err := h.service.Records(c.Request.Context(), c.Param("id"))
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(bundle))
}

type appendRequest struct {
	Data json.RawMessage `json:"data" binding:"required"`
}

func (h *Handler) AppendRecord(c *gin.Context) {
	var req appendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("data is required"))
		return
	}

	signer := handler.Signer(c, h.defaultSigner)
	if !ledger.ValidAddress(signer) {
		handler.RespondError(c, apperrors.NewInvalidIdentity(signer))
		return
	}

	contentID, err := h.service.Append(c.Request.Context(), signer, c.Param("id"), req.Data)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(gin.H{"contentId": contentID}))
}

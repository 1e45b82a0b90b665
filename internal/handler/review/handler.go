package review

import (
	"math/big"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/aqmesh/station-api/internal/handler"
	"github.com/aqmesh/station-api/internal/ledger"
	"github.com/aqmesh/station-api/internal/service/review"
	apperrors "github.com/aqmesh/station-api/pkg/errors"
)

type Handler struct {
	service       *review.Service
	defaultSigner string
}

func NewHandler(service *review.Service, defaultSigner string) *Handler {
	return &Handler{
		service:       service,
		defaultSigner: defaultSigner,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/stations/:id/reports/:index/approve", h.ApproveReport)
	contract := r.Group("/contract")
	{
		contract.GET("/balance", h.ContractBalance)
		contract.POST("/fund", h.FundContract)
	}
}

func (h *Handler) ApproveReport(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		handler.RespondError(c, apperrors.NewInvalidIndex(-1, err))
		return
	}

	signer := handler.Signer(c, h.defaultSigner)
	if !ledger.ValidAddress(signer) {
		handler.RespondError(c, apperrors.NewInvalidIdentity(signer))
		return
	}

	result, err := h.service.Approve(c.Request.Context(), signer, c.Param("id"), index)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(result))
}

func (h *Handler) ContractBalance(c *gin.Context) {
	balance, err := h.service.Balance(c.Request.Context())
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{
		"balanceWei": balance.String(),
		"rewardWei":  ledger.RewardWei.String(),
	}))
}

type fundRequest struct {
	AmountWei string `json:"amountWei" binding:"required"`
}

func (h *Handler) FundContract(c *gin.Context) {
	var req fundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("amountWei is required"))
		return
	}

	amount, ok := new(big.Int).SetString(req.AmountWei, 10)
	if !ok {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("amountWei must be a decimal integer"))
		return
	}

	signer := handler.Signer(c, h.defaultSigner)
	if !ledger.ValidAddress(signer) {
		handler.RespondError(c, apperrors.NewInvalidIdentity(signer))
		return
	}

	balance, err := h.service.Fund(c.Request.Context(), signer, amount)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	data := gin.H{"funded": true}
	if balance != nil {
		data["balanceWei"] = balance.String()
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(data))
}

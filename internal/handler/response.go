package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/aqmesh/station-api/pkg/errors"
)

type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  "error",
		Message: message,
	}
}

// RespondError writes err with the status its error code maps to. The
// classified message is surfaced as-is; only unexpected errors hide
// behind a generic message.
func RespondError(c *gin.Context, err error) {
	code := apperrors.CodeOf(err)
	if code == apperrors.ErrInternal {
		c.JSON(http.StatusInternalServerError, NewErrorResponse("internal server error"))
		return
	}
	c.JSON(StatusFor(code), NewErrorResponse(err.Error()))
}

// StatusFor maps workflow error codes onto HTTP statuses. Expected
// search outcomes (not found, bad identity) stay 4xx; upstream ledger
// and blob store failures surface as 502.
func StatusFor(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrValidation, apperrors.ErrBadRequest, apperrors.ErrInvalidIdentity, apperrors.ErrInvalidIndex:
		return http.StatusBadRequest
	case apperrors.ErrNotFound:
		return http.StatusNotFound
	case apperrors.ErrUnauthorized:
		return http.StatusUnauthorized
	case apperrors.ErrForbidden:
		return http.StatusForbidden
	case apperrors.ErrAlreadyApproved, apperrors.ErrConflict:
		return http.StatusConflict
	case apperrors.ErrInsufficientFunds:
		return http.StatusPaymentRequired
	case apperrors.ErrStoreWrite, apperrors.ErrFetch, apperrors.ErrLedgerRead, apperrors.ErrLedgerWrite, apperrors.ErrRewardTransfer:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// HeaderSigner names the header carrying the transaction signer
// address. Wallet signing itself happens node-side.
const HeaderSigner = "X-Signer-Address"

// Signer returns the request's signer address, or fallback when the
// header is absent.
func Signer(c *gin.Context, fallback string) string {
	if from := c.GetHeader(HeaderSigner); from != "" {
		return from
	}
	return fallback
}

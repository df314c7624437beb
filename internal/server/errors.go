package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/estatebook/internal/allocation"
	auditdomain "github.com/smallbiznis/estatebook/internal/audit/domain"
	contractdomain "github.com/smallbiznis/estatebook/internal/contract/domain"
	contractpricedomain "github.com/smallbiznis/estatebook/internal/contractprice/domain"
	houseunitdomain "github.com/smallbiznis/estatebook/internal/houseunit/domain"
	installmentdomain "github.com/smallbiznis/estatebook/internal/installment/domain"
	ledgerdomain "github.com/smallbiznis/estatebook/internal/ledger/domain"
	ordergroupdomain "github.com/smallbiznis/estatebook/internal/ordergroup/domain"
	paymentstatusdomain "github.com/smallbiznis/estatebook/internal/paymentstatus/domain"
	projectdomain "github.com/smallbiznis/estatebook/internal/project/domain"
	"github.com/smallbiznis/estatebook/internal/providers/pdf"
	unittypedomain "github.com/smallbiznis/estatebook/internal/unittype/domain"
	"github.com/smallbiznis/estatebook/pkg/db"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	if invalid, ok := allocation.AsInvalidSchedule(err); ok {
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "invalid_schedule",
			Message: "installment ratios sum to " + invalid.RatioSum.String() + ", outside tolerance " + invalid.Tolerance.String(),
		}
	}

	switch {
	case errors.Is(err, installmentdomain.ErrInvalidScheduleRatios),
		errors.Is(err, allocation.ErrInvalidSchedule):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "invalid_schedule",
			Message: "installment ratios do not sum to 1",
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: conflictMessage(err),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, pdf.ErrFontUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "pdf_font_unavailable",
			Message: "no unicode font configured for pdf export, set PDF_FONT_PATH",
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog feeds the request logger the same type/code pair the
// client receives.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	if status >= http.StatusInternalServerError {
		return payload.Type, "internal"
	}
	return payload.Type, code
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return true
	case isProjectValidationError(err),
		isUnitTypeValidationError(err),
		isInstallmentValidationError(err),
		isHouseUnitValidationError(err),
		isOrderGroupValidationError(err),
		isContractValidationError(err),
		isContractPriceValidationError(err),
		isPaymentStatusValidationError(err),
		isAuditValidationError(err),
		errors.Is(err, ledgerdomain.ErrInvalidOrganization):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, projectdomain.ErrSlugTaken),
		errors.Is(err, unittypedomain.ErrSortTaken),
		errors.Is(err, installmentdomain.ErrDuplicateCode),
		errors.Is(err, houseunitdomain.ErrDuplicateUnit),
		errors.Is(err, contractdomain.ErrUnitAlreadyContracted),
		errors.Is(err, contractdomain.ErrAlreadyCancelled),
		db.IsDuplicateKeyErr(err):
		return true
	default:
		return false
	}
}

func conflictMessage(err error) string {
	for _, known := range []error{
		projectdomain.ErrSlugTaken,
		unittypedomain.ErrSortTaken,
		installmentdomain.ErrDuplicateCode,
		houseunitdomain.ErrDuplicateUnit,
		contractdomain.ErrUnitAlreadyContracted,
		contractdomain.ErrAlreadyCancelled,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return "conflict"
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, projectdomain.ErrNotFound),
		errors.Is(err, unittypedomain.ErrNotFound),
		errors.Is(err, installmentdomain.ErrNotFound),
		errors.Is(err, houseunitdomain.ErrNotFound),
		errors.Is(err, ordergroupdomain.ErrNotFound),
		errors.Is(err, contractdomain.ErrNotFound),
		errors.Is(err, contractpricedomain.ErrNotFound),
		errors.Is(err, contractpricedomain.ErrUnitNotFound),
		errors.Is(err, paymentstatusdomain.ErrProjectNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func isAuditValidationError(err error) bool {
	return isAny(err,
		auditdomain.ErrInvalidOrganization,
		auditdomain.ErrInvalidPageToken,
		auditdomain.ErrInvalidTimeRange,
		auditdomain.ErrInvalidAction,
	)
}

func isAny(err error, targets ...error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func validationErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	default:
		return err.Error()
	}
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	if strings.HasPrefix(code, "negative_") {
		return strings.TrimPrefix(code, "negative_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "invalid_organization":
		return "missing or invalid X-Org-ID header"
	default:
		return "invalid value"
	}
}

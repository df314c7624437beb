package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	installmentdomain "github.com/smallbiznis/estatebook/internal/installment/domain"
)

type installmentStepRequest struct {
	TypeSort    int             `json:"type_sort"`
	Code        string          `json:"code"`
	PayTime     int             `json:"pay_time"`
	Name        string          `json:"name"`
	Ratio       decimal.Decimal `json:"ratio"`
	ExtraAmount int64           `json:"extra_amount"`
	DueDate     string          `json:"due_date"`
}

type replaceScheduleRequest struct {
	Steps []installmentStepRequest `json:"steps"`
}

func (r installmentStepRequest) toDomain(typeSort int) (installmentdomain.StepRequest, error) {
	var due *time.Time
	if value := strings.TrimSpace(r.DueDate); value != "" {
		parsed, err := time.Parse(dateOnlyLayout, value)
		if err != nil {
			return installmentdomain.StepRequest{}, newValidationError("due_date", "invalid_due_date", "due_date must be YYYY-MM-DD")
		}
		due = &parsed
	}
	return installmentdomain.StepRequest{
		TypeSort:    typeSort,
		Code:        strings.TrimSpace(r.Code),
		PayTime:     r.PayTime,
		Name:        strings.TrimSpace(r.Name),
		Ratio:       r.Ratio,
		ExtraAmount: r.ExtraAmount,
		DueDate:     due,
	}, nil
}

func (s *Server) CreateInstallment(c *gin.Context) {
	var req installmentStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	step, err := req.toDomain(req.TypeSort)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.installmentSvc.CreateStep(c.Request.Context(), strings.TrimSpace(c.Param("id")), step)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListInstallments(c *gin.Context) {
	var typeSort *int
	if value := strings.TrimSpace(c.Query("type_sort")); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			AbortWithError(c, newValidationError("type_sort", "invalid_type_sort", "invalid type_sort"))
			return
		}
		typeSort = &parsed
	}

	resp, err := s.installmentSvc.ListSchedule(c.Request.Context(), strings.TrimSpace(c.Param("id")), typeSort)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// ReplaceInstallmentSchedule swaps a unit type's whole schedule in one
// transaction. This is the write path that enforces the ratio sum.
func (s *Server) ReplaceInstallmentSchedule(c *gin.Context) {
	typeSort, err := strconv.Atoi(strings.TrimSpace(c.Param("type_sort")))
	if err != nil {
		AbortWithError(c, newValidationError("type_sort", "invalid_type_sort", "invalid type_sort"))
		return
	}

	var req replaceScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	steps := make([]installmentdomain.StepRequest, 0, len(req.Steps))
	for _, item := range req.Steps {
		step, err := item.toDomain(typeSort)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		steps = append(steps, step)
	}

	resp, err := s.installmentSvc.ReplaceSchedule(c.Request.Context(), strings.TrimSpace(c.Param("id")), typeSort, steps)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteInstallment(c *gin.Context) {
	if err := s.installmentSvc.DeleteStep(c.Request.Context(), strings.TrimSpace(c.Param("id"))); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func isInstallmentValidationError(err error) bool {
	return isAny(err,
		installmentdomain.ErrInvalidOrganization,
		installmentdomain.ErrInvalidProject,
		installmentdomain.ErrInvalidID,
		installmentdomain.ErrInvalidTypeSort,
		installmentdomain.ErrInvalidCode,
		installmentdomain.ErrInvalidRatio,
		installmentdomain.ErrInvalidExtraAmount,
	)
}

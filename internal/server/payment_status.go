package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gosimple/slug"
	paymentstatusdomain "github.com/smallbiznis/estatebook/internal/paymentstatus/domain"
	"go.uber.org/zap"
)

const (
	contentTypePDF  = "application/pdf"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type reportRenderer interface {
	RenderPaymentStatus(ctx context.Context, report *paymentstatusdomain.Report) (io.Reader, error)
}

// GetPaymentStatus returns the rollup as JSON. as_of defaults to today.
func (s *Server) GetPaymentStatus(c *gin.Context) {
	report, ok := s.loadPaymentStatus(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": report})
}

func (s *Server) ExportPaymentStatusPDF(c *gin.Context) {
	s.exportPaymentStatus(c, "pdf", contentTypePDF, s.pdfProvider)
}

func (s *Server) ExportPaymentStatusXLSX(c *gin.Context) {
	s.exportPaymentStatus(c, "xlsx", contentTypeXLSX, s.xlsxProvider)
}

func (s *Server) exportPaymentStatus(c *gin.Context, format, contentType string, renderer reportRenderer) {
	report, ok := s.loadPaymentStatus(c)
	if !ok {
		return
	}

	body, err := renderer.RenderPaymentStatus(c.Request.Context(), report)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if body == nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	s.obsMetrics.RecordExport(c.Request.Context(), format)
	s.log.Info("payment status exported",
		zap.String("project_id", report.ProjectID.String()),
		zap.String("format", format),
		zap.Int("rows", len(report.Rows)),
	)
	c.DataFromReader(http.StatusOK, -1, contentType, body, map[string]string{
		"Content-Disposition": fmt.Sprintf(`attachment; filename="%s"`, exportFilename(report, format)),
	})
}

func (s *Server) loadPaymentStatus(c *gin.Context) (*paymentstatusdomain.Report, bool) {
	asOf, err := parseAsOf(c.Query("as_of"))
	if err != nil {
		AbortWithError(c, err)
		return nil, false
	}

	report, err := s.paymentStatusSvc.Aggregate(c.Request.Context(), strings.TrimSpace(c.Param("id")), asOf)
	if err != nil {
		AbortWithError(c, err)
		return nil, false
	}
	return report, true
}

func parseAsOf(value string) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := time.Parse(dateOnlyLayout, trimmed)
	if err != nil {
		return nil, newValidationError("as_of", "invalid_as_of", "as_of must be YYYY-MM-DD")
	}
	return &parsed, nil
}

func exportFilename(report *paymentstatusdomain.Report, format string) string {
	name := slug.Make(report.ProjectName)
	if name == "" {
		name = report.ProjectID.String()
	}
	return fmt.Sprintf("payment-status-%s-%s.%s", name, report.AsOf.Format(dateOnlyLayout), format)
}

func isPaymentStatusValidationError(err error) bool {
	return isAny(err,
		paymentstatusdomain.ErrInvalidOrganization,
		paymentstatusdomain.ErrInvalidProject,
	)
}

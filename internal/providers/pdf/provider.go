package pdf

import (
	"context"
	"io"

	"github.com/smallbiznis/estatebook/internal/paymentstatus/domain"
)

// Provider renders reports to PDF.
type Provider interface {
	RenderPaymentStatus(ctx context.Context, report *domain.Report) (io.Reader, error)
}

type NoOpProvider struct{}

func (p *NoOpProvider) RenderPaymentStatus(ctx context.Context, report *domain.Report) (io.Reader, error) {
	return nil, nil
}

package db

import (
	"context"

	"gorm.io/gorm"
)

type txKey struct{}

// WithTx attaches an open transaction so collaborators write through it.
func WithTx(ctx context.Context, tx *gorm.DB) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey{}, tx)
}

// FromContext returns the transaction attached by WithTx, or fallback.
func FromContext(ctx context.Context, fallback *gorm.DB) *gorm.DB {
	if ctx == nil {
		return fallback
	}
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return fallback
}

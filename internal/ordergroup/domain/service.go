package domain

import (
	"context"
	"errors"
)

type Service interface {
	Create(ctx context.Context, projectID string, req CreateRequest) (*OrderGroup, error)
	List(ctx context.Context, projectID string) ([]OrderGroup, error)
	SetDefaultForUncontracted(ctx context.Context, id string) (*OrderGroup, error)
}

type CreateRequest struct {
	OrderNumber              int    `json:"order_number"`
	Name                     string `json:"name"`
	IsDefaultForUncontracted bool   `json:"is_default_for_uncontracted"`
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidProject      = errors.New("invalid_project")
	ErrInvalidID           = errors.New("invalid_id")
	ErrInvalidName         = errors.New("invalid_name")
	ErrNotFound            = errors.New("not_found")
)

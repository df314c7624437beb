package domain

import (
	"context"
	"errors"
)

type Service interface {
	Create(ctx context.Context, projectID string, req CreateRequest) (*HouseUnit, error)
	List(ctx context.Context, projectID string) ([]HouseUnit, error)
	Get(ctx context.Context, id string) (*HouseUnit, error)
	UpdatePrice(ctx context.Context, id string, price int64) (*HouseUnit, error)
}

type CreateRequest struct {
	UnitTypeID string `json:"unit_type_id"`
	Dong       string `json:"dong"`
	Ho         string `json:"ho"`
	Price      int64  `json:"price"`
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidProject      = errors.New("invalid_project")
	ErrInvalidUnitType     = errors.New("invalid_unit_type")
	ErrInvalidID           = errors.New("invalid_id")
	ErrInvalidAddress      = errors.New("invalid_address")
	ErrNegativePrice       = errors.New("negative_price")
	ErrDuplicateUnit       = errors.New("duplicate_unit")
	ErrNotFound            = errors.New("not_found")
)

package domain

import (
	"context"
	"errors"
)

type Service interface {
	Create(ctx context.Context, projectID string, req CreateRequest) (*UnitType, error)
	List(ctx context.Context, projectID string) ([]UnitType, error)
	Get(ctx context.Context, id string) (*UnitType, error)
	Rename(ctx context.Context, id string, name string) (*UnitType, error)
}

type CreateRequest struct {
	Name string `json:"name"`
	Sort int    `json:"sort"`
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidProject      = errors.New("invalid_project")
	ErrInvalidID           = errors.New("invalid_id")
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidSort         = errors.New("invalid_sort")
	ErrSortTaken           = errors.New("sort_taken")
	ErrNotFound            = errors.New("not_found")
)

package domain

import (
	"context"
	"errors"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Project, error)
	List(ctx context.Context) ([]Project, error)
	Get(ctx context.Context, id string) (*Project, error)
}

type CreateRequest struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidID           = errors.New("invalid_id")
	ErrSlugTaken           = errors.New("slug_taken")
	ErrNotFound            = errors.New("not_found")
)

package domain

import (
	"context"
	"errors"
	"time"
)

type Service interface {
	Create(ctx context.Context, projectID string, req CreateRequest) (*Contract, error)
	Cancel(ctx context.Context, id string) (*Contract, error)
	List(ctx context.Context, projectID string, status string) ([]Contract, error)
	Get(ctx context.Context, id string) (*Contract, error)
}

type CreateRequest struct {
	HouseUnitID  string    `json:"house_unit_id"`
	OrderGroupID string    `json:"order_group_id"`
	Contractor   string    `json:"contractor"`
	SerialNumber string    `json:"serial_number"`
	ContractDate time.Time `json:"contract_date"`
}

var (
	ErrInvalidOrganization   = errors.New("invalid_organization")
	ErrInvalidProject        = errors.New("invalid_project")
	ErrInvalidID             = errors.New("invalid_id")
	ErrInvalidUnit           = errors.New("invalid_unit")
	ErrInvalidOrderGroup     = errors.New("invalid_order_group")
	ErrInvalidContractor     = errors.New("invalid_contractor")
	ErrInvalidContractDate   = errors.New("invalid_contract_date")
	ErrInvalidStatus         = errors.New("invalid_status")
	ErrUnitAlreadyContracted = errors.New("unit_already_contracted")
	ErrAlreadyCancelled      = errors.New("contract_already_cancelled")
	ErrNotFound              = errors.New("not_found")
)

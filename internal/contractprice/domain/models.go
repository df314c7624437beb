package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/estatebook/internal/allocation"
	"gorm.io/datatypes"
)

// ContractPrice is the per-unit price row. PaymentAmounts is derived from the
// unit price and its type's schedule and is only trusted while IsCacheValid.
type ContractPrice struct {
	ID             snowflake.ID                         `json:"id" gorm:"primaryKey"`
	OrgID          snowflake.ID                         `json:"organization_id" gorm:"column:org_id;not null;index"`
	ProjectID      snowflake.ID                         `json:"project_id" gorm:"not null;index"`
	HouseUnitID    snowflake.ID                         `json:"house_unit_id" gorm:"not null;uniqueIndex"`
	ContractID     *snowflake.ID                        `json:"contract_id,omitempty" gorm:"index"`
	Price          int64                                `json:"price" gorm:"not null"`
	PaymentAmounts datatypes.JSONSlice[allocation.Line] `json:"payment_amounts" gorm:"type:json;not null"`
	IsCacheValid   bool                                 `json:"is_cache_valid" gorm:"not null;default:false;index"`
	CalculatedAt   *time.Time                           `json:"calculated_at,omitempty"`
	CreatedAt      time.Time                            `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time                            `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (ContractPrice) TableName() string { return "contract_prices" }

func (c ContractPrice) Allocation() allocation.Allocation {
	return allocation.Allocation(c.PaymentAmounts)
}

func (c ContractPrice) IsContracted() bool {
	return c.ContractID != nil && *c.ContractID != 0
}

// StaleRef identifies a row whose cache needs recomputing.
type StaleRef struct {
	ID    snowflake.ID
	OrgID snowflake.ID
}

type StaleFilter struct {
	OrgID     snowflake.ID
	ProjectID snowflake.ID
	Limit     int
	// ExcludeIDs skips rows a pass has already tried and could not refresh.
	ExcludeIDs []snowflake.ID
}

package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
)

type Contract struct {
	ID           snowflake.ID `json:"id" gorm:"primaryKey"`
	OrgID        snowflake.ID `json:"organization_id" gorm:"column:org_id;not null;index"`
	ProjectID    snowflake.ID `json:"project_id" gorm:"not null;index"`
	HouseUnitID  snowflake.ID `json:"house_unit_id" gorm:"not null;index"`
	OrderGroupID snowflake.ID `json:"order_group_id" gorm:"not null;index"`
	Contractor   string       `json:"contractor" gorm:"type:text;not null"`
	SerialNumber string       `json:"serial_number" gorm:"type:varchar(64);not null"`
	ContractDate time.Time    `json:"contract_date" gorm:"not null"`
	Amount       int64        `json:"amount" gorm:"not null"`
	Status       Status       `json:"status" gorm:"type:varchar(16);not null;index"`
	CancelledAt  *time.Time   `json:"cancelled_at,omitempty"`
	CreatedAt    time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Contract) TableName() string { return "contracts" }

// SignedBy reports whether the contract was in force at the end of asOf's day.
func (c Contract) SignedBy(asOf time.Time) bool {
	if c.Status != StatusActive {
		return false
	}
	y, m, d := asOf.Date()
	cutoff := time.Date(y, m, d, 0, 0, 0, 0, asOf.Location()).AddDate(0, 0, 1)
	return c.ContractDate.Before(cutoff)
}

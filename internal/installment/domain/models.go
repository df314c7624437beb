package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/estatebook/internal/allocation"
)

// InstallmentPaymentOrder is one step of the schedule shared by every unit type
// of a project with the same TypeSort. Steps are ordered by PayTime.
type InstallmentPaymentOrder struct {
	ID          snowflake.ID    `json:"id" gorm:"primaryKey"`
	OrgID       snowflake.ID    `json:"organization_id" gorm:"column:org_id;not null;index"`
	ProjectID   snowflake.ID    `json:"project_id" gorm:"not null;uniqueIndex:ux_installments_schedule_code,priority:1"`
	TypeSort    int             `json:"type_sort" gorm:"not null;uniqueIndex:ux_installments_schedule_code,priority:2"`
	Code        string          `json:"code" gorm:"type:varchar(64);not null;uniqueIndex:ux_installments_schedule_code,priority:3"`
	PayTime     int             `json:"pay_time" gorm:"not null"`
	Name        string          `json:"name" gorm:"type:text;not null"`
	Ratio       decimal.Decimal `json:"ratio" gorm:"type:numeric(12,8);not null"`
	ExtraAmount int64           `json:"extra_amount" gorm:"not null;default:0"`
	DueDate     *time.Time      `json:"due_date,omitempty"`
	CreatedAt   time.Time       `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time       `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (InstallmentPaymentOrder) TableName() string { return "installment_payment_orders" }

func (i InstallmentPaymentOrder) Step() allocation.Step {
	return allocation.Step{
		Code:        i.Code,
		Ratio:       i.Ratio,
		ExtraAmount: i.ExtraAmount,
		DueDate:     i.DueDate,
	}
}

// Steps converts an ordered schedule into allocator input.
func Steps(items []InstallmentPaymentOrder) []allocation.Step {
	steps := make([]allocation.Step, 0, len(items))
	for _, item := range items {
		steps = append(steps, item.Step())
	}
	return steps
}

// GroupByTypeSort splits a project's steps into schedules keyed by type sort,
// keeping the incoming order.
func GroupByTypeSort(items []InstallmentPaymentOrder) map[int][]InstallmentPaymentOrder {
	out := make(map[int][]InstallmentPaymentOrder)
	for _, item := range items {
		out[item.TypeSort] = append(out[item.TypeSort], item)
	}
	return out
}

package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	installmentdomain "github.com/smallbiznis/estatebook/internal/installment/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() installmentdomain.Repository {
	return &repo{}
}

const selectColumns = `SELECT id, org_id, project_id, type_sort, code, pay_time, name,
	ratio, extra_amount, due_date, created_at, updated_at
	FROM installment_payment_orders`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, s *installmentdomain.InstallmentPaymentOrder) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO installment_payment_orders (
			id, org_id, project_id, type_sort, code, pay_time, name,
			ratio, extra_amount, due_date, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID,
		s.OrgID,
		s.ProjectID,
		s.TypeSort,
		s.Code,
		s.PayTime,
		s.Name,
		s.Ratio,
		s.ExtraAmount,
		s.DueDate,
		s.CreatedAt,
		s.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*installmentdomain.InstallmentPaymentOrder, error) {
	var s installmentdomain.InstallmentPaymentOrder
	err := db.WithContext(ctx).Raw(selectColumns+` WHERE org_id = ? AND id = ?`, orgID, id).Scan(&s).Error
	if err != nil {
		return nil, err
	}
	if s.ID == 0 {
		return nil, nil
	}
	return &s, nil
}

func (r *repo) ListSchedule(ctx context.Context, db *gorm.DB, orgID, projectID snowflake.ID, typeSort int) ([]installmentdomain.InstallmentPaymentOrder, error) {
	var items []installmentdomain.InstallmentPaymentOrder
	err := db.WithContext(ctx).Raw(
		selectColumns+` WHERE org_id = ? AND project_id = ? AND type_sort = ?
		ORDER BY pay_time ASC, id ASC`,
		orgID,
		projectID,
		typeSort,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListProject(ctx context.Context, db *gorm.DB, orgID, projectID snowflake.ID) ([]installmentdomain.InstallmentPaymentOrder, error) {
	var items []installmentdomain.InstallmentPaymentOrder
	err := db.WithContext(ctx).Raw(
		selectColumns+` WHERE org_id = ? AND project_id = ?
		ORDER BY type_sort ASC, pay_time ASC, id ASC`,
		orgID,
		projectID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`DELETE FROM installment_payment_orders WHERE org_id = ? AND id = ?`,
		orgID,
		id,
	).Error
}

func (r *repo) DeleteSchedule(ctx context.Context, db *gorm.DB, orgID, projectID snowflake.ID, typeSort int) error {
	return db.WithContext(ctx).Exec(
		`DELETE FROM installment_payment_orders WHERE org_id = ? AND project_id = ? AND type_sort = ?`,
		orgID,
		projectID,
		typeSort,
	).Error
}

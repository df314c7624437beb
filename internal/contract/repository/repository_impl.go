package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	contractdomain "github.com/smallbiznis/estatebook/internal/contract/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() contractdomain.Repository {
	return &repo{}
}

const selectColumns = `SELECT id, org_id, project_id, house_unit_id, order_group_id, contractor,
	serial_number, contract_date, amount, status, cancelled_at, created_at, updated_at
	FROM contracts`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, c *contractdomain.Contract) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO contracts (
			id, org_id, project_id, house_unit_id, order_group_id, contractor,
			serial_number, contract_date, amount, status, cancelled_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID,
		c.OrgID,
		c.ProjectID,
		c.HouseUnitID,
		c.OrderGroupID,
		c.Contractor,
		c.SerialNumber,
		c.ContractDate,
		c.Amount,
		c.Status,
		c.CancelledAt,
		c.CreatedAt,
		c.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*contractdomain.Contract, error) {
	var c contractdomain.Contract
	err := db.WithContext(ctx).Raw(selectColumns+` WHERE org_id = ? AND id = ?`, orgID, id).Scan(&c).Error
	if err != nil {
		return nil, err
	}
	if c.ID == 0 {
		return nil, nil
	}
	return &c, nil
}

func (r *repo) FindActiveByUnit(ctx context.Context, db *gorm.DB, orgID, unitID snowflake.ID) (*contractdomain.Contract, error) {
	var c contractdomain.Contract
	err := db.WithContext(ctx).Raw(
		selectColumns+` WHERE org_id = ? AND house_unit_id = ? AND status = ? ORDER BY id DESC LIMIT 1`,
		orgID,
		unitID,
		contractdomain.StatusActive,
	).Scan(&c).Error
	if err != nil {
		return nil, err
	}
	if c.ID == 0 {
		return nil, nil
	}
	return &c, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, orgID, projectID snowflake.ID, status contractdomain.Status) ([]contractdomain.Contract, error) {
	stmt := db.WithContext(ctx).Model(&contractdomain.Contract{}).
		Where("org_id = ? AND project_id = ?", orgID, projectID)
	if status != "" {
		stmt = stmt.Where("status = ?", status)
	}

	var items []contractdomain.Contract
	if err := stmt.Order("contract_date asc, id asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) Cancel(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, cancelledAt time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE contracts SET status = ?, cancelled_at = ?, updated_at = ?
		 WHERE org_id = ? AND id = ? AND status = ?`,
		contractdomain.StatusCancelled,
		cancelledAt,
		cancelledAt,
		orgID,
		id,
		contractdomain.StatusActive,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

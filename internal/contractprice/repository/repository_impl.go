package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/estatebook/internal/allocation"
	contractpricedomain "github.com/smallbiznis/estatebook/internal/contractprice/domain"
	pkgdb "github.com/smallbiznis/estatebook/pkg/db"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() contractpricedomain.Repository {
	return &repo{}
}

const selectColumns = `SELECT id, org_id, project_id, house_unit_id, contract_id, price,
	payment_amounts, is_cache_valid, calculated_at, created_at, updated_at
	FROM contract_prices`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, cp *contractpricedomain.ContractPrice) error {
	amounts := cp.PaymentAmounts
	if amounts == nil {
		amounts = datatypes.JSONSlice[allocation.Line]{}
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO contract_prices (
			id, org_id, project_id, house_unit_id, contract_id, price,
			payment_amounts, is_cache_valid, calculated_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cp.ID,
		cp.OrgID,
		cp.ProjectID,
		cp.HouseUnitID,
		cp.ContractID,
		cp.Price,
		amounts,
		cp.IsCacheValid,
		cp.CalculatedAt,
		cp.CreatedAt,
		cp.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*contractpricedomain.ContractPrice, error) {
	return r.findOne(ctx, db, selectColumns+` WHERE org_id = ? AND id = ?`, orgID, id)
}

func (r *repo) FindByUnit(ctx context.Context, db *gorm.DB, orgID, unitID snowflake.ID) (*contractpricedomain.ContractPrice, error) {
	return r.findOne(ctx, db, selectColumns+` WHERE org_id = ? AND house_unit_id = ?`, orgID, unitID)
}

// LockByID takes a row lock on Postgres and MySQL. SQLite has no row locks and
// serializes writers at the transaction level, so the clause is left out there.
func (r *repo) LockByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*contractpricedomain.ContractPrice, error) {
	stmt := db.WithContext(ctx)
	if !pkgdb.IsSQLite(db) {
		stmt = stmt.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var items []contractpricedomain.ContractPrice
	err := stmt.
		Where("org_id = ? AND id = ?", orgID, id).
		Limit(1).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, args ...any) (*contractpricedomain.ContractPrice, error) {
	var cp contractpricedomain.ContractPrice
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&cp).Error; err != nil {
		return nil, err
	}
	if cp.ID == 0 {
		return nil, nil
	}
	return &cp, nil
}

func (r *repo) ListByProject(ctx context.Context, db *gorm.DB, orgID, projectID snowflake.ID) ([]contractpricedomain.ContractPrice, error) {
	var items []contractpricedomain.ContractPrice
	err := db.WithContext(ctx).Raw(
		selectColumns+` WHERE org_id = ? AND project_id = ? ORDER BY id ASC`,
		orgID,
		projectID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListStale(ctx context.Context, db *gorm.DB, filter contractpricedomain.StaleFilter) ([]contractpricedomain.StaleRef, error) {
	stmt := db.WithContext(ctx).
		Model(&contractpricedomain.ContractPrice{}).
		Select("id, org_id").
		Where("is_cache_valid = ?", false)
	if filter.OrgID != 0 {
		stmt = stmt.Where("org_id = ?", filter.OrgID)
	}
	if filter.ProjectID != 0 {
		stmt = stmt.Where("project_id = ?", filter.ProjectID)
	}
	if len(filter.ExcludeIDs) > 0 {
		stmt = stmt.Where("id NOT IN ?", filter.ExcludeIDs)
	}
	stmt = stmt.Order("updated_at asc, id asc")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit)
	}

	var refs []contractpricedomain.StaleRef
	if err := stmt.Scan(&refs).Error; err != nil {
		return nil, err
	}
	return refs, nil
}

func (r *repo) SaveAllocation(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, amounts allocation.Allocation, calculatedAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE contract_prices
		 SET payment_amounts = ?, is_cache_valid = ?, calculated_at = ?, updated_at = ?
		 WHERE org_id = ? AND id = ?`,
		datatypes.JSONSlice[allocation.Line](amounts),
		true,
		calculatedAt,
		calculatedAt,
		orgID,
		id,
	).Error
}

func (r *repo) LinkContract(ctx context.Context, db *gorm.DB, orgID, unitID snowflake.ID, contractID *snowflake.ID, updatedAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE contract_prices SET contract_id = ?, updated_at = ? WHERE org_id = ? AND house_unit_id = ?`,
		contractID,
		updatedAt,
		orgID,
		unitID,
	).Error
}

func (r *repo) UpdatePrice(ctx context.Context, db *gorm.DB, orgID, unitID snowflake.ID, price int64, updatedAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE contract_prices SET price = ?, updated_at = ? WHERE org_id = ? AND house_unit_id = ?`,
		price,
		updatedAt,
		orgID,
		unitID,
	).Error
}

func (r *repo) InvalidateByUnit(ctx context.Context, db *gorm.DB, orgID, unitID snowflake.ID, updatedAt time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE contract_prices SET is_cache_valid = ?, updated_at = ?
		 WHERE org_id = ? AND house_unit_id = ?`,
		false,
		updatedAt,
		orgID,
		unitID,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) InvalidateBySchedule(ctx context.Context, db *gorm.DB, orgID, projectID snowflake.ID, typeSort int, updatedAt time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE contract_prices SET is_cache_valid = ?, updated_at = ?
		 WHERE org_id = ? AND project_id = ? AND house_unit_id IN (
			SELECT hu.id FROM house_units hu
			JOIN unit_types ut ON ut.id = hu.unit_type_id
			WHERE hu.org_id = ? AND hu.project_id = ? AND ut.sort = ?
		 )`,
		false,
		updatedAt,
		orgID,
		projectID,
		orgID,
		projectID,
		typeSort,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) InvalidateByProject(ctx context.Context, db *gorm.DB, orgID, projectID snowflake.ID, updatedAt time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE contract_prices SET is_cache_valid = ?, updated_at = ? WHERE org_id = ? AND project_id = ?`,
		false,
		updatedAt,
		orgID,
		projectID,
	)
	return result.RowsAffected, result.Error
}

package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	houseunitdomain "github.com/smallbiznis/estatebook/internal/houseunit/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() houseunitdomain.Repository {
	return &repo{}
}

const selectColumns = `SELECT id, org_id, project_id, unit_type_id, dong, ho, price, created_at, updated_at FROM house_units`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, u *houseunitdomain.HouseUnit) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO house_units (id, org_id, project_id, unit_type_id, dong, ho, price, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID,
		u.OrgID,
		u.ProjectID,
		u.UnitTypeID,
		u.Dong,
		u.Ho,
		u.Price,
		u.CreatedAt,
		u.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*houseunitdomain.HouseUnit, error) {
	var u houseunitdomain.HouseUnit
	err := db.WithContext(ctx).Raw(selectColumns+` WHERE org_id = ? AND id = ?`, orgID, id).Scan(&u).Error
	if err != nil {
		return nil, err
	}
	if u.ID == 0 {
		return nil, nil
	}
	return &u, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, orgID, projectID snowflake.ID) ([]houseunitdomain.HouseUnit, error) {
	var items []houseunitdomain.HouseUnit
	err := db.WithContext(ctx).Raw(
		selectColumns+` WHERE org_id = ? AND project_id = ? ORDER BY dong ASC, ho ASC, id ASC`,
		orgID,
		projectID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) UpdatePrice(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, price int64, updatedAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE house_units SET price = ?, updated_at = ? WHERE org_id = ? AND id = ?`,
		price,
		updatedAt,
		orgID,
		id,
	).Error
}

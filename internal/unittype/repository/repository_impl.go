package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	unittypedomain "github.com/smallbiznis/estatebook/internal/unittype/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() unittypedomain.Repository {
	return &repo{}
}

const selectColumns = `SELECT id, org_id, project_id, name, sort, created_at, updated_at FROM unit_types`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, u *unittypedomain.UnitType) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO unit_types (id, org_id, project_id, name, sort, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID,
		u.OrgID,
		u.ProjectID,
		u.Name,
		u.Sort,
		u.CreatedAt,
		u.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*unittypedomain.UnitType, error) {
	var u unittypedomain.UnitType
	err := db.WithContext(ctx).Raw(selectColumns+` WHERE org_id = ? AND id = ?`, orgID, id).Scan(&u).Error
	if err != nil {
		return nil, err
	}
	if u.ID == 0 {
		return nil, nil
	}
	return &u, nil
}

func (r *repo) FindBySort(ctx context.Context, db *gorm.DB, orgID, projectID snowflake.ID, sort int) (*unittypedomain.UnitType, error) {
	var u unittypedomain.UnitType
	err := db.WithContext(ctx).Raw(
		selectColumns+` WHERE org_id = ? AND project_id = ? AND sort = ?`,
		orgID,
		projectID,
		sort,
	).Scan(&u).Error
	if err != nil {
		return nil, err
	}
	if u.ID == 0 {
		return nil, nil
	}
	return &u, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, orgID, projectID snowflake.ID) ([]unittypedomain.UnitType, error) {
	var items []unittypedomain.UnitType
	err := db.WithContext(ctx).Raw(
		selectColumns+` WHERE org_id = ? AND project_id = ? ORDER BY sort ASC, name ASC`,
		orgID,
		projectID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) UpdateName(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, name string, updatedAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE unit_types SET name = ?, updated_at = ? WHERE org_id = ? AND id = ?`,
		name,
		updatedAt,
		orgID,
		id,
	).Error
}

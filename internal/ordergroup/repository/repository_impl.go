package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	ordergroupdomain "github.com/smallbiznis/estatebook/internal/ordergroup/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() ordergroupdomain.Repository {
	return &repo{}
}

const selectColumns = `SELECT id, org_id, project_id, order_number, name, is_default_for_uncontracted,
	created_at, updated_at FROM order_groups`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, g *ordergroupdomain.OrderGroup) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO order_groups (
			id, org_id, project_id, order_number, name, is_default_for_uncontracted, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID,
		g.OrgID,
		g.ProjectID,
		g.OrderNumber,
		g.Name,
		g.IsDefaultForUncontracted,
		g.CreatedAt,
		g.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*ordergroupdomain.OrderGroup, error) {
	var g ordergroupdomain.OrderGroup
	err := db.WithContext(ctx).Raw(selectColumns+` WHERE org_id = ? AND id = ?`, orgID, id).Scan(&g).Error
	if err != nil {
		return nil, err
	}
	if g.ID == 0 {
		return nil, nil
	}
	return &g, nil
}

func (r *repo) FindDefault(ctx context.Context, db *gorm.DB, orgID, projectID snowflake.ID) (*ordergroupdomain.OrderGroup, error) {
	var g ordergroupdomain.OrderGroup
	err := db.WithContext(ctx).Raw(
		selectColumns+` WHERE org_id = ? AND project_id = ? AND is_default_for_uncontracted = ?
		ORDER BY id ASC LIMIT 1`,
		orgID,
		projectID,
		true,
	).Scan(&g).Error
	if err != nil {
		return nil, err
	}
	if g.ID == 0 {
		return nil, nil
	}
	return &g, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, orgID, projectID snowflake.ID) ([]ordergroupdomain.OrderGroup, error) {
	var items []ordergroupdomain.OrderGroup
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

// SetDefault clears the flag on every other group of the project before setting it on id.
func (r *repo) SetDefault(ctx context.Context, db *gorm.DB, orgID, projectID, id snowflake.ID, updatedAt time.Time) error {
	if err := db.WithContext(ctx).Exec(
		`UPDATE order_groups SET is_default_for_uncontracted = ?, updated_at = ?
		 WHERE org_id = ? AND project_id = ? AND id <> ? AND is_default_for_uncontracted = ?`,
		false,
		updatedAt,
		orgID,
		projectID,
		id,
		true,
	).Error; err != nil {
		return err
	}
	return db.WithContext(ctx).Exec(
		`UPDATE order_groups SET is_default_for_uncontracted = ?, updated_at = ? WHERE org_id = ? AND id = ?`,
		true,
		updatedAt,
		orgID,
		id,
	).Error
}

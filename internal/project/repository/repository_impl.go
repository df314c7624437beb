package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	projectdomain "github.com/smallbiznis/estatebook/internal/project/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() projectdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, p *projectdomain.Project) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO projects (id, org_id, name, slug, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID,
		p.OrgID,
		p.Name,
		p.Slug,
		p.CreatedAt,
		p.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*projectdomain.Project, error) {
	var p projectdomain.Project
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, name, slug, created_at, updated_at
		 FROM projects WHERE org_id = ? AND id = ?`,
		orgID,
		id,
	).Scan(&p).Error
	if err != nil {
		return nil, err
	}
	if p.ID == 0 {
		return nil, nil
	}
	return &p, nil
}

func (r *repo) FindBySlug(ctx context.Context, db *gorm.DB, orgID snowflake.ID, slug string) (*projectdomain.Project, error) {
	var p projectdomain.Project
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, name, slug, created_at, updated_at
		 FROM projects WHERE org_id = ? AND slug = ?`,
		orgID,
		slug,
	).Scan(&p).Error
	if err != nil {
		return nil, err
	}
	if p.ID == 0 {
		return nil, nil
	}
	return &p, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]projectdomain.Project, error) {
	var items []projectdomain.Project
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, name, slug, created_at, updated_at
		 FROM projects WHERE org_id = ? ORDER BY created_at ASC, id ASC`,
		orgID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	auditdomain "github.com/smallbiznis/estatebook/internal/audit/domain"
	"github.com/smallbiznis/estatebook/internal/clock"
	"github.com/smallbiznis/estatebook/internal/orgcontext"
	projectdomain "github.com/smallbiznis/estatebook/internal/project/domain"
	"github.com/smallbiznis/estatebook/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     projectdomain.Repository
	AuditSvc auditdomain.Service `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     projectdomain.Repository
	auditSvc auditdomain.Service
}

func New(p Params) projectdomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("project.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		auditSvc: p.AuditSvc,
	}
}

func (s *Service) Create(ctx context.Context, req projectdomain.CreateRequest) (*projectdomain.Project, error) {
	orgID, ok := orgcontext.Require(ctx)
	if !ok {
		return nil, projectdomain.ErrInvalidOrganization
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, projectdomain.ErrInvalidName
	}

	projectSlug := slug.Make(strings.TrimSpace(req.Slug))
	if projectSlug == "" {
		projectSlug = slug.Make(name)
	}
	if projectSlug == "" {
		projectSlug = s.genID.Generate().String()
	}

	existing, err := s.repo.FindBySlug(ctx, s.db, orgID, projectSlug)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, projectdomain.ErrSlugTaken
	}

	now := s.clock.Now()
	entity := &projectdomain.Project{
		ID:        s.genID.Generate(),
		OrgID:     orgID,
		Name:      name,
		Slug:      projectSlug,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Insert(ctx, s.db, entity); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, projectdomain.ErrSlugTaken
		}
		return nil, err
	}

	if s.auditSvc != nil {
		targetID := entity.ID.String()
		if err := s.auditSvc.Record(ctx, auditdomain.Event{
			OrgID:      orgID,
			Action:     "project.created",
			TargetType: "project",
			TargetID:   targetID,
			Metadata: map[string]any{
				"slug": entity.Slug,
			},
		}); err != nil {
			s.log.Warn("failed to write audit log", zap.Error(err))
		}
	}

	return entity, nil
}

func (s *Service) List(ctx context.Context) ([]projectdomain.Project, error) {
	orgID, ok := orgcontext.Require(ctx)
	if !ok {
		return nil, projectdomain.ErrInvalidOrganization
	}
	return s.repo.List(ctx, s.db, orgID)
}

func (s *Service) Get(ctx context.Context, id string) (*projectdomain.Project, error) {
	orgID, ok := orgcontext.Require(ctx)
	if !ok {
		return nil, projectdomain.ErrInvalidOrganization
	}

	projectID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || projectID == 0 {
		return nil, projectdomain.ErrInvalidID
	}

	entity, err := s.repo.FindByID(ctx, s.db, orgID, projectID)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, projectdomain.ErrNotFound
	}
	return entity, nil
}

package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/estatebook/internal/audit/domain"
	"github.com/smallbiznis/estatebook/internal/clock"
	"github.com/smallbiznis/estatebook/internal/orgcontext"
	projectdomain "github.com/smallbiznis/estatebook/internal/project/domain"
	unittypedomain "github.com/smallbiznis/estatebook/internal/unittype/domain"
	"github.com/smallbiznis/estatebook/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        unittypedomain.Repository
	ProjectRepo projectdomain.Repository
	AuditSvc    auditdomain.Service `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        unittypedomain.Repository
	projectRepo projectdomain.Repository
	auditSvc    auditdomain.Service
}

func New(p Params) unittypedomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("unittype.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		projectRepo: p.ProjectRepo,
		auditSvc:    p.AuditSvc,
	}
}

func (s *Service) Create(ctx context.Context, projectID string, req unittypedomain.CreateRequest) (*unittypedomain.UnitType, error) {
	orgID, ok := orgcontext.Require(ctx)
	if !ok {
		return nil, unittypedomain.ErrInvalidOrganization
	}

	pid, err := s.resolveProject(ctx, orgID, projectID)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, unittypedomain.ErrInvalidName
	}
	if req.Sort < 0 {
		return nil, unittypedomain.ErrInvalidSort
	}

	existing, err := s.repo.FindBySort(ctx, s.db, orgID, pid, req.Sort)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, unittypedomain.ErrSortTaken
	}

	now := s.clock.Now()
	entity := &unittypedomain.UnitType{
		ID:        s.genID.Generate(),
		OrgID:     orgID,
		ProjectID: pid,
		Name:      name,
		Sort:      req.Sort,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Insert(ctx, s.db, entity); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, unittypedomain.ErrSortTaken
		}
		return nil, err
	}

	s.audit(ctx, orgID, "unit_type.created", entity, nil)
	return entity, nil
}

func (s *Service) List(ctx context.Context, projectID string) ([]unittypedomain.UnitType, error) {
	orgID, ok := orgcontext.Require(ctx)
	if !ok {
		return nil, unittypedomain.ErrInvalidOrganization
	}

	pid, err := s.resolveProject(ctx, orgID, projectID)
	if err != nil {
		return nil, err
	}
	return s.repo.List(ctx, s.db, orgID, pid)
}

func (s *Service) Get(ctx context.Context, id string) (*unittypedomain.UnitType, error) {
	orgID, ok := orgcontext.Require(ctx)
	if !ok {
		return nil, unittypedomain.ErrInvalidOrganization
	}
	return s.find(ctx, orgID, id)
}

// Rename changes only the display name; allocation caches are unaffected.
func (s *Service) Rename(ctx context.Context, id string, name string) (*unittypedomain.UnitType, error) {
	orgID, ok := orgcontext.Require(ctx)
	if !ok {
		return nil, unittypedomain.ErrInvalidOrganization
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, unittypedomain.ErrInvalidName
	}

	entity, err := s.find(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	previous := entity.Name
	now := s.clock.Now()
	if err := s.repo.UpdateName(ctx, s.db, orgID, entity.ID, name, now); err != nil {
		return nil, err
	}
	entity.Name = name
	entity.UpdatedAt = now

	s.audit(ctx, orgID, "unit_type.renamed", entity, map[string]any{"previous_name": previous})
	return entity, nil
}

func (s *Service) find(ctx context.Context, orgID snowflake.ID, id string) (*unittypedomain.UnitType, error) {
	unitTypeID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || unitTypeID == 0 {
		return nil, unittypedomain.ErrInvalidID
	}

	entity, err := s.repo.FindByID(ctx, s.db, orgID, unitTypeID)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, unittypedomain.ErrNotFound
	}
	return entity, nil
}

func (s *Service) resolveProject(ctx context.Context, orgID snowflake.ID, projectID string) (snowflake.ID, error) {
	pid, err := snowflake.ParseString(strings.TrimSpace(projectID))
	if err != nil || pid == 0 {
		return 0, unittypedomain.ErrInvalidProject
	}
	project, err := s.projectRepo.FindByID(ctx, s.db, orgID, pid)
	if err != nil {
		return 0, err
	}
	if project == nil {
		return 0, unittypedomain.ErrInvalidProject
	}
	return pid, nil
}

func (s *Service) audit(ctx context.Context, orgID snowflake.ID, action string, entity *unittypedomain.UnitType, extra map[string]any) {
	if s.auditSvc == nil {
		return
	}
	metadata := map[string]any{
		"project_id": entity.ProjectID.String(),
		"name":       entity.Name,
		"sort":       entity.Sort,
	}
	for k, v := range extra {
		metadata[k] = v
	}
	targetID := entity.ID.String()
	if err := s.auditSvc.Record(ctx, auditdomain.Event{OrgID: orgID, Action: action, TargetType: "unit_type", TargetID: targetID, Metadata: metadata}); err != nil {
		s.log.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
	}
}

package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/estatebook/internal/audit/domain"
	"github.com/smallbiznis/estatebook/internal/clock"
	ordergroupdomain "github.com/smallbiznis/estatebook/internal/ordergroup/domain"
	"github.com/smallbiznis/estatebook/internal/orgcontext"
	projectdomain "github.com/smallbiznis/estatebook/internal/project/domain"
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
	Repo        ordergroupdomain.Repository
	ProjectRepo projectdomain.Repository
	AuditSvc    auditdomain.Service `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        ordergroupdomain.Repository
	projectRepo projectdomain.Repository
	auditSvc    auditdomain.Service
}

func New(p Params) ordergroupdomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("ordergroup.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		projectRepo: p.ProjectRepo,
		auditSvc:    p.AuditSvc,
	}
}

func (s *Service) Create(ctx context.Context, projectID string, req ordergroupdomain.CreateRequest) (*ordergroupdomain.OrderGroup, error) {
	orgID, ok := orgcontext.Require(ctx)
	if !ok {
		return nil, ordergroupdomain.ErrInvalidOrganization
	}
	pid, err := s.resolveProject(ctx, orgID, projectID)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ordergroupdomain.ErrInvalidName
	}

	now := s.clock.Now()
	entity := &ordergroupdomain.OrderGroup{
		ID:          s.genID.Generate(),
		OrgID:       orgID,
		ProjectID:   pid,
		OrderNumber: req.OrderNumber,
		Name:        name,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, entity); err != nil {
			return err
		}
		if req.IsDefaultForUncontracted {
			if err := s.repo.SetDefault(ctx, tx, orgID, pid, entity.ID, now); err != nil {
				return err
			}
			entity.IsDefaultForUncontracted = true
		}
		return s.audit(db.WithTx(ctx, tx), orgID, "order_group.created", entity)
	})
	if err != nil {
		return nil, err
	}
	return entity, nil
}

func (s *Service) List(ctx context.Context, projectID string) ([]ordergroupdomain.OrderGroup, error) {
	orgID, ok := orgcontext.Require(ctx)
	if !ok {
		return nil, ordergroupdomain.ErrInvalidOrganization
	}
	pid, err := s.resolveProject(ctx, orgID, projectID)
	if err != nil {
		return nil, err
	}
	return s.repo.List(ctx, s.db, orgID, pid)
}

// SetDefaultForUncontracted moves the project's uncontracted bucket to this group.
func (s *Service) SetDefaultForUncontracted(ctx context.Context, id string) (*ordergroupdomain.OrderGroup, error) {
	orgID, ok := orgcontext.Require(ctx)
	if !ok {
		return nil, ordergroupdomain.ErrInvalidOrganization
	}
	groupID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || groupID == 0 {
		return nil, ordergroupdomain.ErrInvalidID
	}

	entity, err := s.repo.FindByID(ctx, s.db, orgID, groupID)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, ordergroupdomain.ErrNotFound
	}
	if entity.IsDefaultForUncontracted {
		return entity, nil
	}

	now := s.clock.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.SetDefault(ctx, tx, orgID, entity.ProjectID, entity.ID, now); err != nil {
			return err
		}
		entity.IsDefaultForUncontracted = true
		entity.UpdatedAt = now
		return s.audit(db.WithTx(ctx, tx), orgID, "order_group.default_set", entity)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("default order group changed",
		zap.String("project_id", entity.ProjectID.String()),
		zap.String("order_group_id", entity.ID.String()),
	)
	return entity, nil
}

func (s *Service) resolveProject(ctx context.Context, orgID snowflake.ID, projectID string) (snowflake.ID, error) {
	pid, err := snowflake.ParseString(strings.TrimSpace(projectID))
	if err != nil || pid == 0 {
		return 0, ordergroupdomain.ErrInvalidProject
	}
	project, err := s.projectRepo.FindByID(ctx, s.db, orgID, pid)
	if err != nil {
		return 0, err
	}
	if project == nil {
		return 0, ordergroupdomain.ErrInvalidProject
	}
	return pid, nil
}

func (s *Service) audit(ctx context.Context, orgID snowflake.ID, action string, entity *ordergroupdomain.OrderGroup) error {
	if s.auditSvc == nil {
		return nil
	}
	targetID := entity.ID.String()
	if err := s.auditSvc.Record(ctx, auditdomain.Event{
		OrgID:      orgID,
		Action:     action,
		TargetType: "order_group",
		TargetID:   targetID,
		Metadata: map[string]any{
			"project_id": entity.ProjectID.String(),
			"name":       entity.Name,
			"default":    entity.IsDefaultForUncontracted,
		},
	}); err != nil {
		return fmt.Errorf("record %s: %w", action, err)
	}
	return nil
}

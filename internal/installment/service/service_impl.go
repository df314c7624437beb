package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/estatebook/internal/allocation"
	auditdomain "github.com/smallbiznis/estatebook/internal/audit/domain"
	"github.com/smallbiznis/estatebook/internal/clock"
	"github.com/smallbiznis/estatebook/internal/config"
	contractpricedomain "github.com/smallbiznis/estatebook/internal/contractprice/domain"
	installmentdomain "github.com/smallbiznis/estatebook/internal/installment/domain"
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
	Config      *config.AllocationConfigHolder
	Repo        installmentdomain.Repository
	ProjectRepo projectdomain.Repository
	Invalidator contractpricedomain.Invalidator
	AuditSvc    auditdomain.Service `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	cfg         *config.AllocationConfigHolder
	repo        installmentdomain.Repository
	projectRepo projectdomain.Repository
	invalidator contractpricedomain.Invalidator
	auditSvc    auditdomain.Service
}

func New(p Params) installmentdomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("installment.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		cfg:         p.Config,
		repo:        p.Repo,
		projectRepo: p.ProjectRepo,
		invalidator: p.Invalidator,
		auditSvc:    p.AuditSvc,
	}
}

// CreateStep adds a single step. Ratio totals are not enforced here since a
// schedule is usually entered one step at a time.
func (s *Service) CreateStep(ctx context.Context, projectID string, req installmentdomain.StepRequest) (*installmentdomain.InstallmentPaymentOrder, error) {
	orgID, pid, err := s.resolveProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := validateStep(req); err != nil {
		return nil, err
	}

	entity := s.newStep(orgID, pid, req.TypeSort, req)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, entity); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return installmentdomain.ErrDuplicateCode
			}
			return err
		}
		if err := s.invalidator.InvalidateSchedule(ctx, tx, orgID, pid, entity.TypeSort); err != nil {
			return err
		}
		return s.audit(db.WithTx(ctx, tx), orgID, "installment.step_created", entity.ID.String(), map[string]any{
			"project_id": pid.String(),
			"type_sort":  entity.TypeSort,
			"code":       entity.Code,
			"ratio":      entity.Ratio.String(),
		})
	})
	if err != nil {
		return nil, err
	}
	return entity, nil
}

func (s *Service) ListSchedule(ctx context.Context, projectID string, typeSort *int) ([]installmentdomain.InstallmentPaymentOrder, error) {
	orgID, pid, err := s.resolveProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if typeSort == nil {
		return s.repo.ListProject(ctx, s.db, orgID, pid)
	}
	return s.repo.ListSchedule(ctx, s.db, orgID, pid, *typeSort)
}

// ReplaceSchedule swaps the whole schedule of one type sort atomically. When
// enforceOnWrite is on, a non-empty schedule must sum to 1 within tolerance.
func (s *Service) ReplaceSchedule(ctx context.Context, projectID string, typeSort int, steps []installmentdomain.StepRequest) ([]installmentdomain.InstallmentPaymentOrder, error) {
	orgID, pid, err := s.resolveProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if typeSort < 0 {
		return nil, installmentdomain.ErrInvalidTypeSort
	}

	seen := make(map[string]struct{}, len(steps))
	entities := make([]installmentdomain.InstallmentPaymentOrder, 0, len(steps))
	for i, req := range steps {
		req.TypeSort = typeSort
		if req.PayTime == 0 {
			req.PayTime = i + 1
		}
		if err := validateStep(req); err != nil {
			return nil, err
		}
		code := strings.TrimSpace(req.Code)
		if _, ok := seen[code]; ok {
			return nil, installmentdomain.ErrDuplicateCode
		}
		seen[code] = struct{}{}
		entities = append(entities, *s.newStep(orgID, pid, typeSort, req))
	}

	cfg := s.cfg.Get()
	if cfg.EnforceOnWrite {
		opts := allocation.Options{Tolerance: cfg.ToleranceDecimal(), DefaultCode: cfg.DefaultStepCode}
		if err := allocation.CheckRatios(installmentdomain.Steps(entities), opts); err != nil {
			return nil, fmt.Errorf("%w: %v", installmentdomain.ErrInvalidScheduleRatios, err)
		}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.DeleteSchedule(ctx, tx, orgID, pid, typeSort); err != nil {
			return err
		}
		for i := range entities {
			if err := s.repo.Insert(ctx, tx, &entities[i]); err != nil {
				return err
			}
		}
		if err := s.invalidator.InvalidateSchedule(ctx, tx, orgID, pid, typeSort); err != nil {
			return err
		}
		return s.audit(db.WithTx(ctx, tx), orgID, "installment.schedule_replaced", pid.String(), map[string]any{
			"type_sort": typeSort,
			"steps":     len(entities),
			"ratio_sum": allocation.RatioSum(installmentdomain.Steps(entities)).String(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("installment schedule replaced",
		zap.String("project_id", pid.String()),
		zap.Int("type_sort", typeSort),
		zap.Int("steps", len(entities)),
	)
	return entities, nil
}

func (s *Service) DeleteStep(ctx context.Context, id string) error {
	orgID, ok := orgcontext.Require(ctx)
	if !ok {
		return installmentdomain.ErrInvalidOrganization
	}
	stepID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || stepID == 0 {
		return installmentdomain.ErrInvalidID
	}

	entity, err := s.repo.FindByID(ctx, s.db, orgID, stepID)
	if err != nil {
		return err
	}
	if entity == nil {
		return installmentdomain.ErrNotFound
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Delete(ctx, tx, orgID, stepID); err != nil {
			return err
		}
		if err := s.invalidator.InvalidateSchedule(ctx, tx, orgID, entity.ProjectID, entity.TypeSort); err != nil {
			return err
		}
		return s.audit(db.WithTx(ctx, tx), orgID, "installment.step_deleted", entity.ID.String(), map[string]any{
			"project_id": entity.ProjectID.String(),
			"type_sort":  entity.TypeSort,
			"code":       entity.Code,
		})
	})
}

func (s *Service) newStep(orgID, projectID snowflake.ID, typeSort int, req installmentdomain.StepRequest) *installmentdomain.InstallmentPaymentOrder {
	now := s.clock.Now()
	name := strings.TrimSpace(req.Name)
	code := strings.TrimSpace(req.Code)
	if name == "" {
		name = code
	}
	due := req.DueDate
	if due != nil {
		utc := due.UTC()
		due = &utc
	}
	return &installmentdomain.InstallmentPaymentOrder{
		ID:          s.genID.Generate(),
		OrgID:       orgID,
		ProjectID:   projectID,
		TypeSort:    typeSort,
		Code:        code,
		PayTime:     req.PayTime,
		Name:        name,
		Ratio:       req.Ratio,
		ExtraAmount: req.ExtraAmount,
		DueDate:     due,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func validateStep(req installmentdomain.StepRequest) error {
	if req.TypeSort < 0 {
		return installmentdomain.ErrInvalidTypeSort
	}
	code := strings.TrimSpace(req.Code)
	if code == "" || len(code) > 64 {
		return installmentdomain.ErrInvalidCode
	}
	if req.Ratio.IsNegative() || req.Ratio.GreaterThan(decimal.NewFromInt(1)) {
		return installmentdomain.ErrInvalidRatio
	}
	if req.ExtraAmount < 0 {
		return installmentdomain.ErrInvalidExtraAmount
	}
	return nil
}

func (s *Service) resolveProject(ctx context.Context, projectID string) (snowflake.ID, snowflake.ID, error) {
	orgID, ok := orgcontext.Require(ctx)
	if !ok {
		return 0, 0, installmentdomain.ErrInvalidOrganization
	}
	pid, err := snowflake.ParseString(strings.TrimSpace(projectID))
	if err != nil || pid == 0 {
		return 0, 0, installmentdomain.ErrInvalidProject
	}
	project, err := s.projectRepo.FindByID(ctx, s.db, orgID, pid)
	if err != nil {
		return 0, 0, err
	}
	if project == nil {
		return 0, 0, installmentdomain.ErrInvalidProject
	}
	return orgID, pid, nil
}

func (s *Service) audit(ctx context.Context, orgID snowflake.ID, action, targetID string, metadata map[string]any) error {
	if s.auditSvc == nil {
		return nil
	}
	if err := s.auditSvc.Record(ctx, auditdomain.Event{OrgID: orgID, Action: action, TargetType: "installment", TargetID: targetID, Metadata: metadata}); err != nil {
		return fmt.Errorf("record %s: %w", action, err)
	}
	return nil
}

package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/estatebook/internal/allocation"
	auditdomain "github.com/smallbiznis/estatebook/internal/audit/domain"
	"github.com/smallbiznis/estatebook/internal/clock"
	contractpricedomain "github.com/smallbiznis/estatebook/internal/contractprice/domain"
	houseunitdomain "github.com/smallbiznis/estatebook/internal/houseunit/domain"
	"github.com/smallbiznis/estatebook/internal/orgcontext"
	projectdomain "github.com/smallbiznis/estatebook/internal/project/domain"
	unittypedomain "github.com/smallbiznis/estatebook/internal/unittype/domain"
	"github.com/smallbiznis/estatebook/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB                *gorm.DB
	Log               *zap.Logger
	GenID             *snowflake.Node
	Clock             clock.Clock
	Repo              houseunitdomain.Repository
	ProjectRepo       projectdomain.Repository
	UnitTypeRepo      unittypedomain.Repository
	ContractPriceRepo contractpricedomain.Repository
	Invalidator       contractpricedomain.Invalidator
	AuditSvc          auditdomain.Service `optional:"true"`
}

type Service struct {
	db                *gorm.DB
	log               *zap.Logger
	genID             *snowflake.Node
	clock             clock.Clock
	repo              houseunitdomain.Repository
	projectRepo       projectdomain.Repository
	unitTypeRepo      unittypedomain.Repository
	contractPriceRepo contractpricedomain.Repository
	invalidator       contractpricedomain.Invalidator
	auditSvc          auditdomain.Service
}

func New(p Params) houseunitdomain.Service {
	return &Service{
		db:                p.DB,
		log:               p.Log.Named("houseunit.service"),
		genID:             p.GenID,
		clock:             p.Clock,
		repo:              p.Repo,
		projectRepo:       p.ProjectRepo,
		unitTypeRepo:      p.UnitTypeRepo,
		contractPriceRepo: p.ContractPriceRepo,
		invalidator:       p.Invalidator,
		auditSvc:          p.AuditSvc,
	}
}

// Create registers a unit together with its price row. The row starts with an
// invalid cache so the first read or recalculation pass fills it.
func (s *Service) Create(ctx context.Context, projectID string, req houseunitdomain.CreateRequest) (*houseunitdomain.HouseUnit, error) {
	orgID, ok := orgcontext.Require(ctx)
	if !ok {
		return nil, houseunitdomain.ErrInvalidOrganization
	}
	pid, err := s.resolveProject(ctx, orgID, projectID)
	if err != nil {
		return nil, err
	}

	unitTypeID, err := snowflake.ParseString(strings.TrimSpace(req.UnitTypeID))
	if err != nil || unitTypeID == 0 {
		return nil, houseunitdomain.ErrInvalidUnitType
	}
	unitType, err := s.unitTypeRepo.FindByID(ctx, s.db, orgID, unitTypeID)
	if err != nil {
		return nil, err
	}
	if unitType == nil || unitType.ProjectID != pid {
		return nil, houseunitdomain.ErrInvalidUnitType
	}

	dong := strings.TrimSpace(req.Dong)
	ho := strings.TrimSpace(req.Ho)
	if ho == "" {
		return nil, houseunitdomain.ErrInvalidAddress
	}
	if req.Price < 0 {
		return nil, houseunitdomain.ErrNegativePrice
	}

	now := s.clock.Now()
	unit := &houseunitdomain.HouseUnit{
		ID:         s.genID.Generate(),
		OrgID:      orgID,
		ProjectID:  pid,
		UnitTypeID: unitTypeID,
		Dong:       dong,
		Ho:         ho,
		Price:      req.Price,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	price := &contractpricedomain.ContractPrice{
		ID:             s.genID.Generate(),
		OrgID:          orgID,
		ProjectID:      pid,
		HouseUnitID:    unit.ID,
		Price:          req.Price,
		PaymentAmounts: datatypes.JSONSlice[allocation.Line]{},
		IsCacheValid:   false,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, unit); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return houseunitdomain.ErrDuplicateUnit
			}
			return err
		}
		if err := s.contractPriceRepo.Insert(ctx, tx, price); err != nil {
			return err
		}
		return s.audit(db.WithTx(ctx, tx), orgID, "house_unit.created", unit, map[string]any{
			"unit_type_id": unitTypeID.String(),
			"price":        unit.Price,
		})
	})
	if err != nil {
		return nil, err
	}
	return unit, nil
}

func (s *Service) List(ctx context.Context, projectID string) ([]houseunitdomain.HouseUnit, error) {
	orgID, ok := orgcontext.Require(ctx)
	if !ok {
		return nil, houseunitdomain.ErrInvalidOrganization
	}
	pid, err := s.resolveProject(ctx, orgID, projectID)
	if err != nil {
		return nil, err
	}
	return s.repo.List(ctx, s.db, orgID, pid)
}

func (s *Service) Get(ctx context.Context, id string) (*houseunitdomain.HouseUnit, error) {
	orgID, ok := orgcontext.Require(ctx)
	if !ok {
		return nil, houseunitdomain.ErrInvalidOrganization
	}
	return s.find(ctx, orgID, id)
}

func (s *Service) UpdatePrice(ctx context.Context, id string, price int64) (*houseunitdomain.HouseUnit, error) {
	orgID, ok := orgcontext.Require(ctx)
	if !ok {
		return nil, houseunitdomain.ErrInvalidOrganization
	}
	if price < 0 {
		return nil, houseunitdomain.ErrNegativePrice
	}

	unit, err := s.find(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if unit.Price == price {
		return unit, nil
	}

	previous := unit.Price
	now := s.clock.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.UpdatePrice(ctx, tx, orgID, unit.ID, price, now); err != nil {
			return err
		}
		if err := s.contractPriceRepo.UpdatePrice(ctx, tx, orgID, unit.ID, price, now); err != nil {
			return err
		}
		if err := s.invalidator.InvalidateUnit(ctx, tx, orgID, unit.ID, contractpricedomain.InvalidationUnitPrice); err != nil {
			return err
		}
		return s.audit(db.WithTx(ctx, tx), orgID, "house_unit.price_updated", unit, map[string]any{
			"previous_price": previous,
			"price":          price,
		})
	})
	if err != nil {
		return nil, err
	}

	unit.Price = price
	unit.UpdatedAt = now
	s.log.Info("house unit price updated",
		zap.String("house_unit_id", unit.ID.String()),
		zap.Int64("previous_price", previous),
		zap.Int64("price", price),
	)
	return unit, nil
}

func (s *Service) find(ctx context.Context, orgID snowflake.ID, id string) (*houseunitdomain.HouseUnit, error) {
	unitID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || unitID == 0 {
		return nil, houseunitdomain.ErrInvalidID
	}
	unit, err := s.repo.FindByID(ctx, s.db, orgID, unitID)
	if err != nil {
		return nil, err
	}
	if unit == nil {
		return nil, houseunitdomain.ErrNotFound
	}
	return unit, nil
}

func (s *Service) resolveProject(ctx context.Context, orgID snowflake.ID, projectID string) (snowflake.ID, error) {
	pid, err := snowflake.ParseString(strings.TrimSpace(projectID))
	if err != nil || pid == 0 {
		return 0, houseunitdomain.ErrInvalidProject
	}
	project, err := s.projectRepo.FindByID(ctx, s.db, orgID, pid)
	if err != nil {
		return 0, err
	}
	if project == nil {
		return 0, houseunitdomain.ErrInvalidProject
	}
	return pid, nil
}

func (s *Service) audit(ctx context.Context, orgID snowflake.ID, action string, unit *houseunitdomain.HouseUnit, metadata map[string]any) error {
	if s.auditSvc == nil {
		return nil
	}
	metadata["project_id"] = unit.ProjectID.String()
	metadata["unit"] = unit.Label()
	targetID := unit.ID.String()
	if err := s.auditSvc.Record(ctx, auditdomain.Event{OrgID: orgID, Action: action, TargetType: "house_unit", TargetID: targetID, Metadata: metadata}); err != nil {
		return fmt.Errorf("record %s: %w", action, err)
	}
	return nil
}

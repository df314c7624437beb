package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/estatebook/internal/audit/domain"
	"github.com/smallbiznis/estatebook/internal/audit/masking"
	"github.com/smallbiznis/estatebook/internal/clock"
	contractdomain "github.com/smallbiznis/estatebook/internal/contract/domain"
	contractpricedomain "github.com/smallbiznis/estatebook/internal/contractprice/domain"
	houseunitdomain "github.com/smallbiznis/estatebook/internal/houseunit/domain"
	ledgerdomain "github.com/smallbiznis/estatebook/internal/ledger/domain"
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

	DB                *gorm.DB
	Log               *zap.Logger
	GenID             *snowflake.Node
	Clock             clock.Clock
	Repo              contractdomain.Repository
	ProjectRepo       projectdomain.Repository
	HouseUnitRepo     houseunitdomain.Repository
	OrderGroupRepo    ordergroupdomain.Repository
	ContractPriceRepo contractpricedomain.Repository
	Invalidator       contractpricedomain.Invalidator
	LedgerSvc         ledgerdomain.Service
	AuditSvc          auditdomain.Service `optional:"true"`
}

type Service struct {
	db                *gorm.DB
	log               *zap.Logger
	genID             *snowflake.Node
	clock             clock.Clock
	repo              contractdomain.Repository
	projectRepo       projectdomain.Repository
	houseUnitRepo     houseunitdomain.Repository
	orderGroupRepo    ordergroupdomain.Repository
	contractPriceRepo contractpricedomain.Repository
	invalidator       contractpricedomain.Invalidator
	ledgerSvc         ledgerdomain.Service
	auditSvc          auditdomain.Service
}

func New(p Params) contractdomain.Service {
	return &Service{
		db:                p.DB,
		log:               p.Log.Named("contract.service"),
		genID:             p.GenID,
		clock:             p.Clock,
		repo:              p.Repo,
		projectRepo:       p.ProjectRepo,
		houseUnitRepo:     p.HouseUnitRepo,
		orderGroupRepo:    p.OrderGroupRepo,
		contractPriceRepo: p.ContractPriceRepo,
		invalidator:       p.Invalidator,
		ledgerSvc:         p.LedgerSvc,
		auditSvc:          p.AuditSvc,
	}
}

// Create signs a contract for a vacant unit. The unit's price row is locked so
// two contracts cannot race for the same unit.
func (s *Service) Create(ctx context.Context, projectID string, req contractdomain.CreateRequest) (*contractdomain.Contract, error) {
	orgID, ok := orgcontext.Require(ctx)
	if !ok {
		return nil, contractdomain.ErrInvalidOrganization
	}
	pid, err := s.resolveProject(ctx, orgID, projectID)
	if err != nil {
		return nil, err
	}

	unitID, err := snowflake.ParseString(strings.TrimSpace(req.HouseUnitID))
	if err != nil || unitID == 0 {
		return nil, contractdomain.ErrInvalidUnit
	}
	unit, err := s.houseUnitRepo.FindByID(ctx, s.db, orgID, unitID)
	if err != nil {
		return nil, err
	}
	if unit == nil || unit.ProjectID != pid {
		return nil, contractdomain.ErrInvalidUnit
	}

	groupID, err := snowflake.ParseString(strings.TrimSpace(req.OrderGroupID))
	if err != nil || groupID == 0 {
		return nil, contractdomain.ErrInvalidOrderGroup
	}
	group, err := s.orderGroupRepo.FindByID(ctx, s.db, orgID, groupID)
	if err != nil {
		return nil, err
	}
	if group == nil || group.ProjectID != pid {
		return nil, contractdomain.ErrInvalidOrderGroup
	}

	contractor := strings.TrimSpace(req.Contractor)
	if contractor == "" {
		return nil, contractdomain.ErrInvalidContractor
	}
	if req.ContractDate.IsZero() {
		return nil, contractdomain.ErrInvalidContractDate
	}

	now := s.clock.Now()
	entity := &contractdomain.Contract{
		ID:           s.genID.Generate(),
		OrgID:        orgID,
		ProjectID:    pid,
		HouseUnitID:  unit.ID,
		OrderGroupID: group.ID,
		Contractor:   contractor,
		SerialNumber: strings.TrimSpace(req.SerialNumber),
		ContractDate: req.ContractDate.UTC(),
		Status:       contractdomain.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if entity.SerialNumber == "" {
		entity.SerialNumber = "C-" + entity.ID.String()
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		price, err := s.lockUnitPrice(ctx, tx, orgID, unit.ID)
		if err != nil {
			return err
		}
		existing, err := s.repo.FindActiveByUnit(ctx, tx, orgID, unit.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return contractdomain.ErrUnitAlreadyContracted
		}

		entity.Amount = price.Price
		if err := s.repo.Insert(ctx, tx, entity); err != nil {
			return err
		}
		if err := s.contractPriceRepo.LinkContract(ctx, tx, orgID, unit.ID, &entity.ID, now); err != nil {
			return err
		}
		if err := s.invalidator.InvalidateUnit(ctx, tx, orgID, unit.ID, contractpricedomain.InvalidationContract); err != nil {
			return err
		}
		if err := s.ledgerSvc.PostContractSigned(ctx, tx, orgID, entity.ID, entity.Amount, entity.ContractDate); err != nil {
			return err
		}
		return s.audit(db.WithTx(ctx, tx), orgID, "contract.created", entity)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("contract created",
		zap.String("contract_id", entity.ID.String()),
		zap.String("house_unit_id", unit.ID.String()),
		zap.Int64("amount", entity.Amount),
	)
	return entity, nil
}

// Cancel releases the unit back to the uncontracted pool and reverses the receivable.
func (s *Service) Cancel(ctx context.Context, id string) (*contractdomain.Contract, error) {
	orgID, ok := orgcontext.Require(ctx)
	if !ok {
		return nil, contractdomain.ErrInvalidOrganization
	}
	contractID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || contractID == 0 {
		return nil, contractdomain.ErrInvalidID
	}

	var entity *contractdomain.Contract
	now := s.clock.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		found, err := s.repo.FindByID(ctx, tx, orgID, contractID)
		if err != nil {
			return err
		}
		if found == nil {
			return contractdomain.ErrNotFound
		}
		if _, err := s.lockUnitPrice(ctx, tx, orgID, found.HouseUnitID); err != nil {
			return err
		}

		cancelled, err := s.repo.Cancel(ctx, tx, orgID, contractID, now)
		if err != nil {
			return err
		}
		if !cancelled {
			return contractdomain.ErrAlreadyCancelled
		}
		found.Status = contractdomain.StatusCancelled
		found.CancelledAt = &now
		found.UpdatedAt = now

		if err := s.contractPriceRepo.LinkContract(ctx, tx, orgID, found.HouseUnitID, nil, now); err != nil {
			return err
		}
		if err := s.invalidator.InvalidateUnit(ctx, tx, orgID, found.HouseUnitID, contractpricedomain.InvalidationContract); err != nil {
			return err
		}
		if err := s.ledgerSvc.PostContractCancelled(ctx, tx, orgID, found.ID, found.Amount, now); err != nil {
			return err
		}
		entity = found
		return s.audit(db.WithTx(ctx, tx), orgID, "contract.cancelled", found)
	})
	if err != nil {
		return nil, err
	}
	return entity, nil
}

func (s *Service) List(ctx context.Context, projectID string, status string) ([]contractdomain.Contract, error) {
	orgID, ok := orgcontext.Require(ctx)
	if !ok {
		return nil, contractdomain.ErrInvalidOrganization
	}
	pid, err := s.resolveProject(ctx, orgID, projectID)
	if err != nil {
		return nil, err
	}

	var filter contractdomain.Status
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "":
	case string(contractdomain.StatusActive):
		filter = contractdomain.StatusActive
	case string(contractdomain.StatusCancelled):
		filter = contractdomain.StatusCancelled
	default:
		return nil, contractdomain.ErrInvalidStatus
	}
	return s.repo.List(ctx, s.db, orgID, pid, filter)
}

func (s *Service) Get(ctx context.Context, id string) (*contractdomain.Contract, error) {
	orgID, ok := orgcontext.Require(ctx)
	if !ok {
		return nil, contractdomain.ErrInvalidOrganization
	}
	contractID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || contractID == 0 {
		return nil, contractdomain.ErrInvalidID
	}
	entity, err := s.repo.FindByID(ctx, s.db, orgID, contractID)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, contractdomain.ErrNotFound
	}
	return entity, nil
}

func (s *Service) lockUnitPrice(ctx context.Context, tx *gorm.DB, orgID, unitID snowflake.ID) (*contractpricedomain.ContractPrice, error) {
	price, err := s.contractPriceRepo.FindByUnit(ctx, tx, orgID, unitID)
	if err != nil {
		return nil, err
	}
	if price == nil {
		return nil, contractdomain.ErrInvalidUnit
	}
	return s.contractPriceRepo.LockByID(ctx, tx, orgID, price.ID)
}

func (s *Service) resolveProject(ctx context.Context, orgID snowflake.ID, projectID string) (snowflake.ID, error) {
	pid, err := snowflake.ParseString(strings.TrimSpace(projectID))
	if err != nil || pid == 0 {
		return 0, contractdomain.ErrInvalidProject
	}
	project, err := s.projectRepo.FindByID(ctx, s.db, orgID, pid)
	if err != nil {
		return 0, err
	}
	if project == nil {
		return 0, contractdomain.ErrInvalidProject
	}
	return pid, nil
}

func (s *Service) audit(ctx context.Context, orgID snowflake.ID, action string, c *contractdomain.Contract) error {
	if s.auditSvc == nil {
		return nil
	}
	metadata := masking.MaskFields(map[string]any{
		"project_id":     c.ProjectID.String(),
		"house_unit_id":  c.HouseUnitID.String(),
		"order_group_id": c.OrderGroupID.String(),
		"contractor":     c.Contractor,
		"serial_number":  c.SerialNumber,
		"amount":         c.Amount,
		"status":         string(c.Status),
	}, "contractor")
	targetID := c.ID.String()
	if err := s.auditSvc.Record(ctx, auditdomain.Event{OrgID: orgID, Action: action, TargetType: "contract", TargetID: targetID, Metadata: metadata}); err != nil {
		return fmt.Errorf("record %s: %w", action, err)
	}
	return nil
}

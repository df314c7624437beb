package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	contractdomain "github.com/smallbiznis/estatebook/internal/contract/domain"
	contractpricedomain "github.com/smallbiznis/estatebook/internal/contractprice/domain"
	houseunitdomain "github.com/smallbiznis/estatebook/internal/houseunit/domain"
	installmentdomain "github.com/smallbiznis/estatebook/internal/installment/domain"
	ordergroupdomain "github.com/smallbiznis/estatebook/internal/ordergroup/domain"
	paymentstatusdomain "github.com/smallbiznis/estatebook/internal/paymentstatus/domain"
	projectdomain "github.com/smallbiznis/estatebook/internal/project/domain"
	unittypedomain "github.com/smallbiznis/estatebook/internal/unittype/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB                *gorm.DB
	ProjectRepo       projectdomain.Repository
	UnitTypeRepo      unittypedomain.Repository
	InstallmentRepo   installmentdomain.Repository
	HouseUnitRepo     houseunitdomain.Repository
	ContractPriceRepo contractpricedomain.Repository
	ContractRepo      contractdomain.Repository
	OrderGroupRepo    ordergroupdomain.Repository
}

type source struct {
	db                *gorm.DB
	projectRepo       projectdomain.Repository
	unitTypeRepo      unittypedomain.Repository
	installmentRepo   installmentdomain.Repository
	houseUnitRepo     houseunitdomain.Repository
	contractPriceRepo contractpricedomain.Repository
	contractRepo      contractdomain.Repository
	orderGroupRepo    ordergroupdomain.Repository
}

func Provide(p Params) paymentstatusdomain.Source {
	return &source{
		db:                p.DB,
		projectRepo:       p.ProjectRepo,
		unitTypeRepo:      p.UnitTypeRepo,
		installmentRepo:   p.InstallmentRepo,
		houseUnitRepo:     p.HouseUnitRepo,
		contractPriceRepo: p.ContractPriceRepo,
		contractRepo:      p.ContractRepo,
		orderGroupRepo:    p.OrderGroupRepo,
	}
}

// Load reads the project inside one read transaction so the snapshot is consistent.
func (s *source) Load(ctx context.Context, orgID, projectID snowflake.ID) (*paymentstatusdomain.Snapshot, error) {
	var snap *paymentstatusdomain.Snapshot
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		project, err := s.projectRepo.FindByID(ctx, tx, orgID, projectID)
		if err != nil {
			return err
		}
		if project == nil {
			return nil
		}

		out := &paymentstatusdomain.Snapshot{Project: *project}
		if out.UnitTypes, err = s.unitTypeRepo.List(ctx, tx, orgID, projectID); err != nil {
			return err
		}
		if out.Steps, err = s.installmentRepo.ListProject(ctx, tx, orgID, projectID); err != nil {
			return err
		}
		if out.Units, err = s.houseUnitRepo.List(ctx, tx, orgID, projectID); err != nil {
			return err
		}
		if out.Prices, err = s.contractPriceRepo.ListByProject(ctx, tx, orgID, projectID); err != nil {
			return err
		}
		if out.Contracts, err = s.contractRepo.List(ctx, tx, orgID, projectID, contractdomain.StatusActive); err != nil {
			return err
		}
		if out.OrderGroups, err = s.orderGroupRepo.List(ctx, tx, orgID, projectID); err != nil {
			return err
		}
		snap = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

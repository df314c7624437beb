package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	auditdomain "github.com/smallbiznis/estatebook/internal/audit/domain"
	contractdomain "github.com/smallbiznis/estatebook/internal/contract/domain"
	contractpricedomain "github.com/smallbiznis/estatebook/internal/contractprice/domain"
	houseunitdomain "github.com/smallbiznis/estatebook/internal/houseunit/domain"
	installmentdomain "github.com/smallbiznis/estatebook/internal/installment/domain"
	ledgerdomain "github.com/smallbiznis/estatebook/internal/ledger/domain"
	ordergroupdomain "github.com/smallbiznis/estatebook/internal/ordergroup/domain"
	projectdomain "github.com/smallbiznis/estatebook/internal/project/domain"
	unittypedomain "github.com/smallbiznis/estatebook/internal/unittype/domain"
	"gorm.io/gorm"
)

// Run brings the schema up to date. Postgres uses the embedded SQL migrations;
// other dialects are created from the gorm models.
func Run(conn *gorm.DB) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}
	if conn.Dialector.Name() != "postgres" {
		return AutoMigrate(conn)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return RunMigrations(sqlDB)
}

// RunMigrations applies the embedded postgres migrations.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}

// Models lists every persisted type in dependency order.
func Models() []any {
	return []any{
		&projectdomain.Project{},
		&unittypedomain.UnitType{},
		&installmentdomain.InstallmentPaymentOrder{},
		&ordergroupdomain.OrderGroup{},
		&houseunitdomain.HouseUnit{},
		&contractdomain.Contract{},
		&contractpricedomain.ContractPrice{},
		&ledgerdomain.LedgerAccount{},
		&ledgerdomain.LedgerEntry{},
		&ledgerdomain.LedgerEntryLine{},
		&auditdomain.AuditLog{},
	}
}

// AutoMigrate creates the schema from the models. Used for sqlite, mysql and tests.
func AutoMigrate(conn *gorm.DB) error {
	if err := conn.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

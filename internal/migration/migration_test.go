package migration

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/smallbiznis/estatebook/pkg/db"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(embeddedMigrations, migrationsDir)
	if err != nil {
		t.Fatalf("read migrations: %v", err)
	}
	ups, downs := 0, 0
	for _, e := range entries {
		switch {
		case strings.HasSuffix(e.Name(), ".up.sql"):
			ups++
		case strings.HasSuffix(e.Name(), ".down.sql"):
			downs++
		}
	}
	if ups == 0 || ups != downs {
		t.Fatalf("expected paired migrations, got %d up / %d down", ups, downs)
	}
}

func TestRunCreatesSchemaOnSQLite(t *testing.T) {
	conn, err := db.NewTest()
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := Run(conn); err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, table := range []string{"projects", "unit_types", "installment_payment_orders", "house_units", "contract_prices", "contracts", "order_groups", "ledger_entries", "audit_logs"} {
		if !conn.Migrator().HasTable(table) {
			t.Fatalf("expected table %s", table)
		}
	}
	// idempotent
	if err := Run(conn); err != nil {
		t.Fatalf("second run: %v", err)
	}
}

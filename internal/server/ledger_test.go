package server

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	ledgerdomain "github.com/smallbiznis/estatebook/internal/ledger/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeLedgerService struct {
	balances map[ledgerdomain.LedgerAccountCode]int64
	err      error
	orgID    snowflake.ID
}

func (f *fakeLedgerService) CreateEntry(ctx context.Context, db *gorm.DB, req ledgerdomain.EntryRequest) (bool, error) {
	return false, nil
}

func (f *fakeLedgerService) PostContractSigned(ctx context.Context, db *gorm.DB, orgID, contractID snowflake.ID, amount int64, occurredAt time.Time) error {
	return nil
}

func (f *fakeLedgerService) PostContractCancelled(ctx context.Context, db *gorm.DB, orgID, contractID snowflake.ID, amount int64, occurredAt time.Time) error {
	return nil
}

func (f *fakeLedgerService) Balance(ctx context.Context, orgID snowflake.ID, account ledgerdomain.LedgerAccountCode) (int64, error) {
	f.orgID = orgID
	return f.balances[account], f.err
}

func TestGetLedgerBalances(t *testing.T) {
	ledger := &fakeLedgerService{balances: map[ledgerdomain.LedgerAccountCode]int64{
		ledgerdomain.AccountCodeAccountsReceivable: 500,
		ledgerdomain.AccountCodeSalesRevenue:       -500,
	}}
	s := newTestServer(t, &fakePaymentStatusService{}, &fakeProjectService{})
	s.ledgerSvc = ledger

	w := perform(s, http.MethodGet, "/api/ledger/balances", map[string]string{HeaderOrg: "9"})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, snowflake.ID(9), ledger.orgID)
	assert.Contains(t, w.Body.String(), `{"account":"accounts_receivable","name":"Accounts Receivable","balance":500}`)
	assert.Contains(t, w.Body.String(), `{"account":"sales_revenue","name":"Sales Revenue","balance":-500}`)
}

func TestGetLedgerBalancesFailure(t *testing.T) {
	s := newTestServer(t, &fakePaymentStatusService{}, &fakeProjectService{})
	s.ledgerSvc = &fakeLedgerService{err: errors.New("db down")}

	w := perform(s, http.MethodGet, "/api/ledger/balances", map[string]string{HeaderOrg: "9"})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

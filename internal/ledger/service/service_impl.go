package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/estatebook/internal/audit/domain"
	"github.com/smallbiznis/estatebook/internal/clock"
	ledgerdomain "github.com/smallbiznis/estatebook/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/estatebook/internal/observability/metrics"
	"github.com/smallbiznis/estatebook/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	AuditSvc   auditdomain.Service `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	auditSvc   auditdomain.Service
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) ledgerdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("ledger.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		auditSvc:   p.AuditSvc,
		obsMetrics: p.ObsMetrics,
	}
}

// CreateEntry inserts a balanced entry once per (org, source type, source id).
// It reports false when the entry already existed.
func (s *Service) CreateEntry(ctx context.Context, tx *gorm.DB, req ledgerdomain.EntryRequest) (bool, error) {
	if req.OrgID == 0 {
		return false, ledgerdomain.ErrInvalidOrganization
	}
	sourceType := ledgerdomain.LedgerSourceType(strings.TrimSpace(string(req.SourceType)))
	if sourceType == "" {
		return false, ledgerdomain.ErrInvalidSourceType
	}
	if req.SourceID == 0 {
		return false, ledgerdomain.ErrInvalidSourceID
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		return false, ledgerdomain.ErrInvalidCurrency
	}
	if req.OccurredAt.IsZero() {
		return false, ledgerdomain.ErrInvalidOccurredAt
	}
	if len(req.Lines) < 2 {
		return false, ledgerdomain.ErrInvalidEntryLines
	}

	normalized := make([]ledgerdomain.PostingLine, 0, len(req.Lines))
	for _, line := range req.Lines {
		if strings.TrimSpace(string(line.Account)) == "" {
			return false, ledgerdomain.ErrInvalidAccount
		}
		direction, err := normalizeDirection(line.Direction)
		if err != nil {
			return false, err
		}
		if line.Amount < 0 {
			return false, ledgerdomain.ErrInvalidLineAmount
		}
		normalized = append(normalized, ledgerdomain.PostingLine{
			Account:   line.Account,
			Direction: direction,
			Amount:    line.Amount,
		})
	}
	if err := ledgerdomain.ValidateBalanced(normalized); err != nil {
		return false, err
	}

	if tx == nil {
		tx = s.db
	}

	inserted := false
	err := tx.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		accounts, err := s.ensureAccounts(ctx, tx, req.OrgID)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		entry := ledgerdomain.LedgerEntry{
			ID:         s.genID.Generate(),
			OrgID:      req.OrgID,
			SourceType: sourceType,
			SourceID:   req.SourceID,
			Currency:   currency,
			OccurredAt: req.OccurredAt.UTC(),
			CreatedAt:  now,
		}
		result := tx.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&entry)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		inserted = true

		lines := make([]ledgerdomain.LedgerEntryLine, 0, len(normalized))
		for _, line := range normalized {
			accountID, ok := accounts[line.Account]
			if !ok {
				return ledgerdomain.ErrInvalidAccount
			}
			lines = append(lines, ledgerdomain.LedgerEntryLine{
				ID:            s.genID.Generate(),
				LedgerEntryID: entry.ID,
				AccountID:     accountID,
				Direction:     line.Direction,
				Currency:      currency,
				Amount:        line.Amount,
				CreatedAt:     now,
			})
		}
		if err := tx.WithContext(ctx).Create(&lines).Error; err != nil {
			return err
		}

		if s.auditSvc != nil {
			if err := s.auditSvc.Record(db.WithTx(ctx, tx), auditdomain.Event{
				OrgID:      req.OrgID,
				Action:     "ledger.entry_created",
				TargetType: "ledger_entry",
				TargetID:   entry.ID.String(),
				Metadata: map[string]any{
					"source_type": string(sourceType),
					"source_id":   req.SourceID.String(),
				},
			}); err != nil {
				return fmt.Errorf("record ledger.entry_created: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if inserted {
		s.obsMetrics.RecordLedgerEntry(ctx, string(sourceType))
	}
	return inserted, nil
}

// PostContractSigned books the contract value as a receivable against sales revenue.
func (s *Service) PostContractSigned(ctx context.Context, tx *gorm.DB, orgID, contractID snowflake.ID, amount int64, occurredAt time.Time) error {
	_, err := s.CreateEntry(ctx, tx, ledgerdomain.EntryRequest{
		OrgID:      orgID,
		SourceType: ledgerdomain.SourceTypeContractSigned,
		SourceID:   contractID,
		Currency:   ledgerdomain.DefaultCurrency,
		OccurredAt: occurredAt,
		Lines: []ledgerdomain.PostingLine{
			{Account: ledgerdomain.AccountCodeAccountsReceivable, Direction: ledgerdomain.LedgerEntryDirectionDebit, Amount: amount},
			{Account: ledgerdomain.AccountCodeSalesRevenue, Direction: ledgerdomain.LedgerEntryDirectionCredit, Amount: amount},
		},
	})
	return err
}

// PostContractCancelled reverses the receivable through the cancellation account.
func (s *Service) PostContractCancelled(ctx context.Context, tx *gorm.DB, orgID, contractID snowflake.ID, amount int64, occurredAt time.Time) error {
	_, err := s.CreateEntry(ctx, tx, ledgerdomain.EntryRequest{
		OrgID:      orgID,
		SourceType: ledgerdomain.SourceTypeContractCancelled,
		SourceID:   contractID,
		Currency:   ledgerdomain.DefaultCurrency,
		OccurredAt: occurredAt,
		Lines: []ledgerdomain.PostingLine{
			{Account: ledgerdomain.AccountCodeSalesCancellation, Direction: ledgerdomain.LedgerEntryDirectionDebit, Amount: amount},
			{Account: ledgerdomain.AccountCodeAccountsReceivable, Direction: ledgerdomain.LedgerEntryDirectionCredit, Amount: amount},
		},
	})
	return err
}

// Balance returns debits minus credits for one account.
func (s *Service) Balance(ctx context.Context, orgID snowflake.ID, account ledgerdomain.LedgerAccountCode) (int64, error) {
	if orgID == 0 {
		return 0, ledgerdomain.ErrInvalidOrganization
	}
	var balance int64
	err := s.db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(CASE WHEN l.direction = ? THEN l.amount ELSE -l.amount END), 0)
		 FROM ledger_entry_lines l
		 JOIN ledger_accounts a ON a.id = l.account_id
		 WHERE a.org_id = ? AND a.code = ?`,
		string(ledgerdomain.LedgerEntryDirectionDebit),
		orgID,
		string(account),
	).Scan(&balance).Error
	return balance, err
}

func (s *Service) ensureAccounts(ctx context.Context, tx *gorm.DB, orgID snowflake.ID) (map[ledgerdomain.LedgerAccountCode]snowflake.ID, error) {
	now := s.clock.Now()
	rows := make([]ledgerdomain.LedgerAccount, 0, len(ledgerdomain.DefaultAccounts))
	for _, account := range ledgerdomain.DefaultAccounts {
		rows = append(rows, ledgerdomain.LedgerAccount{
			ID:        s.genID.Generate(),
			OrgID:     orgID,
			Code:      account.Code,
			Name:      account.Name,
			CreatedAt: now,
		})
	}
	if err := tx.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error; err != nil {
		return nil, err
	}

	var existing []ledgerdomain.LedgerAccount
	if err := tx.WithContext(ctx).Where("org_id = ?", orgID).Find(&existing).Error; err != nil {
		return nil, err
	}
	out := make(map[ledgerdomain.LedgerAccountCode]snowflake.ID, len(existing))
	for _, account := range existing {
		out[account.Code] = account.ID
	}
	return out, nil
}

func normalizeDirection(direction ledgerdomain.LedgerEntryDirection) (ledgerdomain.LedgerEntryDirection, error) {
	normalized := strings.ToLower(strings.TrimSpace(string(direction)))
	switch normalized {
	case string(ledgerdomain.LedgerEntryDirectionDebit):
		return ledgerdomain.LedgerEntryDirectionDebit, nil
	case string(ledgerdomain.LedgerEntryDirectionCredit):
		return ledgerdomain.LedgerEntryDirectionCredit, nil
	default:
		return "", ledgerdomain.ErrInvalidLineDirection
	}
}

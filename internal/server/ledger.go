package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	ledgerdomain "github.com/smallbiznis/estatebook/internal/ledger/domain"
	"github.com/smallbiznis/estatebook/internal/orgcontext"
)

type ledgerBalance struct {
	Account string `json:"account"`
	Name    string `json:"name"`
	Balance int64  `json:"balance"`
}

// GetLedgerBalances reports debits minus credits for every account of the
// organization's chart.
func (s *Server) GetLedgerBalances(c *gin.Context) {
	ctx := c.Request.Context()
	orgID, ok := orgcontext.Require(ctx)
	if !ok {
		AbortWithError(c, ledgerdomain.ErrInvalidOrganization)
		return
	}

	out := make([]ledgerBalance, 0, len(ledgerdomain.DefaultAccounts))
	for _, account := range ledgerdomain.DefaultAccounts {
		balance, err := s.ledgerSvc.Balance(ctx, orgID, account.Code)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		out = append(out, ledgerBalance{
			Account: string(account.Code),
			Name:    account.Name,
			Balance: balance,
		})
	}

	c.JSON(http.StatusOK, gin.H{"data": out})
}

package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	contractdomain "github.com/smallbiznis/estatebook/internal/contract/domain"
)

type createContractRequest struct {
	HouseUnitID  string `json:"house_unit_id"`
	OrderGroupID string `json:"order_group_id"`
	Contractor   string `json:"contractor"`
	SerialNumber string `json:"serial_number"`
	ContractDate string `json:"contract_date"`
}

func (s *Server) CreateContract(c *gin.Context) {
	var req createContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	contractDate, err := parseTimeBound(req.ContractDate, false)
	if err != nil || contractDate == nil {
		AbortWithError(c, contractdomain.ErrInvalidContractDate)
		return
	}

	resp, err := s.contractSvc.Create(c.Request.Context(), strings.TrimSpace(c.Param("id")), contractdomain.CreateRequest{
		HouseUnitID:  strings.TrimSpace(req.HouseUnitID),
		OrderGroupID: strings.TrimSpace(req.OrderGroupID),
		Contractor:   strings.TrimSpace(req.Contractor),
		SerialNumber: strings.TrimSpace(req.SerialNumber),
		ContractDate: contractDate.In(time.UTC),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListContracts(c *gin.Context) {
	resp, err := s.contractSvc.List(c.Request.Context(), strings.TrimSpace(c.Param("id")), strings.TrimSpace(c.Query("status")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetContractByID(c *gin.Context) {
	resp, err := s.contractSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CancelContract(c *gin.Context) {
	resp, err := s.contractSvc.Cancel(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func isContractValidationError(err error) bool {
	return isAny(err,
		contractdomain.ErrInvalidOrganization,
		contractdomain.ErrInvalidProject,
		contractdomain.ErrInvalidID,
		contractdomain.ErrInvalidUnit,
		contractdomain.ErrInvalidOrderGroup,
		contractdomain.ErrInvalidContractor,
		contractdomain.ErrInvalidContractDate,
		contractdomain.ErrInvalidStatus,
	)
}

package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	contractpricedomain "github.com/smallbiznis/estatebook/internal/contractprice/domain"
	houseunitdomain "github.com/smallbiznis/estatebook/internal/houseunit/domain"
)

type createHouseUnitRequest struct {
	UnitTypeID string `json:"unit_type_id"`
	Dong       string `json:"dong"`
	Ho         string `json:"ho"`
	Price      int64  `json:"price"`
}

type updatePriceRequest struct {
	Price *int64 `json:"price"`
}

func (s *Server) CreateHouseUnit(c *gin.Context) {
	var req createHouseUnitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.houseUnitSvc.Create(c.Request.Context(), strings.TrimSpace(c.Param("id")), houseunitdomain.CreateRequest{
		UnitTypeID: strings.TrimSpace(req.UnitTypeID),
		Dong:       strings.TrimSpace(req.Dong),
		Ho:         strings.TrimSpace(req.Ho),
		Price:      req.Price,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListHouseUnits(c *gin.Context) {
	resp, err := s.houseUnitSvc.List(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetHouseUnitByID(c *gin.Context) {
	resp, err := s.houseUnitSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateHouseUnitPrice(c *gin.Context) {
	var req updatePriceRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Price == nil {
		AbortWithError(c, newValidationError("price", "invalid_price", "price is required"))
		return
	}

	resp, err := s.houseUnitSvc.UpdatePrice(c.Request.Context(), strings.TrimSpace(c.Param("id")), *req.Price)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetContractPrice(c *gin.Context) {
	resp, err := s.contractPriceSvc.GetByUnit(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RecalculateContractPrice(c *gin.Context) {
	resp, err := s.contractPriceSvc.RecalculateUnit(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func isHouseUnitValidationError(err error) bool {
	return isAny(err,
		houseunitdomain.ErrInvalidOrganization,
		houseunitdomain.ErrInvalidProject,
		houseunitdomain.ErrInvalidUnitType,
		houseunitdomain.ErrInvalidID,
		houseunitdomain.ErrInvalidAddress,
		houseunitdomain.ErrNegativePrice,
	)
}

func isContractPriceValidationError(err error) bool {
	return isAny(err,
		contractpricedomain.ErrInvalidOrganization,
		contractpricedomain.ErrInvalidID,
		contractpricedomain.ErrInvalidProject,
	)
}

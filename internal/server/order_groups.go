package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	ordergroupdomain "github.com/smallbiznis/estatebook/internal/ordergroup/domain"
)

type createOrderGroupRequest struct {
	OrderNumber              int    `json:"order_number"`
	Name                     string `json:"name"`
	IsDefaultForUncontracted bool   `json:"is_default_for_uncontracted"`
}

func (s *Server) CreateOrderGroup(c *gin.Context) {
	var req createOrderGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.orderGroupSvc.Create(c.Request.Context(), strings.TrimSpace(c.Param("id")), ordergroupdomain.CreateRequest{
		OrderNumber:              req.OrderNumber,
		Name:                     strings.TrimSpace(req.Name),
		IsDefaultForUncontracted: req.IsDefaultForUncontracted,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListOrderGroups(c *gin.Context) {
	resp, err := s.orderGroupSvc.List(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// SetDefaultOrderGroup moves the uncontracted-units flag to this group.
func (s *Server) SetDefaultOrderGroup(c *gin.Context) {
	resp, err := s.orderGroupSvc.SetDefaultForUncontracted(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func isOrderGroupValidationError(err error) bool {
	return isAny(err,
		ordergroupdomain.ErrInvalidOrganization,
		ordergroupdomain.ErrInvalidProject,
		ordergroupdomain.ErrInvalidID,
		ordergroupdomain.ErrInvalidName,
	)
}

package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	unittypedomain "github.com/smallbiznis/estatebook/internal/unittype/domain"
)

type createUnitTypeRequest struct {
	Name string `json:"name"`
	Sort int    `json:"sort"`
}

type renameUnitTypeRequest struct {
	Name string `json:"name"`
}

func (s *Server) CreateUnitType(c *gin.Context) {
	var req createUnitTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.unitTypeSvc.Create(c.Request.Context(), strings.TrimSpace(c.Param("id")), unittypedomain.CreateRequest{
		Name: strings.TrimSpace(req.Name),
		Sort: req.Sort,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListUnitTypes(c *gin.Context) {
	resp, err := s.unitTypeSvc.List(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetUnitTypeByID(c *gin.Context) {
	resp, err := s.unitTypeSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RenameUnitType(c *gin.Context) {
	var req renameUnitTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.unitTypeSvc.Rename(c.Request.Context(), strings.TrimSpace(c.Param("id")), strings.TrimSpace(req.Name))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func isUnitTypeValidationError(err error) bool {
	return isAny(err,
		unittypedomain.ErrInvalidOrganization,
		unittypedomain.ErrInvalidProject,
		unittypedomain.ErrInvalidID,
		unittypedomain.ErrInvalidName,
		unittypedomain.ErrInvalidSort,
	)
}

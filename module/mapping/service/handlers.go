package service

import (
	"context"
	"net/http"

	"NapChat/logger"
	"NapChat/module/mapping"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Mappings 端点需要的映射面。
type Mappings interface {
	Upsert(ctx context.Context, m *mapping.UserMapping) error
	Lookup(ctx context.Context, oldUserID, newUserID, email string) (*mapping.UserMapping, error)
}

type Server struct {
	Mappings Mappings
}

func NewServer(m Mappings) *Server { return &Server{Mappings: m} }

type getMappingReq struct {
	OldUserID string `json:"oldUserId" form:"oldUserId"`
	NewUserID string `json:"newUserId" form:"newUserId"`
	Email     string `json:"email" form:"email"`
}

type createMappingReq struct {
	OldUserID string `json:"oldUserId"`
	NewUserID string `json:"newUserId"`
	Email     string `json:"email"`
	Name      string `json:"name"`
}

// GetUserMapping GET|POST {oldUserId|newUserId|email}
// 没查到不是错误：found=false。
func (s *Server) GetUserMapping(c *gin.Context) {
	var req getMappingReq
	if c.Request.Method == http.MethodGet {
		req.OldUserID = c.Query("oldUserId")
		req.NewUserID = c.Query("newUserId")
		req.Email = c.Query("email")
	} else if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.OldUserID == "" && req.NewUserID == "" && req.Email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "one of oldUserId, newUserId or email is required"})
		return
	}

	m, err := s.Mappings.Lookup(c.Request.Context(), req.OldUserID, req.NewUserID, req.Email)
	if err != nil {
		logger.Error("mapping lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if m == nil {
		c.JSON(http.StatusOK, gin.H{"found": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"found": true, "mapping": m})
}

// CreateUserMapping POST {oldUserId, newUserId, email?, name?}
func (s *Server) CreateUserMapping(c *gin.Context) {
	var req createMappingReq
	if err := c.ShouldBindJSON(&req); err != nil || req.OldUserID == "" || req.NewUserID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "oldUserId and newUserId are required"})
		return
	}

	m := &mapping.UserMapping{
		OldUserID: req.OldUserID,
		NewUserID: req.NewUserID,
		Email:     req.Email,
		Name:      req.Name,
	}
	if err := s.Mappings.Upsert(c.Request.Context(), m); err != nil {
		logger.Error("mapping upsert failed", zap.String("oldUserId", req.OldUserID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Mapping saved", "mapping": m})
}

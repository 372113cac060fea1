package server

import (
	"net/http"
	"strings"

	"github.com/costscopehq/costscope/internal/billingsync"
	"github.com/gin-gonic/gin"
)

type updateLocaleRequest struct {
	DefaultCurrency string `json:"default_currency"`
	DefaultTimezone string `json:"default_timezone"`
}

func (s *Server) UpdateLocale(c *gin.Context) {
	userID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req updateLocaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	slug := c.GetString(contextOrgSlugKey)
	resp, err := s.orchestrator.UpdateLocale(c.Request.Context(), userID, slug, billingsync.UpdateLocaleRequest{
		DefaultCurrency: strings.TrimSpace(req.DefaultCurrency),
		DefaultTimezone: strings.TrimSpace(req.DefaultTimezone),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) ValidateSync(c *gin.Context) {
	slug := c.GetString(contextOrgSlugKey)
	result, err := s.orchestrator.ValidateSync(c.Request.Context(), slug)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// RepairSync pushes the primary locale to the backend. Rate limited and
// serialized per organization so concurrent repairs cannot interleave.
func (s *Server) RepairSync(c *gin.Context) {
	orgID := c.GetString(contextOrgIDKey)
	ctx := c.Request.Context()

	if s.opLimiter.Enabled() {
		result, err := s.opLimiter.AllowSyncRepair(ctx, orgID)
		if rateLimited(c, result, err) {
			return
		}

		lockToken, locked, err := s.opLimiter.TryLockRepair(ctx, orgID)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if !locked {
			AbortWithError(c, ErrConflict)
			return
		}
		defer func() {
			_ = s.opLimiter.ReleaseRepair(ctx, orgID, lockToken)
		}()
	}

	slug := c.GetString(contextOrgSlugKey)
	result, err := s.orchestrator.RepairSync(ctx, slug)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetOwnLocale serves the locale of the organization that owns the API
// key making the request.
func (s *Server) GetOwnLocale(c *gin.Context) {
	orgID, ok := s.orgIDFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var row struct {
		Slug            string `gorm:"column:slug"`
		DefaultCurrency string `gorm:"column:default_currency"`
		DefaultTimezone string `gorm:"column:default_timezone"`
	}
	err := s.db.WithContext(c.Request.Context()).Raw(
		`SELECT slug, default_currency, default_timezone
		 FROM organizations
		 WHERE id = ? AND is_deleted = false`,
		orgID,
	).Scan(&row).Error
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if row.Slug == "" {
		AbortWithError(c, ErrNotFound)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"slug":             row.Slug,
		"default_currency": row.DefaultCurrency,
		"default_timezone": row.DefaultTimezone,
	})
}

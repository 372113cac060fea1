package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type confirmDeletionRequest struct {
	Token string `json:"token"`
}

// RequestDeletion issues a short-lived confirmation token. Issuance is
// rate limited per organization.
func (s *Server) RequestDeletion(c *gin.Context) {
	userID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	orgID := c.GetString(contextOrgIDKey)
	if s.opLimiter.Enabled() {
		result, err := s.opLimiter.AllowDeletionRequest(c.Request.Context(), orgID)
		if rateLimited(c, result, err) {
			return
		}
	}

	slug := c.GetString(contextOrgSlugKey)
	resp, err := s.organizationSvc.RequestDeletion(c.Request.Context(), userID, slug)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) ConfirmDeletion(c *gin.Context) {
	userID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req confirmDeletionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	token, err := uuid.Parse(strings.TrimSpace(req.Token))
	if err != nil {
		AbortWithError(c, newValidationError("token", "invalid_token", "invalid deletion token"))
		return
	}

	slug := c.GetString(contextOrgSlugKey)
	if err := s.organizationSvc.ConfirmDeletion(c.Request.Context(), userID, slug, token); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

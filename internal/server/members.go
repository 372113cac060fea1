package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

type updateMemberRoleRequest struct {
	Role string `json:"role"`
}

type transferOwnershipRequest struct {
	NewOwnerUserID string `json:"new_owner_user_id"`
}

func (s *Server) ListMembers(c *gin.Context) {
	userID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	slug := c.GetString(contextOrgSlugKey)
	members, err := s.organizationSvc.ListMembers(c.Request.Context(), userID, slug)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": members})
}

func (s *Server) UpdateMemberRole(c *gin.Context) {
	userID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	memberID, err := snowflake.ParseString(strings.TrimSpace(c.Param("memberId")))
	if err != nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	var req updateMemberRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	slug := c.GetString(contextOrgSlugKey)
	if err := s.organizationSvc.UpdateMemberRole(c.Request.Context(), userID, slug, memberID, strings.TrimSpace(req.Role)); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) DeactivateMember(c *gin.Context) {
	userID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	memberID, err := snowflake.ParseString(strings.TrimSpace(c.Param("memberId")))
	if err != nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	slug := c.GetString(contextOrgSlugKey)
	if err := s.organizationSvc.DeactivateMember(c.Request.Context(), userID, slug, memberID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) TransferOwnership(c *gin.Context) {
	userID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req transferOwnershipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	newOwnerID, err := snowflake.ParseString(strings.TrimSpace(req.NewOwnerUserID))
	if err != nil || newOwnerID == 0 {
		AbortWithError(c, newValidationError("new_owner_user_id", "invalid_user", "invalid user id"))
		return
	}

	slug := c.GetString(contextOrgSlugKey)
	if err := s.organizationSvc.TransferOwnership(c.Request.Context(), userID, slug, newOwnerID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	orgdomain "github.com/costscopehq/costscope/internal/organization/domain"
	"github.com/costscopehq/costscope/internal/providers/email"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type inviteMembersRequest struct {
	Invites []inviteEntry `json:"invites"`
}

type inviteEntry struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (s *Server) InviteMembers(c *gin.Context) {
	userID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req inviteMembersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if len(req.Invites) == 0 {
		AbortWithError(c, newValidationError("invites", "required", "at least one invite is required"))
		return
	}

	invites := make([]orgdomain.InviteRequest, 0, len(req.Invites))
	for _, entry := range req.Invites {
		invites = append(invites, orgdomain.InviteRequest{
			Email: strings.TrimSpace(entry.Email),
			Role:  strings.TrimSpace(entry.Role),
		})
	}

	slug := c.GetString(contextOrgSlugKey)
	created, err := s.organizationSvc.InviteMembers(c.Request.Context(), userID, slug, invites)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.sendInviteMails(c, userID, slug, created)

	items := make([]gin.H, 0, len(created))
	for _, invite := range created {
		items = append(items, gin.H{
			"id":     invite.ID.String(),
			"email":  invite.Email,
			"role":   invite.Role,
			"status": invite.Status,
		})
	}
	c.JSON(http.StatusCreated, gin.H{"data": items})
}

// sendInviteMails is best effort; a failed mail never fails the invite.
func (s *Server) sendInviteMails(c *gin.Context, inviterID snowflake.ID, slug string, invites []orgdomain.OrganizationInvite) {
	if s.emailProvider == nil || len(invites) == 0 {
		return
	}

	ctx := c.Request.Context()
	org, err := s.organizationSvc.GetBySlug(ctx, slug)
	if err != nil {
		s.log.Warn("invite mail skipped", zap.String("org_slug", slug), zap.Error(err))
		return
	}

	inviterEmail := ""
	if inviter, err := s.authsvc.GetUser(ctx, inviterID); err == nil {
		inviterEmail = inviter.Email
	}

	for _, invite := range invites {
		data := email.InviteData{
			OrgName:      org.Name,
			InviterEmail: inviterEmail,
			Role:         invite.Role,
			AcceptURL:    "/invite/" + invite.ID.String(),
		}
		if err := s.emailProvider.SendInvite(ctx, invite.Email, data); err != nil {
			s.log.Warn("invite mail failed",
				zap.String("org_slug", slug),
				zap.String("email", invite.Email),
				zap.Error(err),
			)
		}
	}
}

func (s *Server) AcceptInvite(c *gin.Context) {
	userID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	inviteID, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	if err := s.organizationSvc.AcceptInvite(c.Request.Context(), userID, inviteID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

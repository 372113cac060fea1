package server

import (
	"strconv"
	"strings"

	auditdomain "github.com/costscopehq/costscope/internal/audit/domain"
	"github.com/costscopehq/costscope/internal/auditcontext"
	"github.com/costscopehq/costscope/internal/orgcontext"
	"github.com/costscopehq/costscope/internal/ratelimit"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

const (
	contextUserIDKey       = "user_id"
	contextOrgIDKey        = "org_id"
	contextOrgSlugKey      = "org_slug"
	contextMemberRoleKey   = "member_role"
	contextAPIKeyScopesKey = "api_key_scopes"
)

// WebAuthRequired authenticates requests carrying a session cookie.
func (s *Server) WebAuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := s.sessions.ReadToken(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		session, err := s.authsvc.Authenticate(c.Request.Context(), token)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Set(contextUserIDKey, session.UserID.String())

		ctx := auditcontext.WithActor(c.Request.Context(), string(auditdomain.ActorTypeUser), session.UserID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// OrgMemberRequired resolves the :slug route param to an organization
// the session user is an active member of. Runs after WebAuthRequired.
func (s *Server) OrgMemberRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := s.userIDFromSession(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		slug := strings.TrimSpace(c.Param("slug"))
		if slug == "" {
			AbortWithError(c, ErrNotFound)
			return
		}

		orgID, role, err := s.organizationSvc.AuthorizeMember(c.Request.Context(), userID, slug)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Set(contextOrgIDKey, orgID.String())
		c.Set(contextOrgSlugKey, slug)
		c.Set(contextMemberRoleKey, role)

		ctx := orgcontext.WithOrgID(c.Request.Context(), orgID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireRole allows only members holding one of the given roles.
// Runs after OrgMemberRequired.
func (s *Server) RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(contextMemberRoleKey)
		for _, allowed := range roles {
			if role == allowed {
				c.Next()
				return
			}
		}
		AbortWithError(c, ErrForbidden)
	}
}

// authorizeOrgAction consults the policy engine for the session user.
func (s *Server) authorizeOrgAction(object, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := s.userIDFromSession(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		orgID := c.GetString(contextOrgIDKey)
		if orgID == "" {
			AbortWithError(c, ErrForbidden)
			return
		}
		if err := s.authzSvc.Authorize(c.Request.Context(), "user:"+userID.String(), orgID, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

// APIKeyRequired authenticates machine requests by bearer API key.
// Organization identity comes solely from the key record.
func (s *Server) APIKeyRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		parts := strings.Fields(header)
		if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		key, err := s.apiKeySvc.Authenticate(c.Request.Context(), parts[1])
		if err != nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		scopes := make([]string, 0, len(key.Scopes))
		scopes = append(scopes, key.Scopes...)
		c.Set(contextOrgIDKey, key.OrgID.String())
		c.Set(contextAPIKeyScopesKey, scopes)

		ctx := orgcontext.WithOrgID(c.Request.Context(), key.OrgID)
		ctx = auditcontext.WithActor(ctx, string(auditdomain.ActorTypeAPIKey), key.ID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireScope allows only API keys granted the given scope.
// Runs after APIKeyRequired.
func (s *Server) RequireScope(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		value, ok := c.Get(contextAPIKeyScopesKey)
		if !ok {
			AbortWithError(c, ErrForbidden)
			return
		}
		scopes, ok := value.([]string)
		if !ok {
			AbortWithError(c, ErrForbidden)
			return
		}
		for _, granted := range scopes {
			if granted == scope {
				c.Next()
				return
			}
		}
		AbortWithError(c, ErrForbidden)
	}
}

// rateLimited runs allow and converts a denial into 429 with Retry-After.
func rateLimited(c *gin.Context, result *ratelimit.Result, err error) bool {
	if err != nil {
		AbortWithError(c, err)
		return true
	}
	if result != nil && !result.Allowed {
		if result.RetryAfter > 0 {
			c.Header("Retry-After", strconv.Itoa(int(result.RetryAfter.Seconds())+1))
		}
		AbortWithError(c, ErrTooManyRequests)
		return true
	}
	return false
}

func (s *Server) userIDFromSession(c *gin.Context) (snowflake.ID, bool) {
	value, ok := c.Get(contextUserIDKey)
	if !ok {
		return 0, false
	}
	raw, ok := value.(string)
	if !ok {
		return 0, false
	}
	userID, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil {
		return 0, false
	}
	return userID, true
}

func (s *Server) orgIDFromContext(c *gin.Context) (snowflake.ID, bool) {
	raw := c.GetString(contextOrgIDKey)
	if raw == "" {
		return 0, false
	}
	orgID, err := snowflake.ParseString(raw)
	if err != nil {
		return 0, false
	}
	return orgID, true
}

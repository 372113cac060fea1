package server

import (
	"net/http"
	"strings"

	orgdomain "github.com/costscopehq/costscope/internal/organization/domain"
	"github.com/gin-gonic/gin"
)

type createOrganizationRequest struct {
	Name            string `json:"name"`
	Slug            string `json:"slug"`
	CountryCode     string `json:"country_code"`
	DefaultCurrency string `json:"default_currency"`
	DefaultTimezone string `json:"default_timezone"`
}

type updateOrganizationRequest struct {
	Name         *string `json:"name"`
	CountryCode  *string `json:"country_code"`
	LanguageCode *string `json:"language_code"`
}

type updateLogoRequest struct {
	LogoURL string `json:"logo_url"`
}

func (s *Server) CreateOrganization(c *gin.Context) {
	userID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req createOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.organizationSvc.Create(c.Request.Context(), userID, orgdomain.CreateOrganizationRequest{
		Name:            strings.TrimSpace(req.Name),
		Slug:            strings.TrimSpace(req.Slug),
		CountryCode:     strings.TrimSpace(req.CountryCode),
		DefaultCurrency: strings.TrimSpace(req.DefaultCurrency),
		DefaultTimezone: strings.TrimSpace(req.DefaultTimezone),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (s *Server) ListOrganizations(c *gin.Context) {
	userID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	items, err := s.organizationSvc.ListByUser(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (s *Server) GetOrganization(c *gin.Context) {
	slug := c.GetString(contextOrgSlugKey)
	resp, err := s.organizationSvc.GetBySlug(c.Request.Context(), slug)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) UpdateOrganizationProfile(c *gin.Context) {
	userID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req updateOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	slug := c.GetString(contextOrgSlugKey)
	resp, err := s.organizationSvc.UpdateProfile(c.Request.Context(), userID, slug, orgdomain.UpdateProfileRequest{
		Name:         req.Name,
		CountryCode:  req.CountryCode,
		LanguageCode: req.LanguageCode,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) UpdateOrganizationLogo(c *gin.Context) {
	userID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req updateLogoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	slug := c.GetString(contextOrgSlugKey)
	if err := s.organizationSvc.UpdateLogo(c.Request.Context(), userID, slug, strings.TrimSpace(req.LogoURL)); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

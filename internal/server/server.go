package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	apikeydomain "github.com/costscopehq/costscope/internal/apikey/domain"
	auditdomain "github.com/costscopehq/costscope/internal/audit/domain"
	authdomain "github.com/costscopehq/costscope/internal/auth/domain"
	"github.com/costscopehq/costscope/internal/auth/session"
	"github.com/costscopehq/costscope/internal/authorization"
	"github.com/costscopehq/costscope/internal/billingsync"
	"github.com/costscopehq/costscope/internal/config"
	hierarchydomain "github.com/costscopehq/costscope/internal/hierarchy/domain"
	"github.com/costscopehq/costscope/internal/observability"
	obsmiddleware "github.com/costscopehq/costscope/internal/observability/logger"
	obsmetrics "github.com/costscopehq/costscope/internal/observability/metrics"
	obstracing "github.com/costscopehq/costscope/internal/observability/tracing"
	orgdomain "github.com/costscopehq/costscope/internal/organization/domain"
	"github.com/costscopehq/costscope/internal/providers/email"
	"github.com/costscopehq/costscope/internal/providers/pdf"
	"github.com/costscopehq/costscope/internal/ratelimit"
	referencedomain "github.com/costscopehq/costscope/internal/reference/domain"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine) {
	srv := &http.Server{
		Addr:    ":8080",
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	db              *gorm.DB
	log             *zap.Logger
	authsvc         authdomain.Service
	sessions        *session.Manager
	genID           *snowflake.Node
	apiKeySvc       apikeydomain.Service
	credentials     apikeydomain.CredentialStore
	authzSvc        authorization.Service
	auditSvc        auditdomain.Service
	organizationSvc orgdomain.Service
	orchestrator    *billingsync.Orchestrator
	hierarchySvc    hierarchydomain.Service
	refrepo         referencedomain.Repository
	emailProvider   email.Provider
	pdfProvider     pdf.Provider
	opLimiter       *ratelimit.SensitiveOpLimiter
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	DB              *gorm.DB
	Log             *zap.Logger
	Authsvc         authdomain.Service
	Sessions        *session.Manager
	GenID           *snowflake.Node
	APIKeySvc       apikeydomain.Service
	Credentials     apikeydomain.CredentialStore
	AuthzSvc        authorization.Service
	AuditSvc        auditdomain.Service
	OrganizationSvc orgdomain.Service
	Orchestrator    *billingsync.Orchestrator
	HierarchySvc    hierarchydomain.Service
	Refrepo         referencedomain.Repository
	EmailProvider   email.Provider
	PDFProvider     pdf.Provider
	OpLimiter       *ratelimit.SensitiveOpLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		db:              p.DB,
		log:             p.Log.Named("server"),
		authsvc:         p.Authsvc,
		sessions:        p.Sessions,
		genID:           p.GenID,
		apiKeySvc:       p.APIKeySvc,
		credentials:     p.Credentials,
		authzSvc:        p.AuthzSvc,
		auditSvc:        p.AuditSvc,
		organizationSvc: p.OrganizationSvc,
		orchestrator:    p.Orchestrator,
		hierarchySvc:    p.HierarchySvc,
		refrepo:         p.Refrepo,
		emailProvider:   p.EmailProvider,
		pdfProvider:     p.PDFProvider,
		opLimiter:       p.OpLimiter,
	}

	svc.registerAuthRoutes()
	svc.registerOrgRoutes()
	svc.registerMachineRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAuthRoutes() {
	auth := s.engine.Group("/auth")

	auth.POST("/signup", s.Signup)
	auth.POST("/login", s.Login)
	auth.POST("/logout", s.Logout)
	auth.GET("/me", s.Me)

	user := auth.Group("/user", s.WebAuthRequired())
	{
		user.GET("/orgs", s.ListUserOrgs)
	}
}

func (s *Server) registerOrgRoutes() {
	api := s.engine.Group("/api/v1")

	api.GET("/countries", s.ListCountries)
	api.GET("/timezones", s.ListTimezones)
	api.GET("/currencies", s.ListCurrencies)

	orgs := api.Group("/organizations", s.WebAuthRequired())
	orgs.POST("", s.CreateOrganization)
	orgs.GET("", s.ListOrganizations)

	api.POST("/invites/:id/accept", s.WebAuthRequired(), s.AcceptInvite)

	org := orgs.Group("/:slug", s.OrgMemberRequired())
	{
		org.GET("", s.GetOrganization)
		org.PATCH("", s.RequireRole(orgdomain.RoleOwner, orgdomain.RoleAdmin), s.authorizeOrgAction(authorization.ObjectOrganization, authorization.ActionOrganizationUpdate), s.UpdateOrganizationProfile)
		org.PUT("/logo", s.RequireRole(orgdomain.RoleOwner, orgdomain.RoleAdmin), s.authorizeOrgAction(authorization.ObjectOrganization, authorization.ActionOrganizationUpdate), s.UpdateOrganizationLogo)

		// Locale mutation delegates member and policy checks to the
		// orchestrator so the dual-write path has a single gate.
		org.PUT("/locale", s.UpdateLocale)
		org.GET("/sync/validate", s.RequireRole(orgdomain.RoleOwner, orgdomain.RoleAdmin), s.authorizeOrgAction(authorization.ObjectSync, authorization.ActionSyncValidate), s.ValidateSync)
		org.POST("/sync/repair", s.RequireRole(orgdomain.RoleOwner, orgdomain.RoleAdmin), s.authorizeOrgAction(authorization.ObjectSync, authorization.ActionSyncRepair), s.RepairSync)

		org.GET("/members", s.ListMembers)
		org.PATCH("/members/:memberId/role", s.RequireRole(orgdomain.RoleOwner, orgdomain.RoleAdmin), s.authorizeOrgAction(authorization.ObjectMember, authorization.ActionMemberUpdate), s.UpdateMemberRole)
		org.POST("/members/:memberId/deactivate", s.RequireRole(orgdomain.RoleOwner, orgdomain.RoleAdmin), s.authorizeOrgAction(authorization.ObjectMember, authorization.ActionMemberDeactivate), s.DeactivateMember)
		org.POST("/transfer-ownership", s.RequireRole(orgdomain.RoleOwner), s.authorizeOrgAction(authorization.ObjectOrganization, authorization.ActionOrganizationTransfer), s.TransferOwnership)

		org.POST("/invites", s.RequireRole(orgdomain.RoleOwner, orgdomain.RoleAdmin), s.authorizeOrgAction(authorization.ObjectInvite, authorization.ActionInviteCreate), s.InviteMembers)

		org.POST("/deletion/request", s.RequireRole(orgdomain.RoleOwner), s.authorizeOrgAction(authorization.ObjectOrganization, authorization.ActionOrganizationDelete), s.RequestDeletion)
		org.POST("/deletion/confirm", s.RequireRole(orgdomain.RoleOwner), s.authorizeOrgAction(authorization.ObjectOrganization, authorization.ActionOrganizationDelete), s.ConfirmDeletion)

		org.GET("/hierarchy", s.authorizeOrgAction(authorization.ObjectHierarchy, authorization.ActionHierarchyView), s.GetHierarchyTree)
		org.POST("/hierarchy/levels", s.RequireRole(orgdomain.RoleOwner, orgdomain.RoleAdmin), s.authorizeOrgAction(authorization.ObjectHierarchy, authorization.ActionHierarchyUpdate), s.CreateHierarchyLevel)
		org.POST("/hierarchy/nodes", s.RequireRole(orgdomain.RoleOwner, orgdomain.RoleAdmin), s.authorizeOrgAction(authorization.ObjectHierarchy, authorization.ActionHierarchyUpdate), s.CreateHierarchyNode)
		org.POST("/hierarchy/resolve", s.authorizeOrgAction(authorization.ObjectHierarchy, authorization.ActionHierarchyView), s.ResolveHierarchy)

		org.GET("/api-keys", s.RequireRole(orgdomain.RoleOwner, orgdomain.RoleAdmin), s.authorizeOrgAction(authorization.ObjectAPIKey, authorization.ActionAPIKeyView), s.ListAPIKeys)
		org.POST("/api-keys", s.RequireRole(orgdomain.RoleOwner, orgdomain.RoleAdmin), s.authorizeOrgAction(authorization.ObjectAPIKey, authorization.ActionAPIKeyCreate), s.CreateAPIKey)
		org.POST("/api-keys/:keyId/rotate", s.RequireRole(orgdomain.RoleOwner, orgdomain.RoleAdmin), s.authorizeOrgAction(authorization.ObjectAPIKey, authorization.ActionAPIKeyRotate), s.RotateAPIKey)
		org.POST("/api-keys/:keyId/revoke", s.RequireRole(orgdomain.RoleOwner), s.authorizeOrgAction(authorization.ObjectAPIKey, authorization.ActionAPIKeyRevoke), s.RevokeAPIKey)
		org.PUT("/backend-credential", s.RequireRole(orgdomain.RoleOwner), s.authorizeOrgAction(authorization.ObjectAPIKey, authorization.ActionAPIKeyCreate), s.SetBackendCredential)

		org.GET("/audit-logs", s.RequireRole(orgdomain.RoleOwner, orgdomain.RoleAdmin), s.authorizeOrgAction(authorization.ObjectAuditLog, authorization.ActionAuditLogView), s.ListAuditLogs)

		org.GET("/reports/billing-summary", s.RequireRole(orgdomain.RoleOwner, orgdomain.RoleAdmin), s.authorizeOrgAction(authorization.ObjectReport, authorization.ActionReportExport), s.ExportBillingSummary)
	}
}

// registerMachineRoutes exposes the API-key surface for integrations.
func (s *Server) registerMachineRoutes() {
	api := s.engine.Group("/api")

	api.GET("/locale", s.APIKeyRequired(), s.GetOwnLocale)
	api.GET("/reports/billing-summary", s.APIKeyRequired(), s.RequireScope(apikeydomain.ScopeReportRead), s.ExportBillingSummary)
}

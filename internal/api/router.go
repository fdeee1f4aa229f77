package api

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/crewdeck/crewdeck/internal/app"
	iauth "github.com/crewdeck/crewdeck/internal/auth"
	"github.com/crewdeck/crewdeck/internal/handlers"
	"github.com/crewdeck/crewdeck/internal/middleware"
	"github.com/crewdeck/crewdeck/internal/services"
	"github.com/crewdeck/crewdeck/pkg/mail"
)

// Dependencies carries everything the router needs to assemble the API.
type Dependencies struct {
	DB           *gorm.DB
	Config       *app.Config
	Tokens       *iauth.TokenService
	RefreshStore *iauth.RefreshTokenStore
	Bridge       *iauth.SessionBridge
	RateStore    middleware.RateStore
	Mailer       mail.Mailer
}

// NewRouter builds the Gin engine, wires the middleware chain, and registers
// every route. The chain runs CORS, then rate limiting, then authentication,
// then per-route authorization.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if deps.DB == nil {
		return nil, errors.New("router: database handle must be provided")
	}
	if deps.Config == nil {
		return nil, errors.New("router: config must be provided")
	}
	if deps.Tokens == nil {
		return nil, errors.New("router: token service must be provided")
	}
	if deps.RefreshStore == nil {
		return nil, errors.New("router: refresh store must be provided")
	}
	if deps.Bridge == nil {
		return nil, errors.New("router: session bridge must be provided")
	}
	cfg := deps.Config

	authService, err := services.NewAuthService(deps.DB, deps.Tokens, deps.RefreshStore, deps.Bridge)
	if err != nil {
		return nil, err
	}
	userService, err := services.NewUserService(deps.DB, &services.TokenRevoker{
		Revoke: deps.RefreshStore.DeleteAllForUser,
	})
	if err != nil {
		return nil, err
	}
	companyService, err := services.NewCompanyService(deps.DB)
	if err != nil {
		return nil, err
	}
	teamService, err := services.NewTeamService(deps.DB)
	if err != nil {
		return nil, err
	}
	invitationService, err := services.NewInvitationService(deps.DB, deps.Bridge, services.InvitationServiceConfig{
		BaseURL: cfg.Server.PublicURL,
		Mailer:  deps.Mailer,
	})
	if err != nil {
		return nil, err
	}

	authHandler, err := handlers.NewAuthHandler(authService)
	if err != nil {
		return nil, err
	}
	userHandler, err := handlers.NewUserHandler(userService)
	if err != nil {
		return nil, err
	}
	companyHandler, err := handlers.NewCompanyHandler(companyService)
	if err != nil {
		return nil, err
	}
	teamHandler, err := handlers.NewTeamHandler(teamService)
	if err != nil {
		return nil, err
	}
	invitationHandler, err := handlers.NewInvitationHandler(invitationService)
	if err != nil {
		return nil, err
	}

	r := gin.New()

	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
	if cfg.RateLimit.Enabled {
		r.Use(middleware.RateLimit(deps.RateStore, cfg.RateLimit.Limit, cfg.RateLimit.Window))
	}

	r.NoRoute(middleware.NotFoundHandler)

	if cfg.Monitoring.Health.Enabled {
		r.GET("/health", handlers.Health(deps.DB))
	}
	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := cfg.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	v1 := r.Group("/api/v1")

	// Public auth routes
	auth := v1.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
	}

	// Public invitation routes: the invitee has a token, not an account.
	v1.GET("/invitations/accept/:token", invitationHandler.Get)
	v1.POST("/invitations/accept/:token", invitationHandler.Accept)

	requireAuth := middleware.Auth(deps.Tokens)
	requireAdmin := middleware.RequireAdmin()
	requireSuperAdmin := middleware.RequireSuperAdmin()

	authed := v1.Group("")
	authed.Use(requireAuth)

	authed.GET("/auth/verify", authHandler.Verify)
	authed.POST("/auth/logout", authHandler.Logout)
	authed.DELETE("/auth/logout", authHandler.LogoutAll)

	users := authed.Group("/users")
	{
		users.GET("/me", userHandler.Me)
		users.PUT("/me", userHandler.UpdateMe)
		users.GET("", requireAdmin, userHandler.List)
		users.POST("", requireAdmin, userHandler.Create)
		users.GET("/:id", requireAdmin, userHandler.Get)
		users.PUT("/:id", requireAdmin, userHandler.Update)
		users.DELETE("/:id", requireAdmin, userHandler.Delete)
	}

	companies := authed.Group("/companies")
	companies.Use(requireSuperAdmin)
	{
		companies.GET("", companyHandler.List)
		companies.GET("/:id", companyHandler.Get)
		companies.POST("", companyHandler.Create)
		companies.PUT("/:id", companyHandler.Update)
		companies.DELETE("/:id", companyHandler.Delete)
	}

	teams := authed.Group("/teams")
	{
		teams.GET("", teamHandler.List)
		teams.GET("/:id", teamHandler.Get)
		teams.POST("", requireAdmin, teamHandler.Create)
		teams.PUT("/:id", requireAdmin, teamHandler.Update)
		teams.DELETE("/:id", requireAdmin, teamHandler.Delete)
		teams.GET("/:id/members", teamHandler.Members)
		teams.POST("/:id/members", requireAdmin, teamHandler.AddMember)
		teams.DELETE("/:id/members/:userId", requireAdmin, teamHandler.RemoveMember)
	}

	invitations := authed.Group("/invitations")
	invitations.Use(requireAdmin)
	{
		invitations.GET("", invitationHandler.List)
		invitations.POST("", invitationHandler.Create)
		invitations.GET("/:id", invitationHandler.GetByID)
		invitations.DELETE("/:id", invitationHandler.Revoke)
		invitations.POST("/:id/revoke", invitationHandler.Revoke)
	}

	return r, nil
}

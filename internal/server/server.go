package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	auditdomain "github.com/smallbiznis/metalid/internal/audit/domain"
	"github.com/smallbiznis/metalid/internal/authorization"
	"github.com/smallbiznis/metalid/internal/config"
	identitydomain "github.com/smallbiznis/metalid/internal/identity/domain"
	invitedomain "github.com/smallbiznis/metalid/internal/invite/domain"
	legacydomain "github.com/smallbiznis/metalid/internal/legacy/domain"
	memberdomain "github.com/smallbiznis/metalid/internal/member/domain"
	"github.com/smallbiznis/metalid/internal/observability"
	obsmiddleware "github.com/smallbiznis/metalid/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/metalid/internal/observability/metrics"
	obstracing "github.com/smallbiznis/metalid/internal/observability/tracing"
	profiledomain "github.com/smallbiznis/metalid/internal/profile/domain"
	"github.com/smallbiznis/metalid/internal/providers/pdf"
	"github.com/smallbiznis/metalid/internal/providers/qrcode"
	provisioningdomain "github.com/smallbiznis/metalid/internal/provisioning/domain"
	"github.com/smallbiznis/metalid/internal/ratelimit"
	registrationdomain "github.com/smallbiznis/metalid/internal/registration/domain"
	"github.com/smallbiznis/metalid/internal/session"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 15 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 60 * time.Second
	shutdownTimeout   = 10 * time.Second
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Provide(NewServer),
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

func run(lc fx.Lifecycle, shutdowner fx.Shutdowner, cfg config.Config, s *Server, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.Engine(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server stopped", zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	sessions        *session.Manager
	identity        identitydomain.Provider
	memberSvc       memberdomain.Service
	inviteSvc       invitedomain.Service
	provisioningSvc provisioningdomain.Service
	registrationSvc registrationdomain.Service
	profileSvc      profiledomain.Service
	authzSvc        authorization.Service
	auditSvc        auditdomain.Service
	legacySrc       legacydomain.Source
	qrRenderer      qrcode.Renderer
	cardRenderer    pdf.CardRenderer
	limiter         *ratelimit.RequestLimiter
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	Sessions        *session.Manager
	Identity        identitydomain.Provider
	MemberSvc       memberdomain.Service
	InviteSvc       invitedomain.Service
	ProvisioningSvc provisioningdomain.Service
	RegistrationSvc registrationdomain.Service
	ProfileSvc      profiledomain.Service
	AuthzSvc        authorization.Service
	QRRenderer      qrcode.Renderer
	CardRenderer    pdf.CardRenderer
	AuditSvc        auditdomain.Service       `optional:"true"`
	LegacySrc       legacydomain.Source       `optional:"true"`
	Limiter         *ratelimit.RequestLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		sessions:        p.Sessions,
		identity:        p.Identity,
		memberSvc:       p.MemberSvc,
		inviteSvc:       p.InviteSvc,
		provisioningSvc: p.ProvisioningSvc,
		registrationSvc: p.RegistrationSvc,
		profileSvc:      p.ProfileSvc,
		authzSvc:        p.AuthzSvc,
		auditSvc:        p.AuditSvc,
		legacySrc:       p.LegacySrc,
		qrRenderer:      p.QRRenderer,
		cardRenderer:    p.CardRenderer,
		limiter:         p.Limiter,
	}

	svc.engine.Use(svc.ResolvePrincipal())

	svc.registerAuthRoutes()
	svc.registerRegistrationRoutes()
	svc.registerMemberRoutes()
	svc.registerAdminRoutes()
	svc.registerAPIRoutes()
	svc.registerPublicRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAuthRoutes() {
	s.engine.GET("/login", s.LoginPage)

	auth := s.engine.Group("/auth")
	auth.GET("/callback", s.AuthCallback)
	auth.POST("/login", s.Login)
	auth.POST("/logout", s.Logout)
	auth.POST("/resend-confirmation", s.RegisterRateLimit(), s.ResendConfirmation)
}

func (s *Server) registerRegistrationRoutes() {
	s.engine.GET("/register", s.RegisterRateLimit(), s.InspectRegistration)
	s.engine.POST("/register", s.RegisterRateLimit(), s.Register)
}

func (s *Server) registerMemberRoutes() {
	my := s.engine.Group("/my", s.MemberPage())
	my.GET("", s.MyHome)
	my.GET("/edit", s.MyEdit)

	s.engine.PUT("/my/profile", s.MemberAPI(), s.SaveMyProfile)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin", s.AdminPage())

	admin.GET("", s.AdminDashboard)
	admin.GET("/members", s.ListMembers)
	admin.GET("/members/:id", s.GetMember)
	admin.GET("/members/:id/qr.png", s.MemberQRCode)
	admin.GET("/members/:id/card.pdf", s.MemberCard)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api/admin", s.AdminAPI())

	api.POST("/members", s.CreateMember)
	api.GET("/members", s.ListMembers)
	api.POST("/reissue-token", s.ReissueToken)
	api.GET("/audit-logs", s.ListAuditLogs)
}

func (s *Server) registerPublicRoutes() {
	s.engine.GET("/u/:id", s.PublicRateLimit(), s.PublicProfile)
	s.engine.GET("/legacy/u/:id", s.PublicRateLimit(), s.LegacyProfile)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}

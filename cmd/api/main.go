package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "licitacao/api/swagger" // swagger docs
	"licitacao/internal/config"
	"licitacao/internal/database"
	"licitacao/internal/handler"
	"licitacao/internal/logger"
	"licitacao/internal/middleware"
	"licitacao/internal/model"
	"licitacao/internal/repository"
	"licitacao/internal/service"
	"licitacao/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// @title           Licitação API
// @version         1.0
// @description     Tracks public bidding processes through their departmental approval steps.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	envFile := flag.String("env", "configs/.env", "dotenv file to load")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if cfg.Server.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewConnection(cfg.Database, cfg.Logging.Development)
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}
	if err := database.Migrate(db, log); err != nil {
		log.Fatal("database migration failed", zap.Error(err))
	}
	log.Info("connected to PostgreSQL", zap.String("host", cfg.Database.Host), zap.String("db", cfg.Database.DBName))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Set up WebSocket Hub
	wsHub := websocket.NewHub(log)
	go wsHub.Run(ctx)

	// Set up dependencies (Repository -> Service -> Handler)
	stores := service.NewStores(db)
	opts := service.Options{Events: wsHub, Location: cfg.Calendar.Location()}

	roleRepo := repository.NewRoleRepository(db)
	roleService := service.NewRoleService(roleRepo, stores.Tx, func() { middleware.ClearPermissionCache("") })
	if err := roleService.SeedDefaultRolesAndPermissions(ctx); err != nil {
		log.Fatal("failed to seed roles", zap.Error(err))
	}
	middleware.InitAuth(cfg.Security.JWTSecret, roleService)

	userService := service.NewUserService(stores.Users, stores.Departments, cfg.Security.JWTSecret, cfg.Security.TokenTTL)
	if err := ensureAdmin(ctx, cfg.Security, stores.Users, userService); err != nil {
		log.Fatal("failed to create bootstrap admin", zap.Error(err))
	}

	processService := service.NewProcessService(stores, opts)
	workflowService := service.NewWorkflowService(stores, opts)
	transferService := service.NewTransferService(stores, opts)
	catalogService := service.NewCatalogService(stores)
	auditService := service.NewAuditService(stores.Audit)
	statisticsService := service.NewStatisticsService(repository.NewStatisticsRepository(db))

	// Initialize Handlers
	handlers := []interface{ RegisterRoutes(*gin.RouterGroup) }{
		handler.NewUserHandler(userService),
		handler.NewRoleHandler(roleService),
		handler.NewProcessHandler(processService, workflowService, transferService, cfg.Calendar.Location()),
		handler.NewStepHandler(workflowService),
		handler.NewCatalogHandler(catalogService, cfg.Calendar.Location()),
		handler.NewAuditHandler(auditService),
		handler.NewStatisticsHandler(statisticsService),
	}

	// Set up Gin Router
	router := gin.New()
	router.Use(middleware.RequestLogger(log), gin.Recovery())

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.Server.AllowedOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept", middleware.RequestIDHeader}
	corsConfig.ExposeHeaders = []string{middleware.RequestIDHeader}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})

	// WebSocket endpoint
	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c)
	})

	for _, h := range handlers {
		h.RegisterRoutes(router.Group(""))
	}

	srv := &http.Server{
		Addr:              cfg.Server.GetServerAddr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}

// ensureAdmin creates the configured bootstrap admin on first start.
func ensureAdmin(ctx context.Context, sec config.SecurityConfig, users repository.UserRepository, userService service.UserService) error {
	if sec.AdminEmail == "" || sec.AdminPassword == "" {
		return nil
	}
	_, err := users.GetByEmail(ctx, sec.AdminEmail)
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	_, err = userService.CreateUser(ctx, service.CreateUserRequest{
		Username: "admin",
		Email:    sec.AdminEmail,
		Password: sec.AdminPassword,
		Role:     model.RoleAdmin,
	})
	return err
}

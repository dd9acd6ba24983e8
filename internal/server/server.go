package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Joyuchen/flow-state-board/internal/ai"
	"github.com/Joyuchen/flow-state-board/internal/auth"
	"github.com/Joyuchen/flow-state-board/internal/config"
	"github.com/Joyuchen/flow-state-board/internal/handler"
	"github.com/Joyuchen/flow-state-board/internal/logger"
	"github.com/Joyuchen/flow-state-board/internal/middleware"
	"github.com/Joyuchen/flow-state-board/internal/realtime"
	"github.com/Joyuchen/flow-state-board/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/cors"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Server struct {
	Engine *gin.Engine
	DB     *gorm.DB
	Config *config.Config
}

func Init(cfg *config.Config) (*Server, error) {
	if err := logger.Init(gin.Mode() != gin.ReleaseMode); err != nil {
		return nil, fmt.Errorf("❌ failed to init logger: %w", err)
	}

	// Setup GORM
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName,
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("❌ failed to connect to DB: %w", err)
	}
	log.Println("✅ Connected to database")

	if err := runMigrations(db, cfg.DBName); err != nil {
		return nil, fmt.Errorf("❌ failed to run migrations: %w", err)
	}
	log.Println("✅ Migrations applied")

	// Setup Gin
	r := gin.Default()

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	taskRepo := repository.NewTaskRepository(db)

	// Shared services
	tokens := auth.NewManager(cfg.JWTSecret, 24*time.Hour)
	hub := realtime.NewHub()
	aiClient := ai.NewClient(cfg.AIAPIKey, cfg.AIModel, cfg.AIBaseURL)

	// Initialize handlers
	userHandler := handler.NewUserHandler(userRepo, tokens)
	taskHandler := handler.NewTaskHandler(taskRepo, hub)
	executor := handler.NewToolExecutor(taskRepo, hub)
	chatHandler := handler.NewChatHandler(aiClient, executor, cfg.AIAPIKey != "")

	// Public routes
	r.POST("/register", userHandler.Register)
	r.POST("/login", userHandler.Login)
	r.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "OK") })
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Protected routes - require authentication
	authorized := r.Group("/")
	authorized.Use(middleware.JWTAuthMiddleware(cfg.JWTSecret))
	{
		// Task routes
		authorized.GET("/tasks", taskHandler.GetAll)
		authorized.POST("/tasks", taskHandler.Create)
		authorized.GET("/tasks/stats", taskHandler.Stats)
		authorized.GET("/tasks/events", taskHandler.Events)
		authorized.GET("/tasks/:id", taskHandler.GetByID)
		authorized.PUT("/tasks/:id", taskHandler.Update)
		authorized.DELETE("/tasks/:id", taskHandler.Delete)
		authorized.POST("/tasks/:id/move", taskHandler.Move)

		// AI chat relay
		authorized.POST("/chat", chatHandler.Chat)
	}

	return &Server{
		Engine: r,
		DB:     db,
		Config: cfg,
	}, nil
}

func runMigrations(db *gorm.DB, dbName string) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	driver, err := migratepg.WithInstance(sqlDB, &migratepg.Config{})
	if err != nil {
		return err
	}

	m, err := migrate.NewWithDatabaseInstance("file://migrations", dbName, driver)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func (s *Server) Run() {
	// All origins are allowed; the header allow-list covers auth plus the
	// client metadata headers the web client sends. OPTIONS never reaches
	// gin.
	corsHandler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Client-Info", "X-Client-Version"},
	}).Handler(s.Engine)

	srv := &http.Server{
		Addr:    ":" + s.Config.ServerPort,
		Handler: corsHandler,
	}

	go func() {
		log.Printf("🚀 Server running on port %s\n", s.Config.ServerPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Failed to listen: %s\n", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("🛑 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("❌ Server forced to shutdown: %s", err)
	}

	logger.Sync()
	log.Println("✅ Server exited properly")
}

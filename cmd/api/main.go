// Package main はAPIサーバーのエントリーポイントです。
package main

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"

	"github.com/yourusername/signin/internal/auth"
	"github.com/yourusername/signin/internal/config"
	"github.com/yourusername/signin/internal/signin"
	"github.com/yourusername/signin/internal/storage"
	"github.com/yourusername/signin/internal/web"
)

func main() {
	// 設定の読み込み
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	// Ginのモードを設定
	gin.SetMode(cfg.GinMode)

	// Ginルーターの初期化（デフォルトミドルウェア: Logger, Recovery）
	router := gin.Default()

	// セッションストアの設定（クッキー署名鍵は必須）
	store := cookie.NewStore([]byte(cfg.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   auth.SessionMaxAgeSeconds(),
		HttpOnly: true,
		Secure:   cfg.GinMode == gin.ReleaseMode,
		SameSite: http.SameSiteStrictMode,
	})
	router.Use(sessions.Sessions(auth.SessionCookieName, store))

	// CORSミドルウェアの設定
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = strings.Split(cfg.CORSAllowedOrigins, ",")
	corsConfig.AllowCredentials = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{
		"Origin",
		"Content-Type",
		"Accept",
		"Authorization",
		"X-CSRF-Token", // CSRF保護用ヘッダー
	}
	// フロントエンドがレスポンスヘッダーから CSRF トークンを読み取れるように公開
	corsConfig.ExposeHeaders = []string{"X-CSRF-Token", "Retry-After"}
	router.Use(cors.New(corsConfig))

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to parse redis url: %v", err)
	}
	rdb := redis.NewClient(opt)
	defer rdb.Close()

	attemptManager, err := setupAttempts(cfg, rdb)
	if err != nil {
		log.Fatalf("Failed to set up attempt recording: %v", err)
	}
	attemptManager.StartWorkers()
	defer func() {
		_ = attemptManager.Shutdown(context.Background())
	}()

	stop := make(chan struct{})
	defer close(stop)

	// ルーティングの設定
	if err := setupRoutes(router, cfg, rdb, attemptManager, stop); err != nil {
		log.Fatalf("Failed to set up routes: %v", err)
	}

	// サーバーの起動
	addr := ":" + cfg.Port
	log.Printf("Starting API server on %s (mode: %s)", addr, cfg.GinMode)
	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// handleHealth はヘルスチェックエンドポイントのハンドラーです。
func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "signin-api",
		"version": "0.1.0",
	})
}

// setupRoutes は API グループと認証・フォーム周りの配線を行います。
func setupRoutes(router *gin.Engine, cfg *config.Config, rdb *redis.Client, recorder attemptRecorder, stop <-chan struct{}) error {
	router.GET("/health", handleHealth)

	sessionStore := storage.NewRedisSessions(rdb, cfg.TokenTTL())
	authManager, err := auth.NewManager(cfg, sessionStore)
	if err != nil {
		return err
	}

	logger := log.Default()
	authenticator := signin.WithTimeout(authManager, cfg.AuthTimeout())
	registry, err := signin.NewRegistry(func(formID string, effects *signin.Effects) (*signin.Controller, error) {
		return signin.NewController(authenticator,
			signin.WithNavigator(effects),
			signin.WithNotifier(effects),
			signin.WithSessionStore(sessionStore),
			signin.WithRecorder(recorder),
			signin.WithDestination(cfg.PostLoginPath),
			signin.WithLogger(logger),
		)
	}, cfg.FormIdleTimeout())
	if err != nil {
		return err
	}
	// 放置されたフォームを定期的に破棄
	registry.StartSweeper(time.Minute, stop)

	formHandler, err := web.NewHandler(registry, authManager, logger)
	if err != nil {
		return err
	}

	api := router.Group("/api")
	{
		authRoutes := api.Group("/auth")
		{
			// ログイン時はセッション未生成なので CSRF 検証は不要
			authRoutes.POST("/login", authManager.Login)
			authRoutes.POST("/logout",
				authManager.RequireLogin(),
				authManager.VerifyCSRF(),
				authManager.Logout,
			)
		}

		formHandler.Register(api)

		protected := api.Group("")
		protected.Use(authManager.RequireLogin(), authManager.VerifyCSRF())
		{
			protected.GET("/dashboard", handleDashboard)
			protected.GET("/attempts/:id", attemptStatusHandler(recorder))
		}
	}
	return nil
}

// handleDashboard はログイン成功後の遷移先です。
func handleDashboard(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"user": c.GetString(auth.ContextUserKey),
	})
}

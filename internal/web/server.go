// Package web は gin エンジンを組み立て、全ルートをナビゲーションガードの背後に登録します。
package web

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/yourusername/transient-web/internal/auth"
	"github.com/yourusername/transient-web/internal/client"
	"github.com/yourusername/transient-web/internal/config"
	"github.com/yourusername/transient-web/internal/guard"
	"github.com/yourusername/transient-web/internal/logging"
	"github.com/yourusername/transient-web/internal/metrics"
	"github.com/yourusername/transient-web/internal/navigation"
	"github.com/yourusername/transient-web/internal/routes"
	"github.com/yourusername/transient-web/internal/views"
)

const (
	serviceName    = "transient-web"
	serviceVersion = "0.1.0"
	flashMaxAge    = 5 * 60
)

// logoutRoute は画面ではない POST /logout をガードに通すための定義です。
var logoutRoute = &routes.Descriptor{Path: "/logout", Name: "logout", RequiresAuth: true}

// Deps はサーバーが利用する外部依存です。nil のものは既定値で補います。
type Deps struct {
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
	HTTPClient client.Doer
}

// Server は組み立て済みの gin エンジンとルートテーブルです。
type Server struct {
	Engine *gin.Engine
	Table  *routes.Table

	cfg *config.Config
}

// NewServer は設定からサーバーを組み立てます。
func NewServer(cfg *config.Config, deps Deps) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}

	backend, err := client.New(client.Options{
		BaseURL:    cfg.BackendURL,
		HTTPClient: deps.HTTPClient,
		Recorder:   deps.Metrics,
	})
	if err != nil {
		return nil, err
	}

	v := views.New(backend)
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		v.SetLimiter(auth.NewRedisLimiter(redis.NewClient(opt)))
	}
	table, err := routes.Default(v)
	if err != nil {
		return nil, err
	}
	v.Bind(table)

	// Ginのモードを設定
	gin.SetMode(cfg.GinMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), logging.RequestID(deps.Logger), logging.AccessLog())

	// 通知用セッションストア（クッキー署名）
	secret := cfg.SessionSecret
	if secret == "" {
		deps.Logger.Warn("SESSION_SECRET is empty; using an insecure development key")
		secret = "transient-web-dev-only"
	}
	store := cookie.NewStore([]byte(secret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   flashMaxAge,
		HttpOnly: true,
		Secure:   cfg.GinMode == gin.ReleaseMode,
		SameSite: http.SameSiteLaxMode,
	})
	engine.Use(sessions.Sessions(navigation.FlashCookieName, store))

	// CORSミドルウェアの設定（許可オリジンが無ければ付けない）
	if origins := cfg.AllowedOrigins(); len(origins) > 0 {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowOrigins = origins
		corsConfig.AllowCredentials = true
		corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", logging.RequestIDHeader}
		corsConfig.ExposeHeaders = []string{logging.RequestIDHeader}
		engine.Use(cors.New(corsConfig))
	}

	s := &Server{Engine: engine, Table: table, cfg: cfg}
	s.setupRoutes(v, guard.New(table, deps.Metrics), deps.Metrics)
	return s, nil
}

// setupRoutes はヘルスチェック・メトリクスと、ガード付きの画面ルートを登録します。
func (s *Server) setupRoutes(v *views.Views, g *guard.Guard, m *metrics.Metrics) {
	s.Engine.GET("/health", handleHealth)
	s.Engine.GET("/metrics", gin.WrapH(m.Handler()))

	for _, d := range s.Table.All() {
		s.Engine.GET(d.Path, g.Middleware(d), lazyView(d))
	}

	login, _ := s.Table.Lookup("login")
	s.Engine.POST(login.Path, g.Middleware(login), v.LoginSubmit)
	s.Engine.POST(logoutRoute.Path, g.Middleware(logoutRoute), v.Logout)
}

// Addr は待ち受けアドレスを返します。
func (s *Server) Addr() string {
	return ":" + s.cfg.Port
}

// handleHealth はヘルスチェックエンドポイントのハンドラーです。
func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": serviceName,
		"version": serviceVersion,
	})
}

// lazyView は初回遷移時に一度だけ画面ハンドラーを生成します。
func lazyView(d *routes.Descriptor) gin.HandlerFunc {
	load := sync.OnceValues(func() (gin.HandlerFunc, error) { return d.View() })
	return func(c *gin.Context) {
		h, err := load()
		if err != nil {
			logging.FromContext(c.Request.Context()).Error("failed to load view", "route", d.Name, "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"code":    "VIEW_LOAD_FAILED",
				"message": "The page could not be loaded.",
			})
			return
		}
		h(c)
	}
}

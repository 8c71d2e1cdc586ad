package bridge

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/sanketmali2409/ros2-sensor-dashboard/internal/config"
	"github.com/sanketmali2409/ros2-sensor-dashboard/internal/launcher"
	"github.com/sanketmali2409/ros2-sensor-dashboard/internal/observability"
	"github.com/sanketmali2409/ros2-sensor-dashboard/internal/roslog"
)

// Server is the HTTP face of the bridge: launch/stop/run-node handlers,
// log history queries, and the static dashboard.
type Server struct {
	Name     string    `json:"name"`
	Addr     string    `json:"addr"`
	Appeared time.Time `json:"appeared"`

	launcher    *launcher.Launcher
	history     *roslog.History
	defaultNode string
	staticDir   string
	router      *gin.Engine
}

// Appear wires middleware and state; routes are registered on Serve or
// explicitly for tests.
func Appear(cfg config.BridgeConfig, l *launcher.Launcher, history *roslog.History) *Server {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware(cfg.Name))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(cfg.CorsOrigins),
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	return &Server{
		Name:        cfg.Name,
		Addr:        cfg.Addr,
		Appeared:    time.Now(),
		launcher:    l,
		history:     history,
		defaultNode: cfg.ROS2.DefaultNode,
		staticDir:   cfg.StaticDir,
		router:      r,
	}
}

func (s *Server) HTTPRouter() *gin.Engine {
	return s.router
}

func (s *Server) Serve() error {
	s.RegisterRoutes()
	return s.router.Run(s.Addr)
}

func (s *Server) registerStatic() {
	if s.staticDir == "" {
		return
	}
	s.router.StaticFile("/", filepath.Join(s.staticDir, "index.html"))
	s.router.Static("/assets", s.staticDir)
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	out := make([]string, 0, len(origins))
	for _, origin := range origins {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			out = append(out, origin)
		}
	}
	return out
}

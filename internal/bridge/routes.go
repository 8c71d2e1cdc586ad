package bridge

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sanketmali2409/ros2-sensor-dashboard/internal/launcher"
)

type launchRequest struct {
	Node string `json:"node"`
}

func (s *Server) RegisterRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.Appeared).String(),
			"service": s.Name,
			"version": "0.1.0",
		})
	})

	s.router.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"ready":   true,
			"uptime":  time.Since(s.Appeared).String(),
			"service": s.Name,
			"version": "0.1.0",
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.router.Group("/api")

	api.POST("/launch", func(c *gin.Context) {
		var req launchRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
				return
			}
		}
		node := req.Node
		if node == "" {
			node = s.defaultNode
		}
		if node == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "node is required"})
			return
		}
		state, err := s.launcher.LaunchPrimary(node)
		if err != nil {
			respondLaunchError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "launch": state})
	})

	api.POST("/stop", func(c *gin.Context) {
		state, err := s.launcher.StopPrimary()
		if err != nil {
			respondLaunchError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "launch": state})
	})

	api.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.launcher.Snapshot())
	})

	api.GET("/logs", func(c *gin.Context) {
		limit := 0
		if raw := c.Query("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
				return
			}
			limit = parsed
		}
		records := s.history.Recent(limit)
		c.JSON(http.StatusOK, gin.H{
			"count":    len(records),
			"capacity": s.history.Capacity(),
			"logs":     records,
		})
	})

	api.GET("/logs/latest", func(c *gin.Context) {
		record, ok := s.history.Latest()
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "no log records yet"})
			return
		}
		c.JSON(http.StatusOK, record)
	})

	api.GET("/nodes", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"nodes": s.launcher.Snapshot().Nodes})
	})

	api.POST("/nodes/start-all", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "results": s.launcher.StartAll()})
	})

	api.POST("/nodes/stop-all", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "stopped": s.launcher.StopAll()})
	})

	api.POST("/nodes/:node/start", func(c *gin.Context) {
		state, err := s.launcher.StartNode(c.Param("node"))
		if err != nil {
			respondLaunchError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "launch": state})
	})

	api.POST("/nodes/:node/stop", func(c *gin.Context) {
		if err := s.launcher.StopNode(c.Param("node")); err != nil {
			respondLaunchError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	s.registerStatic()
}

func respondLaunchError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, launcher.ErrUnknownNode):
		status = http.StatusNotFound
	case errors.Is(err, launcher.ErrAlreadyRunning), errors.Is(err, launcher.ErrNotRunning):
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

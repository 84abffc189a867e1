package httpapi

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"time"

	"pixel_pets/internal/app"
	"pixel_pets/internal/domain/reminder"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const commandTimeout = 10 * time.Second

// CommandExecutor runs reminder commands.
type CommandExecutor interface {
	Execute(ctx context.Context, cmd reminder.Command) (reminder.Result, error)
}

// PageHub is the WebSocket endpoint for page surfaces.
type PageHub interface {
	http.Handler
	Count() int
}

type Config struct {
	Addr           string
	AllowedOrigins []string
	Debug          bool
}

// Server exposes the command API, the page WebSocket, metrics and a health
// check.
type Server struct {
	executor   CommandExecutor
	hub        PageHub
	logger     *logrus.Entry
	engine     *gin.Engine
	httpServer *http.Server
	startTime  time.Time
}

func NewServer(cfg Config, executor CommandExecutor, hub PageHub, gatherer prometheus.Gatherer, logger *logrus.Entry) *Server {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(logger))
	engine.Use(cors.New(corsConfig(cfg.AllowedOrigins)))

	s := &Server{
		executor:  executor,
		hub:       hub,
		logger:    logger,
		engine:    engine,
		startTime: time.Now(),
	}
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.setupRoutes(gatherer)
	return s
}

func corsConfig(origins []string) cors.Config {
	c := cors.DefaultConfig()
	if len(origins) == 0 || slices.Contains(origins, "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	c.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	c.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	c.AllowWebSockets = true
	// Extension pages report chrome-extension:// and moz-extension:// origins.
	c.AllowBrowserExtensions = true
	return c
}

func (s *Server) setupRoutes(gatherer prometheus.Gatherer) {
	api := s.engine.Group("/api")
	{
		api.POST("/commands", s.handleCommand)
		api.GET("/status", s.handleStatus)
	}
	if s.hub != nil {
		s.engine.GET("/ws", gin.WrapH(s.hub))
	}
	if gatherer != nil {
		s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
	s.engine.GET("/healthz", s.handleHealth)
}

// Handler returns the routed engine, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("HTTP server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleCommand(c *gin.Context) {
	var cmd reminder.Command
	if err := c.ShouldBindJSON(&cmd); err != nil {
		c.JSON(http.StatusBadRequest, reminder.Result{Error: "invalid command payload: " + err.Error()})
		return
	}
	s.execute(c, cmd)
}

func (s *Server) handleStatus(c *gin.Context) {
	s.execute(c, reminder.Command{Type: reminder.CmdGetStatus})
}

func (s *Server) execute(c *gin.Context, cmd reminder.Command) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), commandTimeout)
	defer cancel()

	res, err := s.executor.Execute(ctx, cmd)
	switch {
	case errors.Is(err, app.ErrCoordinatorStopped):
		c.JSON(http.StatusServiceUnavailable, reminder.Failed(err))
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, reminder.Failed(err))
	case err != nil:
		c.JSON(http.StatusInternalServerError, reminder.Failed(err))
	case !res.Success:
		c.JSON(http.StatusBadRequest, res)
	default:
		c.JSON(http.StatusOK, res)
	}
}

type healthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
	Pages  int    `json:"pages"`
}

func (s *Server) handleHealth(c *gin.Context) {
	resp := healthResponse{
		Status: "ok",
		Uptime: time.Since(s.startTime).Round(time.Second).String(),
	}
	if s.hub != nil {
		resp.Pages = s.hub.Count()
	}
	c.JSON(http.StatusOK, resp)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/yuno-bot/yuno/automod"
	"github.com/yuno-bot/yuno/automod/cachestore"
	"github.com/yuno-bot/yuno/automod/commands"
	"github.com/yuno-bot/yuno/automod/consumer"
	"github.com/yuno-bot/yuno/automod/countstore"
	"github.com/yuno-bot/yuno/automod/delaytracker"
	"github.com/yuno-bot/yuno/automod/setstore"
	"github.com/yuno-bot/yuno/automod/spamtracker"
	"github.com/yuno-bot/yuno/automod/xpbatcher"
	"github.com/yuno-bot/yuno/botstore"
	"github.com/yuno-bot/yuno/discord"
	"github.com/yuno-bot/yuno/internal/group"
	"github.com/yuno-bot/yuno/internal/ticker"
	"github.com/yuno-bot/yuno/util"

	"github.com/carlmjohnson/versioninfo"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	slogecho "github.com/samber/slog-echo"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
)

const authorizationBearerPrefix = "Bearer "

// registers collectors on the default registry, so must only be created once per process
var httpMetrics = echoprometheus.NewMiddleware("yuno")

type Server struct {
	logger   *slog.Logger
	engine   *automod.Engine
	consumer *consumer.GatewayConsumer
	rdb      *redis.Client
	echo     *echo.Echo
	httpd    *http.Server

	adminPassword   string
	flushInterval   time.Duration
	cleanupInterval time.Duration
}

type Config struct {
	Logger          *slog.Logger
	Token           string
	GatewayHost     string
	APIHost         string
	SetsFileJSON    string
	MasterUsers     []string
	RedisURL        string
	SlackWebhookURL string
	Bind            string
	AdminPassword   string
	CleanupInterval time.Duration

	Engine automod.EngineConfig
	Spam   spamtracker.Config
	XP     xpbatcher.Config
	Delays delaytracker.Config
	Cache  cachestore.RedisCacheConfig
}

func NewServer(store *botstore.DBStore, config Config) (*Server, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	sets := setstore.NewMemSetStore()
	if config.SetsFileJSON != "" {
		if err := sets.LoadFromFileJSON(config.SetsFileJSON); err != nil {
			return nil, fmt.Errorf("initializing in-process setstore: %v", err)
		} else {
			logger.Info("loaded set config from JSON", "path", config.SetsFileJSON)
		}
	}
	if len(config.MasterUsers) > 0 {
		sets.Add(setstore.MasterUsers, config.MasterUsers...)
	}

	if config.Cache.TTL <= 0 {
		config.Cache = cachestore.DefaultRedisCacheConfig()
	}

	var counters countstore.CountStore
	var cache cachestore.CacheStore
	var rdb *redis.Client
	if config.RedisURL != "" {
		// generic client, for gateway session state
		opt, err := redis.ParseURL(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis URL: %v", err)
		}
		rdb = redis.NewClient(opt)
		// check redis connection
		_, err = rdb.Ping(context.TODO()).Result()
		if err != nil {
			return nil, fmt.Errorf("redis ping failed: %v", err)
		}

		cnt, err := countstore.NewRedisCountStore(config.RedisURL, 24*time.Hour)
		if err != nil {
			return nil, fmt.Errorf("initializing redis countstore: %v", err)
		}
		counters = cnt

		cache = cachestore.NewRedisCacheStore(rdb, config.Cache)
	} else {
		counters = countstore.NewMemCountStore()
		cache = cachestore.NewMemCacheStore(5_000, config.Cache.TTL)
	}

	spam, err := spamtracker.New(config.Spam)
	if err != nil {
		return nil, err
	}
	delays, err := delaytracker.New(config.Delays)
	if err != nil {
		return nil, err
	}
	cmds, err := commands.DefaultCommands()
	if err != nil {
		return nil, err
	}

	dc := discord.NewClient(config.Token, logger)
	if config.APIHost != "" {
		dc.Host = strings.TrimSuffix(config.APIHost, "/")
	}

	engine := automod.Engine{
		Logger:   logger,
		Store:    store,
		Discord:  dc,
		Spam:     spam,
		Delays:   delays,
		Warnings: counters,
		Cache:    cache,
		Sets:     sets,
		Commands: cmds,
		Config:   config.Engine,
	}
	if config.SlackWebhookURL != "" {
		engine.Notifier = &automod.SlackNotifier{
			SlackWebhookURL: config.SlackWebhookURL,
			Client:          util.RobustHTTPClient(logger),
		}
	}
	engine.XP, err = xpbatcher.New(config.XP, store, &engine)
	if err != nil {
		return nil, err
	}

	gc := &consumer.GatewayConsumer{
		Logger:      logger.With("system", "consumer"),
		RedisClient: rdb,
		Engine:      &engine,
		Host:        config.GatewayHost,
		Gateway:     discord.NewGateway(config.Token, discord.DefaultIntents, logger),
	}

	srv := &Server{
		logger:          logger,
		engine:          &engine,
		consumer:        gc,
		rdb:             rdb,
		adminPassword:   config.AdminPassword,
		flushInterval:   config.XP.FlushInterval,
		cleanupInterval: config.CleanupInterval,
	}
	srv.echo = srv.newEcho()
	srv.httpd = &http.Server{
		Handler:        srv.echo,
		Addr:           config.Bind,
		WriteTimeout:   time.Minute,
		ReadTimeout:    time.Minute,
		MaxHeaderBytes: 1024 * 1024,
	}
	return srv, nil
}

func (srv *Server) newEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(slogecho.New(srv.logger.With("system", "http")))
	e.Use(middleware.Recover())
	e.Use(otelecho.Middleware("yuno"))
	e.Use(httpMetrics)
	e.HTTPErrorHandler = srv.errorHandler

	e.GET("/_health", srv.HandleHealthCheck)
	e.GET("/metrics", echoprometheus.NewHandler())

	admin := e.Group("/admin", srv.checkAdminAuth)
	admin.POST("/flush-xp", srv.HandleFlushXP)
	admin.POST("/cleanup-sweep", srv.HandleCleanupSweep)
	return e
}

// Runs the gateway consumer, periodic tasks, and the admin HTTP server until ctx is done or one of them fails. Pending XP is flushed once more on the way out.
func (srv *Server) Run(ctx context.Context) error {
	g := group.New(ctx, srv.logger)

	g.Add("gateway", srv.consumer.Run)
	g.Add("gateway-session", srv.consumer.RunPersistSession)

	flushTask := ticker.Task{
		Name:         "xp-flush",
		Interval:     srv.flushInterval,
		Run:          srv.engine.FlushXP,
		Logger:       srv.logger,
		FinalTimeout: 30 * time.Second,
	}
	g.Add("xp-flush", flushTask.Periodically)

	sweepTask := ticker.Task{
		Name:     "cleanup-sweep",
		Interval: srv.cleanupInterval,
		Run: func(ctx context.Context) error {
			_, err := srv.engine.RunCleanupSweep(ctx)
			return err
		},
		Logger: srv.logger,
	}
	g.Add("cleanup-sweep", sweepTask.Periodically)

	g.Add("http", srv.RunAPI)

	err := g.Wait()
	if srv.rdb != nil {
		if cerr := srv.rdb.Close(); cerr != nil {
			srv.logger.Warn("closing redis client", "err", cerr)
		}
	}
	return err
}

// Serves the admin API until ctx is done, then shuts the listener down gracefully.
func (srv *Server) RunAPI(ctx context.Context) error {
	srv.logger.Info("starting admin HTTP server", "bind", srv.httpd.Addr)
	errc := make(chan error, 1)
	go func() {
		if err := srv.httpd.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("admin HTTP server: %w", err)
	case <-ctx.Done():
	}
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.httpd.Shutdown(sctx); err != nil {
		srv.logger.Error("HTTP server shutdown error", "err", err)
	}
	return ctx.Err()
}

type GenericStatus struct {
	Daemon  string `json:"daemon"`
	Status  string `json:"status"`
	Message string `json:"msg,omitempty"`
	Version string `json:"version,omitempty"`
}

func (srv *Server) errorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	var errorMessage string
	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		errorMessage = fmt.Sprintf("%s", he.Message)
	}
	if code >= 500 {
		srv.logger.Warn("yuno-http-internal-error", "err", err)
	}
	c.JSON(code, GenericStatus{Status: "error", Daemon: "yuno", Message: errorMessage})
}

func (srv *Server) checkAdminAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if srv.adminPassword == "" {
			return echo.ErrNotFound
		}
		authheader := c.Request().Header.Get("Authorization")
		if !strings.HasPrefix(authheader, authorizationBearerPrefix) {
			return echo.ErrForbidden
		}
		if authheader[len(authorizationBearerPrefix):] != srv.adminPassword {
			return echo.ErrForbidden
		}
		return next(c)
	}
}

func (srv *Server) HandleHealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, GenericStatus{Status: "ok", Daemon: "yuno", Version: versioninfo.Short()})
}

type flushXPResponse struct {
	Pending int `json:"pending"`
}

// Applies pending XP right away, without waiting for the flush interval.
func (srv *Server) HandleFlushXP(c echo.Context) error {
	pending := srv.engine.XP.Pending()
	if err := srv.engine.FlushXP(c.Request().Context()); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, flushXPResponse{Pending: pending})
}

type sweepResponse struct {
	Cleaned []string `json:"cleaned"`
	Skipped int      `json:"skipped"`
	Failed  int      `json:"failed"`
}

// Runs an auto-clean sweep right away.
func (srv *Server) HandleCleanupSweep(c echo.Context) error {
	res, err := srv.engine.RunCleanupSweep(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	out := sweepResponse{Cleaned: []string{}}
	if res != nil {
		for _, ch := range res.Cleaned {
			out.Cleaned = append(out.Cleaned, fmt.Sprintf("%d/%d", ch.GuildID, ch.ChannelID))
		}
		out.Skipped = len(res.Skipped)
		out.Failed = len(res.Failed)
	}
	return c.JSON(http.StatusOK, out)
}

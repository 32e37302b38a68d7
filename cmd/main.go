package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"PeerMatch/config"
	"PeerMatch/internal/matchmaker"
	"PeerMatch/internal/metrics"
	"PeerMatch/internal/preference"
	"PeerMatch/internal/storage"
	"PeerMatch/internal/utils"
	"PeerMatch/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfgPath := "config/config.yaml"
	if p := os.Getenv("PEERMATCH_CONFIG"); p != "" {
		cfgPath = p
	}
	if err := config.Load(cfgPath); err != nil {
		utils.Log.Fatal("config load failed", "path", cfgPath, "err", err)
	}
	utils.Init(config.C.Log.Level)

	//-------------------------------------------------------
	// 1. Redis (pool, bus, preference cache)
	//-------------------------------------------------------
	if err := storage.InitRedis(
		config.C.Redis.Addr,
		config.C.Redis.Password,
		config.C.Redis.DB,
	); err != nil {
		utils.Log.Fatal("redis init failed", "err", err)
	}

	//-------------------------------------------------------
	// 2. Preference store: Postgres when a DSN is set
	//-------------------------------------------------------
	var prefRepo preference.Repository
	if dsn := config.C.Database.DSN; dsn != "" {
		if err := storage.InitPostgres(dsn); err != nil {
			utils.Log.Fatal("postgres init failed", "err", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := preference.EnsureSchema(ctx, storage.DB)
		cancel()
		if err != nil {
			utils.Log.Fatal("schema setup failed", "err", err)
		}
		prefRepo = preference.NewPostgresRepository(storage.DB)
	} else {
		utils.Log.Warn("no database dsn configured, preferences are kept in memory")
		prefRepo = preference.NewMemoryRepository()
	}

	m := metrics.NewMetrics(prometheus.DefaultRegisterer)
	cached := preference.NewCachedRepository(prefRepo, storage.Rdb, config.C.Cache.TTL)
	cached.Metrics = m

	//-------------------------------------------------------
	// 3. Hub
	//-------------------------------------------------------
	hub := websocket.NewHub(utils.Log)

	//-------------------------------------------------------
	// 4. Matchmaker
	//-------------------------------------------------------
	pool := matchmaker.NewRedisPool(storage.Rdb, config.C.Match.EntryTTL)
	bus := matchmaker.NewRedisBus(storage.Rdb)
	svc := matchmaker.NewService(pool, bus, utils.Log)
	svc.Hub = hub
	svc.Metrics = m
	svc.EventGrace = config.C.Match.EventGrace
	// off the hub loop: Cancel pushes the outcome back through the hub
	hub.OnIncoming = func(msg websocket.IncomingMessage) { go svc.HandleClientFrame(msg) }
	go hub.Run()

	runCtx, stop := context.WithCancel(context.Background())
	defer stop()
	if err := svc.Start(runCtx); err != nil {
		utils.Log.Fatal("bus subscribe failed", "err", err)
	}

	//-------------------------------------------------------
	// 5. Gin + routes
	//-------------------------------------------------------
	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type"},
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "pending": svc.Pending()})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/ws", websocket.ServeWS(hub))

	api := r.Group("/api/matching-service")
	matchmaker.NewHandler(svc, config.C.Match.DefaultTimeout, config.C.Match.MaxTimeout).Register(api)
	preference.NewHandler(preference.NewService(cached, svc)).Register(api)

	//-------------------------------------------------------
	// 6. Serve until SIGINT/SIGTERM, then drain
	//-------------------------------------------------------
	srv := &http.Server{
		Addr:              config.C.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		utils.Log.Info("server running", "addr", config.C.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.Log.Fatal("server stopped", "err", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	utils.Log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	// Drain first: held requests resolve as cancelled and their HTTP
	// responses go out before the server stops accepting.
	if err := svc.Shutdown(ctx); err != nil {
		utils.Log.Warn("drain incomplete", "err", err)
	}
	if err := srv.Shutdown(ctx); err != nil {
		utils.Log.Error("http shutdown", "err", err)
	}
	stop()
	hub.Close()
	if err := storage.Rdb.Close(); err != nil {
		utils.Log.Error("redis close", "err", err)
	}
	if storage.DB != nil {
		_ = storage.DB.Close()
	}
}

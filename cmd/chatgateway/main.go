package main

import (
	"context"
	"errors"
	"hash/crc32"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"socialchat/data/database/mgo/mongoutil"
	"socialchat/global/config"
	"socialchat/logger"
	mid "socialchat/middleware"
	chatsvc "socialchat/module/chat/service"
	"socialchat/module/chat/store"
	"socialchat/service/chat"
	"socialchat/service/chat/handlers"
	"socialchat/service/kafka"
	"socialchat/service/metrics"
	"socialchat/service/mgo"
	"socialchat/service/natsx"
	"socialchat/service/storage"
	redisx "socialchat/service/storage/redis"
	"socialchat/tools/ids"
	"socialchat/tools/security"
)

const healthService = "socialchat.ChatGateway"

type closer func(ctx context.Context) error

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatal("load config", zap.Error(err))
	}
	logger.Init(cfg.Env, cfg.LogLevel)
	defer logger.Sync()
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	host, _ := os.Hostname()
	ids.SetNodeID(int64(crc32.ChecksumIEEE([]byte(host)) % 1024))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var closers []closer
	defer func() {
		cctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](cctx); err != nil {
				logger.Warn("[main] close", zap.Error(err))
			}
		}
	}()

	st, err := openStore(ctx, cfg, &closers)
	if err != nil {
		logger.Error("[main] open store", zap.String("driver", cfg.StoreDriver), zap.Error(err))
		return
	}

	var opts []chat.Option
	pub, err := openPublisher(cfg, &closers)
	if err != nil {
		logger.Error("[main] open event bus", zap.String("driver", cfg.EventsDriver), zap.Error(err))
		return
	}
	if pub != nil {
		opts = append(opts, chat.WithPublisher(pub))
	}
	if cfg.RedisURL != "" {
		presence, err := openPresence(ctx, cfg, host, &closers)
		if err != nil {
			logger.Error("[main] open redis", zap.Error(err))
			return
		}
		go presence.Run(ctx)
		opts = append(opts, chat.WithPresenceMirror(presence))
	}

	verifier := security.NewVerifier(security.Options{Secret: cfg.JWTSecret, Alg: cfg.JWTAlg, TTL: cfg.JWTTTL})
	srv := chat.NewServer(chat.Options{
		Path:            cfg.WSPath,
		SendQueue:       cfg.WSSendQueue,
		PingInterval:    cfg.WSPingInterval,
		WriteWait:       cfg.WSWriteWait,
		MaxMessageBytes: cfg.WSMaxMessageBytes,
		AllowedOrigins:  cfg.CORSOrigins,
		EventRate:       float64(cfg.WSEventRate),
		EventBurst:      cfg.WSEventBurst,
	}, verifier, chatsvc.New(st), opts...)
	handlers.RegisterAll(srv)

	mids := mid.NewManager()
	mids.Add(mid.Recovery(), mid.RequestLogger(), mid.CORS(cfg.CORSOrigins))

	r := gin.New()
	mids.Mount(r)
	srv.Mount(r)
	r.GET("/metrics", metrics.Handler())
	r.GET("/healthz", func(c *gin.Context) {
		pctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := st.Ping(pctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "store": cfg.StoreDriver})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "store": cfg.StoreDriver, "connections": srv.ActiveConnections()})
	})

	gs, hs, err := serveGRPC(cfg.GRPCAddr)
	if err != nil {
		logger.Error("[gRPC] listen", zap.String("addr", cfg.GRPCAddr), zap.Error(err))
		return
	}

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		logger.Info("[HTTP] listening", zap.String("addr", cfg.HTTPAddr), zap.String("ws", cfg.WSPath))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("[HTTP] serve", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("[main] shutting down")
	hs.Shutdown()

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(sctx); err != nil {
		logger.Warn("[HTTP] shutdown", zap.Error(err))
	}
	if err := srv.Shutdown(sctx); err != nil {
		logger.Warn("[WS] shutdown", zap.Error(err))
	}
	gs.GracefulStop()
}

func openStore(ctx context.Context, cfg *config.Config, closers *[]closer) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		pg, err := store.NewPostgres(ctx, cfg.DatabaseURL, cfg.DBMigrate)
		if err != nil {
			return nil, err
		}
		*closers = append(*closers, pg.Close)
		return pg, nil

	case config.StoreMongo:
		mgr := mgo.NewManager(&mongoutil.Config{Uri: cfg.MongoURI, Database: cfg.MongoDB})
		mgr.StartAsync(ctx)
		*closers = append(*closers, mgr.Close)

		wctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if _, err := mgr.WaitReady(wctx); err != nil {
			return nil, err
		}
		m := store.NewMongoFrom(mgr)
		if err := m.EnsureIndexes(wctx); err != nil {
			return nil, err
		}
		return m, nil

	default:
		logger.Warn("[main] using in-memory store; data is lost on restart")
		return store.NewMemory(), nil
	}
}

func openPublisher(cfg *config.Config, closers *[]closer) (chat.Publisher, error) {
	switch cfg.EventsDriver {
	case config.EventsNats:
		nc, err := natsx.NewNatsxClient(natsx.NatsxConfig{Servers: []string{cfg.NatsURL}, Name: "socialchat-gateway"})
		if err != nil {
			return nil, err
		}
		*closers = append(*closers, func(context.Context) error { return nc.Close() })
		return natsx.NewNatsxProducer(nc, cfg.NatsSubjectPrefix), nil

	case config.EventsKafka:
		kc := kafka.DefaultConfig()
		kc.Brokers = cfg.KafkaBrokers
		kc.Topic = cfg.KafkaTopic
		p, err := kafka.Dial(kc)
		if err != nil {
			return nil, err
		}
		*closers = append(*closers, func(context.Context) error { return p.Close() })
		return p, nil

	default:
		return nil, nil
	}
}

func openPresence(ctx context.Context, cfg *config.Config, node string, closers *[]closer) (*storage.Presence, error) {
	rdb, err := redisx.NewClient(ctx, redisx.Config{URL: cfg.RedisURL})
	if err != nil {
		return nil, err
	}
	*closers = append(*closers, func(context.Context) error { return rdb.Close() })

	return storage.NewPresence(rdb, storage.PresenceConfig{
		TTL:     cfg.PresenceTTL,
		NodeID:  node,
		Channel: "im:presence:events",
	}), nil
}

func serveGRPC(addr string) (*grpc.Server, *health.Server, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, err
	}
	gs := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(healthService, healthpb.HealthCheckResponse_SERVING)

	go func() {
		logger.Info("[gRPC] listening", zap.String("addr", addr))
		if err := gs.Serve(lis); err != nil {
			logger.Error("[gRPC] serve", zap.Error(err))
		}
	}()
	return gs, hs, nil
}

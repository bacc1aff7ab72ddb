package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/thereayou/roomgate/internal/admission"
	"github.com/thereayou/roomgate/internal/config"
	"github.com/thereayou/roomgate/internal/database"
	"github.com/thereayou/roomgate/internal/events"
	"github.com/thereayou/roomgate/internal/handlers"
	"github.com/thereayou/roomgate/internal/memstore"
	"github.com/thereayou/roomgate/internal/middleware"
	"github.com/thereayou/roomgate/internal/redisstore"
	"github.com/thereayou/roomgate/internal/services"
	ws "github.com/thereayou/roomgate/internal/websocket"
	"github.com/thereayou/roomgate/pkg/auth"
	"github.com/thereayou/roomgate/pkg/ratelimit"
)

const shutdownTimeout = 5 * time.Second

// stores набор хранилищ, выбранный конфигурацией.
type stores struct {
	users    services.UserStore
	rooms    admission.RoomStore
	requests admission.RequestStore
}

type Server struct {
	cfg *config.Config

	Router *gin.Engine
	DB     *database.Database
	Redis  *redis.Client

	Bus        events.Bus
	Hub        *ws.Hub
	Registry   *admission.Registry
	Queue      *admission.Queue
	Controller *admission.Controller
	Handoff    *admission.Handoff
	Auth       *services.AuthService

	limiter *ratelimit.Limiter
}

func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	s := &Server{cfg: cfg}

	st, err := s.openStorage(ctx)
	if err != nil {
		return nil, err
	}

	var (
		presence  admission.Presence
		blacklist auth.Blacklist
	)
	switch cfg.Broker {
	case config.BrokerRedis:
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(redisOpts)
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis connect failed: %w", err)
		}
		s.Redis = rdb
		s.Bus = events.NewRedis(rdb, "")
		presence = redisstore.NewPresence(rdb, 0)
		blacklist = auth.NewRedisBlacklist(rdb)
		log.Info().Str("module", "server").Msg("using redis broker")
	default:
		s.Bus = events.NewLocal()
		presence = memstore.NewPresence()
		blacklist = auth.NewMemoryBlacklist()
		log.Info().Str("module", "server").Msg("using in-process broker")
	}

	adm := cfg.Admission
	s.Registry = admission.NewRegistry(st.rooms, admission.RegistryOptions{
		Generate:    admission.RandomCode(adm.CodeLength),
		MaxAttempts: adm.MaxCodeAttempts,
		Publisher:   s.Bus,
	})
	s.Queue = admission.NewQueue(st.requests, s.Registry, s.Bus)

	issuer := admission.NewLiveKitIssuer(admission.LiveKitOptions{
		AppID:     cfg.LiveKit.AppID,
		URL:       cfg.LiveKit.URL,
		APIKey:    cfg.LiveKit.APIKey,
		APISecret: cfg.LiveKit.APISecret,
		TTL:       cfg.LiveKit.TokenTTL,
	})
	if issuer.OpenMode() {
		log.Warn().Str("module", "server").Msg("livekit api key is not set, credentials are issued without tokens")
	}

	s.Controller = admission.NewController(s.Registry, s.Queue, issuer, admission.ControllerOptions{
		WaitTimeout:  adm.WaitTimeout,
		PollInterval: adm.PollInterval,
		GracePeriod:  adm.GracePeriod,
		Subscriber:   s.Bus,
	})
	s.Handoff = admission.NewHandoff(s.Registry, presence)

	jwtMgr := auth.NewJWTManager(cfg.JWT.Secret, cfg.JWT.TTL)
	s.Auth = services.NewAuthService(st.users, jwtMgr, blacklist, cfg.JWT.GuestTTL)

	s.Hub = ws.NewHub(handlers.NewRoomAccess(s.Controller, s.Handoff))
	s.limiter = ratelimit.New(adm.JoinRateLimit, adm.JoinRateWindow)

	s.Router = s.newRouter(st.users)
	return s, nil
}

func (s *Server) openStorage(ctx context.Context) (stores, error) {
	if s.cfg.Storage == config.StoragePostgres {
		db := &database.Database{}
		if err := db.Connect(ctx, s.cfg.DatabaseURL); err != nil {
			return stores{}, fmt.Errorf("postgres connect failed: %w", err)
		}
		s.DB = db
		return stores{users: db, rooms: db, requests: db}, nil
	}

	log.Warn().Str("module", "server").Msg("using in-memory storage, data is lost on restart")
	mem := memstore.New()
	return stores{users: mem, rooms: mem, requests: mem}, nil
}

func (s *Server) newRouter(users services.UserStore) *gin.Engine {
	if s.cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if s.cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	APIEndpoints(r, Endpoints{
		Auth: handlers.NewAuthHandler(s.Auth),
		User: handlers.NewUserHandler(users),
		Room: handlers.NewRoomHandler(s.Registry, s.Controller, s.Handoff),
		JoinRequest: handlers.NewJoinRequestHandler(s.Registry, s.Queue, s.Controller, handlers.JoinRequestOptions{
			LongPollMax: s.cfg.Admission.LongPollMax,
		}),
		WS:        handlers.NewWebSocketHandler(s.Hub, handlers.NewCommandHandler(s.Controller, s.Queue), s.cfg.CORS.AllowedOrigins),
		AuthMW:    middleware.AuthMiddleware(s.Auth),
		WSAuthMW:  middleware.WSAuthMiddleware(s.Auth),
		JoinLimit: middleware.JoinRateLimit(s.limiter),
	})
	return r
}

// Handler роутер, обёрнутый в CORS.
func (s *Server) Handler() http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   s.cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(s.Router)
}

// Run запускает HTTP-сервер и фоновые задачи до отмены ctx.
func (s *Server) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	sub, err := s.Bus.Subscribe(gctx, events.AllTopics)
	if err != nil {
		return fmt.Errorf("subscribe to events: %w", err)
	}

	g.Go(func() error { return s.Hub.Run(gctx) })
	g.Go(func() error { return s.Hub.Forward(gctx, sub) })
	g.Go(func() error {
		return s.Queue.RunExpiry(gctx, s.cfg.Admission.SweepInterval, s.cfg.Admission.WaitTimeout)
	})
	g.Go(func() error {
		s.limiter.Run(gctx.Done())
		return nil
	})

	srv := &http.Server{
		Addr:        s.cfg.Addr(),
		Handler:     s.Handler(),
		ReadTimeout: 15 * time.Second,
		// long-poll держит ответ до LongPollMax
		WriteTimeout: s.cfg.Admission.LongPollMax + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g.Go(func() error {
		log.Info().Str("module", "server").Str("addr", srv.Addr).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server run error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Str("module", "server").Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	s.Close()
	return err
}

// Close освобождает соединения с хранилищами.
func (s *Server) Close() {
	if s.DB != nil {
		if err := s.DB.Close(); err != nil {
			log.Error().Str("module", "server").Err(err).Msg("close postgres")
		}
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			log.Error().Str("module", "server").Err(err).Msg("close redis")
		}
	}
}

package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"trivia-race-service/internal/app"
	"trivia-race-service/internal/config"
	"trivia-race-service/internal/infra/memory"
	pgloader "trivia-race-service/internal/infra/postgres"
	redisstore "trivia-race-service/internal/infra/redis"
	"trivia-race-service/internal/logger"
	transport "trivia-race-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the trivia server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "3000"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var loader memory.QuestionLoader = memory.NewStaticQuestionLoader(memory.DefaultQuestions())
	switch {
	case pool != nil:
		loader = pgloader.NewQuestionLoader(pool)
	case cfg.Questions.File != "":
		loader = memory.NewFileQuestionLoader(cfg.Questions.File)
	}

	questionTTL := config.TTLDuration(cfg.Questions.TTL, 10*time.Minute)
	var bank app.QuestionBank
	var rooms app.RoomRegistry
	var claims *redisstore.RoomStore
	claimTTL := config.TTLDuration(cfg.Redis.TTL, 2*time.Hour)
	if redisClient != nil {
		bank = redisstore.NewQuestionCache(redisClient, loader, questionTTL)
		claims = redisstore.NewRoomStore(redisClient, claimTTL)
		rooms = claims
	} else {
		bank = memory.NewQuestionBank(loader, questionTTL)
		rooms = memory.NewRoomStore()
	}

	hub := transport.NewHub(log)
	service := app.NewGameService(rooms, bank, hub,
		app.WithSettings(cfg.GameSettings()),
		app.WithLogger(log),
	)
	wsHandler := transport.NewWSHandler(service, hub, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	mux.HandleFunc("GET /rooms/{token}", wsHandler.ServeRoomState)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", server.Addr).Msg("starting trivia service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if claims != nil {
		g.Go(func() error {
			return claims.KeepAlive(gctx, claimTTL/3, log)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Int("rooms", rooms.Len()).Int("connections", hub.Connected()).Msg("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Server runs the phone OTP auth HTTP API and, when GRPC_HEALTH_ADDR is set, the gRPC health service.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	authhandler "otp-auth-service/internal/auth/handler"
	"otp-auth-service/internal/auth/service"
	"otp-auth-service/internal/config"
	"otp-auth-service/internal/db"
	"otp-auth-service/internal/db/migrate"
	"otp-auth-service/internal/devotp"
	devotphandler "otp-auth-service/internal/devotp/handler"
	"otp-auth-service/internal/health"
	healthhandler "otp-auth-service/internal/health/handler"
	"otp-auth-service/internal/kvstore"
	"otp-auth-service/internal/logger"
	"otp-auth-service/internal/otp"
	otpdomain "otp-auth-service/internal/otp/domain"
	"otp-auth-service/internal/otp/sms"
	"otp-auth-service/internal/security"
	"otp-auth-service/internal/server"
	"otp-auth-service/internal/session"
	sessiondomain "otp-auth-service/internal/session/domain"
	"otp-auth-service/internal/sweeper"
	"otp-auth-service/internal/telemetry"
	otelsetup "otp-auth-service/internal/telemetry/otel"
	"otp-auth-service/internal/telemetry/producer"
	"otp-auth-service/internal/user"
	userdomain "otp-auth-service/internal/user/domain"
	"otp-auth-service/internal/user/repository"
)

const (
	shutdownTimeout       = 10 * time.Second
	healthRefreshInterval = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)
	if err := run(cfg, log); err != nil {
		log.Error("server: exiting", "error", err)
		os.Exit(1)
	}
}

// stores groups the keyed tables behind the OTP manager, session store and (without Postgres) users.
type stores struct {
	challenges kvstore.Store[otpdomain.Challenge]
	sessions   kvstore.Store[sessiondomain.Session]
	users      kvstore.Store[userdomain.User]
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := otelsetup.NewProviders(ctx, cfg.OTLPEndpoint, cfg.ServiceName, cfg.OTLPInsecure)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			log.Warn("otel: shutdown failed", "error", err)
		}
	}()

	checker := health.NewChecker()

	st, closeStores, err := openStores(cfg, checker)
	if err != nil {
		return err
	}
	defer closeStores()

	userRepo, closeUsers, err := openUserRepository(cfg, st.users, checker, log)
	if err != nil {
		return err
	}
	defer closeUsers()

	sender, closeSender, err := newSender(cfg, log)
	if err != nil {
		return err
	}
	defer closeSender()

	var devStore *devotp.MemoryStore
	if cfg.OTPReturnToClient {
		devStore = devotp.NewMemoryStore(cfg.OTPTTL())
		sender = sms.Multi{sender, devStore}
		log.Warn("dev OTP mode enabled: codes are readable at GET /dev/otp")
	}

	emitters := telemetry.Fanout{otelsetup.NewEventEmitter(providers.LoggerProvider)}
	kafkaProducer, err := producer.NewKafkaProducer(cfg.KafkaBrokersList(), cfg.AuthEventsTopic)
	if err != nil {
		return fmt.Errorf("kafka: %w", err)
	}
	if kafkaProducer != nil {
		emitters = append(emitters, kafkaProducer)
		defer kafkaProducer.Close()
		log.Info("auth events: kafka producer enabled", "topic", kafkaProducer.Topic())
	}

	tokens, err := security.NewTokenProvider(
		[]byte(cfg.JWTAccessSecret),
		[]byte(cfg.JWTRefreshSecret),
		cfg.JWTIssuer,
		cfg.AccessTTL(),
		cfg.RefreshTTL(),
	)
	if err != nil {
		return fmt.Errorf("tokens: %w", err)
	}

	manager := otp.NewManager(st.challenges, security.NewHasher(cfg.OTPHashCost), sender, cfg.OTPTTL(), otp.WithLogger(log))
	sessions := session.NewStore(st.sessions, nil)
	authSvc := service.NewAuthService(
		manager,
		user.NewDirectory(userRepo, nil),
		tokens,
		sessions,
		service.WithEventEmitter(emitters),
		service.WithLogger(log),
	)

	deps := server.Deps{
		Auth:   authhandler.NewHandler(authSvc, log),
		Tokens: tokens,
		Health: checker,
		Logger: log,
	}
	if devStore != nil {
		deps.DevOTP = devotphandler.NewHandler(devStore)
	}
	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           server.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go sweeper.Run(ctx, cfg.SweepInterval(), log,
		sweeper.Named{Name: "otp_challenges", Target: manager},
		sweeper.Named{Name: "sessions", Target: sessions},
	)

	errCh := make(chan error, 2)

	var grpcSrv interface{ GracefulStop() }
	if cfg.GRPCHealthAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCHealthAddr)
		if err != nil {
			return fmt.Errorf("grpc health listen: %w", err)
		}
		healthSrv := healthhandler.NewServer(checker, log)
		s := server.NewGRPCServer(healthSrv)
		grpcSrv = s
		go healthSrv.Watch(ctx, healthRefreshInterval)
		go func() {
			log.Info("gRPC health server listening", "addr", cfg.GRPCHealthAddr)
			if err := s.Serve(lis); err != nil {
				errCh <- fmt.Errorf("grpc health serve: %w", err)
			}
		}()
	}

	go func() {
		log.Info("HTTP server listening", "addr", httpSrv.Addr, "store", cfg.StoreBackend, "sms", cfg.SMSProvider)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http serve: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutting down...")
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown failed", "error", err)
	}
	if grpcSrv != nil {
		grpcSrv.GracefulStop()
	}
	// Let in-flight async event emits finish before the providers and Kafka writer close.
	time.Sleep(telemetry.ShutdownDrainDuration)
	log.Info("server stopped")
	return runErr
}

// openStores builds the keyed tables for STORE_BACKEND and registers their readiness check.
func openStores(cfg *config.Config, checker *health.Checker) (*stores, func(), error) {
	grace := cfg.ExpiryGrace()
	if cfg.StoreBackend != "redis" {
		return &stores{
			challenges: kvstore.NewMemoryStore[otpdomain.Challenge](grace),
			sessions:   kvstore.NewMemoryStore[sessiondomain.Session](grace),
			users:      kvstore.NewMemoryStore[userdomain.User](grace),
		}, func() {}, nil
	}
	client, err := db.OpenRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, nil, fmt.Errorf("redis: %w", err)
	}
	checker.Add("redis", health.PingFunc(func(ctx context.Context) error { return client.Ping(ctx).Err() }))
	return &stores{
		challenges: kvstore.NewRedisStore[otpdomain.Challenge](client, cfg.RedisKeyPrefix+"otp:", grace),
		sessions:   kvstore.NewRedisStore[sessiondomain.Session](client, cfg.RedisKeyPrefix+"session:", grace),
		users:      kvstore.NewRedisStore[userdomain.User](client, cfg.RedisKeyPrefix+"user:", grace),
	}, closer(client), nil
}

func closer(client *redis.Client) func() {
	return func() { _ = client.Close() }
}

// openUserRepository returns the Postgres repository (migrating first) when DATABASE_URL is set,
// otherwise a repository over the keyed store.
func openUserRepository(cfg *config.Config, kv kvstore.Store[userdomain.User], checker *health.Checker, log *slog.Logger) (repository.Repository, func(), error) {
	if cfg.DatabaseURL == "" {
		return repository.NewKVRepository(kv), func() {}, nil
	}
	if err := migrate.Up(cfg.DatabaseURL); err != nil {
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	sqlDB, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: %w", err)
	}
	checker.Add("postgres", sqlDB)
	log.Info("users: postgres repository enabled")
	return repository.NewPostgresRepository(sqlDB), func() { _ = sqlDB.Close() }, nil
}

// newSender returns the OTP delivery channel for SMS_PROVIDER and a close function.
func newSender(cfg *config.Config, log *slog.Logger) (sms.Sender, func(), error) {
	switch cfg.SMSProvider {
	case "smslocal":
		return sms.NewSMSLocalClient(cfg.SMSLocalAPIKey, cfg.SMSLocalBaseURL, cfg.SMSLocalSender), func() {}, nil
	case "rabbitmq":
		conn, err := sms.DialQueue(cfg.RabbitMQURL, cfg.SMSQueue)
		if err != nil {
			return nil, nil, fmt.Errorf("rabbitmq: %w", err)
		}
		return sms.NewQueueSender(conn.Channel(), cfg.SMSQueue), func() { _ = conn.Close() }, nil
	default:
		return sms.NewLogSender(log), func() {}, nil
	}
}

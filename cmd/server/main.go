package main

import (
	"context"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	healthv1 "google.golang.org/grpc/health/grpc_health_v1"

	auditpkg "concord-access-core/backend/internal/audit"
	auditrepo "concord-access-core/backend/internal/audit/repository"
	"concord-access-core/backend/internal/config"
	"concord-access-core/backend/internal/db"
	"concord-access-core/backend/internal/security"
	"concord-access-core/backend/internal/server"
	"concord-access-core/backend/internal/server/interceptors"
	sessionrepo "concord-access-core/backend/internal/session/repository"
	sessionservice "concord-access-core/backend/internal/session/service"
	"concord-access-core/backend/internal/telemetry"
	telemetryotel "concord-access-core/backend/internal/telemetry/otel"
	"concord-access-core/backend/internal/telemetry/producer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	ctx := context.Background()
	providers, err := telemetryotel.NewProviders(ctx, cfg.OTLPEndpoint, "concord-access-core", cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("otel: %v", err)
	}
	providers.SetGlobal()

	var emitter telemetry.EventEmitter = telemetryotel.NewEventEmitter(providers.LoggerProvider)
	kafkaProducer, err := producer.NewKafkaProducer(cfg.TelemetryKafkaBrokersList(), cfg.TelemetryKafkaTopic)
	if err != nil {
		log.Fatalf("kafka: %v", err)
	}
	if kafkaProducer != nil {
		emitter = kafkaProducer
		defer kafkaProducer.Close()
	}

	var tokens *security.TokenProvider
	if cfg.JWTPrivateKey != "" && cfg.JWTPublicKey != "" {
		priv, err := security.ParsePrivateKey(cfg.JWTPrivateKey)
		if err != nil {
			log.Fatalf("jwt private key: %v", err)
		}
		pub, err := security.ParsePublicKey(cfg.JWTPublicKey)
		if err != nil {
			log.Fatalf("jwt public key: %v", err)
		}
		tokens = security.NewTokenProvider(priv, pub, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL())
	} else {
		log.Println("JWT keys not configured; access token issuance disabled")
	}

	auditLog := auditpkg.NewLogger(auditrepo.NewPostgresRepository(conn), interceptors.ClientIP)
	sessions := sessionservice.NewService(
		sessionrepo.NewPostgresRepository(conn),
		tokens, auditLog, emitter,
		cfg.SessionDuration(), cfg.RetentionDuration())

	// Periodic cleanup of expired and long-revoked sessions.
	cleanupCtx, cleanupCancel := context.WithCancel(ctx)
	defer cleanupCancel()
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-cleanupCtx.Done():
				return
			case <-ticker.C:
				if n, err := sessions.Cleanup(cleanupCtx); err != nil {
					log.Printf("session cleanup: %v", err)
				} else if n > 0 {
					log.Printf("session cleanup: removed %d", n)
				}
			}
		}
	}()

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	defer lis.Close()

	s, healthServer := server.New(server.Deps{Tokens: tokens, Emitter: emitter})

	go func() {
		log.Printf("gRPC server listening on %s", cfg.GRPCAddr)
		if err := s.Serve(lis); err != nil {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down gRPC server...")
	healthServer.SetServingStatus("", healthv1.HealthCheckResponse_NOT_SERVING)
	s.GracefulStop()

	// Let in-flight async telemetry emits finish before tearing providers down.
	time.Sleep(telemetry.ShutdownDrainDuration)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Printf("otel shutdown: %v", err)
	}
	log.Println("gRPC server stopped")
}

package factory

import (
	"context"
	"fmt"
	"sync"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/go-chi/chi/v5"

	"admin-auth-service/internal/audit"
	"admin-auth-service/internal/client"
	"admin-auth-service/internal/config"
	"admin-auth-service/internal/encryption"
	"admin-auth-service/internal/handler"
	"admin-auth-service/internal/ratelimit"
	"admin-auth-service/internal/repository"
	"admin-auth-service/internal/repository/memory"
	redisrepo "admin-auth-service/internal/repository/redis"
	"admin-auth-service/internal/repository/scylla"
	"admin-auth-service/internal/service"
	"admin-auth-service/internal/session"
	"admin-auth-service/internal/tls"
	"admin-auth-service/internal/util"
)

// Factory wires and owns the lifecycle of every application dependency. In
// development any unavailable backend degrades to its in-memory equivalent;
// in production a missing backend is fatal.
type Factory struct {
	config     *config.Config
	tlsManager *tls.TLSManager

	// Clients
	redisClient      *client.RedisClient
	scyllaClient     *scylla.ScyllaClient
	kafkaProducer    *client.KafkaProducer
	esClient         *client.ESClient
	clickhouseClient *client.ClickHouseClient

	// Wiring
	sessionManager *session.Manager
	sessionStore   session.Store
	userRepo       repository.UserRepository
	resetRepo      repository.ResetTokenRepository
	encryptionMgr  *encryption.Manager
	auditRecorder  *audit.Recorder
	clickhouseSink *audit.ClickHouseSink
	rateLimiter    *ratelimit.Limiter
	authService    *service.AuthService
	router         chi.Router

	closeOnce sync.Once
	closed    chan struct{}
}

// NewFactory creates and initializes all application dependencies
func NewFactory() (*Factory, error) {
	cfg := config.LoadConfig()

	util.Init(cfg.Environment, cfg.Logging.Level, cfg.Logging.Format)

	factory := &Factory{
		config: cfg,
		closed: make(chan struct{}),
	}

	if cfg.Server.EnableTLS {
		tlsConfig := &tls.TLSConfig{
			EnableTLS:   cfg.Server.EnableTLS,
			AutoCert:    cfg.Server.AutoCert,
			Domain:      cfg.Server.Domain,
			CertFile:    cfg.Server.CertFile,
			KeyFile:     cfg.Server.KeyFile,
			AutoCertDir: cfg.Server.AutoCertDir,
			Email:       cfg.Server.Email,
			Environment: cfg.Environment,
		}
		factory.tlsManager = tls.NewTLSManager(tlsConfig)
	}

	if err := factory.initializeClients(); err != nil {
		return nil, fmt.Errorf("failed to initialize clients: %w", err)
	}

	if err := factory.initializeWiring(); err != nil {
		return nil, fmt.Errorf("failed to wire application: %w", err)
	}

	util.Info("Factory initialized successfully",
		util.String("environment", cfg.Environment),
		util.Bool("tls_enabled", cfg.Server.EnableTLS),
		util.Bool("kms_enabled", cfg.KMS.Enabled),
	)

	return factory, nil
}

// initializeClients initializes all external service clients with health checks
func (f *Factory) initializeClients() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var initErrors []error

	// Redis
	if c, err := client.NewRedisClient(f.config, util.Get()); err != nil {
		initErrors = append(initErrors, fmt.Errorf("redis: %w", err))
	} else {
		f.redisClient = c
		if err := f.redisClient.HealthCheck(ctx); err != nil {
			initErrors = append(initErrors, fmt.Errorf("redis health check: %w", err))
		} else {
			util.Info("Redis client initialized and healthy")
		}
	}

	// ScyllaDB
	if c, err := scylla.NewScyllaClient(f.config, util.Get()); err != nil {
		initErrors = append(initErrors, fmt.Errorf("scylla: %w", err))
	} else {
		f.scyllaClient = c
		if err := f.scyllaClient.HealthCheck(); err != nil {
			initErrors = append(initErrors, fmt.Errorf("scylla health check: %w", err))
		} else {
			util.Info("ScyllaDB client initialized and healthy")
		}
	}

	// Kafka is an optional audit fan-out target everywhere
	if f.config.Kafka.Enabled {
		if producer, err := client.NewKafkaProducer(f.config, util.Get()); err != nil {
			util.Warn("Kafka producer initialization failed - proceeding without Kafka", util.ErrorField(err))
		} else {
			f.kafkaProducer = producer
			util.Info("Kafka producer initialized")
		}
	}

	// Elasticsearch
	if f.config.Elasticsearch.Enabled {
		if c, err := client.NewElasticsearchClient(f.config, util.Get()); err != nil {
			initErrors = append(initErrors, fmt.Errorf("elasticsearch: %w", err))
		} else {
			f.esClient = c
			util.Info("Elasticsearch client initialized and healthy")
		}
	}

	// ClickHouse
	if f.config.Clickhouse.Enabled {
		if c, err := client.NewClickHouseClient(f.config, util.Get()); err != nil {
			initErrors = append(initErrors, fmt.Errorf("clickhouse: %w", err))
		} else {
			f.clickhouseClient = c
			util.Info("ClickHouse client initialized and healthy")
		}
	}

	if len(initErrors) > 0 {
		if f.config.IsProduction() {
			return fmt.Errorf("critical service initialization failed: %v", initErrors)
		}
		for _, err := range initErrors {
			util.Warn("Service initialization warning - using in-memory fallback", util.ErrorField(err))
		}
	}

	return nil
}

// initializeWiring builds the domain stack on whatever clients came up.
func (f *Factory) initializeWiring() error {
	cfg := f.config

	f.sessionManager = session.NewManager(
		cfg.Security.SessionCookieName,
		cfg.Security.SessionDuration,
		cfg.Security.SessionCookieSameSite,
	)

	// stores: real backends when available, memory otherwise (dev only;
	// production aborts earlier)
	if f.redisClient != nil {
		f.sessionStore = redisrepo.NewSessionStore(f.redisClient)
		f.rateLimiter = ratelimit.NewLimiter(redisrepo.NewRateLimitStore(f.redisClient))
	} else {
		f.sessionStore = memory.NewSessionStore()
		f.rateLimiter = ratelimit.NewLimiter(ratelimit.NewMemoryStore())
	}

	if f.scyllaClient != nil {
		f.userRepo = scylla.NewAdminUserRepository(f.scyllaClient)
		f.resetRepo = scylla.NewResetTokenRepository(f.scyllaClient)
	} else {
		f.userRepo = memory.NewUserStore()
		f.resetRepo = memory.NewResetTokenStore()
	}

	kmsClient, err := f.buildKMSClient()
	if err != nil {
		return err
	}
	f.encryptionMgr = encryption.NewManager(cfg, kmsClient)

	f.auditRecorder = audit.NewRecorder(f.buildAuditSinks()...)

	f.authService = service.NewAuthService(
		cfg,
		f.userRepo,
		f.resetRepo,
		f.sessionStore,
		f.sessionManager,
		f.encryptionMgr,
		f.auditRecorder,
	)

	authHandler := handler.NewAuthHandler(f.authService, f.sessionManager, cfg, util.Get())
	f.router = handler.NewRouter(authHandler, f.rateLimiter, cfg, util.Get(), f.HealthCheck)

	return nil
}

func (f *Factory) buildKMSClient() (*kms.Client, error) {
	if !f.config.KMS.Enabled {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(f.config.KMS.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config for KMS: %w", err)
	}
	return kms.NewFromConfig(awsCfg), nil
}

// buildAuditSinks assembles the fan-out set. The memory sink is always
// present: it guarantees a queryable sink for the audit endpoint even when
// Elasticsearch is down, and it costs nothing.
func (f *Factory) buildAuditSinks() []audit.Sink {
	sinks := []audit.Sink{audit.NewMemorySink(0)}

	if f.esClient != nil {
		// queryable sinks are preferred for reads; register ES first
		sinks = append([]audit.Sink{audit.NewElasticSink(f.esClient, f.config.Elasticsearch.AuditIndex)}, sinks...)
	}
	if f.clickhouseClient != nil {
		f.clickhouseSink = audit.NewClickHouseSink(f.clickhouseClient, 2*time.Second)
		sinks = append(sinks, f.clickhouseSink)
	}
	if f.kafkaProducer != nil {
		sinks = append(sinks, audit.NewKafkaSink(f.kafkaProducer, f.config.Kafka.AuditTopic))
	}

	return sinks
}

// HealthCheck reports per-dependency status. Absent optional clients are
// simply not reported.
func (f *Factory) HealthCheck(ctx context.Context) map[string]error {
	healthErrors := make(map[string]error)

	if f.redisClient != nil {
		if err := f.redisClient.HealthCheck(ctx); err != nil {
			healthErrors["redis"] = err
		}
	}
	if f.scyllaClient != nil {
		if err := f.scyllaClient.HealthCheck(); err != nil {
			healthErrors["scylla"] = err
		}
	}
	if f.esClient != nil {
		if err := f.esClient.HealthCheck(); err != nil {
			healthErrors["elasticsearch"] = err
		}
	}
	if f.clickhouseClient != nil {
		if err := f.clickhouseClient.HealthCheck(ctx); err != nil {
			healthErrors["clickhouse"] = err
		}
	}
	if f.kafkaProducer != nil {
		if err := f.kafkaProducer.HealthCheck(ctx); err != nil {
			healthErrors["kafka"] = err
		}
	}

	return healthErrors
}

func (f *Factory) IsHealthy(ctx context.Context) bool {
	healthErrors := f.HealthCheck(ctx)
	delete(healthErrors, "kafka")
	return len(healthErrors) == 0
}

func (f *Factory) Close() error {
	f.closeOnce.Do(func() {
		close(f.closed)
		util.Info("Shutting down factory...")

		// flush buffered audit rows before the connection goes away
		if f.clickhouseSink != nil {
			if err := f.clickhouseSink.Close(); err != nil {
				util.Error("Failed to flush ClickHouse audit sink", util.ErrorField(err))
			}
		}

		if f.clickhouseClient != nil {
			if err := f.clickhouseClient.Close(); err != nil {
				util.Error("Failed to close ClickHouse client", util.ErrorField(err))
			}
		}

		if f.esClient != nil {
			f.esClient.Close()
		}

		if f.kafkaProducer != nil {
			if err := f.kafkaProducer.Close(); err != nil {
				util.Error("Failed to close Kafka producer", util.ErrorField(err))
			}
		}

		if f.scyllaClient != nil {
			f.scyllaClient.Close()
		}

		if f.redisClient != nil {
			if err := f.redisClient.Close(); err != nil {
				util.Error("Failed to close Redis client", util.ErrorField(err))
			}
		}

		if f.encryptionMgr != nil {
			f.encryptionMgr.ClearCache()
		}

		util.Sync()
		util.Info("Factory shutdown completed")
	})

	return nil
}

func (f *Factory) WaitForClose() {
	<-f.closed
}

func (f *Factory) Config() *config.Config {
	return f.config
}

func (f *Factory) TLSManager() *tls.TLSManager {
	return f.tlsManager
}

func (f *Factory) Router() chi.Router {
	return f.router
}

func (f *Factory) AuthService() *service.AuthService {
	return f.authService
}

package factory

import (
	"context"
	"fmt"
	"sync"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"

	"radio-api/internal/audit"
	"radio-api/internal/client"
	"radio-api/internal/config"
	"radio-api/internal/encryption"
	"radio-api/internal/fingerprint"
	"radio-api/internal/hashing"
	"radio-api/internal/limiter"
	mysqlrepo "radio-api/internal/repository/mysql"
	redisrepo "radio-api/internal/repository/redis"
	"radio-api/internal/service"
	"radio-api/internal/spam"
	"radio-api/internal/tls"
	"radio-api/internal/util"
)

// Factory manages the lifecycle of all application dependencies
type Factory struct {
	config     *config.Config
	tlsManager *tls.TLSManager

	// Clients
	mysqlClient      *client.MySQLClient
	redisClient      *client.RedisClient
	kafkaProducer    *client.KafkaProducer
	kafkaConsumer    *client.KafkaConsumer
	esClient         *client.ESClient
	clickhouseClient *client.ClickHouseClient

	// Managers
	hasher             *hashing.Hasher
	encryptionManager  *encryption.Manager
	fingerprintManager *fingerprint.Manager
	spamDetector       *spam.Detector
	auditPublisher     *audit.Publisher
	auditArchiver      *audit.Archiver

	// Repositories
	tokenRepository     mysqlrepo.TokenRepository
	rateLimitRepository mysqlrepo.RateLimitRepository
	commentRepository   mysqlrepo.CommentRepository
	streamRepository    mysqlrepo.StreamRepository
	sessionCache        *redisrepo.SessionCache

	// Limiter strategies
	sessionWindow *limiter.SessionWindow
	eventLog      *limiter.EventLog

	serviceFactory *service.ServiceFactory

	closeOnce sync.Once
}

// NewFactory creates and initializes all application dependencies
func NewFactory() (*Factory, error) {
	cfg := config.LoadConfig()

	util.Init(cfg.Environment, cfg.Logging.Level, cfg.Logging.Format)

	factory := &Factory{config: cfg}

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

	if err := factory.initializeManagers(); err != nil {
		return nil, fmt.Errorf("failed to initialize managers: %w", err)
	}

	factory.initializeRepositories()
	factory.initializeLimiters()

	util.Info("Factory initialized successfully",
		util.String("environment", cfg.Environment),
		util.Bool("tls_enabled", cfg.Server.EnableTLS),
		util.Bool("kafka_enabled", cfg.Kafka.Enabled),
		util.Bool("kms_enabled", cfg.KMS.Enabled),
	)

	return factory, nil
}

// initializeClients initializes all external service clients with health checks
func (f *Factory) initializeClients() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var initErrors []error

	// MySQL is the system of record; failure is always fatal.
	mysqlClient, err := client.NewMySQLClient(f.config, util.Get())
	if err != nil {
		return fmt.Errorf("mysql: %w", err)
	}
	f.mysqlClient = mysqlClient

	// Redis
	if redisClient, err := client.NewRedisClient(f.config, util.Get()); err != nil {
		initErrors = append(initErrors, fmt.Errorf("redis: %w", err))
	} else {
		f.redisClient = redisClient
		if err := f.redisClient.HealthCheck(ctx); err != nil {
			initErrors = append(initErrors, fmt.Errorf("redis health check: %w", err))
		} else {
			util.Info("Redis client initialized and healthy")
		}
	}

	// Kafka audit pipeline is optional in every environment.
	if f.config.Kafka.Enabled {
		if producer, err := client.NewKafkaProducer(f.config, util.Get()); err != nil {
			util.Warn("Kafka producer initialization failed - proceeding without audit publishing", util.ErrorField(err))
		} else {
			f.kafkaProducer = producer
		}
		if consumer, err := client.NewKafkaConsumer(f.config, f.config.Kafka.AuditTopic, f.config.Kafka.AuditGroup, util.Get()); err != nil {
			util.Warn("Kafka consumer initialization failed - proceeding without audit archiving", util.ErrorField(err))
		} else {
			f.kafkaConsumer = consumer
		}
	}

	// Elasticsearch
	if f.config.Elasticsearch.Enabled {
		if esClient, err := client.NewElasticsearchClient(f.config, util.Get()); err != nil {
			initErrors = append(initErrors, fmt.Errorf("elasticsearch: %w", err))
		} else {
			f.esClient = esClient
		}
	}

	// ClickHouse
	if f.config.Clickhouse.Enabled {
		if chClient, err := client.NewClickHouseClient(f.config, util.Get()); err != nil {
			initErrors = append(initErrors, fmt.Errorf("clickhouse: %w", err))
		} else {
			f.clickhouseClient = chClient
		}
	}

	if len(initErrors) > 0 {
		if f.config.IsProduction() {
			return fmt.Errorf("critical service initialization failed: %v", initErrors)
		}
		for _, err := range initErrors {
			util.Warn("Service initialization warning", util.ErrorField(err))
		}
	}

	return nil
}

// initializeManagers initializes hashing, encryption, fingerprinting and the
// spam detector.
func (f *Factory) initializeManagers() error {
	f.hasher = hashing.NewHasher()

	var kmsClient *kms.Client
	if f.config.KMS.Enabled {
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(f.config.KMS.Region))
		if err != nil {
			return fmt.Errorf("failed to load AWS configuration: %w", err)
		}
		kmsClient = kms.NewFromConfig(awsCfg)
	}
	f.encryptionManager = encryption.NewManager(f.config, kmsClient)

	f.fingerprintManager = fingerprint.NewManager(64)

	detector, err := spam.NewDetector()
	if err != nil {
		return fmt.Errorf("failed to compile spam patterns: %w", err)
	}
	f.spamDetector = detector

	f.auditPublisher = audit.NewPublisher(f.config, f.kafkaProducer, f.fingerprintManager)
	if f.kafkaConsumer != nil && f.clickhouseClient != nil {
		f.auditArchiver = audit.NewArchiver(f.kafkaConsumer, f.clickhouseClient)
	}

	util.Info("Managers initialized successfully",
		util.Bool("encryption_initialized", f.encryptionManager != nil),
		util.Bool("audit_archiver_enabled", f.auditArchiver != nil),
	)
	return nil
}

func (f *Factory) initializeRepositories() {
	f.tokenRepository = mysqlrepo.NewTokenRepository(f.mysqlClient, util.Get())
	f.rateLimitRepository = mysqlrepo.NewRateLimitRepository(f.mysqlClient, util.Get())
	f.commentRepository = mysqlrepo.NewCommentRepository(f.mysqlClient, util.Get())
	f.streamRepository = mysqlrepo.NewStreamRepository(f.mysqlClient, util.Get())
	f.sessionCache = redisrepo.NewSessionCache(f.redisClient, util.Get())
}

func (f *Factory) initializeLimiters() {
	rl := f.config.RateLimit

	f.sessionWindow = limiter.NewSessionWindow(f.sessionCache, map[string]limiter.Limit{
		limiter.ActionTokenIssue:  {Max: rl.TokenIssueMax, Window: rl.TokenIssueWindow},
		limiter.ActionCommentGet:  {Max: rl.CommentGetMax, Window: rl.CommentGetWindow},
		limiter.ActionCommentPost: {Max: rl.CommentPostMax, Window: rl.CommentPostWindow},
	})

	f.eventLog = limiter.NewEventLog(f.rateLimitRepository, map[string]limiter.Limit{
		limiter.ActionAPICommentsGet:  {Max: rl.APIReadMax, Window: rl.APIReadWindow},
		limiter.ActionAPICommentsPost: {Max: rl.APIWriteMax, Window: rl.APIWriteWindow},
		limiter.ActionAPICommentsPut:  {Max: rl.APIUpdateMax, Window: rl.APIUpdateWindow},
		limiter.ActionAPIStreamGet:    {Max: rl.APIReadMax, Window: rl.APIReadWindow},
		limiter.ActionAPIStreamPost:   {Max: rl.APIWriteMax * 3, Window: rl.APIWriteWindow},
	})
}

// ==============================
// Service Factory
// ==============================
func (f *Factory) ServiceFactory() *service.ServiceFactory {
	if f.serviceFactory == nil {
		f.serviceFactory = service.NewServiceFactory(
			f.config,
			f.tokenRepository,
			f.commentRepository,
			f.streamRepository,
			f.sessionCache,
			f.spamDetector,
			f.encryptionManager,
			f.esClient,
			f.clickhouseClient,
			f.auditPublisher,
			util.Get(),
		)
	}
	return f.serviceFactory
}

// ==============================
// Health Checks
// ==============================

func (f *Factory) HealthCheck(ctx context.Context) map[string]error {
	healthErrors := make(map[string]error)

	if f.mysqlClient != nil {
		if err := f.mysqlClient.HealthCheck(ctx); err != nil {
			healthErrors["mysql"] = err
		}
	} else {
		healthErrors["mysql"] = fmt.Errorf("mysql client not initialized")
	}

	if f.redisClient != nil {
		if err := f.redisClient.HealthCheck(ctx); err != nil {
			healthErrors["redis"] = err
		}
	} else {
		healthErrors["redis"] = fmt.Errorf("redis client not initialized")
	}

	if f.config.Elasticsearch.Enabled {
		if f.esClient != nil {
			if err := f.esClient.HealthCheck(); err != nil {
				healthErrors["elasticsearch"] = err
			}
		} else {
			healthErrors["elasticsearch"] = fmt.Errorf("elasticsearch client not initialized")
		}
	}

	if f.config.Clickhouse.Enabled {
		if f.clickhouseClient != nil {
			if err := f.clickhouseClient.HealthCheck(ctx); err != nil {
				healthErrors["clickhouse"] = err
			}
		} else {
			healthErrors["clickhouse"] = fmt.Errorf("clickhouse client not initialized")
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
	// The audit pipeline degrades gracefully; it never fails readiness.
	delete(healthErrors, "kafka")
	return len(healthErrors) == 0
}

func (f *Factory) Close() error {
	f.closeOnce.Do(func() {
		util.Info("Shutting down factory...")

		if f.clickhouseClient != nil {
			if err := f.clickhouseClient.Close(); err != nil {
				util.Error("Failed to close ClickHouse client", util.ErrorField(err))
			}
		}

		if f.esClient != nil {
			f.esClient.Close()
		}

		if f.kafkaConsumer != nil {
			if err := f.kafkaConsumer.Close(); err != nil {
				util.Error("Failed to close Kafka consumer", util.ErrorField(err))
			}
		}

		if f.kafkaProducer != nil {
			if err := f.kafkaProducer.Close(); err != nil {
				util.Error("Failed to close Kafka producer", util.ErrorField(err))
			}
		}

		if f.serviceFactory != nil {
			f.serviceFactory.Cleanup()
		}

		if f.redisClient != nil {
			if err := f.redisClient.Close(); err != nil {
				util.Error("Failed to close Redis client", util.ErrorField(err))
			}
		}

		if f.mysqlClient != nil {
			if err := f.mysqlClient.Close(); err != nil {
				util.Error("Failed to close MySQL client", util.ErrorField(err))
			}
		}

		util.Sync()
		util.Info("Factory shutdown completed")
	})

	return nil
}

// ==============================
// Getters
// ==============================

func (f *Factory) Config() *config.Config {
	return f.config
}

func (f *Factory) TLSManager() *tls.TLSManager {
	return f.tlsManager
}

func (f *Factory) Hasher() *hashing.Hasher {
	return f.hasher
}

func (f *Factory) FingerprintManager() *fingerprint.Manager {
	return f.fingerprintManager
}

func (f *Factory) AuditPublisher() *audit.Publisher {
	return f.auditPublisher
}

func (f *Factory) AuditArchiver() *audit.Archiver {
	return f.auditArchiver
}

func (f *Factory) SessionWindow() *limiter.SessionWindow {
	return f.sessionWindow
}

func (f *Factory) EventLog() *limiter.EventLog {
	return f.eventLog
}

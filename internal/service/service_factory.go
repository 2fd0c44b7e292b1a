package service

import (
	"go.uber.org/zap"

	"radio-api/internal/audit"
	"radio-api/internal/client"
	"radio-api/internal/config"
	"radio-api/internal/encryption"
	"radio-api/internal/repository/mysql"
	"radio-api/internal/repository/redis"
	"radio-api/internal/spam"
	"radio-api/internal/util"
)

// ServiceFactory lazily builds the service layer on top of the repositories.
type ServiceFactory struct {
	cfg          *config.Config
	tokenRepo    mysql.TokenRepository
	commentRepo  mysql.CommentRepository
	streamRepo   mysql.StreamRepository
	sessionCache *redis.SessionCache
	detector     *spam.Detector
	encryptor    *encryption.Manager
	esClient     *client.ESClient
	clickhouse   *client.ClickHouseClient
	auditor      *audit.Publisher
	logger       *zap.Logger

	tokenService   *TokenService
	commentService *CommentService
	streamService  *StreamService
}

func NewServiceFactory(
	cfg *config.Config,
	tokenRepo mysql.TokenRepository,
	commentRepo mysql.CommentRepository,
	streamRepo mysql.StreamRepository,
	sessionCache *redis.SessionCache,
	detector *spam.Detector,
	encryptor *encryption.Manager,
	esClient *client.ESClient,
	clickhouse *client.ClickHouseClient,
	auditor *audit.Publisher,
	logger *zap.Logger,
) *ServiceFactory {
	return &ServiceFactory{
		cfg:          cfg,
		tokenRepo:    tokenRepo,
		commentRepo:  commentRepo,
		streamRepo:   streamRepo,
		sessionCache: sessionCache,
		detector:     detector,
		encryptor:    encryptor,
		esClient:     esClient,
		clickhouse:   clickhouse,
		auditor:      auditor,
		logger:       logger,
	}
}

func (sf *ServiceFactory) TokenService() *TokenService {
	if sf.tokenService == nil {
		sf.tokenService = NewTokenService(sf.cfg, sf.tokenRepo, sf.sessionCache, sf.auditor)
	}
	return sf.tokenService
}

func (sf *ServiceFactory) CommentService() *CommentService {
	if sf.commentService == nil {
		sf.commentService = NewCommentService(
			sf.cfg, sf.commentRepo, sf.TokenService(), sf.detector,
			sf.encryptor, sf.esClient, sf.auditor)
	}
	return sf.commentService
}

func (sf *ServiceFactory) StreamService() *StreamService {
	if sf.streamService == nil {
		sf.streamService = NewStreamService(sf.cfg, sf.streamRepo, sf.clickhouse)
	}
	return sf.streamService
}

// Cleanup releases service-held resources on shutdown.
func (sf *ServiceFactory) Cleanup() {
	if sf.encryptor != nil {
		sf.encryptor.ClearCache()
	}
	util.Debug("Service factory cleaned up")
}

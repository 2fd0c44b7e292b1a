package client

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"radio-api/internal/config"
	"radio-api/internal/util"
)

// MySQLClient wraps the shared *sql.DB handle. It is constructed once by the
// factory and injected into repositories; there is no lazy global connection.
type MySQLClient struct {
	DB     *sql.DB
	config *config.MySQLConfig
}

func NewMySQLClient(cfg *config.Config, logger *zap.Logger) (*MySQLClient, error) {
	mysqlConfig := cfg.MySQL

	db, err := sql.Open("mysql", mysqlConfig.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	db.SetMaxOpenConns(mysqlConfig.MaxOpenConns)
	db.SetMaxIdleConns(mysqlConfig.MaxIdleConns)
	db.SetConnMaxLifetime(mysqlConfig.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL: %w", err)
	}

	util.Info("MySQL client initialized",
		zap.String("host", mysqlConfig.Host),
		zap.String("database", mysqlConfig.Database),
		zap.Int("max_open_conns", mysqlConfig.MaxOpenConns))

	return &MySQLClient{
		DB:     db,
		config: &mysqlConfig,
	}, nil
}

func (m *MySQLClient) Close() error {
	if m.DB != nil {
		if err := m.DB.Close(); err != nil {
			util.Error("failed to close MySQL client", zap.Error(err))
			return err
		}
		util.Info("MySQL client closed")
	}
	return nil
}

// HealthCheck verifies connectivity and that a trivial query round-trips.
func (m *MySQLClient) HealthCheck(ctx context.Context) error {
	if err := m.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("mysql ping failed: %w", err)
	}

	var one int
	if err := m.DB.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("mysql probe query failed: %w", err)
	}
	if one != 1 {
		return fmt.Errorf("mysql probe returned unexpected value")
	}
	return nil
}

// WithContext helper mirroring the Redis client.
func (m *MySQLClient) WithContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, timeout)
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	envEnvironment           = "ENVIRONMENT"
	envPort                  = "PORT"
	envServerReadTimeout     = "SERVER_READ_TIMEOUT"
	envServerWriteTimeout    = "SERVER_WRITE_TIMEOUT"
	envServerShutdownTimeout = "SERVER_SHUTDOWN_TIMEOUT"
	envDBHost                = "DB_HOST"
	envDBPort                = "DB_PORT"
	envDBName                = "DB_NAME"
	envDBUser                = "DB_USER"
	envDBPassword            = "DB_PASSWORD"
	envDBSSLMode             = "DB_SSL_MODE"
	envDBMaxConns            = "DB_MAX_CONNS"
	envDBMinConns            = "DB_MIN_CONNS"
	envAWSRegion             = "AWS_REGION"
	envAWSAccessKeyID        = "AWS_ACCESS_KEY_ID"
	envAWSSecretAccessKey    = "AWS_SECRET_ACCESS_KEY"
	envS3Bucket              = "S3_BUCKET"
	envS3Endpoint            = "S3_ENDPOINT"
	envUploadURLExpiry       = "UPLOAD_URL_EXPIRY"
	envDownloadURLExpiry     = "DOWNLOAD_URL_EXPIRY"
	envJWTSecret             = "JWT_SECRET"
	envJWTExpiry             = "JWT_EXPIRY"
	envEngineBaseURL         = "ENGINE_BASE_URL"
	envEngineAPIKey          = "ENGINE_API_KEY"
	envEngineWorkflowName    = "ENGINE_WORKFLOW_NAME"
	envEngineTaskList        = "ENGINE_TASK_LIST"
	envEngineTimeout         = "ENGINE_TIMEOUT"
	envEngineSyncTimeout     = "ENGINE_SYNC_TIMEOUT"
	envFFProbePath           = "FFPROBE_PATH"
	envFFProbeTimeout        = "FFPROBE_TIMEOUT"
)

const (
	defaultEnvironment        = "production"
	defaultServerPort         = "8080"
	defaultServerReadTimeout  = 10 * time.Second
	defaultServerWriteTimeout = 30 * time.Second
	defaultServerShutdown     = 10 * time.Second
	defaultDBHost             = "localhost"
	defaultDBPort             = 5432
	defaultDBName             = "captureservice"
	defaultDBUser             = "captureservice_app"
	defaultDBSSLMode          = "disable"
	defaultDBMaxConns         = 25
	defaultDBMinConns         = 5
	defaultUploadURLExpiry    = 15 * time.Minute
	defaultDownloadURLExpiry  = 15 * time.Minute
	defaultJWTExpiry          = 60 * time.Minute
	defaultEngineTimeout      = 30 * time.Second
	// Status sync is called repeatedly; keep its timeout short and never retry.
	defaultEngineSyncTimeout = 5 * time.Second
	defaultFFProbePath       = "ffprobe"
	defaultFFProbeTimeout    = 30 * time.Second
	minJWTSecretLength       = 32

	errPortRequired         = "PORT must be set"
	errDBPasswordRequired   = "DB_PASSWORD must be set"
	errAWSRegionRequired    = "AWS_REGION must be set"
	errAWSAccessKeyRequired = "AWS_ACCESS_KEY_ID must be set"
	errAWSSecretKeyRequired = "AWS_SECRET_ACCESS_KEY must be set"
	errS3BucketRequired     = "S3_BUCKET must be set"
	errJWTSecretRequired    = "JWT_SECRET must be set"
	errJWTSecretMinLenFmt   = "JWT_SECRET must be at least %d characters"
	errEngineBaseURLReq     = "ENGINE_BASE_URL must be set"
	errEngineAPIKeyReq      = "ENGINE_API_KEY must be set"
	errInvalidConfigFmt     = "invalid configuration: %w"
)

type Config struct {
	Environment string
	Server      ServerConfig
	Database    DatabaseConfig
	AWS         AWSConfig
	JWT         JWTConfig
	Engine      EngineConfig
	Probe       ProbeConfig
}

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string
	MaxConns int
	MinConns int
}

type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	// Endpoint overrides the S3 endpoint for S3-compatible stores; empty
	// means AWS proper.
	Endpoint          string
	UploadURLExpiry   time.Duration
	DownloadURLExpiry time.Duration
}

type JWTConfig struct {
	Secret         string
	ExpiryDuration time.Duration
}

type EngineConfig struct {
	BaseURL      string
	APIKey       string
	WorkflowName string
	TaskList     string
	Timeout      time.Duration
	SyncTimeout  time.Duration
}

type ProbeConfig struct {
	FFProbePath string
	Timeout     time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv(envEnvironment, defaultEnvironment),
		Server: ServerConfig{
			Port:            getEnv(envPort, defaultServerPort),
			ReadTimeout:     getDurationEnv(envServerReadTimeout, defaultServerReadTimeout),
			WriteTimeout:    getDurationEnv(envServerWriteTimeout, defaultServerWriteTimeout),
			ShutdownTimeout: getDurationEnv(envServerShutdownTimeout, defaultServerShutdown),
		},
		Database: DatabaseConfig{
			Host:     getEnv(envDBHost, defaultDBHost),
			Port:     getIntEnv(envDBPort, defaultDBPort),
			Database: getEnv(envDBName, defaultDBName),
			User:     getEnv(envDBUser, defaultDBUser),
			Password: os.Getenv(envDBPassword),
			SSLMode:  getEnv(envDBSSLMode, defaultDBSSLMode),
			MaxConns: getIntEnv(envDBMaxConns, defaultDBMaxConns),
			MinConns: getIntEnv(envDBMinConns, defaultDBMinConns),
		},
		AWS: AWSConfig{
			Region:            os.Getenv(envAWSRegion),
			AccessKeyID:       os.Getenv(envAWSAccessKeyID),
			SecretAccessKey:   os.Getenv(envAWSSecretAccessKey),
			Bucket:            os.Getenv(envS3Bucket),
			Endpoint:          os.Getenv(envS3Endpoint),
			UploadURLExpiry:   getDurationEnv(envUploadURLExpiry, defaultUploadURLExpiry),
			DownloadURLExpiry: getDurationEnv(envDownloadURLExpiry, defaultDownloadURLExpiry),
		},
		JWT: JWTConfig{
			Secret:         os.Getenv(envJWTSecret),
			ExpiryDuration: getDurationEnv(envJWTExpiry, defaultJWTExpiry),
		},
		Engine: EngineConfig{
			BaseURL:      os.Getenv(envEngineBaseURL),
			APIKey:       os.Getenv(envEngineAPIKey),
			WorkflowName: getEnv(envEngineWorkflowName, "video_processing"),
			TaskList:     getEnv(envEngineTaskList, "default"),
			Timeout:      getDurationEnv(envEngineTimeout, defaultEngineTimeout),
			SyncTimeout:  getDurationEnv(envEngineSyncTimeout, defaultEngineSyncTimeout),
		},
		Probe: ProbeConfig{
			FFProbePath: getEnv(envFFProbePath, defaultFFProbePath),
			Timeout:     getDurationEnv(envFFProbeTimeout, defaultFFProbeTimeout),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf(errInvalidConfigFmt, err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf(errPortRequired)
	}

	if c.Database.Password == "" {
		return fmt.Errorf(errDBPasswordRequired)
	}

	if c.AWS.Region == "" {
		return fmt.Errorf(errAWSRegionRequired)
	}

	if c.AWS.AccessKeyID == "" {
		return fmt.Errorf(errAWSAccessKeyRequired)
	}

	if c.AWS.SecretAccessKey == "" {
		return fmt.Errorf(errAWSSecretKeyRequired)
	}

	if c.AWS.Bucket == "" {
		return fmt.Errorf(errS3BucketRequired)
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf(errJWTSecretRequired)
	}

	if len(c.JWT.Secret) < minJWTSecretLength {
		return fmt.Errorf(errJWTSecretMinLenFmt, minJWTSecretLength)
	}

	if c.Engine.BaseURL == "" {
		return fmt.Errorf(errEngineBaseURLReq)
	}

	if c.Engine.APIKey == "" {
		return fmt.Errorf(errEngineAPIKeyReq)
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

package buildCFG

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/dbpg"
)

type ServerConfig struct {
	Port string
}

type RabbitConfig struct {
	Url      string
	Exchange string
	Queue    string
}

type AuthConfig struct {
	JWTSecret      string
	PublicTokenTTL time.Duration
}

type UploadConfig struct {
	Dir      string
	MaxBytes int64
}

type MailConfig struct {
	From     string
	Password string
	SMTPHost string
	SMTPPort string
}

func BuildServerConfig(cfg *config.Config, log *zerolog.Logger) *ServerConfig {
	port := cfg.GetString("server.port")
	if port == "" {
		port = "8080"
		log.Warn().Msg("server.port not set, defaulting to 8080")
	}
	return &ServerConfig{Port: port}
}

func BuildDBConfig(cfg *config.Config, log *zerolog.Logger) (string, []string, *dbpg.Options, error) {
	masterDSN := cfg.GetString("db.master_dsn")
	if masterDSN == "" {
		return "", nil, nil, fmt.Errorf("db.master_dsn is required")
	}
	slaveDSNs := cfg.GetStringSlice("db.slave_dsns")

	opts := &dbpg.Options{
		MaxOpenConns: cfg.GetInt("db.max_open_conns"),
		MaxIdleConns: cfg.GetInt("db.max_idle_conns"),
	}
	log.Info().Int("slaves", len(slaveDSNs)).Msg("DB config built")
	return masterDSN, slaveDSNs, opts, nil
}

func BuildRabbitConfig(cfg *config.Config, log *zerolog.Logger) (*RabbitConfig, error) {
	url := cfg.GetString("rabbit.url")
	if url == "" {
		return nil, fmt.Errorf("rabbit.url is required")
	}
	rc := &RabbitConfig{
		Url:      url,
		Exchange: cfg.GetString("rabbit.exchange"),
		Queue:    cfg.GetString("rabbit.queue"),
	}
	if rc.Exchange == "" || rc.Queue == "" {
		return nil, fmt.Errorf("rabbit.exchange and rabbit.queue are required")
	}
	return rc, nil
}

func BuildAuthConfig(cfg *config.Config, log *zerolog.Logger) (*AuthConfig, error) {
	secret := cfg.GetString("auth.jwt_secret")
	if secret == "" {
		return nil, fmt.Errorf("auth.jwt_secret is required")
	}
	ttlMinutes := cfg.GetInt("auth.public_token_ttl_minutes")
	if ttlMinutes <= 0 {
		ttlMinutes = 60
	}
	return &AuthConfig{
		JWTSecret:      secret,
		PublicTokenTTL: time.Duration(ttlMinutes) * time.Minute,
	}, nil
}

func BuildUploadConfig(cfg *config.Config, log *zerolog.Logger) *UploadConfig {
	dir := cfg.GetString("upload.dir")
	if dir == "" {
		dir = "uploads"
	}
	maxBytes := int64(cfg.GetInt("upload.max_bytes"))
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	return &UploadConfig{Dir: dir, MaxBytes: maxBytes}
}

func BuildMailConfig(cfg *config.Config) *MailConfig {
	return &MailConfig{
		From:     cfg.GetString("mail.from"),
		Password: cfg.GetString("mail.password"),
		SMTPHost: cfg.GetString("mail.smtp_host"),
		SMTPPort: cfg.GetString("mail.smtp_port"),
	}
}

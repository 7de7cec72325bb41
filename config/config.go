/*
Copyright 2024 FraudLens Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"

	"github.com/kelseyhightower/envconfig"

	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT              = "5001"
	DEFAULT_WEBHOOK_QUEUE     = "case_webhooks"
	DEFAULT_SESSION_TTL_SEC   = 86400
	DEFAULT_CASE_LOCK_TTL_SEC = 60
	DEFAULT_STATUS_CACHE_SEC  = 60
	DEFAULT_MAIL_TIMEOUT_SEC  = 10
	DEFAULT_MAIL_MAX_ATTEMPTS = 3
	DEFAULT_MONITORING_PORT   = "5004"
)

var ConfigStore atomic.Value

type ServerConfig struct {
	SSL    bool   `json:"ssl" envconfig:"FRAUDLENS_SERVER_SSL"`
	Domain string `json:"domain" envconfig:"FRAUDLENS_SERVER_SSL_DOMAIN"`
	Email  string `json:"ssl_email" envconfig:"FRAUDLENS_SERVER_SSL_EMAIL"`
	Port   string `json:"port" envconfig:"FRAUDLENS_SERVER_PORT"`
}

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"FRAUDLENS_DATA_SOURCE_DNS"`
}

type RedisConfig struct {
	Dns           string `json:"dns" envconfig:"FRAUDLENS_REDIS_DNS"`
	SkipTLSVerify bool   `json:"skip_tls_verify" envconfig:"FRAUDLENS_REDIS_SKIP_TLS_VERIFY"`
}

type AuthConfig struct {
	JWTSecret     string `json:"jwt_secret" envconfig:"FRAUDLENS_AUTH_JWT_SECRET"`
	Issuer        string `json:"issuer" envconfig:"FRAUDLENS_AUTH_ISSUER"`
	SessionTTLSec int    `json:"session_ttl_sec" envconfig:"FRAUDLENS_AUTH_SESSION_TTL_SEC"`
	// RequireSession rejects tokens whose session id is unknown to the session store.
	RequireSession bool `json:"require_session" envconfig:"FRAUDLENS_AUTH_REQUIRE_SESSION"`
}

type RateLimitConfig struct {
	RequestsPerSecond  *float64 `json:"requests_per_second" envconfig:"FRAUDLENS_RATE_LIMIT_RPS"`
	Burst              *int     `json:"burst" envconfig:"FRAUDLENS_RATE_LIMIT_BURST"`
	CleanupIntervalSec *int     `json:"cleanup_interval_sec" envconfig:"FRAUDLENS_RATE_LIMIT_CLEANUP_INTERVAL_SEC"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url" envconfig:"FRAUDLENS_SLACK_WEBHOOK_URL"`
}

type WebhookConfig struct {
	Url     string            `json:"url" envconfig:"FRAUDLENS_WEBHOOK_URL"`
	Headers map[string]string `json:"headers"`
}

// MailRelayConfig points at the HTTP mail relay that delivers authority notices.
type MailRelayConfig struct {
	RelayURL    string            `json:"relay_url" envconfig:"FRAUDLENS_MAIL_RELAY_URL"`
	From        string            `json:"from" envconfig:"FRAUDLENS_MAIL_FROM"`
	Headers     map[string]string `json:"headers"`
	TimeoutSec  int               `json:"timeout_sec" envconfig:"FRAUDLENS_MAIL_TIMEOUT_SEC"`
	MaxAttempts int               `json:"max_attempts" envconfig:"FRAUDLENS_MAIL_MAX_ATTEMPTS"`
}

type Notification struct {
	Slack   SlackWebhook    `json:"slack"`
	Webhook WebhookConfig   `json:"webhook"`
	Mail    MailRelayConfig `json:"mail"`
}

// AuthorityConfig holds the addresses notices are sent to, one per recipient category.
type AuthorityConfig struct {
	Telecom string `json:"telecom" envconfig:"FRAUDLENS_AUTHORITY_TELECOM"`
	Banking string `json:"banking" envconfig:"FRAUDLENS_AUTHORITY_BANKING"`
	Nodal   string `json:"nodal" envconfig:"FRAUDLENS_AUTHORITY_NODAL"`
}

type DocumentConfig struct {
	ArtifactBaseURL string `json:"artifact_base_url" envconfig:"FRAUDLENS_DOCUMENT_ARTIFACT_BASE_URL"`
	NumberPrefix    string `json:"number_prefix" envconfig:"FRAUDLENS_DOCUMENT_NUMBER_PREFIX"`
}

type QueueConfig struct {
	WebhookQueue   string `json:"webhook_queue" envconfig:"FRAUDLENS_QUEUE_WEBHOOK"`
	Concurrency    int    `json:"concurrency" envconfig:"FRAUDLENS_QUEUE_CONCURRENCY"`
	MonitoringPort string `json:"monitoring_port" envconfig:"FRAUDLENS_QUEUE_MONITORING_PORT"`
}

type CaseFlowConfig struct {
	LockTTLSec     int `json:"lock_ttl_sec" envconfig:"FRAUDLENS_CASE_LOCK_TTL_SEC"`
	StatusCacheSec int `json:"status_cache_sec" envconfig:"FRAUDLENS_STATUS_CACHE_SEC"`
}

type OtelExporter struct {
	OtelExporterOtlpProtocol string `json:"otel_exporter_otlp_protocol" envconfig:"OTEL_EXPORTER_OTLP_PROTOCOL"`
	OtelExporterOtlpEndpoint string `json:"otel_exporter_otlp_endpoint" envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OtelExporterOtlpHeaders  string `json:"otel_exporter_otlp_headers" envconfig:"OTEL_EXPORTER_OTLP_HEADERS"`
}

type Configuration struct {
	ProjectName     string           `json:"project_name" envconfig:"FRAUDLENS_PROJECT_NAME"`
	EnableTelemetry bool             `json:"enable_telemetry" envconfig:"FRAUDLENS_ENABLE_TELEMETRY"`
	Server          ServerConfig     `json:"server"`
	DataSource      DataSourceConfig `json:"data_source"`
	Redis           RedisConfig      `json:"redis"`
	Auth            AuthConfig       `json:"auth"`
	Notification    Notification     `json:"notification"`
	Authorities     AuthorityConfig  `json:"authorities"`
	Documents       DocumentConfig   `json:"documents"`
	Queue           QueueConfig      `json:"queue"`
	CaseFlow        CaseFlowConfig   `json:"case_flow"`
	RateLimit       RateLimitConfig  `json:"rate_limit"`
	OtelExporter    OtelExporter     `json:"otel_exporter"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		defer f.Close()
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}

	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("fraudlens", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called fraudlens.json with your config ❌")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "FraudLens"
	}

	if cnf.DataSource.Dns == "" {
		log.Println("Error: Data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}

	if cnf.Redis.Dns == "" {
		log.Println("Error: Redis DNS is empty. It's a required field.")
		return errors.New("redis DNS is required")
	}

	if cnf.Auth.JWTSecret == "" {
		log.Println("Error: JWT secret is empty. It's a required field.")
		return errors.New("auth JWT secret is required")
	}

	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)
	cnf.Notification.Mail.RelayURL = strings.TrimSpace(cnf.Notification.Mail.RelayURL)

	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	if cnf.Auth.Issuer == "" {
		cnf.Auth.Issuer = "fraudlens"
	}
	if cnf.Auth.SessionTTLSec <= 0 {
		cnf.Auth.SessionTTLSec = DEFAULT_SESSION_TTL_SEC
	}

	if cnf.Queue.WebhookQueue == "" {
		cnf.Queue.WebhookQueue = DEFAULT_WEBHOOK_QUEUE
	}
	if cnf.Queue.Concurrency <= 0 {
		cnf.Queue.Concurrency = 10
	}
	if cnf.Queue.MonitoringPort == "" {
		cnf.Queue.MonitoringPort = DEFAULT_MONITORING_PORT
	}

	if cnf.CaseFlow.LockTTLSec <= 0 {
		cnf.CaseFlow.LockTTLSec = DEFAULT_CASE_LOCK_TTL_SEC
	}
	if cnf.CaseFlow.StatusCacheSec <= 0 {
		cnf.CaseFlow.StatusCacheSec = DEFAULT_STATUS_CACHE_SEC
	}

	if cnf.Notification.Mail.TimeoutSec <= 0 {
		cnf.Notification.Mail.TimeoutSec = DEFAULT_MAIL_TIMEOUT_SEC
	}
	if cnf.Notification.Mail.MaxAttempts <= 0 {
		cnf.Notification.Mail.MaxAttempts = DEFAULT_MAIL_MAX_ATTEMPTS
	}

	if cnf.Documents.NumberPrefix == "" {
		cnf.Documents.NumberPrefix = "91CRPC"
	}

	if cnf.Authorities.Telecom == "" || cnf.Authorities.Banking == "" || cnf.Authorities.Nodal == "" {
		log.Println("Warning: one or more authority addresses are empty. Email notices will fail for those categories.")
	}

	// Rate limiting is disabled by default (when both RPS and Burst are nil)
	if cnf.RateLimit.RequestsPerSecond != nil && cnf.RateLimit.Burst == nil {
		defaultBurst := 2 * int(*cnf.RateLimit.RequestsPerSecond)
		cnf.RateLimit.Burst = &defaultBurst
		log.Printf("Warning: Rate limit burst not specified. Setting default value: %d", defaultBurst)
	}
	if cnf.RateLimit.RequestsPerSecond == nil && cnf.RateLimit.Burst != nil {
		defaultRPS := float64(*cnf.RateLimit.Burst) / 2
		cnf.RateLimit.RequestsPerSecond = &defaultRPS
		log.Printf("Warning: Rate limit RPS not specified. Setting default value: %.2f", defaultRPS)
	}

	if cnf.RateLimit.CleanupIntervalSec == nil {
		defaultCleanup := 10800 // 3 hours in seconds
		cnf.RateLimit.CleanupIntervalSec = &defaultCleanup
		log.Printf("Warning: Rate limit cleanup interval not specified. Setting default value: %d seconds", defaultCleanup)
	}

	return nil
}

// AuthorityAddresses returns the configured address for every recipient category.
func (cnf *Configuration) AuthorityAddresses() map[string]string {
	return map[string]string{
		"telecom": cnf.Authorities.Telecom,
		"banking": cnf.Authorities.Banking,
		"nodal":   cnf.Authorities.Nodal,
	}
}

// SetOtelExporterEnvs exports the configured OTLP settings so the exporter picks them up.
func SetOtelExporterEnvs() error {
	cnf, err := Fetch()
	if err != nil {
		return err
	}
	envs := map[string]string{
		"OTEL_EXPORTER_OTLP_PROTOCOL": cnf.OtelExporter.OtelExporterOtlpProtocol,
		"OTEL_EXPORTER_OTLP_ENDPOINT": cnf.OtelExporter.OtelExporterOtlpEndpoint,
		"OTEL_EXPORTER_OTLP_HEADERS":  cnf.OtelExporter.OtelExporterOtlpHeaders,
	}
	for key, value := range envs {
		if value == "" {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return err
		}
	}
	return nil
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}

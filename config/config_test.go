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
	"os"
	"testing"
)

func TestValidateAndAddDefaults(t *testing.T) {
	cnf := Configuration{
		ProjectName: "",
		DataSource: DataSourceConfig{
			Dns: "",
		},
		Redis: RedisConfig{
			Dns: "localhost:6379",
		},
		Auth: AuthConfig{JWTSecret: "secret"},
	}

	err := cnf.validateAndAddDefaults()
	if err == nil || err.Error() != "data source DNS is required" {
		t.Errorf("Expected data source DNS required error, got %v", err)
	}
	cnf = Configuration{
		ProjectName: "",
		DataSource: DataSourceConfig{
			Dns: "postgres://localhost:5432",
		},
		Redis: RedisConfig{
			Dns: "",
		},
		Auth: AuthConfig{JWTSecret: "secret"},
	}

	err = cnf.validateAndAddDefaults()
	if err == nil || err.Error() != "redis DNS is required" {
		t.Errorf("Expected redis DNS required error, got %v", err)
	}

	cnf = Configuration{
		DataSource: DataSourceConfig{Dns: "postgres://localhost:5432"},
		Redis:      RedisConfig{Dns: "localhost:6379"},
	}
	err = cnf.validateAndAddDefaults()
	if err == nil || err.Error() != "auth JWT secret is required" {
		t.Errorf("Expected JWT secret required error, got %v", err)
	}

	// Test case with all required fields filled, expect no error
	cnf = Configuration{
		ProjectName: "Test Project",
		DataSource: DataSourceConfig{
			Dns: "some-dns",
		},
		Redis: RedisConfig{
			Dns: "localhost:6379",
		},
		Auth: AuthConfig{JWTSecret: "secret"},
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}

	// Test default port setting
	cnf.Server.Port = ""
	err = cnf.validateAndAddDefaults()
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if cnf.Server.Port != DEFAULT_PORT {
		t.Errorf("Expected default port %s, got %s", DEFAULT_PORT, cnf.Server.Port)
	}
	if cnf.Queue.WebhookQueue != DEFAULT_WEBHOOK_QUEUE {
		t.Errorf("Expected default webhook queue %s, got %s", DEFAULT_WEBHOOK_QUEUE, cnf.Queue.WebhookQueue)
	}
	if cnf.CaseFlow.LockTTLSec != DEFAULT_CASE_LOCK_TTL_SEC {
		t.Errorf("Expected default lock ttl %d, got %d", DEFAULT_CASE_LOCK_TTL_SEC, cnf.CaseFlow.LockTTLSec)
	}
	if cnf.Notification.Mail.MaxAttempts != DEFAULT_MAIL_MAX_ATTEMPTS {
		t.Errorf("Expected default mail attempts %d, got %d", DEFAULT_MAIL_MAX_ATTEMPTS, cnf.Notification.Mail.MaxAttempts)
	}
	if cnf.Documents.NumberPrefix != "91CRPC" {
		t.Errorf("Expected default document prefix 91CRPC, got %s", cnf.Documents.NumberPrefix)
	}
}

func TestRateLimitDefaults(t *testing.T) {
	rps := 10.0
	cnf := Configuration{
		DataSource: DataSourceConfig{Dns: "some-dns"},
		Redis:      RedisConfig{Dns: "localhost:6379"},
		Auth:       AuthConfig{JWTSecret: "secret"},
		RateLimit:  RateLimitConfig{RequestsPerSecond: &rps},
	}
	if err := cnf.validateAndAddDefaults(); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if cnf.RateLimit.Burst == nil || *cnf.RateLimit.Burst != 20 {
		t.Errorf("Expected burst 20, got %v", cnf.RateLimit.Burst)
	}
	if cnf.RateLimit.CleanupIntervalSec == nil || *cnf.RateLimit.CleanupIntervalSec != 10800 {
		t.Errorf("Expected cleanup interval 10800, got %v", cnf.RateLimit.CleanupIntervalSec)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	// Create a temporary file
	tmpFile, err := os.CreateTemp("", "fraudlens.json")
	if err != nil {
		t.Fatalf("Unable to create temporary file: %v", err)
	}
	defer os.Remove(tmpFile.Name()) // Clean up after the test

	// Sample configuration to write to the temp file
	sampleConfig := Configuration{
		ProjectName: "Temp Project",
		DataSource: DataSourceConfig{
			Dns: "temp-dns",
		},
		Redis: RedisConfig{
			Dns: "temp-redis",
		},
		Auth: AuthConfig{JWTSecret: "temp-secret"},
		Authorities: AuthorityConfig{
			Telecom: "telecom@example.gov",
			Banking: "banking@example.gov",
			Nodal:   "nodal@example.gov",
		},
	}
	if err := json.NewEncoder(tmpFile).Encode(sampleConfig); err != nil {
		t.Fatalf("Unable to write to temporary file: %v", err)
	}
	tmpFile.Close() // Close the file so loadConfigFromFile can open it

	// Set an environment variable to override the project name
	os.Setenv("FRAUDLENS_PROJECT_NAME", "Env Project")
	defer os.Unsetenv("FRAUDLENS_PROJECT_NAME") // Clean up after the test

	// Load the configuration from the file
	if err := loadConfigFromFile(tmpFile.Name()); err != nil {
		t.Fatalf("loadConfigFromFile failed: %v", err)
	}

	// Fetch the loaded configuration
	loadedConfig, err := Fetch()
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	// Check if the environment variable override worked
	if loadedConfig.ProjectName != "Env Project" {
		t.Errorf("Expected ProjectName to be 'Env Project', got '%s'", loadedConfig.ProjectName)
	}

	// Check if the DNS was loaded correctly from the file
	if loadedConfig.DataSource.Dns != "temp-dns" {
		t.Errorf("Expected DataSource.Dns to be 'temp-dns', got '%s'", loadedConfig.DataSource.Dns)
	}

	addresses := loadedConfig.AuthorityAddresses()
	if addresses["nodal"] != "nodal@example.gov" {
		t.Errorf("Expected nodal authority 'nodal@example.gov', got '%s'", addresses["nodal"])
	}
}

func TestInitConfig(t *testing.T) {
	tmpFile, err := os.CreateTemp("", "fraudlens.json")
	if err != nil {
		t.Fatalf("Unable to create temporary file: %v", err)
	}
	defer os.Remove(tmpFile.Name())

	sampleConfig := Configuration{
		ProjectName: "InitConfig Test",
		DataSource: DataSourceConfig{
			Dns: "init-config-dns",
		}, Redis: RedisConfig{
			Dns: "localhost:6379",
		},
		Auth: AuthConfig{JWTSecret: "secret"},
	}
	if err := json.NewEncoder(tmpFile).Encode(sampleConfig); err != nil {
		t.Fatalf("Unable to write to temporary file: %v", err)
	}
	tmpFile.Close()

	if err := InitConfig(tmpFile.Name()); err != nil {
		t.Fatalf("InitConfig failed: %v", err)
	}

	loadedConfig, err := Fetch()
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if loadedConfig.ProjectName != "InitConfig Test" {
		t.Errorf("Expected ProjectName to be 'InitConfig Test', got '%s'", loadedConfig.ProjectName)
	}
	if loadedConfig.DataSource.Dns != "init-config-dns" {
		t.Errorf("Expected DataSource.Dns to be 'init-config-dns', got '%s'", loadedConfig.DataSource.Dns)
	}
}

func TestSetOtelExporterEnvs(t *testing.T) {
	mockConfig := Configuration{
		OtelExporter: OtelExporter{
			OtelExporterOtlpProtocol: "http/protobuf",
			OtelExporterOtlpEndpoint: "localhost:4318",
			OtelExporterOtlpHeaders:  "api-key=12345",
		},
	}
	ConfigStore.Store(&mockConfig)

	err := SetOtelExporterEnvs()
	if err != nil {
		t.Fatalf("SetOtelExporterEnvs failed: %v", err)
	}
	defer func() {
		os.Unsetenv("OTEL_EXPORTER_OTLP_PROTOCOL")
		os.Unsetenv("OTEL_EXPORTER_OTLP_ENDPOINT")
		os.Unsetenv("OTEL_EXPORTER_OTLP_HEADERS")
	}()

	if os.Getenv("OTEL_EXPORTER_OTLP_PROTOCOL") != "http/protobuf" {
		t.Errorf("Expected OTEL_EXPORTER_OTLP_PROTOCOL to be 'http/protobuf', got '%s'", os.Getenv("OTEL_EXPORTER_OTLP_PROTOCOL"))
	}
	if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "localhost:4318" {
		t.Errorf("Expected OTEL_EXPORTER_OTLP_ENDPOINT to be 'localhost:4318', got '%s'", os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	}
	if os.Getenv("OTEL_EXPORTER_OTLP_HEADERS") != "api-key=12345" {
		t.Errorf("Expected OTEL_EXPORTER_OTLP_HEADERS to be 'api-key=12345', got '%s'", os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
	}
}

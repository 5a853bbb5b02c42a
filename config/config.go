/*
Copyright 2024 Pipeflow Authors.

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
	DEFAULT_PORT = "5001"
)

var ConfigStore atomic.Value

type ServerConfig struct {
	SSL       bool   `json:"ssl" envconfig:"PIPEFLOW_SERVER_SSL"`
	Secure    bool   `json:"secure" envconfig:"PIPEFLOW_SERVER_SECURE"`
	SecretKey string `json:"secret_key" envconfig:"PIPEFLOW_SERVER_SECRET_KEY"`
	Domain    string `json:"domain" envconfig:"PIPEFLOW_SERVER_SSL_DOMAIN"`
	Email     string `json:"ssl_email" envconfig:"PIPEFLOW_SERVER_SSL_EMAIL"`
	Port      string `json:"port" envconfig:"PIPEFLOW_SERVER_PORT"`
}

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"PIPEFLOW_DATA_SOURCE_DNS"`
}

type RedisConfig struct {
	Dns           string `json:"dns" envconfig:"PIPEFLOW_REDIS_DNS"`
	SkipTLSVerify bool   `json:"skip_tls_verify" envconfig:"PIPEFLOW_REDIS_SKIP_TLS_VERIFY"`
}

type QueueConfig struct {
	AutomationQueue  string `json:"automation_queue" envconfig:"PIPEFLOW_QUEUE_AUTOMATION"`
	WebhookQueue     string `json:"webhook_queue" envconfig:"PIPEFLOW_QUEUE_WEBHOOK"`
	SlaReminderQueue string `json:"sla_reminder_queue" envconfig:"PIPEFLOW_QUEUE_SLA_REMINDER"`
	MaxRetryAttempts int    `json:"max_retry_attempts" envconfig:"PIPEFLOW_QUEUE_MAX_RETRY_ATTEMPTS"`
	MonitoringPort   string `json:"monitoring_port" envconfig:"PIPEFLOW_QUEUE_MONITORING_PORT"`
}

// MovementConfig bounds the persistence call of a movement. On timeout the
// caller receives outcome UNKNOWN so it can re-query state instead of
// assuming the move did not happen.
type MovementConfig struct {
	TimeoutSeconds int `json:"timeout_seconds" envconfig:"PIPEFLOW_MOVEMENT_TIMEOUT_SECONDS"`
}

// HealthConfig tunes the urgency classification. The yellow threshold is the
// share of a stage's SLA duration treated as the warning window.
type HealthConfig struct {
	YellowThresholdRatio float64 `json:"yellow_threshold_ratio" envconfig:"PIPEFLOW_HEALTH_YELLOW_THRESHOLD_RATIO"`
	OccupancyCacheTTLSec int     `json:"occupancy_cache_ttl_sec" envconfig:"PIPEFLOW_HEALTH_OCCUPANCY_CACHE_TTL_SEC"`
	RefreshBatchSize     int     `json:"refresh_batch_size" envconfig:"PIPEFLOW_HEALTH_REFRESH_BATCH_SIZE"`
}

// AutomationConfig points at the external collaborator fulfilling automation
// requests (appointment scheduling, next-step suggestions, SLA reminders).
type AutomationConfig struct {
	Url     string            `json:"url" envconfig:"PIPEFLOW_AUTOMATION_URL"`
	Headers map[string]string `json:"headers"`
}

type RateLimitConfig struct {
	RequestsPerSecond  *float64 `json:"requests_per_second" envconfig:"PIPEFLOW_RATE_LIMIT_RPS"`
	Burst              *int     `json:"burst" envconfig:"PIPEFLOW_RATE_LIMIT_BURST"`
	CleanupIntervalSec *int     `json:"cleanup_interval_sec" envconfig:"PIPEFLOW_RATE_LIMIT_CLEANUP_INTERVAL_SEC"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url"`
}

type Notification struct {
	Slack   SlackWebhook `json:"slack"`
	Webhook struct {
		Url     string            `json:"url"`
		Headers map[string]string `json:"headers"`
	} `json:"webhook"`
}

type Configuration struct {
	ProjectName     string           `json:"project_name" envconfig:"PIPEFLOW_PROJECT_NAME"`
	EnableTelemetry bool             `json:"enable_telemetry" envconfig:"PIPEFLOW_ENABLE_TELEMETRY"`
	Server          ServerConfig     `json:"server"`
	DataSource      DataSourceConfig `json:"data_source"`
	Redis           RedisConfig      `json:"redis"`
	Queue           QueueConfig      `json:"queue"`
	Movement        MovementConfig   `json:"movement"`
	Health          HealthConfig     `json:"health"`
	Automation      AutomationConfig `json:"automation"`
	Notification    Notification     `json:"notification"`
	RateLimit       RateLimitConfig  `json:"rate_limit"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}

	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("pipeflow", &cnf)
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
		return nil, errors.New("config not loaded from file. Create a json file called pipeflow.json with your config ❌")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "Pipeflow Server"
	}

	if cnf.DataSource.Dns == "" {
		log.Println("Error: Data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}

	if cnf.Redis.Dns == "" {
		log.Println("Error: Redis DNS is empty. It's a required field.")
		return errors.New("redis DNS is required")
	}

	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)

	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	if cnf.Queue.AutomationQueue == "" {
		cnf.Queue.AutomationQueue = "new:automation"
	}
	if cnf.Queue.WebhookQueue == "" {
		cnf.Queue.WebhookQueue = "new:webhook"
	}
	if cnf.Queue.SlaReminderQueue == "" {
		cnf.Queue.SlaReminderQueue = "new:sla-reminder"
	}
	if cnf.Queue.MaxRetryAttempts <= 0 {
		cnf.Queue.MaxRetryAttempts = 3
	}
	if cnf.Queue.MonitoringPort == "" {
		cnf.Queue.MonitoringPort = "5002"
	}

	if cnf.Movement.TimeoutSeconds <= 0 {
		cnf.Movement.TimeoutSeconds = 5
	}

	if cnf.Health.YellowThresholdRatio <= 0 || cnf.Health.YellowThresholdRatio >= 1 {
		cnf.Health.YellowThresholdRatio = 0.3
	}
	if cnf.Health.OccupancyCacheTTLSec <= 0 {
		cnf.Health.OccupancyCacheTTLSec = 10
	}
	if cnf.Health.RefreshBatchSize <= 0 {
		cnf.Health.RefreshBatchSize = 500
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
	}

	return nil
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	if mockConfig.Movement.TimeoutSeconds <= 0 {
		mockConfig.Movement.TimeoutSeconds = 5
	}
	if mockConfig.Health.YellowThresholdRatio <= 0 {
		mockConfig.Health.YellowThresholdRatio = 0.3
	}
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}

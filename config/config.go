/*
Copyright 2024 OPTRIXTRADES Authors.

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
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT = "5001"
)

var ConfigStore atomic.Value

type ServerConfig struct {
	SSL       bool   `json:"ssl" envconfig:"BOT_SERVER_SSL"`
	Secure    bool   `json:"secure" envconfig:"BOT_SERVER_SECURE"`
	SecretKey string `json:"secret_key" envconfig:"BOT_SERVER_SECRET_KEY"`
	Domain    string `json:"domain" envconfig:"BOT_SERVER_SSL_DOMAIN"`
	Email     string `json:"ssl_email" envconfig:"BOT_SERVER_SSL_EMAIL"`
	Port      string `json:"port" envconfig:"BOT_SERVER_PORT"`
}

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"BOT_DATA_SOURCE_DNS"`
}

type RedisConfig struct {
	Dns           string `json:"dns" envconfig:"BOT_REDIS_DNS"`
	SkipTLSVerify bool   `json:"skip_tls_verify" envconfig:"BOT_REDIS_SKIP_TLS_VERIFY"`
}

type TypeSenseConfig struct {
	Dns string `json:"dns" envconfig:"BOT_TYPESENSE_DNS"`
}

// TelegramConfig carries the messaging collaborator settings. PremiumChannelID
// is the privileged destination users are added to on approval.
type TelegramConfig struct {
	BotToken         string `json:"bot_token" envconfig:"BOT_TELEGRAM_TOKEN"`
	PremiumChannelID string `json:"premium_channel_id" envconfig:"BOT_PREMIUM_CHANNEL_ID"`
	AdminUsername    string `json:"admin_username" envconfig:"BOT_ADMIN_USERNAME"`
	APIBaseURL       string `json:"api_base_url" envconfig:"BOT_TELEGRAM_API_BASE_URL"`
	SendTimeoutSec   int    `json:"send_timeout_sec" envconfig:"BOT_TELEGRAM_SEND_TIMEOUT_SEC"`
}

// FollowUpConfig tunes the follow-up sequence. Spacing between consecutive
// steps is randomized per step between the min and max delay; step 1 uses
// InitialDelay, which is deliberately shorter.
type FollowUpConfig struct {
	InitialDelayMinutes   int `json:"initial_delay_minutes" envconfig:"BOT_FOLLOW_UP_INITIAL_DELAY_MINUTES"`
	InterStepMinDelayMins int `json:"inter_step_min_delay_minutes" envconfig:"BOT_FOLLOW_UP_MIN_DELAY_MINUTES"`
	InterStepMaxDelayMins int `json:"inter_step_max_delay_minutes" envconfig:"BOT_FOLLOW_UP_MAX_DELAY_MINUTES"`
	MaxSequenceSteps      int `json:"max_sequence_steps" envconfig:"BOT_FOLLOW_UP_MAX_STEPS"`
	RetryMaxAttempts      int `json:"retry_max_attempts" envconfig:"BOT_FOLLOW_UP_RETRY_MAX_ATTEMPTS"`
	RetryBackoffBaseSecs  int `json:"retry_backoff_base_seconds" envconfig:"BOT_FOLLOW_UP_RETRY_BACKOFF_BASE_SECONDS"`
}

// VerificationConfig tunes the decision engine. DailyAutoApprovalCap bounds
// AUTO_APPROVED decisions per calendar day across all instances.
type VerificationConfig struct {
	MinIdentifierLength  int      `json:"min_identifier_length" envconfig:"BOT_MIN_UID_LENGTH"`
	MaxIdentifierLength  int      `json:"max_identifier_length" envconfig:"BOT_MAX_UID_LENGTH"`
	BlacklistPatterns    []string `json:"blacklist_patterns" envconfig:"BOT_BLACKLIST_PATTERNS"`
	RequireArtifact      *bool    `json:"require_artifact" envconfig:"BOT_REQUIRE_ARTIFACT"`
	WindowHours          int      `json:"verification_window_hours" envconfig:"BOT_VERIFICATION_WINDOW_HOURS"`
	DailyAutoApprovalCap int      `json:"daily_auto_approval_cap" envconfig:"BOT_DAILY_AUTO_APPROVAL_CAP"`
	AutoApproveThreshold float64  `json:"auto_approve_threshold" envconfig:"BOT_AUTO_APPROVE_THRESHOLD"`
	AllowResubmission    *bool    `json:"allow_resubmission" envconfig:"BOT_ALLOW_RESUBMISSION"`
}

type QueueConfig struct {
	WebhookQueue   string `json:"webhook_queue" envconfig:"BOT_QUEUE_WEBHOOK"`
	IndexQueue     string `json:"index_queue" envconfig:"BOT_QUEUE_INDEX"`
	MonitoringPort string `json:"monitoring_port" envconfig:"BOT_QUEUE_MONITORING_PORT"`
}

type RateLimitConfig struct {
	RequestsPerSecond  *float64 `json:"requests_per_second" envconfig:"BOT_RATE_LIMIT_RPS"`
	Burst              *int     `json:"burst" envconfig:"BOT_RATE_LIMIT_BURST"`
	CleanupIntervalSec *int     `json:"cleanup_interval_sec" envconfig:"BOT_RATE_LIMIT_CLEANUP_INTERVAL_SEC"`
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
	NotifyOnManualReview bool `json:"notify_on_manual_review" envconfig:"BOT_NOTIFY_ON_MANUAL_REVIEW"`
	NotifyOnRejection    bool `json:"notify_on_rejection" envconfig:"BOT_NOTIFY_ON_REJECTION"`
	QueueWarningSize     int  `json:"queue_warning_size" envconfig:"BOT_QUEUE_WARNING_SIZE"`
}

type Configuration struct {
	ProjectName     string             `json:"project_name" envconfig:"BOT_PROJECT_NAME"`
	EnableTelemetry bool               `json:"enable_telemetry" envconfig:"BOT_ENABLE_TELEMETRY"`
	Server          ServerConfig       `json:"server"`
	DataSource      DataSourceConfig   `json:"data_source"`
	Redis           RedisConfig        `json:"redis"`
	TypeSense       TypeSenseConfig    `json:"typesense"`
	TypeSenseKey    string             `json:"type_sense_key" envconfig:"BOT_TYPESENSE_KEY"`
	Telegram        TelegramConfig     `json:"telegram"`
	FollowUp        FollowUpConfig     `json:"follow_up"`
	Verification    VerificationConfig `json:"verification"`
	Queue           QueueConfig        `json:"queue"`
	Notification    Notification       `json:"notification"`
	RateLimit       RateLimitConfig    `json:"rate_limit"`
}

// InitialDelay returns the delay before step 1 of a freshly enqueued sequence.
func (c *FollowUpConfig) InitialDelay() time.Duration {
	return time.Duration(c.InitialDelayMinutes) * time.Minute
}

// InterStepDelayBounds returns the [min, max] spacing between consecutive steps.
func (c *FollowUpConfig) InterStepDelayBounds() (time.Duration, time.Duration) {
	return time.Duration(c.InterStepMinDelayMins) * time.Minute,
		time.Duration(c.InterStepMaxDelayMins) * time.Minute
}

func (c *FollowUpConfig) RetryBackoffBase() time.Duration {
	return time.Duration(c.RetryBackoffBaseSecs) * time.Second
}

func (c *VerificationConfig) Window() time.Duration {
	return time.Duration(c.WindowHours) * time.Hour
}

func (c *VerificationConfig) ResubmissionAllowed() bool {
	return c.AllowResubmission == nil || *c.AllowResubmission
}

// ArtifactRequired reports whether a submission must carry a deposit artifact
// before it can be decided. On unless explicitly switched off.
func (c *VerificationConfig) ArtifactRequired() bool {
	return c.RequireArtifact == nil || *c.RequireArtifact
}

func (c *TelegramConfig) SendTimeout() time.Duration {
	return time.Duration(c.SendTimeoutSec) * time.Second
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
	err = envconfig.Process("bot", &cnf)
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
		return nil, errors.New("config not loaded from file. Create a json file called bot.json with your config ❌")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "OPTRIXTRADES Bot"
	}

	if cnf.DataSource.Dns == "" {
		log.Println("Error: Data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}

	if cnf.Redis.Dns == "" {
		log.Println("Error: Redis DNS is empty. It's a required field.")
		return errors.New("redis DNS is required")
	}

	if cnf.TypeSense.Dns == "" {
		cnf.TypeSense.Dns = "http://typesense:8108"
	}

	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)
	cnf.Telegram.BotToken = strings.TrimSpace(cnf.Telegram.BotToken)

	// Set default value for Port if it's empty
	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	if err := cnf.applyEngineDefaults(); err != nil {
		return err
	}

	if cnf.Notification.QueueWarningSize == 0 {
		cnf.Notification.QueueWarningSize = 10
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

	// Set default cleanup interval if not specified
	if cnf.RateLimit.CleanupIntervalSec == nil {
		defaultCleanup := 10800 // 3 hours in seconds
		cnf.RateLimit.CleanupIntervalSec = &defaultCleanup
		log.Printf("Warning: Rate limit cleanup interval not specified. Setting default value: %d seconds", defaultCleanup)
	}

	return nil
}

// applyEngineDefaults fills the scheduler and verification settings that the
// engines cannot run without.
func (cnf *Configuration) applyEngineDefaults() error {
	if cnf.Telegram.APIBaseURL == "" {
		cnf.Telegram.APIBaseURL = "https://api.telegram.org"
	}
	if cnf.Telegram.SendTimeoutSec == 0 {
		cnf.Telegram.SendTimeoutSec = 10
	}

	if cnf.Queue.WebhookQueue == "" {
		cnf.Queue.WebhookQueue = "new:webhook"
	}
	if cnf.Queue.IndexQueue == "" {
		cnf.Queue.IndexQueue = "new:index"
	}
	if cnf.Queue.MonitoringPort == "" {
		cnf.Queue.MonitoringPort = "5003"
	}

	// Follow-up defaults: 24 steps, first nudge after 30 minutes, then
	// 7.5-8h spacing, 3 delivery attempts with a 30s backoff base.
	if cnf.FollowUp.MaxSequenceSteps == 0 {
		cnf.FollowUp.MaxSequenceSteps = 24
	}
	if cnf.FollowUp.InitialDelayMinutes == 0 {
		cnf.FollowUp.InitialDelayMinutes = 30
	}
	if cnf.FollowUp.InterStepMinDelayMins == 0 {
		cnf.FollowUp.InterStepMinDelayMins = 450
	}
	if cnf.FollowUp.InterStepMaxDelayMins == 0 {
		cnf.FollowUp.InterStepMaxDelayMins = 480
	}
	if cnf.FollowUp.InterStepMinDelayMins > cnf.FollowUp.InterStepMaxDelayMins {
		return errors.New("follow-up min delay must not exceed max delay")
	}
	if cnf.FollowUp.RetryMaxAttempts == 0 {
		cnf.FollowUp.RetryMaxAttempts = 3
	}
	if cnf.FollowUp.RetryBackoffBaseSecs == 0 {
		cnf.FollowUp.RetryBackoffBaseSecs = 30
	}

	// Verification defaults mirror the original deployment: 6-20 char
	// identifiers, 24h window, 100 auto approvals per day, 0.8 threshold.
	if cnf.Verification.MinIdentifierLength == 0 {
		cnf.Verification.MinIdentifierLength = 6
	}
	if cnf.Verification.MaxIdentifierLength == 0 {
		cnf.Verification.MaxIdentifierLength = 20
	}
	if cnf.Verification.MinIdentifierLength >= cnf.Verification.MaxIdentifierLength {
		return errors.New("min identifier length must be less than max identifier length")
	}
	if cnf.Verification.WindowHours == 0 {
		cnf.Verification.WindowHours = 24
	}
	if cnf.Verification.DailyAutoApprovalCap == 0 {
		cnf.Verification.DailyAutoApprovalCap = 100
	}
	if cnf.Verification.AutoApproveThreshold == 0 {
		cnf.Verification.AutoApproveThreshold = 0.8
	}
	if len(cnf.Verification.BlacklistPatterns) == 0 {
		cnf.Verification.BlacklistPatterns = []string{"test", "demo", "sample", "fake"}
	}
	return nil
}

// MockConfig sets a mock configuration for testing purposes. Engine defaults
// are applied so tests exercising the scheduler or the decision engine get
// working timeouts and delay bounds without spelling them all out.
func MockConfig(mockConfig *Configuration) {
	if err := mockConfig.applyEngineDefaults(); err != nil {
		log.Println(err)
	}
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}

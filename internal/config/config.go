package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const configPathEnv = "AINYHETER_CONFIG"

// Config holds all settings the application needs. Values come from
// defaults, then an optional YAML file, then environment variables.
type Config struct {
	Port            int    `yaml:"port"`
	DBPath          string `yaml:"dbPath"`
	SpreadsheetID   string `yaml:"spreadsheetId"`
	CredentialsPath string `yaml:"credentialsPath"`
	AdminToken      string `yaml:"adminToken"`
	BaseURL         string `yaml:"baseUrl"`

	Summarizer SummarizerConfig `yaml:"summarizer"`
	Mail       MailConfig       `yaml:"mail"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Digest     DigestConfig     `yaml:"digest"`
}

// SummarizerConfig defines how to reach the chat-completions API.
type SummarizerConfig struct {
	Endpoint string `yaml:"endpoint"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"apiKey"`
}

// MailConfig wires the Mailjet credentials and sender identity.
type MailConfig struct {
	APIKey     string `yaml:"apiKey"`
	APISecret  string `yaml:"apiSecret"`
	Sender     string `yaml:"sender"`
	SenderName string `yaml:"senderName"`
}

// IngestConfig tunes the ingestion pipeline.
type IngestConfig struct {
	MaxEntriesPerFeed int `yaml:"maxEntriesPerFeed"`
	DelayMillis       int `yaml:"delayMillis"`
}

// Delay converts the configured pause to a duration.
func (c IngestConfig) Delay() time.Duration {
	return time.Duration(c.DelayMillis) * time.Millisecond
}

// DigestConfig tunes digest selection.
type DigestConfig struct {
	Cap        int `yaml:"cap"`
	WindowDays int `yaml:"windowDays"`
}

// Load reads YAML configuration (if present) and applies environment
// overrides on top of defaults.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else if err := yaml.Unmarshal(raw, &cfg); err != nil {
			log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			cfg = defaultConfig()
		}
	}

	cfg.applyEnvOverrides()
	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("AINYHETER_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Port = p
		}
	}
	if v := os.Getenv("AINYHETER_DB_PATH"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("AINYHETER_BASE_URL"); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv("SPREADSHEET_ID"); v != "" {
		c.SpreadsheetID = v
	}
	if v := os.Getenv("GOOGLE_CREDS_PATH"); v != "" {
		c.CredentialsPath = v
	}
	if v := os.Getenv("ADMIN_TOKEN"); v != "" {
		c.AdminToken = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.Summarizer.APIKey = v
	}
	if v := os.Getenv("OPENAI_MODEL"); v != "" {
		c.Summarizer.Model = v
	}
	if v := os.Getenv("MAILJET_API_KEY"); v != "" {
		c.Mail.APIKey = v
	}
	if v := os.Getenv("MAILJET_API_SECRET"); v != "" {
		c.Mail.APISecret = v
	}
	if v := os.Getenv("SENDER_EMAIL"); v != "" {
		c.Mail.Sender = v
	}
	if v := os.Getenv("MAX_ENTRIES_PER_FEED"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Ingest.MaxEntriesPerFeed = n
		}
	}
	if v := os.Getenv("SLEEP_BETWEEN_ITEMS_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.Ingest.DelayMillis = n
		}
	}
}

func defaultConfig() Config {
	return Config{
		Port:            8080,
		DBPath:          "data/ainyheter.db",
		CredentialsPath: "/etc/secrets/service_account.json",
		BaseURL:         "http://localhost:8080",
		Summarizer: SummarizerConfig{
			Endpoint: "https://api.openai.com/v1/chat/completions",
			Model:    "gpt-4o-mini",
		},
		Mail: MailConfig{
			Sender:     "nyheter@example.com",
			SenderName: "AI-Nyheter",
		},
		Ingest: IngestConfig{
			MaxEntriesPerFeed: 10,
			DelayMillis:       400,
		},
		Digest: DigestConfig{
			Cap:        6,
			WindowDays: 7,
		},
	}
}

func (c Config) GetAddress() string {
	return fmt.Sprintf(":%d", c.Port)
}

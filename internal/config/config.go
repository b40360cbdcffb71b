package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP server
	Port string

	// Primary ledger database and the local backup copy.
	SQLiteDBPath     string
	BackupDBPath     string
	BackupInterval   time.Duration

	// AMQP backup sync
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Association shown on invoices and exports.
	AssociationName string

	LogLevel string
}

func Load() *Config {
	return &Config{
		Port: getEnv("PORT", "8080"),

		SQLiteDBPath:   getEnv("SQLITE_DB_PATH", "./data/waterledger.db"),
		BackupDBPath:   getEnv("BACKUP_DB_PATH", "./data/waterledger-backup.db"),
		BackupInterval: getEnvDuration("BACKUP_INTERVAL", 5*time.Minute),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "waterledger"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "ledger_backup"),

		AssociationName: getEnv("ASSOCIATION_NAME", "جمعية مستعملي الماء"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Validate checks the loaded configuration and creates database directories
// as a side effect.
func (c *Config) Validate() error {
	var problems []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		problems = append(problems, fmt.Sprintf("invalid port %q: must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	for _, p := range []string{c.SQLiteDBPath, c.BackupDBPath} {
		if p == "" {
			problems = append(problems, "database path cannot be empty")
			continue
		}
		if dir := filepath.Dir(p); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					problems = append(problems, fmt.Sprintf("cannot create database directory %q: %v", dir, err))
				}
			}
		}
	}
	if c.SQLiteDBPath != "" && c.SQLiteDBPath == c.BackupDBPath {
		problems = append(problems, "backup database path must differ from the primary")
	}

	if c.BackupInterval < time.Second {
		problems = append(problems, fmt.Sprintf("invalid backup interval %v: must be at least 1 second", c.BackupInterval))
	}

	if c.AMQPURL != "" {
		if u, err := url.Parse(c.AMQPURL); err != nil {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL %q: %v", c.AMQPURL, err))
		} else if u.Scheme != "amqp" && u.Scheme != "amqps" {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL scheme %q: must be amqp or amqps", u.Scheme))
		}
		if c.AMQPExchange == "" {
			problems = append(problems, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			problems = append(problems, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.AssociationName == "" {
		problems = append(problems, "association name cannot be empty")
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(problems, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

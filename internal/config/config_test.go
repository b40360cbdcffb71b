package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()
	return &Config{
		Port:            "8080",
		SQLiteDBPath:    dir + "/primary.db",
		BackupDBPath:    dir + "/backup.db",
		BackupInterval:  5 * time.Minute,
		AssociationName: "Association",
		LogLevel:        "info",
	}
}

func TestValidateOK(t *testing.T) {
	if err := validConfig(t).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		frag   string
	}{
		{"bad port", func(c *Config) { c.Port = "nope" }, "invalid port"},
		{"port range", func(c *Config) { c.Port = "70000" }, "invalid port"},
		{"same paths", func(c *Config) { c.BackupDBPath = c.SQLiteDBPath }, "must differ"},
		{"short interval", func(c *Config) { c.BackupInterval = 0 }, "backup interval"},
		{"bad amqp scheme", func(c *Config) { c.AMQPURL = "http://localhost" }, "scheme"},
		{"amqp without queue", func(c *Config) { c.AMQPURL = "amqp://localhost"; c.AMQPExchange = "x" }, "queue"},
		{"no association", func(c *Config) { c.AssociationName = "" }, "association"},
	}
	for _, tc := range cases {
		c := validConfig(t)
		tc.mutate(c)
		err := c.Validate()
		if err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
		if !strings.Contains(err.Error(), tc.frag) {
			t.Fatalf("%s: error %v does not mention %q", tc.name, err, tc.frag)
		}
	}
}

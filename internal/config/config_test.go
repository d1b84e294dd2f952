package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ListenAddr() != "127.0.0.1:8080" {
		t.Errorf("ListenAddr() = %q", cfg.ListenAddr())
	}
	if cfg.LogLevel != "INFO" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	if cfg.RateLimit != 20 {
		t.Errorf("RateLimit = %d", cfg.RateLimit)
	}
	if cfg.AdminUser != "admin" {
		t.Errorf("AdminUser = %q", cfg.AdminUser)
	}
	if cfg.LdapUsernameAttribute != "uid" {
		t.Errorf("LdapUsernameAttribute = %q", cfg.LdapUsernameAttribute)
	}
	if len(cfg.LdapFullnameAttribute) != 2 || cfg.LdapFullnameAttribute[0] != "displayName" {
		t.Errorf("LdapFullnameAttribute = %v", cfg.LdapFullnameAttribute)
	}
}

func TestLoadFlags(t *testing.T) {
	cfg, err := Load([]string{
		"--server-host", "0.0.0.0",
		"--server-port", "9090",
		"--rate-limit", "5",
		"--ldap-admin-group", "udb-admins,net-admins",
	})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ListenAddr() != "0.0.0.0:9090" {
		t.Errorf("ListenAddr() = %q", cfg.ListenAddr())
	}
	if cfg.RateLimit != 5 {
		t.Errorf("RateLimit = %d", cfg.RateLimit)
	}
	if len(cfg.LdapAdminGroup) != 2 || cfg.LdapAdminGroup[1] != "net-admins" {
		t.Errorf("LdapAdminGroup = %v", cfg.LdapAdminGroup)
	}
}

func TestLoadDebugForcesLogLevel(t *testing.T) {
	cfg, err := Load([]string{"--debug"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LogLevel != "DEBUG" {
		t.Errorf("LogLevel = %q, want DEBUG", cfg.LogLevel)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown flag", []string{"--no-such-option"}},
		{"bad log level", []string{"--log-level", "TRACE"}},
		{"bad port", []string{"--server-port", "70000"}},
		{"negative rate limit", []string{"--rate-limit", "-1"}},
		{"empty db uri", []string{"--db-uri", ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(tt.args); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "udb.yaml")
	body := strings.Join([]string{
		`server-port: 8888`,
		`header-name: BFH`,
		`smtp-server: mail.bfh.ch:587`,
	}, "\n")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load([]string{"-f", path})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ServerPort != 8888 {
		t.Errorf("ServerPort = %d", cfg.ServerPort)
	}
	if cfg.HeaderName != "BFH" {
		t.Errorf("HeaderName = %q", cfg.HeaderName)
	}
	if cfg.SmtpServer != "mail.bfh.ch:587" {
		t.Errorf("SmtpServer = %q", cfg.SmtpServer)
	}
}

func TestLoadConfigFileRejectsUnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "udb.yaml")
	if err := os.WriteFile(path, []byte("no-such-option: 1\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load([]string{"-f", path}); err == nil {
		t.Error("expected an error for an unknown file key")
	}
}

func TestLoadFlagOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "udb.yaml")
	if err := os.WriteFile(path, []byte("server-port: 8888\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load([]string{"-f", path, "--server-port", "9999"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ServerPort != 9999 {
		t.Errorf("ServerPort = %d, want the flag to win", cfg.ServerPort)
	}
}

package shared

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Driver != DriverSQLite {
			t.Errorf("expected database driver sqlite3, got %s", config.Database.Driver)
		}

		if config.Database.DSN != "./playvote.db" {
			t.Errorf("expected database dsn ./playvote.db, got %s", config.Database.DSN)
		}

		if config.Server.Port != 3000 {
			t.Errorf("expected server port 3000, got %d", config.Server.Port)
		}

		if config.Requests.GracePeriod != 5*time.Minute {
			t.Errorf("expected grace period 5m, got %s", config.Requests.GracePeriod)
		}

		if config.Requests.MaxAdministrators != 10 {
			t.Errorf("expected max administrators 10, got %d", config.Requests.MaxAdministrators)
		}

		if config.Spotify.Timeout != 5*time.Second {
			t.Errorf("expected spotify timeout 5s, got %s", config.Spotify.Timeout)
		}

		if config.Redis.Channel != "playvote:events" {
			t.Errorf("expected redis channel playvote:events, got %s", config.Redis.Channel)
		}

		if err := config.Validate(); err != nil {
			t.Errorf("default config should validate: %v", err)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		if config.Database.DSN != DefaultConfig().Database.DSN {
			t.Errorf("created config database dsn doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")

		testConfig := `[database]
driver = "pgx"
dsn = "postgres://localhost/playvote"

[server]
host = "0.0.0.0"
port = 8080
allowed_origins = ["https://app.example.com"]

[requests]
grace_period = "10m"

[credentials.spotify]
client_id = "test_client_id"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Database.Driver != DriverPostgres {
			t.Errorf("expected driver pgx, got %s", config.Database.Driver)
		}

		if config.Server.Port != 8080 {
			t.Errorf("expected server port 8080, got %d", config.Server.Port)
		}

		if config.Requests.GracePeriod != 10*time.Minute {
			t.Errorf("expected grace period 10m, got %s", config.Requests.GracePeriod)
		}

		if config.Requests.MaxAdministrators != 10 {
			t.Errorf("unset fields should keep defaults, got max administrators %d", config.Requests.MaxAdministrators)
		}

		if config.Credentials.Spotify.ClientID != "test_client_id" {
			t.Errorf("expected spotify client_id test_client_id, got %s", config.Credentials.Spotify.ClientID)
		}
	})

	t.Run("Environment Overrides", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		t.Setenv("PLAYVOTE_SERVER_PORT", "9999")
		t.Setenv("PLAYVOTE_REDIS_URL", "redis://localhost:6379/0")
		t.Setenv("PLAYVOTE_SERVER_ALLOWED_ORIGINS", "https://a.example,https://b.example")
		t.Setenv("PLAYVOTE_REQUESTS_MAX_ADMINISTRATORS", "3")

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Server.Port != 9999 {
			t.Errorf("expected port override 9999, got %d", config.Server.Port)
		}
		if config.Redis.URL != "redis://localhost:6379/0" {
			t.Errorf("expected redis url override, got %q", config.Redis.URL)
		}
		if len(config.Server.AllowedOrigins) != 2 {
			t.Errorf("expected two allowed origins, got %v", config.Server.AllowedOrigins)
		}
		if config.Requests.MaxAdministrators != 3 {
			t.Errorf("expected max administrators override 3, got %d", config.Requests.MaxAdministrators)
		}
	})

	t.Run("Validate", func(t *testing.T) {
		config := DefaultConfig()
		config.Database.Driver = "mysql"
		if err := config.Validate(); err == nil {
			t.Error("expected unknown driver to fail validation")
		}

		config = DefaultConfig()
		config.Database.DSN = ""
		if err := config.Validate(); err == nil {
			t.Error("expected empty dsn to fail validation")
		}
	})
}

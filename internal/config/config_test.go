package config

import (
	"os"
	"path/filepath"
	"testing"
)

func validConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			InstanceID:             "test",
			HTTPListen:             ":8080",
			LogLevel:               "info",
			ShutdownTimeoutSeconds: 30,
		},
		Peer: PeerConfig{
			ListenAddr:    ":179",
			LocalIP:       "10.0.0.1",
			RemoteIP:      "10.0.0.2",
			LocalASN:      65000,
			RemoteASN:     65001,
			LocalRouterID: "10.0.0.1",
			Timers: TimersConfig{
				ConnectRetrySeconds: 120,
				HoldSeconds:         90,
				KeepaliveSeconds:    30,
			},
		},
		Postgres: PostgresConfig{
			DSN:      "postgres://localhost/test",
			MaxConns: 10,
			MinConns: 2,
		},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got error: %v", err)
	}
}

func TestValidate_NoLocalIP(t *testing.T) {
	cfg := validConfig()
	cfg.Peer.LocalIP = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for empty peer.local_ip")
	}
}

func TestValidate_NoRemoteIPRequiresPassive(t *testing.T) {
	cfg := validConfig()
	cfg.Peer.RemoteIP = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for empty peer.remote_ip without passive")
	}
	cfg.Peer.Passive = true
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected passive config without remote_ip to validate, got: %v", err)
	}
}

func TestValidate_NoLocalASN(t *testing.T) {
	cfg := validConfig()
	cfg.Peer.LocalASN = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero peer.local_asn")
	}
}

func TestValidate_NoRemoteASN(t *testing.T) {
	cfg := validConfig()
	cfg.Peer.RemoteASN = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero peer.remote_asn")
	}
}

func TestValidate_NoRouterID(t *testing.T) {
	cfg := validConfig()
	cfg.Peer.LocalRouterID = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for empty peer.local_router_id")
	}
}

func TestValidate_HoldTimeTooSmallButNonZero(t *testing.T) {
	cfg := validConfig()
	cfg.Peer.Timers.HoldSeconds = 2
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for hold_seconds in (0,3)")
	}
	cfg.Peer.Timers.HoldSeconds = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected hold_seconds=0 (disabled) to validate, got: %v", err)
	}
}

func TestValidate_ConnectRetryZero(t *testing.T) {
	cfg := validConfig()
	cfg.Peer.Timers.ConnectRetrySeconds = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for connect_retry_seconds = 0")
	}
}

func TestValidate_PostgresOptionalWhenDSNEmpty(t *testing.T) {
	cfg := validConfig()
	cfg.Postgres = PostgresConfig{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected empty postgres config to validate (RIB sink optional), got: %v", err)
	}
}

func TestValidate_KafkaTopicRequiredWithBrokers(t *testing.T) {
	cfg := validConfig()
	cfg.Kafka.Brokers = []string{"localhost:9092"}
	cfg.Kafka.Topic = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for brokers set without a topic")
	}
}

func TestValidate_ShutdownTimeoutZero(t *testing.T) {
	cfg := validConfig()
	cfg.Service.ShutdownTimeoutSeconds = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for shutdown_timeout_seconds = 0")
	}
}

func writeMinimalYAML(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	data := `
peer:
  local_ip: "10.0.0.1"
  remote_ip: "10.0.0.2"
  local_asn: 65000
  remote_asn: 65001
  local_router_id: "10.0.0.1"
  timers:
    connect_retry_seconds: 120
    hold_seconds: 90
    keepalive_seconds: 30
postgres:
  dsn: "postgres://localhost/test"
`
	if err := os.WriteFile(p, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoad_EnvOverrideDSN(t *testing.T) {
	p := writeMinimalYAML(t)
	t.Setenv("BGP_SPEAKER_POSTGRES__DSN", "postgres://envhost/envdb")

	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Postgres.DSN != "postgres://envhost/envdb" {
		t.Errorf("expected DSN from env, got %q", cfg.Postgres.DSN)
	}
}

func TestLoad_EnvOverrideLogLevel(t *testing.T) {
	p := writeMinimalYAML(t)
	t.Setenv("BGP_SPEAKER_SERVICE__LOG_LEVEL", "debug")

	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Service.LogLevel != "debug" {
		t.Errorf("expected log_level 'debug' from env, got %q", cfg.Service.LogLevel)
	}
}

func TestLoad_EnvOverrideLocalASN(t *testing.T) {
	p := writeMinimalYAML(t)
	t.Setenv("BGP_SPEAKER_PEER__LOCAL_ASN", "65099")

	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Peer.LocalASN != 65099 {
		t.Errorf("expected local_asn 65099 from env, got %d", cfg.Peer.LocalASN)
	}
}

func TestLoad_EnvEmptyLocalIPFailsValidation(t *testing.T) {
	p := writeMinimalYAML(t)
	t.Setenv("BGP_SPEAKER_PEER__LOCAL_IP", "")

	_, err := Load(p)
	if err == nil {
		t.Fatal("expected validation error for empty peer.local_ip via env")
	}
}

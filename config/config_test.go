package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(p, []byte(`
database:
  host: "localhost"
  port: 5432
  username: "u"
  password: "p"
  name: "vinbox"
kafka:
  host: "localhost"
  port: 9092
  vehicle_decoded_topic_name: "vehicle.decoded"
redis:
  host: "localhost"
  port: 6379
vinbox:
  http_addr: ":8080"
  kafka_consumer_group: "vin-api"
  api_tokens: ["t1", "t2"]
  vpic_base_url: "https://vpic.nhtsa.dot.gov"
  failure_ttl_seconds: 900
  upstream_rate_limit_per_minute: 60
  worker_backoff_4_seconds: 21600
`), 0o600))

	cfg, err := LoadConfig(p)
	require.NoError(t, err)
	require.Equal(t, "u", cfg.Database.Username)
	require.Equal(t, "postgres://u:p@localhost:5432/vinbox?sslmode=disable", cfg.Database.ConnString())
	require.Equal(t, "vehicle.decoded", cfg.Kafka.VehicleDecodedTopicName)
	require.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers())
	require.Equal(t, "localhost:6379", cfg.Redis.Addr())
	require.Equal(t, ":8080", cfg.VinBox.HTTPAddr)
	require.Equal(t, []string{"t1", "t2"}, cfg.VinBox.APITokens)
	require.Equal(t, 900, cfg.VinBox.FailureTTLSeconds)
	require.Equal(t, 21600, cfg.VinBox.WorkerBackoff4Seconds)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	p := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(p, []byte("database: [\n"), 0o600))
	_, err = LoadConfig(p)
	require.Error(t, err)
}

package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/BearBump/VinBox/config"
	"github.com/BearBump/VinBox/internal/integrations/decoder/fake"
	"github.com/BearBump/VinBox/internal/integrations/decoder/vpic"
	"github.com/BearBump/VinBox/internal/services/decodeproxy"
)

func writeSwagger(t *testing.T) string {
	t.Helper()
	sw := filepath.Join(t.TempDir(), "swagger.json")
	require.NoError(t, os.WriteFile(sw, []byte(`{"swagger":"2.0"}`), 0o600))
	return sw
}

func startAPI(t *testing.T, opts vinAPIOpts) (string, context.CancelFunc, chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	addrCh := make(chan string, 1)
	opts.httpAddr = "127.0.0.1:0"
	opts.onListen = func(httpAddr string) { addrCh <- httpAddr }

	// фейковый реестр, без Redis/Postgres/Kafka
	svc := decodeproxy.New(nil, nil, fake.New())
	errCh := make(chan error, 1)
	go func() { errCh <- runVinAPI(ctx, opts, svc) }()

	select {
	case addr := <-addrCh:
		return "http://" + addr, cancel, errCh
	case err := <-errCh:
		t.Fatalf("server did not start: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for listener")
	}
	return "", cancel, errCh
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(b)
}

func TestRunVinAPI_Endpoints(t *testing.T) {
	base, cancel, errCh := startAPI(t, vinAPIOpts{swaggerPath: writeSwagger(t), tokens: []string{"secret"}})

	code, body := get(t, base+"/swagger.json")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, `"swagger"`)

	code, body = get(t, base+"/healthz")
	require.Equal(t, http.StatusOK, code)
	require.JSONEq(t, `{"status":"ok"}`, body)

	code, _ = get(t, base+"/readyz")
	require.Equal(t, http.StatusOK, code)

	code, body = get(t, base+"/metrics")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, "go_goroutines")

	req, _ := http.NewRequest(http.MethodPost, base+"/decode-vin", strings.NewReader(`{"vin":"1HGBH41JXMN109186"}`))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, _ = http.NewRequest(http.MethodPost, base+"/decode-vin", strings.NewReader(`{"vin":"1HGBH41JXMN109186"}`))
	req.Header.Set("Authorization", "Bearer secret")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	b, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(b), `"vin":"1HGBH41JXMN109186"`)

	code, body = get(t, base+"/metrics")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, "vinbox_decode_total")

	cancel()
	require.ErrorIs(t, <-errCh, context.Canceled)
}

func TestRunVinAPI_NotReady(t *testing.T) {
	base, _, _ := startAPI(t, vinAPIOpts{
		swaggerPath: writeSwagger(t),
		ready:       func(context.Context) error { return errors.New("pg down") },
	})
	code, body := get(t, base+"/readyz")
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Contains(t, body, "not ready")
}

func TestRunVinAPI_SwaggerRequired(t *testing.T) {
	svc := decodeproxy.New(nil, nil, fake.New())
	err := runVinAPI(context.Background(), vinAPIOpts{httpAddr: "127.0.0.1:0"}, svc)
	require.Error(t, err)

	err = runVinAPI(context.Background(), vinAPIOpts{httpAddr: "127.0.0.1:0", swaggerPath: "/nope/swagger.json"}, svc)
	require.Error(t, err)
}

func TestNewRegistry(t *testing.T) {
	_, ok := newRegistry(&config.Config{VinBox: config.VinBoxConfig{VPICBaseURL: "fake"}}).(*fake.FakeClient)
	require.True(t, ok)

	p, ok := newRegistry(&config.Config{}).(*vpic.Client)
	require.True(t, ok)
	require.Equal(t, "vpic", p.Name())
}

package app

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ulle78/DeepMSI/internal/config"
	"github.com/ulle78/DeepMSI/internal/export"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Chdir(t.TempDir())
	cfg, err := config.Load("")
	require.NoError(t, err)
	return cfg
}

func quiet() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestNewExporters(t *testing.T) {
	exps, err := NewExporters(testConfig(t), quiet())
	require.NoError(t, err)
	assert.Len(t, exps, 2)
	assert.IsType(t, &export.SnapshotExporter{}, exps[export.StrategySnapshot])
	assert.IsType(t, &export.VectorExporter{}, exps[export.StrategyVector])
}

func TestNewServer(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.Port = 9191

	srv, handler, err := NewServer(cfg, quiet())
	require.NoError(t, err)
	assert.NotNil(t, handler)
	assert.Equal(t, "127.0.0.1:9191", srv.Addr)
	assert.Equal(t, cfg.Server.ReadTimeout, srv.ReadTimeout)
}

func TestServeShutsDownOnCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.Port = freePort(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, cfg, quiet()) }()

	url := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
}

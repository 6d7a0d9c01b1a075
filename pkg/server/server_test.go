package server

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/nimburion/docquery/pkg/observability/logger"
	"github.com/nimburion/docquery/pkg/server/router"
	ginrouter "github.com/nimburion/docquery/pkg/server/router/gin"
)

func TestServerStartAndShutdown(t *testing.T) {
	r := ginrouter.NewRouter()
	r.GET("/ping", func(c router.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	srv := NewServer(Config{Port: 0, ReadTimeout: 5 * time.Second, WriteTimeout: 5 * time.Second}, r, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)
	go func() { errChan <- srv.Start(ctx) }()

	select {
	case <-srv.Ready():
	case err := <-errChan:
		t.Fatalf("server failed to start: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}

	resp, err := http.Get("http://" + srv.Addr() + "/ping")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-errChan:
		if err != nil {
			t.Errorf("shutdown returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServerShutdownBeforeStart(t *testing.T) {
	srv := NewServer(Config{}, ginrouter.NewRouter(), logger.NewNop())
	if err := srv.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() = %v", err)
	}
	if srv.Addr() != "" {
		t.Errorf("Addr() = %q before Start", srv.Addr())
	}
}

func TestServerStartFailsOnBusyPort(t *testing.T) {
	first := NewServer(Config{Port: 0}, ginrouter.NewRouter(), logger.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = first.Start(ctx) }()
	<-first.Ready()

	_, port, _ := splitHostPort(first.Addr())
	second := NewServer(Config{Port: port}, ginrouter.NewRouter(), logger.NewNop())
	if err := second.Start(context.Background()); err == nil {
		t.Fatal("expected error when the port is taken")
	}
}

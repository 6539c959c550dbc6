//go:build !windows

package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"syscall"
	"testing"
	"time"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

// startServer runs Run in the background and waits until it answers.
func startServer(t *testing.T, ctx context.Context, watchEnabled bool) (string, <-chan error) {
	t.Helper()
	cfg := NewDefaultConfig()
	cfg.App.HTTP.Port = freePort(t)
	cfg.SQLite.Path = filepath.Join(t.TempDir(), "quill.db")
	cfg.Watch.Enabled = watchEnabled
	cfg.Watch.Debounce = 20 * time.Millisecond

	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, WithConfig(cfg), WithLogOutput(io.Discard))
	}()

	base := fmt.Sprintf("http://%s", cfg.App.HTTP.Address())
	deadline := time.Now().Add(3 * time.Second)
	for {
		resp, err := http.Get(base + "/health/live")
		if err == nil {
			resp.Body.Close()
			return base, done
		}
		select {
		case err := <-done:
			t.Fatalf("Run returned early: %v", err)
		default:
		}
		if time.Now().After(deadline) {
			t.Fatalf("server did not come up: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func waitReturn(t *testing.T, done <-chan error) {
	t.Helper()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after shutdown")
	}
}

func TestRun_ReturnsAfterSignal(t *testing.T) {
	for _, watchEnabled := range []bool{false, true} {
		t.Run(fmt.Sprintf("watch=%v", watchEnabled), func(t *testing.T) {
			_, done := startServer(t, context.Background(), watchEnabled)
			if err := syscall.Kill(syscall.Getpid(), syscall.SIGINT); err != nil {
				t.Fatal(err)
			}
			waitReturn(t, done)
		})
	}
}

func TestRun_ReturnsAfterContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	_, done := startServer(t, ctx, true)
	cancel()
	waitReturn(t, done)
}

func TestRun_ReadyReportsClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	base, done := startServer(t, ctx, false)
	defer func() {
		cancel()
		waitReturn(t, done)
	}()

	resp, err := http.Get(base + "/health/ready")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ready = %d", resp.StatusCode)
	}
	var body struct {
		Status     string `json:"status"`
		SSEClients *int   `json:"sse_clients"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "ok" || body.SSEClients == nil || *body.SSEClients != 0 {
		t.Errorf("ready body = %+v", body)
	}
}

package serialmux

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttachAdminRoutes_TailStreamsLines(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port, nil)
	httpMux := http.NewServeMux()
	mux.AttachAdminRoutes(httpMux)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mux.Monitor(ctx)

	srv := httptest.NewServer(httpMux)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/debug/serial-tail")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	ping, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, ": ping\n", ping)

	// the subscription is registered before the ping is flushed
	port.AddLines("button1_released")

	lines := make(chan string, 1)
	go func() {
		for {
			l, err := reader.ReadString('\n')
			if err != nil {
				return
			}
			if strings.HasPrefix(l, "data: ") {
				lines <- strings.TrimSpace(strings.TrimPrefix(l, "data: "))
				return
			}
		}
	}()
	select {
	case l := <-lines:
		assert.Equal(t, "button1_released", l)
	case <-time.After(2 * time.Second):
		t.Fatal("no SSE data received")
	}
}

func TestAttachAdminRoutes_TailRejectsPost(t *testing.T) {
	mux := NewSerialMux(NewTestableSerialPort(), nil)
	httpMux := http.NewServeMux()
	mux.AttachAdminRoutes(httpMux)

	req := httptest.NewRequest(http.MethodPost, "/debug/serial-tail", nil)
	req.RemoteAddr = "127.0.0.1:12345"
	rec := httptest.NewRecorder()
	httpMux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

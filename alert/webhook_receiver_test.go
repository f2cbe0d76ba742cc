package alert

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// testWebhookReceiver is a local HTTP server used to assert on delivered notifications.
type testWebhookReceiver struct {
	port     int
	requests chan []byte
	server   *http.Server
}

func newTestWebhookReceiver(port int) *testWebhookReceiver {
	s := &testWebhookReceiver{port: port, requests: make(chan []byte, 100)}
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		payload, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(451)
			return
		}
		w.WriteHeader(200)
		s.requests <- payload
	})
	s.server = &http.Server{Addr: fmt.Sprintf("127.0.0.1:%d", port), Handler: mux}
	go func() {
		_ = s.server.ListenAndServe()
	}()
	return s
}

func (s *testWebhookReceiver) stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = s.server.Shutdown(ctx)
}

func (s *testWebhookReceiver) waitForCallback(t *testing.T, timeout time.Duration) []byte {
	select {
	case data := <-s.requests:
		return data
	case <-time.After(timeout):
		assert.FailNow(t, "waitForCallback timed out")
	}
	return nil
}

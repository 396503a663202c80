package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivanceras/diwata-sub000/internal/logging"
)

func TestRequestLogging(t *testing.T) {
	tests := []struct {
		name      string
		requestID string
		status    int
		level     string
	}{
		{name: "generates request id", status: http.StatusOK, level: "DEBUG"},
		{name: "keeps caller request id", requestID: "abc-123", status: http.StatusServiceUnavailable, level: "ERROR"},
		{name: "client error", status: http.StatusMethodNotAllowed, level: "WARN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := logging.NewLogger(logging.Config{Level: "debug", Format: "json", Output: &buf})

			var fromContext *logging.Logger
			handler := RequestLogging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fromContext = logging.FromContext(r.Context())
				w.WriteHeader(tt.status)
			}))

			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			if tt.requestID != "" {
				req.Header.Set(RequestIDHeader, tt.requestID)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			got := rec.Header().Get(RequestIDHeader)
			require.NotEmpty(t, got)
			if tt.requestID != "" {
				assert.Equal(t, tt.requestID, got)
			}
			assert.Equal(t, tt.status, rec.Code)
			require.NotNil(t, fromContext)

			lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
			var entry map[string]any
			require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &entry))
			assert.Equal(t, "request completed", entry["msg"])
			assert.Equal(t, tt.level, entry["level"])
			assert.Equal(t, got, entry["request_id"])
			assert.Equal(t, float64(tt.status), entry["status"])
		})
	}
}

package middleware

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/nodekeeper/pkg/api"
)

func TestRecoveryMiddleware(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		handler        http.HandlerFunc
		name           string
		expectedStatus int
		expectPanic    bool
	}{
		{
			name: "Normal handler without panic",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte("success"))
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "Handler with panic (string)",
			handler: func(w http.ResponseWriter, r *http.Request) {
				panic("something went wrong")
			},
			expectPanic:    true,
			expectedStatus: http.StatusInternalServerError,
		},
		{
			name: "Handler with panic (error)",
			handler: func(w http.ResponseWriter, r *http.Request) {
				panic(io.ErrUnexpectedEOF)
			},
			expectPanic:    true,
			expectedStatus: http.StatusInternalServerError,
		},
		{
			name: "Handler with panic (custom type)",
			handler: func(w http.ResponseWriter, r *http.Request) {
				panic(struct{ msg string }{"critical error"})
			},
			expectPanic:    true,
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := RecoveryMiddleware(logger)(tt.handler)

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code, "status code mismatch")

			if !tt.expectPanic {
				assert.Equal(t, "success", w.Body.String())
				return
			}

			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			var resp api.ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.Equal(t, "internal server error", resp.Message)
			assert.NotContains(t, resp.Message, "critical error")
		})
	}
}

func TestRecoveryMiddleware_ReraisesAbortHandler(t *testing.T) {
	handler := RecoveryMiddleware(setupTestLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/test", nil))
	})
}

func TestRecoveryMiddleware_LogsStackTrace(t *testing.T) {
	var logBuf strings.Builder
	logger := slog.New(slog.NewTextHandler(&logBuf, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))

	handler := RecoveryMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("test panic for logging")
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/test", nil)
	req.RemoteAddr = "192.168.1.1:12345"
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	logOutput := logBuf.String()
	assert.Contains(t, logOutput, "Panic recovered")
	assert.Contains(t, logOutput, "test panic for logging")
	assert.Contains(t, logOutput, "POST")
	assert.Contains(t, logOutput, "/api/test")
	assert.Contains(t, logOutput, "goroutine", "log should contain stack trace")
}

func TestRecoveryMiddleware_ChainWithOtherMiddleware(t *testing.T) {
	var callOrder []string

	finalHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callOrder = append(callOrder, "handler")
		panic("test panic")
	})

	var logBuf strings.Builder
	logger := slog.New(slog.NewTextHandler(&logBuf, nil))

	// Цепочка как в сервере: recovery -> logging -> handler
	handler := RecoveryMiddleware(logger)(LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callOrder = append(callOrder, "logging")
		finalHandler.ServeHTTP(w, r)
	})))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	require.Len(t, callOrder, 2)
	assert.Equal(t, "logging", callOrder[0])
	assert.Equal(t, "handler", callOrder[1])
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}

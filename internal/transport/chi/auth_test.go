package chi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAPIKey_Disabled(t *testing.T) {
	for name, keys := range map[string][]string{"nil": nil, "empty strings": {"", ""}} {
		t.Run(name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			RequireAPIKey(keys)(okHandler()).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/query", http.NoBody))
			if rr.Code != http.StatusOK {
				t.Errorf("got %d, want %d", rr.Code, http.StatusOK)
			}
		})
	}
}

func TestRequireAPIKey(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    int
		message string
	}{
		{name: "missing header", want: http.StatusUnauthorized, message: "missing authorization header"},
		{name: "basic scheme", header: "Basic dXNlcjpwYXNz", want: http.StatusUnauthorized, message: "authorization header must use Bearer scheme"},
		{name: "invalid token", header: "Bearer wrong-key", want: http.StatusUnauthorized, message: "invalid api key"},
		{name: "token prefix", header: "Bearer key", want: http.StatusUnauthorized, message: "invalid api key"},
		{name: "empty token", header: "Bearer ", want: http.StatusUnauthorized, message: "invalid api key"},
		{name: "first key", header: "Bearer key1", want: http.StatusOK},
		{name: "second key", header: "Bearer key2", want: http.StatusOK},
	}

	handler := RequireAPIKey([]string{"key1", "", "key2"})(okHandler())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/query", http.NoBody)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.want {
				t.Fatalf("got %d, want %d", rr.Code, tt.want)
			}
			if tt.want != http.StatusUnauthorized {
				return
			}
			var errResp ErrorResponse
			if err := json.NewDecoder(rr.Body).Decode(&errResp); err != nil {
				t.Fatalf("decode error response: %v", err)
			}
			if errResp.Code != CodeUnauthorized || errResp.Message != tt.message {
				t.Errorf("error = %+v, want code %s message %q", errResp, CodeUnauthorized, tt.message)
			}
		})
	}
}

package upstream_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"xdownloader/internal/adapters/upstream"
	"xdownloader/internal/domain"
)

func TestQuotaClient_Remaining(t *testing.T) {
	testCases := []struct {
		name     string
		status   int
		body     string
		expected int64
		wantErr  error
	}{
		{"integer", http.StatusOK, `{"data":42}`, 42, nil},
		{"float", http.StatusOK, `{"data":17.0}`, 17, nil},
		{"zero", http.StatusOK, `{"data":0}`, 0, nil},
		{"missing data", http.StatusOK, `{}`, 0, domain.ErrUpstreamUnavailable},
		{"server error", http.StatusInternalServerError, `oops`, 0, domain.ErrUpstreamUnavailable},
		{"not json", http.StatusOK, `oops`, 0, domain.ErrUpstreamUnavailable},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// Arrange
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()
			q := upstream.NewQuotaClient(srv.URL, srv.Client(), time.Second)

			// Act
			n, err := q.Remaining(context.Background())

			// Assert
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Errorf("error: got %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if n != tc.expected {
				t.Errorf("remaining: got %d, want %d", n, tc.expected)
			}
		})
	}
}

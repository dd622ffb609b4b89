package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oracle/pkg/errors"
)

func restServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRestClient_DecodesJSON(t *testing.T) {
	srv := restServer(t, http.StatusOK, `{"value":"ok"}`)
	client := newRestClient("test", 600)

	var dest struct {
		Value string `json:"value"`
	}
	require.NoError(t, client.getJSON(context.Background(), srv.URL, nil, &dest))
	assert.Equal(t, "ok", dest.Value)
}

func TestRestClient_SetsHeaders(t *testing.T) {
	var gotUA, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(srv.Close)

	client := newRestClient("test", 600)
	var dest map[string]interface{}
	require.NoError(t, client.getJSON(context.Background(), srv.URL, map[string]string{"Authorization": "Bearer x"}, &dest))
	assert.Equal(t, "oracle/1.0", gotUA)
	assert.Equal(t, "Bearer x", gotAuth)
}

func TestRestClient_ErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		status int
		want   error
	}{
		{"server error is retryable", http.StatusInternalServerError, errors.ErrProviderUnavailable},
		{"bad gateway is retryable", http.StatusBadGateway, errors.ErrProviderUnavailable},
		{"rate limit is retryable", http.StatusTooManyRequests, errors.ErrProviderRateLimited},
		{"client error is invalid response", http.StatusBadRequest, errors.ErrProviderInvalidResponse},
		{"unauthorized is invalid response", http.StatusUnauthorized, errors.ErrProviderInvalidResponse},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := restServer(t, tc.status, `{"error":"nope"}`)
			client := newRestClient("test", 600)

			var dest map[string]interface{}
			err := client.getJSON(context.Background(), srv.URL, nil, &dest)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}
}

func TestRestClient_MalformedBody(t *testing.T) {
	srv := restServer(t, http.StatusOK, `<html>not json</html>`)
	client := newRestClient("test", 600)

	var dest map[string]interface{}
	err := client.getJSON(context.Background(), srv.URL, nil, &dest)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrProviderInvalidResponse))
}

func TestRestClient_ConnectionRefused(t *testing.T) {
	srv := restServer(t, http.StatusOK, `{}`)
	url := srv.URL
	srv.Close()

	client := newRestClient("test", 600)
	var dest map[string]interface{}
	err := client.getJSON(context.Background(), url, nil, &dest)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrProviderUnavailable))
}

func TestRestClient_PostJSON(t *testing.T) {
	var gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		_, _ = w.Write([]byte(`{"echo":true}`))
	}))
	t.Cleanup(srv.Close)

	client := newRestClient("test", 600)
	var dest struct {
		Echo bool `json:"echo"`
	}
	require.NoError(t, client.postJSON(context.Background(), srv.URL, map[string]string{"q": "test"}, nil, &dest))
	assert.Equal(t, "application/json", gotContentType)
	assert.True(t, dest.Echo)
}

func TestRestClient_RateLimiterHonorsContext(t *testing.T) {
	// one request per minute with burst 1: the second call must block and
	// then fail on the canceled context instead of waiting a minute
	srv := restServer(t, http.StatusOK, `{}`)
	client := newRestClient("test", 1)

	var dest map[string]interface{}
	require.NoError(t, client.getJSON(context.Background(), srv.URL, nil, &dest))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := client.getJSON(ctx, srv.URL, nil, &dest)
	assert.Error(t, err)
}

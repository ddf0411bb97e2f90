package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perpetuaapp/perpetua-client/internal/config"
	"github.com/perpetuaapp/perpetua-client/internal/domain"
	domainerrors "github.com/perpetuaapp/perpetua-client/internal/errors"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, handler http.Handler) *HTTPClient {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewHTTPClient(config.BackendConfig{
		URL:            srv.URL,
		RequestTimeout: 5 * time.Second,
		RateRPS:        1000,
		RateBurst:      1000,
	}, domain.Principal("w3gef-oqbai"), discardLogger())
	t.Cleanup(client.Close)

	return client
}

func TestHTTPClientDecodesOkPayload(t *testing.T) {
	var gotPath, gotPrincipal, gotRequestID string
	var gotBody []byte

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotPrincipal = r.Header.Get("X-Perpetua-Principal")
		gotRequestID = r.Header.Get("X-Request-ID")
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"Ok": {"shelf_id": "shelf-1", "owner": {"principal": "w3gef-oqbai"}, "title": "Reading", "items": [], "item_positions": [], "tags": [], "appears_in": [], "created_at": 1700000000000000001, "updated_at": 1700000000000000001, "public_editing": false}}`))
	}))

	shelf, err := client.GetShelf(context.Background(), "shelf-1")
	require.NoError(t, err)

	assert.Equal(t, "/rpc/get_shelf", gotPath)
	assert.Equal(t, "w3gef-oqbai", gotPrincipal)
	assert.NotEmpty(t, gotRequestID)
	assert.JSONEq(t, `{"shelf_id": "shelf-1"}`, string(gotBody))
	assert.Equal(t, "shelf-1", shelf.ShelfID)
	assert.Equal(t, uint64(1700000000000000001), shelf.CreatedAt)
}

func TestHTTPClientClassifiesErrPayload(t *testing.T) {
	tests := []struct {
		name     string
		response string
		wantErr  *domainerrors.Error
	}{
		{
			name:     "business error",
			response: `{"Err": "shelf limit reached"}`,
			wantErr:  domainerrors.ErrBackend,
		},
		{
			name:     "insufficient balance",
			response: `{"Err": "not enough balance to create shelf"}`,
			wantErr:  domainerrors.ErrInsufficientBalance,
		},
		{
			name:     "circular reference",
			response: `{"Err": "circular reference detected"}`,
			wantErr:  domainerrors.ErrCircularReference,
		},
		{
			name:     "unauthorized",
			response: `{"Err": "unauthorized"}`,
			wantErr:  domainerrors.ErrUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.response))
			}))

			_, err := client.GetShelf(context.Background(), "shelf-1")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestHTTPClientRejectsMalformedEnvelope(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{name: "neither Ok nor Err", response: `{"status": "fine"}`},
		{name: "not JSON at all", response: `<html>gateway error</html>`},
		{name: "Ok payload of wrong shape", response: `{"Ok": "just a string"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.response))
			}))

			_, err := client.GetShelf(context.Background(), "shelf-1")
			require.Error(t, err)
			assert.ErrorIs(t, err, domainerrors.ErrUnexpectedShape)
		})
	}
}

func TestHTTPClientTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	client := NewHTTPClient(config.BackendConfig{
		URL:            url,
		RequestTimeout: time.Second,
		RateRPS:        1000,
		RateBurst:      1000,
	}, domain.Anonymous, discardLogger())
	defer client.Close()

	_, err := client.GetShelf(context.Background(), "shelf-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrTransport)
}

func TestHTTPClientNon200WithoutEnvelope(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))

	_, err := client.GetShelf(context.Background(), "shelf-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrTransport)
}

func TestHTTPClientUnitOkResponse(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rpc/follow_tag", r.URL.Path)
		w.Write([]byte(`{"Ok": null}`))
	}))

	err := client.FollowTag(context.Background(), "fiction")
	require.NoError(t, err)
}

func TestHTTPClientAnonymousOmitsPrincipalHeader(t *testing.T) {
	var sawHeader bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawHeader = r.Header["X-Perpetua-Principal"]
		w.Write([]byte(`{"Ok": []}`))
	}))
	defer srv.Close()

	client := NewHTTPClient(config.BackendConfig{
		URL:            srv.URL,
		RequestTimeout: time.Second,
		RateRPS:        1000,
		RateBurst:      1000,
	}, domain.Anonymous, discardLogger())
	defer client.Close()

	_, err := client.GetMyFollowedTags(context.Background())
	require.NoError(t, err)
	assert.False(t, sawHeader)
}

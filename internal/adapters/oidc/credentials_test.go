package oidc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientCredentialsConfig_Validate(t *testing.T) {
	require.ErrorContains(t, ClientCredentialsConfig{}.Validate(), "client ID")
	require.ErrorContains(t, ClientCredentialsConfig{ClientID: "c"}.Validate(), "client secret")
	require.ErrorContains(t, ClientCredentialsConfig{ClientID: "c", ClientSecret: "s"}.Validate(), "token URL")
}

func TestNewClientCredentialsClient_AttachesCachedToken(t *testing.T) {
	var tokenCalls atomic.Int32
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenCalls.Add(1)
		_ = r.ParseForm()
		assert.Equal(t, "client_credentials", r.Form.Get("grant_type"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"abc","token_type":"bearer","expires_in":3600}`))
	}))
	defer tokenSrv.Close()

	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer abc" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer apiSrv.Close()

	client, err := NewClientCredentialsClient(context.Background(), ClientCredentialsConfig{
		ClientID: "worker", ClientSecret: "secret", TokenURL: tokenSrv.URL,
	})
	require.NoError(t, err)

	for range 2 {
		resp, err := client.Get(apiSrv.URL)
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	}
	assert.Equal(t, int32(1), tokenCalls.Load())
}

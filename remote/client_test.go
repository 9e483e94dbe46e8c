package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cityreport/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Validation(t *testing.T) {
	_, err := New("http://api.example.com", "key")
	assert.ErrorIs(t, err, ErrInsecureURL)

	_, err = New("https://api.example.com", "")
	assert.Error(t, err)

	_, err = New("://bad", "key")
	assert.Error(t, err)

	c, err := New("https://api.example.com/functions/v1/", "key")
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/functions/v1", c.baseURL)
}

func TestPushReport(t *testing.T) {
	var got models.Report
	var headers http.Header
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/reports", r.URL.Path)
		headers = r.Header.Clone()
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c, err := New(srv.URL, "secret", WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	report := models.Report{ID: "r1", Category: "routes", Status: models.StatusNew, CreatedAt: time.Now().UTC()}
	require.NoError(t, c.PushReport(context.Background(), report))

	assert.Equal(t, "r1", got.ID)
	assert.Equal(t, "Bearer secret", headers.Get("Authorization"))
	assert.Equal(t, "secret", headers.Get("apikey"))
	assert.Equal(t, "application/json", headers.Get("Content-Type"))
}

func TestPushReport_Non2xx(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	c, err := New(srv.URL, "secret", WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	err = c.PushReport(context.Background(), models.Report{ID: "r1"})
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadGateway, se.StatusCode)
	assert.Equal(t, "boom", se.Body)
}

func TestPushReport_ContextTimeout(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c, err := New(srv.URL, "secret", WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.Error(t, c.PushReport(ctx, models.Report{ID: "r1"}))
}

func TestDeliver(t *testing.T) {
	var got models.SecurityEvent
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/security-audit", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	c, err := New(srv.URL, "secret", WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	require.NoError(t, c.Deliver(context.Background(), models.SecurityEvent{ID: "e1", Kind: models.EventLogout, Subject: "admin@ville.fr"}))
	assert.Equal(t, models.EventLogout, got.Kind)
	assert.Equal(t, "remote", c.Name())
}

func TestAuth(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req AuthRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		if req.Action == ActionChangeEmail {
			_ = json.NewEncoder(w).Encode(AuthResponse{Success: false, Message: "Cet email est déjà utilisé"})
			return
		}
		_ = json.NewEncoder(w).Encode(AuthResponse{Success: true})
	}))
	defer srv.Close()

	c, err := New(srv.URL, "secret", WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	resp, err := c.Auth(context.Background(), AuthRequest{Action: ActionChangePassword, UserID: "admin-1"})
	require.NoError(t, err)
	assert.True(t, resp.Success)

	_, err = c.Auth(context.Background(), AuthRequest{Action: ActionChangeEmail, UserID: "admin-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "déjà utilisé")
}

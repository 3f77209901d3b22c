package speechclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/azure-speech/token", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer jwt-1", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"token":"scoped-token","region":"eastasia","expires_in":540}}`))
	}))
	defer server.Close()

	client := New(server.URL+"/api/v1/", "jwt-1", time.Second)
	token, err := client.FetchToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "scoped-token", token.Token)
	assert.Equal(t, "eastasia", token.Region)
	assert.EqualValues(t, 540, token.ExpiresIn)
}

func TestUploadSendsMultipartFields(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "an-1", r.FormValue("analysis_id"))
		assert.Equal(t, "prog-1", r.FormValue("progress_id"))
		assert.Equal(t, "1200", r.FormValue("latency_ms"))

		assert.Equal(t, "/speech/upload-analysis", r.URL.Path)

		analysis, _, err := r.FormFile("analysis_json")
		require.NoError(t, err)
		blob, err := io.ReadAll(analysis)
		require.NoError(t, err)
		assert.JSONEq(t, `{"NBest":[]}`, string(blob))

		_, header, err := r.FormFile("audio_file")
		require.NoError(t, err)
		assert.Equal(t, "take1.webm", header.Filename)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{"analysis_id": "an-1", "persisted": true},
		})
	}))
	defer server.Close()

	client := New(server.URL, "jwt-1", time.Second)
	result, err := client.Upload(context.Background(), UploadRequest{
		AnalysisID:   "an-1",
		AnalysisJSON: []byte(`{"NBest":[]}`),
		Audio:        []byte("webm-bytes"),
		AudioName:    "take1.webm",
		ProgressID:   "prog-1",
		LatencyMs:    1200,
	})
	require.NoError(t, err)
	assert.True(t, result.Persisted)
}

func TestUploadSurfacesEnvelopeError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":"daily_limit_exceeded","message":"daily limit exceeded"}}`))
	}))
	defer server.Close()

	client := New(server.URL, "", time.Second)
	_, err := client.Upload(context.Background(), UploadRequest{
		AnalysisID:   "an-1",
		AnalysisJSON: []byte(`{}`),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "daily_limit_exceeded")
}

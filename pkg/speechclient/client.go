package speechclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Token is a scoped provider credential issued by the API.
type Token struct {
	Token     string `json:"token"`
	Region    string `json:"region"`
	ExpiresIn int64  `json:"expires_in"`
}

// UploadRequest is one assessment upload. AnalysisID is the client-chosen
// idempotency key, so replaying a request is always safe.
type UploadRequest struct {
	AnalysisID   string
	AnalysisJSON []byte
	Audio        []byte
	AudioName    string
	ProgressID   string
	LatencyMs    int64
}

// UploadResult reports the server-side persistence outcome.
type UploadResult struct {
	AnalysisID string `json:"analysis_id"`
	Persisted  bool   `json:"persisted"`
	Duplicate  bool   `json:"duplicate"`
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Client calls the speech endpoints of a duotopia API server.
type Client struct {
	baseURL     string
	accessToken string
	http        *http.Client
}

// New builds a client. baseURL includes the API prefix, e.g.
// "https://host/api/v1".
func New(baseURL, accessToken string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		accessToken: accessToken,
		http:        &http.Client{Timeout: timeout},
	}
}

// FetchToken retrieves a scoped provider credential.
func (c *Client) FetchToken(ctx context.Context) (*Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/azure-speech/token", nil)
	if err != nil {
		return nil, err
	}
	c.authorize(req)

	var token Token
	if err := c.do(req, &token); err != nil {
		return nil, err
	}
	return &token, nil
}

// Upload posts one assessment to the server.
func (c *Client) Upload(ctx context.Context, up UploadRequest) (*UploadResult, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if err := writer.WriteField("analysis_id", up.AnalysisID); err != nil {
		return nil, err
	}
	if up.ProgressID != "" {
		if err := writer.WriteField("progress_id", up.ProgressID); err != nil {
			return nil, err
		}
	}
	if up.LatencyMs > 0 {
		if err := writer.WriteField("latency_ms", strconv.FormatInt(up.LatencyMs, 10)); err != nil {
			return nil, err
		}
	}

	part, err := writer.CreateFormFile("analysis_json", "analysis.json")
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(up.AnalysisJSON); err != nil {
		return nil, err
	}

	if len(up.Audio) > 0 {
		name := up.AudioName
		if name == "" {
			name = "recording.webm"
		}
		audioPart, err := writer.CreateFormFile("audio_file", name)
		if err != nil {
			return nil, err
		}
		if _, err := audioPart.Write(up.Audio); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/speech/upload-analysis", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.authorize(req)

	var result UploadResult
	if err := c.do(req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}
}

func (c *Client) do(req *http.Request, dest interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("malformed response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode >= 400 {
		if env.Error != nil {
			return fmt.Errorf("%s: %s", env.Error.Code, env.Error.Message)
		}
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	if dest != nil && len(env.Data) > 0 {
		return json.Unmarshal(env.Data, dest)
	}
	return nil
}

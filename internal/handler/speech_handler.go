package handler

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/duotopia/duotopia-api/internal/dto"
	"github.com/duotopia/duotopia-api/internal/service"
	appErrors "github.com/duotopia/duotopia-api/pkg/errors"
	"github.com/duotopia/duotopia-api/pkg/response"
)

// SpeechHandler exposes token issuance, assessment uploads, and recording
// downloads.
type SpeechHandler struct {
	service *service.SpeechService
	metrics *service.MetricsService
}

// NewSpeechHandler creates a new handler.
func NewSpeechHandler(svc *service.SpeechService, metrics *service.MetricsService) *SpeechHandler {
	return &SpeechHandler{service: svc, metrics: metrics}
}

// Token godoc
// @Summary Issue speech token
// @Description Hand the browser a short-lived scoped provider credential
// @Tags Speech
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /azure-speech/token [post]
func (h *SpeechHandler) Token(c *gin.Context) {
	start := time.Now()
	token, err := h.service.IssueToken(c.Request.Context(), claimsFromContext(c), c.ClientIP())
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.ObserveTokenIssue(time.Since(start))
	response.JSON(c, http.StatusOK, token, nil)
}

// Upload godoc
// @Summary Upload client assessment
// @Description Persist a browser-run assessment result with its audio. Idempotent on analysis_id.
// @Tags Speech
// @Accept multipart/form-data
// @Produce json
// @Param analysis_id formData string true "Client-chosen idempotency key (UUID)"
// @Param analysis_json formData file true "Raw provider score blob"
// @Param audio_file formData file false "Recorded audio"
// @Param progress_id formData string false "Student item progress id"
// @Param latency_ms formData integer false "Client-observed provider latency"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /speech/upload-analysis [post]
// @Security BearerAuth
func (h *SpeechHandler) Upload(c *gin.Context) {
	req, err := parseUploadForm(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	res, err := h.service.UploadAnalysis(c.Request.Context(), claimsFromContext(c), *req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// RecordingURL godoc
// @Summary Sign recording download URL
// @Tags Speech
// @Produce json
// @Param progressId path string true "Student item progress id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /recordings/{progressId}/url [get]
// @Security BearerAuth
func (h *SpeechHandler) RecordingURL(c *gin.Context) {
	token, expiresAt, err := h.service.SignRecordingURL(c.Request.Context(), c.Param("progressId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"token": token, "expires_at": expiresAt}, nil)
}

// DownloadRecording godoc
// @Summary Download recording
// @Description Stream a recording referenced by a signed token
// @Tags Speech
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200
// @Failure 401 {object} response.Envelope
// @Router /recordings/download/{token} [get]
func (h *SpeechHandler) DownloadRecording(c *gin.Context) {
	file, err := h.service.OpenRecording(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	c.Header("Content-Type", "application/octet-stream")
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, file)
}

func parseUploadForm(c *gin.Context) (*dto.UploadAnalysisRequest, error) {
	req := &dto.UploadAnalysisRequest{
		AnalysisID: c.PostForm("analysis_id"),
		ProgressID: c.PostForm("progress_id"),
	}
	if raw := c.PostForm("latency_ms"); raw != "" {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "latency_ms must be an integer")
		}
		req.LatencyMs = ms
	}

	analysis, err := formFileBytes(c, "analysis_json")
	if err != nil {
		return nil, err
	}
	if analysis == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "analysis_json file is required")
	}
	req.AnalysisJSON = analysis

	if audio, err := formFileBytes(c, "audio_file"); err != nil {
		return nil, err
	} else if audio != nil {
		req.Audio = audio
		if header, _ := c.FormFile("audio_file"); header != nil {
			req.AudioName = header.Filename
		}
	}
	return req, nil
}

func formFileBytes(c *gin.Context, field string) ([]byte, error) {
	header, err := c.FormFile(field)
	if err != nil {
		if err == http.ErrMissingFile {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid multipart form")
	}
	file, err := header.Open()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable form file")
	}
	defer file.Close() //nolint:errcheck

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable form file")
	}
	return data, nil
}

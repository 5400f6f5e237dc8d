package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/miso-46/AI-minutes/internal/api/handler"
	"github.com/miso-46/AI-minutes/internal/api/middleware"
	"github.com/miso-46/AI-minutes/internal/apperr"
	"github.com/miso-46/AI-minutes/internal/auth"
	"github.com/miso-46/AI-minutes/internal/domain"
	"github.com/miso-46/AI-minutes/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPipeline struct {
	owner    domain.UserID
	filename string
	body     string
	err      error
}

func (s *stubPipeline) Submit(ctx context.Context, owner domain.UserID, filename string, r io.Reader) (*service.SubmitResult, error) {
	s.owner, s.filename = owner, filename
	data, _ := io.ReadAll(r)
	s.body = string(data)
	if s.err != nil {
		return nil, s.err
	}
	return &service.SubmitResult{MinutesID: 7, Status: domain.JobStatusQueued}, nil
}

type stubMinutes struct {
	caller domain.UserID
	err    error
}

func (s *stubMinutes) Status(ctx context.Context, caller domain.UserID, id uint) (*service.StatusResult, error) {
	s.caller = caller
	if s.err != nil {
		return nil, s.err
	}
	return &service.StatusResult{MinutesID: id, Status: domain.JobStatusProcessing, Progress: 80}, nil
}

func (s *stubMinutes) Result(ctx context.Context, caller domain.UserID, id uint) (*service.ResultView, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &service.ResultView{MinutesID: id, Title: "t", VideoURL: "https://signed", TranscriptID: 3, Transcript: "text"}, nil
}

func (s *stubMinutes) List(ctx context.Context, caller domain.UserID) ([]service.ListItem, error) {
	return []service.ListItem{{MinutesID: 1, Title: "a", Status: domain.JobStatusCompleted}}, s.err
}

func (s *stubMinutes) Detail(ctx context.Context, caller domain.UserID, id uint) (*service.DetailView, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &service.DetailView{MinutesID: id, Messages: []service.MessageView{}}, nil
}

type stubChat struct {
	sessionID uint
	message   string
	err       error
}

func (s *stubChat) Start(ctx context.Context, caller domain.UserID, minutesID uint) (*service.StartResult, error) {
	id := uint(11)
	return &service.StartResult{IsEmbedded: true, SessionID: &id}, s.err
}

func (s *stubChat) Send(ctx context.Context, caller domain.UserID, sessionID uint, text string) (*service.MessageResult, error) {
	s.sessionID, s.message = sessionID, text
	if s.err != nil {
		return nil, s.err
	}
	return &service.MessageResult{MessageID: 5, Role: domain.RoleAssistant, Message: "answer", CreatedAt: time.Unix(0, 0).UTC(), IsReferenced: true}, nil
}

func (s *stubChat) References(ctx context.Context, caller domain.UserID, messageID uint) ([]service.ReferenceItem, error) {
	return []service.ReferenceItem{{ChunkID: 1, Content: "c", Rank: 1}}, s.err
}

type stubSummary struct{ err error }

func (s *stubSummary) Generate(ctx context.Context, caller domain.UserID, transcriptID uint) (string, error) {
	return "# summary", s.err
}

type testServer struct {
	router   *gin.Engine
	pipeline *stubPipeline
	minutes  *stubMinutes
	chat     *stubChat
	summary  *stubSummary
	token    string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	verifier, err := auth.NewJWTVerifier("test-secret", "", "")
	require.NoError(t, err)
	token, err := verifier.Sign("alice", time.Hour)
	require.NoError(t, err)

	s := &testServer{
		pipeline: &stubPipeline{},
		minutes:  &stubMinutes{},
		chat:     &stubChat{},
		summary:  &stubSummary{},
		token:    token,
	}
	s.router = SetupRouter(RouterDeps{
		Pipeline: s.pipeline,
		Minutes:  s.minutes,
		Chat:     s.chat,
		Summary:  s.summary,
		Verifier: verifier,
		HealthChecks: map[string]handler.HealthCheck{
			"database": func(ctx context.Context) error { return nil },
		},
		CORS:           middleware.CORSConfig{AllowedOrigins: []string{"https://app.example"}},
		MaxUploadBytes: 1 << 20,
	}, "test")
	return s
}

func (s *testServer) do(t *testing.T, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Authorization", "Bearer "+s.token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealthAndMetricsNeedNoToken(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))

	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealthReportsDownDependency(t *testing.T) {
	verifier, err := auth.NewJWTVerifier("x", "", "")
	require.NoError(t, err)
	router := SetupRouter(RouterDeps{
		Verifier: verifier,
		HealthChecks: map[string]handler.HealthCheck{
			"database": func(ctx context.Context) error { return errors.New("refused") },
		},
	}, "test")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decode(t, w)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, map[string]interface{}{"database": "down"}, body["dependencies"])
}

func TestAPIRequiresBearerToken(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/minutes", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/minutes", nil)
	req.Header.Set("Authorization", "Bearer forged.token.value")
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUploadVideo(t *testing.T) {
	s := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "定例会議.mp4")
	require.NoError(t, err)
	fw.Write([]byte("video-bytes"))
	require.NoError(t, mw.Close())

	w := s.do(t, http.MethodPost, "/api/v1/videos", &buf, mw.FormDataContentType())
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, float64(7), body["minutes_id"])
	assert.Equal(t, "queued", body["status"])

	assert.Equal(t, domain.UserID("alice"), s.pipeline.owner)
	assert.Equal(t, "定例会議.mp4", s.pipeline.filename)
	assert.Equal(t, "video-bytes", s.pipeline.body)
}

func TestUploadWithoutFile(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodPost, "/api/v1/videos", strings.NewReader("{}"), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadRejectedType(t *testing.T) {
	s := newTestServer(t)
	s.pipeline.err = apperr.Validation("pipeline.Submit", "unsupported file type \".avi\"")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "a.avi")
	fw.Write([]byte("x"))
	mw.Close()

	w := s.do(t, http.MethodPost, "/api/v1/videos", &buf, mw.FormDataContentType())
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation", decode(t, w)["kind"])
}

func TestStatusAndResult(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/v1/videos/9/status", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(9), body["minutes_id"])
	assert.Equal(t, float64(80), body["progress"])
	assert.Equal(t, domain.UserID("alice"), s.minutes.caller)

	w = s.do(t, http.MethodGet, "/api/v1/videos/9/result", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://signed", decode(t, w)["video_url"])

	w = s.do(t, http.MethodGet, "/api/v1/videos/abc/status", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestErrorKindsMapToStatus(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{apperr.New(apperr.KindUnauthorized, "op", "missing user identity"), http.StatusUnauthorized},
		{apperr.Forbidden("op"), http.StatusForbidden},
		{apperr.NotFound("op", "minutes"), http.StatusNotFound},
		{apperr.New(apperr.KindConflict, "op", "processing is not complete"), http.StatusConflict},
		{apperr.New(apperr.KindIntegrity, "op", "no transcript"), http.StatusConflict},
		{apperr.New(apperr.KindTranscoding, "op", "ffmpeg"), http.StatusBadGateway},
		{apperr.New(apperr.KindTranscription, "op", "whisper"), http.StatusBadGateway},
		{apperr.New(apperr.KindEmbedding, "op", "jina"), http.StatusBadGateway},
		{apperr.New(apperr.KindGeneration, "op", "chat"), http.StatusBadGateway},
		{errors.New("db is on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			s := newTestServer(t)
			s.minutes.err = tt.err
			w := s.do(t, http.MethodGet, "/api/v1/videos/1/result", nil, "")
			assert.Equal(t, tt.code, w.Code)
			if tt.code == http.StatusInternalServerError {
				assert.Equal(t, "internal server error", decode(t, w)["error"])
			}
		})
	}
}

func TestMinutesEndpoints(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/v1/minutes", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	items, ok := decode(t, w)["minutes"].([]interface{})
	require.True(t, ok)
	assert.Len(t, items, 1)

	w = s.do(t, http.MethodGet, "/api/v1/minutes/4", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []interface{}{}, decode(t, w)["messages"])
}

func TestChatEndpoints(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/chat/start", strings.NewReader(`{"minutes_id":3}`), "application/json")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(11), decode(t, w)["session_id"])

	w = s.do(t, http.MethodPost, "/api/v1/chat/send", strings.NewReader(`{"session_id":11,"message":"予算は？"}`), "application/json")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "assistant", body["role"])
	assert.Equal(t, true, body["is_referenced"])
	assert.Equal(t, uint(11), s.chat.sessionID)
	assert.Equal(t, "予算は？", s.chat.message)

	w = s.do(t, http.MethodPost, "/api/v1/chat/send", strings.NewReader(`{"session_id":11}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/chat/messages/5/references", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	refs := decode(t, w)["references"].([]interface{})
	require.Len(t, refs, 1)
	assert.Equal(t, float64(1), refs[0].(map[string]interface{})["rank"])
}

func TestSummaryEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/summaries", strings.NewReader(`{"transcript_id":3}`), "application/json")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "# summary", decode(t, w)["summary"])

	s.summary.err = apperr.New(apperr.KindGeneration, "summary.Generate", "HTTP 503")
	w = s.do(t, http.MethodPost, "/api/v1/summaries", strings.NewReader(`{"transcript_id":3}`), "application/json")
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/chat/send", nil)
	req.Header.Set("Origin", "https://app.example")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/himanishpuri/PulseRate/pkg/logger"
	"github.com/himanishpuri/PulseRate/pkg/models"
	"github.com/himanishpuri/PulseRate/pkg/pulserate"
	"github.com/himanishpuri/PulseRate/pkg/pulserate/recording"
)

func setupTestServer(t *testing.T, origins ...string) (*Server, http.Handler) {
	t.Helper()

	quiet := logger.New(logger.Config{Level: logger.ERROR, Output: io.Discard})
	service, err := pulserate.NewService(
		pulserate.WithDBPath(filepath.Join(t.TempDir(), "server_test.sqlite3")),
		pulserate.WithLogger(quiet),
	)
	require.NoError(t, err)
	t.Cleanup(func() { service.Close() })

	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s := NewServer(service, &ServerConfig{
		Port:           0,
		DBPath:         "test",
		TempDir:        t.TempDir(),
		SampleRate:     50,
		WindowSize:     150,
		AllowedOrigins: origins,
	})
	s.log = quiet
	s.hub.log = quiet
	return s, s.setupRoutes()
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// oneBeatPerSecond is 3 s of a triangular pulse at 50 Hz.
func oneBeatPerSecond() []models.SampleInput {
	out := make([]models.SampleInput, 150)
	for i := range out {
		p := i % 50
		v := p
		if p > 25 {
			v = 50 - p
		}
		out[i] = models.SampleInput{Value: float64(v), TimestampMs: uint32(i * 20)}
	}
	return out
}

func startSession(t *testing.T, h http.Handler) models.Session {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/api/sessions", StartSessionRequest{Label: "test"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[models.Session](t, rec)
}

func TestRootAndHealth(t *testing.T) {
	_, h := setupTestServer(t)

	rec := do(t, h, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "PulseRate API")

	rec = do(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode[map[string]string](t, rec)["status"])

	rec = do(t, h, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionLifecycle(t *testing.T) {
	_, h := setupTestServer(t)

	session := startSession(t, h)
	assert.Equal(t, "test", session.Label)
	assert.Equal(t, "http", session.Source)
	assert.Equal(t, 150, session.WindowSize)

	rec := do(t, h, http.MethodPost, "/api/sessions/"+session.ID+"/samples",
		AppendSamplesRequest{Samples: oneBeatPerSecond()})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Equal(t, 150, decode[AppendSamplesResponse](t, rec).Accepted)

	rec = do(t, h, http.MethodGet, "/api/sessions/"+session.ID+"/heartrate", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	hr := decode[HeartRateResponse](t, rec)
	assert.True(t, hr.OK)
	assert.InDelta(t, 60.0, hr.BPM, 1e-9)
	assert.Equal(t, 3, hr.PeakCount)

	rec = do(t, h, http.MethodGet, "/api/sessions/"+session.ID+"/peaks", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, decode[PeaksResponse](t, rec).Count)

	rec = do(t, h, http.MethodGet, "/api/sessions/"+session.ID+"/readings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	readings := decode[ReadingsResponse](t, rec)
	require.Equal(t, 1, readings.Count)
	assert.InDelta(t, 60.0, readings.Readings[0].BPM, 1e-9)

	rec = do(t, h, http.MethodGet, "/api/sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[ListSessionsResponse](t, rec).Count)

	rec = do(t, h, http.MethodGet, "/api/sessions/"+session.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, session.ID, decode[models.Session](t, rec).ID)

	rec = do(t, h, http.MethodDelete, "/api/sessions/"+session.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/sessions/"+session.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHeartRateWithoutSignal(t *testing.T) {
	_, h := setupTestServer(t)
	session := startSession(t, h)

	rec := do(t, h, http.MethodGet, "/api/sessions/"+session.ID+"/heartrate", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	hr := decode[HeartRateResponse](t, rec)
	assert.False(t, hr.OK)
	assert.Zero(t, hr.BPM)
	assert.NotContains(t, rec.Body.String(), "bpm")
}

func TestStartSessionWithoutBody(t *testing.T) {
	_, h := setupTestServer(t)

	rec := do(t, h, http.MethodPost, "/api/sessions", nil)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestUnknownSession(t *testing.T) {
	_, h := setupTestServer(t)

	for _, path := range []string{
		"/api/sessions/missing",
		"/api/sessions/missing/heartrate",
		"/api/sessions/missing/peaks",
		"/api/sessions/missing/readings",
	} {
		rec := do(t, h, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.Equal(t, http.StatusNotFound, decode[ErrorResponse](t, rec).Code, path)
	}

	rec := do(t, h, http.MethodPost, "/api/sessions/missing/samples",
		AppendSamplesRequest{Samples: []models.SampleInput{{Value: 1}}})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAppendSamplesValidation(t *testing.T) {
	_, h := setupTestServer(t)
	session := startSession(t, h)
	path := "/api/sessions/" + session.ID + "/samples"

	rec := do(t, h, http.MethodPost, path, AppendSamplesRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, path, AppendSamplesRequest{
		Samples: make([]models.SampleInput, MaxSamplesPerRequest+1),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader("{"))
	raw := httptest.NewRecorder()
	h.ServeHTTP(raw, req)
	assert.Equal(t, http.StatusBadRequest, raw.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	_, h := setupTestServer(t)

	assert.Equal(t, http.StatusMethodNotAllowed, do(t, h, http.MethodPut, "/api/sessions", nil).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, h, http.MethodPost, "/api/sessions/x/heartrate", nil).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, h, http.MethodGet, "/api/recordings", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/sessions/x/unknown", nil).Code)
}

func uploadRecording(t *testing.T, h http.Handler, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("label", "upload"))
	fw, err := mw.CreateFormFile("recording", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/recordings", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestReplayRecording(t *testing.T) {
	_, h := setupTestServer(t)

	path := filepath.Join(t.TempDir(), "rest.wav")
	require.NoError(t, recording.WriteWAV(path, recording.NewSynth(50, 72, 0).Generate(10*50), 50))
	content, err := os.ReadFile(path)
	require.NoError(t, err)

	rec := uploadRecording(t, h, "rest.wav", content)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	resp := decode[RecordingResponse](t, rec)
	assert.Equal(t, 500, resp.SampleCount)
	assert.Equal(t, int64(10000), resp.DurationMs)
	assert.NotEmpty(t, resp.Readings)
	assert.InDelta(t, 72.0, resp.MeanBPM, 3.0)

	rec = do(t, h, http.MethodGet, "/api/sessions/"+resp.SessionID+"/readings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, len(resp.Readings), decode[ReadingsResponse](t, rec).Count)
}

func TestReplayRecordingRejectsBadInput(t *testing.T) {
	_, h := setupTestServer(t)

	rec := uploadRecording(t, h, "notes.txt", []byte("hello"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = uploadRecording(t, h, "fake.wav", []byte("definitely not a RIFF file"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetrics(t *testing.T) {
	_, h := setupTestServer(t)
	session := startSession(t, h)
	do(t, h, http.MethodPost, "/api/sessions/"+session.ID+"/samples",
		AppendSamplesRequest{Samples: oneBeatPerSecond()})

	rec := do(t, h, http.MethodGet, "/api/health/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	m := decode[MetricsResponse](t, rec)
	assert.Equal(t, 1, m.SessionCount)
	assert.Equal(t, 1, m.Service.LiveSessions)
	assert.Equal(t, uint64(150), m.Service.SamplesAppended)
}

func TestCORS(t *testing.T) {
	_, h := setupTestServer(t, "http://allowed.test")

	req := httptest.NewRequest(http.MethodOptions, "/api/sessions", nil)
	req.Header.Set("Origin", "http://allowed.test")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://allowed.test", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://other.test")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "10.0.0.1", getClientIP(req))

	req.Header.Set("X-Real-IP", "10.0.0.2")
	assert.Equal(t, "10.0.0.2", getClientIP(req))

	req.Header.Set("X-Forwarded-For", "10.0.0.3, 10.0.0.4")
	assert.Equal(t, "10.0.0.3", getClientIP(req))
}

func TestWebsocketReceivesReadings(t *testing.T) {
	s, h := setupTestServer(t)
	ts := httptest.NewServer(loggingMiddleware(h))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	readings, unsubscribe := s.service.Subscribe()
	defer unsubscribe()
	go s.hub.Run(ctx, readings)

	session, err := s.service.StartSession("ws", "http")
	require.NoError(t, err)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?session=" + session.ID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return s.hub.Count() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, s.service.AppendSamples(session.ID, oneBeatPerSecond()))
	reading, err := s.service.EstimateHeartRate(session.ID)
	require.NoError(t, err)
	require.NotNil(t, reading)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var got models.Reading
	require.NoError(t, json.Unmarshal(msg, &got))
	assert.Equal(t, session.ID, got.SessionID)
	assert.InDelta(t, 60.0, got.BPM, 1e-9)
}

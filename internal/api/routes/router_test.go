package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/smartcare/backend/internal/adapters/cache"
	"github.com/zatekoja/smartcare/backend/internal/api/handlers"
	"github.com/zatekoja/smartcare/backend/internal/api/middleware"
	"github.com/zatekoja/smartcare/backend/internal/application/services"
	redisclient "github.com/zatekoja/smartcare/backend/internal/infrastructure/clients/redis"
	"github.com/zatekoja/smartcare/backend/pkg/config"
)

type testServer struct {
	handler  http.Handler
	hospital *services.Hospital
	cache    *middleware.CacheMiddleware
}

func newTestServer(t *testing.T, overrideBurst int) *testServer {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redisclient.NewClientFromAddr(mr.Addr())
	t.Cleanup(func() { _ = client.Close() })

	h := services.NewHospital(config.Defaults(), nil)
	cacheProvider := cache.NewRedisAdapter(client)
	h.Queue.SetCache(cacheProvider)
	h.Queue.SetAutoAllocate(false)
	boardCache := middleware.NewCacheMiddleware(cacheProvider, nil)
	h.SetEventEmitter(services.Emitters{boardCache})

	health := handlers.NewHealthHandler("test")
	health.AddDependency("redis", client)

	router := NewRouter(Handlers{
		Queue:      handlers.NewQueueHandler(h.Queue),
		Crowd:      handlers.NewCrowdHandler(h.Crowd, h.Queue),
		Doctors:    handlers.NewDoctorHandler(h.Pool, h.Roster),
		Allocation: handlers.NewAllocationHandler(h.Allocator, h.Protector, h.Roster),
		Emergency:  handlers.NewEmergencyHandler(h.Overrides, nil),
		Activity:   handlers.NewActivityHandler(h.Activity),
		Admin:      handlers.NewAdminHandler(h.Demo),
		Health:     health,
	}, middleware.NewActorRateLimiter(60, overrideBurst), boardCache, nil, "*")

	return &testServer{handler: router.SetupRoutes(), hospital: h, cache: boardCache}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func checkInBody(patientID string, symptoms ...string) map[string]interface{} {
	return map[string]interface{}{
		"patient_id":   patientID,
		"patient_name": "Test " + patientID,
		"age":          40,
		"symptoms":     symptoms,
		"department":   "general",
	}
}

func TestRouter_CheckInReplay(t *testing.T) {
	s := newTestServer(t, 5)
	key := map[string]string{handlers.HeaderIdempotencyKey: "kiosk-7-0001"}

	first := s.do(t, http.MethodPost, "/api/queue/checkin", checkInBody("P-1", "cough"), key)
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
	firstBody := decode(t, first)
	assert.Equal(t, "general", firstBody["department"])
	assert.EqualValues(t, 1, firstBody["position"])

	again := s.do(t, http.MethodPost, "/api/queue/checkin", checkInBody("P-1", "cough"), key)
	require.Equal(t, http.StatusOK, again.Code, again.Body.String())
	againBody := decode(t, again)
	assert.Equal(t, firstBody["entry_id"], againBody["entry_id"])
	assert.Equal(t, true, againBody["replayed"])

	list := decode(t, s.do(t, http.MethodGet, "/api/queue?department=general", nil, nil))
	assert.EqualValues(t, 1, list["count"])
}

func TestRouter_ConsultationFlow(t *testing.T) {
	s := newTestServer(t, 5)

	low := decode(t, s.do(t, http.MethodPost, "/api/queue/checkin", checkInBody("P-low", "runny nose"), nil))
	high := decode(t, s.do(t, http.MethodPost, "/api/queue/checkin", checkInBody("P-high", "high fever"), nil))

	pos := s.do(t, http.MethodGet, "/api/queue/entries/"+low["entry_id"].(string)+"/position", nil, nil)
	require.Equal(t, http.StatusOK, pos.Code)
	assert.EqualValues(t, 2, decode(t, pos)["position"])

	next := s.do(t, http.MethodPost, "/api/queue/next", map[string]interface{}{"department": "general"}, nil)
	require.Equal(t, http.StatusOK, next.Code, next.Body.String())
	called := decode(t, next)["entry"].(map[string]interface{})
	assert.Equal(t, high["entry_id"], called["entry_id"])

	busy := s.do(t, http.MethodPost, "/api/queue/next", map[string]interface{}{"department": "general"}, nil)
	assert.Equal(t, http.StatusConflict, busy.Code)
	assert.NotNil(t, decode(t, busy)["current_patient"])

	cur := decode(t, s.do(t, http.MethodGet, "/api/queue/current?department=general", nil, nil))
	assert.NotNil(t, cur["current_patient"])

	done := s.do(t, http.MethodPost, "/api/queue/complete", map[string]interface{}{"department": "general"}, nil)
	require.Equal(t, http.StatusOK, done.Code)

	cur = decode(t, s.do(t, http.MethodGet, "/api/queue/current?department=general", nil, nil))
	assert.Nil(t, cur["current_patient"])

	missing := s.do(t, http.MethodGet, "/api/queue/entries/nope/position", nil, nil)
	assert.Equal(t, http.StatusNotFound, missing.Code)
}

func TestRouter_EmergencyOverrides(t *testing.T) {
	s := newTestServer(t, 5)
	entry := decode(t, s.do(t, http.MethodPost, "/api/queue/checkin", checkInBody("P-9", "sore throat"), nil))
	body := map[string]interface{}{"entry_id": entry["entry_id"], "reason": "deteriorating"}

	nurse := map[string]string{
		handlers.HeaderActorID:   "N-4",
		handlers.HeaderActorName: "Nurse Okafor",
		handlers.HeaderActorRole: "nurse",
	}
	denied := s.do(t, http.MethodPost, "/api/emergency/escalate", body, nurse)
	require.Equal(t, http.StatusForbidden, denied.Code, denied.Body.String())
	deniedBody := decode(t, denied)
	assert.Equal(t, "FORBIDDEN", deniedBody["code"])
	assert.NotEmpty(t, deniedBody["result"].(map[string]interface{})["log_id"])

	anonymous := s.do(t, http.MethodPost, "/api/emergency/escalate", body, nil)
	assert.Equal(t, http.StatusUnauthorized, anonymous.Code)

	doctor := map[string]string{
		handlers.HeaderActorID:   "D-1",
		handlers.HeaderActorName: "Dr. Bello",
		handlers.HeaderActorRole: "Doctor",
	}
	ok := s.do(t, http.MethodPost, "/api/emergency/escalate", body, doctor)
	require.Equal(t, http.StatusOK, ok.Code, ok.Body.String())
	assert.Equal(t, true, decode(t, ok)["success"])

	verify := s.do(t, http.MethodGet, "/api/emergency/verify", nil, nil)
	require.Equal(t, http.StatusOK, verify.Code)
	v := decode(t, verify)
	assert.Equal(t, true, v["valid"])
	assert.EqualValues(t, 3, v["entries"])

	logs := decode(t, s.do(t, http.MethodGet, "/api/emergency/logs?actor_id=N-4", nil, nil))
	assert.Equal(t, "memory", logs["source"])

	since := s.do(t, http.MethodGet, "/api/emergency/logs?since=2026-01-01T00:00:00Z", nil, nil)
	assert.Equal(t, http.StatusNotImplemented, since.Code)
}

func TestRouter_OverrideWithoutEntryIsAudited(t *testing.T) {
	s := newTestServer(t, 5)
	doctor := map[string]string{
		handlers.HeaderActorID:   "D-1",
		handlers.HeaderActorRole: "doctor",
	}

	w := s.do(t, http.MethodPost, "/api/emergency/escalate", map[string]interface{}{"entry_id": ""}, doctor)
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "VALIDATION", body["code"])
	assert.NotEmpty(t, body["result"].(map[string]interface{})["log_id"])

	w = s.do(t, http.MethodPost, "/api/emergency/boost", map[string]interface{}{}, doctor)
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	verify := decode(t, s.do(t, http.MethodGet, "/api/emergency/verify", nil, nil))
	assert.Equal(t, true, verify["valid"])
	assert.EqualValues(t, 2, verify["entries"])

	// a body that cannot be parsed never reaches the audit log
	req := httptest.NewRequest(http.MethodPost, "/api/emergency/escalate", bytes.NewBufferString(`{"entry_id":`))
	req.Header.Set(handlers.HeaderActorID, "D-1")
	req.Header.Set(handlers.HeaderActorRole, "doctor")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	verify = decode(t, s.do(t, http.MethodGet, "/api/emergency/verify", nil, nil))
	assert.EqualValues(t, 2, verify["entries"])
}

func TestRouter_BackgroundRecalculationRefreshesBoard(t *testing.T) {
	s := newTestServer(t, 5)

	first := s.do(t, http.MethodGet, "/api/queue/status", nil, nil)
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
	cached := s.do(t, http.MethodGet, "/api/queue/status", nil, nil)
	assert.Equal(t, "HIT", cached.Header().Get("X-Cache"))

	// the periodic loop changes state without an HTTP write
	s.hospital.Queue.Recalculate(context.Background())
	fresh := s.do(t, http.MethodGet, "/api/queue/status", nil, nil)
	assert.Equal(t, "MISS", fresh.Header().Get("X-Cache"))

	s.hospital.Allocator.AutoAllocateAll(context.Background())
	again := s.do(t, http.MethodGet, "/api/queue/status", nil, nil)
	assert.Equal(t, "HIT", again.Header().Get("X-Cache"))
}

func TestRouter_OverrideRateLimit(t *testing.T) {
	s := newTestServer(t, 2)
	doctor := map[string]string{
		handlers.HeaderActorID:   "D-2",
		handlers.HeaderActorRole: "doctor",
	}
	body := map[string]interface{}{"entry_id": "missing", "boost_amount": 2}

	for i := 0; i < 2; i++ {
		w := s.do(t, http.MethodPost, "/api/emergency/boost", body, doctor)
		assert.Equal(t, http.StatusNotFound, w.Code)
	}
	limited := s.do(t, http.MethodPost, "/api/emergency/boost", body, doctor)
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.NotEmpty(t, limited.Header().Get("Retry-After"))

	// another actor has its own bucket
	other := s.do(t, http.MethodPost, "/api/emergency/boost", body, map[string]string{
		handlers.HeaderActorID:   "D-3",
		handlers.HeaderActorRole: "doctor",
	})
	assert.Equal(t, http.StatusNotFound, other.Code)
}

func TestRouter_ErrorMapping(t *testing.T) {
	s := newTestServer(t, 5)

	unknown := s.do(t, http.MethodGet, "/api/ai/departments/podiatry", nil, nil)
	assert.Equal(t, http.StatusNotFound, unknown.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/queue/checkin", bytes.NewBufferString(`{"patient_id":`))
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION", decode(t, w)["code"])

	noPatient := s.do(t, http.MethodPost, "/api/queue/checkin", map[string]interface{}{"age": 30}, nil)
	assert.Equal(t, http.StatusBadRequest, noPatient.Code)

	wrongMethod := s.do(t, http.MethodGet, "/api/queue/checkin", nil, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, wrongMethod.Code)
}

func TestRouter_Health(t *testing.T) {
	s := newTestServer(t, 5)

	w := s.do(t, http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))

	body := decode(t, w)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "ok", body["checks"].(map[string]interface{})["redis"])
}

func TestRouter_CORSPreflight(t *testing.T) {
	s := newTestServer(t, 5)

	req := httptest.NewRequest(http.MethodOptions, "/api/queue/checkin", nil)
	req.Header.Set("Origin", "https://board.example.org")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), handlers.HeaderIdempotencyKey)
}

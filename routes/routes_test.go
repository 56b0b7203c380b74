package routes

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"rerolab/handlers"
	"rerolab/models"

	"github.com/gin-gonic/gin"
)

type sessions struct{ ok bool }

func (s sessions) Current() (models.Session, bool) {
	return models.Session{Identity: "ada@lab.test", Credential: "t"}, s.ok
}

func bundle(ok bool) *handlers.HandlerBundle {
	reply := func(c *gin.Context) { c.String(http.StatusOK, c.FullPath()) }
	return &handlers.HandlerBundle{
		Sessions:              sessions{ok: ok},
		GetSlotsHandler:       reply,
		RefreshHandler:        reply,
		BookSlotHandler:       reply,
		CancelSlotHandler:     reply,
		RetryHandler:          reply,
		DisconnectHandler:     reply,
		SlotsSocketHandler:    reply,
		GetFrameHandler:       reply,
		GetStreamStatsHandler: reply,
		StartStreamHandler:    reply,
		StopStreamHandler:     reply,
		GetSessionHandler:     reply,
		LoginHandler:          reply,
		RegisterHandler:       reply,
		LogoutHandler:         reply,
		HealthHandler:         reply,
	}
}

func TestRegisterRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		method, path string
		session      bool
		want         int
	}{
		{http.MethodGet, "/health", false, http.StatusOK},
		{http.MethodGet, "/slots", false, http.StatusOK},
		{http.MethodPost, "/slots/refresh", false, http.StatusOK},
		{http.MethodPost, "/slots/4/book", false, http.StatusUnauthorized},
		{http.MethodPost, "/slots/4/book", true, http.StatusOK},
		{http.MethodPost, "/slots/4/cancel", false, http.StatusUnauthorized},
		{http.MethodGet, "/stream/frame", false, http.StatusOK},
		{http.MethodPost, "/stream/stop", false, http.StatusOK},
		{http.MethodPost, "/session/login", false, http.StatusOK},
		{http.MethodPost, "/connection/retry", false, http.StatusOK},
		{http.MethodPost, "/connection/disconnect", false, http.StatusOK},
		{http.MethodGet, "/missing", false, http.StatusNotFound},
	}
	for _, tc := range cases {
		r := gin.New()
		RegisterRoutes(r, bundle(tc.session), nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(tc.method, tc.path, nil))
		if w.Code != tc.want {
			t.Errorf("%s %s (session %v) = %d, want %d", tc.method, tc.path, tc.session, w.Code, tc.want)
		}
	}
}

func TestRegisterRoutes_CORSPreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, bundle(false), []string{"http://localhost:5173"})

	req := httptest.NewRequest(http.MethodOptions, "/slots", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("allow origin = %q", got)
	}
}

package navigation

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/transient-web/internal/routes"
)

func testTable(t *testing.T) *routes.Table {
	t.Helper()
	view := func() (gin.HandlerFunc, error) { return func(c *gin.Context) {}, nil }
	table, err := routes.NewTable(
		routes.Descriptor{Path: "/", Name: routes.HomeRoute, View: view},
		routes.Descriptor{Path: "/about", Name: "about", View: view},
	)
	if err != nil {
		t.Fatalf("NewTable returned error: %v", err)
	}
	return table
}

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	table := testTable(t)

	router := gin.New()
	router.Use(sessions.Sessions(FlashCookieName, cookie.NewStore([]byte("test-secret"))))
	router.GET("/expire", func(c *gin.Context) {
		New(c, table, NoticeSessionExpired).Navigate("home")
	})
	router.GET("/go-about", func(c *gin.Context) {
		New(c, table, "").Navigate("about")
	})
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"notices": PopNotices(c)})
	})
	return router
}

func TestNavigateRedirectsAndStoresNotice(t *testing.T) {
	router := newRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/expire", nil))

	if rec.Code != http.StatusFound {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/" {
		t.Fatalf("unexpected location: %s", loc)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("expected flash cookie to be set")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if body := rec.Body.String(); body != `{"notices":["session_expired"]}` {
		t.Fatalf("unexpected body: %s", body)
	}
}

func TestNavigateWithoutNotice(t *testing.T) {
	router := newRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/go-about", nil))

	if rec.Code != http.StatusFound {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/about" {
		t.Fatalf("unexpected location: %s", loc)
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Fatal("expected no flash cookie")
	}
}

func TestPopNoticesEmpty(t *testing.T) {
	router := newRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if body := rec.Body.String(); body != `{"notices":null}` {
		t.Fatalf("unexpected body: %s", body)
	}
}

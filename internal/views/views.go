// Package views は各画面のハンドラーを遅延生成するローダーを提供します。
//
// 見た目は最小限のプレースホルダーで、バックエンド呼び出しはすべて認証付きリクエストラッパー経由です。
package views

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"

	"github.com/yourusername/transient-web/internal/auth"
	"github.com/yourusername/transient-web/internal/client"
	"github.com/yourusername/transient-web/internal/logging"
	"github.com/yourusername/transient-web/internal/navigation"
	"github.com/yourusername/transient-web/internal/routes"
	"github.com/yourusername/transient-web/internal/session"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Backend はバックエンドAPIの呼び出し口です。*client.Client が満たします。
type Backend interface {
	Do(ctx context.Context, nav client.Navigator, r client.Request) (*client.Outcome, error)
	Get(ctx context.Context, nav client.Navigator, state session.State, path string, params url.Values) (*client.Outcome, error)
	PostJSON(ctx context.Context, nav client.Navigator, state session.State, path string, payload any) (*client.Outcome, error)
}

// Views は画面ローダーの集合です。routes.Views を満たします。
type Views struct {
	backend Backend
	table   *routes.Table
	limiter auth.Throttle

	errorTemplate func() (*template.Template, error)
}

// New は Views を作成します。ルートテーブル構築後に Bind を呼んでください。
func New(backend Backend) *Views {
	return &Views{
		backend:       backend,
		limiter:       auth.NewLimiter(),
		errorTemplate: sync.OnceValues(func() (*template.Template, error) { return parse("error") }),
	}
}

// SetLimiter はログイン試行の制限に使うリミッターを差し替えます。既定はプロセス内の auth.Limiter です。
func (v *Views) SetLimiter(l auth.Throttle) {
	v.limiter = l
}

// Bind はリダイレクト先の解決に使うルートテーブルを設定します。
func (v *Views) Bind(table *routes.Table) {
	v.table = table
}

// user はバックエンドの /api/self, /api/user/:username が返すユーザー情報です。
type user struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type page struct {
	User    string
	Notices []string
	Data    any
}

type errorData struct {
	Message string
	Kind    string
}

var noticeTexts = map[string]string{
	navigation.NoticeSessionExpired:  "Your session has expired. Please log in again.",
	navigation.NoticeLoginFailed:     "Username or password does not match.",
	navigation.NoticeLoggedOut:       "You have been logged out.",
	navigation.NoticeTooManyAttempts: "Too many failed logins. Please try again later.",
}

func parse(name string) (*template.Template, error) {
	funcs := template.FuncMap{
		"noticeText": func(code string) string {
			if text, ok := noticeTexts[code]; ok {
				return text
			}
			return code
		},
	}
	return template.New("layout").Funcs(funcs).ParseFS(templatesFS, "templates/layout.html", "templates/"+name+".html")
}

// Home はトップ画面です。
func (v *Views) Home() routes.ViewLoader {
	return v.static("home")
}

// About は説明画面です。
func (v *Views) About() routes.ViewLoader {
	return v.static("about")
}

// Login はログインフォーム画面です。送信は LoginSubmit が受けます。
func (v *Views) Login() routes.ViewLoader {
	return v.static("login")
}

// Settings はログインユーザー自身の情報を表示します。
func (v *Views) Settings() routes.ViewLoader {
	return v.fetching("settings", func(c *gin.Context) (string, url.Values) {
		return "/api/self", nil
	}, func() any { return &user{} })
}

// Profile は任意ユーザーのプロフィールを表示します。
func (v *Views) Profile() routes.ViewLoader {
	return v.fetching("profile", func(c *gin.Context) (string, url.Values) {
		return "/api/user/" + url.PathEscape(c.Param("username")), nil
	}, func() any { return &user{} })
}

// Following はフォロー中のユーザー一覧を表示します。
func (v *Views) Following() routes.ViewLoader {
	return v.fetching("following", func(c *gin.Context) (string, url.Values) {
		return "/api/followings", nil
	}, func() any { return &[]user{} })
}

func (v *Views) static(name string) routes.ViewLoader {
	return func() (gin.HandlerFunc, error) {
		t, err := parse(name)
		if err != nil {
			return nil, err
		}
		return func(c *gin.Context) {
			v.render(c, t, http.StatusOK, nil)
		}, nil
	}
}

// fetching はバックエンドから取得したデータを表示する画面のローダーを作ります。
func (v *Views) fetching(name string, target func(*gin.Context) (string, url.Values), newData func() any) routes.ViewLoader {
	return func() (gin.HandlerFunc, error) {
		t, err := parse(name)
		if err != nil {
			return nil, err
		}
		return func(c *gin.Context) {
			path, params := target(c)
			state := session.Read(c.Request)
			nav := navigation.New(c, v.table, navigation.NoticeSessionExpired)

			outcome, err := v.backend.Get(c.Request.Context(), nav, state, path, params)
			if err != nil {
				v.renderError(c, err)
				return
			}
			if !outcome.OK() {
				// 401: ラッパーがすでにホームへリダイレクトしている
				return
			}

			data := newData()
			if err := outcome.Response.DecodeJSON(data); err != nil {
				v.renderError(c, err)
				return
			}
			v.render(c, t, http.StatusOK, data)
		}, nil
	}
}

func (v *Views) render(c *gin.Context, t *template.Template, code int, data any) {
	p := page{
		Notices: navigation.PopNotices(c),
		Data:    data,
	}
	if state := session.Read(c.Request); state.Authenticated() {
		p.User = state.Username
	}
	c.Render(code, render.HTML{Template: t, Name: "layout", Data: p})
}

// renderError は伝播されたエラーを画面に表示します。
func (v *Views) renderError(c *gin.Context, err error) {
	logger := logging.FromContext(c.Request.Context())

	code := http.StatusInternalServerError
	data := errorData{Message: "An unexpected error occurred."}

	var statusErr *client.StatusError
	var transportErr *client.TransportError
	switch {
	case errors.As(err, &statusErr):
		code = statusErr.StatusCode
		data = errorData{Message: statusErr.Message(), Kind: string(statusErr.Kind())}
	case errors.As(err, &transportErr):
		code = http.StatusBadGateway
		data = errorData{Message: "The server could not be reached.", Kind: string(client.KindConnection)}
	}
	logger.Warn("rendering error page", "status", code, "error", err)

	t, parseErr := v.errorTemplate()
	if parseErr != nil {
		logger.Error("failed to load error template", "error", parseErr)
		c.String(code, data.Message)
		return
	}
	v.render(c, t, code, data)
}

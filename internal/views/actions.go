package views

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/transient-web/internal/client"
	"github.com/yourusername/transient-web/internal/logging"
	"github.com/yourusername/transient-web/internal/navigation"
	"github.com/yourusername/transient-web/internal/routes"
	"github.com/yourusername/transient-web/internal/session"
)

var errNoSessionIssued = errors.New("backend did not issue a session cookie")

type identification struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginSubmit は POST /login のハンドラーです。
// 資格情報をバックエンドへ転送し、発行されたセッションIDとユーザー名をクッキーに保存します。
func (v *Views) LoginSubmit(c *gin.Context) {
	username := strings.TrimSpace(c.PostForm("username"))
	password := c.PostForm("password")
	if username == "" || password == "" {
		_ = navigation.AddNotice(c, navigation.NoticeLoginFailed)
		c.Redirect(http.StatusFound, v.table.Path("login"))
		return
	}

	ctx := c.Request.Context()
	logger := logging.FromContext(ctx)
	ip := c.ClientIP()
	retryAfter, err := v.limiter.RetryAfter(ctx, ip)
	if err != nil {
		logger.Warn("login limiter unavailable", "error", err)
	}
	if retryAfter > 0 {
		c.Header("Retry-After", strconv.FormatInt(int64(retryAfter.Seconds()), 10))
		_ = navigation.AddNotice(c, navigation.NoticeTooManyAttempts)
		c.Redirect(http.StatusFound, v.table.Path("login"))
		return
	}

	// 資格情報の不一致はバックエンドが 401 を返すため、ラッパー経由でホームへ戻る
	nav := navigation.New(c, v.table, navigation.NoticeLoginFailed)
	outcome, err := v.backend.PostJSON(ctx, nav, session.State{}, "/api/user/login", identification{
		Username: username,
		Password: password,
	})
	if err != nil {
		// 未登録ユーザー (404) なども 401 と同じ扱いにし、ユーザーの有無を画面に出さない
		if !isRejection(err) {
			v.renderError(c, err)
			return
		}
		nav.Navigate(routes.HomeRoute)
	}
	if err != nil || !outcome.OK() {
		remaining, rerr := v.limiter.RecordFailure(ctx, ip)
		if rerr != nil {
			logger.Warn("login limiter unavailable", "error", rerr)
		}
		logger.Info("login rejected", "username", username, "remaining_attempts", remaining)
		return
	}
	if err := v.limiter.Reset(ctx, ip); err != nil {
		logger.Warn("login limiter unavailable", "error", err)
	}

	issued := findCookie(outcome.Response.Header, session.SessionIDCookie)
	if issued == nil || issued.Value == "" {
		v.renderError(c, &client.StatusError{
			Method:     http.MethodPost,
			URL:        "/api/user/login",
			StatusCode: http.StatusBadGateway,
			Body:       []byte(errNoSessionIssued.Error()),
		})
		return
	}

	http.SetCookie(c.Writer, &http.Cookie{
		Name:     session.SessionIDCookie,
		Value:    issued.Value,
		Path:     "/",
		Expires:  issued.Expires,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     session.UsernameCookie,
		Value:    username,
		Path:     "/",
		Expires:  issued.Expires,
		SameSite: http.SameSiteLaxMode,
	})

	logger.Info("user logged in", "username", username)
	c.Redirect(http.StatusFound, v.table.Path(routes.HomeRoute))
}

// Logout は POST /logout のハンドラーです。クッキーを先に失効させてからバックエンドのセッションを破棄します。
func (v *Views) Logout(c *gin.Context) {
	state := session.Read(c.Request)
	expireCookie(c, session.SessionIDCookie)
	expireCookie(c, session.UsernameCookie)

	nav := navigation.New(c, v.table, navigation.NoticeSessionExpired)
	outcome, err := v.backend.Do(c.Request.Context(), nav, client.Request{
		Method:  http.MethodPost,
		URL:     "/api/user/logout",
		Cookies: state.Cookies(),
	})
	if err != nil {
		v.renderError(c, err)
		return
	}
	if !outcome.OK() {
		return
	}

	if err := navigation.AddNotice(c, navigation.NoticeLoggedOut); err != nil {
		logging.FromContext(c.Request.Context()).Warn("failed to save notice", "error", err)
	}
	c.Redirect(http.StatusFound, v.table.Path(routes.HomeRoute))
}

// isRejection はバックエンドがログイン要求を 4xx で拒否したかを返します。
func isRejection(err error) bool {
	var statusErr *client.StatusError
	return errors.As(err, &statusErr) &&
		statusErr.StatusCode >= http.StatusBadRequest && statusErr.StatusCode < http.StatusInternalServerError
}

func findCookie(header http.Header, name string) *http.Cookie {
	resp := http.Response{Header: header}
	for _, ck := range resp.Cookies() {
		if ck.Name == name {
			return ck
		}
	}
	return nil
}

func expireCookie(c *gin.Context, name string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:    name,
		Value:   "",
		Path:    "/",
		MaxAge:  -1,
		Expires: time.Unix(0, 0),
	})
}

// Package navigation は gin リクエスト上での画面遷移（リダイレクト）と、遷移先に表示する通知を扱います。
package navigation

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/transient-web/internal/logging"
	"github.com/yourusername/transient-web/internal/routes"
)

// FlashCookieName は通知用セッションのクッキー名です。
const FlashCookieName = "tw_flash"

// 遷移先で表示する通知の種類
const (
	NoticeSessionExpired  = "session_expired"
	NoticeLoginFailed     = "login_failed"
	NoticeLoggedOut       = "logged_out"
	NoticeTooManyAttempts = "too_many_attempts"
)

// Navigator は 1 リクエスト分のリダイレクトを行います。client.Navigator を満たします。
type Navigator struct {
	c      *gin.Context
	table  *routes.Table
	notice string
}

// New は Navigator を作成します。notice が空でなければ遷移時に通知として保存します。
func New(c *gin.Context, table *routes.Table, notice string) *Navigator {
	return &Navigator{c: c, table: table, notice: notice}
}

// Navigate は名前付きルートへ 302 でリダイレクトし、以降のハンドラーを中断します。
func (n *Navigator) Navigate(route string) {
	if n.c.Writer.Written() {
		return
	}
	if n.notice != "" {
		if err := AddNotice(n.c, n.notice); err != nil {
			logging.FromContext(n.c.Request.Context()).Warn("failed to save notice", "notice", n.notice, "error", err)
		}
	}
	n.c.Redirect(http.StatusFound, n.table.Path(route))
	n.c.Abort()
}

// AddNotice は次の画面で表示する通知を保存します。レスポンス書き込み前に呼ぶ必要があります。
func AddNotice(c *gin.Context, notice string) error {
	s := sessions.Default(c)
	s.AddFlash(notice)
	return s.Save()
}

// PopNotices は保存済みの通知を取り出して消去します。
func PopNotices(c *gin.Context) []string {
	s := sessions.Default(c)
	flashes := s.Flashes()
	if len(flashes) == 0 {
		return nil
	}
	_ = s.Save()

	notices := make([]string, 0, len(flashes))
	for _, f := range flashes {
		if v, ok := f.(string); ok {
			notices = append(notices, v)
		}
	}
	return notices
}

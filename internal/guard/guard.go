// Package guard は画面遷移ごとの認証チェック（ナビゲーションガード）を提供します。
package guard

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/transient-web/internal/logging"
	"github.com/yourusername/transient-web/internal/routes"
	"github.com/yourusername/transient-web/internal/session"
)

// Kind は遷移判定の種別です。
type Kind int

const (
	// KindProceed は遷移をそのまま続行します。
	KindProceed Kind = iota
	// KindRedirect は Route で指定されたルートへリダイレクトします。
	KindRedirect
)

// String はメトリクスやログに使う名前を返します。
func (k Kind) String() string {
	if k == KindRedirect {
		return "redirect"
	}
	return "proceed"
}

// Decision はナビゲーションガードの判定結果です。
type Decision struct {
	Kind  Kind
	Route string // KindRedirect のときのリダイレクト先ルート名
}

// Proceed は遷移続行の判定を返します。
func Proceed() Decision {
	return Decision{Kind: KindProceed}
}

// RedirectTo は指定ルートへのリダイレクト判定を返します。
func RedirectTo(route string) Decision {
	return Decision{Kind: KindRedirect, Route: route}
}

// Decide は遷移先ルートとセッション状態から遷移可否を判定します。
// 副作用のない純粋関数で、current（遷移元、初回表示では nil）は判定に影響しません。
func Decide(target, current *routes.Descriptor, state session.State) Decision {
	if target == nil {
		return Proceed()
	}
	authenticated := state.Authenticated()
	switch {
	case target.RequiresAuth && !authenticated:
		return RedirectTo(routes.HomeRoute)
	case target.NoAuth && authenticated:
		return RedirectTo(routes.HomeRoute)
	default:
		return Proceed()
	}
}

// DecisionRecorder はガード判定を記録します。
type DecisionRecorder interface {
	RecordDecision(route, outcome string)
}

// Guard はルートテーブルに基づいて遷移前チェックを行う gin ミドルウェアを生成します。
type Guard struct {
	table    *routes.Table
	recorder DecisionRecorder
}

// New は Guard を作成します。recorder は nil でも構いません。
func New(table *routes.Table, recorder DecisionRecorder) *Guard {
	return &Guard{table: table, recorder: recorder}
}

// Middleware は target への遷移前に必ず実行されるミドルウェアを返します。
func (g *Guard) Middleware(target *routes.Descriptor) gin.HandlerFunc {
	return func(c *gin.Context) {
		state := session.Read(c.Request)
		current := g.table.MatchURL(c.Request.Referer())

		decision := Decide(target, current, state)
		if g.recorder != nil {
			g.recorder.RecordDecision(target.Name, decision.Kind.String())
		}

		logger := logging.FromContext(c.Request.Context())
		if decision.Kind == KindProceed {
			logger.Debug("navigation allowed", "route", target.Name)
			c.Next()
			return
		}

		location := g.table.Path(decision.Route)
		logger.Debug("navigation redirected",
			"route", target.Name,
			"redirect", decision.Route,
			"authenticated", state.Authenticated(),
		)
		c.Redirect(http.StatusFound, location)
		c.Abort()
	}
}

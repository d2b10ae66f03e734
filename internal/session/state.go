// Package session はブラウザのクッキーからセッション状態を読み取る読み取り専用アクセサを提供します。
//
// ログイン/ログアウトによる書き込みはこのパッケージの外で行われます。
package session

import (
	"net/http"
)

const (
	// SessionIDCookie はセッションIDを保持するクッキー名です。
	SessionIDCookie = "sessionId"
	// UsernameCookie はユーザー名を保持するクッキー名です。
	UsernameCookie = "username"
)

// CookieStore は名前でクッキーを引けるストレージです。*http.Request が満たします。
type CookieStore interface {
	Cookie(name string) (*http.Cookie, error)
}

// State はクッキーから導出されたセッション状態です。
type State struct {
	SessionID string
	Username  string
}

// Authenticated はセッションIDとユーザー名が両方とも空でない場合に true を返します。
func (s State) Authenticated() bool {
	return s.SessionID != "" && s.Username != ""
}

// Cookies はバックエンドへ転送するためのクッキーを返します。空の値は含めません。
func (s State) Cookies() []*http.Cookie {
	var cookies []*http.Cookie
	if s.SessionID != "" {
		cookies = append(cookies, &http.Cookie{Name: SessionIDCookie, Value: s.SessionID})
	}
	if s.Username != "" {
		cookies = append(cookies, &http.Cookie{Name: UsernameCookie, Value: s.Username})
	}
	return cookies
}

// Read はストアから現在のセッション状態を読み取ります。
// キャッシュは持たず、呼び出しごとにストアを参照します。
func Read(store CookieStore) State {
	if store == nil {
		return State{}
	}
	return State{
		SessionID: value(store, SessionIDCookie),
		Username:  value(store, UsernameCookie),
	}
}

func value(store CookieStore, name string) string {
	c, err := store.Cookie(name)
	if err != nil || c == nil {
		return ""
	}
	return c.Value
}

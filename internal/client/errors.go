package client

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// ErrorKind はバックエンドがエラーレスポンスの "kind" に載せる分類です。
type ErrorKind string

const (
	KindConnection          ErrorKind = "connection"
	KindNotFound            ErrorKind = "not_found"
	KindDataViolation       ErrorKind = "data_volation" // バックエンドの綴りに合わせている
	KindUniquenessViolation ErrorKind = "uniqueness_violation"
	KindUnexpected          ErrorKind = "unexpected"
)

// StatusError は 401 以外のエラーステータスをそのまま呼び出し元へ伝えるエラーです。
// ステータス・ヘッダー・ボディは受信したものから変更しません。
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.StatusCode)
}

type errorBody struct {
	Message string    `json:"message"`
	Kind    ErrorKind `json:"kind"`
}

// Kind はボディの JSON から分類を読み取ります。読めない場合は空文字です。
func (e *StatusError) Kind() ErrorKind {
	var body errorBody
	if err := json.Unmarshal(e.Body, &body); err != nil {
		return ""
	}
	return body.Kind
}

// Message はボディの JSON の "message"、無ければボディ文字列を返します。
func (e *StatusError) Message() string {
	var body errorBody
	if err := json.Unmarshal(e.Body, &body); err == nil && body.Message != "" {
		return body.Message
	}
	return string(e.Body)
}

// TransportError はレスポンスを受け取れなかった（接続断など）呼び出しのエラーです。
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

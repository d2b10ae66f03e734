// Package client はバックエンドAPI呼び出しを包み、セッション切れ（401）時にホームへ戻す
// 認証付きリクエストラッパーを提供します。
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/yourusername/transient-web/internal/logging"
	"github.com/yourusername/transient-web/internal/routes"
	"github.com/yourusername/transient-web/internal/session"
)

// MaxBodyBytes は読み込む応答ボディの上限です。超えた場合は *TransportError になります。
const MaxBodyBytes = 10 << 20

var errBodyTooLarge = errors.New("response body too large")

// Doer は HTTP リクエストを実行します。*http.Client が満たします。
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Navigator は名前付きルートへの遷移（リダイレクト）を行います。
type Navigator interface {
	Navigate(route string)
}

// NavigatorFunc は関数を Navigator として扱うためのアダプターです。
type NavigatorFunc func(route string)

// Navigate は f(route) を呼びます。
func (f NavigatorFunc) Navigate(route string) {
	f(route)
}

// RequestRecorder は呼び出し結果を記録します。
type RequestRecorder interface {
	RecordRequest(method, outcome string)
}

// OutcomeKind は呼び出し結果の種別です。
type OutcomeKind int

const (
	// OutcomeSuccess はステータス 400 未満の応答です。
	OutcomeSuccess OutcomeKind = iota
	// OutcomeAuthFailure は 401 を受けてホームへのリダイレクトを発行した結果です。Response は nil です。
	OutcomeAuthFailure
)

// Response はバックエンドの応答です。ボディは受信したまま保持します。
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// DecodeJSON はボディを JSON として v に読み込みます。
func (r *Response) DecodeJSON(v any) error {
	if r == nil {
		return errors.New("response is nil")
	}
	return json.Unmarshal(r.Body, v)
}

// Outcome は 1 回の呼び出しの結果です。エラー伝播の場合は Outcome ではなく error が返ります。
type Outcome struct {
	Kind     OutcomeKind
	Response *Response
}

// OK は成功応答かどうかを返します。
func (o *Outcome) OK() bool {
	return o != nil && o.Kind == OutcomeSuccess && o.Response != nil
}

// Request は呼び出し内容です。値は加工せずに転送します。
type Request struct {
	Method  string
	URL     string // BaseURL からの相対パス、または絶対URL
	Params  url.Values
	Header  http.Header
	Body    []byte
	Cookies []*http.Cookie
}

// Options は Client の設定です。
type Options struct {
	BaseURL    string
	HTTPClient Doer
	Logger     *slog.Logger
	Recorder   RequestRecorder
	HomeRoute  string // 401 時の遷移先。既定は routes.HomeRoute
}

// Client は認証付きリクエストラッパーです。状態を持たず、並行に使えます。
type Client struct {
	base     *url.URL
	doer     Doer
	logger   *slog.Logger
	recorder RequestRecorder
	home     string
}

// New は Client を作成します。
func New(opts Options) (*Client, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base url: %w", err)
	}
	if !base.IsAbs() {
		return nil, fmt.Errorf("base url must be absolute: %q", opts.BaseURL)
	}

	c := &Client{
		base:     base,
		doer:     opts.HTTPClient,
		logger:   opts.Logger,
		recorder: opts.Recorder,
		home:     opts.HomeRoute,
	}
	if c.doer == nil {
		c.doer = http.DefaultClient
	}
	if c.home == "" {
		c.home = routes.HomeRoute
	}
	return c, nil
}

// Get は GET リクエストを送ります。
func (c *Client) Get(ctx context.Context, nav Navigator, state session.State, path string, params url.Values) (*Outcome, error) {
	return c.Do(ctx, nav, Request{
		Method:  http.MethodGet,
		URL:     path,
		Params:  params,
		Cookies: state.Cookies(),
	})
}

// PostJSON は payload を JSON にして POST します。
func (c *Client) PostJSON(ctx context.Context, nav Navigator, state session.State, path string, payload any) (*Outcome, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return c.Do(ctx, nav, Request{
		Method:  http.MethodPost,
		URL:     path,
		Header:  http.Header{"Content-Type": []string{"application/json"}},
		Body:    body,
		Cookies: state.Cookies(),
	})
}

// Do はリクエストを 1 回だけ実行し、結果を分類します。
//   - 400 未満: OutcomeSuccess
//   - 401: nav でホームへ遷移し OutcomeAuthFailure（error は nil）
//   - その他のエラーステータス: *StatusError
//   - 応答なし: *TransportError
func (c *Client) Do(ctx context.Context, nav Navigator, r Request) (*Outcome, error) {
	req, err := c.newRequest(ctx, r)
	if err != nil {
		return nil, err
	}
	logger := c.loggerFor(ctx).With("method", req.Method, "url", req.URL.String())

	resp, err := c.doer.Do(req)
	if err != nil {
		c.record(req.Method, "unhandled")
		logger.Warn("backend request failed", "error", err)
		return nil, &TransportError{Method: req.Method, URL: req.URL.String(), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes+1))
	if err == nil && len(body) > MaxBodyBytes {
		err = fmt.Errorf("%w: more than %d bytes", errBodyTooLarge, MaxBodyBytes)
	}
	if err != nil {
		c.record(req.Method, "unhandled")
		return nil, &TransportError{Method: req.Method, URL: req.URL.String(), Err: err}
	}

	switch {
	case resp.StatusCode < http.StatusBadRequest:
		c.record(req.Method, "success")
		return &Outcome{
			Kind: OutcomeSuccess,
			Response: &Response{
				StatusCode: resp.StatusCode,
				Header:     resp.Header,
				Body:       body,
			},
		}, nil
	case resp.StatusCode == http.StatusUnauthorized:
		c.record(req.Method, "auth_failure")
		logger.Info("backend session expired, redirecting", "route", c.home)
		if nav != nil {
			nav.Navigate(c.home)
		}
		return &Outcome{Kind: OutcomeAuthFailure}, nil
	default:
		c.record(req.Method, "error")
		logger.Debug("backend returned error status", "status", resp.StatusCode)
		return nil, &StatusError{
			Method:     req.Method,
			URL:        req.URL.String(),
			StatusCode: resp.StatusCode,
			Header:     resp.Header,
			Body:       body,
		}
	}
}

func (c *Client) newRequest(ctx context.Context, r Request) (*http.Request, error) {
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}

	ref, err := url.Parse(r.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse request url: %w", err)
	}
	target := c.base.ResolveReference(ref)
	if len(r.Params) > 0 {
		q := target.Query()
		for k, vs := range r.Params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		target.RawQuery = q.Encode()
	}

	var body io.Reader
	if r.Body != nil {
		body = bytes.NewReader(r.Body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, err
	}
	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	for _, ck := range r.Cookies {
		req.AddCookie(ck)
	}
	if id := logging.RequestIDFromContext(ctx); id != "" && req.Header.Get(logging.RequestIDHeader) == "" {
		req.Header.Set(logging.RequestIDHeader, id)
	}
	return req, nil
}

func (c *Client) loggerFor(ctx context.Context) *slog.Logger {
	if c.logger != nil {
		if id := logging.RequestIDFromContext(ctx); id != "" {
			return c.logger.With("request_id", id)
		}
		return c.logger
	}
	return logging.FromContext(ctx)
}

func (c *Client) record(method, outcome string) {
	if c.recorder != nil {
		c.recorder.RecordRequest(method, outcome)
	}
}

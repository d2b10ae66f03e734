// Package routes は画面ルートの定義（ルートテーブル）を提供します。
package routes

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
)

// HomeRoute はリダイレクト先として常に存在しなければならないルート名です。
const HomeRoute = "home"

var (
	// ErrConflictingAuthFlags は RequiresAuth と NoAuth が同時に指定された場合のエラーです。
	ErrConflictingAuthFlags = errors.New("route cannot both require and forbid authentication")
	// ErrMissingHome は home ルートが定義されていない場合のエラーです。
	ErrMissingHome = errors.New("route table has no home route")
)

// ViewLoader は画面ハンドラーを遅延生成する関数です。初回遷移時に一度だけ呼ばれます。
type ViewLoader func() (gin.HandlerFunc, error)

// Descriptor は一つの画面ルートとその認証要件を表します。起動後は変更しません。
type Descriptor struct {
	Path         string
	Name         string
	RequiresAuth bool // ログイン済みでなければ表示できない
	NoAuth       bool // ログイン済みだと表示できない（ログイン画面など）
	View         ViewLoader
}

func (d *Descriptor) validate() error {
	if d.Name == "" {
		return fmt.Errorf("route %q: name is required", d.Path)
	}
	if !strings.HasPrefix(d.Path, "/") {
		return fmt.Errorf("route %q: path must start with '/': %q", d.Name, d.Path)
	}
	if d.RequiresAuth && d.NoAuth {
		return fmt.Errorf("route %q: %w", d.Name, ErrConflictingAuthFlags)
	}
	if d.View == nil {
		return fmt.Errorf("route %q: view is required", d.Name)
	}
	return nil
}

// Table は順序付きのルート定義です。
type Table struct {
	routes []*Descriptor
	byName map[string]*Descriptor
}

// NewTable はルート定義を検証してテーブルを作成します。
func NewTable(descriptors ...Descriptor) (*Table, error) {
	t := &Table{
		routes: make([]*Descriptor, 0, len(descriptors)),
		byName: make(map[string]*Descriptor, len(descriptors)),
	}
	paths := make(map[string]string, len(descriptors))
	for i := range descriptors {
		d := descriptors[i]
		if err := d.validate(); err != nil {
			return nil, err
		}
		if _, dup := t.byName[d.Name]; dup {
			return nil, fmt.Errorf("route %q: duplicate name", d.Name)
		}
		if other, dup := paths[d.Path]; dup {
			return nil, fmt.Errorf("route %q: path %q already used by %q", d.Name, d.Path, other)
		}
		paths[d.Path] = d.Name
		t.routes = append(t.routes, &d)
		t.byName[d.Name] = &d
	}
	if _, ok := t.byName[HomeRoute]; !ok {
		return nil, ErrMissingHome
	}
	return t, nil
}

// All は定義順のルート一覧を返します。
func (t *Table) All() []*Descriptor {
	out := make([]*Descriptor, len(t.routes))
	copy(out, t.routes)
	return out
}

// Lookup は名前でルートを引きます。
func (t *Table) Lookup(name string) (*Descriptor, bool) {
	d, ok := t.byName[name]
	return d, ok
}

// Path は名前付きルートのパスを返します。未知の名前やパラメータ付きパスは home のパスに落とします。
func (t *Table) Path(name string) string {
	d, ok := t.byName[name]
	if !ok || strings.Contains(d.Path, ":") {
		d = t.byName[HomeRoute]
	}
	return d.Path
}

// Match はリクエストパスに一致するルートを定義順で探します。":name" セグメントは任意の値に一致します。
func (t *Table) Match(path string) *Descriptor {
	if path == "" {
		return nil
	}
	for _, d := range t.routes {
		if matchPath(d.Path, path) {
			return d
		}
	}
	return nil
}

// MatchURL は Referer などの URL 文字列からルートを探します。解釈できない場合は nil です。
func (t *Table) MatchURL(raw string) *Descriptor {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil
	}
	return t.Match(u.Path)
}

func matchPath(pattern, path string) bool {
	ps := splitPath(pattern)
	xs := splitPath(path)
	if len(ps) != len(xs) {
		return false
	}
	for i, p := range ps {
		if strings.HasPrefix(p, ":") {
			if xs[i] == "" {
				return false
			}
			continue
		}
		if p != xs[i] {
			return false
		}
	}
	return true
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

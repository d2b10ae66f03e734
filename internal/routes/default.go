package routes

// Views はアプリケーションの各画面ローダーを提供します。
type Views interface {
	Home() ViewLoader
	Login() ViewLoader
	Settings() ViewLoader
	About() ViewLoader
	Profile() ViewLoader
	Following() ViewLoader
}

// Default はアプリケーションのルートテーブルを作成します。
func Default(v Views) (*Table, error) {
	return NewTable(
		Descriptor{Path: "/", Name: HomeRoute, View: v.Home()},
		Descriptor{Path: "/login", Name: "login", NoAuth: true, View: v.Login()},
		Descriptor{Path: "/settings", Name: "settings", RequiresAuth: true, View: v.Settings()},
		Descriptor{Path: "/about", Name: "about", View: v.About()},
		Descriptor{Path: "/profile/:username", Name: "profile", View: v.Profile()},
		Descriptor{Path: "/following", Name: "following", RequiresAuth: true, View: v.Following()},
	)
}

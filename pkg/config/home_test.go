package config

import (
	"path/filepath"
	"testing"
)

func TestHome_EnvVar(t *testing.T) {
	t.Setenv(HomeEnv, "/custom/path")

	if got := Home(); got != "/custom/path" {
		t.Errorf("Home() = %q, want %q", got, "/custom/path")
	}
}

func TestHome_UserHome(t *testing.T) {
	userHome := t.TempDir()
	t.Setenv(HomeEnv, "")
	t.Setenv("HOME", userHome)

	want := filepath.Join(userHome, ".flowdriver")
	if got := Home(); got != want {
		t.Errorf("Home() = %q, want %q", got, want)
	}
}

func TestHome_NotCached(t *testing.T) {
	t.Setenv(HomeEnv, "/first")
	first := Home()

	t.Setenv(HomeEnv, "/second")
	if second := Home(); first == second {
		t.Errorf("Home() ignored the env change: %q", second)
	}
}

func TestConfig_HistoryPath(t *testing.T) {
	t.Setenv(HomeEnv, "/test/home")

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"default", Config{}, filepath.Join("/test/home", "history.db")},
		{"relative", Config{HistoryDB: "out/h.db", dir: "/suite"}, filepath.Join("/suite", "out", "h.db")},
		{"absolute", Config{HistoryDB: "/var/h.db", dir: "/suite"}, "/var/h.db"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.HistoryPath(); got != tt.want {
				t.Errorf("HistoryPath() = %q, want %q", got, tt.want)
			}
		})
	}
}

package version

import (
	"runtime/debug"
	"testing"
)

func TestFromBuildInfo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   Info
		bi   debug.BuildInfo
		want string
	}{
		{
			name: "module version",
			bi:   debug.BuildInfo{Main: debug.Module{Version: "v1.2.3"}},
			want: "1.2.3",
		},
		{
			name: "vcs stamp",
			in:   Info{Version: "0.1.0"},
			bi: debug.BuildInfo{Settings: []debug.BuildSetting{
				{Key: "vcs.revision", Value: "0123456789abcdef"},
				{Key: "vcs.modified", Value: "true"},
			}},
			want: "0.1.0 (0123456789ab-dirty)",
		},
		{
			name: "ldflags win",
			in:   Info{Version: "2.0.0", Commit: "abc"},
			bi: debug.BuildInfo{
				Main:     debug.Module{Version: "v9.9.9"},
				Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "zzz"}},
			},
			want: "2.0.0 (abc)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := tt.in
			fromBuildInfo(&info, &tt.bi)
			if got := info.String(); got != tt.want {
				t.Fatalf("got %q want %q", got, tt.want)
			}
		})
	}
}

func TestResolveNeverEmpty(t *testing.T) {
	t.Parallel()
	if Resolve().Version == "" {
		t.Fatalf("empty version")
	}
}

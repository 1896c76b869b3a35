package ui

import (
	"os"
	"strings"
	"testing"
)

func TestShouldUseColor_Env(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "out")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	for _, tc := range []struct {
		name string
		env  map[string]string
		want bool
	}{
		{"NoColor", map[string]string{"NO_COLOR": "1", "CLICOLOR_FORCE": "1"}, false},
		{"Force", map[string]string{"CLICOLOR_FORCE": "1"}, true},
		{"Disabled", map[string]string{"CLICOLOR": "0"}, false},
		{"NotATerminal", map[string]string{}, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			for _, k := range []string{"NO_COLOR", "CLICOLOR_FORCE", "CLICOLOR"} {
				t.Setenv(k, "")
			}
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if got := ShouldUseColor(f); got != tc.want {
				t.Errorf("ShouldUseColor = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestRender(t *testing.T) {
	saved := noColor
	t.Cleanup(func() { noColor = saved })

	noColor = false
	if got := RenderAccent("x"); !strings.Contains(got, "\x1b[38;5;74m") || !strings.HasSuffix(got, "\x1b[0m") {
		t.Errorf("RenderAccent = %q", got)
	}
	ForceNoColor()
	if got := RenderError("x"); got != "x" {
		t.Errorf("RenderError with color off = %q, want plain", got)
	}
	if ColorEnabled() {
		t.Error("ColorEnabled after ForceNoColor")
	}
}

func TestTruncate(t *testing.T) {
	for _, tc := range []struct {
		in   string
		n    int
		want string
	}{
		{"Concert", 10, "Concert"},
		{"Concert", 7, "Concert"},
		{"Concert", 4, "Con…"},
		{"Concert", 1, "…"},
		{"Concert", 0, "Concert"},
	} {
		if got := Truncate(tc.in, tc.n); got != tc.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tc.in, tc.n, got, tc.want)
		}
	}
}

func TestWidth_NotATerminal(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "out")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if got := Width(f, 80); got != 80 {
		t.Errorf("Width = %d, want fallback 80", got)
	}
}

package appmix

import "testing"

func TestDisplayName(t *testing.T) {
	tests := []struct {
		name     string
		props    map[string]string
		expected string
	}{
		{
			name:     "application name only",
			props:    map[string]string{propApplicationName: "Firefox"},
			expected: "Firefox",
		},
		{
			name:     "application id only",
			props:    map[string]string{propApplicationID: "org.mozilla.firefox"},
			expected: "org.mozilla.firefox",
		},
		{
			name:     "both prefer application name",
			props:    map[string]string{propApplicationName: "Firefox", propApplicationID: "org.mozilla.firefox"},
			expected: "Firefox",
		},
		{
			name:     "empty application name falls through",
			props:    map[string]string{propApplicationName: "", propApplicationID: "mpv"},
			expected: "mpv",
		},
		{
			name:     "neither set",
			props:    map[string]string{"media.name": "Playback"},
			expected: UnknownName,
		},
		{
			name:     "nil property bag",
			props:    nil,
			expected: UnknownName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DisplayName(tt.props); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

package utils

import (
	"strings"
	"testing"
)

func TestEscapeMd(t *testing.T) {
	tests := map[string]string{
		"plain":      "plain",
		"*bold*":     `\*bold\*`,
		"snake_case": `snake\_case`,
		"`code` ~x~": "\\`code\\` \\~x\\~",
		"a | b":      `a \| b`,
	}
	for in, want := range tests {
		if got := EscapeMd(in); got != want {
			t.Errorf("EscapeMd(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPrettyTime(t *testing.T) {
	tests := []struct {
		sec  int
		want string
	}{
		{0, "0:00"},
		{59, "0:59"},
		{185, "3:05"},
		{3600, "1:00:00"},
		{3725, "1:02:05"},
	}
	for _, tt := range tests {
		if got := PrettyTime(tt.sec); got != tt.want {
			t.Errorf("PrettyTime(%d) = %q, want %q", tt.sec, got, tt.want)
		}
	}
}

func TestRandomUserAgent(t *testing.T) {
	for range 20 {
		ua := RandomUserAgent()
		if !strings.HasPrefix(ua, "Mozilla/5.0") || !strings.Contains(ua, "Chrome/13") {
			t.Fatalf("unexpected user agent %q", ua)
		}
	}
}

func TestFFmpegHeaders(t *testing.T) {
	h := FFmpegHeaders()
	if !strings.HasSuffix(h, "\r\n") || !strings.Contains(h, "Referer: https://www.youtube.com/\r\n") {
		t.Errorf("FFmpegHeaders() = %q", h)
	}
}

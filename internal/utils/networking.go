package utils

import (
	"fmt"
	"math/rand/v2"
	"strings"
)

func RandomUserAgent() string {
	const minMajor = 132
	const maxMajor = 138

	major := rand.IntN(maxMajor-minMajor+1) + minMajor
	return fmt.Sprintf(
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%d.0.0.0 Safari/537.36",
		major,
	)
}

// FFmpegHeaders is the CRLF-joined header block for ffmpeg's -headers
// option. User-Agent is passed separately.
func FFmpegHeaders() string {
	headers := [][2]string{
		{"Accept", "*/*"},
		{"Accept-Language", "en-US,en;q=0.9"},
		{"Origin", "https://www.youtube.com"},
		{"Referer", "https://www.youtube.com/"},
	}
	var b strings.Builder
	for _, h := range headers {
		fmt.Fprintf(&b, "%s: %s\r\n", h[0], h[1])
	}
	return b.String()
}

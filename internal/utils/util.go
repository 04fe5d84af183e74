package utils

import (
	"fmt"
	"strings"
)

var mdReplacer = strings.NewReplacer("*", "\\*", "_", "\\_", "`", "\\`", "~", "\\~", "|", "\\|")

// EscapeMd escapes Discord markdown in user-supplied text.
func EscapeMd(s string) string {
	return mdReplacer.Replace(s)
}

// PrettyTime renders seconds as m:ss or h:mm:ss.
func PrettyTime(sec int) string {
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

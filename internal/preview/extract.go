// Package preview discovers the locally served UI of an app: it extracts a
// candidate port from free-text logs and polls it until it accepts
// connections.
package preview

import (
	"regexp"
	"strconv"
)

var (
	colorCodes = regexp.MustCompile(`\x1b\[[0-9;]*m`)
	serverAddr = regexp.MustCompile(`(?:https?:\/\/)?(?:localhost|127\.0\.0\.1|0\.0\.0\.0):(\d{2,5})`)
)

// ExtractPort returns the first local server port mentioned in text, after
// removing ANSI colour codes.
func ExtractPort(text string) (int, bool) {
	m := serverAddr.FindStringSubmatch(colorCodes.ReplaceAllString(text, ""))
	if m == nil {
		return 0, false
	}
	port, err := strconv.Atoi(m[1])
	if err != nil || port <= 0 || port > 65535 {
		return 0, false
	}
	return port, true
}

package server

import "fmt"

// ANSI colours for the DEV route and request log.
const (
	Red     = "\033[31m"
	Green   = "\033[32m"
	Yellow  = "\033[33m"
	Blue    = "\033[34m"
	Magenta = "\033[35m"
	Cyan    = "\033[36m"
	Gray    = "\033[90m"

	ResetColor = "\033[0m"
)

var methodColors = map[string]string{
	"GET":    Green,
	"POST":   Blue,
	"PUT":    Cyan,
	"DELETE": Yellow,
	"PATCH":  Magenta,
}

func colouredMethod(method string) string {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		return color + paddedMethod + ResetColor
	}
	return Gray + paddedMethod + ResetColor
}

// colouredStatus shades a response status by class.
func colouredStatus(status int) string {
	color := Green
	switch {
	case status >= 500:
		color = Red
	case status >= 400:
		color = Yellow
	case status >= 300:
		color = Cyan
	}
	return fmt.Sprintf("%s%d%s", color, status, ResetColor)
}

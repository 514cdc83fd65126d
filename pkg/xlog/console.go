package xlog

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

const (
	colorReset   = "\033[0m"
	colorDebug   = "\033[1;36m"
	colorWarning = "\033[1;33m"
	colorError   = "\033[1;31m"
)

func levelColor(level string) (string, string) {
	switch level {
	case "debug":
		return colorDebug, colorReset
	case "warn":
		return colorWarning, colorReset
	case "error", "dpanic", "panic", "fatal":
		return colorError, colorReset
	default:
		return "", ""
	}
}

// consoleWriter turns zap JSON entries into one short line per entry.
type consoleWriter struct {
	Color bool
	Out   io.Writer
}

func (w *consoleWriter) Write(p []byte) (int, error) {
	entry := map[string]interface{}{}
	if err := json.Unmarshal(p, &entry); err != nil {
		return len(p), nil
	}
	out := w.Out
	if out == nil {
		out = os.Stdout
	}
	fmt.Fprintln(out, w.format(entry))
	return len(p), nil
}

func (w *consoleWriter) format(entry map[string]interface{}) string {
	extra := ""
	for k, v := range entry {
		if strings.HasPrefix(k, "x-") {
			extra += k + ":" + fmt.Sprint(v) + " "
		}
	}
	if extra != "" {
		extra = " { " + extra + "}"
	}

	pre, sub := "", ""
	if w.Color {
		pre, sub = levelColor(fmt.Sprint(entry["level"]))
	}

	ts := fmt.Sprint(entry["time"])
	if t, err := time.Parse("2006-01-02T15:04:05.999Z07:00", ts); err == nil {
		ts = t.Format("2006/01/02 15:04:05")
	}

	fname, _ := entry["file"].(string)
	if len(fname) < 20 {
		fname += strings.Repeat(" ", 20-len(fname))
	}
	if len(fname) > 20 {
		fname = fname[len(fname)-20:]
	}

	return fmt.Sprintf("%s[%s] %s %s: %s%s%s", pre, entry["app"], ts, fname, entry["msg"], extra, sub)
}

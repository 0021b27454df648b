package api

import (
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"portalslayer/pkg/logging"
)

// Regex to capture key=value or key="value with spaces"
var logRegex = regexp.MustCompile(`([a-zA-Z0-9_\-.]+)=(?:"([^"]*)"|([^ ]+))`)

// LogResponse carries the most recent server log lines, formatted for a status bar.
type LogResponse struct {
	Log   string   `json:"log"`
	Lines []string `json:"lines"`
}

// handleLatestLog returns the last captured log lines. ?lines=N limits the history.
func handleLatestLog(w http.ResponseWriter, r *http.Request) {
	n := 10
	if v := r.URL.Query().Get("lines"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "lines must be a non-negative integer"})
			return
		}
		n = parsed
	}

	raw := logging.Capture.Lines(n)
	resp := LogResponse{Lines: make([]string, 0, len(raw))}
	for _, l := range raw {
		resp.Lines = append(resp.Lines, formatLogLine(l))
	}
	if len(resp.Lines) > 0 {
		resp.Log = resp.Lines[len(resp.Lines)-1]
	}
	writeJSON(w, http.StatusOK, resp)
}

// formatLogLine turns a slog text line into "HH:MM:SS msg (key=value, ...)".
// Params longer than 20 chars are dropped; the rest are sorted.
func formatLogLine(raw string) string {
	matches := logRegex.FindAllStringSubmatch(raw, -1)
	if len(matches) == 0 {
		return raw
	}

	var msg, timeStr string
	var params []string

	for _, m := range matches {
		key := m[1]
		val := m[2]
		if val == "" {
			val = m[3]
		}
		val = strings.TrimSpace(val)

		switch key {
		case "time":
			if t, err := time.Parse(time.RFC3339, val); err == nil {
				timeStr = t.Format("15:04:05")
			}
			continue
		case "level":
			continue
		case "msg":
			msg = val
			continue
		}

		if len(val) > 20 {
			continue
		}
		params = append(params, fmt.Sprintf("%s=%s", key, val))
	}

	if msg == "" {
		return raw
	}

	sort.Strings(params)

	output := msg
	if timeStr != "" {
		output = fmt.Sprintf("%s %s", timeStr, msg)
	}
	if len(params) > 0 {
		return fmt.Sprintf("%s (%s)", output, strings.Join(params, ", "))
	}
	return output
}

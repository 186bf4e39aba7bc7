package node

import (
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// NormalizeHostPort cuts the http:// https:// prefixes from the input address
// and adds a default port.
func NormalizeHostPort(addr, defPort string) string {
	if rest, ok := strings.CutPrefix(addr, "http://"); ok {
		addr = rest
	} else if rest, ok := strings.CutPrefix(addr, "https://"); ok {
		addr = rest
	}

	if _, _, err := net.SplitHostPort(addr); err == nil {
		return addr
	}

	return addr + ":" + defPort
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON sends v indented with two spaces.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		status = http.StatusInternalServerError
		data, _ = json.Marshal(errorResponse{Error: "Internal server error"})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "Not found")
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
}

// readObject reads a JSON body. An empty body reads as {}. A body that is
// valid JSON but not an object yields a nil map, so every field lookup fails
// validation. On malformed input a 400 is written and ok is false.
func (n *Node) readObject(w http.ResponseWriter, r *http.Request) (obj map[string]any, ok bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, n.maxBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return nil, false
	}
	if len(body) == 0 {
		return map[string]any{}, true
	}

	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return nil, false
	}
	obj, _ = v.(map[string]any)
	return obj, true
}

// intParam reads an integer query parameter. An absent parameter yields def;
// a present but empty one yields 0.
func intParam(q url.Values, name string, def int) (int, bool) {
	if !q.Has(name) {
		return def, true
	}
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

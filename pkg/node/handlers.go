package node

import (
	"net/http"
	"os"
	"time"

	"github.com/ryandielhenn/cachelab/pkg/hashtable"
)

type statsResponse struct {
	Size         int     `json:"size"`
	Count        int     `json:"count"`
	LoadFactor   float64 `json:"loadFactor"`
	DefaultTTLMs *int64  `json:"defaultTtlMs"`
}

func toStatsResponse(st hashtable.Stats) statsResponse {
	resp := statsResponse{Size: st.Size, Count: st.Count, LoadFactor: st.LoadFactor}
	if st.DefaultTTL > 0 {
		ms := st.DefaultTTL.Milliseconds()
		resp.DefaultTTLMs = &ms
	}
	return resp
}

type keyValue struct {
	Message string `json:"message,omitempty"`
	Key     string `json:"key"`
	Value   string `json:"value"`
}

// Root answers GET / and 404s every path no other route claims.
func (n *Node) Root(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		notFound(w)
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "CacheLab API online"})
}

func (n *Node) Health(w http.ResponseWriter, _ *http.Request) {
	type resp struct {
		Status        string        `json:"status"`
		UptimeSeconds float64       `json:"uptimeSeconds"`
		Cache         statsResponse `json:"cache"`
	}
	writeJSON(w, http.StatusOK, resp{
		Status:        "ok",
		UptimeSeconds: n.clock.Since(n.started).Seconds(),
		Cache:         toStatsResponse(n.kv.Stats()),
	})
}

func (n *Node) Stats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, toStatsResponse(n.kv.Stats()))
}

// Info writes a JSON payload with the node identity, process ID, current time
// and item count.
func (n *Node) Info(w http.ResponseWriter, _ *http.Request) {
	type resp struct {
		ID    string    `json:"id"`
		Addr  string    `json:"addr"`
		PID   int       `json:"pid"`
		Now   time.Time `json:"now"`
		Items int       `json:"items"`
	}
	writeJSON(w, http.StatusOK, resp{ID: n.id, Addr: n.addr, PID: os.Getpid(), Now: n.clock.Now(), Items: n.kv.Len()})
}

// Scan pages through live keys: GET /scan?cursor=0&limit=10.
func (n *Node) Scan(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cursor, okCursor := intParam(q, "cursor", 0)
	limit, okLimit := intParam(q, "limit", 10)
	if !okCursor || !okLimit || cursor < 0 || limit <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid cursor or limit")
		return
	}

	res := n.kv.Scan(cursor, limit)
	writeJSON(w, http.StatusOK, struct {
		Cursor int      `json:"cursor"`
		Total  int      `json:"total"`
		Keys   []string `json:"keys"`
	}{res.Cursor, res.Total, res.Keys})
}

// PostKey creates or overwrites a key: POST /keys {"key":"...","value":"..."}.
func (n *Node) PostKey(w http.ResponseWriter, r *http.Request) {
	obj, ok := n.readObject(w, r)
	if !ok {
		return
	}
	key, okKey := obj["key"].(string)
	value, okValue := obj["value"].(string)
	if !okKey || !okValue {
		writeError(w, http.StatusBadRequest, "key and value must be strings")
		return
	}

	n.kv.Set(key, value)
	writeJSON(w, http.StatusCreated, keyValue{Message: "Key created or updated", Key: key, Value: value})
}

// Get returns the value for a key.
func (n *Node) Get(w http.ResponseWriter, key string) {
	val, ok := n.kv.Get(key)
	if !ok {
		writeError(w, http.StatusNotFound, "Key not found")
		return
	}
	writeJSON(w, http.StatusOK, keyValue{Key: key, Value: val})
}

// Put replaces the value of an existing key. Missing keys are not created.
func (n *Node) Put(w http.ResponseWriter, r *http.Request, key string) {
	obj, ok := n.readObject(w, r)
	if !ok {
		return
	}
	value, ok := obj["value"].(string)
	if !ok {
		writeError(w, http.StatusBadRequest, "value must be a string")
		return
	}

	if !n.kv.Update(key, value) {
		writeError(w, http.StatusNotFound, "Key not found")
		return
	}
	writeJSON(w, http.StatusOK, keyValue{Message: "Key updated", Key: key, Value: value})
}

// Del removes a key.
func (n *Node) Del(w http.ResponseWriter, key string) {
	if !n.kv.Delete(key) {
		writeError(w, http.StatusNotFound, "Key not found")
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Message string `json:"message"`
		Key     string `json:"key"`
	}{"Key deleted", key})
}

func (n *Node) FlushKeys(w http.ResponseWriter, _ *http.Request) {
	n.kv.Clear()
	writeJSON(w, http.StatusOK, map[string]string{"message": "All keys deleted"})
}

// ListKeys returns every live key, optionally filtered: GET /keys?prefix=user:.
func (n *Node) ListKeys(w http.ResponseWriter, r *http.Request) {
	keys := n.kv.KeysWithPrefix(r.URL.Query().Get("prefix"))
	writeJSON(w, http.StatusOK, map[string][]string{"keys": keys})
}

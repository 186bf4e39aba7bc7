package node

import (
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/ryandielhenn/cachelab/internal/telemetry"
	"github.com/ryandielhenn/cachelab/pkg/kv"
)

const defaultMaxBodyBytes = 1 << 20

// Node serves the HTTP API for one kv.Store.
type Node struct {
	kv      *kv.Store
	log     *zap.Logger
	clock   clock.Clock
	started time.Time
	id      string
	addr    string
	maxBody int64
}

type Options struct {
	ID           string
	Addr         string
	Logger       *zap.Logger
	Clock        clock.Clock
	MaxBodyBytes int64
}

func NewNode(store *kv.Store, opts Options) *Node {
	n := &Node{
		kv:      store,
		log:     opts.Logger,
		clock:   opts.Clock,
		id:      opts.ID,
		addr:    opts.Addr,
		maxBody: opts.MaxBodyBytes,
	}
	if n.log == nil {
		n.log = zap.NewNop()
	}
	if n.clock == nil {
		n.clock = clock.New()
	}
	if n.maxBody <= 0 {
		n.maxBody = defaultMaxBodyBytes
	}
	n.started = n.clock.Now()
	return n
}

func (n *Node) ID() string { return n.id }

func (n *Node) Addr() string { return n.addr }

// Handler returns the full API: routing, per-method metrics, request logging
// and panic recovery.
func (n *Node) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", n.Root)
	mux.HandleFunc("/health", getOnly(n.Health))
	mux.HandleFunc("/stats", getOnly(n.Stats))
	mux.HandleFunc("/scan", getOnly(n.Scan))
	mux.HandleFunc("/info", getOnly(n.Info))
	mux.Handle("/metrics", telemetry.MetricsHandler())
	mux.HandleFunc("/keys", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			n.ListKeys(w, r)
		case http.MethodPost:
			n.PostKey(w, r)
		case http.MethodDelete:
			n.FlushKeys(w, r)
		default:
			methodNotAllowed(w)
		}
	})
	mux.HandleFunc("/keys/", func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Path[len("/keys/"):]
		if key == "" {
			notFound(w)
			return
		}
		switch r.Method {
		case http.MethodGet:
			n.Get(w, key)
		case http.MethodPut:
			n.Put(w, r, key)
		case http.MethodDelete:
			n.Del(w, key)
		default:
			methodNotAllowed(w)
		}
	})

	return n.observe(mux)
}

func getOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		h(w, r)
	}
}

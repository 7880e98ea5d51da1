package internal

import (
	"chat-relay/infrastructure/storage"
	"embed"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
)

//go:embed inspect.html
var templatesFS embed.FS

const (
	defaultPrefix   = storage.MessagePrefix
	defaultRowLimit = 500
)

type StatsProvider func() any

type PageData struct {
	Prefix string
	Limit  int
	Items  []storage.Record
	Stats  any
}

// NewDebugServer serves a read-only page listing the badger entries under a
// prefix, next to the live statistics. The caller owns the server lifecycle.
func NewDebugServer(log *slog.Logger, db *badger.DB, addr, endpoint string, statsProvider StatsProvider) *http.Server {
	tmpl := template.Must(template.ParseFS(templatesFS, "inspect.html"))
	mux := http.NewServeMux()

	mux.HandleFunc("GET "+endpoint, func(w http.ResponseWriter, r *http.Request) {
		prefix := r.URL.Query().Get("prefix")
		if prefix == "" {
			prefix = defaultPrefix
		}
		limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
		if err != nil || limit <= 0 {
			limit = defaultRowLimit
		}

		data := PageData{Prefix: prefix, Limit: limit}
		if statsProvider != nil {
			data.Stats = statsProvider()
		}
		if data.Items, err = storage.ScanRecords(db, prefix, limit); err != nil {
			log.Error("Unable to scan badger", "prefix", prefix, "error", err)
			http.Error(w, "scan failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := tmpl.Execute(w, data); err != nil {
			log.Debug("Rendering inspect page", "error", err)
		}
	})

	return &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
}

package httpapi

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Router wraps the standard library mux; the route surface is small enough
// that a third-party router would buy nothing.
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterSyncRoutes wires the full sync boundary.
func (r *Router) RegisterSyncRoutes(a *AssessmentsHandler, p *PhotosHandler) {
	r.Handle("/sync", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		a.Sync(w, req)
	})

	r.Handle("/assessments", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		a.List(w, req)
	})

	// /assessments/{id} and /assessments/{id}/photos
	r.Handle("/assessments/", func(w http.ResponseWriter, req *http.Request) {
		rest := strings.TrimPrefix(req.URL.Path, "/assessments/")
		switch {
		case rest == "":
			w.WriteHeader(http.StatusNotFound)
		case strings.HasSuffix(rest, "/photos"):
			if req.Method != http.MethodPost {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			id := strings.TrimSuffix(rest, "/photos")
			if id == "" || strings.Contains(id, "/") {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			p.Upload(w, req, id)
		case strings.Contains(rest, "/"):
			w.WriteHeader(http.StatusNotFound)
		default:
			if req.Method != http.MethodGet {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			a.Get(w, req, rest)
		}
	})

	r.Handle("/photos/", func(w http.ResponseWriter, req *http.Request) {
		id := strings.TrimPrefix(req.URL.Path, "/photos/")
		if id == "" || strings.Contains(id, "/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		switch req.Method {
		case http.MethodGet:
			p.Download(w, req, id)
		case http.MethodDelete:
			p.Delete(w, req, id)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
}

package kernel

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oracipher/kernel/json"
)

// pluginStatus is one plugin's read-only introspection view.
type pluginStatus struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	State   string `json:"state"`
	Active  bool   `json:"active"`
	Error   string `json:"error,omitempty"`
}

// NewIntrospectionRouter builds a read-only chi router exposing the
// kernel's plugin list and metrics — no mutation endpoint exists here,
// load/unload/reload stay driven by Kernel's Go API or cmd/kernelctl
// (spec.md's core has no notion of a remote-control surface; this is
// enrichment, and deliberately a dead end for write traffic).
func NewIntrospectionRouter(k *Kernel) http.Handler {
	r := chi.NewRouter()

	r.Get("/plugins", func(w http.ResponseWriter, req *http.Request) {
		list := k.List()
		out := make([]pluginStatus, 0, len(list))
		for _, s := range list {
			out = append(out, toPluginStatus(s))
		}
		writeJSON(w, http.StatusOK, out)
	})

	r.Get("/plugins/{name}", func(w http.ResponseWriter, req *http.Request) {
		name := chi.URLParam(req, "name")
		for _, s := range k.List() {
			if s.Name == name {
				writeJSON(w, http.StatusOK, toPluginStatus(s))
				return
			}
		}
		http.Error(w, "plugin not found", http.StatusNotFound)
	})

	r.Get("/metrics", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, k.metrics.GetMetrics())
	})

	return r
}

func toPluginStatus(s PluginSummary) pluginStatus {
	status := pluginStatus{
		Name:    s.Name,
		Version: s.Version.String(),
		State:   s.State.String(),
		Active:  s.Active,
	}
	if s.LastErr != nil {
		status.Error = s.LastErr.Error()
	}
	return status
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

package control

import (
	"net/http"

	"go.uber.org/zap"
	"tailscale.com/tsweb"

	"github.com/banshee-data/crankbox/internal/httputil"
)

// Section adds a named block to the status document.
type Section struct {
	Name string
	Fn   func() any
}

// AttachAdminRoutes serves the loop status, plus any extra sections, as JSON
// at /debug/crankbox. Like every tsweb debug route it only answers loopback
// or tailnet clients.
func (l *Loop) AttachAdminRoutes(mux *http.ServeMux, extra ...Section) {
	debug := tsweb.Debugger(mux)
	debug.KVFunc("Playback", func() any {
		pb := l.shared.Playback()
		return pb.State.String()
	})
	debug.KVFunc("Crank RPM", func() any { return l.Status().CurrentRPM })

	debug.Handle("crankbox", "music box status (JSON)", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !httputil.MethodNotAllowed(w, r, l.logger, http.MethodGet) {
			return
		}
		doc := map[string]any{"loop": l.Status()}
		for _, s := range extra {
			doc[s.Name] = s.Fn()
		}
		httputil.WriteJSON(w, l.logger.With(zap.String("route", "crankbox")), http.StatusOK, doc)
	}))
}

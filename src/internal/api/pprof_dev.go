//go:build dev

package api

import (
	"net/http/pprof"
	runtimepprof "runtime/pprof"

	"github.com/go-chi/chi/v5"
)

// registerPprof mounts the profiler in dev builds, with one route per
// runtime profile.
func registerPprof(r chi.Router) {
	r.Route("/debug/pprof", func(r chi.Router) {
		r.HandleFunc("/", pprof.Index)
		r.HandleFunc("/cmdline", pprof.Cmdline)
		r.HandleFunc("/profile", pprof.Profile)
		r.HandleFunc("/symbol", pprof.Symbol)
		r.HandleFunc("/trace", pprof.Trace)
		for _, p := range runtimepprof.Profiles() {
			r.Handle("/"+p.Name(), pprof.Handler(p.Name()))
		}
	})
}

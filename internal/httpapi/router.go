package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
)

func NewRouter(s *Server) *mux.Router {
	r := mux.NewRouter()
	r.Use(s.instrument)

	r.HandleFunc("/health", s.health).Methods("GET")
	r.HandleFunc("/status", s.status).Methods("GET")
	r.HandleFunc("/units", s.units).Methods("GET")
	r.HandleFunc("/units/{kind}/{index}", s.unitByIndex).Methods("GET")
	r.HandleFunc("/units/{kind}/{index}/mode", s.setUnitMode).Methods("POST")
	r.HandleFunc("/capacity", s.setCapacity).Methods("POST")
	r.HandleFunc("/ambient", s.setAmbient).Methods("POST")
	r.HandleFunc("/emergency-stop", s.emergencyStop).Methods("POST")
	r.HandleFunc("/staging/resume", s.resumeStaging).Methods("POST")
	r.HandleFunc("/staging/algorithm", s.setAlgorithm).Methods("POST")
	r.HandleFunc("/staging/strategy", s.setStrategy).Methods("POST")
	r.HandleFunc("/staging/tier", s.setTier).Methods("POST")
	r.HandleFunc("/condensers/{index}/performance", s.postPerformance).Methods("POST")
	r.HandleFunc("/condensers/{index}/weights", s.setWeights).Methods("POST")
	r.HandleFunc("/condensers/{index}/maintenance/start", s.startMaintenance).Methods("POST")
	r.HandleFunc("/condensers/{index}/maintenance/complete", s.completeMaintenance).Methods("POST")
	r.HandleFunc("/config/reload", s.reloadConfig).Methods("POST")
	if s.met != nil {
		r.Handle("/metrics", s.met.Handler()).Methods("GET")
	}

	return r
}

// instrument labels request metrics with the matched route template so
// /units/{kind}/{index} stays one series regardless of path values.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		s.met.WrapHandler(route, next).ServeHTTP(w, r)
	})
}

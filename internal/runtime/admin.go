package runtime

import (
	"net/http"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/drblury/fixflow/transport"
)

// AdminStatus is served as JSON on /api/listeners.
type AdminStatus struct {
	Transport transport.Capabilities `json:"transport"`
	Codec     string                 `json:"codec"`
	Inbound   []string               `json:"inbound"`
	Listeners []string               `json:"listeners"`
	Stats     EngineMetricsSnapshot  `json:"stats"`
}

// startAdmin mounts the status endpoint next to /metrics.
func (s *Service) startAdmin() {
	if !s.Conf.MetricsEnabled || s.Conf.MetricsPort <= 0 {
		return
	}
	s.RegisterHTTPHandler(s.Conf.MetricsPort, "/api/listeners", http.HandlerFunc(s.handleGetListeners))
}

// Status reports the transport, codec, handlers and listener counters.
func (s *Service) Status() AdminStatus {
	return AdminStatus{
		Transport: s.capabilities,
		Codec:     s.codec.Name(),
		Inbound:   s.Inbound(),
		Listeners: s.engine.Listeners(),
		Stats:     s.engine.Metrics().Snapshot(),
	}
}

func (s *Service) handleGetListeners(w http.ResponseWriter, r *http.Request) {
	if origin := s.allowedCORSOrigin(r.Header.Get("Origin")); origin != "" {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	}
	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)
		return
	case http.MethodGet:
	default:
		w.Header().Set("Allow", "GET, OPTIONS")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := sonic.Marshal(s.Status())
	if err != nil {
		s.Logger.Error("failed to encode admin status", err, nil)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}

func (s *Service) allowedCORSOrigin(origin string) string {
	if origin == "" {
		return ""
	}
	for _, allowed := range s.Conf.AdminCORSAllowedOrigins {
		if allowed == "*" {
			return "*"
		}
		if strings.EqualFold(allowed, origin) {
			return origin
		}
	}
	return ""
}

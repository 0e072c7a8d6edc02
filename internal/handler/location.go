package handler

import (
	"net"
	"net/http"
)

// LookupLocation handles GET /locations/lookup[?ip=10.1.2.3].
// Without an ip parameter the caller's own address is resolved.
func (s *Server) LookupLocation(w http.ResponseWriter, r *http.Request) {
	ip := r.URL.Query().Get("ip")
	if ip == "" {
		ip = remoteIP(r)
	}

	loc, err := s.locations.GetByIP(r.Context(), ip)
	if err != nil {
		writeError(w, err, "no location for address")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"location": loc.Name})
}

// remoteIP returns the caller's bare IP. chi's RealIP middleware has already
// rewritten RemoteAddr from X-Forwarded-For / X-Real-IP when behind a proxy;
// RemoteAddr may or may not carry a port depending on the source.
func remoteIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

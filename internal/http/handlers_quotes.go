package http

import "net/http"

// handleQuotes fetches both market quotes. A failed upstream yields the
// error placeholder in its field; the response itself is always 200.
func (s *Server) handleQuotes(w http.ResponseWriter, r *http.Request) {
	res := s.quotes.Fetch(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{
		"dollar":   res.Dollar,
		"ibovespa": res.Ibovespa,
	})
}

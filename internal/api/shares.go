package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/fruitsalade/explorer/internal/sharing"
)

func (s *Server) handleShare(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Policy *sharing.Policy `json:"policy"`
	}
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.Policy == nil {
		s.fail(w, r, fmt.Errorf("%w: policy is required", sharing.ErrMalformedRequest))
		return
	}

	link, err := s.shares.Share(r.Context(), r.PathValue("path"), *req.Policy)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]string{"link": link})
}

func (s *Server) handleUnshare(w http.ResponseWriter, r *http.Request) {
	removed, err := s.shares.Unshare(r.Context(), r.PathValue("path"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]bool{"ok": removed})
}

func (s *Server) handleGetShareLink(w http.ResponseWriter, r *http.Request) {
	link, ok, err := s.shares.Link(r.PathValue("path"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	resp := map[string]*string{"link": nil}
	if ok {
		resp["link"] = &link
	}
	sendJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListShares(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, s.shares.List())
}

// handleShared serves /shared/<id> to anonymous clients.
func (s *Server) handleShared(w http.ResponseWriter, r *http.Request) {
	f, err := s.gateway.Serve(r.Context(), r.URL.Path)
	if err != nil {
		if sharing.IsClientError(err) {
			sendError(w, statusFor(err), err.Error())
			return
		}
		s.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", f.ContentType)
	w.Header().Set("Content-Disposition", f.ContentDisposition)
	w.Header().Set("Content-Length", strconv.Itoa(len(f.Content)))
	w.WriteHeader(http.StatusOK)
	w.Write(f.Content)
}

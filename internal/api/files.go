package api

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/fruitsalade/explorer/internal/files"
	"github.com/fruitsalade/explorer/internal/sharing"
)

// ─── Listing ────────────────────────────────────────────────────────────────

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	entries, err := s.explorer.List(r.Context(), r.PathValue("path"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, entries)
}

// ─── Files ──────────────────────────────────────────────────────────────────

func (s *Server) handleCreateFile(w http.ResponseWriter, r *http.Request) {
	data, err := s.readBody(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	entry, err := s.files.Create(r.Context(), r.PathValue("path"), data)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sendJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleReadFile(w http.ResponseWriter, r *http.Request) {
	p := r.PathValue("path")
	data, err := s.files.Read(r.Context(), p)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", sharing.ContentType(path.Base(p)))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) handleUpdateFile(w http.ResponseWriter, r *http.Request) {
	data, err := s.readBody(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	entry, err := s.files.Update(r.Context(), r.PathValue("path"), data)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, entry)
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	ok, err := s.files.Delete(r.Context(), r.PathValue("path"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]bool{"ok": ok})
}

// handleUpload accepts either a raw body with ?name= or a multipart form
// with a "file" field. The query name wins over the multipart filename.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	var (
		data []byte
		err  error
	)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadSize)
		file, header, ferr := r.FormFile("file")
		if ferr != nil {
			var maxBytes *http.MaxBytesError
			if errors.As(ferr, &maxBytes) {
				s.fail(w, r, ferr)
				return
			}
			s.fail(w, r, fmt.Errorf("%w: missing file field: %v", sharing.ErrMalformedRequest, ferr))
			return
		}
		defer file.Close()
		if name == "" {
			name = header.Filename
		}
		data, err = io.ReadAll(file)
	} else {
		data, err = s.readBody(w, r)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}

	entry, err := s.files.Upload(r.Context(), r.PathValue("path"), name, data)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sendJSON(w, http.StatusCreated, entry)
}

type transferRequest struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
}

func (s *Server) decodeTransfer(w http.ResponseWriter, r *http.Request) (transferRequest, error) {
	var req transferRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		return req, err
	}
	if strings.TrimSpace(req.Source) == "" || strings.TrimSpace(req.Destination) == "" {
		return req, fmt.Errorf("%w: source and destination are required", sharing.ErrMalformedRequest)
	}
	return req, nil
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	req, err := s.decodeTransfer(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	entry, err := s.files.Move(r.Context(), req.Source, req.Destination)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, entry)
}

func (s *Server) handleCopy(w http.ResponseWriter, r *http.Request) {
	req, err := s.decodeTransfer(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	entry, err := s.files.Copy(r.Context(), req.Source, req.Destination)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, entry)
}

// ─── Directories ────────────────────────────────────────────────────────────

func (s *Server) handleCreateDir(w http.ResponseWriter, r *http.Request) {
	entry, err := s.files.CreateDirectory(r.Context(), r.PathValue("path"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sendJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleDeleteDir(w http.ResponseWriter, r *http.Request) {
	ok, err := s.files.DeleteDirectory(r.Context(), r.PathValue("path"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]bool{"ok": ok})
}

// ─── Current directory ──────────────────────────────────────────────────────

type cwdBody struct {
	Path string `json:"path"`
}

func (s *Server) handleGetCwd(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, cwdBody{Path: s.cwd.Get()})
}

func (s *Server) handleSetCwd(w http.ResponseWriter, r *http.Request) {
	var req cwdBody
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, cwdBody{Path: s.cwd.Set(req.Path)})
}

// compile-time check that *files.Service can back the gateway.
var _ sharing.FileReader = (*files.Service)(nil)

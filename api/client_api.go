package api

import (
	"errors"
	"net/http"
	"strconv"
)

// handleFiles lists every file (GET) or stores an uploaded one (POST,
// multipart fields "dir" and "file").
func (s *HTTPServer) handleFiles(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.Node.ListFiles())
	case http.MethodPost:
		s.handleUpload(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, errors.New("only GET and POST allowed"))
	}
}

func (s *HTTPServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	defer file.Close()

	dir := r.FormValue("dir")
	if dir == "" {
		dir = "/"
	}
	name := r.FormValue("name")
	if name == "" {
		name = header.Filename
	}

	record, err := s.Node.AddFileFrom(dir, name, file)
	if err != nil {
		s.logger.Warn().Err(err).Str("dir", dir).Str("name", name).Msg("upload failed")
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

// handleFile downloads the file at ?path=, fetching chunks from peers as
// needed.
func (s *HTTPServer) handleFile(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	filePath := r.URL.Query().Get("path")
	if filePath == "" {
		writeError(w, http.StatusBadRequest, errors.New("path is required"))
		return
	}

	data, record, err := s.Node.GetFile(r.Context(), filePath)
	if err != nil {
		s.logger.Warn().Err(err).Str("path", filePath).Msg("download failed")
		writeError(w, statusFor(err), err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set(FileHashHeader, record.FileHash.String())
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *HTTPServer) handleRoutingTable(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	w.Header().Set("Access-Control-Allow-Origin", "*")
	writeJSON(w, http.StatusOK, RoutingTableResponse{
		Self:    s.Node.Self,
		Buckets: s.Node.RoutingTableInfo(),
	})
}

// handleStatus returns information about the node
func (s *HTTPServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	status, err := s.Node.Status()
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// handleHealth is a simple health check endpoint
func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}


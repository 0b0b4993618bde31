package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/kutluhann/decentralized-file-sharing-system/dht"
	"github.com/kutluhann/decentralized-file-sharing-system/storage"
)

const msgpackContentType = "application/msgpack"

func (s *HTTPServer) readMsgpack(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)
	if err := msgpack.NewDecoder(body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
		return false
	}
	return true
}

func (s *HTTPServer) writeMsgpack(w http.ResponseWriter, v any) {
	data, err := msgpack.Marshal(v)
	if err != nil {
		s.logger.Error().Err(err).Msg("encode response")
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", msgpackContentType)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// handleAddNode lets a peer introduce itself.
func (s *HTTPServer) handleAddNode(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	var req dht.AddNodeRequest
	if !s.readMsgpack(w, r, &req) {
		return
	}
	s.writeMsgpack(w, dht.AddNodeResponse{Success: s.Node.AddNode(req.ID, req.Host, req.Port)})
}

func (s *HTTPServer) handleFingerprint(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	fp, err := s.Node.GetTopLevelFingerprint()
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	s.writeMsgpack(w, dht.FingerprintResponse{Fingerprint: fp})
}

func (s *HTTPServer) handleNamespace(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	s.writeMsgpack(w, dht.NamespaceMessage{Tree: s.Node.GetNamespace()})
}

func (s *HTTPServer) handleMergeNamespace(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	var req dht.NamespaceMessage
	if !s.readMsgpack(w, r, &req) {
		return
	}
	if err := s.Node.MergeNamespace(req.Tree); err != nil {
		s.logger.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("merge_namespace rejected")
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeMsgpack(w, dht.MergeNamespaceResponse{Ack: true})
}

// handleChunk serves a chunk we hold. Missing chunks are a 404 so the
// caller can move on to the next peer.
func (s *HTTPServer) handleChunk(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	var req dht.ChunkRequest
	if !s.readMsgpack(w, r, &req) {
		return
	}
	data, err := s.Node.GetChunk(req.Hash)
	if err != nil {
		if !errors.Is(err, storage.ErrChunkNotFound) {
			s.logger.Error().Err(err).Str("chunk", req.Hash.Short()).Msg("chunk read failed")
		}
		writeError(w, statusFor(err), err)
		return
	}
	s.writeMsgpack(w, dht.ChunkResponse{Data: data})
}

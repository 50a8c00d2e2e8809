package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wordclip/wordclip/internal/clip"
	"github.com/wordclip/wordclip/internal/fileutil"
	"github.com/wordclip/wordclip/internal/oplog"
	"github.com/wordclip/wordclip/internal/store"
)

// maxUploadBytes caps a single multipart upload.
const maxUploadBytes = 256 << 20

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError emits the {error} envelope every failure path uses.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// handleIndex serves the embedded single-page client.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	page, err := staticFS.ReadFile("static/index.html")
	if err != nil {
		http.Error(w, "client not available", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(page)
}

// handleUpload accepts a multipart audio upload, stores it, and returns its
// word-timestamped transcript. The transcript cache short-circuits repeat
// uploads of the same filename. On transcription failure the stored upload
// is removed so no orphaned audio lingers without a transcript.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file part")
		return
	}
	defer file.Close()

	if header.Filename == "" {
		writeError(w, http.StatusBadRequest, "No selected file")
		return
	}
	if !fileutil.AllowedExtension(header.Filename, s.allowedExts) {
		writeError(w, http.StatusBadRequest, "File type not allowed")
		return
	}

	name := fileutil.SanitizeFilename(header.Filename)
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read upload")
		return
	}

	if err := s.uploads.Put(name, data); err != nil {
		s.log.Errorf("store upload %s: %v", name, err)
		writeError(w, http.StatusInternalServerError, "Failed to store upload")
		return
	}
	s.ops.Log(oplog.Entry{Op: oplog.OpUploadReceived, Name: name, RequestID: requestID(r)})
	s.hub.Broadcast(EventUploadReceived, name)

	t, hit, err := s.cache.GetOrCreate(r.Context(), name, data)
	if err != nil {
		// Remove the upload so it does not linger without a transcript.
		if delErr := s.uploads.Delete(name); delErr != nil && !errors.Is(delErr, store.ErrNotExist) {
			s.log.Errorf("cleanup %s after failed transcription: %v", name, delErr)
		}
		s.ops.Log(oplog.Entry{Op: oplog.OpTranscribeFailed, Name: name, RequestID: requestID(r)})
		s.hub.Broadcast(EventTranscribeFailed, name)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("An error occurred during transcription: %v", err))
		return
	}

	op := oplog.OpTranscribed
	if hit {
		op = oplog.OpCacheHit
	}
	s.ops.Log(oplog.Entry{Op: op, Name: name, RequestID: requestID(r)})
	s.hub.Broadcast(EventTranscribed, name)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"transcription":  t,
		"audio_filename": name,
		"audio_url":      "/uploads/" + name,
		"duration":       t.Duration(),
	})
}

// clipRequest is the POST /clip payload. Words is a pointer slice so a
// missing key can be told apart from an empty selection.
type clipRequest struct {
	AudioFilename string       `json:"audio_filename"`
	Words         *[]clip.Span `json:"words"`
}

// handleClip assembles a new clip from selected word time ranges.
func (s *Server) handleClip(w http.ResponseWriter, r *http.Request) {
	var req clipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AudioFilename == "" || req.Words == nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	name := fileutil.SanitizeFilename(req.AudioFilename)
	data, err := s.uploads.Get(name)
	if errors.Is(err, store.ErrNotExist) || errors.Is(err, store.ErrBadName) {
		writeError(w, http.StatusNotFound, "Original audio file not found")
		return
	}
	if err != nil {
		s.log.Errorf("read upload %s: %v", name, err)
		writeError(w, http.StatusInternalServerError, "Failed to read original audio")
		return
	}

	clipName, err := s.assembler.Assemble(r.Context(), name, data, *req.Words)
	if err != nil {
		s.log.Errorf("assemble clip from %s: %v", name, err)
		s.ops.Log(oplog.Entry{Op: oplog.OpClipFailed, Name: name, RequestID: requestID(r)})
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to create clip: %v", err))
		return
	}

	s.ops.Log(oplog.Entry{
		Op: oplog.OpClipCreated, Name: clipName, RequestID: requestID(r),
		Detail: map[string]interface{}{"source": name, "spans": len(*req.Words)},
	})
	s.hub.Broadcast(EventClipCreated, clipName)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"clip_url": "/clips/" + clipName,
	})
}

// serveFrom streams a stored file by exact filename.
func (s *Server) serveFrom(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := mux.Vars(r)["filename"]
		data, err := st.Get(name)
		if errors.Is(err, store.ErrNotExist) || errors.Is(err, store.ErrBadName) {
			writeError(w, http.StatusNotFound, "File not found")
			return
		}
		if err != nil {
			s.log.Errorf("serve %s: %v", name, err)
			writeError(w, http.StatusInternalServerError, "Failed to read file")
			return
		}
		// ServeContent picks the content type from the extension and
		// honors range requests, which audio players need for seeking.
		http.ServeContent(w, r, name, time.Time{}, bytes.NewReader(data))
	}
}

// handleHealth reports service and ASR backend health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{"ok": true}
	status := http.StatusOK

	if s.health != nil {
		hs, err := s.health.HealthCheck(r.Context())
		if err != nil || hs == nil || !hs.OK {
			resp["ok"] = false
			status = http.StatusServiceUnavailable
		}
		if hs != nil {
			resp["asr"] = map[string]interface{}{
				"ok":      hs.OK,
				"backend": hs.Backend,
				"message": hs.Message,
			}
		}
	}
	writeJSON(w, status, resp)
}

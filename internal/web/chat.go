package web

import (
	"errors"
	"io"
	"net/http"

	"vhsite/internal/chat"
	appLog "vhsite/internal/log"
	"vhsite/internal/metrics"
)

// flushWriter streams chunks to the client as they arrive.
type flushWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

func (f *flushWriter) emit(chunk string) error {
	if !f.started {
		f.w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		f.w.Header().Set("Cache-Control", "no-cache")
		f.w.WriteHeader(http.StatusOK)
		f.started = true
	}
	if _, err := io.WriteString(f.w, chunk); err != nil {
		return err
	}
	if f.flusher != nil {
		f.flusher.Flush()
	}
	return nil
}

func plainError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, msg)
}

// handleChat relays the widget conversation to the model and streams the
// reply back as plain text.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.chat == nil {
		plainError(w, http.StatusServiceUnavailable, "Chat is not available")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		plainError(w, http.StatusBadRequest, chat.ErrMissingMessages.Error())
		return
	}
	msgs, err := chat.DecodeMessages(body)
	if errors.Is(err, chat.ErrMissingMessages) {
		plainError(w, http.StatusBadRequest, err.Error())
		return
	}

	system := s.cfg.Chat.SystemPrompt
	if system == "" {
		system = chat.DefaultSystemPrompt
	}

	fw := &flushWriter{w: w}
	fw.flusher, _ = w.(http.Flusher)

	err = s.chat.Stream(r.Context(), system, msgs, fw.emit)
	metrics.ObserveChat(err)
	if err != nil {
		appLog.Error("chat stream failed", err, "messages", len(msgs), "started", fw.started)
		if !fw.started {
			plainError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}
	if !fw.started {
		// Empty reply.
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
	}
}

package server

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/perbu/tactiekbot/pkg/qa"
)

// askPage is the view model of one rendering of the question page.
type askPage struct {
	Question string
	Answer   []string // paragraphs
	Error    string
}

func (s *Server) formHandler(w http.ResponseWriter, r *http.Request) {
	s.render(w, askPage{})
}

func (s *Server) submitHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	question := strings.TrimSpace(r.PostFormValue("question"))
	if question == "" {
		s.render(w, askPage{})
		return
	}

	page := askPage{Question: question}
	answer, err := s.answerer.AnswerDefault(r.Context(), question)
	if err != nil {
		s.logger.Error("Failed to answer question", zap.String("question", question), zap.Error(err))
		page.Error = FailureMessage
	} else {
		page.Answer = paragraphs(answer.Text)
	}
	s.render(w, page)
}

func (s *Server) render(w http.ResponseWriter, page askPage) {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, page); err != nil {
		s.logger.Error("Failed to render page", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func paragraphs(text string) []string {
	var out []string
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

type askRequest struct {
	Question string `json:"question"`
	K        *int   `json:"k,omitempty"`
}

type askResponse struct {
	Answer string `json:"answer,omitempty"`
	Error  string `json:"error,omitempty"`
}

// POST /api/ask  { "question": "...", "k": 4 }
func (s *Server) askHandler(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, askResponse{Error: "invalid json"})
		return
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		writeJSON(w, http.StatusBadRequest, askResponse{Error: "question is required"})
		return
	}
	if req.K != nil && (*req.K < 1 || *req.K > MaxK) {
		writeJSON(w, http.StatusBadRequest, askResponse{Error: fmt.Sprintf("k must be between 1 and %d", MaxK)})
		return
	}

	var (
		answer qa.Answer
		err    error
	)
	if req.K != nil {
		answer, err = s.answerer.Answer(r.Context(), question, *req.K)
	} else {
		answer, err = s.answerer.AnswerDefault(r.Context(), question)
	}
	if err != nil {
		s.logger.Error("Failed to answer question", zap.String("question", question), zap.Error(err))
		status := http.StatusInternalServerError
		if errors.Is(err, qa.ErrTimeout) {
			status = http.StatusGatewayTimeout
		}
		writeJSON(w, status, askResponse{Error: FailureMessage})
		return
	}

	writeJSON(w, http.StatusOK, askResponse{Answer: answer.Text})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// apiKeyMiddleware accepts the key from "Authorization: Bearer <key>" or the
// X-API-Key header. Without a configured key every request passes.
func (s *Server) apiKeyMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" {
			next(w, r)
			return
		}

		var provided string
		if auth := r.Header.Get("Authorization"); auth != "" {
			parts := strings.Fields(auth)
			if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
				provided = parts[1]
			} else if len(parts) == 1 {
				provided = parts[0]
			}
		} else {
			provided = r.Header.Get("X-API-Key")
		}

		if provided == "" {
			s.logger.Warn("API key missing from request", zap.String("path", r.URL.Path))
			writeJSON(w, http.StatusUnauthorized, askResponse{Error: "API key required. Provide it in Authorization header (Bearer <key>) or X-API-Key header"})
			return
		}
		if subtle.ConstantTimeCompare([]byte(provided), []byte(s.apiKey)) != 1 {
			s.logger.Warn("Invalid API key provided", zap.String("path", r.URL.Path))
			writeJSON(w, http.StatusUnauthorized, askResponse{Error: "invalid API key"})
			return
		}

		next(w, r)
	}
}

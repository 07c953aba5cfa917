package domreview

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/domreview/agentapi"
	"github.com/hazyhaar/domreview/exchange"
	"github.com/hazyhaar/domreview/review"
	"github.com/hazyhaar/domreview/shield"
)

// maxBody bounds request bodies (imports and calls).
const maxBody = 10 << 20

// Routes returns the HTTP surface of the session. When the configuration
// enables MCP, the tools are also served over streamable HTTP at /mcp.
func (s *Session) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	for _, mw := range shield.Stack(s.logger, maxBody) {
		r.Use(mw)
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "reviews": s.store.Len()})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/call", s.handleCall)
		r.Get("/reviews", s.handleReviews)
		r.Post("/reviews/{id}/replies", s.handleUserReply)
		r.Get("/export", s.handleExport)
		r.Post("/import", s.handleImport)
		r.Get("/report", s.handleReport)
	})

	r.With(shield.SecurityHeaders(shield.PageHeaders())).Get("/page", s.handlePage)
	r.Handle("/ws", s.hub)

	if s.cfg.Server.MCP {
		srv := s.MCPServer()
		r.Handle("/mcp", mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return srv }, nil))
	}
	return r
}

type callRequest struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// handleCall forwards one agent call through the bridge and answers with
// the response envelope. Failed calls are still 200: the envelope carries
// the error.
func (s *Session) handleCall(w http.ResponseWriter, r *http.Request) {
	var req callRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, bodyStatus(err), fmt.Errorf("invalid request body: %w", err))
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, errors.New("method is required"))
		return
	}
	var params any
	if len(req.Params) > 0 {
		params = req.Params
	}
	writeJSON(w, http.StatusOK, s.client.Call(r.Context(), req.Method, params))
}

type reviewList struct {
	Page     string          `json:"page"`
	Open     int             `json:"open"`
	Resolved int             `json:"resolved"`
	Filter   review.Filter   `json:"filter"`
	Sort     review.SortBy   `json:"sort"`
	Reviews  []review.Review `json:"reviews"`
}

func (s *Session) handleReviews(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter, err := review.ParseFilter(q.Get("filter"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	by, err := review.ParseSort(q.Get("sort"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	all := s.store.GetAll()
	open, resolved := review.Counts(all)
	writeJSON(w, http.StatusOK, reviewList{
		Page:     s.doc.Location().Href,
		Open:     open,
		Resolved: resolved,
		Filter:   filter,
		Sort:     by,
		Reviews:  review.Apply(all, filter, by),
	})
}

func (s *Session) handleUserReply(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Comment string `json:"comment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, bodyStatus(err), fmt.Errorf("invalid request body: %w", err))
		return
	}
	id := chi.URLParam(r, "id")
	replied, err := s.handler.AddUserReply(r.Context(), id, req.Comment)
	if err != nil {
		code := http.StatusBadRequest
		if agentapi.IsNotFound(err) {
			code = http.StatusNotFound
		}
		writeError(w, code, err)
		return
	}
	writeJSON(w, http.StatusCreated, replied)
}

func (s *Session) handleExport(w http.ResponseWriter, _ *http.Request) {
	data, err := s.Export()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", s.ExportFilename()))
	w.Write(data)
}

func (s *Session) handleImport(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, bodyStatus(err), err)
		return
	}
	n, err := s.Import(r.Context(), data)
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, exchange.ErrInvalidFormat) {
			code = http.StatusBadRequest
		}
		writeError(w, code, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"imported": n})
}

func (s *Session) handleReport(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	io.WriteString(w, s.Report())
}

// handlePage serves the document as it stands, review markers and the
// embedded data node included.
func (s *Session) handlePage(w http.ResponseWriter, _ *http.Request) {
	s.store.FlushDOM()
	page, err := s.doc.HTML()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.WriteString(w, page)
}

// bodyStatus maps a body read error to 413 when the body cap was hit.
func bodyStatus(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

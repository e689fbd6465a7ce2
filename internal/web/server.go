package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/conorfennell/chopper/internal/browse"
	"github.com/conorfennell/chopper/internal/chapters"
	"github.com/conorfennell/chopper/internal/domain"
	"github.com/conorfennell/chopper/internal/fingerprint"
	"github.com/conorfennell/chopper/internal/importer"
	"github.com/conorfennell/chopper/internal/repository"
	"github.com/conorfennell/chopper/internal/review"
)

// chapterLoadWait bounds how long selecting a chapter waits for its first
// question list before answering with whatever state the browser has.
const chapterLoadWait = 2 * time.Second

// Server holds the dependencies for the HTTP server.
// It serves a single local user, so it owns one browser and at most one review session.
type Server struct {
	repo    *repository.Repository
	imp     *importer.Importer
	source  importer.Source
	browser *browse.Browser
	router  *http.ServeMux
	log     *slog.Logger

	mu       sync.Mutex
	chapters []string
	session  *review.Session
}

// NewServer creates and configures a new server. The chapter list and the
// browser follow the store until ctx is done.
func NewServer(ctx context.Context, repo *repository.Repository, imp *importer.Importer, src importer.Source, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		repo:     repo,
		imp:      imp,
		source:   src,
		browser:  browse.New(ctx, repo, logger),
		router:   http.NewServeMux(),
		log:      logger.With("component", "web"),
		chapters: []string{},
	}
	s.routes()

	updates := chapters.Watch(ctx, repo)
	go func() {
		for list := range updates {
			s.mu.Lock()
			s.chapters = list
			s.mu.Unlock()
		}
		s.browser.Close()
	}()
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// routes sets up the routing for the server.
func (s *Server) routes() {
	s.router.HandleFunc("GET /chapters", s.handleGetChapters())
	s.router.HandleFunc("GET /chapters/{chapter}/questions", s.handleGetChapterQuestions())

	s.router.HandleFunc("GET /browse", s.handleGetBrowse())
	s.router.HandleFunc("POST /browse/chapter", s.handleSelectChapter())
	s.router.HandleFunc("POST /browse/next", s.handleBrowseMove(true))
	s.router.HandleFunc("POST /browse/prev", s.handleBrowseMove(false))
	s.router.HandleFunc("POST /browse/answer", s.handleToggleAnswer())

	s.router.HandleFunc("POST /review", s.handleStartReview())
	s.router.HandleFunc("GET /review", s.handleGetReview())
	s.router.HandleFunc("DELETE /review", s.handleAbandonReview())
	s.router.HandleFunc("POST /review/status", s.handleSelectStatus())
	s.router.HandleFunc("POST /review/next", s.handleReviewMove(review.Forward))
	s.router.HandleFunc("POST /review/prev", s.handleReviewMove(review.Backward))
	s.router.HandleFunc("POST /review/forgot", s.handleMarkForgot())

	s.router.HandleFunc("POST /import", s.handlePostImport())
}

// handleGetChapters lists chapters in first-seen order.
func (s *Server) handleGetChapters() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		list := s.chapters
		s.mu.Unlock()
		s.writeJSON(w, http.StatusOK, map[string]interface{}{"chapters": list})
	}
}

// handleGetChapterQuestions returns one chapter's questions, tagged with a content ETag.
func (s *Server) handleGetChapterQuestions() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		qs, err := s.repo.ByChapter(r.Context(), r.PathValue("chapter"))
		if err != nil {
			s.serverError(w, "loading chapter questions", err)
			return
		}

		etag := `"` + fingerprint.Snapshot(qs) + `"`
		w.Header().Set("ETag", etag)
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]interface{}{"questions": qs})
	}
}

type browseResponse struct {
	browse.State
	Notice string `json:"notice,omitempty"`
}

// handleGetBrowse renders the browser state.
func (s *Server) handleGetBrowse() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeBrowse(w, "")
	}
}

// handleSelectChapter switches the browser to another chapter and responds
// once the chapter's questions are loaded.
func (s *Server) handleSelectChapter() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		chapter := r.PostFormValue("chapter")
		if chapter == "" {
			http.Error(w, "Chapter cannot be empty", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), chapterLoadWait)
		defer cancel()
		updates := s.browser.Subscribe(ctx)
		s.browser.SelectChapter(chapter)
		s.browser.ResetAnswerVisibility()
		for st := range updates {
			if st.Chapter == chapter && st.Questions != nil {
				break
			}
		}
		s.writeBrowse(w, "")
	}
}

// handleBrowseMove moves the cursor and hides the answer of the next card.
func (s *Server) handleBrowseMove(forward bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		before := s.browser.State().Index
		if forward {
			s.browser.Next()
		} else {
			s.browser.Prev()
		}
		s.browser.ResetAnswerVisibility()

		notice := ""
		if s.browser.State().Index == before {
			notice = boundaryNotice(forward)
		}
		s.writeBrowse(w, notice)
	}
}

// handleToggleAnswer shows or hides the current answer.
func (s *Server) handleToggleAnswer() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.browser.ToggleAnswer()
		s.writeBrowse(w, "")
	}
}

func (s *Server) writeBrowse(w http.ResponseWriter, notice string) {
	st := s.browser.State()
	if st.Questions == nil {
		st.Questions = []domain.Question{}
	}
	s.writeJSON(w, http.StatusOK, browseResponse{State: st, Notice: notice})
}

type reviewResponse struct {
	review.View
	Notice string `json:"notice,omitempty"`
}

// handleStartReview opens a new review session, replacing any previous one.
func (s *Server) handleStartReview() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := review.Start(r.Context(), s.repo, s.log)
		if errors.Is(err, review.ErrNothingToReview) {
			http.Error(w, "Nothing to review", http.StatusNotFound)
			return
		}
		if err != nil {
			s.serverError(w, "starting review", err)
			return
		}

		s.mu.Lock()
		if s.session != nil {
			s.session.Abandon()
		}
		s.session = sess
		s.mu.Unlock()

		s.writeJSON(w, http.StatusCreated, reviewResponse{View: sess.View()})
	}
}

// handleGetReview renders the current review session.
func (s *Server) handleGetReview() http.HandlerFunc {
	return s.withSession(func(w http.ResponseWriter, r *http.Request, sess *review.Session) {
		s.writeJSON(w, http.StatusOK, reviewResponse{View: sess.View()})
	})
}

// handleAbandonReview ends the current review session.
func (s *Server) handleAbandonReview() http.HandlerFunc {
	return s.withSession(func(w http.ResponseWriter, r *http.Request, sess *review.Session) {
		sess.Abandon()
		s.mu.Lock()
		if s.session == sess {
			s.session = nil
		}
		s.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
}

// handleSelectStatus records a recall status for the current review question.
func (s *Server) handleSelectStatus() http.HandlerFunc {
	return s.withSession(func(w http.ResponseWriter, r *http.Request, sess *review.Session) {
		status, err := domain.ParseStatus(r.PostFormValue("status"))
		if err != nil {
			http.Error(w, "Invalid status", http.StatusBadRequest)
			return
		}

		out, err := sess.SelectStatus(status)
		if errors.Is(err, review.ErrSessionOver) {
			http.Error(w, "Review session is over", http.StatusConflict)
			return
		}
		if errors.Is(err, review.ErrAlreadyAnswered) {
			http.Error(w, "Status already chosen for this question", http.StatusConflict)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		notice := ""
		if out.Completed {
			notice = "Review complete!"
		}
		s.writeJSON(w, http.StatusOK, reviewResponse{View: sess.View(), Notice: notice})
	})
}

// handleReviewMove moves to the previous or next review question.
func (s *Server) handleReviewMove(dir review.Direction) http.HandlerFunc {
	return s.withSession(func(w http.ResponseWriter, r *http.Request, sess *review.Session) {
		err := sess.Advance(dir)
		switch {
		case errors.Is(err, review.ErrSessionOver):
			http.Error(w, "Review session is over", http.StatusConflict)
			return
		case errors.Is(err, review.ErrAtFirst):
			s.writeJSON(w, http.StatusOK, reviewResponse{View: sess.View(), Notice: boundaryNotice(false)})
			return
		case errors.Is(err, review.ErrAtLast):
			s.writeJSON(w, http.StatusOK, reviewResponse{View: sess.View(), Notice: boundaryNotice(true)})
			return
		}
		s.writeJSON(w, http.StatusOK, reviewResponse{View: sess.View()})
	})
}

// handleMarkForgot re-marks an answered review question as forgotten.
func (s *Server) handleMarkForgot() http.HandlerFunc {
	return s.withSession(func(w http.ResponseWriter, r *http.Request, sess *review.Session) {
		notice := ""
		if sess.MarkForgot() {
			notice = "Marked as forgotten"
		}
		s.writeJSON(w, http.StatusOK, reviewResponse{View: sess.View(), Notice: notice})
	})
}

// handlePostImport re-runs the import from the configured source.
func (s *Server) handlePostImport() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ok, err := s.imp.ImportFrom(r.Context(), s.source)
		if err != nil {
			s.log.Error("Import failed", "source", s.source.String(), "error", err)
			http.Error(w, "Import failed", http.StatusUnprocessableEntity)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]interface{}{"imported": ok})
	}
}

func (s *Server) withSession(h func(http.ResponseWriter, *http.Request, *review.Session)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		sess := s.session
		s.mu.Unlock()
		if sess == nil {
			http.Error(w, "No review session", http.StatusNotFound)
			return
		}
		h(w, r, sess)
	}
}

func boundaryNotice(forward bool) string {
	if forward {
		return "Already at the last question"
	}
	return "Already at the first question"
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("Error encoding response", "error", err)
	}
}

func (s *Server) serverError(w http.ResponseWriter, what string, err error) {
	s.log.Error("Request failed", "op", what, "error", err)
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}

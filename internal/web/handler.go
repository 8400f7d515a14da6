// internal/web/handler.go
package web

import (
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"

	"weblibrary/internal/config"
	"weblibrary/internal/library"
	"weblibrary/internal/persistence"
)

//go:embed page.html
var pageFS embed.FS

var pageTemplate = template.Must(template.ParseFS(pageFS, "page.html"))

// Handler serves the library page and its state-changing form actions. Each
// request follows the same cycle: load the library, apply at most one
// mutation, store it back.
type Handler struct {
	store   *persistence.Manager
	cfg     config.Config
	limiter *rate.Limiter
}

func NewHandler(store *persistence.Manager, cfg config.Config) *Handler {
	return &Handler{
		store:   store,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Every(100*time.Millisecond), 30),
	}
}

// Routes mounts the page, the JSON listing and the form actions.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(requestLogger)

	r.Get("/", h.handleIndex)
	r.Get("/api/books", h.handleListBooks)

	r.Group(func(r chi.Router) {
		r.Use(h.throttle)
		r.Post("/checkout", h.handleCheckOut)
		r.Post("/return", h.handleReturn)
		r.Post("/hold", h.handleHold)
		r.Post("/remove-hold", h.handleRemoveHold)
	})

	return r
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	lib, err := h.load(w, r)
	if err != nil {
		return
	}
	h.renderPage(w, lib, "", http.StatusOK)
}

func (h *Handler) handleListBooks(w http.ResponseWriter, r *http.Request) {
	lib, err := h.load(w, r)
	if err != nil {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(BuildEntries(lib))
}

func (h *Handler) handleCheckOut(w http.ResponseWriter, r *http.Request) {
	title := r.FormValue("title")
	username := r.FormValue("username")
	h.mutate(w, r, func(lib *library.Library) error {
		return lib.CheckOut(title, username)
	})
}

func (h *Handler) handleReturn(w http.ResponseWriter, r *http.Request) {
	title := r.FormValue("title")
	h.mutate(w, r, func(lib *library.Library) error {
		return lib.Return(title)
	})
}

func (h *Handler) handleHold(w http.ResponseWriter, r *http.Request) {
	title := r.FormValue("title")
	username := r.FormValue("username")
	h.mutate(w, r, func(lib *library.Library) error {
		return lib.Hold(title, username)
	})
}

func (h *Handler) handleRemoveHold(w http.ResponseWriter, r *http.Request) {
	title := r.FormValue("title")
	h.mutate(w, r, func(lib *library.Library) error {
		return lib.RemoveHold(title)
	})
}

// mutate runs the load / mutate / store cycle for one form action.
// Recoverable lending errors re-render the page with a message; anything
// else is a hard failure.
func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, op func(*library.Library) error) {
	lib, err := h.load(w, r)
	if err != nil {
		return
	}

	if err := op(lib); err != nil {
		switch {
		case errors.Is(err, library.ErrNotFound):
			h.renderPage(w, lib, err.Error(), http.StatusNotFound)
		case errors.Is(err, library.ErrConflict):
			h.renderPage(w, lib, err.Error(), http.StatusConflict)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	if err := h.store.Store(r.Context(), lib); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) load(w http.ResponseWriter, r *http.Request) (*library.Library, error) {
	lib, err := h.store.Load(r.Context(), library.WithCheckoutDays(h.cfg.CheckoutDays))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return nil, err
	}
	return lib, nil
}

func (h *Handler) renderPage(w http.ResponseWriter, lib *library.Library, message string, status int) {
	users := lib.Users()
	usernames := make([]string, 0, len(users))
	for _, u := range users {
		usernames = append(usernames, u.Username)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	pageTemplate.Execute(w, struct {
		Title     string
		Message   string
		Entries   []Entry
		Usernames []string
	}{
		Title:     h.cfg.PageTitle,
		Message:   message,
		Entries:   BuildEntries(lib),
		Usernames: usernames,
	})
}

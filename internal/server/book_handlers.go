package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ButyrinIA/bookblog/internal/apperr"
	"github.com/ButyrinIA/bookblog/internal/auth"
	"github.com/ButyrinIA/bookblog/internal/bookstore"
	"github.com/ButyrinIA/bookblog/internal/models"
)

type rentRequest struct {
	Plan models.RentalPlan `json:"plan"`
}

// sweep сверяет аренды перед чтением каталога. Ошибка сверки не мешает
// отдать данные.
func (s *Server) sweep(ctx context.Context) {
	if _, err := s.books.Sweep(ctx); err != nil {
		s.log.Error("rental sweep failed", "error", err)
	}
}

func filterOf(r *http.Request) (bookstore.Filter, error) {
	q := r.URL.Query()
	f := bookstore.Filter{
		Category: q.Get("category"),
		Author:   q.Get("author"),
	}
	if raw := q.Get("year"); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil {
			return f, apperr.Validation("invalid year %q", raw)
		}
		f.Year = year
	}
	return f, nil
}

func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	f, err := filterOf(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.sweep(ctx)
	books, err := s.books.List(ctx, f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, books)
}

func (s *Server) handleFacets(w http.ResponseWriter, r *http.Request) {
	facets, err := s.books.Facets(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, facets)
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	id, err := bookID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	book, err := s.books.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func (s *Server) handleAddBook(w http.ResponseWriter, r *http.Request) {
	var in bookstore.BookInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	book, err := s.books.Add(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, book)
}

func (s *Server) handleUpdateBook(w http.ResponseWriter, r *http.Request) {
	id, err := bookID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var in bookstore.BookInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	book, err := s.books.Update(r.Context(), id, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func (s *Server) handleDeleteBook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := bookID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	book, err := s.books.Get(ctx, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	prompt := s.prompts.Ask(auth.UserIDFromContext(ctx), "Удаление книги",
		fmt.Sprintf("Вы уверены, что хотите удалить книгу %q?", book.Title),
		func(ctx context.Context) error {
			return s.books.Delete(ctx, id)
		})
	writeJSON(w, http.StatusAccepted, promptResponse{Prompt: prompt})
}

func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	id, err := bookID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	book, err := s.books.Purchase(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func (s *Server) handleRent(w http.ResponseWriter, r *http.Request) {
	id, err := bookID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var in rentRequest
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	rental, err := s.books.Rent(r.Context(), id, in.Plan)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rental)
}

func (s *Server) handleListRentals(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s.sweep(ctx)
	rentals, err := s.books.ListRentals(ctx)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rentals)
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	result, err := s.books.Sweep(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if result.Reminded == nil {
		result.Reminded = []bookstore.Reminder{}
	}
	if result.Reclaimed == nil {
		result.Reclaimed = []models.Rental{}
	}
	writeJSON(w, http.StatusOK, result)
}

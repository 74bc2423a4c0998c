// Package bookstore реализует каталог книг с покупкой и арендой на
// фиксированный срок, а также сверку истёкших аренд.
package bookstore

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/ButyrinIA/bookblog/internal/apperr"
	"github.com/ButyrinIA/bookblog/internal/clock"
	"github.com/ButyrinIA/bookblog/internal/models"
	"github.com/ButyrinIA/bookblog/internal/storage"
	"github.com/go-playground/validator/v10"
)

const (
	KeyBooks   = "bookstore_books"
	KeyRentals = "bookstore_rentals"

	DefaultReminderDays = 3
)

// Notifier получает напоминания и возвраты аренды
type Notifier interface {
	Publish(topic string, payload any)
}

type nopNotifier struct{}

func (nopNotifier) Publish(string, any) {}

// Options - зависимости Store
type Options struct {
	Clock    clock.Clock
	Logger   *slog.Logger
	Notifier Notifier
	// ReminderDays - за сколько дней до конца аренды отправлять напоминание.
	ReminderDays int
}

// Store - каталог книг и аренды над общим хранилищем
type Store struct {
	store        storage.Storage
	mu           sync.RWMutex
	clock        clock.Clock
	log          *slog.Logger
	notifier     Notifier
	validate     *validator.Validate
	reminderDays int
}

// New создает Store; без часов используется системное время
func New(store storage.Storage, opts Options) *Store {
	s := &Store{
		store:        store,
		clock:        opts.Clock,
		log:          opts.Logger,
		notifier:     opts.Notifier,
		validate:     validator.New(),
		reminderDays: opts.ReminderDays,
	}
	if s.clock == nil {
		s.clock = clock.Real{}
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.notifier == nil {
		s.notifier = nopNotifier{}
	}
	if s.reminderDays <= 0 {
		s.reminderDays = DefaultReminderDays
	}
	return s
}

// BookInput - поля добавляемой или изменяемой книги
type BookInput struct {
	Title            string  `json:"title" validate:"required,max=300"`
	Author           string  `json:"author" validate:"required,max=200"`
	Year             int     `json:"year" validate:"gte=0,lte=3000"`
	Category         string  `json:"category" validate:"required,max=100"`
	Price            float64 `json:"price" validate:"gte=0"`
	RentPrice2Weeks  float64 `json:"rentPrice2Weeks" validate:"gte=0"`
	RentPriceMonth   float64 `json:"rentPriceMonth" validate:"gte=0"`
	RentPrice3Months float64 `json:"rentPrice3Months" validate:"gte=0"`
}

// BookView добавляет вычисленный признак доступности для слоя представления.
type BookView struct {
	models.Book
	Available bool `json:"available"`
}

func viewOf(b models.Book) BookView {
	return BookView{Book: b, Available: b.Available()}
}

// Filter - отбор каталога; пустые поля не ограничивают выборку
type Filter struct {
	Category string
	Author   string
	Year     int
}

// Facets - значения для фильтров каталога
type Facets struct {
	Categories []string `json:"categories"`
	Authors    []string `json:"authors"`
	Years      []int    `json:"years"`
}

func (s *Store) books(ctx context.Context) ([]models.Book, error) {
	var books []models.Book
	if _, err := storage.Load(ctx, s.store, KeyBooks, &books); err != nil {
		return nil, apperr.Storage(err, "load books")
	}
	return books, nil
}

func (s *Store) rentals(ctx context.Context) ([]models.Rental, error) {
	var rentals []models.Rental
	if _, err := storage.Load(ctx, s.store, KeyRentals, &rentals); err != nil {
		return nil, apperr.Storage(err, "load rentals")
	}
	return rentals, nil
}

func (s *Store) saveBooks(ctx context.Context, books []models.Book) error {
	if err := storage.Save(ctx, s.store, KeyBooks, books); err != nil {
		return apperr.Storage(err, "save books")
	}
	return nil
}

func (s *Store) saveRentals(ctx context.Context, rentals []models.Rental) error {
	if err := storage.Save(ctx, s.store, KeyRentals, rentals); err != nil {
		return apperr.Storage(err, "save rentals")
	}
	return nil
}

func (s *Store) check(in *BookInput) error {
	in.Title = strings.TrimSpace(in.Title)
	in.Author = strings.TrimSpace(in.Author)
	in.Category = strings.TrimSpace(in.Category)
	if err := s.validate.Struct(in); err != nil {
		return apperr.Wrap(apperr.KindValidation, err, "invalid book")
	}
	return nil
}

func indexOf(books []models.Book, id int64) int {
	return slices.IndexFunc(books, func(b models.Book) bool { return b.ID == id })
}

// Add добавляет книгу со следующим по порядку id в состоянии available.
func (s *Store) Add(ctx context.Context, in BookInput) (*models.Book, error) {
	if err := s.check(&in); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	books, err := s.books(ctx)
	if err != nil {
		return nil, err
	}
	var maxID int64
	for _, b := range books {
		maxID = max(maxID, b.ID)
	}
	book := models.Book{ID: maxID + 1}
	apply(&book, in)
	book.MarkAvailable()

	books = append(books, book)
	if err := s.saveBooks(ctx, books); err != nil {
		return nil, err
	}
	s.log.Info("book added", "book_id", book.ID, "title", book.Title)
	return &book, nil
}

// Update меняет карточку книги. Состояние (available/rented/sold) меняется
// только покупкой, арендой и сверкой.
func (s *Store) Update(ctx context.Context, id int64, in BookInput) (*models.Book, error) {
	if err := s.check(&in); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	books, err := s.books(ctx)
	if err != nil {
		return nil, err
	}
	i := indexOf(books, id)
	if i < 0 {
		return nil, apperr.NotFound("book %d not found", id)
	}
	apply(&books[i], in)
	if err := s.saveBooks(ctx, books); err != nil {
		return nil, err
	}
	book := books[i]
	return &book, nil
}

// Delete удаляет книгу и её текущую аренду, если она есть.
func (s *Store) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	books, err := s.books(ctx)
	if err != nil {
		return err
	}
	i := indexOf(books, id)
	if i < 0 {
		return apperr.NotFound("book %d not found", id)
	}
	rentals, err := s.rentals(ctx)
	if err != nil {
		return err
	}

	previous := slices.Clone(books)
	books = slices.Delete(books, i, i+1)
	if err := s.saveBooks(ctx, books); err != nil {
		return err
	}
	kept := slices.DeleteFunc(slices.Clone(rentals), func(r models.Rental) bool { return r.BookID == id })
	if len(kept) != len(rentals) {
		if err := s.saveRentals(ctx, kept); err != nil {
			s.log.Error("failed to drop rentals of deleted book", "book_id", id, "error", err)
			if rbErr := s.saveBooks(ctx, previous); rbErr != nil {
				s.log.Error("failed to roll back book", "book_id", id, "error", rbErr)
			}
			return err
		}
	}
	s.log.Info("book deleted", "book_id", id)
	return nil
}

// Get возвращает книгу с признаком доступности
func (s *Store) Get(ctx context.Context, id int64) (*BookView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	books, err := s.books(ctx)
	if err != nil {
		return nil, err
	}
	i := indexOf(books, id)
	if i < 0 {
		return nil, apperr.NotFound("book %d not found", id)
	}
	view := viewOf(books[i])
	return &view, nil
}

// List возвращает книги в порядке каталога; пустые поля фильтра не
// ограничивают выборку.
func (s *Store) List(ctx context.Context, f Filter) ([]BookView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	books, err := s.books(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]BookView, 0, len(books))
	for _, b := range books {
		if f.Category != "" && b.Category != f.Category {
			continue
		}
		if f.Author != "" && b.Author != f.Author {
			continue
		}
		if f.Year != 0 && b.Year != f.Year {
			continue
		}
		views = append(views, viewOf(b))
	}
	return views, nil
}

// Facets - значения для фильтров: категории и авторы по алфавиту, годы по убыванию.
func (s *Store) Facets(ctx context.Context) (*Facets, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	books, err := s.books(ctx)
	if err != nil {
		return nil, err
	}
	f := &Facets{Categories: []string{}, Authors: []string{}, Years: []int{}}
	for _, b := range books {
		f.Categories = append(f.Categories, b.Category)
		f.Authors = append(f.Authors, b.Author)
		f.Years = append(f.Years, b.Year)
	}
	slices.Sort(f.Categories)
	f.Categories = slices.Compact(f.Categories)
	slices.Sort(f.Authors)
	f.Authors = slices.Compact(f.Authors)
	slices.Sort(f.Years)
	f.Years = slices.Compact(f.Years)
	slices.Reverse(f.Years)
	return f, nil
}

// Seed заполняет пустой каталог книгами по умолчанию. Существующий каталог,
// даже пустой список, не трогается.
func (s *Store) Seed(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var existing []models.Book
	found, err := storage.Load(ctx, s.store, KeyBooks, &existing)
	if err != nil {
		return false, apperr.Storage(err, "load books")
	}
	if found {
		return false, nil
	}
	if err := s.saveBooks(ctx, DefaultCatalogue()); err != nil {
		return false, err
	}
	if err := s.saveRentals(ctx, []models.Rental{}); err != nil {
		return false, err
	}
	s.log.Info("catalogue seeded", "books", len(DefaultCatalogue()))
	return true, nil
}

func apply(b *models.Book, in BookInput) {
	b.Title = in.Title
	b.Author = in.Author
	b.Year = in.Year
	b.Category = in.Category
	b.Price = in.Price
	b.RentPrice2Weeks = in.RentPrice2Weeks
	b.RentPriceMonth = in.RentPriceMonth
	b.RentPrice3Months = in.RentPrice3Months
}

package bookstore

import (
	"context"
	"time"

	"github.com/ButyrinIA/bookblog/internal/apperr"
	"github.com/ButyrinIA/bookblog/internal/models"
	"github.com/google/uuid"
)

const (
	TopicReminders = "reminders"
	TopicReclaimed = "reclaimed"
)

const day = 24 * time.Hour

// DaysLeft - целое число дней до конца аренды с округлением вверх.
// Ноль и отрицательные значения означают, что срок истёк.
func DaysLeft(end, now time.Time) int {
	d := end.Sub(now)
	days := d / day
	if d%day > 0 {
		days++
	}
	return int(days)
}

// RentalView - аренда с оставшимися днями на момент чтения
type RentalView struct {
	models.Rental
	DaysLeft int  `json:"daysLeft"`
	Expiring bool `json:"expiring"`
}

// Reminder - напоминание о скором окончании аренды
type Reminder struct {
	RentalID  string    `json:"rentalId"`
	BookID    int64     `json:"bookId"`
	BookTitle string    `json:"bookTitle"`
	EndDate   time.Time `json:"endDate"`
	DaysLeft  int       `json:"daysLeft"`
}

// SweepResult - итог одного прохода по арендам
type SweepResult struct {
	Reminded  []Reminder      `json:"reminded"`
	Reclaimed []models.Rental `json:"reclaimed"`
}

// Purchase продаёт доступную книгу. Продажа необратима.
func (s *Store) Purchase(ctx context.Context, id int64) (*models.Book, error) {
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
	if !books[i].Available() {
		return nil, apperr.Unavailable("book %d is %s", id, books[i].Status)
	}

	books[i].MarkSold()
	if err := s.saveBooks(ctx, books); err != nil {
		return nil, err
	}
	book := books[i]
	s.log.Info("book purchased", "book_id", id, "price", book.Price)
	return &book, nil
}

// Rent оформляет аренду по тарифу: конец срока = now + дни тарифа, цена
// берётся из карточки книги.
func (s *Store) Rent(ctx context.Context, id int64, plan models.RentalPlan) (*models.Rental, error) {
	if !plan.Valid() {
		return nil, apperr.Validation("unknown rental plan %q", plan)
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
	if !books[i].Available() {
		return nil, apperr.Unavailable("book %d is %s", id, books[i].Status)
	}
	rentals, err := s.rentals(ctx)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	rental := models.Rental{
		ID:        uuid.NewString(),
		BookID:    id,
		BookTitle: books[i].Title,
		StartDate: now,
		EndDate:   now.Add(plan.Duration()),
		Price:     plan.PriceOf(&books[i]),
		Type:      plan,
	}

	previous := rentals
	if err := s.saveRentals(ctx, append(rentals[:len(rentals):len(rentals)], rental)); err != nil {
		return nil, err
	}
	books[i].MarkRented(rental.ID)
	if err := s.saveBooks(ctx, books); err != nil {
		if rbErr := s.saveRentals(ctx, previous); rbErr != nil {
			s.log.Error("failed to roll back rental", "rental_id", rental.ID, "error", rbErr)
		}
		return nil, err
	}
	s.log.Info("book rented", "book_id", id, "rental_id", rental.ID, "plan", plan, "end", rental.EndDate)
	return &rental, nil
}

// Sweep сверяет аренды на текущий момент часов.
func (s *Store) Sweep(ctx context.Context) (*SweepResult, error) {
	return s.SweepAt(ctx, s.clock.Now())
}

// SweepAt отправляет напоминания по арендам, у которых осталось от 1 до
// reminderDays дней (один раз на аренду), и возвращает в продажу книги с
// истёкшей арендой, удаляя саму аренду. Повторный запуск не меняет
// уже сверенное состояние.
func (s *Store) SweepAt(ctx context.Context, now time.Time) (*SweepResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rentals, err := s.rentals(ctx)
	if err != nil {
		return nil, err
	}
	result := &SweepResult{}
	if len(rentals) == 0 {
		return result, nil
	}
	books, err := s.books(ctx)
	if err != nil {
		return nil, err
	}
	previousBooks := make([]models.Book, len(books))
	copy(previousBooks, books)

	kept := make([]models.Rental, 0, len(rentals))
	booksChanged := false
	for _, r := range rentals {
		left := DaysLeft(r.EndDate, now)
		switch {
		case left <= 0:
			if i := indexOf(books, r.BookID); i >= 0 && books[i].Status == models.StatusRented && books[i].RentalID == r.ID {
				books[i].MarkAvailable()
				booksChanged = true
			}
			result.Reclaimed = append(result.Reclaimed, r)
			continue
		case left <= s.reminderDays && !r.Notified:
			r.Notified = true
			result.Reminded = append(result.Reminded, Reminder{
				RentalID:  r.ID,
				BookID:    r.BookID,
				BookTitle: r.BookTitle,
				EndDate:   r.EndDate,
				DaysLeft:  left,
			})
		}
		kept = append(kept, r)
	}
	if len(result.Reminded) == 0 && len(result.Reclaimed) == 0 {
		return result, nil
	}

	// книги пишутся до аренд
	if booksChanged {
		if err := s.saveBooks(ctx, books); err != nil {
			return nil, err
		}
	}
	if err := s.saveRentals(ctx, kept); err != nil {
		if booksChanged {
			if rbErr := s.saveBooks(ctx, previousBooks); rbErr != nil {
				s.log.Error("failed to roll back reclaimed books", "error", rbErr)
			}
		}
		return nil, err
	}

	for _, rem := range result.Reminded {
		s.log.Info("rental expiring", "rental_id", rem.RentalID, "book_id", rem.BookID, "days_left", rem.DaysLeft)
		s.notifier.Publish(TopicReminders, rem)
	}
	for _, r := range result.Reclaimed {
		s.log.Info("rental reclaimed", "rental_id", r.ID, "book_id", r.BookID)
		s.notifier.Publish(TopicReclaimed, r)
	}
	return result, nil
}

// ListRentals возвращает живые аренды с числом оставшихся дней.
func (s *Store) ListRentals(ctx context.Context) ([]RentalView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rentals, err := s.rentals(ctx)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	views := make([]RentalView, 0, len(rentals))
	for _, r := range rentals {
		left := DaysLeft(r.EndDate, now)
		views = append(views, RentalView{
			Rental:   r,
			DaysLeft: left,
			Expiring: left <= s.reminderDays,
		})
	}
	return views, nil
}

// DefaultCatalogue - стартовый каталог магазина.
func DefaultCatalogue() []models.Book {
	return []models.Book{
		{ID: 1, Title: "Война и мир", Author: "Лев Толстой", Year: 1869, Category: "Классическая литература",
			Price: 1500, RentPrice2Weeks: 200, RentPriceMonth: 350, RentPrice3Months: 900, Status: models.StatusAvailable},
		{ID: 2, Title: "Преступление и наказание", Author: "Фёдор Достоевский", Year: 1866, Category: "Классическая литература",
			Price: 1200, RentPrice2Weeks: 180, RentPriceMonth: 300, RentPrice3Months: 750, Status: models.StatusAvailable},
		{ID: 3, Title: "Мастер и Маргарита", Author: "Михаил Булгаков", Year: 1967, Category: "Фантастика",
			Price: 1100, RentPrice2Weeks: 150, RentPriceMonth: 280, RentPrice3Months: 700, Status: models.StatusAvailable},
		{ID: 4, Title: "1984", Author: "Джордж Оруэлл", Year: 1949, Category: "Антиутопия",
			Price: 1000, RentPrice2Weeks: 140, RentPriceMonth: 250, RentPrice3Months: 650, Status: models.StatusAvailable},
		{ID: 5, Title: "Гарри Поттер и философский камень", Author: "Дж. К. Роулинг", Year: 1997, Category: "Фэнтези",
			Price: 800, RentPrice2Weeks: 120, RentPriceMonth: 200, RentPrice3Months: 500, Status: models.StatusAvailable},
	}
}

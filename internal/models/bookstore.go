package models

import (
	"fmt"
	"time"
)

type BookStatus string

const (
	StatusAvailable BookStatus = "available"
	StatusRented    BookStatus = "rented"
	StatusSold      BookStatus = "sold"
)

// Book хранит состояние одним тегом Status; RentalID заполнен только для
// StatusRented. Доступность вычисляется, отдельного флага нет.
type Book struct {
	ID               int64      `json:"id"`
	Title            string     `json:"title"`
	Author           string     `json:"author"`
	Year             int        `json:"year"`
	Category         string     `json:"category"`
	Price            float64    `json:"price"`
	RentPrice2Weeks  float64    `json:"rentPrice2Weeks"`
	RentPriceMonth   float64    `json:"rentPriceMonth"`
	RentPrice3Months float64    `json:"rentPrice3Months"`
	Status           BookStatus `json:"status"`
	RentalID         string     `json:"rentalId,omitempty"`
}

func (b *Book) Available() bool { return b.Status == StatusAvailable }

func (b *Book) MarkAvailable() {
	b.Status = StatusAvailable
	b.RentalID = ""
}

func (b *Book) MarkRented(rentalID string) {
	b.Status = StatusRented
	b.RentalID = rentalID
}

func (b *Book) MarkSold() {
	b.Status = StatusSold
	b.RentalID = ""
}

// CheckState проверяет согласованность тега состояния.
func (b *Book) CheckState() error {
	switch b.Status {
	case StatusAvailable, StatusSold:
		if b.RentalID != "" {
			return fmt.Errorf("book %d is %s but references rental %s", b.ID, b.Status, b.RentalID)
		}
	case StatusRented:
		if b.RentalID == "" {
			return fmt.Errorf("book %d is rented without a rental", b.ID)
		}
	default:
		return fmt.Errorf("book %d has unknown status %q", b.ID, b.Status)
	}
	return nil
}

// RentalPlan - срок аренды
type RentalPlan string

const (
	PlanTwoWeeks    RentalPlan = "rent-2weeks"
	PlanMonth       RentalPlan = "rent-month"
	PlanThreeMonths RentalPlan = "rent-3months"
)

var planDays = map[RentalPlan]int{
	PlanTwoWeeks:    14,
	PlanMonth:       30,
	PlanThreeMonths: 90,
}

func (p RentalPlan) Valid() bool {
	_, ok := planDays[p]
	return ok
}

// Days - длительность тарифа в днях; 0 для неизвестного тарифа.
func (p RentalPlan) Days() int { return planDays[p] }

func (p RentalPlan) Duration() time.Duration {
	return time.Duration(p.Days()) * 24 * time.Hour
}

// PriceOf - цена тарифа, хранящаяся в карточке книги.
func (p RentalPlan) PriceOf(b *Book) float64 {
	switch p {
	case PlanTwoWeeks:
		return b.RentPrice2Weeks
	case PlanMonth:
		return b.RentPriceMonth
	case PlanThreeMonths:
		return b.RentPrice3Months
	}
	return 0
}

// Rental - действующая аренда книги
type Rental struct {
	ID        string     `json:"id"`
	BookID    int64      `json:"bookId"`
	BookTitle string     `json:"bookTitle"`
	StartDate time.Time  `json:"startDate"`
	EndDate   time.Time  `json:"endDate"`
	Price     float64    `json:"price"`
	Type      RentalPlan `json:"type"`
	Notified  bool       `json:"notified"`
}

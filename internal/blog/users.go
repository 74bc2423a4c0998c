package blog

import (
	"context"
	"errors"
	"strings"

	"github.com/ButyrinIA/bookblog/internal/apperr"
	"github.com/ButyrinIA/bookblog/internal/models"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// RegisterInput - данные регистрации
type RegisterInput struct {
	Username string `json:"username" validate:"required,min=3,max=32"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Email    string `json:"email" validate:"omitempty,email"`
}

// LoginInput - данные входа
type LoginInput struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Users управляет учетными записями
type Users struct {
	*core
}

// Register создает пользователя с уникальным именем и хешем пароля bcrypt
func (m *Users) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if err := m.check(in); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	users, err := m.users(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.Username == in.Username {
			return nil, apperr.Validation("username %s already taken", in.Username)
		}
	}

	user := models.User{
		ID:           uuid.NewString(),
		Username:     in.Username,
		PasswordHash: string(hash),
		Email:        in.Email,
		CreatedAt:    m.clock.Now(),
	}
	users = append(users, user)
	if err := save(ctx, m.store, KeyUsers, users); err != nil {
		return nil, err
	}
	m.log.Info("user registered", "user_id", user.ID, "username", user.Username)
	return &user, nil
}

// Login проверяет пароль по bcrypt хешу. Неизвестное имя и неверный пароль
// неразличимы для вызывающего.
func (m *Users) Login(ctx context.Context, in LoginInput) (*models.User, error) {
	if err := m.check(in); err != nil {
		return nil, err
	}

	m.mu.RLock()
	users, err := m.users(ctx)
	m.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	for i := range users {
		if users[i].Username != in.Username {
			continue
		}
		err := bcrypt.CompareHashAndPassword([]byte(users[i].PasswordHash), []byte(in.Password))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			break
		}
		if err != nil {
			return nil, err
		}
		return &users[i], nil
	}
	return nil, apperr.Unauthenticated("invalid username or password")
}

// Get возвращает пользователя по id
func (m *Users) Get(ctx context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	users, err := m.users(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		if users[i].ID == id {
			return &users[i], nil
		}
	}
	return nil, apperr.NotFound("user %s not found", id)
}

// GetMany возвращает найденных пользователей по id; отсутствующие пропускаются.
func (m *Users) GetMany(ctx context.Context, ids []string) (map[string]*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	users, err := m.users(ctx)
	if err != nil {
		return nil, err
	}
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	result := make(map[string]*models.User, len(ids))
	for i := range users {
		if wanted[users[i].ID] {
			result[users[i].ID] = &users[i]
		}
	}
	return result, nil
}

// List возвращает всех пользователей
func (m *Users) List(ctx context.Context) ([]models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.users(ctx)
}

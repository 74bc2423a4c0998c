// Package confirm хранит ожидающие подтверждения опасных действий.
// Каждое подтверждение разрешается ровно один раз: "да" выполняет
// действие, "нет", закрытие и истечение срока дают false.
package confirm

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ButyrinIA/bookblog/internal/apperr"
	"github.com/ButyrinIA/bookblog/internal/clock"
	"github.com/google/uuid"
)

// Action выполняется при ответе "да"
type Action func(ctx context.Context) error

// Prompt - ожидающее подтверждение одного пользователя
type Prompt struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"-"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`

	action    Action
	once      sync.Once
	done      chan struct{}
	confirmed bool
}

func (p *Prompt) resolve(confirmed bool) {
	p.once.Do(func() {
		p.confirmed = confirmed
		close(p.done)
	})
}

// Done закрывается после ответа.
func (p *Prompt) Done() <-chan struct{} { return p.done }

// Confirmed имеет смысл только после Done.
func (p *Prompt) Confirmed() bool {
	select {
	case <-p.done:
		return p.confirmed
	default:
		return false
	}
}

// Registry хранит ожидающие подтверждения до ответа или истечения срока
type Registry struct {
	mu      sync.Mutex
	prompts map[string]*Prompt
	ttl     time.Duration
	clock   clock.Clock
	log     *slog.Logger
}

// NewRegistry создает Registry; подтверждение живет ttl
func NewRegistry(ttl time.Duration, c clock.Clock, log *slog.Logger) *Registry {
	if c == nil {
		c = clock.Real{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		prompts: make(map[string]*Prompt),
		ttl:     ttl,
		clock:   c,
		log:     log,
	}
}

// Ask регистрирует подтверждение действия action для ownerID
func (r *Registry) Ask(ownerID, title, message string, action Action) *Prompt {
	now := r.clock.Now()
	p := &Prompt{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Title:     title,
		Message:   message,
		CreatedAt: now,
		ExpiresAt: now.Add(r.ttl),
		action:    action,
		done:      make(chan struct{}),
	}
	r.mu.Lock()
	r.prompts[p.ID] = p
	r.mu.Unlock()
	return p
}

func (r *Registry) take(id, ownerID string) (*Prompt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.prompts[id]
	if !ok {
		return nil, apperr.NotFound("prompt %s not found", id)
	}
	if p.OwnerID != ownerID {
		return nil, apperr.Forbidden("prompt %s belongs to another user", id)
	}
	delete(r.prompts, id)
	return p, nil
}

// Answer разрешает подтверждение. Возвращает true, только если ответ "да"
// и действие выполнилось без ошибки.
func (r *Registry) Answer(ctx context.Context, id, ownerID string, yes bool) (bool, error) {
	p, err := r.take(id, ownerID)
	if err != nil {
		return false, err
	}
	if !r.clock.Now().Before(p.ExpiresAt) {
		p.resolve(false)
		return false, apperr.NotFound("prompt %s expired", id)
	}
	if !yes {
		p.resolve(false)
		return false, nil
	}
	if err := p.action(ctx); err != nil {
		p.resolve(false)
		return false, err
	}
	p.resolve(true)
	r.log.Info("prompt confirmed", "prompt_id", id, "title", p.Title)
	return true, nil
}

// Dismiss равносилен ответу "нет".
func (r *Registry) Dismiss(id, ownerID string) error {
	_, err := r.Answer(context.Background(), id, ownerID, false)
	return err
}

// Expire снимает просроченные подтверждения с отрицательным ответом.
func (r *Registry) Expire(now time.Time) int {
	r.mu.Lock()
	var expired []*Prompt
	for id, p := range r.prompts {
		if !now.Before(p.ExpiresAt) {
			expired = append(expired, p)
			delete(r.prompts, id)
		}
	}
	r.mu.Unlock()

	for _, p := range expired {
		p.resolve(false)
	}
	return len(expired)
}

// Pending возвращает число ожидающих подтверждений
func (r *Registry) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.prompts)
}

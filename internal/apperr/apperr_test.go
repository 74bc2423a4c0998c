package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNotFound, KindOf(NotFound("post %s not found", "p1")))
	assert.Equal(t, KindUnavailable, KindOf(fmt.Errorf("rent: %w", Unavailable("book is not available"))))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
	assert.Equal(t, Kind(""), KindOf(nil))
}

func TestStorageWrap(t *testing.T) {
	cause := errors.New("quota exceeded")
	err := Storage(cause, "save books")

	assert.True(t, IsKind(err, KindStorage))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "save books: quota exceeded", err.Error())
	assert.Nil(t, Wrap(KindStorage, nil, "noop"))
}

func TestIsByKind(t *testing.T) {
	err := fmt.Errorf("handler: %w", Validation("username is taken"))

	assert.ErrorIs(t, err, Validation(""))
	assert.ErrorIs(t, err, Validation("username is taken"))
	assert.NotErrorIs(t, err, Validation("other message"))
	assert.NotErrorIs(t, err, NotFound(""))
}

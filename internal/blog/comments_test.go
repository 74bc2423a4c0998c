package blog

import (
	"context"
	"testing"
	"time"

	"github.com/ButyrinIA/bookblog/internal/apperr"
	"github.com/ButyrinIA/bookblog/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComments(t *testing.T) {
	b, c, rec := newTestBlog(t)
	ctx := context.Background()
	a := mustRegister(t, b, "alice")
	bob := mustRegister(t, b, "bob")
	p := mustPost(t, b, a.ID, PostInput{IsPublic: true})

	first, err := b.Comments.Add(ctx, p.ID, bob.ID, CommentInput{Text: " first "})
	require.NoError(t, err)
	assert.Equal(t, "first", first.Text)

	c.Advance(time.Second)
	_, err = b.Comments.Add(ctx, p.ID, a.ID, CommentInput{Text: "second"})
	require.NoError(t, err)

	list, err := b.Comments.ListByPost(ctx, p.ID, "")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "first", list[0].Text)
	assert.Equal(t, "second", list[1].Text)

	assert.Equal(t, []string{"comments:" + p.ID, "comments:" + p.ID}, rec.topics())
	assert.IsType(t, models.Comment{}, rec.events[0].payload)
}

func TestComments_RequireVisibility(t *testing.T) {
	b, _, _ := newTestBlog(t)
	ctx := context.Background()
	a := mustRegister(t, b, "alice")
	bob := mustRegister(t, b, "bob")
	private := mustPost(t, b, a.ID, PostInput{})

	_, err := b.Comments.Add(ctx, private.ID, bob.ID, CommentInput{Text: "hi"})
	assert.True(t, apperr.IsKind(err, apperr.KindForbidden))

	_, err = b.Comments.ListByPost(ctx, private.ID, bob.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindForbidden))

	list, err := b.Comments.ListByPost(ctx, private.ID, a.ID)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = b.Comments.Add(ctx, private.ID, a.ID, CommentInput{Text: ""})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	_, err = b.Comments.Add(ctx, "missing", a.ID, CommentInput{Text: "hi"})
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

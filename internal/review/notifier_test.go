package review_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/studyplan/internal/review"
)

func TestHooksMayRegisterDuringPublish(t *testing.T) {
	n := review.NewNotifier()

	var first, late int
	var sub <-chan review.Event
	n.OnChange(func(review.Event) {
		first++
		if sub == nil {
			sub = n.Subscribe()
			n.OnChange(func(review.Event) { late++ })
		}
	})

	n.Publish(review.Event{Kind: review.EventCreated, OwnerID: "u1"})
	n.Publish(review.Event{Kind: review.EventCompleted, OwnerID: "u1"})

	assert.Equal(t, 2, first)
	assert.Equal(t, 1, late, "a hook added during a publish sees later events only")

	require.NotNil(t, sub)
	e := <-sub
	assert.Equal(t, review.EventCreated, e.Kind)
	n.Unsubscribe(sub)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	n := review.NewNotifier()
	sub := n.Subscribe()
	n.Unsubscribe(sub)

	n.Publish(review.Event{Kind: review.EventCreated, OwnerID: "u1"})
	_, ok := <-sub
	assert.False(t, ok)
}

package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postapi/postapi/models"
)

func TestSendMessage(t *testing.T) {
	f := newFixture(t)
	alice, pa := f.user("alice")
	bob, _ := f.user("bob")

	view, err := f.svc.Messages.Send(f.ctx, pa, "BOB", "hello <script>x</script>there")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, view.SenderID)
	assert.Equal(t, bob.ID, view.ReceiverID)
	assert.Equal(t, "alice", view.SenderUsername)
	assert.Equal(t, "bob", view.ReceiverUsername)
	assert.Equal(t, models.NoProfilePicture, view.SenderProfilePicture)
	assert.NotContains(t, view.Content, "script")
	assert.False(t, view.IsRead)

	var sender models.User
	require.NoError(t, f.db.First(&sender, alice.ID).Error)
	assert.NotNil(t, sender.LastLogin)

	_, err = f.svc.Messages.Send(f.ctx, pa, "bob", "   ")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.svc.Messages.Send(f.ctx, pa, "nobody", "hi")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.Messages.Send(f.ctx, Anonymous(), "bob", "hi")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestOnlyReceiverOpensMessage(t *testing.T) {
	f := newFixture(t)
	alice, pa := f.user("alice")
	bob, pb := f.user("bob")
	_, pc := f.user("carol")
	m := f.message(alice, bob, "for bob only")

	_, err := f.svc.Messages.Get(f.ctx, pa, m.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.Messages.Get(f.ctx, pc, m.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.Messages.Get(f.ctx, pb, 9999)
	assert.ErrorIs(t, err, ErrNotFound)

	var stored models.Message
	require.NoError(t, f.db.First(&stored, m.ID).Error)
	assert.False(t, stored.IsRead)

	view, err := f.svc.Messages.Get(f.ctx, pb, m.ID)
	require.NoError(t, err)
	assert.True(t, view.IsRead)
	assert.Equal(t, "for bob only", view.Content)
}

func TestInbox(t *testing.T) {
	f := newFixture(t)
	alice, _ := f.user("alice")
	bob, pb := f.user("bob")
	carol, _ := f.user("carol")
	f.message(alice, bob, "first")
	f.message(bob, alice, "reply")
	f.message(carol, bob, "second")

	inbox, err := f.svc.Messages.Inbox(f.ctx, pb)
	require.NoError(t, err)
	require.Len(t, inbox, 2)
	assert.Equal(t, "second", inbox[0].Content)
	assert.Equal(t, "first", inbox[1].Content)
}

func TestConversationPagesNewestAscending(t *testing.T) {
	f := newFixture(t)
	alice, pa := f.user("alice")
	bob, pb := f.user("bob")
	carol, pc := f.user("carol")
	f.message(alice, bob, "one")
	f.message(bob, alice, "two")
	f.message(alice, carol, "unrelated")
	f.message(alice, bob, "three")

	contents := func(views []models.MessageView) []string {
		out := make([]string, 0, len(views))
		for _, v := range views {
			out = append(out, v.Content)
		}
		return out
	}

	page1, err := f.svc.Messages.Conversation(f.ctx, pa, "alice", "bob", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"two", "three"}, contents(page1))

	page2, err := f.svc.Messages.Conversation(f.ctx, pb, "bob", "alice", 2, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"one"}, contents(page2))

	_, err = f.svc.Messages.Conversation(f.ctx, pc, "alice", "bob", 1, 10)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.Messages.Conversation(f.ctx, pa, "alice", "nobody", 1, 10)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCorrespondentsOrderedByLatestExchange(t *testing.T) {
	f := newFixture(t)
	alice, pa := f.user("alice")
	bob, _ := f.user("bob")
	carol, _ := f.user("carol")
	dave, _ := f.user("dave")

	f.message(carol, alice, "hi from carol")
	f.message(bob, alice, "hi from bob")
	f.message(alice, carol, "answer to carol")
	f.message(alice, dave, "dave never wrote back")
	f.message(alice, alice, "note to self")

	list, err := f.svc.Messages.Correspondents(f.ctx, pa)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, carol.ID, list[0].ID)
	assert.Equal(t, bob.ID, list[1].ID)
	assert.Equal(t, "bob", list[1].Username)

	_, pd := f.user("erin")
	empty, err := f.svc.Messages.Correspondents(f.ctx, pd)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postapi/postapi/models"
	"github.com/postapi/postapi/storage"
)

func membershipRows(t *testing.T, f *fixture, userID, groupID uint) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&models.GroupMember{}).Where("user_id = ? AND group_id = ?", userID, groupID).Count(&n).Error)
	return n
}

func TestCreateGroup(t *testing.T) {
	f := newFixture(t)
	owner, po := f.user("owner")

	view, err := f.svc.Groups.Create(f.ctx, po, CreateGroupInput{
		Name:        "Gophers",
		Description: "people who write go",
		Picture:     imageFile("logo.png"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Gophers", view.Name)
	assert.Equal(t, owner.ID, view.OwnerID)
	assert.Equal(t, "owner", view.Owner.Username)
	assert.Empty(t, view.Members)
	assert.Equal(t, 1, view.MembersCount)
	assert.Contains(t, view.Picture, "logo.png")
	assert.EqualValues(t, 1, membershipRows(t, f, owner.ID, view.ID))

	_, err = f.svc.Groups.Create(f.ctx, po, CreateGroupInput{Name: "Gophers", Description: "same name again"})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = f.svc.Groups.Create(f.ctx, po, CreateGroupInput{Name: "abc", Description: "name too short"})
	assert.ErrorIs(t, err, ErrValidation)

	exists, err := f.svc.Groups.Exists(f.ctx, "Gophers")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestJoinIsIdempotent(t *testing.T) {
	f := newFixture(t)
	owner, _ := f.user("owner")
	joiner, pj := f.user("joiner")
	g := f.group(owner, "private club")

	require.NoError(t, f.svc.Groups.Join(f.ctx, pj, g.ID))
	err := f.svc.Groups.Join(f.ctx, pj, g.ID)
	assert.ErrorIs(t, err, ErrAlreadyMember)
	assert.ErrorIs(t, err, ErrConflict)
	assert.EqualValues(t, 1, membershipRows(t, f, joiner.ID, g.ID))

	assert.ErrorIs(t, f.svc.Groups.Join(f.ctx, pj, 9999), ErrNotFound)
	assert.ErrorIs(t, f.svc.Groups.Join(f.ctx, Anonymous(), g.ID), ErrUnauthenticated)
}

func TestLeaveRemovesEveryRow(t *testing.T) {
	f := newFixture(t)
	owner, _ := f.user("owner")
	leaver, pl := f.user("leaver")
	g := f.group(owner, "private club", leaver, leaver)
	require.EqualValues(t, 2, membershipRows(t, f, leaver.ID, g.ID))

	require.NoError(t, f.svc.Groups.Leave(f.ctx, pl, g.ID))
	assert.Zero(t, membershipRows(t, f, leaver.ID, g.ID))

	require.NoError(t, f.svc.Groups.Leave(f.ctx, pl, g.ID))
	assert.ErrorIs(t, f.svc.Groups.Leave(f.ctx, pl, 9999), ErrNotFound)

	ok, err := f.svc.Resolver.CanViewGroupPost(f.ctx, pl, g.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGroupViewListsOwnerOnce(t *testing.T) {
	f := newFixture(t)
	owner, _ := f.user("owner")
	m1, _ := f.user("member1")
	m2, _ := f.user("member2")
	g := f.group(owner, "private club", m1, m2, m1)

	view, err := f.svc.Groups.Get(f.ctx, g.ID)
	require.NoError(t, err)
	require.NotNil(t, view.Owner)
	assert.Equal(t, owner.ID, view.Owner.ID)
	ids := []uint{}
	for _, m := range view.Members {
		ids = append(ids, m.ID)
		assert.NotEqual(t, owner.ID, m.ID)
	}
	assert.ElementsMatch(t, []uint{m1.ID, m2.ID}, ids)
	assert.Equal(t, 3, view.MembersCount)
	assert.Equal(t, models.NoProfilePicture, view.Picture)

	list, err := f.svc.Groups.List(f.ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 3, list[0].MembersCount)
}

func TestUpdateGroup(t *testing.T) {
	f := newFixture(t)
	owner, po := f.user("owner")
	member, _ := f.user("member")
	g := f.group(owner, "private club", member)
	f.group(owner, "taken name")

	name := "renamed club"
	_, err := f.svc.Groups.Update(f.ctx, Principal{UserID: member.ID}, g.ID, UpdateGroupInput{Name: &name})
	assert.ErrorIs(t, err, ErrForbidden)

	view, err := f.svc.Groups.Update(f.ctx, po, g.ID, UpdateGroupInput{Name: &name, Picture: imageFile("new.png")})
	require.NoError(t, err)
	assert.Equal(t, name, view.Name)
	assert.Equal(t, "a test group", view.Description)
	assert.Contains(t, view.Picture, "new.png")

	taken := "taken name"
	_, err = f.svc.Groups.Update(f.ctx, po, g.ID, UpdateGroupInput{Name: &taken})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestDeleteGroupCascades(t *testing.T) {
	f := newFixture(t)
	owner, po := f.user("owner")
	member, pm := f.user("member")
	g := f.group(owner, "private club", member)
	post := f.post(member, &g.ID, "a post inside the club")
	c := f.comment(post, &owner, nil, "a comment inside the club")
	require.NoError(t, f.db.Create(&models.Image{PostID: post.ID, UserID: member.ID, URL: "https://img.test/1.png"}).Error)
	outside := f.post(owner, nil, "a public post survives")

	assert.ErrorIs(t, f.svc.Groups.Delete(f.ctx, pm, g.ID), ErrForbidden)
	require.NoError(t, f.svc.Groups.Delete(f.ctx, po, g.ID))

	var n int64
	f.db.Model(&models.Post{}).Where("id = ?", post.ID).Count(&n)
	assert.Zero(t, n)
	f.db.Model(&models.Comment{}).Where("id = ?", c.ID).Count(&n)
	assert.Zero(t, n)
	f.db.Model(&models.Image{}).Where("post_id = ?", post.ID).Count(&n)
	assert.Zero(t, n)
	f.db.Model(&models.GroupMember{}).Where("group_id = ?", g.ID).Count(&n)
	assert.Zero(t, n)
	_, err := f.svc.Groups.Get(f.ctx, g.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.Posts.Get(f.ctx, po, outside.ID, OrderNewest)
	assert.NoError(t, err)
}

func TestGroupPictureUploadFailure(t *testing.T) {
	f := newFixture(t)
	_, po := f.user("owner")
	f.img.err = storage.ErrTooLarge

	_, err := f.svc.Groups.Create(f.ctx, po, CreateGroupInput{Name: "big pictures", Description: "too large to store", Picture: imageFile("huge.png")})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "max_size", verr.Rule)

	exists, err := f.svc.Groups.Exists(f.ctx, "big pictures")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCreateGroupLosingNameRace(t *testing.T) {
	f := newFixture(t)
	owner, po := f.user("owner")
	rival, _ := f.user("rival")
	f.sneakInsert("user_groups", "INSERT INTO user_groups (name, description, owner_id) VALUES (?, ?, ?)", "Gophers", "got there first", rival.ID)

	_, err := f.svc.Groups.Create(f.ctx, po, CreateGroupInput{Name: "Gophers", Description: "people who write go"})
	assert.ErrorIs(t, err, ErrConflict)

	var n int64
	require.NoError(t, f.db.Model(&models.Group{}).Where("owner_id = ?", owner.ID).Count(&n).Error)
	assert.EqualValues(t, 0, n)
	require.NoError(t, f.db.Model(&models.GroupMember{}).Where("user_id = ?", owner.ID).Count(&n).Error)
	assert.EqualValues(t, 0, n)
}

package services

import (
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postapi/postapi/models"
	"github.com/postapi/postapi/utils"
)

func TestRegister(t *testing.T) {
	f := newFixture(t)

	view, err := f.svc.Users.Register(f.ctx, RegisterInput{
		Username:  "  NewUser ",
		Email:     "New.User@Example.COM",
		Password:  "correct horse",
		FirstName: "New",
		Gender:    "Female",
		Picture:   imageFile("me.png"),
	})
	require.NoError(t, err)
	assert.Equal(t, "newuser", view.Username)
	assert.Equal(t, "new.user@example.com", view.Email)
	assert.Equal(t, models.RoleUser, view.Role)
	assert.Equal(t, "female", view.Gender)
	assert.Contains(t, view.ProfilePicture, "me.png")

	var stored models.User
	require.NoError(t, f.db.First(&stored, view.ID).Error)
	assert.NotEqual(t, "correct horse", stored.PasswordHash)
	assert.True(t, utils.CheckPassword(stored.PasswordHash, "correct horse"))

	_, err = f.svc.Users.Register(f.ctx, RegisterInput{Username: "newuser", Email: "other@example.com", Password: "correct horse"})
	assert.ErrorIs(t, err, ErrConflict)
	_, err = f.svc.Users.Register(f.ctx, RegisterInput{Username: "another", Email: "NEW.USER@example.com", Password: "correct horse"})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		name  string
		in    RegisterInput
		field string
	}{
		{"short username", RegisterInput{Username: "abc", Email: "a@example.com", Password: "long enough"}, "username"},
		{"long username", RegisterInput{Username: "abcdefghijklmnopq", Email: "a@example.com", Password: "long enough"}, "username"},
		{"username symbols", RegisterInput{Username: "bad-name", Email: "a@example.com", Password: "long enough"}, "username"},
		{"bad email", RegisterInput{Username: "gooduser", Email: "not-an-email", Password: "long enough"}, "email"},
		{"short password", RegisterInput{Username: "gooduser", Email: "a@example.com", Password: "short"}, "password"},
		{"unknown gender", RegisterInput{Username: "gooduser", Email: "a@example.com", Password: "long enough", Gender: "robot"}, "gender"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Users.Register(f.ctx, tc.in)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Users.Register(f.ctx, RegisterInput{Username: "loginuser", Email: "login@example.com", Password: "correct horse"})
	require.NoError(t, err)

	u, err := f.svc.Users.Authenticate(f.ctx, "LoginUser", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "loginuser", u.Username)
	require.NotNil(t, u.LastLogin)

	_, err = f.svc.Users.Authenticate(f.ctx, "loginuser", "wrong horse")
	assert.ErrorIs(t, err, ErrUnauthenticated)
	_, err = f.svc.Users.Authenticate(f.ctx, "ghost", "correct horse")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestPublicViewHidesEmail(t *testing.T) {
	f := newFixture(t)
	_, p := f.user("someone")

	public, err := f.svc.Users.GetPublic(f.ctx, "someone")
	require.NoError(t, err)
	assert.Empty(t, public.Email)
	assert.Equal(t, models.NoProfilePicture, public.ProfilePicture)

	me, err := f.svc.Users.Me(f.ctx, p)
	require.NoError(t, err)
	assert.Equal(t, "someone@example.com", me.Email)

	_, err = f.svc.Users.GetPublic(f.ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.Users.Me(f.ctx, Anonymous())
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestUpdateUser(t *testing.T) {
	f := newFixture(t)
	_, p := f.user("someone")
	f.user("other")

	bio := "writes <b>go</b>"
	view, err := f.svc.Users.Update(f.ctx, p, UpdateUserInput{Bio: &bio})
	require.NoError(t, err)
	assert.Equal(t, "writes go", view.Bio)

	taken := "other@example.com"
	_, err = f.svc.Users.Update(f.ctx, p, UpdateUserInput{Email: &taken})
	assert.ErrorIs(t, err, ErrConflict)

	pw := "a new password"
	_, err = f.svc.Users.Update(f.ctx, p, UpdateUserInput{Password: &pw})
	require.NoError(t, err)
	_, err = f.svc.Users.Authenticate(f.ctx, "someone", pw)
	assert.NoError(t, err)
}

func TestDeleteUserKeepsContentAnonymous(t *testing.T) {
	f := newFixture(t)
	owner, po := f.user("owner")
	leaving, pl := f.user("leaving")
	_, stranger := f.user("stranger")
	g := f.group(owner, "private club", leaving)
	post := f.post(leaving, nil, "a post that outlives its author")
	f.comment(post, &leaving, nil, "a comment that outlives its author")

	assert.ErrorIs(t, f.svc.Users.Delete(f.ctx, stranger, "leaving"), ErrForbidden)
	require.NoError(t, f.svc.Users.Delete(f.ctx, pl, "leaving"))

	assert.Zero(t, membershipRows(t, f, leaving.ID, g.ID))
	assert.EqualValues(t, 1, membershipRows(t, f, owner.ID, g.ID))

	view, err := f.svc.Posts.Get(f.ctx, po, post.ID, OrderNewest)
	require.NoError(t, err)
	assert.Equal(t, models.AnonymousAuthor, view.Author)
	assert.Equal(t, models.NoProfilePicture, view.ProfilePicture)
	require.Len(t, view.Thread, 1)
	assert.Equal(t, models.AnonymousAuthor, view.Thread[0].Author)

	_, err = f.svc.Users.GetPublic(f.ctx, "leaving")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAdminDeletesUser(t *testing.T) {
	f := newFixture(t)
	admin, _ := f.user("admin")
	f.user("target")

	pa := Principal{UserID: admin.ID, Username: admin.Username, Admin: true}
	require.NoError(t, f.svc.Users.Delete(f.ctx, pa, "target"))
	exists, err := f.svc.Users.Exists(f.ctx, "target")
	require.NoError(t, err)
	assert.False(t, exists)
}

func newTierFixture(t *testing.T) (*fixture, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := newFixture(t)
	f.svc = New(f.db, f.img, utils.NewRedisCache(client, "tiers:", time.Hour))
	return f, mr
}

func TestTiersInUseCachedAndInvalidated(t *testing.T) {
	f, mr := newTierFixture(t)
	admin, _ := f.user("admin")
	pa := Principal{UserID: admin.ID, Role: models.RoleAdmin}
	_, pu := f.user("reader")

	gold, err := f.svc.Tiers.Create(f.ctx, pa, "gold", "top readers")
	require.NoError(t, err)
	_, err = f.svc.Tiers.Create(f.ctx, pa, "silver", "other readers")
	require.NoError(t, err)
	_, err = f.svc.Tiers.Create(f.ctx, pu, "bronze", "not allowed")
	assert.ErrorIs(t, err, ErrForbidden)

	tiers, err := f.svc.Tiers.InUse(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, tiers)
	assert.True(t, mr.Exists("tiers:in_use"))

	_, err = f.svc.Users.AssignTier(f.ctx, pu, "reader", &gold.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	view, err := f.svc.Users.AssignTier(f.ctx, pa, "reader", &gold.ID)
	require.NoError(t, err)
	assert.Equal(t, "gold", view.TierName)
	assert.False(t, mr.Exists("tiers:in_use"))

	tiers, err = f.svc.Tiers.InUse(f.ctx)
	require.NoError(t, err)
	require.Len(t, tiers, 1)
	assert.Equal(t, "gold", tiers[0].Name)

	// served from the cache even after the row changes underneath
	require.NoError(t, f.db.Model(&models.ReaderTier{}).Where("id = ?", gold.ID).Update("name", "platinum").Error)
	tiers, err = f.svc.Tiers.InUse(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, "gold", tiers[0].Name)

	missing := uint(9999)
	_, err = f.svc.Users.AssignTier(f.ctx, pa, "reader", &missing)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegisterLosingUniqueRace(t *testing.T) {
	f := newFixture(t)
	f.sneakInsert("users", "INSERT INTO users (username, email, role) VALUES (?, ?, ?)", "racer", "someone@example.com", models.RoleUser)

	_, err := f.svc.Users.Register(f.ctx, RegisterInput{Username: "racer", Email: "racer@example.com", Password: "correct horse"})
	assert.ErrorIs(t, err, ErrConflict)

	var n int64
	require.NoError(t, f.db.Model(&models.User{}).Where("email = ?", "racer@example.com").Count(&n).Error)
	assert.EqualValues(t, 0, n)
}

func TestWrapFoldsDuplicateKey(t *testing.T) {
	f := newFixture(t)
	f.user("taken")

	err := f.db.Create(&models.User{Username: "other", Email: "taken@example.com", Role: models.RoleUser}).Error
	require.Error(t, err)
	assert.ErrorIs(t, wrap("create user", err), ErrConflict)
	assert.NotErrorIs(t, wrap("create user", errors.New("disk full")), ErrConflict)
}

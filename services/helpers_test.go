package services

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/postapi/postapi/models"
	"github.com/postapi/postapi/storage"
	"github.com/postapi/postapi/utils"
)

func init() {
	utils.PasswordCost = bcrypt.MinCost
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent), TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

// fakeImageStore hands out predictable URLs or fails with err.
type fakeImageStore struct {
	uploaded []string
	err      error
}

func (f *fakeImageStore) Upload(_ context.Context, file storage.FileUpload) (string, error) {
	if file.Empty() {
		return "", nil
	}
	if f.err != nil {
		return "", f.err
	}
	url := fmt.Sprintf("https://img.test/%d/%s", len(f.uploaded)+1, file.Name)
	f.uploaded = append(f.uploaded, url)
	return url, nil
}

func imageFile(name string) storage.FileUpload {
	body := "\x89PNG fake image body"
	return storage.FileUpload{Name: name, ContentType: "image/png", Size: int64(len(body)), Reader: io.NopCloser(strings.NewReader(body))}
}

type fixture struct {
	t   *testing.T
	db  *gorm.DB
	svc *Services
	img *fakeImageStore
	ctx context.Context
	now time.Time
}

func newFixture(t *testing.T) *fixture {
	db := setupTestDB(t)
	img := &fakeImageStore{}
	return &fixture{
		t:   t,
		db:  db,
		svc: New(db, img, nil),
		img: img,
		ctx: context.Background(),
		now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (f *fixture) user(name string) (models.User, Principal) {
	f.t.Helper()
	u := models.User{Username: name, Email: name + "@example.com", Role: models.RoleUser}
	require.NoError(f.t, f.db.Create(&u).Error)
	return u, Principal{UserID: u.ID, Username: u.Username, Role: u.Role}
}

func (f *fixture) group(owner models.User, name string, members ...models.User) models.Group {
	f.t.Helper()
	g := models.Group{Name: name, Description: "a test group", OwnerID: owner.ID}
	require.NoError(f.t, f.db.Create(&g).Error)
	require.NoError(f.t, f.db.Create(&models.GroupMember{UserID: owner.ID, GroupID: g.ID}).Error)
	for _, m := range members {
		require.NoError(f.t, f.db.Create(&models.GroupMember{UserID: m.ID, GroupID: g.ID}).Error)
	}
	return g
}

// tick returns strictly increasing timestamps so ordering assertions are stable.
func (f *fixture) tick() time.Time {
	f.now = f.now.Add(time.Minute)
	return f.now
}

func (f *fixture) post(author models.User, groupID *uint, content string) models.Post {
	f.t.Helper()
	at := f.tick()
	p := models.Post{UserID: author.ID, GroupID: groupID, Content: content, CreatedAt: at, UpdatedAt: at}
	require.NoError(f.t, f.db.Create(&p).Error)
	return p
}

func (f *fixture) comment(post models.Post, author *models.User, parent *models.Comment, content string) models.Comment {
	f.t.Helper()
	at := f.tick()
	c := models.Comment{PostID: post.ID, Content: content, CreatedAt: at, UpdatedAt: at}
	if author != nil {
		id := author.ID
		c.UserID = &id
	}
	if parent != nil {
		pid := parent.ID
		c.ParentCommentID = &pid
	}
	require.NoError(f.t, f.db.Create(&c).Error)
	return c
}

func (f *fixture) message(from, to models.User, content string) models.Message {
	f.t.Helper()
	m := models.Message{SenderID: from.ID, ReceiverID: to.ID, Content: content, CreatedAt: f.tick()}
	require.NoError(f.t, f.db.Create(&m).Error)
	return m
}

func countNodes(views []*models.CommentView) int {
	n := 0
	for _, v := range views {
		n += 1 + countNodes(v.ChildComments)
	}
	return n
}

func uintPtr(v uint) *uint { return &v }

// sneakInsert runs query once, on the same connection, right before the next
// INSERT into table. It stands in for a concurrent writer that wins the race
// after the service's existence check.
func (f *fixture) sneakInsert(table, query string, args ...interface{}) {
	f.t.Helper()
	fired := false
	err := f.db.Callback().Create().Before("gorm:create").Register("test:sneak_insert", func(tx *gorm.DB) {
		if fired || tx.Statement.Table != table {
			return
		}
		fired = true
		require.NoError(f.t, tx.Session(&gorm.Session{NewDB: true}).Exec(query, args...).Error)
	})
	require.NoError(f.t, err)
}

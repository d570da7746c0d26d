package memstorage

import (
	"context"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/keyline/license-backoffice/internal/domain/user"
	"github.com/keyline/license-backoffice/internal/ierr"
	"golang.org/x/crypto/bcrypt"
)

const defaultAdminPassword = "adminpassword"

// UserRepositoryMock keeps operator accounts in memory. The back office has
// exactly one seeded admin; real user storage is not part of this service.
type UserRepositoryMock struct {
	mu    sync.RWMutex
	users map[string]*user.User
}

// NewUserRepositoryMock seeds the admin account. The password comes from
// ADMIN_PASSWORD when set, otherwise the development default is used.
func NewUserRepositoryMock() *UserRepositoryMock {
	repo := &UserRepositoryMock{
		users: make(map[string]*user.User),
	}

	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		password = defaultAdminPassword
	}
	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)

	adminUser := &user.User{
		ID:           uuid.New(),
		Username:     "admin",
		PasswordHash: string(hashedPassword),
		Role:         "admin",
	}
	repo.users[strings.ToLower(adminUser.Username)] = adminUser

	return repo
}

func (r *UserRepositoryMock) FindByUsername(ctx context.Context, username string) (*user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[strings.ToLower(username)]
	if !ok {
		return nil, ierr.ErrUserNotFound
	}

	userCopy := *u
	return &userCopy, nil
}

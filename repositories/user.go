package repositories

import (
	stderrors "errors"
	"fmt"
	"time"

	"chatcore/domain/chat"
	"chatcore/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

type IUserRepository interface {
	CreateUser(email, hashedPassword string) (chat.UserID, error)
	GetUserByEmail(email string) (User, error)
}

type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) *UserRepository {
	return &UserRepository{db: db}
}

type User struct {
	ID           chat.UserID
	Email        string
	PasswordHash string
	Roles        []string
	CreatedAt    time.Time
}

func userKey(email string) []byte {
	return []byte("user:" + email)
}

// CreateUser persists a new account keyed by email. The email key doubles
// as the uniqueness constraint.
func (r *UserRepository) CreateUser(email, hashedPassword string) (chat.UserID, error) {
	user := User{
		ID:           chat.UserID(uuid.NewString()),
		Email:        email,
		PasswordHash: hashedPassword,
		Roles:        []string{"user"},
		CreatedAt:    time.Now().UTC(),
	}
	data, err := cbor.Marshal(user)
	if err != nil {
		return "", fmt.Errorf("%w: encoding user: %v", errors.ErrStorage, err)
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(userKey(email)); err == nil {
			return errors.ErrUserAlreadyExists
		}
		return txn.Set(userKey(email), data)
	})
	if stderrors.Is(err, errors.ErrUserAlreadyExists) {
		return "", err
	}
	if err != nil {
		return "", fmt.Errorf("%w: creating user: %v", errors.ErrStorage, err)
	}
	return user.ID, nil
}

func (r *UserRepository) GetUserByEmail(email string) (User, error) {
	var user User
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userKey(email))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return cbor.Unmarshal(val, &user)
		})
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return User{}, fmt.Errorf("%w: user %s", errors.ErrNotFound, email)
	}
	if err != nil {
		return User{}, fmt.Errorf("%w: reading user: %v", errors.ErrStorage, err)
	}
	return user, nil
}

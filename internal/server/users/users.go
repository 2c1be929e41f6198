// Package users implements account storage: registration, password
// verification, and the lookups the API handlers and JWT issuer need.
// Accounts share the fileindex package's "users" MongoDB collection — this
// package owns the identity/credential fields, fileindex owns storage_used
// and storage_quota, per spec §3's single user account type split across
// the two components that actually read/write each half.
package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"golang.org/x/crypto/bcrypt"

	"github.com/google/uuid"
)

// Account is spec §3's user account type, identity half.
type Account struct {
	ID               string `bson:"_id"`
	Email            string `bson:"email"`
	Username         string `bson:"username"`
	PasswordVerifier string `bson:"password_verifier"`
	StorageQuota     *int64 `bson:"storage_quota,omitempty"`
}

// ErrEmailTaken is returned by Register when email is already registered.
var ErrEmailTaken = errors.New("users: email already registered")

// ErrInvalidCredentials is returned by Authenticate on a bad email/password.
var ErrInvalidCredentials = errors.New("users: invalid email or password")

const collection = "users"

// Store is the account store.
type Store struct {
	db *mongo.Database

	// defaultQuota seeds storage_quota for newly registered accounts;
	// nil means unlimited, matching spec §3's "storage_quota: optional".
	defaultQuota *int64
}

// New returns a Store over db's users collection, seeding new accounts with
// defaultQuota (server-wide quota from API_USER_STORAGE_QUOTA; nil for
// unlimited).
func New(db *mongo.Database, defaultQuota *int64) *Store {
	return &Store{db: db, defaultQuota: defaultQuota}
}

// Register creates a new account with a lowercased, unique email (spec §3)
// and a bcrypt-hashed password verifier.
func (s *Store) Register(ctx context.Context, email, username, password string) (Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	verifier, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Account{}, fmt.Errorf("users: hashing password: %w", err)
	}

	account := Account{
		ID:               uuid.NewString(),
		Email:            email,
		Username:         username,
		PasswordVerifier: string(verifier),
		StorageQuota:     s.defaultQuota,
	}

	_, err = s.db.Collection(collection).InsertOne(ctx, account)
	if mongo.IsDuplicateKeyError(err) {
		return Account{}, ErrEmailTaken
	}
	if err != nil {
		return Account{}, fmt.Errorf("users: inserting account: %w", err)
	}

	return account, nil
}

// Authenticate verifies email/password and returns the matching account.
func (s *Store) Authenticate(ctx context.Context, email, password string) (Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var account Account

	err := s.db.Collection(collection).FindOne(ctx, bson.M{"email": email}).Decode(&account)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Account{}, ErrInvalidCredentials
	}
	if err != nil {
		return Account{}, fmt.Errorf("users: finding account: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordVerifier), []byte(password)); err != nil {
		return Account{}, ErrInvalidCredentials
	}

	return account, nil
}

// GetByID looks up an account by id, for the /v1/users/self handler.
func (s *Store) GetByID(ctx context.Context, id string) (Account, error) {
	var account Account

	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&account)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Account{}, fmt.Errorf("users: %w: %s", ErrInvalidCredentials, id)
	}
	if err != nil {
		return Account{}, fmt.Errorf("users: finding account: %w", err)
	}

	return account, nil
}

// EnsureIndexes creates the unique email index (spec §3: "email (lowercased
// unique)").
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.db.Collection(collection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("users: creating email index: %w", err)
	}

	return nil
}

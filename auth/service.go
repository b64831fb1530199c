// Package auth implements the identity collaborator: credential
// resolution and token issuing. The messaging core trusts Resolve and
// never validates credentials itself.
package auth

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"gigchat/errors"
)

var validate = validator.New()

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type RegisterRequest struct {
	Email       string `json:"email" validate:"required,email"`
	DisplayName string `json:"name" validate:"required"`
	Password    string `json:"password" validate:"required,min=8,max=72"`
}

// UserRecord is one identity known to the service. The store is
// in-memory and seeded at startup; real account management is outside
// the messaging core.
type UserRecord struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
}

type Service struct {
	mu       sync.RWMutex
	byEmail  map[string]*UserRecord
	byID     map[string]*UserRecord
	key      []byte
	tokenTTL time.Duration
	log      *slog.Logger
}

func NewService(key []byte, tokenTTL time.Duration, log *slog.Logger) *Service {
	return &Service{
		byEmail:  make(map[string]*UserRecord),
		byID:     make(map[string]*UserRecord),
		key:      key,
		tokenTTL: tokenTTL,
		log:      log,
	}
}

// RegisterUser seeds an identity, hashing the given password.
func (s *Service) RegisterUser(email, displayName, password string) (UserRecord, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return UserRecord{}, err
	}
	record := &UserRecord{
		ID:           uuid.NewString(),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: hash,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byEmail[email]; exists {
		return UserRecord{}, errors.Validationf("email %s already registered", email)
	}
	s.byEmail[email] = record
	s.byID[record.ID] = record
	s.log.Debug(fmt.Sprintf("User %s registered", record.ID))
	return *record, nil
}

// Register validates, stores and signs in a new identity in one step,
// so a fresh account can open its stream immediately.
func (s *Service) Register(req RegisterRequest) (UserRecord, string, error) {
	if err := validate.Struct(req); err != nil {
		return UserRecord{}, "", errors.Validationf("invalid registration request: %v", err)
	}
	record, err := s.RegisterUser(req.Email, req.DisplayName, req.Password)
	if err != nil {
		return UserRecord{}, "", err
	}
	token, err := GenerateToken(s.key, record.ID, record.DisplayName, s.tokenTTL)
	if err != nil {
		return UserRecord{}, "", err
	}
	return record, token, nil
}

// Login verifies a credential pair and issues a signed token.
func (s *Service) Login(req LoginRequest) (string, error) {
	if err := validate.Struct(req); err != nil {
		return "", errors.Validationf("invalid login request: %v", err)
	}

	s.mu.RLock()
	record, ok := s.byEmail[req.Email]
	s.mu.RUnlock()
	if !ok {
		return "", errors.Permissionf("unknown email or wrong password")
	}

	match, err := ComparePassword(req.Password, record.PasswordHash)
	if err != nil {
		return "", err
	}
	if !match {
		return "", errors.Permissionf("unknown email or wrong password")
	}
	return GenerateToken(s.key, record.ID, record.DisplayName, s.tokenTTL)
}

// Resolve maps a bearer credential to a user id. Every core operation
// resolves identity through this before touching room state.
func (s *Service) Resolve(credential string) (string, error) {
	claims, err := ValidateToken(s.key, credential)
	if err != nil {
		return "", errors.Permissionf("invalid credential: %v", err)
	}
	s.mu.RLock()
	_, known := s.byID[claims.UserID]
	s.mu.RUnlock()
	if !known {
		return "", errors.Permissionf("unknown user %s", claims.UserID)
	}
	return claims.UserID, nil
}

// DisplayNameOf is a best-effort lookup for rendering; falls back to
// the id.
func (s *Service) DisplayNameOf(userID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if record, ok := s.byID[userID]; ok {
		return record.DisplayName
	}
	return userID
}

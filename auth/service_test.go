package auth

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gigchat/errors"
)

var testKey = []byte("unit-test-signing-key")

func newTestService(t *testing.T) (*Service, UserRecord) {
	t.Helper()
	service := NewService(testKey, time.Hour, slog.Default())
	record, err := service.RegisterUser("alice@example.com", "Alice", "correct horse battery")
	require.NoError(t, err)
	return service, record
}

func Test_Password_Hash_Roundtrip(t *testing.T) {
	req := require.New(t)

	hash, err := HashPassword("s3cret-enough")
	req.NoError(err)
	req.Contains(hash, "$argon2id$")

	match, err := ComparePassword("s3cret-enough", hash)
	req.NoError(err)
	req.True(match)

	match, err = ComparePassword("wrong", hash)
	req.NoError(err)
	req.False(match)

	// Same password, fresh salt, different hash
	again, err := HashPassword("s3cret-enough")
	req.NoError(err)
	req.NotEqual(hash, again)

	_, err = ComparePassword("anything", "not-a-hash")
	req.ErrorIs(err, errors.ErrValidation)
}

func Test_Token_Roundtrip(t *testing.T) {
	req := require.New(t)

	token, err := GenerateToken(testKey, "user-1", "Alice", time.Hour)
	req.NoError(err)

	claims, err := ValidateToken(testKey, token)
	req.NoError(err)
	req.Equal("user-1", claims.UserID)
	req.Equal("Alice", claims.DisplayName)

	// Wrong key and expired tokens are both rejected
	_, err = ValidateToken([]byte("other-key"), token)
	req.Error(err)

	expired, err := GenerateToken(testKey, "user-1", "Alice", -time.Minute)
	req.NoError(err)
	_, err = ValidateToken(testKey, expired)
	req.Error(err)
}

func Test_Login_Issues_A_Resolvable_Token(t *testing.T) {
	req := require.New(t)
	service, record := newTestService(t)

	token, err := service.Login(LoginRequest{
		Email:    "alice@example.com",
		Password: "correct horse battery",
	})
	req.NoError(err)

	userID, err := service.Resolve(token)
	req.NoError(err)
	req.Equal(record.ID, userID)
}

func Test_Login_Rejects_Bad_Credentials(t *testing.T) {
	req := require.New(t)
	service, _ := newTestService(t)

	// Malformed requests fail validation before any lookup
	_, err := service.Login(LoginRequest{Email: "not-an-email", Password: "whatever-8"})
	req.ErrorIs(err, errors.ErrValidation)
	_, err = service.Login(LoginRequest{Email: "alice@example.com", Password: "short"})
	req.ErrorIs(err, errors.ErrValidation)

	// Unknown email and wrong password are indistinguishable
	_, err = service.Login(LoginRequest{Email: "nobody@example.com", Password: "whatever-8"})
	req.ErrorIs(err, errors.ErrPermission)
	_, err = service.Login(LoginRequest{Email: "alice@example.com", Password: "wrong password"})
	req.ErrorIs(err, errors.ErrPermission)
}

func Test_Resolve_Rejects_Foreign_And_Garbage_Tokens(t *testing.T) {
	req := require.New(t)
	service, _ := newTestService(t)

	_, err := service.Resolve("garbage")
	req.ErrorIs(err, errors.ErrPermission)

	// A well-signed token for an unknown user is still refused
	token, err := GenerateToken(testKey, "ghost", "Ghost", time.Hour)
	req.NoError(err)
	_, err = service.Resolve(token)
	req.ErrorIs(err, errors.ErrPermission)
}

func Test_Duplicate_Registration_Is_Rejected(t *testing.T) {
	req := require.New(t)
	service, _ := newTestService(t)

	_, err := service.RegisterUser("alice@example.com", "Alice Again", "another password")
	req.ErrorIs(err, errors.ErrValidation)
}

func Test_Register_Issues_A_Resolvable_Token(t *testing.T) {
	req := require.New(t)
	service := NewService(testKey, time.Hour, slog.Default())

	record, token, err := service.Register(RegisterRequest{
		Email:       "carol@example.com",
		DisplayName: "Carol",
		Password:    "carols-password",
	})
	req.NoError(err)

	userID, err := service.Resolve(token)
	req.NoError(err)
	req.Equal(record.ID, userID)

	// Malformed requests never reach the store
	_, _, err = service.Register(RegisterRequest{Email: "not-an-email", DisplayName: "X", Password: "whatever-8"})
	req.ErrorIs(err, errors.ErrValidation)
	_, _, err = service.Register(RegisterRequest{Email: "dave@example.com", DisplayName: "Dave", Password: "short"})
	req.ErrorIs(err, errors.ErrValidation)
}

func Test_Seeded_Demo_Users_Can_Log_In(t *testing.T) {
	req := require.New(t)
	service := NewService(testKey, time.Hour, slog.Default())
	req.NoError(service.SeedDemoUsers())

	token, err := service.Login(LoginRequest{Email: "john@example.com", Password: "password"})
	req.NoError(err)

	userID, err := service.Resolve(token)
	req.NoError(err)
	req.Equal("John Doe", service.DisplayNameOf(userID))

	// All four development accounts are present
	for _, email := range []string{"john@example.com", "jane@example.com", "alex@test.com", "sarah@test.com"} {
		_, err := service.Login(LoginRequest{Email: email, Password: "password"})
		req.NoError(err, email)
	}
}

func Test_DisplayNameOf_Falls_Back_To_The_ID(t *testing.T) {
	req := require.New(t)
	service, record := newTestService(t)

	req.Equal("Alice", service.DisplayNameOf(record.ID))
	req.Equal("ghost", service.DisplayNameOf("ghost"))
}

package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/mindmeld-app/mindmeld/internal/model"
	"github.com/mindmeld-app/mindmeld/internal/store"
)

const Issuer = "mindmeld"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
	ErrAccountBlocked     = errors.New("account blocked")
	ErrInvalidAccount     = errors.New("invalid account")
)

type Token struct {
	Value     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type claims struct {
	Name string     `json:"name,omitempty"`
	Role model.Role `json:"role"`
	jwt.RegisteredClaims
}

type Service struct {
	store    store.AccountStore
	secret   []byte
	tokenTTL time.Duration
	now      func() time.Time
}

func NewService(st store.AccountStore, secret string, tokenTTL time.Duration) *Service {
	return &Service{
		store:    st,
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		now:      time.Now,
	}
}

// Register creates an account with a bcrypt hash of password.
func (s *Service) Register(ctx context.Context, name, email, password string, role model.Role) (model.Account, error) {
	email = normalizeEmail(email)
	switch {
	case strings.TrimSpace(name) == "":
		return model.Account{}, fmt.Errorf("%w: name is required", ErrInvalidAccount)
	case email == "" || !strings.Contains(email, "@"):
		return model.Account{}, fmt.Errorf("%w: email is invalid", ErrInvalidAccount)
	case len(password) < 8:
		return model.Account{}, fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidAccount)
	case !role.Valid():
		return model.Account{}, fmt.Errorf("%w: unknown role %q", ErrInvalidAccount, role)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return model.Account{}, err
	}
	account := model.Account{
		Name:         strings.TrimSpace(name),
		Email:        email,
		Role:         role,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
	}
	id, err := s.store.CreateAccount(ctx, &account)
	if err != nil {
		return model.Account{}, err
	}
	account.ID = id
	return account, nil
}

// Login checks the password and issues a signed token for the account.
func (s *Service) Login(ctx context.Context, email, password string) (Token, model.Account, error) {
	account, err := s.store.FindAccountByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Token{}, model.Account{}, ErrInvalidCredentials
		}
		return Token{}, model.Account{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return Token{}, model.Account{}, ErrInvalidCredentials
	}
	if account.Blocked {
		return Token{}, model.Account{}, ErrAccountBlocked
	}
	token, err := s.Issue(account)
	if err != nil {
		return Token{}, model.Account{}, err
	}
	return token, account, nil
}

func (s *Service) Issue(account model.Account) (Token, error) {
	now := s.now()
	expires := now.Add(s.tokenTTL)
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Name: account.Name,
		Role: account.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   account.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	})
	signed, err := t.SignedString(s.secret)
	if err != nil {
		return Token{}, err
	}
	return Token{Value: signed, ExpiresAt: expires}, nil
}

// Authenticate verifies a bearer token and returns the caller it names.
func (s *Service) Authenticate(ctx context.Context, bearer string) (model.Identity, error) {
	if bearer == "" {
		return model.Identity{}, ErrInvalidToken
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	var c claims
	parsed, err := parser.ParseWithClaims(bearer, &c, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return model.Identity{}, ErrTokenExpired
		}
		return model.Identity{}, ErrInvalidToken
	}
	if !parsed.Valid || c.Subject == "" || !c.Role.Valid() {
		return model.Identity{}, ErrInvalidToken
	}

	// Blocking and role changes apply to tokens already issued.
	account, err := s.store.GetAccount(ctx, c.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.Identity{}, ErrInvalidToken
		}
		return model.Identity{}, err
	}
	if account.Blocked {
		return model.Identity{}, ErrAccountBlocked
	}
	return model.Identity{UserID: account.ID, Name: account.Name, Role: account.Role}, nil
}

// CanAuthor reports whether role may create and edit articles.
func CanAuthor(role model.Role) bool {
	return role == model.RoleExpert || role == model.RoleAdmin
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ahmousavi39/Learn-Ai-sub000/internal/domain"
	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"

	sessionTTL = 24 * time.Hour
)

// OperatorStore is implemented by *repository.OperatorRepository.
type OperatorStore interface {
	Create(ctx context.Context, op *domain.Operator) error
	FindByEmail(ctx context.Context, email string) (*domain.Operator, error)
	Exists(ctx context.Context, email string) (bool, error)
	List(ctx context.Context) ([]*domain.Operator, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// AuthService signs in back-office operators and verifies their session tokens.
type AuthService struct {
	jwtSecret     []byte
	adminEmail    string
	adminPassword string
	operators     OperatorStore
	validate      *validator.Validate
	now           func() time.Time
}

// NewAuthService creates a new AuthService.
func NewAuthService(jwtSecret, adminEmail, adminPassword string, operators OperatorStore) *AuthService {
	return &AuthService{
		jwtSecret:     []byte(jwtSecret),
		adminEmail:    adminEmail,
		adminPassword: adminPassword,
		operators:     operators,
		validate:      validator.New(),
		now:           time.Now,
	}
}

// SeedAdmin creates the configured admin operator on first start.
func (s *AuthService) SeedAdmin(ctx context.Context) error {
	exists, err := s.operators.Exists(ctx, s.adminEmail)
	if err != nil {
		return fmt.Errorf("failed to check admin existence: %w", err)
	}
	if exists {
		log.Ctx(ctx).Debug().Str("email", s.adminEmail).Msg("Admin operator already exists")
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(s.adminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	now := s.now().UTC()
	if err := s.operators.Create(ctx, &domain.Operator{
		ID:        domain.NewID(),
		Email:     s.adminEmail,
		Password:  string(hash),
		Role:      RoleAdmin,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		return fmt.Errorf("failed to create admin operator: %w", err)
	}

	log.Ctx(ctx).Info().Str("email", s.adminEmail).Msg("Admin operator created")
	return nil
}

// Login checks credentials and issues an HS256 session token.
func (s *AuthService) Login(ctx context.Context, req domain.LoginRequest) (*domain.LoginResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, domain.ErrValidationFailure(err.Error())
	}

	op, err := s.operators.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, domain.ErrInternal("failed to find operator", err)
	}
	if op == nil {
		return nil, domain.ErrUnauthorized("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(op.Password), []byte(req.Password)); err != nil {
		return nil, domain.ErrUnauthorized("invalid credentials")
	}

	now := s.now()
	expires := now.Add(sessionTTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   op.ID,
		"email": op.Email,
		"role":  op.Role,
		"iat":   now.Unix(),
		"exp":   expires.Unix(),
	})
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, domain.ErrInternal("failed to sign token", err)
	}

	return &domain.LoginResponse{Token: signed, ExpiresAt: expires.UTC(), Email: op.Email}, nil
}

// ListOperators returns every back-office account.
func (s *AuthService) ListOperators(ctx context.Context) ([]*domain.Operator, error) {
	ops, err := s.operators.List(ctx)
	if err != nil {
		return nil, domain.ErrInternal("failed to list operators", err)
	}
	if ops == nil {
		ops = []*domain.Operator{}
	}
	return ops, nil
}

// CreateOperator adds an account. Role defaults to operator.
func (s *AuthService) CreateOperator(ctx context.Context, req domain.CreateOperatorRequest) (*domain.Operator, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, domain.ErrValidationFailure(err.Error())
	}

	exists, err := s.operators.Exists(ctx, req.Email)
	if err != nil {
		return nil, domain.ErrInternal("failed to check operator", err)
	}
	if exists {
		return nil, domain.ErrBadRequest("operator already exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, domain.ErrInternal("failed to hash password", err)
	}

	role := req.Role
	if role == "" {
		role = RoleOperator
	}
	now := s.now().UTC()
	op := &domain.Operator{
		ID:        domain.NewID(),
		Email:     req.Email,
		Password:  string(hash),
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.operators.Create(ctx, op); err != nil {
		return nil, domain.ErrInternal("failed to create operator", err)
	}

	log.Ctx(ctx).Info().Str("email", op.Email).Str("role", role).Msg("Operator created")
	return op, nil
}

// DeleteOperator removes an account. Operators cannot delete themselves.
func (s *AuthService) DeleteOperator(ctx context.Context, id, actorID string) error {
	if id == actorID {
		return domain.ErrBadRequest("cannot delete your own account")
	}
	ok, err := s.operators.Delete(ctx, id)
	if err != nil {
		return domain.ErrInternal("failed to delete operator", err)
	}
	if !ok {
		return domain.ErrNotFound("operator not found")
	}
	return nil
}

// VerifyToken validates a session token and returns its claims.
func (s *AuthService) VerifyToken(tokenStr string) (*domain.JWTClaims, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return nil, domain.ErrUnauthorized("invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, domain.ErrUnauthorized("invalid token claims")
	}
	return &domain.JWTClaims{
		Sub:   claimString(claims, "sub"),
		Email: claimString(claims, "email"),
		Role:  claimString(claims, "role"),
	}, nil
}

func claimString(claims jwt.MapClaims, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}

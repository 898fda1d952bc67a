package services

import (
	"fmt"

	"chatcore/auth"
	"chatcore/domain/chat"
	"chatcore/errors"
	"chatcore/repositories"
)

type IAuthService interface {
	Register(email, password string) (Token, chat.UserID, error)
	Login(email, password string) (Token, chat.UserID, error)
	VerifyToken(token string) (chat.UserID, error)
}

type Token string

// AuthService is the auth collaborator behind the connection and request
// boundaries: it issues tokens on register/login and resolves a token to
// a user id during the transport handshake.
type AuthService struct {
	userRepository repositories.IUserRepository
	tokens         *auth.TokenManager
}

func NewAuthService(repo repositories.IUserRepository, tokens *auth.TokenManager) *AuthService {
	return &AuthService{userRepository: repo, tokens: tokens}
}

func (s *AuthService) Register(email, password string) (Token, chat.UserID, error) {
	valReq := auth.RegisterRequest{
		Email:    email,
		Password: password,
	}
	// Validate business rules before any expensive cryptographic work.
	if err := auth.ValidateRegister(valReq); err != nil {
		return "", "", fmt.Errorf("%w: %v", errors.ErrInvalidPassword, err)
	}

	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return "", "", fmt.Errorf("hashing failed: %w", err)
	}

	userID, err := s.userRepository.CreateUser(email, hashedPassword)
	if err != nil {
		return "", "", err
	}

	token, err := s.tokens.Generate(userID, []string{"user"})
	if err != nil {
		return "", "", errors.ErrTokenGeneration
	}
	return Token(token), userID, nil
}

func (s *AuthService) Login(email, password string) (Token, chat.UserID, error) {
	user, err := s.userRepository.GetUserByEmail(email)
	if err != nil {
		// Generic error to prevent user enumeration.
		return "", "", errors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil || !match {
		return "", "", errors.ErrInvalidCredentials
	}

	token, err := s.tokens.Generate(user.ID, user.Roles)
	if err != nil {
		return "", "", errors.ErrTokenGeneration
	}
	return Token(token), user.ID, nil
}

// VerifyToken resolves a bearer token to a user id, the only identity
// fact the core needs.
func (s *AuthService) VerifyToken(token string) (chat.UserID, error) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrUnauthenticated, err)
	}
	return chat.UserID(claims.UserID), nil
}

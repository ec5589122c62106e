package users

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/dukanshop/dukan/internal/domain"
	"github.com/dukanshop/dukan/internal/mailer"
)

var (
	ErrUsernameTaken      = errors.New("username is already taken")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidCode        = errors.New("invalid or expired code")
	ErrUserNotFound       = errors.New("user not found")
)

// Service covers registration, password and Telegram OTP login, and token
// issuance.
type Service struct {
	db        *gorm.DB
	mailer    *mailer.Mailer
	jwtSecret string
	tokenTTL  time.Duration
	otpTTL    time.Duration
}

func NewService(db *gorm.DB, m *mailer.Mailer, jwtSecret string, otpTTL time.Duration) *Service {
	return &Service{
		db:        db,
		mailer:    m,
		jwtSecret: jwtSecret,
		tokenTTL:  24 * time.Hour,
		otpTTL:    otpTTL,
	}
}

type RegisterParams struct {
	Username    string
	Email       string
	Password    string
	PhoneNumber string
	Address     string
}

// Register creates a client account. The welcome mail is sent in the
// background and never blocks or fails registration.
func (s *Service) Register(ctx context.Context, p RegisterParams) (*domain.ShopUser, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&domain.ShopUser{}).
		Where("username = ?", p.Username).
		Count(&count).Error
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if count > 0 {
		return nil, ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(p.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	user := &domain.ShopUser{
		Username:    p.Username,
		Email:       p.Email,
		Password:    string(hash),
		Role:        domain.RoleClient,
		PhoneNumber: p.PhoneNumber,
		Address:     p.Address,
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, errors.WithStack(err)
	}

	if s.mailer != nil && user.Email != "" {
		go func(email, username string) {
			if err := s.mailer.SendWelcome(email, username); err != nil {
				zap.L().Warn("welcome mail not sent",
					zap.String("username", username), zap.Error(err))
			}
		}(user.Email, user.Username)
	}
	return user, nil
}

// Login verifies the password and returns a signed token plus the user.
func (s *Service) Login(ctx context.Context, username, password string) (string, *domain.ShopUser, error) {
	var user domain.ShopUser
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, errors.WithStack(err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return "", nil, ErrInvalidCredentials
	}
	token, err := s.IssueToken(&user)
	if err != nil {
		return "", nil, err
	}
	return token, &user, nil
}

// IssueToken signs a JWT carrying the user id, username and role.
func (s *Service) IssueToken(user *domain.ShopUser) (string, error) {
	claims := jwt.MapClaims{
		"uid":      user.ID,
		"username": user.Username,
		"role":     user.Role,
		"exp":      time.Now().Add(s.tokenTTL).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.jwtSecret))
	return token, errors.WithStack(err)
}

// GetUser loads one user by id.
func (s *Service) GetUser(ctx context.Context, id int64) (*domain.ShopUser, error) {
	var user domain.ShopUser
	err := s.db.WithContext(ctx).First(&user, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, errors.WithStack(err)
	}
	return &user, nil
}

// UpdateAddress sets the user's default delivery address.
func (s *Service) UpdateAddress(ctx context.Context, userID int64, address string) error {
	result := s.db.WithContext(ctx).
		Model(&domain.ShopUser{}).
		Where("id = ?", userID).
		Update("address", address)
	if result.Error != nil {
		return errors.WithStack(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// BeginTelegramLogin issues a fresh six digit code for a chat. The bot
// webhook calls this when a user sends /login.
func (s *Service) BeginTelegramLogin(ctx context.Context, telegramID, chatID int64) (string, error) {
	code, err := randomCode()
	if err != nil {
		return "", err
	}
	session := domain.TelegramAuthSession{
		Code:       code,
		TelegramID: telegramID,
		ChatID:     chatID,
	}
	if err := s.db.WithContext(ctx).Create(&session).Error; err != nil {
		return "", errors.WithStack(err)
	}
	return code, nil
}

// VerifyTelegramCode consumes an unused, unexpired session, links the
// Telegram id to an account (creating one on first login) and returns a
// token.
func (s *Service) VerifyTelegramCode(ctx context.Context, code string) (string, *domain.ShopUser, error) {
	var user *domain.ShopUser
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var session domain.TelegramAuthSession
		err := tx.Where("code = ? and is_used = ? and created_at > ?",
			code, false, time.Now().Add(-s.otpTTL)).
			Order("id DESC").
			First(&session).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidCode
			}
			return errors.WithStack(err)
		}
		err = tx.Model(&session).Update("is_used", true).Error
		if err != nil {
			return errors.WithStack(err)
		}

		var existing domain.ShopUser
		err = tx.Where("telegram_id = ?", session.TelegramID).First(&existing).Error
		switch {
		case err == nil:
			user = &existing
			return nil
		case errors.Is(err, gorm.ErrRecordNotFound):
		default:
			return errors.WithStack(err)
		}

		user = &domain.ShopUser{
			Username:   fmt.Sprintf("tg_%d", session.TelegramID),
			Role:       domain.RoleClient,
			TelegramID: &session.TelegramID,
		}
		return errors.WithStack(tx.Create(user).Error)
	})
	if err != nil {
		return "", nil, err
	}
	token, err := s.IssueToken(user)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// PurgeAuthSessions deletes used or expired OTP sessions.
func (s *Service) PurgeAuthSessions(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("is_used = ? or created_at < ?", true, time.Now().Add(-s.otpTTL)).
		Delete(&domain.TelegramAuthSession{})
	return result.RowsAffected, errors.WithStack(result.Error)
}

func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", errors.WithStack(err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

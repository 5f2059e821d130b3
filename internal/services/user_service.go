package services

import (
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	apperrors "fundledger/internal/errors"
	"fundledger/internal/models"
	"fundledger/internal/validator"
)

const defaultCurrency = "USD"

// userService handles user accounts and wallet lookups.
type userService struct {
	db *gorm.DB
}

// NewUserService creates a new UserServicer.
func NewUserService(db *gorm.DB) UserServicer {
	return &userService{db: db}
}

// CreateUser registers a user together with an empty wallet.
func (s *userService) CreateUser(email, password, name string, role models.UserRole, currency string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "email and password are required")
	}
	if role == "" {
		role = models.RoleInvestor
	}
	if !role.IsValid() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid role")
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = defaultCurrency
	}
	if !validator.IsCurrency(currency) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Unsupported currency")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	user := &models.User{
		Email:    email,
		Password: string(hashedPassword),
		Name:     name,
		Role:     role,
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return translateDBError(err, nil, apperrors.ErrDuplicateEmail)
		}
		user.Wallet = &models.Wallet{UserID: user.ID, Currency: currency}
		return translateDBError(tx.Create(user.Wallet).Error, nil, nil)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Authenticate returns the user whose password matches.
func (s *userService) Authenticate(email, password string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error; err != nil {
		return nil, translateDBError(err, apperrors.ErrInvalidCredentials, nil)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return nil, apperrors.ErrInvalidCredentials
	}
	return &user, nil
}

// GetUser retrieves a user with its wallet.
func (s *userService) GetUser(id string) (*models.User, error) {
	var user models.User
	if err := s.db.Preload("Wallet").Where("id = ?", id).First(&user).Error; err != nil {
		return nil, translateDBError(err, apperrors.ErrUserNotFound, nil)
	}
	return &user, nil
}

// GetWallet retrieves a wallet by ID.
func (s *userService) GetWallet(id string) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := s.db.Where("id = ?", id).First(&wallet).Error; err != nil {
		return nil, translateDBError(err, apperrors.ErrWalletNotFound, nil)
	}
	return &wallet, nil
}

// GetWalletByUserID retrieves the wallet owned by a user.
func (s *userService) GetWalletByUserID(userID string) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := s.db.Where("user_id = ?", userID).First(&wallet).Error; err != nil {
		return nil, translateDBError(err, apperrors.ErrWalletNotFound, nil)
	}
	return &wallet, nil
}

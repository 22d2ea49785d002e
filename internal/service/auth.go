package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/soapyfy/internal/checkout"
	"github.com/mmeshcher/soapyfy/internal/model"
	"github.com/mmeshcher/soapyfy/internal/repository"
	"github.com/mmeshcher/soapyfy/internal/session"
	"github.com/mmeshcher/soapyfy/internal/validation"
)

const adminID = "admin-1"

// Login проверяет email и пароль и сохраняет покупателя в сессии.
func (s *Service) Login(ctx context.Context, sid, email, password string) (*model.User, error) {
	if errs := checkout.ValidateCredentials(checkout.Credentials{Email: email, Password: password}, false); errs != nil {
		return nil, errs
	}

	u, err := s.authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if err := s.signIn(ctx, sid, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Register создаёт учётную запись и сразу выполняет вход.
func (s *Service) Register(ctx context.Context, sid, email, password string) (*model.User, error) {
	if errs := checkout.ValidateCredentials(checkout.Credentials{Email: email, Password: password}, true); errs != nil {
		return nil, errs
	}

	u, err := s.register(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if err := s.signIn(ctx, sid, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Logout очищает слот покупателя. Корзина и сессия администратора сохраняются.
func (s *Service) Logout(ctx context.Context, sid string) error {
	_, err := s.sessions.Update(ctx, sid, func(st *session.State) error {
		st.User = nil
		return nil
	})
	return err
}

// AdminLogin проверяет статическую пару логин/пароль без обращения к хранилищу.
func (s *Service) AdminLogin(ctx context.Context, sid, username, password string) (*model.AdminUser, error) {
	if s.admin.Password == "" {
		return nil, ErrInvalidCredentials
	}

	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.admin.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(s.admin.Password)) == 1
	if !userOK || !passOK {
		s.logger.Info("admin login rejected", zap.String("username", username))
		return nil, ErrInvalidCredentials
	}

	admin := &model.AdminUser{ID: adminID, Username: s.admin.Username, Role: model.RoleAdmin}
	_, err := s.sessions.Update(ctx, sid, func(st *session.State) error {
		a := *admin
		st.Admin = &a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return admin, nil
}

// AdminLogout очищает слот администратора.
func (s *Service) AdminLogout(ctx context.Context, sid string) error {
	_, err := s.sessions.Update(ctx, sid, func(st *session.State) error {
		st.Admin = nil
		return nil
	})
	return err
}

// RotateSession выдаёт сессии новый идентификатор с тем же состоянием.
// Вызывается после входа покупателя или администратора.
func (s *Service) RotateSession(ctx context.Context, sid string) (string, error) {
	return s.sessions.Rotate(ctx, sid)
}

func (s *Service) authenticate(ctx context.Context, email, password string) (*model.User, error) {
	u, err := s.repo.GetUserByEmail(ctx, validation.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, persistence(err)
	}

	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

func (s *Service) register(ctx context.Context, email, password string) (*model.User, error) {
	email = validation.NormalizeEmail(email)

	_, err := s.repo.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, ErrEmailTaken
	case !errors.Is(err, repository.ErrUserNotFound):
		return nil, persistence(err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u, err := s.repo.CreateUser(ctx, email, hash)
	if err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			return nil, ErrEmailTaken
		}
		return nil, persistence(err)
	}

	s.logger.Info("user registered", zap.String("user", u.ID))
	return u, nil
}

func (s *Service) signIn(ctx context.Context, sid string, u *model.User) error {
	_, err := s.sessions.Update(ctx, sid, func(st *session.State) error {
		st.User = session.NewAccount(u)
		return nil
	})
	return err
}

// Package service реализует бизнес-логику витрины soapyfy.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/soapyfy/internal/catalog"
	"github.com/mmeshcher/soapyfy/internal/model"
	"github.com/mmeshcher/soapyfy/internal/notify"
	"github.com/mmeshcher/soapyfy/internal/pricing"
	"github.com/mmeshcher/soapyfy/internal/repository"
	"github.com/mmeshcher/soapyfy/internal/session"
)

var (
	// ErrInvalidCredentials единая ошибка входа: неизвестный email и неверный пароль неразличимы.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailTaken возвращается при регистрации на занятый email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrPersistence хранилище недоступно, операцию можно повторить.
	ErrPersistence = errors.New("persistence failure")
	// ErrInvalidStatus статус заказа вне допустимого набора.
	ErrInvalidStatus = errors.New("invalid order status")
	// ErrTransitionRejected переход статуса запрещён политикой.
	ErrTransitionRejected = errors.New("status transition rejected")
	// ErrUnknownProduct товара нет в каталоге.
	ErrUnknownProduct = errors.New("unknown product")
	// ErrEmptyCart оформление пустой корзины.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrNotAuthenticated операция требует входа покупателя.
	ErrNotAuthenticated = errors.New("not authenticated")

	ErrOrderNotFound   = repository.ErrOrderNotFound
	ErrVersionConflict = repository.ErrVersionConflict
)

const publishTimeout = 10 * time.Second

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	CreateUser(ctx context.Context, email string, passwordHash []byte) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	CreateOrder(ctx context.Context, o *model.Order) (string, error)
	GetOrder(ctx context.Context, id string) (*model.Order, error)
	ListOrders(ctx context.Context) ([]model.Order, error)
	ListOrdersByEmail(ctx context.Context, email string) ([]model.Order, error)
	UpdateOrderStatus(ctx context.Context, id string, status model.OrderStatus, expectedVersion int64) (int64, error)
	DeleteOrder(ctx context.Context, id string) error
}

// AdminCredentials единственная пара логин/пароль администратора.
// Пустой пароль отключает вход администратора.
type AdminCredentials struct {
	Username string
	Password string
}

// Service содержит бизнес-логику витрины.
type Service struct {
	repo      Repository
	sessions  *session.Manager
	catalog   *catalog.Catalog
	pricing   *pricing.Engine
	publisher notify.Publisher
	logger    *zap.Logger
	admin     AdminCredentials
	policy    TransitionPolicy
	hashCost  int
	now       func() time.Time

	wg sync.WaitGroup
}

// Option настраивает Service.
type Option func(*Service)

// WithPublisher задаёт издателя событий заказов.
func WithPublisher(p notify.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithLogger задаёт логгер.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithAdmin задаёт учётные данные администратора.
func WithAdmin(c AdminCredentials) Option {
	return func(s *Service) { s.admin = c }
}

// WithTransitionPolicy задаёт политику смены статусов.
func WithTransitionPolicy(p TransitionPolicy) Option {
	return func(s *Service) { s.policy = p }
}

// WithHashCost задаёт стоимость bcrypt.
func WithHashCost(cost int) Option {
	return func(s *Service) { s.hashCost = cost }
}

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService создаёт сервис поверх репозитория, менеджера сессий, каталога и движка цен.
func NewService(repo Repository, sessions *session.Manager, cat *catalog.Catalog, engine *pricing.Engine, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		sessions:  sessions,
		catalog:   cat,
		pricing:   engine,
		publisher: notify.Nop{},
		logger:    zap.NewNop(),
		policy:    PermissiveTransitions{},
		hashCost:  bcrypt.DefaultCost,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close дожидается отправки событий и закрывает ресурсы сервиса.
func (s *Service) Close() error {
	s.wg.Wait()

	var errs []error
	if s.publisher != nil {
		errs = append(errs, s.publisher.Close())
	}
	if s.repo != nil {
		errs = append(errs, s.repo.Close())
	}
	return errors.Join(errs...)
}

// Session возвращает копию состояния сессии.
func (s *Service) Session(ctx context.Context, sid string) (*session.State, error) {
	return s.sessions.Get(ctx, sid)
}

// Products возвращает каталог.
func (s *Service) Products() []model.Product {
	return s.catalog.List()
}

// Product ищет товар каталога.
func (s *Service) Product(id string) (model.Product, bool) {
	return s.catalog.Lookup(id)
}

// Format форматирует сумму с валютой витрины.
func (s *Service) Format(amount decimal.Decimal) string {
	return s.pricing.Format(amount)
}

func persistence(err error) error {
	if errors.Is(err, repository.ErrOrderNotFound) || errors.Is(err, repository.ErrVersionConflict) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrPersistence, err)
}

func (s *Service) publish(ctx context.Context, eventType string, o *model.Order) {
	e := notify.NewOrderEvent(eventType, o, s.now())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		defer cancel()

		if err := s.publisher.Publish(ctx, e); err != nil {
			s.logger.Warn("failed to publish order event",
				zap.String("order", e.OrderID),
				zap.String("type", e.Type),
				zap.Error(err),
			)
		}
	}()
}

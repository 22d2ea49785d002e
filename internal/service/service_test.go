package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/soapyfy/internal/catalog"
	"github.com/mmeshcher/soapyfy/internal/checkout"
	"github.com/mmeshcher/soapyfy/internal/model"
	"github.com/mmeshcher/soapyfy/internal/notify"
	"github.com/mmeshcher/soapyfy/internal/pricing"
	"github.com/mmeshcher/soapyfy/internal/repository"
	"github.com/mmeshcher/soapyfy/internal/session"
)

var errStoreDown = errors.New("connection refused")

type stubRepo struct {
	mu     sync.Mutex
	users  map[string]model.User
	orders map[string]model.Order
	nextID int

	createOrderErr error
	getUserErr     error
	createOrders   int
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		users:  make(map[string]model.User),
		orders: make(map[string]model.Order),
	}
}

func (r *stubRepo) Close() error { return nil }

func (r *stubRepo) CreateUser(ctx context.Context, email string, passwordHash []byte) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[email]; ok {
		return nil, repository.ErrUserExists
	}
	r.nextID++
	u := model.User{ID: fmt.Sprintf("u%d", r.nextID), Email: email, PasswordHash: passwordHash, CreatedAt: time.Now()}
	r.users[email] = u
	return &u, nil
}

func (r *stubRepo) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.getUserErr != nil {
		return nil, r.getUserErr
	}
	u, ok := r.users[email]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return &u, nil
}

func (r *stubRepo) ListUsers(ctx context.Context) ([]model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]model.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u)
	}
	return out, nil
}

func (r *stubRepo) CreateOrder(ctx context.Context, o *model.Order) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.createOrders++
	if r.createOrderErr != nil {
		return "", r.createOrderErr
	}
	r.nextID++
	id := fmt.Sprintf("o%d", r.nextID)
	stored := *o
	stored.ID = id
	r.orders[id] = stored
	return id, nil
}

func (r *stubRepo) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return &o, nil
}

func (r *stubRepo) ListOrders(ctx context.Context) ([]model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]model.Order, 0, len(r.orders))
	for _, o := range r.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *stubRepo) ListOrdersByEmail(ctx context.Context, email string) ([]model.Order, error) {
	all, _ := r.ListOrders(ctx)
	var out []model.Order
	for _, o := range all {
		if o.BuyerEmail() == email {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r *stubRepo) UpdateOrderStatus(ctx context.Context, id string, status model.OrderStatus, expectedVersion int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok {
		return 0, repository.ErrOrderNotFound
	}
	if o.Version != expectedVersion {
		return 0, repository.ErrVersionConflict
	}
	o.Status = status
	o.Version++
	r.orders[id] = o
	return o.Version, nil
}

func (r *stubRepo) DeleteOrder(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.orders[id]; !ok {
		return repository.ErrOrderNotFound
	}
	delete(r.orders, id)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []notify.OrderEvent
}

func (p *recordingPublisher) Publish(_ context.Context, e notify.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	svc      *Service
	repo     *stubRepo
	pub      *recordingPublisher
	sessions *session.Manager
	sid      string
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	repo := newStubRepo()
	pub := &recordingPublisher{}
	sessions := session.NewManager(session.NewMemoryStore(time.Hour))

	base := []Option{
		WithPublisher(pub),
		WithHashCost(bcrypt.MinCost),
		WithAdmin(AdminCredentials{Username: "admin", Password: "s3cret"}),
	}
	svc := NewService(repo, sessions, catalog.Default(), pricing.NewEngine(pricing.DefaultConfig(), nil), append(base, opts...)...)

	return &fixture{svc: svc, repo: repo, pub: pub, sessions: sessions, sid: session.NewID()}
}

func shipping(email string) model.ShippingInfo {
	return model.ShippingInfo{
		Email:      email,
		Name:       "Marie Tremblay",
		Address:    "123 rue Saint-Denis",
		City:       "Montréal",
		PostalCode: "H2X 1K1",
		Phone:      "514-555-0100",
	}
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	u, err := f.svc.Register(ctx, f.sid, "marie@example.com", "secret1")
	require.NoError(t, err)
	assert.NotEqual(t, []byte("secret1"), f.repo.users["marie@example.com"].PasswordHash)

	st, err := f.svc.Session(ctx, f.sid)
	require.NoError(t, err)
	require.NotNil(t, st.User)
	assert.Equal(t, u.ID, st.User.ID)

	_, err = f.svc.Register(ctx, session.NewID(), "marie@example.com", "another1")
	assert.ErrorIs(t, err, ErrEmailTaken)

	other := session.NewID()
	got, err := f.svc.Login(ctx, other, "marie@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
}

func TestRotateSessionKeepsLogin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Register(ctx, f.sid, "marie@example.com", "secret1")
	require.NoError(t, err)
	_, err = f.svc.AddToCart(ctx, f.sid, "2", 1)
	require.NoError(t, err)

	newSID, err := f.svc.RotateSession(ctx, f.sid)
	require.NoError(t, err)
	require.NotEqual(t, f.sid, newSID)

	old, err := f.svc.Session(ctx, f.sid)
	require.NoError(t, err)
	assert.Nil(t, old.User)
	assert.Equal(t, 0, old.Cart.Len())

	st, err := f.svc.Session(ctx, newSID)
	require.NoError(t, err)
	require.NotNil(t, st.User)
	assert.Equal(t, "marie@example.com", st.User.Email)
	assert.Equal(t, 1, st.Cart.Len())
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Register(context.Background(), f.sid, "marie@example.com", "123")

	var fe checkout.FieldErrors
	require.ErrorAs(t, err, &fe)
	assert.Contains(t, fe, checkout.FieldPassword)
	assert.Empty(t, f.repo.users)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Register(ctx, session.NewID(), "marie@example.com", "secret1")
	require.NoError(t, err)

	_, errWrong := f.svc.Login(ctx, f.sid, "marie@example.com", "wrong-password")
	_, errUnknown := f.svc.Login(ctx, f.sid, "nobody@example.com", "secret1")
	_, errCase := f.svc.Login(ctx, f.sid, "marie@example.com", "SECRET1")

	assert.ErrorIs(t, errWrong, ErrInvalidCredentials)
	assert.ErrorIs(t, errUnknown, ErrInvalidCredentials)
	assert.ErrorIs(t, errCase, ErrInvalidCredentials)
	assert.Equal(t, errWrong.Error(), errUnknown.Error())

	st, err := f.svc.Session(ctx, f.sid)
	require.NoError(t, err)
	assert.Nil(t, st.User)
}

func TestLoginStoreDown(t *testing.T) {
	f := newFixture(t)
	f.repo.getUserErr = errStoreDown

	_, err := f.svc.Login(context.Background(), f.sid, "marie@example.com", "secret1")
	assert.ErrorIs(t, err, ErrPersistence)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
}

func TestAdminLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("valid pair", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Register(ctx, f.sid, "marie@example.com", "secret1")
		require.NoError(t, err)

		admin, err := f.svc.AdminLogin(ctx, f.sid, "admin", "s3cret")
		require.NoError(t, err)
		assert.Equal(t, model.RoleAdmin, admin.Role)

		require.NoError(t, f.svc.AdminLogout(ctx, f.sid))

		st, err := f.svc.Session(ctx, f.sid)
		require.NoError(t, err)
		assert.Nil(t, st.Admin)
		assert.NotNil(t, st.User)
	})

	t.Run("wrong password", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.AdminLogin(ctx, f.sid, "admin", "guess")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("disabled without password", func(t *testing.T) {
		f := newFixture(t, WithAdmin(AdminCredentials{Username: "admin"}))
		_, err := f.svc.AdminLogin(ctx, f.sid, "admin", "")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestLogoutKeepsCart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Register(ctx, f.sid, "marie@example.com", "secret1")
	require.NoError(t, err)
	_, err = f.svc.AddToCart(ctx, f.sid, "1", 2)
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, f.sid))

	view, err := f.svc.Cart(ctx, f.sid)
	require.NoError(t, err)
	assert.Equal(t, 2, view.Totals.ItemCount)

	st, err := f.svc.Session(ctx, f.sid)
	require.NoError(t, err)
	assert.Nil(t, st.User)
}

func TestCartOperations(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.AddToCart(ctx, f.sid, "42", 1)
	assert.ErrorIs(t, err, ErrUnknownProduct)

	view, err := f.svc.AddToCart(ctx, f.sid, "1", 2)
	require.NoError(t, err)
	view, err = f.svc.AddToCart(ctx, f.sid, "3", 1)
	require.NoError(t, err)
	assert.Equal(t, 3, view.Totals.ItemCount)
	assert.Equal(t, "15.00", view.Totals.Subtotal.StringFixed(2))

	view, err = f.svc.SetQuantity(ctx, f.sid, "1", 6)
	require.NoError(t, err)
	assert.Equal(t, "35.00", view.Totals.Subtotal.StringFixed(2))
	assert.True(t, view.Totals.Shipping.IsZero())

	view, err = f.svc.RemoveFromCart(ctx, f.sid, "1")
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, "3", view.Items[0].ID)

	require.NoError(t, f.svc.SetLanguage(ctx, f.sid, model.LanguageEN))
	view, err = f.svc.Cart(ctx, f.sid)
	require.NoError(t, err)
	assert.Equal(t, model.LanguageEN, view.Language)
}

func TestPlaceOrder_Guest(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	f := newFixture(t, WithClock(func() time.Time { return now }))

	_, err := f.svc.AddToCart(ctx, f.sid, "1", 3)
	require.NoError(t, err)

	o, err := f.svc.PlaceOrder(ctx, f.sid, checkout.Request{Mode: checkout.ModeGuest, Guest: shipping("guest@example.com")})
	require.NoError(t, err)

	assert.NotEmpty(t, o.ID)
	assert.Empty(t, o.UserID)
	assert.Equal(t, model.OrderStatusPending, o.Status)
	assert.Equal(t, now, o.CreatedAt)
	assert.Equal(t, "guest@example.com", o.BuyerEmail())
	assert.Equal(t, "22.25", o.Total.StringFixed(2))
	assert.Contains(t, f.repo.orders, o.ID)

	view, err := f.svc.Cart(ctx, f.sid)
	require.NoError(t, err)
	assert.Empty(t, view.Items)

	f.svc.wg.Wait()
	assert.Equal(t, []string{notify.EventOrderPlaced}, f.pub.types())
}

func TestPlaceOrder_PersistenceFailureKeepsCart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.repo.createOrderErr = errStoreDown

	_, err := f.svc.AddToCart(ctx, f.sid, "1", 2)
	require.NoError(t, err)
	_, err = f.svc.AddToCart(ctx, f.sid, "2", 1)
	require.NoError(t, err)
	before, err := f.svc.Cart(ctx, f.sid)
	require.NoError(t, err)

	_, err = f.svc.PlaceOrder(ctx, f.sid, checkout.Request{Mode: checkout.ModeGuest, Guest: shipping("guest@example.com")})
	assert.ErrorIs(t, err, ErrPersistence)

	after, err := f.svc.Cart(ctx, f.sid)
	require.NoError(t, err)
	assert.Equal(t, before.Items, after.Items)
	assert.Empty(t, f.repo.orders)

	f.svc.wg.Wait()
	assert.Empty(t, f.pub.types())
}

func TestPlaceOrder_ValidationRunsBeforeStore(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.AddToCart(ctx, f.sid, "1", 1)
	require.NoError(t, err)

	_, err = f.svc.PlaceOrder(ctx, f.sid, checkout.Request{Mode: checkout.ModeGuest, Guest: model.ShippingInfo{Email: "not-an-email"}})

	var fe checkout.FieldErrors
	require.ErrorAs(t, err, &fe)
	assert.Contains(t, fe, checkout.FieldEmail)
	assert.Contains(t, fe, checkout.FieldPhone)
	assert.Equal(t, 0, f.repo.createOrders)
}

func TestPlaceOrder_EmptyCart(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.PlaceOrder(context.Background(), f.sid, checkout.Request{Mode: checkout.ModeGuest, Guest: shipping("guest@example.com")})
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestPlaceOrder_RegisterInline(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.AddToCart(ctx, f.sid, "2", 1)
	require.NoError(t, err)

	o, err := f.svc.PlaceOrder(ctx, f.sid, checkout.Request{
		Mode:     checkout.ModeRegister,
		Auth:     checkout.Credentials{Email: "new@example.com", Password: "secret1"},
		Shipping: shipping(""),
	})
	require.NoError(t, err)

	u := f.repo.users["new@example.com"]
	assert.Equal(t, u.ID, o.UserID)
	assert.Equal(t, "new@example.com", o.BuyerEmail())

	st, err := f.svc.Session(ctx, f.sid)
	require.NoError(t, err)
	require.NotNil(t, st.User)
	assert.Equal(t, u.ID, st.User.ID)
}

func TestPlaceOrder_LoginInlineWrongPassword(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Register(ctx, session.NewID(), "old@example.com", "secret1")
	require.NoError(t, err)
	_, err = f.svc.AddToCart(ctx, f.sid, "2", 1)
	require.NoError(t, err)

	_, err = f.svc.PlaceOrder(ctx, f.sid, checkout.Request{
		Mode:     checkout.ModeLogin,
		Auth:     checkout.Credentials{Email: "old@example.com", Password: "nope"},
		Shipping: shipping(""),
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	view, err := f.svc.Cart(ctx, f.sid)
	require.NoError(t, err)
	assert.Len(t, view.Items, 1)
}

func TestPlaceOrder_AccountEmailWins(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Register(ctx, f.sid, "account@example.com", "secret1")
	require.NoError(t, err)
	_, err = f.svc.AddToCart(ctx, f.sid, "1", 1)
	require.NoError(t, err)

	o, err := f.svc.PlaceOrder(ctx, f.sid, checkout.Request{
		Mode:     checkout.ModeLogin,
		Guest:    shipping("guest@example.com"),
		Auth:     checkout.Credentials{Email: "auth@example.com"},
		Shipping: shipping(""),
	})
	require.NoError(t, err)
	assert.Equal(t, "account@example.com", o.BuyerEmail())

	mine, err := f.svc.MyOrders(ctx, f.sid)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, o.ID, mine[0].ID)
}

// logoutAfterLoadStore разлогинивает покупателя сразу после первого чтения сессии,
// как будто параллельный запрос выполнил выход.
type logoutAfterLoadStore struct {
	*session.MemoryStore
	armed bool
}

func (s *logoutAfterLoadStore) Load(ctx context.Context, id string) (*session.State, error) {
	st, err := s.MemoryStore.Load(ctx, id)
	if err != nil || !s.armed {
		return st, err
	}
	s.armed = false

	stored := st.Clone()
	stored.User = nil
	if err := s.MemoryStore.Save(ctx, id, stored); err != nil {
		return nil, err
	}
	return st, nil
}

func TestPlaceOrder_LogoutBetweenReadAndWrite(t *testing.T) {
	ctx := context.Background()
	repo := newStubRepo()
	store := &logoutAfterLoadStore{MemoryStore: session.NewMemoryStore(time.Hour)}
	svc := NewService(repo, session.NewManager(store), catalog.Default(), pricing.NewEngine(pricing.DefaultConfig(), nil),
		WithHashCost(bcrypt.MinCost))
	sid := session.NewID()

	_, err := svc.Register(ctx, sid, "account@example.com", "secret1")
	require.NoError(t, err)
	_, err = svc.AddToCart(ctx, sid, "1", 1)
	require.NoError(t, err)

	store.armed = true
	_, err = svc.PlaceOrder(ctx, sid, checkout.Request{Mode: checkout.ModeLogin, Shipping: shipping("")})

	var fe checkout.FieldErrors
	require.ErrorAs(t, err, &fe)
	assert.Contains(t, fe, checkout.FieldAuthEmail)
	assert.Equal(t, 0, repo.createOrders)

	view, err := svc.Cart(ctx, sid)
	require.NoError(t, err)
	assert.Len(t, view.Items, 1)
}

func TestMyOrdersRequiresLogin(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.MyOrders(context.Background(), f.sid)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func placeGuestOrder(t *testing.T, f *fixture) *model.Order {
	t.Helper()
	ctx := context.Background()

	_, err := f.svc.AddToCart(ctx, f.sid, "1", 1)
	require.NoError(t, err)
	o, err := f.svc.PlaceOrder(ctx, f.sid, checkout.Request{Mode: checkout.ModeGuest, Guest: shipping("guest@example.com")})
	require.NoError(t, err)
	return o
}

func TestUpdateOrderStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid status", func(t *testing.T) {
		f := newFixture(t)
		o := placeGuestOrder(t, f)

		_, err := f.svc.UpdateOrderStatus(ctx, o.ID, "lost", 0)
		assert.ErrorIs(t, err, ErrInvalidStatus)
	})

	t.Run("permissive allows going back", func(t *testing.T) {
		f := newFixture(t)
		o := placeGuestOrder(t, f)

		got, err := f.svc.UpdateOrderStatus(ctx, o.ID, model.OrderStatusShipped, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(2), got.Version)

		got, err = f.svc.UpdateOrderStatus(ctx, o.ID, model.OrderStatusPending, got.Version)
		require.NoError(t, err)
		assert.Equal(t, model.OrderStatusPending, got.Status)

		f.svc.wg.Wait()
		assert.Equal(t, []string{notify.EventOrderPlaced, notify.EventOrderStatusChanged, notify.EventOrderStatusChanged}, f.pub.types())
	})

	t.Run("monotonic rejects going back", func(t *testing.T) {
		f := newFixture(t, WithTransitionPolicy(MonotonicTransitions{}))
		o := placeGuestOrder(t, f)

		_, err := f.svc.UpdateOrderStatus(ctx, o.ID, model.OrderStatusDelivered, 0)
		require.NoError(t, err)

		_, err = f.svc.UpdateOrderStatus(ctx, o.ID, model.OrderStatusConfirmed, 0)
		assert.ErrorIs(t, err, ErrTransitionRejected)
		assert.Equal(t, model.OrderStatusDelivered, f.repo.orders[o.ID].Status)
	})

	t.Run("stale version", func(t *testing.T) {
		f := newFixture(t)
		o := placeGuestOrder(t, f)

		_, err := f.svc.UpdateOrderStatus(ctx, o.ID, model.OrderStatusConfirmed, 1)
		require.NoError(t, err)

		_, err = f.svc.UpdateOrderStatus(ctx, o.ID, model.OrderStatusShipped, 1)
		assert.ErrorIs(t, err, ErrVersionConflict)
	})

	t.Run("unknown order", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.UpdateOrderStatus(ctx, "missing", model.OrderStatusConfirmed, 0)
		assert.ErrorIs(t, err, ErrOrderNotFound)
	})
}

func TestDeleteOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := placeGuestOrder(t, f)

	require.NoError(t, f.svc.DeleteOrder(ctx, o.ID))
	assert.Empty(t, f.repo.orders)

	assert.ErrorIs(t, f.svc.DeleteOrder(ctx, o.ID), ErrOrderNotFound)
}

func TestListUsersHidesHashes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Register(ctx, f.sid, "marie@example.com", "secret1")
	require.NoError(t, err)

	users, err := f.svc.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Nil(t, users[0].PasswordHash)
	assert.NotEmpty(t, f.repo.users["marie@example.com"].PasswordHash)
}

func TestParseTransitionPolicy(t *testing.T) {
	p, err := ParseTransitionPolicy("")
	require.NoError(t, err)
	assert.IsType(t, PermissiveTransitions{}, p)

	p, err = ParseTransitionPolicy(PolicyMonotonic)
	require.NoError(t, err)
	assert.False(t, p.Allow(model.OrderStatusShipped, model.OrderStatusPending))
	assert.True(t, p.Allow(model.OrderStatusPending, model.OrderStatusPending))

	_, err = ParseTransitionPolicy("chaotic")
	assert.Error(t, err)
}

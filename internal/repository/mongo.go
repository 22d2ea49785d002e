package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"

	"github.com/mmeshcher/soapyfy/internal/model"
)

const defaultMongoDatabase = "soapyfy"

type userDocument struct {
	ID           primitive.ObjectID `bson:"_id"`
	Email        string             `bson:"email"`
	PasswordHash []byte             `bson:"passwordHash"`
	CreatedAt    time.Time          `bson:"createdAt"`
}

func (d userDocument) toModel() model.User {
	return model.User{
		ID:           d.ID.Hex(),
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		CreatedAt:    d.CreatedAt,
	}
}

type orderDocument struct {
	ID            primitive.ObjectID  `bson:"_id"`
	UserID        string              `bson:"userId,omitempty"`
	Items         []model.CartItem    `bson:"items"`
	SubtotalCents int64               `bson:"subtotalCents"`
	ShippingCents int64               `bson:"shippingCents"`
	TaxesCents    int64               `bson:"taxesCents"`
	TotalCents    int64               `bson:"totalCents"`
	PaymentMethod string              `bson:"paymentMethod"`
	GuestInfo     *model.ShippingInfo `bson:"guestInfo,omitempty"`
	Status        string              `bson:"status"`
	Version       int64               `bson:"version"`
	CreatedAt     time.Time           `bson:"createdAt"`
}

func (d orderDocument) toModel() model.Order {
	return model.Order{
		ID:            d.ID.Hex(),
		UserID:        d.UserID,
		Items:         d.Items,
		Subtotal:      fromCents(d.SubtotalCents),
		Shipping:      fromCents(d.ShippingCents),
		Taxes:         fromCents(d.TaxesCents),
		Total:         fromCents(d.TotalCents),
		PaymentMethod: model.PaymentMethod(d.PaymentMethod),
		GuestInfo:     d.GuestInfo,
		Status:        model.OrderStatus(d.Status),
		Version:       d.Version,
		CreatedAt:     d.CreatedAt,
	}
}

func newOrderDocument(id primitive.ObjectID, o *model.Order) orderDocument {
	return orderDocument{
		ID:            id,
		UserID:        o.UserID,
		Items:         o.Items,
		SubtotalCents: toCents(o.Subtotal),
		ShippingCents: toCents(o.Shipping),
		TaxesCents:    toCents(o.Taxes),
		TotalCents:    toCents(o.Total),
		PaymentMethod: string(o.PaymentMethod),
		GuestInfo:     o.GuestInfo,
		Status:        string(o.Status),
		Version:       o.Version,
		CreatedAt:     o.CreatedAt,
	}
}

// MongoRepository хранит пользователей и заказы в коллекциях users и orders MongoDB.
type MongoRepository struct {
	client *mongo.Client
	users  *mongo.Collection
	orders *mongo.Collection
	opts   Options
}

// NewMongoRepository подключается к MongoDB и создаёт индексы.
// Имя базы берётся из строки подключения, по умолчанию soapyfy.
func NewMongoRepository(uri string, opts Options) (*MongoRepository, error) {
	cs, err := connstring.ParseAndValidate(uri)
	if err != nil {
		return nil, fmt.Errorf("parse mongo uri: %w", err)
	}
	dbName := cs.Database
	if dbName == "" {
		dbName = defaultMongoDatabase
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(dbName)
	r := &MongoRepository{
		client: client,
		users:  db.Collection("users"),
		orders: db.Collection("orders"),
		opts:   opts,
	}

	if err := r.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	return r, nil
}

func (r *MongoRepository) ensureIndexes(ctx context.Context) error {
	_, err := r.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create users index: %w", err)
	}

	_, err = r.orders.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "guestInfo.email", Value: 1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("create orders indexes: %w", err)
	}
	return nil
}

func (r *MongoRepository) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	return withRetry(ctx, r.opts, isTransientMongoError, fn)
}

func isTransientMongoError(err error) bool {
	return mongo.IsNetworkError(err) || mongo.IsTimeout(err)
}

// Close отключается от MongoDB.
func (r *MongoRepository) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.client.Disconnect(ctx)
}

// CreateUser создаёт нового пользователя.
func (r *MongoRepository) CreateUser(ctx context.Context, email string, passwordHash []byte) (*model.User, error) {
	doc := userDocument{
		ID:           primitive.NewObjectID(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}

	err := r.withRetry(ctx, func(ctx context.Context) error {
		_, err := r.users.InsertOne(ctx, doc)
		return err
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("%w: %s", ErrUserExists, email)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	u := doc.toModel()
	return &u, nil
}

// GetUserByEmail возвращает пользователя по точному совпадению email.
func (r *MongoRepository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var doc userDocument
	err := r.withRetry(ctx, func(ctx context.Context) error {
		return r.users.FindOne(ctx, bson.M{"email": email}).Decode(&doc)
	})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	u := doc.toModel()
	return &u, nil
}

// ListUsers возвращает всех пользователей, новые первыми.
func (r *MongoRepository) ListUsers(ctx context.Context) ([]model.User, error) {
	var docs []userDocument
	err := r.withRetry(ctx, func(ctx context.Context) error {
		cursor, err := r.users.Find(ctx, bson.M{},
			options.Find().
				SetSort(bson.D{{Key: "createdAt", Value: -1}}).
				SetProjection(bson.M{"passwordHash": 0}),
		)
		if err != nil {
			return err
		}
		return cursor.All(ctx, &docs)
	})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	users := make([]model.User, 0, len(docs))
	for _, d := range docs {
		users = append(users, d.toModel())
	}
	return users, nil
}

// CreateOrder сохраняет заказ и возвращает присвоенный идентификатор.
func (r *MongoRepository) CreateOrder(ctx context.Context, o *model.Order) (string, error) {
	doc := newOrderDocument(primitive.NewObjectID(), o)

	err := r.withRetry(ctx, func(ctx context.Context) error {
		_, err := r.orders.InsertOne(ctx, doc)
		// Повтор после потерянного ответа: документ уже записан
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		return err
	})
	if err != nil {
		return "", fmt.Errorf("insert order: %w", err)
	}

	return doc.ID.Hex(), nil
}

// GetOrder возвращает заказ по идентификатору.
func (r *MongoRepository) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrOrderNotFound
	}

	var doc orderDocument
	err = r.withRetry(ctx, func(ctx context.Context) error {
		return r.orders.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	o := doc.toModel()
	return &o, nil
}

// ListOrders возвращает все заказы, новые первыми.
func (r *MongoRepository) ListOrders(ctx context.Context) ([]model.Order, error) {
	return r.findOrders(ctx, bson.M{})
}

// ListOrdersByEmail возвращает заказы с guestInfo.email, равным email, новые первыми.
func (r *MongoRepository) ListOrdersByEmail(ctx context.Context, email string) ([]model.Order, error) {
	return r.findOrders(ctx, bson.M{"guestInfo.email": email})
}

func (r *MongoRepository) findOrders(ctx context.Context, filter bson.M) ([]model.Order, error) {
	var docs []orderDocument
	err := r.withRetry(ctx, func(ctx context.Context) error {
		cursor, err := r.orders.Find(ctx, filter,
			options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}),
		)
		if err != nil {
			return err
		}
		return cursor.All(ctx, &docs)
	})
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	orders := make([]model.Order, 0, len(docs))
	for _, d := range docs {
		orders = append(orders, d.toModel())
	}
	return orders, nil
}

// UpdateOrderStatus меняет статус, если версия заказа совпадает с ожидаемой.
// Возвращает новую версию.
func (r *MongoRepository) UpdateOrderStatus(ctx context.Context, id string, status model.OrderStatus, expectedVersion int64) (int64, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return 0, ErrOrderNotFound
	}

	var doc orderDocument
	err = r.withRetry(ctx, func(ctx context.Context) error {
		return r.orders.FindOneAndUpdate(ctx,
			bson.M{"_id": oid, "version": expectedVersion},
			bson.M{
				"$set": bson.M{"status": string(status)},
				"$inc": bson.M{"version": 1},
			},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&doc)
	})
	if err == nil {
		return doc.Version, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return 0, fmt.Errorf("update order: %w", err)
	}

	var count int64
	err = r.withRetry(ctx, func(ctx context.Context) error {
		var err error
		count, err = r.orders.CountDocuments(ctx, bson.M{"_id": oid})
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("check order: %w", err)
	}
	if count == 0 {
		return 0, ErrOrderNotFound
	}
	return 0, ErrVersionConflict
}

// DeleteOrder удаляет заказ.
func (r *MongoRepository) DeleteOrder(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrOrderNotFound
	}

	var deleted int64
	err = r.withRetry(ctx, func(ctx context.Context) error {
		res, err := r.orders.DeleteOne(ctx, bson.M{"_id": oid})
		if err != nil {
			return err
		}
		deleted = res.DeletedCount
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	if deleted == 0 {
		return ErrOrderNotFound
	}
	return nil
}

package balance

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/Proton-105/storefront-bot/internal/domain"
)

const (
	colUsers         = "users"
	maxUpsertRetries = 3
)

// accountModel is the MongoDB document of an account. The Telegram user id is the document id.
type accountModel struct {
	UserID     int64     `bson:"_id"`
	Username   string    `bson:"username"`
	FirstName  string    `bson:"first_name"`
	Balance    int64     `bson:"balance"`
	ReferredBy int64     `bson:"referred_by,omitempty"`
	JoinedAt   time.Time `bson:"joined_at"`
	LastSeenAt time.Time `bson:"last_seen_at"`
}

func (m *accountModel) toDomain() domain.Account {
	return domain.Account{
		UserID:     m.UserID,
		Username:   m.Username,
		FirstName:  m.FirstName,
		Balance:    m.Balance,
		ReferredBy: m.ReferredBy,
		JoinedAt:   m.JoinedAt,
		LastSeenAt: m.LastSeenAt,
	}
}

// MongoStore implements Store on a MongoDB collection.
// Debits are a single conditional update, so concurrent debits never overdraw.
type MongoStore struct {
	client *mongo.Client
	users  *mongo.Collection
	now    func() time.Time
}

var _ Store = (*MongoStore)(nil)

// Connect opens a MongoDB client and verifies it with a ping.
func Connect(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	client, err := mongo.Connect(options.Client().ApplyURI(uri).SetTimeout(timeout))
	if err != nil {
		return nil, fmt.Errorf("balance/mongo: connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("balance/mongo: ping: %w", err)
	}
	return client, nil
}

// NewMongoStore wraps an already connected client.
func NewMongoStore(client *mongo.Client, database string) *MongoStore {
	return &MongoStore{
		client: client,
		users:  client.Database(database).Collection(colUsers),
		now:    time.Now,
	}
}

// Migrate creates the indexes used by the store.
func (s *MongoStore) Migrate(ctx context.Context) error {
	_, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "referred_by", Value: 1}},
		Options: options.Index().SetSparse(true),
	})
	if err != nil {
		return fmt.Errorf("balance/mongo: migrate indexes: %w", err)
	}
	return nil
}

// HealthCheck pings the primary.
func (s *MongoStore) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *MongoStore) Balance(ctx context.Context, userID int64) (int64, error) {
	var m accountModel
	err := s.users.FindOne(ctx, bson.M{"_id": userID},
		options.FindOne().SetProjection(bson.M{"balance": 1}),
	).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("balance/mongo: get balance: %w", err)
	}
	return m.Balance, nil
}

func (s *MongoStore) Adjust(ctx context.Context, userID int64, delta int64) (int64, error) {
	now := s.now().UTC()

	filter := bson.M{"_id": userID}
	update := bson.M{"$inc": bson.M{"balance": delta}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	switch {
	case delta == math.MinInt64:
		current, err := s.Balance(ctx, userID)
		if err != nil {
			return 0, err
		}
		return current, ErrInsufficientFunds
	case delta < 0:
		filter["balance"] = bson.M{"$gte": -delta}
	default:
		// an existing account past the limit misses the filter and the
		// upsert then collides on _id
		filter["balance"] = bson.M{"$not": bson.M{"$gt": math.MaxInt64 - delta}}
		update["$setOnInsert"] = bson.M{"joined_at": now, "last_seen_at": now}
		opts.SetUpsert(true)
	}

	var m accountModel
	err := s.users.FindOneAndUpdate(ctx, filter, update, opts).Decode(&m)
	for attempt := 0; delta > 0 && mongo.IsDuplicateKeyError(err) && attempt < maxUpsertRetries; attempt++ {
		// either a concurrent first credit created the account or it is past the limit
		current, balErr := s.Balance(ctx, userID)
		if balErr != nil {
			return 0, balErr
		}
		if current > math.MaxInt64-delta {
			return current, ErrBalanceOverflow
		}
		err = s.users.FindOneAndUpdate(ctx, filter, update, opts).Decode(&m)
	}
	if err != nil {
		if isNoDocuments(err) {
			current, balErr := s.Balance(ctx, userID)
			if balErr != nil {
				return 0, balErr
			}
			return current, ErrInsufficientFunds
		}
		return 0, fmt.Errorf("balance/mongo: adjust: %w", err)
	}
	return m.Balance, nil
}

func (s *MongoStore) Upsert(ctx context.Context, profile domain.Profile) (bool, error) {
	now := s.now().UTC()

	insert := bson.M{"balance": int64(0), "joined_at": now}
	if profile.ReferredBy != 0 && profile.ReferredBy != profile.UserID {
		insert["referred_by"] = profile.ReferredBy
	}

	res, err := s.users.UpdateOne(ctx,
		bson.M{"_id": profile.UserID},
		bson.M{
			"$set": bson.M{
				"username":     profile.Username,
				"first_name":   profile.FirstName,
				"last_seen_at": now,
			},
			"$setOnInsert": insert,
		},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return false, fmt.Errorf("balance/mongo: upsert: %w", err)
	}
	return res.UpsertedCount == 1, nil
}

func (s *MongoStore) Account(ctx context.Context, userID int64) (domain.Account, error) {
	var m accountModel
	if err := s.users.FindOne(ctx, bson.M{"_id": userID}).Decode(&m); err != nil {
		if isNoDocuments(err) {
			return domain.Account{}, ErrAccountNotFound
		}
		return domain.Account{}, fmt.Errorf("balance/mongo: get account: %w", err)
	}
	return m.toDomain(), nil
}

func (s *MongoStore) CountReferrals(ctx context.Context, referrerID int64) (int64, error) {
	if referrerID == 0 {
		return 0, nil
	}

	n, err := s.users.CountDocuments(ctx, bson.M{"referred_by": referrerID})
	if err != nil {
		return 0, fmt.Errorf("balance/mongo: count referrals: %w", err)
	}
	return n, nil
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

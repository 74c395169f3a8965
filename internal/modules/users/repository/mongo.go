package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"weatherapi-server/internal/auth"
	"weatherapi-server/internal/db"
	"weatherapi-server/internal/modules/users/types"
)

type accountDocument struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Username    string             `bson:"username"`
	Password    string             `bson:"password"`
	Role        string             `bson:"role"`
	CreatedAt   time.Time          `bson:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt"`
	LastSession time.Time          `bson:"lastSession"`
}

func (d accountDocument) account() types.Account {
	return types.Account{
		ID:           d.ID.Hex(),
		Username:     d.Username,
		PasswordHash: d.Password,
		Role:         auth.Role(d.Role),
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
		LastSession:  d.LastSession.UTC(),
	}
}

type mongoRepository struct {
	users *mongo.Collection
}

func NewMongoRepository(database *mongo.Database) AccountRepository {
	return &mongoRepository{users: database.Collection(db.UsersCollection)}
}

func (r *mongoRepository) Insert(ctx context.Context, account types.Account) (types.Account, error) {
	doc := accountDocument{
		ID:          primitive.NewObjectID(),
		Username:    account.Username,
		Password:    account.PasswordHash,
		Role:        string(account.Role),
		CreatedAt:   account.CreatedAt,
		UpdatedAt:   account.UpdatedAt,
		LastSession: account.LastSession,
	}
	if _, err := r.users.InsertOne(ctx, doc); err != nil {
		return types.Account{}, fmt.Errorf("insert account: %w", db.MongoErr(err))
	}
	account.ID = doc.ID.Hex()
	return account, nil
}

func (r *mongoRepository) FindByUsername(ctx context.Context, username string) (types.Account, error) {
	var doc accountDocument
	if err := r.users.FindOne(ctx, bson.M{"username": username}).Decode(&doc); err != nil {
		return types.Account{}, fmt.Errorf("find account %q: %w", username, db.MongoErr(err))
	}
	return doc.account(), nil
}

func (r *mongoRepository) UpdateLastSession(ctx context.Context, id string, at time.Time) error {
	oid, err := db.ObjectIDFromHex(id)
	if err != nil {
		return err
	}
	res, err := r.users.UpdateByID(ctx, oid, bson.M{"$set": bson.M{"lastSession": at, "updatedAt": at}})
	if err != nil {
		return fmt.Errorf("update last session: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("update last session %s: %w", id, db.ErrNotFound)
	}
	return nil
}

func (r *mongoRepository) DeleteByID(ctx context.Context, id string) (types.Account, error) {
	oid, err := db.ObjectIDFromHex(id)
	if err != nil {
		return types.Account{}, err
	}
	var doc accountDocument
	if err := r.users.FindOneAndDelete(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return types.Account{}, fmt.Errorf("delete account %s: %w", id, db.MongoErr(err))
	}
	return doc.account(), nil
}

func (r *mongoRepository) FindStudentIDsByLastSession(ctx context.Context, tr db.TimeRange) ([]string, error) {
	return r.aggregateIDs(ctx, bson.M{
		"role":        string(auth.RoleStudent),
		"lastSession": bson.M{"$gte": tr.Start, "$lt": tr.End},
	})
}

func (r *mongoRepository) FindIDsByCreatedAt(ctx context.Context, tr db.TimeRange) ([]string, error) {
	return r.aggregateIDs(ctx, bson.M{
		"createdAt": bson.M{"$gte": tr.Start, "$lt": tr.End},
	})
}

func (r *mongoRepository) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	oids, err := objectIDs(ids)
	if err != nil || len(oids) == 0 {
		return 0, err
	}
	res, err := r.users.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": oids}})
	if err != nil {
		return 0, fmt.Errorf("delete accounts: %w", err)
	}
	return res.DeletedCount, nil
}

func (r *mongoRepository) UpdateRoleByIDs(ctx context.Context, ids []string, role auth.Role, at time.Time) (int64, error) {
	oids, err := objectIDs(ids)
	if err != nil || len(oids) == 0 {
		return 0, err
	}
	res, err := r.users.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": oids}, "role": bson.M{"$ne": string(role)}},
		bson.M{"$set": bson.M{"role": string(role), "updatedAt": at}},
	)
	if err != nil {
		return 0, fmt.Errorf("update roles: %w", err)
	}
	return res.ModifiedCount, nil
}

func (r *mongoRepository) ListByRole(ctx context.Context, role auth.Role, limit int) ([]types.Account, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := r.users.Find(ctx, bson.M{"role": string(role)}, opts)
	if err != nil {
		return nil, fmt.Errorf("list %s accounts: %w", role, err)
	}
	var docs []accountDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode %s accounts: %w", role, err)
	}
	out := make([]types.Account, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.account())
	}
	return out, nil
}

func (r *mongoRepository) aggregateIDs(ctx context.Context, match bson.M) ([]string, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$project", Value: bson.M{"_id": 1}}},
	}
	cur, err := r.users.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("select account ids: %w", err)
	}
	var rows []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode account ids: %w", err)
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID.Hex())
	}
	return ids, nil
}

func objectIDs(ids []string) ([]primitive.ObjectID, error) {
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		oid, err := db.ObjectIDFromHex(id)
		if err != nil {
			return nil, err
		}
		out = append(out, oid)
	}
	return out, nil
}

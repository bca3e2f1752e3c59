package repository

import (
	"context"
	"errors"
	"time"

	"github.com/fathima-sithara/support-service/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoRepository struct {
	coll    *mongo.Collection
	timeout time.Duration
}

func NewMongoRepository(coll *mongo.Collection, timeout time.Duration) (*MongoRepository, error) {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "sender_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("sender_unique_idx"),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "updated_at", Value: -1}},
			Options: options.Index().SetName("status_updated_idx"),
		},
		{
			Keys:    bson.D{{Key: "assigned_to", Value: 1}, {Key: "updated_at", Value: -1}},
			Options: options.Index().SetName("assigned_updated_idx"),
		},
	})
	if err != nil {
		return nil, err
	}
	return &MongoRepository{coll: coll, timeout: timeout}, nil
}

func (r *MongoRepository) Create(ctx context.Context, t *domain.Thread) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	t.Normalize()
	if t.Version == 0 {
		t.Version = 1
	}
	if _, err := r.coll.InsertOne(ctx, t); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *MongoRepository) FindByID(ctx context.Context, id string) (*domain.Thread, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoRepository) FindBySender(ctx context.Context, senderID string) (*domain.Thread, error) {
	return r.findOne(ctx, bson.M{"sender_id": senderID})
}

func (r *MongoRepository) findOne(ctx context.Context, filter bson.M) (*domain.Thread, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var t domain.Thread
	if err := r.coll.FindOne(ctx, filter).Decode(&t); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	t.Normalize()
	return &t, nil
}

func (r *MongoRepository) Find(ctx context.Context, f Filter) ([]*domain.Thread, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*r.timeout)
	defer cancel()

	filter := bson.M{}
	if f.SenderID != "" {
		filter["sender_id"] = f.SenderID
	}
	if f.AssignedTo != "" {
		filter["assigned_to"] = f.AssignedTo
	}
	if len(f.Statuses) > 0 {
		filter["status"] = bson.M{"$in": f.Statuses}
	}
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	if f.Limit > 0 {
		opts.SetLimit(f.Limit)
	}
	if f.LastReplyOnly {
		opts.SetProjection(lastReplyProjection)
	}

	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []*domain.Thread{}
	for cur.Next(ctx) {
		var t domain.Thread
		if err := cur.Decode(&t); err != nil {
			return nil, err
		}
		t.Normalize()
		out = append(out, &t)
	}
	return out, cur.Err()
}

var lastReplyProjection = bson.M{
	"replies":      bson.M{"$slice": -1},
	"content":      0,
	"attachments":  0,
	"read_by":      0,
	"delivered_to": 0,
}

// Save replaces the whole document if its stored version still equals
// t.Version, then advances t.Version.
func (r *MongoRepository) Save(ctx context.Context, t *domain.Thread) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	next := t.Clone()
	next.Version = t.Version + 1
	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": t.ID, "version": t.Version}, next)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return r.missOrConflict(ctx, t.ID)
	}
	t.Version = next.Version
	return nil
}

func (r *MongoRepository) Delete(ctx context.Context, id string, version int64) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id, "version": version})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return r.missOrConflict(ctx, id)
	}
	return nil
}

func (r *MongoRepository) missOrConflict(ctx context.Context, id string) error {
	n, err := r.coll.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrVersionConflict
}

// Package mongostore reads and rewrites instance download links in MongoDB
package mongostore

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/thesavant42/fix-download-links/internal/models"
)

const (
	connectTimeout = 5 * time.Second
	queryTimeout   = 15 * time.Second
)

// Config holds connection details for the instances collection
type Config struct {
	URI        string
	Database   string
	Collection string
}

// Store is a MongoDB-backed link store
type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
	name   string
}

// instanceLinks is the projection read by Find: only the queried leaf is populated
type instanceLinks struct {
	ID        any                        `bson:"_id"`
	Downloads map[string]models.Download `bson:"downloads"`
}

// New connects to MongoDB and verifies the server is reachable
func New(ctx context.Context, cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.URI) == "" {
		return nil, fmt.Errorf("mongo uri is required")
	}
	if cfg.Database == "" || cfg.Collection == "" {
		return nil, fmt.Errorf("mongo database and collection are required")
	}

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(connectTimeout)

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	return &Store{
		client: client,
		coll:   client.Database(cfg.Database).Collection(cfg.Collection),
		name:   cfg.Database + "." + cfg.Collection,
	}, nil
}

// Close disconnects the client
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// String describes the store for logs and prompts
func (s *Store) String() string {
	return "mongodb:" + s.name
}

// Find returns up to q.Limit documents whose field matches q.Pattern,
// projected down to _id and the field itself
func (s *Store) Find(ctx context.Context, q models.FindQuery) ([]models.Match, error) {
	if q.Pattern == nil {
		return nil, fmt.Errorf("find %s: pattern is required", q.Field)
	}
	if q.Limit <= 0 {
		return nil, nil
	}
	format, field, err := splitLinkPath(q.Field)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	opts := options.Find().
		SetLimit(int64(q.Limit)).
		SetProjection(bson.M{q.Field: 1})

	cursor, err := s.coll.Find(ctx, regexFilter(q.Field, q.Pattern.String(), q.Contains), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find %s: %w", q.Field, err)
	}
	defer cursor.Close(ctx)

	var matches []models.Match
	for cursor.Next(ctx) {
		var doc instanceLinks
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", q.Field, err)
		}
		matches = append(matches, models.Match{
			ID:    doc.ID,
			Value: doc.Downloads[format].Link(field),
		})
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error on %s: %w", q.Field, err)
	}
	return matches, nil
}

// Count returns the number of documents whose field matches q.Pattern
func (s *Store) Count(ctx context.Context, q models.CountQuery) (int64, error) {
	if q.Pattern == nil {
		return 0, fmt.Errorf("count %s: pattern is required", q.Field)
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	n, err := s.coll.CountDocuments(ctx, regexFilter(q.Field, q.Pattern.String(), q.Contains))
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", q.Field, err)
	}
	return n, nil
}

// UpdateLink sets u.Field to u.New on the document with _id u.ID as long as
// the field still holds u.Old. It reports whether a document was matched.
func (s *Store) UpdateLink(ctx context.Context, u models.Update) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	filter := bson.D{
		{Key: "_id", Value: u.ID},
		{Key: u.Field, Value: u.Old},
	}
	update := bson.D{
		{Key: "$set", Value: bson.D{{Key: u.Field, Value: u.New}}},
	}

	res, err := s.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to update %s on %v: %w", u.Field, u.ID, err)
	}
	return res.MatchedCount > 0, nil
}

// regexFilter matches field against pattern and, when contains is set,
// against contains as a literal
func regexFilter(field, pattern, contains string) bson.M {
	if contains == "" {
		return bson.M{field: primitive.Regex{Pattern: pattern}}
	}
	return bson.M{"$and": bson.A{
		bson.M{field: primitive.Regex{Pattern: pattern}},
		bson.M{field: primitive.Regex{Pattern: regexp.QuoteMeta(contains)}},
	}}
}

// splitLinkPath breaks downloads.<format>.<field> into its parts
func splitLinkPath(path string) (string, models.LinkField, error) {
	segs := models.SplitFieldPath(path)
	if len(segs) != 3 || segs[0] != "downloads" {
		return "", "", fmt.Errorf("unsupported field path %q", path)
	}
	field := models.LinkField(segs[2])
	if !field.Valid() {
		return "", "", fmt.Errorf("unsupported link field %q", segs[2])
	}
	return segs[1], field, nil
}

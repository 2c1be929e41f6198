// Package fileindex implements the server's per-owner file index and quota
// accounting over MongoDB (spec §4.F), keeping index rows and storage_used
// accounting in a single multi-document transaction (spec §9). Blob writes
// and deletes happen in the blob store, outside that transaction.
package fileindex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/coldforge/syncpod/internal/rpcwire"
)

// File is one row of the index: a user's file at a path, pointing at a blob
// by hash. CreatedAt is set once, on the first upload of (owner, path), and
// preserved across replacement; Modified is refreshed on every commit that
// writes this row (spec §3 "remote file": "{..., created_at, modified_at,
// ...}").
type File struct {
	ID        string    `bson:"_id"`
	Owner     string    `bson:"owner"`
	Path      string    `bson:"path"`
	Hash      string    `bson:"hash"`
	Size      int64     `bson:"size"`
	CreatedAt time.Time `bson:"created_at"`
	Modified  time.Time `bson:"modified"`
}

func (f File) toRemoteFile() rpcwire.RemoteFile {
	return rpcwire.RemoteFile{
		ID:         f.ID,
		Path:       f.Path,
		Hash:       f.Hash,
		Size:       f.Size,
		CreatedAt:  f.CreatedAt,
		ModifiedAt: f.Modified,
	}
}

const (
	filesCollection = "files"
	usersCollection = "users"
)

// Index is the file index, backed by two MongoDB collections: files (one
// document per (owner, path)) and users (carrying storage_used/storage_quota
// per spec §3's user account type).
type Index struct {
	client *mongo.Client
	db     *mongo.Database
}

// Open connects to databaseURL and ensures the (owner, path) and (owner, id)
// indexes spec §4.F requires exist.
func Open(ctx context.Context, databaseURL string) (*Index, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("fileindex: connecting: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("fileindex: pinging: %w", err)
	}

	db := client.Database("syncpod")
	idx := &Index{client: client, db: db}

	if err := idx.ensureIndexes(ctx); err != nil {
		return nil, err
	}

	return idx, nil
}

func (idx *Index) ensureIndexes(ctx context.Context) error {
	files := idx.db.Collection(filesCollection)

	_, err := files.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "owner", Value: 1}, {Key: "path", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "owner", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	})
	if err != nil {
		return fmt.Errorf("fileindex: creating indexes: %w", err)
	}

	return nil
}

// Close disconnects the underlying Mongo client.
func (idx *Index) Close(ctx context.Context) error {
	return idx.client.Disconnect(ctx)
}

// Database returns the underlying *mongo.Database so sibling server
// packages (internal/server/users) can share the same connection and
// "users" collection rather than opening a second client.
func (idx *Index) Database() *mongo.Database {
	return idx.db
}

// GetByPath looks up a file by (owner, path).
func (idx *Index) GetByPath(ctx context.Context, owner, path string) (rpcwire.RemoteFile, error) {
	var f File

	err := idx.db.Collection(filesCollection).
		FindOne(ctx, bson.M{"owner": owner, "path": path}).
		Decode(&f)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return rpcwire.RemoteFile{}, rpcwire.NewError(rpcwire.KindNotFound, "no file at path %q", path)
	}
	if err != nil {
		return rpcwire.RemoteFile{}, fmt.Errorf("fileindex: finding by path: %w", err)
	}

	return f.toRemoteFile(), nil
}

// GetByID looks up a file by (owner, id).
func (idx *Index) GetByID(ctx context.Context, owner, id string) (rpcwire.RemoteFile, error) {
	var f File

	err := idx.db.Collection(filesCollection).
		FindOne(ctx, bson.M{"owner": owner, "_id": id}).
		Decode(&f)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return rpcwire.RemoteFile{}, rpcwire.NewError(rpcwire.KindNotFound, "no file with id %q", id)
	}
	if err != nil {
		return rpcwire.RemoteFile{}, fmt.Errorf("fileindex: finding by id: %w", err)
	}

	return f.toRemoteFile(), nil
}

// ListAll streams every file owned by owner to fn, in path order.
func (idx *Index) ListAll(ctx context.Context, owner string, fn func(rpcwire.RemoteFile) error) error {
	cursor, err := idx.db.Collection(filesCollection).
		Find(ctx, bson.M{"owner": owner}, options.Find().SetSort(bson.D{{Key: "path", Value: 1}}))
	if err != nil {
		return fmt.Errorf("fileindex: listing: %w", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var f File
		if err := cursor.Decode(&f); err != nil {
			return fmt.Errorf("fileindex: decoding row: %w", err)
		}

		if err := fn(f.toRemoteFile()); err != nil {
			return err
		}
	}

	if err := cursor.Err(); err != nil {
		return fmt.Errorf("fileindex: iterating: %w", err)
	}

	return nil
}

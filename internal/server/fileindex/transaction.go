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

func replaceUpsert() *options.ReplaceOptions {
	return options.Replace().SetUpsert(true)
}

func updateUpsert() *options.UpdateOptions {
	return options.Update().SetUpsert(true)
}

// PutResult reports the outcome of a Put so the caller can delete the
// superseded blob from the blob store once the index transaction has
// committed (spec §4.E: "otherwise the prior row's blob is deleted and the
// row is replaced in the same index transaction" — the blob bucket and the
// document database are two different systems with no shared transaction
// coordinator, so the blob delete is performed immediately after the index
// commit rather than inside it).
type PutResult struct {
	File          rpcwire.RemoteFile
	ReplacedHash  string // non-empty if this Put replaced an existing (owner, path) row
	ReplacedBytes int64
}

// Put admits an upload of size bytes at (owner, path) hashing to hash,
// enforcing the quota invariant (I2) and, for a replace, subtracting the
// superseded row's size before adding the new one in the same transaction
// (spec §9's fix for the double-count-on-replace ambiguity).
func (idx *Index) Put(ctx context.Context, owner, path, id, hash string, size int64) (PutResult, error) {
	session, err := idx.client.StartSession()
	if err != nil {
		return PutResult{}, fmt.Errorf("fileindex: starting session: %w", err)
	}
	defer session.EndSession(ctx)

	result, err := session.WithTransaction(ctx, func(sessCtx context.Context) (any, error) {
		return idx.putInTransaction(sessCtx, owner, path, id, hash, size)
	})
	if errors.Is(err, ErrQuotaExceeded) {
		return PutResult{}, err
	}
	if err != nil {
		return PutResult{}, fmt.Errorf("fileindex: put transaction: %w", err)
	}

	return result.(PutResult), nil
}

func (idx *Index) putInTransaction(ctx context.Context, owner, path, id, hash string, size int64) (PutResult, error) {
	files := idx.db.Collection(filesCollection)
	users := idx.db.Collection(usersCollection)

	var existing File
	replaced := false

	err := files.FindOne(ctx, bson.M{"owner": owner, "path": path}).Decode(&existing)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		// first upload of (owner, path)
	case err != nil:
		return PutResult{}, fmt.Errorf("finding existing row: %w", err)
	default:
		replaced = true
	}

	var user userAccount

	err = users.FindOne(ctx, bson.M{"_id": owner}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		user = userAccount{ID: owner}
	} else if err != nil {
		return PutResult{}, fmt.Errorf("reading user: %w", err)
	}

	netDelta := size
	usedWithoutExisting := user.StorageUsed

	if replaced {
		netDelta = size - existing.Size
		usedWithoutExisting -= existing.Size
	}

	if err := checkQuota(userAccount{StorageUsed: usedWithoutExisting, StorageQuota: user.StorageQuota}, size); err != nil {
		return PutResult{}, err
	}

	createdAt := time.Now()
	if replaced {
		createdAt = existing.CreatedAt
	}

	newFile := File{ID: id, Owner: owner, Path: path, Hash: hash, Size: size, CreatedAt: createdAt, Modified: time.Now()}
	if replaced {
		// _id is immutable in MongoDB; a replace keeps the row's id.
		newFile.ID = existing.ID
	}

	_, err = files.ReplaceOne(ctx, bson.M{"owner": owner, "path": path}, newFile, replaceUpsert())
	if err != nil {
		return PutResult{}, fmt.Errorf("writing file row: %w", err)
	}

	_, err = users.UpdateOne(ctx,
		bson.M{"_id": owner},
		bson.M{"$inc": bson.M{"storage_used": netDelta}},
		updateUpsert(),
	)
	if err != nil {
		return PutResult{}, fmt.Errorf("updating storage_used: %w", err)
	}

	result := PutResult{File: newFile.toRemoteFile()}
	if replaced {
		result.ReplacedHash = existing.Hash
		result.ReplacedBytes = existing.Size
	}

	return result, nil
}

// Delete removes the row at (owner, id), decrements storage_used by its
// size, and returns the hash so the caller can delete the now-unreferenced
// blob from the blob store.
func (idx *Index) Delete(ctx context.Context, owner, id string) (hash string, err error) {
	session, err := idx.client.StartSession()
	if err != nil {
		return "", fmt.Errorf("fileindex: starting session: %w", err)
	}
	defer session.EndSession(ctx)

	result, err := session.WithTransaction(ctx, func(sessCtx context.Context) (any, error) {
		return idx.deleteInTransaction(sessCtx, owner, id)
	})
	if err != nil {
		return "", fmt.Errorf("fileindex: delete transaction: %w", err)
	}

	return result.(string), nil
}

func (idx *Index) deleteInTransaction(ctx context.Context, owner, id string) (string, error) {
	files := idx.db.Collection(filesCollection)
	users := idx.db.Collection(usersCollection)

	var existing File

	err := files.FindOneAndDelete(ctx, bson.M{"owner": owner, "_id": id}).Decode(&existing)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", rpcwire.NewError(rpcwire.KindNotFound, "no file with id %q", id)
	}
	if err != nil {
		return "", fmt.Errorf("deleting file row: %w", err)
	}

	_, err = users.UpdateOne(ctx,
		bson.M{"_id": owner},
		bson.M{"$inc": bson.M{"storage_used": -existing.Size}},
	)
	if err != nil {
		return "", fmt.Errorf("updating storage_used: %w", err)
	}

	return existing.Hash, nil
}

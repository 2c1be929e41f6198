package fileindex

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// userAccount mirrors the fields of spec §3's account type that the file
// index itself owns: storage_used and storage_quota. Identity/credential
// fields live in internal/server/users; the two packages share the same
// users collection, keyed by the same _id.
type userAccount struct {
	ID           string `bson:"_id"`
	StorageUsed  int64  `bson:"storage_used"`
	StorageQuota *int64 `bson:"storage_quota,omitempty"`
}

// ErrQuotaExceeded is returned when an upload's announced size would push
// storage_used past storage_quota (spec §4.F: "Quota enforcement compares
// storage_used + announced_size against storage_quota before admitting an
// upload").
var ErrQuotaExceeded = errors.New("fileindex: storage quota exceeded")

// Usage returns a user's current storage_used and, when set, storage_quota.
func (idx *Index) Usage(ctx context.Context, owner string) (used int64, quota *int64, err error) {
	var u userAccount

	err = idx.db.Collection(usersCollection).FindOne(ctx, bson.M{"_id": owner}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil, nil
	}
	if err != nil {
		return 0, nil, fmt.Errorf("fileindex: reading usage: %w", err)
	}

	return u.StorageUsed, u.StorageQuota, nil
}

func checkQuota(u userAccount, additional int64) error {
	if u.StorageQuota == nil {
		return nil
	}

	if u.StorageUsed+additional > *u.StorageQuota {
		return fmt.Errorf("%w: used %d + %d exceeds quota %d", ErrQuotaExceeded, u.StorageUsed, additional, *u.StorageQuota)
	}

	return nil
}

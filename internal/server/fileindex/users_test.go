package fileindex

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func int64Ptr(n int64) *int64 { return &n }

func TestCheckQuotaUnlimited(t *testing.T) {
	require.NoError(t, checkQuota(userAccount{StorageUsed: 1 << 40}, 1<<40))
}

func TestCheckQuotaWithinBudget(t *testing.T) {
	u := userAccount{StorageUsed: 100, StorageQuota: int64Ptr(1000)}
	require.NoError(t, checkQuota(u, 500))
}

func TestCheckQuotaExactlyAtLimit(t *testing.T) {
	u := userAccount{StorageUsed: 500, StorageQuota: int64Ptr(1000)}
	require.NoError(t, checkQuota(u, 500))
}

func TestCheckQuotaExceeded(t *testing.T) {
	u := userAccount{StorageUsed: 900, StorageQuota: int64Ptr(1000)}

	err := checkQuota(u, 200)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrQuotaExceeded))
}

package data

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalsense/analysis-jobs/internal/testutil"
)

func TestRedisJobRepo_Contract(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	client := testutil.SetupTestRedis(t)
	defer client.Close()

	runStoreContract(t, func(t *testing.T) contractStore {
		require.NoError(t, client.FlushDB(context.Background()).Err())
		repo, err := NewRedisJobRepo(RedisRepoOptions{Client: client, KeyPrefix: "test:analysis:"})
		require.NoError(t, err)
		return repo
	})
}

func TestRedisJobRepo_KeysShareHashTag(t *testing.T) {
	repo, err := NewRedisJobRepo(RedisRepoOptions{Client: testutil.NewUnreachableRedis(), KeyPrefix: "p:"})
	require.NoError(t, err)

	assert.Equal(t, "p:job:{j1}:request", repo.requestKey("j1"))
	assert.Equal(t, "p:job:{j1}:result", repo.resultKey("j1"))
	assert.Equal(t, "p:user:{u1}:jobs", repo.userKey("u1"))
}

func TestNewRedisJobRepo_RequiresClient(t *testing.T) {
	_, err := NewRedisJobRepo(RedisRepoOptions{})
	require.Error(t, err)
}

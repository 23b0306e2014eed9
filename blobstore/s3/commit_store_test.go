package s3

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paydesk/finsearch/blobstore"
)

// fakeDDB implements DDBClient with conditional-write semantics.
type fakeDDB struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue // version -> item
}

func newFakeDDB() *fakeDDB {
	return &fakeDDB{items: make(map[string]map[string]types.AttributeValue)}
}

func (f *fakeDDB) PutItem(_ context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	version := params.Item["version"].(*types.AttributeValueMemberN).Value
	if _, exists := f.items[version]; exists {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("version exists")}
	}
	f.items[version] = params.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDDB) Query(_ context.Context, _ *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.items) == 0 {
		return &dynamodb.QueryOutput{}, nil
	}

	var versions []int
	for v := range f.items {
		var n int
		_, _ = fmt.Sscanf(v, "%d", &n)
		versions = append(versions, n)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(versions)))

	latest := f.items[fmt.Sprintf("%d", versions[0])]
	return &dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{latest}}, nil
}

func newTestCommitStore(ddb DDBClient) *CommitStore {
	return &CommitStore{
		Store:     blobstore.NewMemoryStore(),
		ddb:       ddb,
		tableName: "finsearch-commits",
		baseURI:   "s3://bucket/finsearch",
	}
}

func TestCommitStoreCurrentEmpty(t *testing.T) {
	cs := newTestCommitStore(newFakeDDB())

	_, err := cs.Current(context.Background())
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestCommitStoreCommitAndCurrent(t *testing.T) {
	ctx := context.Background()
	cs := newTestCommitStore(newFakeDDB())

	require.NoError(t, cs.Commit(ctx, "gen-1"))

	current, err := cs.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, "gen-1", current)

	require.NoError(t, cs.Commit(ctx, "gen-2"))

	current, err = cs.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, "gen-2", current)
}

// staleDDB delegates writes to the shared log but answers queries as if
// nothing had been committed, so the next conditional write collides.
type staleDDB struct {
	*fakeDDB
}

func (s *staleDDB) Query(_ context.Context, _ *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	return &dynamodb.QueryOutput{}, nil
}

func TestCommitStoreConcurrentCommit(t *testing.T) {
	ctx := context.Background()
	ddb := newFakeDDB()

	winner := newTestCommitStore(ddb)
	loser := newTestCommitStore(&staleDDB{fakeDDB: ddb})

	require.NoError(t, winner.Commit(ctx, "gen-a"))

	err := loser.Commit(ctx, "gen-b")
	assert.ErrorIs(t, err, ErrConcurrentCommit)

	// The committed pointer is untouched by the failed commit.
	current, err := winner.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, "gen-a", current)
}

package compositor_test

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyloom/keyloom/compositor"
)

// mockClient records every request and answers with the configured responses.
// Unset response funcs return empty outputs, which for Query means a single
// empty page.
type mockClient struct {
	getInputs   []*dynamodb.GetItemInput
	putInputs   []*dynamodb.PutItemInput
	queryInputs []*dynamodb.QueryInput
	batchInputs []*dynamodb.BatchWriteItemInput
	txInputs    []*dynamodb.TransactWriteItemsInput

	getFn   func(*dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error)
	putFn   func(*dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error)
	queryFn func(*dynamodb.QueryInput) (*dynamodb.QueryOutput, error)
	batchFn func(*dynamodb.BatchWriteItemInput) (*dynamodb.BatchWriteItemOutput, error)
	txFn    func(*dynamodb.TransactWriteItemsInput) (*dynamodb.TransactWriteItemsOutput, error)
}

func (m *mockClient) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	m.getInputs = append(m.getInputs, in)
	if m.getFn != nil {
		return m.getFn(in)
	}
	return &dynamodb.GetItemOutput{}, nil
}

func (m *mockClient) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.putInputs = append(m.putInputs, in)
	if m.putFn != nil {
		return m.putFn(in)
	}
	return &dynamodb.PutItemOutput{}, nil
}

func (m *mockClient) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	m.queryInputs = append(m.queryInputs, in)
	if m.queryFn != nil {
		return m.queryFn(in)
	}
	return &dynamodb.QueryOutput{}, nil
}

func (m *mockClient) BatchWriteItem(_ context.Context, in *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	m.batchInputs = append(m.batchInputs, in)
	if m.batchFn != nil {
		return m.batchFn(in)
	}
	return &dynamodb.BatchWriteItemOutput{}, nil
}

func (m *mockClient) TransactWriteItems(_ context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	m.txInputs = append(m.txInputs, in)
	if m.txFn != nil {
		return m.txFn(in)
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

func avS(s string) types.AttributeValue { return &types.AttributeValueMemberS{Value: s} }
func avN(s string) types.AttributeValue { return &types.AttributeValueMemberN{Value: s} }

func getS(t *testing.T, item map[string]types.AttributeValue, name string) string {
	t.Helper()
	av, ok := item[name].(*types.AttributeValueMemberS)
	require.True(t, ok, "attribute %s is not a string: %#v", name, item[name])
	return av.Value
}

func getN(t *testing.T, item map[string]types.AttributeValue, name string) string {
	t.Helper()
	av, ok := item[name].(*types.AttributeValueMemberN)
	require.True(t, ok, "attribute %s is not a number: %#v", name, item[name])
	return av.Value
}

// versionedConfig is the schema most tests run against: a composite primary
// key, one lookup GSI keyed on the unique id, and versioning enabled.
func versionedConfig(t *testing.T) compositor.TableConfig {
	t.Helper()
	return compositor.TableConfig{
		TableName:    "things",
		PrimaryIndex: mustPrimary(t, "pk", "{tenant}", "sk", "item:v{version}:{id}", ":"),
		SecondaryIndexes: []*compositor.Index{
			mustGSI(t, "by-id", "gsi_pk", "{id}", "", "", ""),
		},
		Attributes:             []string{"tenant", "version", "id", "payload"},
		UniqueIDAttribute:      "id",
		LatestVersionAttribute: "latest",
		VersioningAttribute:    "version",
	}
}

func plainConfig(t *testing.T) compositor.TableConfig {
	t.Helper()
	return compositor.TableConfig{
		TableName:    "things",
		PrimaryIndex: mustPrimary(t, "pk", "{tenant}", "sk", "item:v{version}:{id}", ":"),
		Attributes:   []string{"tenant", "version", "id", "payload"},
	}
}

func newTestTable(t *testing.T, client compositor.DynamoClient, cfg compositor.TableConfig) *compositor.Table {
	t.Helper()
	table, err := compositor.NewTable(client, cfg)
	require.NoError(t, err)
	return table
}

func TestNewTableValidation(t *testing.T) {
	primary := mustPrimary(t, "pk", "{tenant}", "", "", "")
	gsi := mustGSI(t, "g", "gsi_pk", "{id}", "", "", "")

	tests := []struct {
		name string
		cfg  compositor.TableConfig
	}{
		{
			name: "missing table name",
			cfg:  compositor.TableConfig{PrimaryIndex: primary},
		},
		{
			name: "missing primary index",
			cfg:  compositor.TableConfig{TableName: "things"},
		},
		{
			name: "secondary index in the primary slot",
			cfg:  compositor.TableConfig{TableName: "things", PrimaryIndex: gsi},
		},
		{
			name: "primary index in the secondary list",
			cfg: compositor.TableConfig{
				TableName:        "things",
				PrimaryIndex:     primary,
				SecondaryIndexes: []*compositor.Index{primary},
			},
		},
		{
			name: "latest-version attribute without a versioning attribute",
			cfg: compositor.TableConfig{
				TableName:              "things",
				PrimaryIndex:           primary,
				LatestVersionAttribute: "latest",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compositor.NewTable(&mockClient{}, tt.cfg)
			assert.ErrorIs(t, err, compositor.ErrInvalidSchema)
		})
	}
}

func TestPutVersioned(t *testing.T) {
	mock := &mockClient{
		getFn: func(in *dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) {
			return &dynamodb.GetItemOutput{
				Item: map[string]types.AttributeValue{"latest": avN("41")},
			}, nil
		},
	}
	table := newTestTable(t, mock, versionedConfig(t))

	values := compositor.FieldValues{"tenant": "T1", "id": "X", "payload": "p"}
	got, err := table.Put(context.Background(), values, compositor.PutOptions{})
	require.NoError(t, err)
	assert.Equal(t, 42, got["version"])

	// The version read probes the latest shadow item's full primary key.
	require.Len(t, mock.getInputs, 1)
	assert.Equal(t, "item:v0:X", getS(t, mock.getInputs[0].Key, "sk"))
	assert.Equal(t, "T1", getS(t, mock.getInputs[0].Key, "pk"))

	require.Len(t, mock.putInputs, 2)

	item := mock.putInputs[0].Item
	assert.Equal(t, "T1", getS(t, item, "pk"))
	assert.Equal(t, "item:v42:X", getS(t, item, "sk"))
	assert.Equal(t, "X", getS(t, item, "gsi_pk"))
	assert.Equal(t, "42", getN(t, item, "version"))
	assert.NotContains(t, item, "latest")

	shadow := mock.putInputs[1].Item
	assert.Equal(t, "item:v0:X", getS(t, shadow, "sk"))
	assert.Equal(t, "0", getN(t, shadow, "version"))
	assert.Equal(t, "42", getN(t, shadow, "latest"))
}

func TestPutFirstVersion(t *testing.T) {
	mock := &mockClient{}
	table := newTestTable(t, mock, versionedConfig(t))

	got, err := table.Put(context.Background(), compositor.FieldValues{"tenant": "T1", "id": "X"}, compositor.PutOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, got["version"])

	require.Len(t, mock.putInputs, 2)
	assert.Equal(t, "item:v1:X", getS(t, mock.putInputs[0].Item, "sk"))
	assert.Equal(t, "1", getN(t, mock.putInputs[1].Item, "latest"))
}

func TestPutKnownLatestVersionSkipsRead(t *testing.T) {
	mock := &mockClient{}
	table := newTestTable(t, mock, versionedConfig(t))

	latest := 6
	_, err := table.Put(context.Background(), compositor.FieldValues{"tenant": "T1", "id": "X"},
		compositor.PutOptions{Overwrite: true, LatestVersion: &latest})
	require.NoError(t, err)

	assert.Empty(t, mock.getInputs)
	require.Len(t, mock.putInputs, 2)
	assert.Equal(t, "item:v7:X", getS(t, mock.putInputs[0].Item, "sk"))
}

func TestPutDuplicateGuard(t *testing.T) {
	mock := &mockClient{}
	table := newTestTable(t, mock, plainConfig(t))

	values := compositor.FieldValues{"tenant": "T1", "version": 1, "id": "X"}
	_, err := table.Put(context.Background(), values, compositor.PutOptions{})
	require.NoError(t, err)

	require.Len(t, mock.putInputs, 1)
	require.NotNil(t, mock.putInputs[0].ConditionExpression)
	assert.Contains(t, *mock.putInputs[0].ConditionExpression, "<>")
}

func TestPutOverwriteSkipsGuard(t *testing.T) {
	mock := &mockClient{}
	table := newTestTable(t, mock, plainConfig(t))

	values := compositor.FieldValues{"tenant": "T1", "version": 1, "id": "X"}
	_, err := table.Put(context.Background(), values, compositor.PutOptions{Overwrite: true})
	require.NoError(t, err)

	require.Len(t, mock.putInputs, 1)
	assert.Nil(t, mock.putInputs[0].ConditionExpression)
}

func TestPutConditionalFailure(t *testing.T) {
	mock := &mockClient{
		putFn: func(*dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error) {
			return nil, &types.ConditionalCheckFailedException{}
		},
	}
	table := newTestTable(t, mock, plainConfig(t))

	values := compositor.FieldValues{"tenant": "T1", "version": 1, "id": "X"}
	_, err := table.Put(context.Background(), values, compositor.PutOptions{})
	assert.ErrorIs(t, err, compositor.ErrConditionalWriteFailed)
}

func TestPutTransact(t *testing.T) {
	mock := &mockClient{}
	table := newTestTable(t, mock, versionedConfig(t))

	latest := 41
	_, err := table.Put(context.Background(), compositor.FieldValues{"tenant": "T1", "id": "X"},
		compositor.PutOptions{Overwrite: true, LatestVersion: &latest, Transact: true})
	require.NoError(t, err)

	assert.Empty(t, mock.putInputs)
	require.Len(t, mock.txInputs, 1)
	writes := mock.txInputs[0].TransactItems
	require.Len(t, writes, 2)
	assert.Equal(t, "things", *writes[0].Put.TableName)
	assert.Equal(t, "item:v42:X", getS(t, writes[0].Put.Item, "sk"))
	assert.Equal(t, "item:v0:X", getS(t, writes[1].Put.Item, "sk"))
}

func TestPutTransactConditionalFailure(t *testing.T) {
	code := "ConditionalCheckFailed"
	mock := &mockClient{
		txFn: func(*dynamodb.TransactWriteItemsInput) (*dynamodb.TransactWriteItemsOutput, error) {
			return nil, &types.TransactionCanceledException{
				CancellationReasons: []types.CancellationReason{{Code: &code}},
			}
		},
	}
	table := newTestTable(t, mock, versionedConfig(t))

	latest := 1
	_, err := table.Put(context.Background(), compositor.FieldValues{"tenant": "T1", "id": "X"},
		compositor.PutOptions{LatestVersion: &latest, Transact: true})
	assert.ErrorIs(t, err, compositor.ErrConditionalWriteFailed)
}

func TestPutStringify(t *testing.T) {
	cfg := versionedConfig(t)
	cfg.StringifyAttributes = []string{"payload"}
	mock := &mockClient{}
	table := newTestTable(t, mock, cfg)

	values := compositor.FieldValues{
		"tenant":  "T1",
		"id":      "X",
		"payload": map[string]any{"a": 1},
	}
	got, err := table.Put(context.Background(), values, compositor.PutOptions{Overwrite: true})
	require.NoError(t, err)

	// Stored as a JSON string, handed back decoded.
	assert.Equal(t, `{"a":1}`, getS(t, mock.putInputs[0].Item, "payload"))
	assert.Equal(t, map[string]any{"a": float64(1)}, got["payload"])
}

func TestGetRoutesThroughPrimary(t *testing.T) {
	mock := &mockClient{
		queryFn: func(*dynamodb.QueryInput) (*dynamodb.QueryOutput, error) {
			return &dynamodb.QueryOutput{
				Items: []map[string]types.AttributeValue{
					{"tenant": avS("T1"), "version": avN("1"), "id": avS("X"), "payload": avS("p")},
				},
			}, nil
		},
	}
	table := newTestTable(t, mock, plainConfig(t))

	got, err := table.Get(context.Background(), compositor.FieldValues{"tenant": "T1", "version": 1}, compositor.GetOptions{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "p", got[0]["payload"])

	require.Len(t, mock.queryInputs, 1)
	in := mock.queryInputs[0]
	assert.Nil(t, in.IndexName)
	assert.Contains(t, *in.KeyConditionExpression, "begins_with")
	assert.Equal(t, "tenant,version,id,payload", *in.ProjectionExpression)
}

func TestGetRoutesThroughSecondary(t *testing.T) {
	mock := &mockClient{}
	table := newTestTable(t, mock, versionedConfig(t))

	_, err := table.Get(context.Background(), compositor.FieldValues{"id": "X"}, compositor.GetOptions{})
	require.NoError(t, err)

	require.Len(t, mock.queryInputs, 1)
	in := mock.queryInputs[0]
	require.NotNil(t, in.IndexName)
	assert.Equal(t, "by-id", *in.IndexName)
}

func TestGetDefaultsToLatestVersion(t *testing.T) {
	mock := &mockClient{}
	table := newTestTable(t, mock, versionedConfig(t))

	_, err := table.Get(context.Background(), compositor.FieldValues{"tenant": "T1"}, compositor.GetOptions{})
	require.NoError(t, err)

	require.Len(t, mock.queryInputs, 1)
	in := mock.queryInputs[0]
	var bound []string
	for _, v := range in.ExpressionAttributeValues {
		if s, ok := v.(*types.AttributeValueMemberS); ok {
			bound = append(bound, s.Value)
		}
	}
	assert.Contains(t, bound, "item:v0:")
}

func TestGetReturnFieldsProjection(t *testing.T) {
	mock := &mockClient{}
	table := newTestTable(t, mock, plainConfig(t))

	values := compositor.FieldValues{"tenant": "T1", "version": 1, "id": "X"}
	_, err := table.Get(context.Background(), values, compositor.GetOptions{ReturnFields: []string{"payload", "status"}})
	require.NoError(t, err)

	in := mock.queryInputs[0]
	assert.Equal(t, "payload,#s", *in.ProjectionExpression)
	assert.Equal(t, "status", in.ExpressionAttributeNames["#s"])
}

func TestGetPaginates(t *testing.T) {
	pages := 0
	lek := map[string]types.AttributeValue{"pk": avS("T1")}
	mock := &mockClient{}
	mock.queryFn = func(*dynamodb.QueryInput) (*dynamodb.QueryOutput, error) {
		pages++
		out := &dynamodb.QueryOutput{
			Items: []map[string]types.AttributeValue{{"id": avS("X")}},
		}
		if pages == 1 {
			out.LastEvaluatedKey = lek
		}
		return out, nil
	}
	table := newTestTable(t, mock, plainConfig(t))

	got, err := table.Get(context.Background(), compositor.FieldValues{"tenant": "T1", "version": 1}, compositor.GetOptions{})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, 2, pages)
}

func TestDeleteVersionHistory(t *testing.T) {
	mock := &mockClient{
		queryFn: func(*dynamodb.QueryInput) (*dynamodb.QueryOutput, error) {
			return &dynamodb.QueryOutput{
				Items: []map[string]types.AttributeValue{
					{"pk": avS("T1"), "sk": avS("item:v0:X"), "gsi_pk": avS("X"), "payload": avS("p"), "latest": avN("2")},
					{"pk": avS("T1"), "sk": avS("item:v1:X"), "gsi_pk": avS("X"), "payload": avS("old")},
					{"pk": avS("T1"), "sk": avS("item:v2:X"), "gsi_pk": avS("X"), "payload": avS("p")},
				},
			}, nil
		},
	}
	table := newTestTable(t, mock, versionedConfig(t))

	got, err := table.Delete(context.Background(), compositor.FieldValues{"tenant": "T1", "id": "X"})
	require.NoError(t, err)

	// The latest shadow item's values come back, minus the physical keys.
	assert.Equal(t, "p", got["payload"])
	assert.NotContains(t, got, "pk")
	assert.NotContains(t, got, "sk")
	assert.NotContains(t, got, "gsi_pk")

	require.Len(t, mock.batchInputs, 1)
	requests := mock.batchInputs[0].RequestItems["things"]
	require.Len(t, requests, 3)
	assert.Equal(t, "item:v0:X", getS(t, requests[0].DeleteRequest.Key, "sk"))
	assert.Equal(t, "item:v2:X", getS(t, requests[2].DeleteRequest.Key, "sk"))
}

func TestDeleteChunksBatches(t *testing.T) {
	items := make([]map[string]types.AttributeValue, 30)
	for i := range items {
		items[i] = map[string]types.AttributeValue{
			"pk": avS("T1"),
			"sk": avS("item:v" + string(rune('a'+i)) + ":X"),
		}
	}
	mock := &mockClient{
		queryFn: func(*dynamodb.QueryInput) (*dynamodb.QueryOutput, error) {
			return &dynamodb.QueryOutput{Items: items}, nil
		},
	}
	table := newTestTable(t, mock, plainConfig(t))

	_, err := table.Delete(context.Background(), compositor.FieldValues{"tenant": "T1", "version": 1, "id": "X"})
	require.NoError(t, err)

	require.Len(t, mock.batchInputs, 2)
	assert.Len(t, mock.batchInputs[0].RequestItems["things"], 25)
	assert.Len(t, mock.batchInputs[1].RequestItems["things"], 5)
}

func TestDeleteNotFound(t *testing.T) {
	mock := &mockClient{}
	table := newTestTable(t, mock, plainConfig(t))

	_, err := table.Delete(context.Background(), compositor.FieldValues{"tenant": "T1", "version": 1, "id": "X"})
	assert.ErrorIs(t, err, compositor.ErrNotFound)
	assert.Empty(t, mock.batchInputs)
}

func TestUpdateVersioned(t *testing.T) {
	mock := &mockClient{
		queryFn: func(*dynamodb.QueryInput) (*dynamodb.QueryOutput, error) {
			return &dynamodb.QueryOutput{
				Items: []map[string]types.AttributeValue{
					{"pk": avS("T1"), "sk": avS("item:v0:X"), "gsi_pk": avS("X"), "latest": avN("41")},
				},
			}, nil
		},
	}
	table := newTestTable(t, mock, versionedConfig(t))

	got, err := table.Update(context.Background(), compositor.FieldValues{"tenant": "T1", "id": "X", "payload": "new"}, false)
	require.NoError(t, err)
	assert.Equal(t, 42, got["version"])
	assert.Equal(t, "new", got["payload"])

	// No version read: the latest version came from the merge target.
	assert.Empty(t, mock.getInputs)

	require.Len(t, mock.putInputs, 2)
	assert.Equal(t, "item:v42:X", getS(t, mock.putInputs[0].Item, "sk"))
	assert.Equal(t, "42", getN(t, mock.putInputs[1].Item, "latest"))
}

func TestUpdateNotFound(t *testing.T) {
	mock := &mockClient{}
	table := newTestTable(t, mock, versionedConfig(t))

	_, err := table.Update(context.Background(), compositor.FieldValues{"tenant": "T1", "id": "X"}, false)
	assert.ErrorIs(t, err, compositor.ErrNotFound)
}

func TestNextVersion(t *testing.T) {
	mock := &mockClient{
		getFn: func(*dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) {
			return &dynamodb.GetItemOutput{
				Item: map[string]types.AttributeValue{"latest": avN("41")},
			}, nil
		},
	}
	table := newTestTable(t, mock, versionedConfig(t))

	n, err := table.NextVersion(context.Background(), compositor.FieldValues{"tenant": "T1", "id": "X"})
	require.NoError(t, err)
	assert.Equal(t, 42, n)
}

func TestNextVersionMissingShadow(t *testing.T) {
	mock := &mockClient{}
	table := newTestTable(t, mock, versionedConfig(t))

	n, err := table.NextVersion(context.Background(), compositor.FieldValues{"tenant": "T1", "id": "X"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestNextVersionRequiresVersioning(t *testing.T) {
	table := newTestTable(t, &mockClient{}, plainConfig(t))

	_, err := table.NextVersion(context.Background(), compositor.FieldValues{"tenant": "T1", "id": "X"})
	assert.ErrorIs(t, err, compositor.ErrInvalidSchema)
}

func TestIsMostRecentVersion(t *testing.T) {
	table := newTestTable(t, &mockClient{}, versionedConfig(t))

	assert.True(t, table.IsMostRecentVersion(compositor.FieldValues{
		"pk": "T1", "sk": "item:v0:X",
	}))
	assert.False(t, table.IsMostRecentVersion(compositor.FieldValues{
		"pk": "T1", "sk": "item:v2:X",
	}))
	assert.False(t, table.IsMostRecentVersion(compositor.FieldValues{"pk": "T1"}))
}

func TestIsMostRecentVersionUnversionedTable(t *testing.T) {
	table := newTestTable(t, &mockClient{}, plainConfig(t))

	assert.False(t, table.IsMostRecentVersion(compositor.FieldValues{
		"pk": "T1", "sk": "item:v0:X",
	}))
}

func TestFieldValuesFromItemKeys(t *testing.T) {
	table := newTestTable(t, &mockClient{}, versionedConfig(t))

	got, err := table.FieldValuesFromItemKeys(compositor.FieldValues{
		"pk": "T1", "sk": "item:v2:X", "gsi_pk": "X", "payload": "p",
	})
	require.NoError(t, err)
	assert.Equal(t, compositor.FieldValues{"tenant": "T1", "version": "2", "id": "X"}, got)
}

func TestFieldValuesFromItemKeysSkipsAbsentSecondary(t *testing.T) {
	table := newTestTable(t, &mockClient{}, versionedConfig(t))

	got, err := table.FieldValuesFromItemKeys(compositor.FieldValues{
		"pk": "T1", "sk": "item:v2:X",
	})
	require.NoError(t, err)
	assert.Equal(t, compositor.FieldValues{"tenant": "T1", "version": "2", "id": "X"}, got)
}

func TestFieldValuesFromItemKeysMissingPrimary(t *testing.T) {
	table := newTestTable(t, &mockClient{}, versionedConfig(t))

	_, err := table.FieldValuesFromItemKeys(compositor.FieldValues{"gsi_pk": "X"})
	var mismatch *compositor.ReverseParseMismatchError
	assert.ErrorAs(t, err, &mismatch)
}

func TestErrantFieldValues(t *testing.T) {
	table := newTestTable(t, &mockClient{}, versionedConfig(t))

	errant := table.ErrantFieldValues(compositor.FieldValues{
		"tenant": "T1", "id": "X", "bogus": 1,
	})
	assert.Equal(t, []string{"bogus"}, errant)

	assert.Nil(t, table.ErrantFieldValues(compositor.FieldValues{"tenant": "T1"}))
}

func TestErrantReturnFields(t *testing.T) {
	table := newTestTable(t, &mockClient{}, versionedConfig(t))

	assert.Equal(t, []string{"nope"}, table.ErrantReturnFields([]string{"payload", "nope"}))
	assert.Nil(t, table.ErrantReturnFields([]string{"payload", "id"}))
}

func TestTableForceKeyBeginsWith(t *testing.T) {
	cfg := plainConfig(t)
	cfg.ForceKeyBeginsWith = true
	mock := &mockClient{}
	table := newTestTable(t, mock, cfg)

	values := compositor.FieldValues{"tenant": "T1", "version": 1, "id": "X"}
	_, err := table.Get(context.Background(), values, compositor.GetOptions{})
	require.NoError(t, err)

	assert.Contains(t, *mock.queryInputs[0].KeyConditionExpression, "begins_with")
}

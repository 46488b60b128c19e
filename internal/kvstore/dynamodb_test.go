package kvstore

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzpsarthak13/dynamoplus/internal/core"
)

// fakeDynamoDB records the inputs it receives and replays canned outputs.
type fakeDynamoDB struct {
	getInputs    []*dynamodb.GetItemInput
	putInputs    []*dynamodb.PutItemInput
	deleteInputs []*dynamodb.DeleteItemInput
	queryInputs  []*dynamodb.QueryInput
	updateInputs []*dynamodb.UpdateItemInput

	getOutput    *dynamodb.GetItemOutput
	queryOutput  *dynamodb.QueryOutput
	updateOutput *dynamodb.UpdateItemOutput
	updateErrs   []error
	putErrs      []error
}

func (f *fakeDynamoDB) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.getInputs = append(f.getInputs, params)
	if f.getOutput == nil {
		return &dynamodb.GetItemOutput{}, nil
	}
	return f.getOutput, nil
}

func (f *fakeDynamoDB) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.putInputs = append(f.putInputs, params)
	if len(f.putErrs) > 0 {
		err := f.putErrs[0]
		f.putErrs = f.putErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamoDB) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.deleteInputs = append(f.deleteInputs, params)
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeDynamoDB) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.queryInputs = append(f.queryInputs, params)
	if f.queryOutput == nil {
		return &dynamodb.QueryOutput{}, nil
	}
	return f.queryOutput, nil
}

func (f *fakeDynamoDB) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.updateInputs = append(f.updateInputs, params)
	if len(f.updateErrs) > 0 {
		err := f.updateErrs[0]
		f.updateErrs = f.updateErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return f.updateOutput, nil
}

func (f *fakeDynamoDB) DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	return &dynamodb.DescribeTableOutput{Table: &types.TableDescription{TableStatus: types.TableStatusActive}}, nil
}

func (f *fakeDynamoDB) CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	return &dynamodb.CreateTableOutput{}, nil
}

func stringAttr(t *testing.T, av types.AttributeValue) string {
	t.Helper()
	s, ok := av.(*types.AttributeValueMemberS)
	require.True(t, ok, "expected string attribute, got %T", av)
	return s.Value
}

func TestDynamoDBDriverScanBuildsDescendingQuery(t *testing.T) {
	fake := &fakeDynamoDB{
		queryOutput: &dynamodb.QueryOutput{
			Items: []map[string]types.AttributeValue{
				{
					"pk":   &types.AttributeValueMemberS{Value: "book#1"},
					"sk":   &types.AttributeValueMemberS{Value: "book#author#title"},
					"data": &types.AttributeValueMemberS{Value: "Orwell#Animal Farm"},
					"document": &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
						"title": &types.AttributeValueMemberS{Value: "Animal Farm"},
					}},
				},
			},
			LastEvaluatedKey: map[string]types.AttributeValue{
				"pk":   &types.AttributeValueMemberS{Value: "book#1"},
				"sk":   &types.AttributeValueMemberS{Value: "book#author#title"},
				"data": &types.AttributeValueMemberS{Value: "Orwell#Animal Farm"},
			},
		},
	}
	driver := NewDynamoDBDriverWithClient(fake, "dynamoplus")

	start := &core.Key{PK: "book#7", SK: "book#author#title", Data: "Orwell#B"}
	rows, next, err := driver.Scan(context.Background(), core.ScanDescriptor{
		Partition: "book#author#title",
		Op:        core.SortBeginsWith,
		Operand:   "Orwell#Animal",
	}, 2, start)
	require.NoError(t, err)

	require.Len(t, fake.queryInputs, 1)
	input := fake.queryInputs[0]
	assert.Equal(t, "dynamoplus", aws.ToString(input.TableName))
	assert.Equal(t, ProjectionIndexName, aws.ToString(input.IndexName))
	assert.Equal(t, "#sk = :sk AND begins_with(#data, :v)", aws.ToString(input.KeyConditionExpression))
	assert.False(t, aws.ToBool(input.ScanIndexForward))
	assert.Equal(t, int32(2), aws.ToInt32(input.Limit))
	assert.Equal(t, "book#author#title", stringAttr(t, input.ExpressionAttributeValues[":sk"]))
	assert.Equal(t, "Orwell#Animal", stringAttr(t, input.ExpressionAttributeValues[":v"]))
	assert.Equal(t, "book#7", stringAttr(t, input.ExclusiveStartKey["pk"]))
	assert.Equal(t, "Orwell#B", stringAttr(t, input.ExclusiveStartKey["data"]))

	require.Len(t, rows, 1)
	assert.Equal(t, "Animal Farm", rows[0].Document["title"])
	require.NotNil(t, next)
	assert.Equal(t, core.Key{PK: "book#1", SK: "book#author#title", Data: "Orwell#Animal Farm"}, *next)
}

func TestDynamoDBDriverScanOperators(t *testing.T) {
	tests := []struct {
		op        core.SortOp
		condition string
	}{
		{op: core.SortNone, condition: "#sk = :sk"},
		{op: core.SortEq, condition: "#sk = :sk AND #data = :v"},
		{op: core.SortGt, condition: "#sk = :sk AND #data > :v"},
		{op: core.SortGte, condition: "#sk = :sk AND #data >= :v"},
		{op: core.SortLt, condition: "#sk = :sk AND #data < :v"},
		{op: core.SortLte, condition: "#sk = :sk AND #data <= :v"},
		{op: core.SortBetween, condition: "#sk = :sk AND #data BETWEEN :v AND :to"},
	}

	for _, tt := range tests {
		t.Run(string(tt.op), func(t *testing.T) {
			fake := &fakeDynamoDB{}
			driver := NewDynamoDBDriverWithClient(fake, "dynamoplus")

			rows, next, err := driver.Scan(context.Background(), core.ScanDescriptor{
				Partition: "order#amount",
				Op:        tt.op,
				Operand:   "10",
				OperandTo: "20",
			}, 0, nil)
			require.NoError(t, err)
			assert.Empty(t, rows)
			assert.Nil(t, next)

			input := fake.queryInputs[0]
			assert.Equal(t, tt.condition, aws.ToString(input.KeyConditionExpression))
			assert.Nil(t, input.Limit)
			assert.Nil(t, input.ExclusiveStartKey)
		})
	}
}

func TestDynamoDBDriverPutAndGet(t *testing.T) {
	fake := &fakeDynamoDB{}
	driver := NewDynamoDBDriverWithClient(fake, "dynamoplus")
	ctx := context.Background()

	row, err := driver.Get(ctx, "book#1", "book")
	require.NoError(t, err)
	assert.Nil(t, row)

	err = driver.Put(ctx, core.Row{PK: "book#1", SK: "book", Data: "1", Document: map[string]interface{}{"title": "1984"}})
	require.NoError(t, err)
	require.Len(t, fake.putInputs, 1)
	item := fake.putInputs[0].Item
	assert.Equal(t, "book#1", stringAttr(t, item["pk"]))
	assert.Equal(t, "book", stringAttr(t, item["sk"]))
	assert.Equal(t, "1", stringAttr(t, item["data"]))
	assert.IsType(t, &types.AttributeValueMemberM{}, item["document"])

	require.NoError(t, driver.Delete(ctx, "book#1", "book"))
	require.Len(t, fake.deleteInputs, 1)
	assert.Equal(t, "book#1", stringAttr(t, fake.deleteInputs[0].Key["pk"]))
}

func TestDynamoDBDriverAtomicIncrement(t *testing.T) {
	key := core.Key{PK: "aggregation#count_orders_count", SK: "aggregation", Data: "count_orders_count"}

	t.Run("existing row uses ADD", func(t *testing.T) {
		fake := &fakeDynamoDB{
			updateOutput: &dynamodb.UpdateItemOutput{Attributes: map[string]types.AttributeValue{
				"document": &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
					"value": &types.AttributeValueMemberN{Value: "3"},
				}},
			}},
		}
		driver := NewDynamoDBDriverWithClient(fake, "dynamoplus")

		value, err := driver.AtomicIncrement(context.Background(), key, "value", 1)
		require.NoError(t, err)
		assert.Equal(t, float64(3), value)

		require.Len(t, fake.updateInputs, 1)
		input := fake.updateInputs[0]
		assert.Equal(t, "ADD #doc.#f :d", aws.ToString(input.UpdateExpression))
		assert.Equal(t, "attribute_exists(pk)", aws.ToString(input.ConditionExpression))
		assert.Equal(t, "value", input.ExpressionAttributeNames["#f"])
		assert.Equal(t, &types.AttributeValueMemberN{Value: "1"}, input.ExpressionAttributeValues[":d"])
		assert.Empty(t, fake.putInputs)
	})

	t.Run("missing row is seeded", func(t *testing.T) {
		fake := &fakeDynamoDB{
			updateErrs: []error{&types.ConditionalCheckFailedException{Message: aws.String("missing")}},
		}
		driver := NewDynamoDBDriverWithClient(fake, "dynamoplus")

		value, err := driver.AtomicIncrement(context.Background(), key, "value", -1)
		require.NoError(t, err)
		assert.Equal(t, float64(-1), value)

		require.Len(t, fake.putInputs, 1)
		put := fake.putInputs[0]
		assert.Equal(t, "attribute_not_exists(pk)", aws.ToString(put.ConditionExpression))
		assert.Equal(t, "count_orders_count", stringAttr(t, put.Item["data"]))
	})

	t.Run("lost seeding race retries the update", func(t *testing.T) {
		fake := &fakeDynamoDB{
			updateErrs: []error{&types.ConditionalCheckFailedException{Message: aws.String("missing")}},
			putErrs:    []error{&types.ConditionalCheckFailedException{Message: aws.String("exists")}},
			updateOutput: &dynamodb.UpdateItemOutput{Attributes: map[string]types.AttributeValue{
				"document": &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
					"value": &types.AttributeValueMemberN{Value: "2"},
				}},
			}},
		}
		driver := NewDynamoDBDriverWithClient(fake, "dynamoplus")

		value, err := driver.AtomicIncrement(context.Background(), key, "value", 1)
		require.NoError(t, err)
		assert.Equal(t, float64(2), value)
		assert.Len(t, fake.updateInputs, 2)
	})
}

package kvstore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/rzpsarthak13/dynamoplus/internal/core"
	"github.com/rzpsarthak13/dynamoplus/internal/registry"
)

// ProjectionIndexName is the name of the global secondary index keyed by (sk, data).
const ProjectionIndexName = "sk-data-index"

// DynamoDBAPI is the subset of the DynamoDB client used by the driver.
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

// DynamoDBDriver implements core.StorageDriver on a DynamoDB single table.
type DynamoDBDriver struct {
	client    DynamoDBAPI
	tableName string
	closed    bool
}

// dynamoItem is the attribute layout of every row in the table.
type dynamoItem struct {
	PK       string                 `dynamodbav:"pk"`
	SK       string                 `dynamodbav:"sk"`
	Data     string                 `dynamodbav:"data"`
	Document map[string]interface{} `dynamodbav:"document,omitempty"`
}

// NewDynamoDBDriver creates a new DynamoDB driver and checks the table is reachable.
// When createTable is set, a missing table is created together with its projection.
func NewDynamoDBDriver(region, tableName, endpoint, accessKeyID, secretAccessKey string, createTable bool, timeout time.Duration) (*DynamoDBDriver, error) {
	if region == "" {
		return nil, fmt.Errorf("region is required")
	}
	if tableName == "" {
		return nil, fmt.Errorf("table name is required")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	// Load AWS config
	cfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// Override credentials if provided
	if accessKeyID != "" && secretAccessKey != "" {
		cfg.Credentials = credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, "")
	}

	clientOptions := []func(*dynamodb.Options){}
	if endpoint != "" {
		// Custom endpoint (e.g., for LocalStack or DynamoDB Local)
		clientOptions = append(clientOptions, func(o *dynamodb.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		})
	}

	driver := NewDynamoDBDriverWithClient(dynamodb.NewFromConfig(cfg, clientOptions...), tableName)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if createTable {
		if err := driver.EnsureTable(ctx); err != nil {
			return nil, err
		}
		return driver, nil
	}

	// Test connection by describing the table
	_, err = driver.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(tableName),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to DynamoDB table %s: %w", tableName, err)
	}
	return driver, nil
}

// NewDynamoDBDriverWithClient wraps an existing client.
func NewDynamoDBDriverWithClient(client DynamoDBAPI, tableName string) *DynamoDBDriver {
	return &DynamoDBDriver{
		client:    client,
		tableName: tableName,
	}
}

// EnsureTable creates the table with its sk-data-index projection when it does not exist.
func (d *DynamoDBDriver) EnsureTable(ctx context.Context) error {
	_, err := d.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(d.tableName)})
	if err == nil {
		return nil
	}
	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return fmt.Errorf("failed to describe table %s: %w", d.tableName, err)
	}

	log.Printf("[DYNAMODB] Creating table %s with index %s", d.tableName, ProjectionIndexName)
	_, err = d.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName:   aws.String(d.tableName),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("pk"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("sk"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("data"), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("pk"), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String("sk"), KeyType: types.KeyTypeRange},
		},
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{
			{
				IndexName: aws.String(ProjectionIndexName),
				KeySchema: []types.KeySchemaElement{
					{AttributeName: aws.String("sk"), KeyType: types.KeyTypeHash},
					{AttributeName: aws.String("data"), KeyType: types.KeyTypeRange},
				},
				Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create table %s: %w", d.tableName, err)
	}

	waiter := dynamodb.NewTableExistsWaiter(d.client)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(d.tableName)}, 2*time.Minute); err != nil {
		return fmt.Errorf("failed waiting for table %s: %w", d.tableName, err)
	}
	return nil
}

func stringKey(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk": &types.AttributeValueMemberS{Value: pk},
		"sk": &types.AttributeValueMemberS{Value: sk},
	}
}

// storageError wraps a DynamoDB failure, keeping the API error code in the message.
func storageError(op, target string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		log.Printf("[DYNAMODB] ERROR: %s %s failed with %s: %s", op, target, apiErr.ErrorCode(), apiErr.ErrorMessage())
		return fmt.Errorf("%w: failed to %s %s (%s): %v", core.ErrStorageFailure, op, target, apiErr.ErrorCode(), err)
	}
	log.Printf("[DYNAMODB] ERROR: %s %s failed: %v", op, target, err)
	return fmt.Errorf("%w: failed to %s %s: %v", core.ErrStorageFailure, op, target, err)
}

func decodeItem(item map[string]types.AttributeValue) (core.Row, error) {
	var decoded dynamoItem
	if err := attributevalue.UnmarshalMap(item, &decoded); err != nil {
		return core.Row{}, fmt.Errorf("%w: failed to decode item: %v", core.ErrEncoding, err)
	}
	return core.Row{PK: decoded.PK, SK: decoded.SK, Data: decoded.Data, Document: decoded.Document}, nil
}

// Get retrieves a row by its base table key.
func (d *DynamoDBDriver) Get(ctx context.Context, pk, sk string) (*core.Row, error) {
	if d.closed {
		return nil, fmt.Errorf("%w: DynamoDB driver is closed", core.ErrStorageFailure)
	}

	result, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.tableName),
		Key:       stringKey(pk, sk),
	})
	if err != nil {
		return nil, storageError("get", pk+"/"+sk, err)
	}
	if result.Item == nil {
		return nil, nil
	}

	row, err := decodeItem(result.Item)
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// Put stores a row, replacing any row with the same key.
func (d *DynamoDBDriver) Put(ctx context.Context, row core.Row) error {
	if d.closed {
		return fmt.Errorf("%w: DynamoDB driver is closed", core.ErrStorageFailure)
	}

	item, err := attributevalue.MarshalMap(dynamoItem{PK: row.PK, SK: row.SK, Data: row.Data, Document: row.Document})
	if err != nil {
		return fmt.Errorf("%w: failed to encode row %s: %v", core.ErrEncoding, row.PK, err)
	}

	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.tableName),
		Item:      item,
	})
	if err != nil {
		return storageError("put", row.PK+"/"+row.SK, err)
	}
	return nil
}

// Delete removes a row.
func (d *DynamoDBDriver) Delete(ctx context.Context, pk, sk string) error {
	if d.closed {
		return fmt.Errorf("%w: DynamoDB driver is closed", core.ErrStorageFailure)
	}

	_, err := d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(d.tableName),
		Key:       stringKey(pk, sk),
	})
	if err != nil {
		return storageError("delete", pk+"/"+sk, err)
	}
	return nil
}

// Scan queries the sk-data-index projection in descending sort order.
func (d *DynamoDBDriver) Scan(ctx context.Context, descriptor core.ScanDescriptor, limit int, exclusiveStart *core.Key) ([]core.Row, *core.Key, error) {
	if d.closed {
		return nil, nil, fmt.Errorf("%w: DynamoDB driver is closed", core.ErrStorageFailure)
	}

	input, err := d.queryInput(descriptor, limit, exclusiveStart)
	if err != nil {
		return nil, nil, err
	}

	result, err := d.client.Query(ctx, input)
	if err != nil {
		return nil, nil, storageError("query", descriptor.Partition, err)
	}

	rows := make([]core.Row, 0, len(result.Items))
	for _, item := range result.Items {
		row, err := decodeItem(item)
		if err != nil {
			return nil, nil, err
		}
		rows = append(rows, row)
	}

	var next *core.Key
	if len(result.LastEvaluatedKey) > 0 {
		var key dynamoItem
		if err := attributevalue.UnmarshalMap(result.LastEvaluatedKey, &key); err != nil {
			return nil, nil, fmt.Errorf("%w: failed to decode last evaluated key: %v", core.ErrEncoding, err)
		}
		next = &core.Key{PK: key.PK, SK: key.SK, Data: key.Data}
	}
	return rows, next, nil
}

func (d *DynamoDBDriver) queryInput(descriptor core.ScanDescriptor, limit int, exclusiveStart *core.Key) (*dynamodb.QueryInput, error) {
	names := map[string]string{"#sk": "sk"}
	values := map[string]types.AttributeValue{
		":sk": &types.AttributeValueMemberS{Value: descriptor.Partition},
	}
	condition := "#sk = :sk"

	comparison := ""
	switch descriptor.Op {
	case core.SortNone:
	case core.SortEq:
		comparison = "#data = :v"
	case core.SortGt:
		comparison = "#data > :v"
	case core.SortGte:
		comparison = "#data >= :v"
	case core.SortLt:
		comparison = "#data < :v"
	case core.SortLte:
		comparison = "#data <= :v"
	case core.SortBeginsWith:
		comparison = "begins_with(#data, :v)"
	case core.SortBetween:
		comparison = "#data BETWEEN :v AND :to"
		values[":to"] = &types.AttributeValueMemberS{Value: descriptor.OperandTo}
	default:
		return nil, fmt.Errorf("%w: unsupported sort operation %q", core.ErrInvalidQuery, descriptor.Op)
	}
	if comparison != "" {
		names["#data"] = "data"
		values[":v"] = &types.AttributeValueMemberS{Value: descriptor.Operand}
		condition += " AND " + comparison
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(d.tableName),
		IndexName:                 aws.String(ProjectionIndexName),
		KeyConditionExpression:    aws.String(condition),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ScanIndexForward:          aws.Bool(false),
	}
	if limit > 0 {
		input.Limit = aws.Int32(int32(limit))
	}
	if exclusiveStart != nil {
		input.ExclusiveStartKey = map[string]types.AttributeValue{
			"pk":   &types.AttributeValueMemberS{Value: exclusiveStart.PK},
			"sk":   &types.AttributeValueMemberS{Value: exclusiveStart.SK},
			"data": &types.AttributeValueMemberS{Value: exclusiveStart.Data},
		}
	}
	return input, nil
}

// AtomicIncrement adds delta to document.<field> with an ADD update. When the row does
// not exist yet it is seeded with a conditional put; a lost seeding race falls back to the update.
func (d *DynamoDBDriver) AtomicIncrement(ctx context.Context, key core.Key, field string, delta float64) (float64, error) {
	if d.closed {
		return 0, fmt.Errorf("%w: DynamoDB driver is closed", core.ErrStorageFailure)
	}

	value, err := d.addToExisting(ctx, key, field, delta)
	if err == nil {
		return value, nil
	}
	var conditionFailed *types.ConditionalCheckFailedException
	if !errors.As(err, &conditionFailed) {
		return 0, storageError("increment", key.PK, err)
	}

	item, err := attributevalue.MarshalMap(dynamoItem{
		PK:       key.PK,
		SK:       key.SK,
		Data:     key.Data,
		Document: map[string]interface{}{field: delta},
	})
	if err != nil {
		return 0, fmt.Errorf("%w: failed to encode counter %s: %v", core.ErrEncoding, key.PK, err)
	}
	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(d.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(pk)"),
	})
	if err == nil {
		return delta, nil
	}
	if !errors.As(err, &conditionFailed) {
		return 0, storageError("seed counter", key.PK, err)
	}

	log.Printf("[DYNAMODB] Counter %s seeded concurrently, retrying increment", key.PK)
	value, err = d.addToExisting(ctx, key, field, delta)
	if err != nil {
		return 0, storageError("increment", key.PK, err)
	}
	return value, nil
}

func (d *DynamoDBDriver) addToExisting(ctx context.Context, key core.Key, field string, delta float64) (float64, error) {
	result, err := d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                aws.String(d.tableName),
		Key:                      stringKey(key.PK, key.SK),
		UpdateExpression:         aws.String("ADD #doc.#f :d"),
		ConditionExpression:      aws.String("attribute_exists(pk)"),
		ExpressionAttributeNames: map[string]string{"#doc": "document", "#f": field},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":d": &types.AttributeValueMemberN{Value: strconv.FormatFloat(delta, 'f', -1, 64)},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, err
	}

	var updated struct {
		Document map[string]float64 `dynamodbav:"document"`
	}
	if err := attributevalue.UnmarshalMap(result.Attributes, &updated); err != nil {
		return 0, fmt.Errorf("failed to decode updated counter: %w", err)
	}
	return updated.Document[field], nil
}

// Close closes the driver.
func (d *DynamoDBDriver) Close() error {
	if d.closed {
		return nil
	}

	d.closed = true
	// DynamoDB client doesn't need explicit closing, but we mark it as closed
	return nil
}

// DynamoDBDriverFactory implements the DriverFactory interface for DynamoDB.
type DynamoDBDriverFactory struct{}

// Type returns the type identifier for this factory.
func (f *DynamoDBDriverFactory) Type() string {
	return "dynamodb"
}

// Validate validates the DynamoDB-specific configuration.
func (f *DynamoDBDriverFactory) Validate(config DriverConfig) error {
	if config.Type != "dynamodb" {
		return fmt.Errorf("invalid type for DynamoDB factory: %s", config.Type)
	}
	if config.Region == "" {
		return fmt.Errorf("region is required for DynamoDB")
	}
	if config.TableName == "" {
		return fmt.Errorf("table_name is required for DynamoDB")
	}
	return nil
}

// Create creates a new DynamoDB driver based on the provided configuration.
func (f *DynamoDBDriverFactory) Create(config DriverConfig) (core.StorageDriver, error) {
	driver, err := NewDynamoDBDriver(
		config.Region,
		config.TableName,
		config.Endpoint,
		config.AccessKeyID,
		config.SecretAccessKey,
		config.CreateTable,
		config.DialTimeout,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create DynamoDB driver: %w", err)
	}

	return driver, nil
}

// DynamoDBConfigValidator implements the ConfigValidator interface for DynamoDB.
type DynamoDBConfigValidator struct{}

// Type returns the type identifier for this validator.
func (v *DynamoDBConfigValidator) Type() string {
	return "dynamodb"
}

// Validate validates the DynamoDB-specific configuration in the internal config.
func (v *DynamoDBConfigValidator) Validate(config *registry.InternalConfig) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}

	storage := config.Storage
	if storage.Type != "dynamodb" {
		return fmt.Errorf("invalid type for DynamoDB validator: %s", storage.Type)
	}

	dynamoConfig := storage.DynamoDBConfig
	if dynamoConfig.Region == "" {
		return fmt.Errorf("region is required for DynamoDB")
	}
	if dynamoConfig.TableName == "" {
		return fmt.Errorf("table_name is required for DynamoDB")
	}

	if storage.DialTimeout <= 0 {
		return fmt.Errorf("dial_timeout must be greater than 0, got: %v", storage.DialTimeout)
	}
	if storage.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative, got: %d", storage.MaxRetries)
	}

	return nil
}

func init() {
	RegisterFactory(&DynamoDBDriverFactory{})
	registry.RegisterValidator(&DynamoDBConfigValidator{})
}

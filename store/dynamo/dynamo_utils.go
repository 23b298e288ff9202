package dynamo

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/nitish987/chatdrop/store"
)

func newDynamoDBClient(ctx context.Context, devMode bool, dynamodbEndpoint string) (*dynamodb.Client, error) {
	var cfg aws.Config
	var err error

	if devMode {
		// Load config with dummy credentials and region for local/dev
		cfg, err = config.LoadDefaultConfig(ctx,
			config.WithRegion("us-east-1"),
			config.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider("dummy", "dummy", ""),
			),
		)
		if err != nil {
			return nil, err
		}

		// Override endpoint for DynamoDB locally
		return dynamodb.New(dynamodb.Options{
			Credentials:      cfg.Credentials,
			Region:           cfg.Region,
			EndpointResolver: dynamodb.EndpointResolverFromURL(dynamodbEndpoint),
		}), nil
	}

	// Production/Fargate: default config (uses Task Role and AWS endpoints)
	cfg, err = config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}

	return dynamodb.NewFromConfig(cfg), nil
}

func getTables(client *dynamodb.Client, ctx context.Context) ([]string, error) {
	output, err := client.ListTables(ctx, &dynamodb.ListTablesInput{})
	if err != nil {
		return nil, err
	}

	return output.TableNames, nil
}

// getItem retrieves an item of type T from DynamoDB by PK and SK
func getItem[T any](dynamoStore *DynamoAccountStore, ctx context.Context, pk string, sk string, consistentRead bool) (T, error) {
	var zero T

	key := map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}

	resp, err := dynamoStore.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(dynamoStore.tableName),
		Key:            key,
		ConsistentRead: aws.Bool(consistentRead),
	})
	if err != nil {
		return zero, fmt.Errorf("GetItem failed: %w", err)
	}
	if resp.Item == nil {
		return zero, store.ErrItemNotFound
	}

	var item T
	if err := attributevalue.UnmarshalMap(resp.Item, &item); err != nil {
		return zero, fmt.Errorf("failed to unmarshal item: %w", err)
	}

	return item, nil
}

// putItem writes an item unconditionally (replace-or-create).
func putItem[T any](dynamoStore *DynamoAccountStore, ctx context.Context, item T) error {
	avMap, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}

	_, err = dynamoStore.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(dynamoStore.tableName),
		Item:      avMap,
	})
	if err != nil {
		return fmt.Errorf("failed to put item: %w", err)
	}
	return nil
}

// putItemIfAbsent inserts only when no item with the same PK exists.
// Returns ErrConditionFailed when the key is already taken.
func putItemIfAbsent[T any](dynamoStore *DynamoAccountStore, ctx context.Context, item T) error {
	avMap, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}
	if _, ok := avMap["PK"]; !ok {
		return errors.New("struct missing PK field")
	}

	_, err = dynamoStore.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(dynamoStore.tableName),
		Item:                avMap,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		var cce *types.ConditionalCheckFailedException
		if errors.As(err, &cce) {
			return store.ErrConditionFailed
		}
		return fmt.Errorf("failed to put item: %w", err)
	}
	return nil
}

// queryAllByPK returns all items of type T with the given PK, ordered by SK.
func queryAllByPK[T any](dynamoStore *DynamoAccountStore, ctx context.Context, pk string, consistentRead bool) ([]T, error) {
	var results []T

	input := &dynamodb.QueryInput{
		TableName:              aws.String(dynamoStore.tableName),
		KeyConditionExpression: aws.String("PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: pk},
		},
		ConsistentRead: aws.Bool(consistentRead),
	}

	paginator := dynamodb.NewQueryPaginator(dynamoStore.client, input)

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("query failed: %w", err)
		}

		var pageItems []T
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &pageItems); err != nil {
			return nil, fmt.Errorf("failed to unmarshal page items: %w", err)
		}

		results = append(results, pageItems...)
	}

	return results, nil
}

// deleteItem removes an item by key. Idempotent: deleting an absent item is
// not an error.
func deleteItem(dynamoStore *DynamoAccountStore, ctx context.Context, pk string, sk string) error {
	key := map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}

	_, err := dynamoStore.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(dynamoStore.tableName),
		Key:       key,
	})
	if err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}
	return nil
}

// updateItemFields updates listed fields of an existing item, failing with
// ErrItemNotFound when the item is absent.
func updateItemFields(dynamoStore *DynamoAccountStore, ctx context.Context, pk string, sk string, fields map[string]types.AttributeValue) error {
	updateExpr := "SET "
	exprAttrNames := make(map[string]string)
	exprAttrValues := make(map[string]types.AttributeValue)
	first := true

	for field, val := range fields {
		if !first {
			updateExpr += ", "
		}
		first = false
		updateExpr += fmt.Sprintf("#%s = :%s", field, field)
		exprAttrNames["#"+field] = field
		exprAttrValues[":"+field] = val
	}

	key := map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}

	_, err := dynamoStore.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(dynamoStore.tableName),
		Key:                       key,
		UpdateExpression:          aws.String(updateExpr),
		ExpressionAttributeNames:  exprAttrNames,
		ExpressionAttributeValues: exprAttrValues,
		ConditionExpression:       aws.String("attribute_exists(PK) AND attribute_exists(SK)"),
	})
	if err != nil {
		var cce *types.ConditionalCheckFailedException
		if errors.As(err, &cce) {
			return store.ErrItemNotFound
		}
		return fmt.Errorf("update failed: %w", err)
	}
	return nil
}

package dynamo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/nitish987/chatdrop/models"
	"github.com/nitish987/chatdrop/store"
)

type DynamoAccountStore struct {
	client    *dynamodb.Client
	tableName string
}

func NewDynamoAccountStore(ctx context.Context, devMode bool, dynamodbEndpoint string, tableName string) (*DynamoAccountStore, error) {
	client, err := newDynamoDBClient(context.Background(), devMode, dynamodbEndpoint)
	if err != nil {
		return nil, err
	}

	tables, err := getTables(client, ctx)
	if err != nil {
		return nil, err
	}

	foundTable := false
	for _, table := range tables {
		if table == tableName {
			foundTable = true
			break
		}
	}
	if !foundTable {
		return nil, fmt.Errorf("given table name '%s' not found in dynamodb", tableName)
	}

	return &DynamoAccountStore{client: client, tableName: tableName}, nil
}

func (dynamoStore *DynamoAccountStore) CreateAccount(ctx context.Context, account models.Account) (models.Account, error) {
	account.Created = time.Now().Unix()

	// The email ref doubles as the uniqueness guard: the conditional put
	// fails if another signup claimed the address first.
	emailRef := dynamoEmailRef{PK: emailPK(account.Email), SK: "ACCOUNT", Uid: account.Uid}
	if err := putItemIfAbsent(dynamoStore, ctx, emailRef); err != nil {
		if errors.Is(err, store.ErrConditionFailed) {
			return models.Account{}, store.ErrEmailTaken
		}
		return models.Account{}, err
	}

	if err := putItem(dynamoStore, ctx, accountToDynamo(account)); err != nil {
		return models.Account{}, err
	}

	// Advisory handle lookup; last writer wins
	usernameRef := dynamoUsernameRef{PK: usernamePK(account.Username), SK: "ACCOUNT", Uid: account.Uid}
	if err := putItem(dynamoStore, ctx, usernameRef); err != nil {
		return models.Account{}, err
	}

	return account, nil
}

func (dynamoStore *DynamoAccountStore) GetAccount(ctx context.Context, uid string) (models.Account, error) {
	da, err := getItem[dynamoAccount](dynamoStore, ctx, accountPK(uid), "PROFILE", false)
	if err != nil {
		return models.Account{}, err
	}
	return accountFromDynamo(da), nil
}

func (dynamoStore *DynamoAccountStore) GetAccountByEmail(ctx context.Context, email string) (models.Account, error) {
	ref, err := getItem[dynamoEmailRef](dynamoStore, ctx, emailPK(email), "ACCOUNT", false)
	if err != nil {
		return models.Account{}, err
	}
	return dynamoStore.GetAccount(ctx, ref.Uid)
}

func (dynamoStore *DynamoAccountStore) GetAccountByUsername(ctx context.Context, username string) (models.Account, error) {
	ref, err := getItem[dynamoUsernameRef](dynamoStore, ctx, usernamePK(username), "ACCOUNT", false)
	if err != nil {
		return models.Account{}, err
	}
	return dynamoStore.GetAccount(ctx, ref.Uid)
}

func (dynamoStore *DynamoAccountStore) SaveAccount(ctx context.Context, account models.Account) error {
	return putItem(dynamoStore, ctx, accountToDynamo(account))
}

func (dynamoStore *DynamoAccountStore) UpdatePushToken(ctx context.Context, uid string, pushToken string) error {
	return updateItemFields(dynamoStore, ctx, accountPK(uid), "PROFILE", map[string]types.AttributeValue{
		"PushToken": &types.AttributeValueMemberS{Value: pushToken},
	})
}

func (dynamoStore *DynamoAccountStore) UpdatePassword(ctx context.Context, uid string, passwordHash string) error {
	return updateItemFields(dynamoStore, ctx, accountPK(uid), "PROFILE", map[string]types.AttributeValue{
		"PasswordHash": &types.AttributeValueMemberS{Value: passwordHash},
	})
}

func (dynamoStore *DynamoAccountStore) DeleteAccount(ctx context.Context, uid string, email string) error {
	account, err := dynamoStore.GetAccount(ctx, uid)
	if err == nil && account.Username != "" {
		if err := deleteItem(dynamoStore, ctx, usernamePK(account.Username), "ACCOUNT"); err != nil {
			return err
		}
	} else if err != nil && !errors.Is(err, store.ErrItemNotFound) {
		return err
	}

	if err := deleteItem(dynamoStore, ctx, accountPK(uid), "PROFILE"); err != nil {
		return err
	}
	if err := deleteItem(dynamoStore, ctx, accountPK(uid), "BUNDLE"); err != nil {
		return err
	}
	if err := deleteItem(dynamoStore, ctx, emailPK(email), "ACCOUNT"); err != nil {
		return err
	}

	sessions, err := dynamoStore.ListDeviceSessions(ctx, uid)
	if err != nil {
		return err
	}
	for _, s := range sessions {
		if err := deleteItem(dynamoStore, ctx, sessionPK(uid), s.Token); err != nil {
			return err
		}
	}
	return deleteItem(dynamoStore, ctx, accountPK(uid), "SESSIONS")
}

func (dynamoStore *DynamoAccountStore) UpsertPreKeyBundle(ctx context.Context, bundle models.PreKeyBundle) error {
	// Replace wholesale; the version restarts with the new bundle
	db := bundleToDynamo(bundle)
	db.Version = 1
	return putItem(dynamoStore, ctx, db)
}

// consumeRetries bounds the optimistic-locking loop under contention.
const consumeRetries = 8

func (dynamoStore *DynamoAccountStore) ConsumeOnePreKey(ctx context.Context, uid string) (models.ConsumedBundle, error) {
	for attempt := 0; attempt < consumeRetries; attempt++ {
		db, err := getItem[dynamoBundle](dynamoStore, ctx, accountPK(uid), "BUNDLE", true)
		if err != nil {
			return models.ConsumedBundle{}, err
		}
		if len(db.PreKeys) == 0 {
			return models.ConsumedBundle{}, store.ErrNoPreKeys
		}

		// Pick policy: last element; order among one-time prekeys carries
		// no meaning
		picked := db.PreKeys[len(db.PreKeys)-1]
		remaining := db.PreKeys[:len(db.PreKeys)-1]

		remainingAv, err := attributevalue.Marshal(remaining)
		if err != nil {
			return models.ConsumedBundle{}, fmt.Errorf("marshal error: %w", err)
		}

		// Conditional on the version we read: a concurrent consumer bumps
		// it first and we retry, so no prekey is ever issued twice.
		_, err = dynamoStore.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName: aws.String(dynamoStore.tableName),
			Key: map[string]types.AttributeValue{
				"PK": &types.AttributeValueMemberS{Value: accountPK(uid)},
				"SK": &types.AttributeValueMemberS{Value: "BUNDLE"},
			},
			UpdateExpression:    aws.String("SET PreKeys = :prekeys, Version = Version + :one"),
			ConditionExpression: aws.String("Version = :version"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":prekeys": remainingAv,
				":one":     &types.AttributeValueMemberN{Value: "1"},
				":version": &types.AttributeValueMemberN{Value: strconv.FormatInt(db.Version, 10)},
			},
		})
		if err != nil {
			var cce *types.ConditionalCheckFailedException
			if errors.As(err, &cce) {
				continue // lost the race, re-read and retry
			}
			return models.ConsumedBundle{}, fmt.Errorf("consume prekey failed: %w", err)
		}

		return models.ConsumedBundle{
			RegId:    db.RegId,
			DeviceId: db.DeviceId,
			PreKey:   models.PreKey{Id: picked.Id, Key: picked.Key},
			SignedPreKey: models.SignedPreKey{
				Id:   db.SignedPreKeyId,
				Key:  db.SignedPreKey,
				Sign: db.SignedPreKeySig,
			},
			IdentityKey: db.IdentityKey,
			Remaining:   len(remaining),
		}, nil
	}

	return models.ConsumedBundle{}, fmt.Errorf("consume prekey: %w", store.ErrConditionFailed)
}

func (dynamoStore *DynamoAccountStore) DeletePreKeyBundle(ctx context.Context, uid string) error {
	return deleteItem(dynamoStore, ctx, accountPK(uid), "BUNDLE")
}

// sessionRetries bounds the admit/evict loop under contention, like
// consumeRetries does for prekeys.
const sessionRetries = 8

// CreateDeviceSession admits a browser session without ever exceeding the
// per-account cap. Admission is serialized through a per-account counter
// item: the counted insert and the session row commit in one transaction,
// so two concurrent logins cannot both slip in under the cap. When the
// counter is full, the oldest rows are evicted down to cap-1 in the same
// transaction as the insert, which also walks an over-populated account
// back to the cap.
func (dynamoStore *DynamoAccountStore) CreateDeviceSession(ctx context.Context, session models.DeviceSession) error {
	avMap, err := attributevalue.MarshalMap(sessionToDynamo(session))
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}

	counterKey := map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: accountPK(session.AccountUid)},
		"SK": &types.AttributeValueMemberS{Value: "SESSIONS"},
	}
	capN := strconv.Itoa(store.MaxDeviceSessions)

	for attempt := 0; attempt < sessionRetries; attempt++ {
		_, err = dynamoStore.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
			TransactItems: []types.TransactWriteItem{
				{
					Update: &types.Update{
						TableName:           aws.String(dynamoStore.tableName),
						Key:                 counterKey,
						UpdateExpression:    aws.String("SET SessionCount = if_not_exists(SessionCount, :zero) + :one"),
						ConditionExpression: aws.String("attribute_not_exists(SessionCount) OR SessionCount < :cap"),
						ExpressionAttributeValues: map[string]types.AttributeValue{
							":zero": &types.AttributeValueMemberN{Value: "0"},
							":one":  &types.AttributeValueMemberN{Value: "1"},
							":cap":  &types.AttributeValueMemberN{Value: capN},
						},
					},
				},
				{
					Put: &types.Put{
						TableName: aws.String(dynamoStore.tableName),
						Item:      avMap,
					},
				},
			},
		})
		if err == nil {
			return nil
		}
		var tce *types.TransactionCanceledException
		if !errors.As(err, &tce) {
			return fmt.Errorf("failed to create session: %w", err)
		}

		// Counter is full. Read the rows with a consistent query, then evict
		// the oldest down to cap-1 and insert, all in one transaction. The
		// delete conditions cancel the transaction if a concurrent login
		// already evicted one of the same rows, in which case we re-read.
		sessions, err := dynamoStore.listSessions(ctx, session.AccountUid, true)
		if err != nil {
			return err
		}

		evictCount := len(sessions) - store.MaxDeviceSessions + 1
		if evictCount < 1 {
			evictCount = 1
		}
		if evictCount > len(sessions) {
			// Counter says full but fewer rows exist; the count write below
			// resyncs it to the real row count
			evictCount = len(sessions)
		}

		items := make([]types.TransactWriteItem, 0, evictCount+2)
		for _, old := range sessions[:evictCount] {
			items = append(items, types.TransactWriteItem{
				Delete: &types.Delete{
					TableName: aws.String(dynamoStore.tableName),
					Key: map[string]types.AttributeValue{
						"PK": &types.AttributeValueMemberS{Value: sessionPK(session.AccountUid)},
						"SK": &types.AttributeValueMemberS{Value: old.Token},
					},
					ConditionExpression: aws.String("attribute_exists(PK)"),
				},
			})
		}
		rowsAfter := len(sessions) - evictCount + 1
		items = append(items,
			types.TransactWriteItem{
				Update: &types.Update{
					TableName:        aws.String(dynamoStore.tableName),
					Key:              counterKey,
					UpdateExpression: aws.String("SET SessionCount = :count"),
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":count": &types.AttributeValueMemberN{Value: strconv.Itoa(rowsAfter)},
					},
				},
			},
			types.TransactWriteItem{
				Put: &types.Put{
					TableName: aws.String(dynamoStore.tableName),
					Item:      avMap,
				},
			},
		)

		_, err = dynamoStore.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
		if err == nil {
			return nil
		}
		if errors.As(err, &tce) {
			continue // lost the eviction race, re-read and retry
		}
		return fmt.Errorf("failed to create session: %w", err)
	}

	return fmt.Errorf("create device session: %w", store.ErrConditionFailed)
}

func (dynamoStore *DynamoAccountStore) GetDeviceSession(ctx context.Context, uid string, token string) (models.DeviceSession, error) {
	ds, err := getItem[dynamoSession](dynamoStore, ctx, sessionPK(uid), token, false)
	if err != nil {
		return models.DeviceSession{}, err
	}
	return sessionFromDynamo(ds), nil
}

// ListDeviceSessions returns the account's sessions ordered oldest first.
func (dynamoStore *DynamoAccountStore) ListDeviceSessions(ctx context.Context, uid string) ([]models.DeviceSession, error) {
	return dynamoStore.listSessions(ctx, uid, false)
}

func (dynamoStore *DynamoAccountStore) listSessions(ctx context.Context, uid string, consistent bool) ([]models.DeviceSession, error) {
	dynamoSessions, err := queryAllByPK[dynamoSession](dynamoStore, ctx, sessionPK(uid), consistent)
	if err != nil {
		return nil, err
	}

	sessions := make([]models.DeviceSession, 0, len(dynamoSessions))
	for _, ds := range dynamoSessions {
		sessions = append(sessions, sessionFromDynamo(ds))
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].Created < sessions[j].Created
	})
	return sessions, nil
}

// DeleteDeviceSession drops a session row and its slot in the admission
// counter together, so the counter keeps tracking the row count. Deleting
// an absent session is a no-op.
func (dynamoStore *DynamoAccountStore) DeleteDeviceSession(ctx context.Context, uid string, token string) error {
	_, err := dynamoStore.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Delete: &types.Delete{
					TableName: aws.String(dynamoStore.tableName),
					Key: map[string]types.AttributeValue{
						"PK": &types.AttributeValueMemberS{Value: sessionPK(uid)},
						"SK": &types.AttributeValueMemberS{Value: token},
					},
					ConditionExpression: aws.String("attribute_exists(PK)"),
				},
			},
			{
				Update: &types.Update{
					TableName: aws.String(dynamoStore.tableName),
					Key: map[string]types.AttributeValue{
						"PK": &types.AttributeValueMemberS{Value: accountPK(uid)},
						"SK": &types.AttributeValueMemberS{Value: "SESSIONS"},
					},
					UpdateExpression:    aws.String("SET SessionCount = SessionCount - :one"),
					ConditionExpression: aws.String("SessionCount > :zero"),
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":one":  &types.AttributeValueMemberN{Value: "1"},
						":zero": &types.AttributeValueMemberN{Value: "0"},
					},
				},
			},
		},
	})
	if err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) {
			// Either the row is already gone or the counter is out of step
			// with the rows. Drop the row alone; a stale-high counter only
			// makes eviction kick in early, never past the cap.
			return deleteItem(dynamoStore, ctx, sessionPK(uid), token)
		}
		return fmt.Errorf("delete session failed: %w", err)
	}
	return nil
}

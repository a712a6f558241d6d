package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/weather-notify/internal/domain"
	"github.com/weather-notify/internal/pkg/id"
)

const keyEmail = domain.FieldEmail

// tableAPI is the subset of *dynamodb.Client the repository calls.
type tableAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// SubscriberRepo provides typed DynamoDB operations for the subscribers table.
// PK: email.
type SubscriberRepo struct {
	client    tableAPI
	tableName string
}

func NewSubscriberRepo(client tableAPI, tableName string) *SubscriberRepo {
	return &SubscriberRepo{client: client, tableName: tableName}
}

// Create writes a new record and fails with ErrConflict if the email is taken.
func (r *SubscriberRepo) Create(ctx context.Context, s *domain.Subscriber) error {
	item, err := attributevalue.MarshalMap(s)
	if err != nil {
		return fmt.Errorf("marshal subscriber: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(r.tableName),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#e)"),
		ExpressionAttributeNames: map[string]string{"#e": keyEmail},
	})
	if isConditionFailed(err) {
		return fmt.Errorf("subscriber %s already exists: %w", s.Email, domain.ErrConflict)
	}
	return err
}

func (r *SubscriberRepo) Get(ctx context.Context, email string) (*domain.Subscriber, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(keyEmail, email),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("subscriber not found: %w", domain.ErrNotFound)
	}
	var s domain.Subscriber
	if err := attributevalue.UnmarshalMap(out.Item, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Update applies a partial SET to an existing record. Missing records yield ErrNotFound
// instead of being created implicitly.
func (r *SubscriberRepo) Update(ctx context.Context, email string, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return errors.New("no fields to update")
	}
	fields := make(map[string]interface{}, len(updates)+1)
	for k, v := range updates {
		fields[k] = v
	}
	fields[domain.FieldUpdatedAt] = time.Now().UTC()
	ue, err := buildUpdateExpr(fields)
	if err != nil {
		return err
	}
	ue.Names["#pk"] = keyEmail
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(keyEmail, email),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_exists(#pk)"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	if isConditionFailed(err) {
		return fmt.Errorf("subscriber not found: %w", domain.ErrNotFound)
	}
	return err
}

// UpsertOTP stores a code hash and its expiry, creating a bare unverified record
// when the email is unknown. Existing fields other than the OTP pair are untouched.
func (r *SubscriberRepo) UpsertOTP(ctx context.Context, email, otpHash string, expiresAt time.Time) error {
	now := time.Now().UTC()
	values, err := attributevalue.MarshalMap(map[string]interface{}{
		":otp":   otpHash,
		":exp":   expiresAt.UTC(),
		":now":   now,
		":id":    id.New(),
		":false": false,
	})
	if err != nil {
		return fmt.Errorf("marshal otp: %w", err)
	}
	values[":empty"] = &types.AttributeValueMemberL{Value: []types.AttributeValue{}}

	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey(keyEmail, email),
		UpdateExpression: aws.String("SET #otp = :otp, #exp = :exp, #upd = :now, " +
			"#crt = if_not_exists(#crt, :now), #sid = if_not_exists(#sid, :id), " +
			"#ver = if_not_exists(#ver, :false), #wd = if_not_exists(#wd, :empty)"),
		ExpressionAttributeNames: map[string]string{
			"#otp": domain.FieldOTP,
			"#exp": domain.FieldOTPExpiresAt,
			"#upd": domain.FieldUpdatedAt,
			"#crt": domain.FieldCreatedAt,
			"#sid": domain.FieldSubscriberID,
			"#ver": domain.FieldVerified,
			"#wd":  domain.FieldWeatherSnapshots,
		},
		ExpressionAttributeValues: values,
	})
	return err
}

// AppendSnapshot adds snap to the end of the record's snapshot list.
func (r *SubscriberRepo) AppendSnapshot(ctx context.Context, email string, snap domain.WeatherSnapshot) error {
	entry, err := attributevalue.Marshal([]domain.WeatherSnapshot{snap})
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	now, err := attributevalue.Marshal(time.Now().UTC())
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 strKey(keyEmail, email),
		UpdateExpression:    aws.String("SET #wd = list_append(if_not_exists(#wd, :empty), :snap), #upd = :now"),
		ConditionExpression: aws.String("attribute_exists(#pk)"),
		ExpressionAttributeNames: map[string]string{
			"#wd":  domain.FieldWeatherSnapshots,
			"#upd": domain.FieldUpdatedAt,
			"#pk":  keyEmail,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":snap":  entry,
			":empty": &types.AttributeValueMemberL{Value: []types.AttributeValue{}},
			":now":   now,
		},
	})
	if isConditionFailed(err) {
		return fmt.Errorf("subscriber not found: %w", domain.ErrNotFound)
	}
	return err
}

// Delete removes the record permanently. Deleting a missing email is not an error.
func (r *SubscriberRepo) Delete(ctx context.Context, email string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey(keyEmail, email),
	})
	return err
}

// Scan returns every record in the table, following pagination to the end.
func (r *SubscriberRepo) Scan(ctx context.Context) ([]domain.Subscriber, error) {
	var subs []domain.Subscriber
	p := dynamodb.NewScanPaginator(r.client, &dynamodb.ScanInput{
		TableName: aws.String(r.tableName),
	})
	for p.HasMorePages() {
		out, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		var page []domain.Subscriber
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, err
		}
		subs = append(subs, page...)
	}
	return subs, nil
}

// Ping checks that the table is reachable.
func (r *SubscriberRepo) Ping(ctx context.Context) error {
	_, err := r.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(r.tableName),
	})
	return err
}

package dynamo

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weather-notify/internal/domain"
)

// fakeTable records the last request of each kind and returns canned results.
type fakeTable struct {
	put      *dynamodb.PutItemInput
	update   *dynamodb.UpdateItemInput
	item     map[string]types.AttributeValue
	pages    [][]map[string]types.AttributeValue
	scans    int
	err      error
	describe error
}

func (f *fakeTable) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.put = in
	return &dynamodb.PutItemOutput{}, f.err
}
func (f *fakeTable) GetItem(_ context.Context, _ *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return &dynamodb.GetItemOutput{Item: f.item}, f.err
}
func (f *fakeTable) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.update = in
	return &dynamodb.UpdateItemOutput{}, f.err
}
func (f *fakeTable) DeleteItem(_ context.Context, _ *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	return &dynamodb.DeleteItemOutput{}, f.err
}
func (f *fakeTable) Scan(_ context.Context, _ *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	out := &dynamodb.ScanOutput{Items: f.pages[f.scans]}
	f.scans++
	if f.scans < len(f.pages) {
		out.LastEvaluatedKey = strKey(keyEmail, "cursor")
	}
	return out, nil
}
func (f *fakeTable) DescribeTable(_ context.Context, _ *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	return &dynamodb.DescribeTableOutput{}, f.describe
}

func marshalSub(t *testing.T, s domain.Subscriber) map[string]types.AttributeValue {
	t.Helper()
	item, err := attributevalue.MarshalMap(s)
	require.NoError(t, err)
	return item
}

func TestCreate_Conflict(t *testing.T) {
	f := &fakeTable{err: &types.ConditionalCheckFailedException{Message: aws.String("exists")}}
	repo := NewSubscriberRepo(f, "subscribers")

	err := repo.Create(context.Background(), &domain.Subscriber{Email: "a@x.com"})
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, "attribute_not_exists(#e)", aws.ToString(f.put.ConditionExpression))
}

func TestCreate_OmitsEmptyOTP(t *testing.T) {
	f := &fakeTable{}
	repo := NewSubscriberRepo(f, "subscribers")

	require.NoError(t, repo.Create(context.Background(), &domain.Subscriber{Email: "a@x.com", Location: "Colombo"}))
	assert.NotContains(t, f.put.Item, domain.FieldOTP)
	assert.NotContains(t, f.put.Item, domain.FieldOTPExpiresAt)
	assert.Contains(t, f.put.Item, domain.FieldVerified)
}

func TestGet_RoundTrip(t *testing.T) {
	exp := time.Date(2026, 3, 1, 12, 10, 0, 0, time.UTC)
	f := &fakeTable{item: marshalSub(t, domain.Subscriber{
		Email:            "a@x.com",
		Location:         "Colombo",
		OTPHash:          "hash",
		OTPExpiresAt:     &exp,
		Verified:         true,
		WeatherSnapshots: []domain.WeatherSnapshot{{Date: "2026-03-01", Weather: "clear"}},
	})}
	repo := NewSubscriberRepo(f, "subscribers")

	sub, err := repo.Get(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "hash", sub.OTPHash)
	require.NotNil(t, sub.OTPExpiresAt)
	assert.True(t, exp.Equal(*sub.OTPExpiresAt))
	assert.Equal(t, "clear", sub.SnapshotFor("2026-03-01").Weather)
}

func TestGet_NotFound(t *testing.T) {
	repo := NewSubscriberRepo(&fakeTable{}, "subscribers")
	_, err := repo.Get(context.Background(), "b@x.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdate_ConditionalOnExistence(t *testing.T) {
	f := &fakeTable{}
	repo := NewSubscriberRepo(f, "subscribers")

	require.NoError(t, repo.Update(context.Background(), "a@x.com", map[string]interface{}{domain.FieldLocation: "Galle"}))
	assert.Equal(t, "attribute_exists(#pk)", aws.ToString(f.update.ConditionExpression))
	assert.Equal(t, keyEmail, f.update.ExpressionAttributeNames["#pk"])

	var names []string
	for k, v := range f.update.ExpressionAttributeNames {
		if strings.HasPrefix(k, "#f") {
			names = append(names, v)
		}
	}
	assert.ElementsMatch(t, []string{domain.FieldLocation, domain.FieldUpdatedAt}, names)
}

func TestUpdate_Missing(t *testing.T) {
	f := &fakeTable{err: &types.ConditionalCheckFailedException{}}
	repo := NewSubscriberRepo(f, "subscribers")

	err := repo.Update(context.Background(), "b@x.com", map[string]interface{}{domain.FieldLocation: "Galle"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdate_NoFields(t *testing.T) {
	f := &fakeTable{}
	repo := NewSubscriberRepo(f, "subscribers")

	assert.Error(t, repo.Update(context.Background(), "a@x.com", nil))
	assert.Nil(t, f.update)
}

func TestUpsertOTP_Expression(t *testing.T) {
	f := &fakeTable{}
	repo := NewSubscriberRepo(f, "subscribers")

	require.NoError(t, repo.UpsertOTP(context.Background(), "a@x.com", "hash", time.Now().Add(10*time.Minute)))
	expr := aws.ToString(f.update.UpdateExpression)
	assert.Contains(t, expr, "#otp = :otp")
	assert.Contains(t, expr, "#ver = if_not_exists(#ver, :false)")
	assert.Nil(t, f.update.ConditionExpression, "OTP issue upserts")
	assert.IsType(t, &types.AttributeValueMemberL{}, f.update.ExpressionAttributeValues[":empty"])
}

func TestAppendSnapshot_Missing(t *testing.T) {
	f := &fakeTable{err: &types.ConditionalCheckFailedException{}}
	repo := NewSubscriberRepo(f, "subscribers")

	err := repo.AppendSnapshot(context.Background(), "b@x.com", domain.WeatherSnapshot{Date: "2026-03-01", Weather: "clear"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestScan_FollowsPages(t *testing.T) {
	f := &fakeTable{pages: [][]map[string]types.AttributeValue{
		{marshalSub(t, domain.Subscriber{Email: "a@x.com"}), marshalSub(t, domain.Subscriber{Email: "b@x.com"})},
		{marshalSub(t, domain.Subscriber{Email: "c@x.com", Verified: true})},
	}}
	repo := NewSubscriberRepo(f, "subscribers")

	subs, err := repo.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, subs, 3)
	assert.Equal(t, 2, f.scans)
	assert.True(t, subs[2].Verified)
}

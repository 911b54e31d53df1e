package infra

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/pyama86/moodcheck/config"
	"github.com/pyama86/moodcheck/domain/model"
)

const (
	userRecordedIndex = "UserRecordedIndex"
	teamRecordedIndex = "TeamRecordedIndex"
)

type DynamoDB struct {
	db        *dynamodb.Client
	tableName string
	loc       *time.Location
}

func NewDynamoDB(cfg config.DatabaseConfig, loc *time.Location) (*DynamoDB, error) {
	var db *dynamodb.Client
	if cfg.DynamoLocal != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(context.TODO(),
			awsconfig.WithRegion("dummy"),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("dummy", "dummy", "dummy")),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %v", err)
		}

		db = dynamodb.NewFromConfig(awsCfg,
			func(o *dynamodb.Options) {
				o.BaseEndpoint = aws.String(cfg.DynamoLocal)
			},
		)
	} else {
		awsCfg, err := awsconfig.LoadDefaultConfig(context.TODO())
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %v", err)
		}

		db = dynamodb.NewFromConfig(awsCfg)
	}
	if loc == nil {
		loc = time.UTC
	}
	d := &DynamoDB{
		db:        db,
		tableName: cfg.DynamoTableName,
		loc:       loc,
	}
	if cfg.DynamoLocal != "" {
		if err := d.EnsureTable(); err != nil {
			return nil, err
		}
	}
	return d, nil
}

const (
	waitInterval = 2 * time.Second // ポーリング間隔
	maxRetries   = 30              // 最大リトライ回数 (30回 = 約1分)
)

func (d *DynamoDB) EnsureTable() error {
	_, err := d.db.DescribeTable(context.TODO(), &dynamodb.DescribeTableInput{
		TableName: aws.String(d.tableName),
	})
	if err == nil {
		// テーブルが既に存在する
		return nil
	}

	if err := d.createTable(); err != nil {
		return err
	}

	// テーブルがACTIVEになるまで待機
	for i := 0; i < maxRetries; i++ {
		out, err := d.db.DescribeTable(context.TODO(), &dynamodb.DescribeTableInput{
			TableName: aws.String(d.tableName),
		})
		if err != nil {
			return fmt.Errorf("failed to describe table %s: %v", d.tableName, err)
		}

		if out.Table.TableStatus == types.TableStatusActive {
			return nil
		}
		time.Sleep(waitInterval)
	}

	return fmt.Errorf("table %s creation timed out", d.tableName)
}

func (d *DynamoDB) createTable() error {
	throughput := &types.ProvisionedThroughput{
		ReadCapacityUnits:  aws.Int64(5),
		WriteCapacityUnits: aws.Int64(5),
	}
	input := &dynamodb.CreateTableInput{
		TableName: aws.String(d.tableName),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("dedup_key"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("user_id"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("team_id"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("recorded_at"), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("dedup_key"), KeyType: types.KeyTypeHash},
		},
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{
			{
				IndexName: aws.String(userRecordedIndex),
				KeySchema: []types.KeySchemaElement{
					{AttributeName: aws.String("user_id"), KeyType: types.KeyTypeHash},
					{AttributeName: aws.String("recorded_at"), KeyType: types.KeyTypeRange},
				},
				Projection:            &types.Projection{ProjectionType: types.ProjectionTypeAll},
				ProvisionedThroughput: throughput,
			},
			{
				// team_id を持たない記録はこのインデックスに載らない
				IndexName: aws.String(teamRecordedIndex),
				KeySchema: []types.KeySchemaElement{
					{AttributeName: aws.String("team_id"), KeyType: types.KeyTypeHash},
					{AttributeName: aws.String("recorded_at"), KeyType: types.KeyTypeRange},
				},
				Projection:            &types.Projection{ProjectionType: types.ProjectionTypeAll},
				ProvisionedThroughput: throughput,
			},
		},
		ProvisionedThroughput: throughput,
	}

	if _, err := d.db.CreateTable(context.TODO(), input); err != nil {
		return fmt.Errorf("failed to create table %s: %v", d.tableName, err)
	}
	return nil
}

func (d *DynamoDB) SaveMoodEntry(entry *model.MoodEntry) error {
	if entry.DedupKey == "" {
		// ハッシュキーなので空にはできない
		entry.DedupKey = entry.ID
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	input := &dynamodb.PutItemInput{
		TableName:           aws.String(d.tableName),
		Item:                marshalMoodEntry(entry),
		ConditionExpression: aws.String("attribute_not_exists(dedup_key)"),
	}

	_, err := d.db.PutItem(context.TODO(), input)
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return ErrDuplicateEntry
	}
	return err
}

func marshalMoodEntry(e *model.MoodEntry) map[string]types.AttributeValue {
	item := map[string]types.AttributeValue{
		"dedup_key":   &types.AttributeValueMemberS{Value: e.DedupKey},
		"id":          &types.AttributeValueMemberS{Value: e.ID},
		"user_id":     &types.AttributeValueMemberS{Value: e.UserID},
		"score":       &types.AttributeValueMemberN{Value: strconv.Itoa(e.Score)},
		"emoji":       &types.AttributeValueMemberS{Value: e.Emoji},
		"recorded_at": &types.AttributeValueMemberS{Value: e.RecordedAt.UTC().Format(time.RFC3339Nano)},
		"recorded_on": &types.AttributeValueMemberS{Value: e.RecordedOn},
		"created_at":  &types.AttributeValueMemberS{Value: e.CreatedAt.UTC().Format(time.RFC3339Nano)},
	}
	// 任意項目は値があるときだけ書く(GSI のキーは空文字を許さない)
	if e.UserName != nil {
		item["user_name"] = &types.AttributeValueMemberS{Value: *e.UserName}
	}
	if e.Comment != nil {
		item["comment"] = &types.AttributeValueMemberS{Value: *e.Comment}
	}
	if e.TeamID != nil && *e.TeamID != "" {
		item["team_id"] = &types.AttributeValueMemberS{Value: *e.TeamID}
	}
	return item
}

func unmarshalMoodEntry(item map[string]types.AttributeValue) (model.MoodEntry, error) {
	score, err := getNumberValue(item, "score")
	if err != nil {
		return model.MoodEntry{}, err
	}
	recordedAt, err := time.Parse(time.RFC3339Nano, getStringValue(item, "recorded_at"))
	if err != nil {
		return model.MoodEntry{}, fmt.Errorf("failed to parse recorded_at: %v", err)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, getStringValue(item, "created_at"))
	if err != nil {
		return model.MoodEntry{}, fmt.Errorf("failed to parse created_at: %v", err)
	}
	return model.MoodEntry{
		ID:         getStringValue(item, "id"),
		UserID:     getStringValue(item, "user_id"),
		UserName:   getOptionalStringValue(item, "user_name"),
		Score:      score,
		Emoji:      getStringValue(item, "emoji"),
		Comment:    getOptionalStringValue(item, "comment"),
		TeamID:     getOptionalStringValue(item, "team_id"),
		RecordedAt: recordedAt,
		RecordedOn: getStringValue(item, "recorded_on"),
		CreatedAt:  createdAt,
		DedupKey:   getStringValue(item, "dedup_key"),
	}, nil
}

func (d *DynamoDB) queryIndex(index, keyAttr, key string, since *time.Time, limit int) ([]model.MoodEntry, error) {
	cond := keyAttr + " = :key"
	values := map[string]types.AttributeValue{
		":key": &types.AttributeValueMemberS{Value: key},
	}
	if since != nil {
		cond += " AND recorded_at >= :since"
		values[":since"] = &types.AttributeValueMemberS{Value: since.UTC().Format(time.RFC3339Nano)}
	}
	input := &dynamodb.QueryInput{
		TableName:                 aws.String(d.tableName),
		IndexName:                 aws.String(index),
		KeyConditionExpression:    aws.String(cond),
		ExpressionAttributeValues: values,
		ScanIndexForward:          aws.Bool(false), // 降順（最新の recorded_at から取得）
	}
	if limit > 0 {
		input.Limit = aws.Int32(int32(limit))
	}

	var entries []model.MoodEntry
	paginator := dynamodb.NewQueryPaginator(d.db, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(context.TODO())
		if err != nil {
			return nil, err
		}
		for _, item := range page.Items {
			e, err := unmarshalMoodEntry(item)
			if err != nil {
				return nil, err
			}
			entries = append(entries, e)
		}
		if limit > 0 && len(entries) >= limit {
			return entries[:limit], nil
		}
	}
	return entries, nil
}

func (d *DynamoDB) GetLatestEntriesByUser(userID string, limit int) ([]model.MoodEntry, error) {
	return d.queryIndex(userRecordedIndex, "user_id", userID, nil, limit)
}

func (d *DynamoDB) GetLatestEntriesByTeam(teamID string, limit int) ([]model.MoodEntry, error) {
	if teamID == "" {
		return nil, nil
	}
	return d.queryIndex(teamRecordedIndex, "team_id", teamID, nil, limit)
}

// Dynamo ではビューが作れないので mood_daily_stats と同じ集計をここで行う
func (d *DynamoDB) GetDailyStats(teamID string, since time.Time) ([]model.DailyStat, error) {
	if teamID == "" {
		return nil, nil
	}
	// recorded_on は基準タイムゾーンの日付なので、その日の0時から取得する
	local := since.In(d.loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, d.loc)
	entries, err := d.queryIndex(teamRecordedIndex, "team_id", teamID, &start, 0)
	if err != nil {
		return nil, err
	}
	return aggregateDailyStats(entries), nil
}

func aggregateDailyStats(entries []model.MoodEntry) []model.DailyStat {
	byDay := map[string]*model.DailyStat{}
	sums := map[string]int{}
	for _, e := range entries {
		s, ok := byDay[e.RecordedOn]
		if !ok {
			s = &model.DailyStat{Day: e.RecordedOn, TeamID: e.TeamID}
			byDay[e.RecordedOn] = s
		}
		s.Responses++
		sums[e.RecordedOn] += e.Score
		if e.Score >= 4 {
			s.Positive++
		}
		if e.Score <= 2 {
			s.Negative++
		}
	}

	stats := make([]model.DailyStat, 0, len(byDay))
	for day, s := range byDay {
		s.AvgScore = float64(sums[day]) / float64(s.Responses)
		stats = append(stats, *s)
	}
	sort.Slice(stats, func(i, j int) bool {
		return stats[i].Day > stats[j].Day
	})
	return stats
}

func getStringValue(item map[string]types.AttributeValue, key string) string {
	if v, ok := item[key].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func getOptionalStringValue(item map[string]types.AttributeValue, key string) *string {
	if v, ok := item[key].(*types.AttributeValueMemberS); ok {
		return &v.Value
	}
	return nil
}

func getNumberValue(item map[string]types.AttributeValue, key string) (int, error) {
	if v, ok := item[key].(*types.AttributeValueMemberN); ok {
		return strconv.Atoi(v.Value)
	}
	return 0, fmt.Errorf("failed to parse %s", key)
}

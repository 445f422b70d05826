// Package dynamo provides a DynamoDB-backed program item store.
package dynamo

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/JakeFAU/program-catalog/internal/catalog"
)

// Config selects the table and region.
type Config struct {
	Table    string
	Region   string
	Endpoint string
}

// API is the subset of the DynamoDB client used by ProgramStore.
type API interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// ProgramStore writes one item per program; PutItem replaces any item with the same key.
type ProgramStore struct {
	api   API
	table string
}

// NewFromConfig loads AWS configuration and builds a DynamoDB-backed store.
func NewFromConfig(ctx context.Context, cfg Config) (*ProgramStore, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("dynamo: load aws config: %w", err)
	}
	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return New(client, cfg.Table)
}

// New wraps an existing DynamoDB API client.
func New(api API, table string) (*ProgramStore, error) {
	if api == nil {
		return nil, errors.New("dynamo: client is required")
	}
	if table == "" {
		return nil, errors.New("dynamo: table name is required")
	}
	return &ProgramStore{api: api, table: table}, nil
}

// Upsert marshals the record using its JSON field names and puts it into the table.
func (s *ProgramStore) Upsert(ctx context.Context, record catalog.ProgramRecord) error {
	if record.ProgramURL == "" {
		return errors.New("dynamo: program url is required")
	}
	item, err := attributevalue.MarshalMapWithOptions(toItem(record), func(o *attributevalue.EncoderOptions) {
		o.TagKey = "json"
	})
	if err != nil {
		return fmt.Errorf("dynamo: marshal %q: %w", record.ProgramURL, err)
	}
	if _, err := s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("dynamo: put %q: %w", record.ProgramURL, err)
	}
	return nil
}

type section struct {
	Content string   `json:"content"`
	Courses []string `json:"courseExtractedFromText,omitempty"`
}

type item struct {
	ProgramTitle       string             `json:"programTitle"`
	ProgramURL         string             `json:"programUrl"`
	AcademicLevel      string             `json:"academicLevel"`
	ProgramType        string             `json:"programType"`
	AcademicInterests  string             `json:"academicInterests"`
	CollegesAndSchools string             `json:"collegesAndSchools"`
	Department         string             `json:"department"`
	Tabs               map[string]section `json:"tabs"`
	ProgramS3URI       string             `json:"ProgramS3uri"`
}

// toItem mirrors the published JSON shape. omitempty drops only nil course lists, so an empty
// extraction is stored as an empty list and a default section carries no course attribute.
func toItem(record catalog.ProgramRecord) item {
	tabs := make(map[string]section, len(record.Tabs))
	for name, s := range record.Tabs {
		tabs[name] = section{Content: s.Content, Courses: s.Courses}
	}
	return item{
		ProgramTitle:       record.ProgramTitle,
		ProgramURL:         record.ProgramURL,
		AcademicLevel:      record.AcademicLevel,
		ProgramType:        record.ProgramType,
		AcademicInterests:  record.AcademicInterests,
		CollegesAndSchools: record.CollegesAndSchools,
		Department:         record.Department,
		Tabs:               tabs,
		ProgramS3URI:       record.ProgramS3URI,
	}
}

package params

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

// API is the subset of the SSM client used here.
type API interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
	GetParameterHistory(ctx context.Context, params *ssm.GetParameterHistoryInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterHistoryOutput, error)
	PutParameter(ctx context.Context, params *ssm.PutParameterInput, optFns ...func(*ssm.Options)) (*ssm.PutParameterOutput, error)
}

// ErrNotFound is returned when a parameter does not exist.
var ErrNotFound = errors.New("parameter not found")

// Store reads and writes SSM parameters. Values are always decrypted.
type Store struct {
	api API
}

// HistoryEntry is one stored version of a parameter.
type HistoryEntry struct {
	Version          int64
	Value            string
	Type             string
	LastModifiedDate string
}

// New creates a Store backed by the AWS SSM client for region. A non-empty
// endpointURL overrides the service endpoint.
func New(ctx context.Context, region, endpointURL string) (*Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	client := ssm.NewFromConfig(cfg, func(o *ssm.Options) {
		if endpointURL != "" {
			o.BaseEndpoint = aws.String(endpointURL)
		}
	})
	return NewWithAPI(client), nil
}

// NewWithAPI wraps an existing SSM API implementation.
func NewWithAPI(api API) *Store {
	return &Store{api: api}
}

// GetParameterValue returns the decrypted value of name.
func (s *Store) GetParameterValue(ctx context.Context, name string) (string, error) {
	out, err := s.api.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		var nf *types.ParameterNotFound
		if errors.As(err, &nf) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return "", fmt.Errorf("failed to get parameter %s: %w", name, err)
	}
	if out.Parameter == nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return aws.ToString(out.Parameter.Value), nil
}

// GetParameterHistory returns every stored version of name, oldest first.
func (s *Store) GetParameterHistory(ctx context.Context, name string) ([]HistoryEntry, error) {
	var entries []HistoryEntry
	input := &ssm.GetParameterHistoryInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	}
	for {
		out, err := s.api.GetParameterHistory(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to get parameter history %s: %w", name, err)
		}
		for _, p := range out.Parameters {
			e := HistoryEntry{
				Version: p.Version,
				Value:   aws.ToString(p.Value),
				Type:    string(p.Type),
			}
			if p.LastModifiedDate != nil {
				e.LastModifiedDate = p.LastModifiedDate.Format("2006-01-02 15:04:05")
			}
			entries = append(entries, e)
		}
		if out.NextToken == nil {
			return entries, nil
		}
		input.NextToken = out.NextToken
	}
}

// UpdateParameterValue overwrites name with value. parameterType is one of
// String, StringList or SecureString.
func (s *Store) UpdateParameterValue(ctx context.Context, name, value, parameterType string) error {
	_, err := s.api.PutParameter(ctx, &ssm.PutParameterInput{
		Name:      aws.String(name),
		Value:     aws.String(value),
		Type:      types.ParameterType(parameterType),
		Overwrite: aws.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("failed to update parameter %s: %w", name, err)
	}
	return nil
}

package params

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// MockAPI is a function-field implementation of API for tests.
type MockAPI struct {
	GetParameterFn        func(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
	GetParameterHistoryFn func(ctx context.Context, params *ssm.GetParameterHistoryInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterHistoryOutput, error)
	PutParameterFn        func(ctx context.Context, params *ssm.PutParameterInput, optFns ...func(*ssm.Options)) (*ssm.PutParameterOutput, error)
}

func (m *MockAPI) GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	if m.GetParameterFn != nil {
		return m.GetParameterFn(ctx, params, optFns...)
	}
	return &ssm.GetParameterOutput{}, nil
}

func (m *MockAPI) GetParameterHistory(ctx context.Context, params *ssm.GetParameterHistoryInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterHistoryOutput, error) {
	if m.GetParameterHistoryFn != nil {
		return m.GetParameterHistoryFn(ctx, params, optFns...)
	}
	return &ssm.GetParameterHistoryOutput{}, nil
}

func (m *MockAPI) PutParameter(ctx context.Context, params *ssm.PutParameterInput, optFns ...func(*ssm.Options)) (*ssm.PutParameterOutput, error) {
	if m.PutParameterFn != nil {
		return m.PutParameterFn(ctx, params, optFns...)
	}
	return &ssm.PutParameterOutput{}, nil
}

package sap

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mitlibraries/llama/pkg/models"
)

// SequenceParameter is the parameter name, under the SSM path, holding
// "<number>,<YYYYMMDD000000>,<mono|ser>" for the last file sent to SAP.
const SequenceParameter = "SAP_SEQUENCE"

// ParameterStore reads and writes SSM parameters.
type ParameterStore interface {
	GetParameterValue(ctx context.Context, name string) (string, error)
	UpdateParameterValue(ctx context.Context, name, value, parameterType string) error
}

// NextSequenceNumber returns the stored sequence number plus one.
func NextSequenceNumber(ctx context.Context, store ParameterStore, ssmPath string) (string, error) {
	value, err := store.GetParameterValue(ctx, ssmPath+SequenceParameter)
	if err != nil {
		return "", fmt.Errorf("failed to read SAP sequence: %w", err)
	}
	current, _, _ := strings.Cut(value, ",")
	n, err := strconv.Atoi(strings.TrimSpace(current))
	if err != nil {
		return "", fmt.Errorf("invalid SAP sequence %q: %w", value, err)
	}
	return strconv.Itoa(n + 1), nil
}

// SequenceValue formats the parameter value stored after a run.
func SequenceValue(sequenceNumber string, date time.Time, t models.PurchaseType) string {
	return fmt.Sprintf("%s,%s000000,%s", sequenceNumber, date.Format("20060102"), t.SequenceLabel())
}

// UpdateSequence records sequenceNumber as the last one sent to SAP.
func UpdateSequence(ctx context.Context, store ParameterStore, ssmPath, sequenceNumber string, date time.Time, t models.PurchaseType) error {
	value := SequenceValue(sequenceNumber, date, t)
	if err := store.UpdateParameterValue(ctx, ssmPath+SequenceParameter, value, "StringList"); err != nil {
		return fmt.Errorf("failed to update SAP sequence: %w", err)
	}
	return nil
}

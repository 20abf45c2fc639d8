package ml

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calloway/ledgerflow/internal/model"
)

func trainingHistory() []model.Transaction {
	var history []model.Transaction
	for i := 0; i < 12; i++ {
		history = append(history, model.Transaction{
			ID:          fmt.Sprintf("g%d", i),
			Description: "WALMART GROCERY",
			CategoryID:  "cat-groceries",
		})
	}
	for i := 0; i < 10; i++ {
		history = append(history, model.Transaction{
			ID:          fmt.Sprintf("f%d", i),
			Description: "SHELL OIL",
			CategoryID:  "cat-gas",
		})
	}
	return history
}

func TestTrain_RequiresEnoughHistory(t *testing.T) {
	small := []model.Transaction{
		{Description: "WALMART", CategoryID: "cat-groceries"},
		{Description: "SHELL", CategoryID: "cat-gas"},
	}
	assert.Nil(t, Train(small, DefaultConfig()))
}

func TestTrain_IgnoresUncategorized(t *testing.T) {
	history := make([]model.Transaction, 30)
	for i := range history {
		history[i] = model.Transaction{Description: "WALMART"}
	}
	assert.Nil(t, Train(history, DefaultConfig()))
}

func TestClassify_KnownMerchant(t *testing.T) {
	classifier := Train(trainingHistory(), DefaultConfig())
	require.NotNil(t, classifier)

	result, err := classifier.Classify(context.Background(), model.Transaction{
		Description: "WALMART SUPERCENTER #4470",
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "cat-groceries", result.CategoryID)
	assert.Greater(t, result.Confidence, 0.65)
	assert.LessOrEqual(t, result.Confidence, DefaultConfig().MaxConfidence)
}

func TestClassify_UnknownMerchantIsNoSignal(t *testing.T) {
	classifier := Train(trainingHistory(), DefaultConfig())
	require.NotNil(t, classifier)

	// Nothing in the history resembles this; the posterior splits close
	// to the priors and stays under the cutoff.
	result, err := classifier.Classify(context.Background(), model.Transaction{
		Description: "ZZZZ UNKNOWN VENDOR",
	})
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestClassify_EmptyDescription(t *testing.T) {
	classifier := Train(trainingHistory(), DefaultConfig())
	require.NotNil(t, classifier)

	result, err := classifier.Classify(context.Background(), model.Transaction{Description: "1234 #55"})
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestClassify_ConfidenceCapped(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxConfidence = 0.7
	classifier := Train(trainingHistory(), cfg)
	require.NotNil(t, classifier)

	result, err := classifier.Classify(context.Background(), model.Transaction{
		Description: "WALMART GROCERY",
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.LessOrEqual(t, result.Confidence, 0.7)
}

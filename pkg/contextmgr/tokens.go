package contextmgr

import (
	"encoding/json"
	"fmt"

	"github.com/tiktoken-go/tokenizer"

	"github.com/ashbuilds/computer-use/pkg/proto"
)

// imageTokenEstimate approximates the prompt cost of one screenshot. The
// actual cost depends on resolution; at the capped display sizes this is a
// reasonable upper bound.
const imageTokenEstimate = 1600

// TokenEstimator approximates the prompt size of a conversation. Claude's
// tokenizer is not public, so GPT-4 encoding is used as a stand-in; the
// estimate is for budgeting, not billing.
type TokenEstimator struct {
	codec tokenizer.Codec
}

// NewTokenEstimator creates an estimator backed by the GPT-4 encoding.
func NewTokenEstimator() (*TokenEstimator, error) {
	codec, err := tokenizer.ForModel(tokenizer.GPT4)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokenizer codec: %w", err)
	}
	return &TokenEstimator{codec: codec}, nil
}

// CountText returns the token count of a piece of text.
func (te *TokenEstimator) CountText(text string) int {
	if te == nil || te.codec == nil {
		// 4 chars ≈ 1 token fallback.
		return len(text) / 4
	}
	count, err := te.codec.Count(text)
	if err != nil {
		return len(text) / 4
	}
	return count
}

// EstimateMessages approximates the total prompt tokens of a conversation,
// counting text blocks exactly and images at a flat per-image rate.
func (te *TokenEstimator) EstimateMessages(messages []proto.Message) int {
	total := 0
	for i := range messages {
		for _, block := range messages[i].Content {
			total += te.estimateBlock(block)
		}
	}
	return total
}

func (te *TokenEstimator) estimateBlock(block proto.ContentBlock) int {
	switch block.Type {
	case proto.BlockTypeText:
		return te.CountText(block.Text)
	case proto.BlockTypeImage:
		return imageTokenEstimate
	case proto.BlockTypeToolUse:
		input, err := json.Marshal(block.Input)
		if err != nil {
			input = nil
		}
		return te.CountText(block.Name) + te.CountText(string(input))
	case proto.BlockTypeToolResult:
		total := 0
		for _, inner := range block.Content {
			total += te.estimateBlock(inner)
		}
		return total
	default:
		return 0
	}
}

// Package contextmgr keeps long-running conversations inside the model's
// context window by pruning stale screenshots and estimating payload size.
package contextmgr

import (
	"github.com/ashbuilds/computer-use/pkg/proto"
)

// DefaultMinRemovalBatch is the default granularity for image eviction.
// Removing images in chunks keeps the prompt prefix stable between turns,
// which preserves server-side prompt caching.
const DefaultMinRemovalBatch = 10

// OnlyNMostRecentImages removes image blocks embedded in tool_result content
// so that at most keep images remain, evicting oldest-first. The number of
// removals is rounded down to a multiple of minRemovalBatch; if fewer than
// one full batch would be removed, the conversation is left untouched.
// Messages are modified in place.
func OnlyNMostRecentImages(messages []proto.Message, keep, minRemovalBatch int) {
	if keep < 0 {
		return
	}
	if minRemovalBatch < 1 {
		minRemovalBatch = 1
	}

	total := countImages(messages)
	excess := total - keep
	if excess <= 0 {
		return
	}
	toRemove := (excess / minRemovalBatch) * minRemovalBatch
	if toRemove == 0 {
		return
	}

	// Walk oldest-first and drop image blocks until the quota is met. Only
	// images nested in tool_result content are candidates; everything else
	// passes through untouched.
	for i := range messages {
		if toRemove == 0 {
			break
		}
		for j := range messages[i].Content {
			block := &messages[i].Content[j]
			if block.Type != proto.BlockTypeToolResult {
				continue
			}
			kept := block.Content[:0]
			for _, inner := range block.Content {
				if toRemove > 0 && inner.Type == proto.BlockTypeImage {
					toRemove--
					continue
				}
				kept = append(kept, inner)
			}
			block.Content = kept
		}
	}
}

// countImages returns the number of image blocks nested in tool_result
// content across the whole conversation.
func countImages(messages []proto.Message) int {
	count := 0
	for i := range messages {
		for j := range messages[i].Content {
			block := &messages[i].Content[j]
			if block.Type != proto.BlockTypeToolResult {
				continue
			}
			for _, inner := range block.Content {
				if inner.Type == proto.BlockTypeImage {
					count++
				}
			}
		}
	}
	return count
}

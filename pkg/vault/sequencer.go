package vault

import (
	"slices"
)

// SortEvents orders events for replay: ascending by block number, with the
// source log index breaking ties within a block. Raw logs arrive as three
// independent filter results, so the collection carries no usable order of
// its own.
func SortEvents(events []*Event) {
	slices.SortFunc(events, func(a, b *Event) int {
		if a.BlockNumber != b.BlockNumber {
			if a.BlockNumber < b.BlockNumber {
				return -1
			}
			return 1
		}
		if a.LogIndex != b.LogIndex {
			if a.LogIndex < b.LogIndex {
				return -1
			}
			return 1
		}
		return 0
	})
}

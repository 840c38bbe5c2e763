package server

import (
	"fmt"
)

const channelPrefix = "chat_"

// ChannelId maps an unordered pair of user ids to the id of their private
// channel. ChannelId(a, b) == ChannelId(b, a) and distinct pairs never share
// an id. Callers must reject unknown users first.
func ChannelId(userA, userB int) string {
	lo, hi := userA, userB
	if lo > hi {
		lo, hi = hi, lo
	}

	return fmt.Sprintf("%s%d_%d", channelPrefix, lo, hi)
}

// ParseChannelId returns the ordered pair encoded in a channel id.
func ParseChannelId(channelId string) (int, int, error) {
	var lo, hi int
	n, err := fmt.Sscanf(channelId, channelPrefix+"%d_%d", &lo, &hi)
	if err != nil || n != 2 {
		return 0, 0, fmt.Errorf("invalid channel id %q", channelId)
	}
	if lo > hi || ChannelId(lo, hi) != channelId {
		return 0, 0, fmt.Errorf("non-canonical channel id %q", channelId)
	}

	return lo, hi, nil
}

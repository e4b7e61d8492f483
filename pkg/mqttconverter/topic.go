package mqttconverter

import "strings"

// MissingAssetSegment is the topic segment used when a reading carries no asset code.
const MissingAssetSegment = "None"

// ResolveTopic derives the publish topic for an asset code.
//
// Every occurrence of removablePrefix is cut from the asset code, not only a
// leading one; an empty removablePrefix leaves the code untouched. A nil asset
// code becomes MissingAssetSegment. Slashes inside the asset code are kept, so
// asset names may describe a topic hierarchy below topicPrefix.
func ResolveTopic(assetCode *string, removablePrefix, topicPrefix string) string {
	local := MissingAssetSegment
	if assetCode != nil {
		local = *assetCode
		// Cutting can join fragments into a new occurrence, e.g. "PPREFIX_REFIX_".
		for removablePrefix != "" && strings.Contains(local, removablePrefix) {
			local = strings.ReplaceAll(local, removablePrefix, "")
		}
	}
	return topicPrefix + "/" + local
}

// SanitizeTopicPrefix removes every path separator from a configured prefix so
// the prefix is always a single topic level.
func SanitizeTopicPrefix(prefix string) string {
	return strings.ReplaceAll(prefix, "/", "")
}

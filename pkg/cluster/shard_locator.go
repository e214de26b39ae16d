package cluster

import (
	"fmt"

	"tabletd/pkg/types"
)

func ShardFromRing(r *HashRing, key string) (types.ShardID, error) {
	nodeName, ok := r.GetNode(key)
	if !ok {
		return 0, fmt.Errorf("ring empty")
	}
	// nodeName = "shard-7"
	var id int
	_, err := fmt.Sscanf(nodeName, "shard-%d", &id)
	if err != nil {
		return 0, fmt.Errorf("parse shard from %q: %w", nodeName, err)
	}
	return types.ShardID(id), nil
}

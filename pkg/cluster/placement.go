package cluster

import "tabletd/pkg/types"

// StaticPlacement assigns shard owners by consistent modulo arithmetic over a
// fixed node list. It satisfies the Placement interface declared in cluster.go.
type StaticPlacement struct {
	Nodes             []string
	ReplicationFactor int
}

func (p *StaticPlacement) Owners(shardID types.ShardID) []types.NodeID {
	res := make([]types.NodeID, 0, p.ReplicationFactor)
	if len(p.Nodes) == 0 || p.ReplicationFactor == 0 {
		return res
	}
	start := int(shardID) % len(p.Nodes)
	for i := 0; i < p.ReplicationFactor; i++ {
		idx := (start + i) % len(p.Nodes)
		res = append(res, types.NodeID(p.Nodes[idx]))
	}
	return res
}

func (p *StaticPlacement) ResponsibleShards(types.NodeID) []types.ShardID {
	return nil
}

// Package brackets holds the pure partitioning logic for knockout
// rounds, kept free of storage so it is trivially table-testable.
package brackets

// PartitionTeams splits teamIDs into groups of at most capacity,
// preserving order. Leftover teams form a final short group rather than
// being dropped. capacity must be positive; a non-positive capacity
// returns nil, as does an empty team list.
func PartitionTeams(teamIDs []int, capacity int) [][]int {
	if capacity <= 0 || len(teamIDs) == 0 {
		return nil
	}
	groups := make([][]int, 0, (len(teamIDs)+capacity-1)/capacity)
	for start := 0; start < len(teamIDs); start += capacity {
		end := start + capacity
		if end > len(teamIDs) {
			end = len(teamIDs)
		}
		group := make([]int, end-start)
		copy(group, teamIDs[start:end])
		groups = append(groups, group)
	}
	return groups
}

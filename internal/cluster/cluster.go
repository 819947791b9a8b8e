package cluster

import (
	"sort"
)

// Cluster represents a Cluster
type Cluster struct {
	Identifier float64
	Members    []int
}

// AddMember adds a member to the cluster
func (c *Cluster) AddMember(idx int) {
	c.Members = append(c.Members, idx)
}

// Size returns the number of members
func (c *Cluster) Size() int {
	return len(c.Members)
}

// GetEssentialClusters returns clusters with cluster size >= 2, largest first
func GetEssentialClusters(clusters []Cluster) []Cluster {
	var essClusters []Cluster

	for i := 0; i < len(clusters); i++ {
		if len(clusters[i].Members) >= 2 {
			essClusters = append(essClusters, clusters[i])
		}
	}

	sortBySize(essClusters)

	return essClusters
}

// sortBySize orders clusters largest first, ties by smallest member
func sortBySize(clusters []Cluster) {
	for i := range clusters {
		sort.Ints(clusters[i].Members)
	}

	sort.SliceStable(clusters, func(i, j int) bool {
		if len(clusters[i].Members) != len(clusters[j].Members) {
			return len(clusters[i].Members) > len(clusters[j].Members)
		}
		if len(clusters[i].Members) == 0 {
			return false
		}
		return clusters[i].Members[0] < clusters[j].Members[0]
	})

	for i := range clusters {
		clusters[i].Identifier = float64(i)
	}
}

package cluster

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/KyungWonPark/fmriqc/internal/calc"
	"github.com/gonum/matrix/mat64"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/community"
	"gonum.org/v1/gonum/graph/simple"
)

// symTolerance is the largest asymmetry accepted in a connectome
const symTolerance = 1e-9

// Sign selects how negative connectome weights enter the modularity
type Sign int

const (
	// SignSymmetric weights the positive and negative modularities by their
	// share of the total absolute strength; negative edges pull nodes apart.
	SignSymmetric Sign = iota
	// SignPositive discards weights <= 0
	SignPositive
)

func (s Sign) String() string {
	switch s {
	case SignSymmetric:
		return "negative_sym"
	case SignPositive:
		return "positive"
	}
	return fmt.Sprintf("Sign(%d)", int(s))
}

// ParseSign parses the name printed by Sign.String
func ParseSign(s string) (Sign, error) {
	switch s {
	case "negative_sym", "symmetric", "signed":
		return SignSymmetric, nil
	case "positive":
		return SignPositive, nil
	}
	return 0, fmt.Errorf("[ERROR] ParseSign: unknown sign convention %q", s)
}

// Options controls one Louvain run
type Options struct {
	// Resolution is the modularity resolution; zero means 1
	Resolution float64
	Sign       Sign
	// Src drives node visiting order; nil draws a fresh random seed
	Src rand.Source
}

// Result is a partition and its modularity
type Result struct {
	Q        float64
	Clusters []Cluster
}

// LouvainModularity returns the modularity of the Louvain partition of conn
func LouvainModularity(conn mat64.Matrix, opts Options) (float64, error) {
	res, err := Louvain(conn, opts)
	if err != nil {
		return math.NaN(), err
	}
	return res.Q, nil
}

// Louvain partitions the regions of a connectome. The diagonal and NaN
// weights are ignored. A graph without any weight has Q = 0 with every node
// in its own cluster.
func Louvain(conn mat64.Matrix, opts Options) (res Result, err error) {
	sym, ok := calc.ToSym(conn, symTolerance)
	if !ok {
		return Result{Q: math.NaN()}, fmt.Errorf("[ERROR] Louvain: connectome is not symmetric")
	}

	n := sym.Symmetric()
	if n == 0 {
		return Result{}, fmt.Errorf("[ERROR] Louvain: empty connectome")
	}

	if opts.Sign == SignPositive {
		sym = calc.Threshold(sym, 0, 0)
	}

	resolution := opts.Resolution
	if resolution == 0 {
		resolution = 1
	}
	if resolution < 0 || math.IsNaN(resolution) {
		return Result{Q: math.NaN()}, fmt.Errorf("[ERROR] Louvain: invalid resolution %v", opts.Resolution)
	}

	src := opts.Src
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}

	defer func() {
		if r := recover(); r != nil {
			res = Result{Q: math.NaN()}
			err = fmt.Errorf("[ERROR] Louvain: %v", r)
		}
	}()

	layers, weights := signedLayers(sym)
	if len(layers) == 0 {
		return Result{Q: 0, Clusters: singletons(n)}, nil
	}

	multiplex, err := community.NewUndirectedLayers(layers...)
	if err != nil {
		return Result{Q: math.NaN()}, fmt.Errorf("[ERROR] Louvain: %v", err)
	}

	resolutions := []float64{resolution}
	reduced := community.ModularizeMultiplex(multiplex, weights, resolutions, true, src)
	communities := reduced.Communities()

	return Result{Q: signedQ(sym, labels(communities, n), resolution), Clusters: fromCommunities(communities)}, nil
}

// signedQ is the modularity of a partition, the positive layer minus the
// negative layer, over the total absolute strength. Terms are summed in node
// order so equal partitions give bit-identical scores.
func signedQ(sym *mat64.SymDense, label []int, resolution float64) float64 {
	n := sym.Symmetric()

	kPos := make([]float64, n)
	kNeg := make([]float64, n)
	var sPos, sNeg float64
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			w := sym.At(i, j)
			if i == j || math.IsNaN(w) {
				continue
			}
			if w > 0 {
				kPos[i] += w
			} else {
				kNeg[i] -= w
			}
		}
		sPos += kPos[i]
		sNeg += kNeg[i]
	}
	if sPos+sNeg == 0 {
		return 0
	}

	var qPos, qNeg float64
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if label[i] != label[j] {
				continue
			}

			var wPos, wNeg float64
			if w := sym.At(i, j); i != j && !math.IsNaN(w) {
				if w > 0 {
					wPos = w
				} else {
					wNeg = -w
				}
			}

			if sPos > 0 {
				qPos += wPos - resolution*kPos[i]*kPos[j]/sPos
			}
			if sNeg > 0 {
				qNeg += wNeg - resolution*kNeg[i]*kNeg[j]/sNeg
			}
		}
	}

	return (qPos - qNeg) / (sPos + sNeg)
}

// labels maps every node id to the index of its community
func labels(communities [][]graph.Node, n int) []int {
	out := make([]int, n)
	for c, members := range communities {
		for _, node := range members {
			out[node.ID()] = c
		}
	}
	return out
}

// signedLayers splits the off-diagonal weights into a positive layer and a
// negative layer. Layers without weight are left out.
func signedLayers(sym *mat64.SymDense) (layers []graph.Undirected, weights []float64) {
	n := sym.Symmetric()

	pos := simple.NewWeightedUndirectedGraph(0, 0)
	neg := simple.NewWeightedUndirectedGraph(0, 0)
	for i := 0; i < n; i++ {
		pos.AddNode(simple.Node(i))
		neg.AddNode(simple.Node(i))
	}

	var posStrength, negStrength float64
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			w := sym.At(i, j)
			switch {
			case math.IsNaN(w) || w == 0:
				continue
			case w > 0:
				pos.SetWeightedEdge(pos.NewWeightedEdge(simple.Node(i), simple.Node(j), w))
				posStrength += 2 * w
			default:
				neg.SetWeightedEdge(neg.NewWeightedEdge(simple.Node(i), simple.Node(j), w))
				negStrength -= 2 * w
			}
		}
	}

	if posStrength > 0 {
		layers = append(layers, pos)
		weights = append(weights, 1)
	}
	if negStrength > 0 {
		layers = append(layers, neg)
		weights = append(weights, -1)
	}

	return layers, weights
}

func fromCommunities(communities [][]graph.Node) []Cluster {
	clusters := make([]Cluster, 0, len(communities))
	for _, members := range communities {
		if len(members) == 0 {
			continue
		}
		var c Cluster
		for _, node := range members {
			c.AddMember(int(node.ID()))
		}
		clusters = append(clusters, c)
	}
	sortBySize(clusters)
	return clusters
}

func singletons(n int) []Cluster {
	clusters := make([]Cluster, n)
	for i := range clusters {
		clusters[i] = Cluster{Identifier: float64(i), Members: []int{i}}
	}
	return clusters
}

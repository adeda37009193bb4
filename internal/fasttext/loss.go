package fasttext

import (
	"container/heap"
	"math"
	"sort"
)

const (
	sigmoidTableSize = 512
	maxSigmoid       = 8
)

var sigmoidTable = func() []float32 {
	t := make([]float32, sigmoidTableSize+1)
	for i := range t {
		x := float64(i)*2*maxSigmoid/sigmoidTableSize - maxSigmoid
		t[i] = float32(1 / (1 + math.Exp(-x)))
	}
	return t
}()

// tableSigmoid is the lookup-table sigmoid applied to one-vs-all and
// negative-sampling outputs.
func tableSigmoid(x float32) float32 {
	if x < -maxSigmoid {
		return 0
	}
	if x > maxSigmoid {
		return 1
	}
	i := int64((x + maxSigmoid) * sigmoidTableSize / maxSigmoid / 2)
	return sigmoidTable[i]
}

func stdLog(x float64) float64 {
	return math.Log(x + 1e-5)
}

type scored struct {
	logp float64
	idx  int32
}

// outputLayer turns a hidden vector into the k best label indices.
type outputLayer interface {
	predict(hidden []float32, k int, threshold float32) []scored
}

func newOutputLayer(loss LossName, wo *denseMatrix, counts []int64) outputLayer {
	switch loss {
	case LossHierarchicalSoftmax:
		return newHierarchicalSoftmax(wo, counts)
	case LossSoftmax:
		return &softmaxLayer{wo: wo}
	default:
		return &sigmoidLayer{wo: wo}
	}
}

// kBest keeps candidates at or above threshold and returns the k highest.
func kBest(probs []float32, k int, threshold float32) []scored {
	out := make([]scored, 0, len(probs))
	for i, p := range probs {
		if p < threshold {
			continue
		}
		out = append(out, scored{logp: stdLog(float64(p)), idx: int32(i)})
	}
	sortScored(out)
	if len(out) > k {
		out = out[:k]
	}
	return out
}

func sortScored(s []scored) {
	sort.SliceStable(s, func(i, j int) bool {
		if s[i].logp != s[j].logp {
			return s[i].logp > s[j].logp
		}
		return s[i].idx < s[j].idx
	})
}

type softmaxLayer struct {
	wo *denseMatrix
}

func (l *softmaxLayer) predict(hidden []float32, k int, threshold float32) []scored {
	out := make([]float32, l.wo.m)
	maxv := float32(math.Inf(-1))
	for i := range out {
		out[i] = l.wo.dotRow(hidden, int32(i))
		if out[i] > maxv {
			maxv = out[i]
		}
	}
	var z float32
	for i := range out {
		out[i] = float32(math.Exp(float64(out[i] - maxv)))
		z += out[i]
	}
	for i := range out {
		out[i] /= z
	}
	return kBest(out, k, threshold)
}

type sigmoidLayer struct {
	wo *denseMatrix
}

func (l *sigmoidLayer) predict(hidden []float32, k int, threshold float32) []scored {
	out := make([]float32, l.wo.m)
	for i := range out {
		out[i] = tableSigmoid(l.wo.dotRow(hidden, int32(i)))
	}
	return kBest(out, k, threshold)
}

type treeNode struct {
	parent int32
	left   int32
	right  int32
	count  int64
	binary bool
}

// hierarchicalSoftmax walks the Huffman tree built from label frequencies.
// The output matrix has one row per internal node.
type hierarchicalSoftmax struct {
	wo   *denseMatrix
	osz  int32
	tree []treeNode
}

func newHierarchicalSoftmax(wo *denseMatrix, counts []int64) *hierarchicalSoftmax {
	osz := int32(len(counts))
	hs := &hierarchicalSoftmax{wo: wo, osz: osz}
	if osz == 0 {
		return hs
	}
	hs.tree = make([]treeNode, 2*osz-1)
	for i := range hs.tree {
		hs.tree[i] = treeNode{parent: -1, left: -1, right: -1, count: 1e15}
	}
	for i := int32(0); i < osz; i++ {
		hs.tree[i].count = counts[i]
	}
	leaf := osz - 1
	node := osz
	for i := osz; i < 2*osz-1; i++ {
		var mini [2]int32
		for j := 0; j < 2; j++ {
			if leaf >= 0 && hs.tree[leaf].count < hs.tree[node].count {
				mini[j] = leaf
				leaf--
			} else {
				mini[j] = node
				node++
			}
		}
		hs.tree[i].left = mini[0]
		hs.tree[i].right = mini[1]
		hs.tree[i].count = hs.tree[mini[0]].count + hs.tree[mini[1]].count
		hs.tree[mini[0]].parent = i
		hs.tree[mini[1]].parent = i
		hs.tree[mini[1]].binary = true
	}
	return hs
}

func (hs *hierarchicalSoftmax) predict(hidden []float32, k int, threshold float32) []scored {
	if hs.osz == 0 {
		return nil
	}
	h := &minHeap{}
	hs.dfs(k, stdLog(float64(threshold)), 2*hs.osz-2, 0, h, hidden)
	out := append([]scored(nil), (*h)...)
	sortScored(out)
	return out
}

func (hs *hierarchicalSoftmax) dfs(k int, logThreshold float64, node int32, score float64, h *minHeap, hidden []float32) {
	if score < logThreshold {
		return
	}
	if h.Len() == k && score < (*h)[0].logp {
		return
	}
	n := hs.tree[node]
	if n.left == -1 && n.right == -1 {
		heap.Push(h, scored{logp: score, idx: node})
		if h.Len() > k {
			heap.Pop(h)
		}
		return
	}
	f := float64(hs.wo.dotRow(hidden, node-hs.osz))
	f = 1 / (1 + math.Exp(-f))
	hs.dfs(k, logThreshold, n.left, score+stdLog(1-f), h, hidden)
	hs.dfs(k, logThreshold, n.right, score+stdLog(f), h, hidden)
}

type minHeap []scored

func (h minHeap) Len() int           { return len(h) }
func (h minHeap) Less(i, j int) bool { return h[i].logp < h[j].logp }
func (h minHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x any)        { *h = append(*h, x.(scored)) }
func (h *minHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

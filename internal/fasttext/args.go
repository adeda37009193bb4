package fasttext

import "fmt"

// LossName identifies the output layer a model was trained with.
type LossName int32

const (
	LossHierarchicalSoftmax LossName = 1
	LossNegativeSampling    LossName = 2
	LossSoftmax             LossName = 3
	LossOneVsAll            LossName = 4
)

func (l LossName) String() string {
	switch l {
	case LossHierarchicalSoftmax:
		return "hs"
	case LossNegativeSampling:
		return "ns"
	case LossSoftmax:
		return "softmax"
	case LossOneVsAll:
		return "ova"
	default:
		return fmt.Sprintf("loss(%d)", int32(l))
	}
}

// ModelName identifies the training objective.
type ModelName int32

const (
	ModelCBOW       ModelName = 1
	ModelSkipgram   ModelName = 2
	ModelSupervised ModelName = 3
)

func (m ModelName) String() string {
	switch m {
	case ModelCBOW:
		return "cbow"
	case ModelSkipgram:
		return "skipgram"
	case ModelSupervised:
		return "supervised"
	default:
		return fmt.Sprintf("model(%d)", int32(m))
	}
}

// Args holds the hyperparameters stored in a model file header. Only Dim,
// WordNgrams, Loss, Model, Bucket, Minn and Maxn influence inference; the rest
// are carried so a model can be written back unchanged.
type Args struct {
	Dim          int32
	WS           int32
	Epoch        int32
	MinCount     int32
	Neg          int32
	WordNgrams   int32
	Loss         LossName
	Model        ModelName
	Bucket       int32
	Minn         int32
	Maxn         int32
	LRUpdateRate int32
	T            float64
}

func (a *Args) read(r *binReader) {
	a.Dim = r.int32()
	a.WS = r.int32()
	a.Epoch = r.int32()
	a.MinCount = r.int32()
	a.Neg = r.int32()
	a.WordNgrams = r.int32()
	a.Loss = LossName(r.int32())
	a.Model = ModelName(r.int32())
	a.Bucket = r.int32()
	a.Minn = r.int32()
	a.Maxn = r.int32()
	a.LRUpdateRate = r.int32()
	a.T = r.float64()
}

func (a *Args) write(w *binWriter) {
	w.int32(a.Dim)
	w.int32(a.WS)
	w.int32(a.Epoch)
	w.int32(a.MinCount)
	w.int32(a.Neg)
	w.int32(a.WordNgrams)
	w.int32(int32(a.Loss))
	w.int32(int32(a.Model))
	w.int32(a.Bucket)
	w.int32(a.Minn)
	w.int32(a.Maxn)
	w.int32(a.LRUpdateRate)
	w.float64(a.T)
}

package fasttext

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

const (
	// EOS is the end-of-sentence token appended to every line.
	EOS = "</s>"
	bow = "<"
	eow = ">"

	// LabelPrefix marks label entries in supervised dictionaries.
	LabelPrefix = "__label__"
)

type entryType int8

const (
	entryWord  entryType = 0
	entryLabel entryType = 1
)

type entry struct {
	word     string
	count    int64
	typ      entryType
	subwords []int32
}

type dictionary struct {
	args *Args

	words   []entry
	index   map[string]int32
	nwords  int32
	nlabels int32
	ntokens int64

	// pruneIdxSize is -1 for unpruned models, 0 when every hashed row was
	// pruned, and the number of retained rows otherwise.
	pruneIdxSize int64
	pruneIdx     map[int32]int32
}

func (d *dictionary) read(r *binReader) error {
	size := r.int32()
	d.nwords = r.int32()
	d.nlabels = r.int32()
	d.ntokens = r.int64()
	d.pruneIdxSize = r.int64()
	if r.err != nil {
		return r.err
	}
	if size < 0 || d.nwords < 0 || d.nlabels < 0 || int64(d.nwords)+int64(d.nlabels) != int64(size) {
		return fmt.Errorf("%w: dictionary sizes %d/%d/%d", ErrInvalidModel, size, d.nwords, d.nlabels)
	}
	// Each entry takes at least a terminator, a count and a type byte, and
	// each prune pair two int32s.
	if !r.fits(int64(size) * 10) {
		return fmt.Errorf("%w: %d dictionary entries are larger than the rest of the file", ErrInvalidModel, size)
	}
	if d.pruneIdxSize > 0 && (d.pruneIdxSize > math.MaxInt64/8 || !r.fits(d.pruneIdxSize*8)) {
		return fmt.Errorf("%w: prune index of %d entries", ErrInvalidModel, d.pruneIdxSize)
	}

	d.words = make([]entry, 0, min(size, 1<<16))
	for i := int32(0); i < size; i++ {
		e := entry{word: r.cstring()}
		e.count = r.int64()
		e.typ = entryType(r.int8())
		if r.err != nil {
			return r.err
		}
		d.words = append(d.words, e)
	}

	d.pruneIdx = make(map[int32]int32)
	for i := int64(0); i < d.pruneIdxSize && r.err == nil; i++ {
		first := r.int32()
		second := r.int32()
		d.pruneIdx[first] = second
	}
	if r.err != nil {
		return r.err
	}

	d.init()
	return nil
}

func (d *dictionary) write(w *binWriter) {
	w.int32(int32(len(d.words)))
	w.int32(d.nwords)
	w.int32(d.nlabels)
	w.int64(d.ntokens)
	w.int64(d.pruneIdxSize)
	for _, e := range d.words {
		w.cstring(e.word)
		w.int64(e.count)
		w.int8(int8(e.typ))
	}
	keys := make([]int32, 0, len(d.pruneIdx))
	for k := range d.pruneIdx {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	for _, k := range keys {
		w.int32(k)
		w.int32(d.pruneIdx[k])
	}
}

// init builds the lookup index and precomputes subword ids for every entry.
func (d *dictionary) init() {
	d.index = make(map[string]int32, len(d.words))
	for i := range d.words {
		d.index[d.words[i].word] = int32(i)
	}
	for i := range d.words {
		e := &d.words[i]
		e.subwords = []int32{int32(i)}
		if e.word != EOS {
			e.subwords = d.computeSubwords(bow+e.word+eow, e.subwords)
		}
	}
}

// hash is 32-bit FNV-1a over bytes widened as signed chars.
func hash(s string) uint32 {
	h := uint32(2166136261)
	for i := 0; i < len(s); i++ {
		h ^= uint32(int8(s[i]))
		h *= 16777619
	}
	return h
}

func (d *dictionary) pushHash(ids []int32, id int32) []int32 {
	if d.pruneIdxSize == 0 || id < 0 {
		return ids
	}
	if d.pruneIdxSize > 0 {
		mapped, ok := d.pruneIdx[id]
		if !ok {
			return ids
		}
		id = mapped
	}
	return append(ids, d.nwords+id)
}

// computeSubwords appends the hashed character n-gram ids of word, which is
// expected to carry the bow/eow markers already. N-grams never split a UTF-8
// sequence.
func (d *dictionary) computeSubwords(word string, ids []int32) []int32 {
	if d.args.Bucket <= 0 {
		return ids
	}
	maxn := int(d.args.Maxn)
	minn := int(d.args.Minn)
	for i := 0; i < len(word); i++ {
		if word[i]&0xC0 == 0x80 {
			continue
		}
		j := i
		for n := 1; j < len(word) && n <= maxn; n++ {
			j++
			for j < len(word) && word[j]&0xC0 == 0x80 {
				j++
			}
			if n >= minn && !(n == 1 && (i == 0 || j == len(word))) {
				h := hash(word[i:j]) % uint32(d.args.Bucket)
				ids = d.pushHash(ids, int32(h))
			}
		}
	}
	return ids
}

func (d *dictionary) typeOf(token string) entryType {
	if strings.HasPrefix(token, LabelPrefix) {
		return entryLabel
	}
	return entryWord
}

func (d *dictionary) addSubwords(ids []int32, token string, wid int32, known bool) []int32 {
	if !known {
		if token != EOS {
			ids = d.computeSubwords(bow+token+eow, ids)
		}
		return ids
	}
	if d.args.Maxn <= 0 {
		return append(ids, wid)
	}
	return append(ids, d.words[wid].subwords...)
}

func (d *dictionary) addWordNgrams(ids []int32, hashes []int32, n int32) []int32 {
	if d.args.Bucket <= 0 {
		return ids
	}
	bucket := uint64(d.args.Bucket)
	for i := 0; i < len(hashes); i++ {
		h := uint64(int64(hashes[i]))
		for j := i + 1; j < len(hashes) && j < i+int(n); j++ {
			h = h*116049371 + uint64(int64(hashes[j]))
			ids = d.pushHash(ids, int32(h%bucket))
		}
	}
	return ids
}

// line converts one line of text into input row ids and label indices, the
// same way supervised training and prediction tokenize it.
func (d *dictionary) line(text string) (ids []int32, labels []int32) {
	var hashes []int32
	for _, token := range lineTokens(text) {
		h := hash(token)
		wid, known := d.index[token]
		typ := d.typeOf(token)
		if known {
			typ = d.words[wid].typ
		}
		switch {
		case typ == entryWord:
			ids = d.addSubwords(ids, token, wid, known)
			hashes = append(hashes, int32(h))
		case typ == entryLabel && known:
			labels = append(labels, wid-d.nwords)
		}
		if token == EOS {
			break
		}
	}
	ids = d.addWordNgrams(ids, hashes, d.args.WordNgrams)
	return ids, labels
}

// subwords returns the input row ids that make up a single word's vector.
func (d *dictionary) subwords(word string) []int32 {
	if id, ok := d.index[word]; ok {
		return d.words[id].subwords
	}
	if word == EOS {
		return nil
	}
	return d.computeSubwords(bow+word+eow, nil)
}

func (d *dictionary) label(i int32) string {
	return d.words[d.nwords+i].word
}

func (d *dictionary) labelCounts() []int64 {
	counts := make([]int64, 0, d.nlabels)
	for _, e := range d.words[d.nwords:] {
		counts = append(counts, e.count)
	}
	return counts
}

// lineTokens splits text on the delimiters the model reader uses and
// terminates it with EOS, as if the text were read as one newline-ended line.
func lineTokens(text string) []string {
	tokens := strings.FieldsFunc(text, func(r rune) bool {
		switch r {
		case ' ', '\n', '\r', '\t', '\v', '\f', 0:
			return true
		}
		return false
	})
	return append(tokens, EOS)
}

// spaceFields splits on ASCII whitespace only.
func spaceFields(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		switch r {
		case ' ', '\n', '\r', '\t', '\v', '\f':
			return true
		}
		return false
	})
}

package store

import (
	"hash/fnv"
	"math"
	"strings"
)

// Profile folds keyphrases into a dim-sized vector by feature hashing: each
// phrase and each of its words adds its score to one bucket, with a sign
// taken from the hash. The result is L2-normalized, or all zeros when there
// is nothing to fold.
func Profile(kps []Keyphrase, dim int) []float32 {
	if dim <= 0 {
		return []float32{}
	}
	v := make([]float64, dim)

	add := func(feature string, weight float64) {
		h := fnv.New64a()
		h.Write([]byte(feature))
		sum := h.Sum64()
		sign := 1.0
		if sum&(1<<63) != 0 {
			sign = -1
		}
		v[sum%uint64(dim)] += sign * weight
	}
	for _, kp := range kps {
		add("p:"+kp.Phrase, kp.Score)
		words := strings.Fields(kp.Phrase)
		if len(words) < 2 {
			continue
		}
		for _, w := range words {
			add("w:"+w, kp.Score/float64(len(words)))
		}
	}

	var norm float64
	for _, x := range v {
		norm += x * x
	}
	norm = math.Sqrt(norm)

	out := make([]float32, dim)
	if norm == 0 {
		return out
	}
	for i, x := range v {
		out[i] = float32(x / norm)
	}
	return out
}

package knowledge

import (
	"math"

	apperrors "github.com/aihub/docsearch/internal/errors"
)

// CosineSimilarity 计算两个向量的余弦相似度
// 维度不一致返回 DimensionMismatch；任一向量范数为0时返回0
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, apperrors.NewDimensionMismatchError(len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		x := float64(a[i])
		y := float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// VectorNorm 计算L2范数
func VectorNorm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// NormalizeVector 返回L2归一化后的新向量，零向量原样复制
func NormalizeVector(v []float32) []float32 {
	out := make([]float32, len(v))
	norm := VectorNorm(v)
	if norm == 0 {
		copy(out, v)
		return out
	}
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

func IsZeroVector(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

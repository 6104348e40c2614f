package model

import (
	"cmp"
	"math"
	"slices"

	"github.com/Brownie44l1/vision-api/internal/domain"
)

type scoredClass struct {
	index int
	score float32
}

// rank pairs scores with labels and returns the k best, highest first.
// NaN scores sort after every number; equal scores keep class index order so
// identical outputs always rank identically.
func rank(scores []float32, labels LabelTable, k int) []domain.Prediction {
	classes := make([]scoredClass, len(scores))
	for i, s := range scores {
		classes[i] = scoredClass{index: i, score: s}
	}

	slices.SortStableFunc(classes, compareScores)

	if k > 0 && len(classes) > k {
		classes = classes[:k]
	}

	predictions := make([]domain.Prediction, len(classes))
	for i, c := range classes {
		predictions[i] = domain.Prediction{
			Label:      labels.Label(c.index),
			Confidence: c.score,
		}
	}
	return predictions
}

func compareScores(a, b scoredClass) int {
	aNaN, bNaN := math.IsNaN(float64(a.score)), math.IsNaN(float64(b.score))
	switch {
	case aNaN && bNaN:
	case aNaN:
		return 1
	case bNaN:
		return -1
	default:
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
	}
	return cmp.Compare(a.index, b.index)
}

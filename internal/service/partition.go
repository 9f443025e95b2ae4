package service

import (
	"fmt"
	"math/rand/v2"
)

// UniformShuffle — Фишер–Йейтс из math/rand/v2: все перестановки равновероятны.
func UniformShuffle(n int, swap func(i, j int)) { rand.Shuffle(n, swap) }

// Partition режет список на последовательные куски по size; последний может быть меньше.
func Partition[T any](items []T, size int) [][]T {
	if size <= 0 || len(items) == 0 {
		return nil
	}
	out := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		out = append(out, items[start:end:end])
	}
	return out
}

func teamName(k int) string { return fmt.Sprintf("Team %d", k) }

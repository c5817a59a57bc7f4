package flat

import (
	"context"
	"fmt"
	"sort"

	"github.com/kirillkom/legal-doc-agent/internal/core/domain"
	"github.com/kirillkom/legal-doc-agent/internal/core/ports"
)

// Builder creates exact in-memory indexes: every query is compared with every vector.
type Builder struct{}

func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) Build(_ context.Context, _ string, vectors [][]float32) (ports.VectorIndex, error) {
	if len(vectors) == 0 {
		return nil, fmt.Errorf("flat index: no vectors")
	}
	dimension := len(vectors[0])
	data := make([]float32, 0, len(vectors)*dimension)
	for i, v := range vectors {
		if len(v) != dimension {
			return nil, fmt.Errorf("flat index: vector %d has dimension %d, expected %d", i, len(v), dimension)
		}
		data = append(data, v...)
	}
	return &Index{dimension: dimension, count: len(vectors), data: data}, nil
}

// Index stores vectors row-major in one slice. It is read-only after Build.
type Index struct {
	dimension int
	count     int
	data      []float32
}

// Search returns min(k, count) neighbours by ascending squared L2 distance, ties by ordinal.
func (i *Index) Search(ctx context.Context, query []float32, k int) ([]domain.Neighbor, error) {
	if len(query) != i.dimension {
		return nil, fmt.Errorf("flat index: query dimension %d, expected %d", len(query), i.dimension)
	}
	if k <= 0 {
		return []domain.Neighbor{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	all := make([]domain.Neighbor, i.count)
	for row := 0; row < i.count; row++ {
		vector := i.data[row*i.dimension : (row+1)*i.dimension]
		var distance float32
		for j, v := range vector {
			diff := v - query[j]
			distance += diff * diff
		}
		all[row] = domain.Neighbor{Ordinal: row, Distance: distance}
	}

	sort.SliceStable(all, func(a, b int) bool {
		return all[a].Distance < all[b].Distance
	})
	if k < len(all) {
		all = all[:k]
	}
	return all, nil
}

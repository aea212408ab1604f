package xlsxbatch

import (
	"errors"
	"io"
	"iter"

	"github.com/ukaji3/xlsxbatch-go/pkg/xlsxbatch/models"
)

// NextBatch returns up to BatchSize rows. After the final, possibly short,
// batch it returns io.EOF. A pending header row is taken first.
func (s *Sheet) NextBatch() (*models.Batch, error) {
	batch := models.NewBatch(s.opts.BatchSize)
	for batch.Len() < s.opts.BatchSize {
		row, err := s.NextRow()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		batch.Append(*row)
	}
	if batch.Len() == 0 {
		return nil, io.EOF
	}
	return batch, nil
}

// Batches iterates over the remaining batches. Iteration stops after the
// first error.
func (s *Sheet) Batches() iter.Seq2[*models.Batch, error] {
	return batches(s.NextBatch)
}

func batches(next func() (*models.Batch, error)) iter.Seq2[*models.Batch, error] {
	return func(yield func(*models.Batch, error) bool) {
		for {
			b, err := next()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(b, err) || err != nil {
				return
			}
		}
	}
}

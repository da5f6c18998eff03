package transfer

const (
	// DefaultBatchSize is the number of candidates written per transaction when nothing is configured.
	DefaultBatchSize = 100
	// MaxBatchSize caps a configured batch size.
	MaxBatchSize = 5000
)

// SizeDecision is the batch size a runner settles on for a configured value.
type SizeDecision struct {
	Size      int
	Requested int
	Clamped   bool // Requested was negative or above MaxBatchSize
}

// ResolveBatchSize maps a configured batch size into [1, MaxBatchSize]. Zero selects
// DefaultBatchSize.
func ResolveBatchSize(requested int) SizeDecision {
	d := SizeDecision{Size: requested, Requested: requested}
	switch {
	case requested == 0:
		d.Size = DefaultBatchSize
	case requested < 0:
		d.Size, d.Clamped = DefaultBatchSize, true
	case requested > MaxBatchSize:
		d.Size, d.Clamped = MaxBatchSize, true
	}
	return d
}

// Batches splits ids into consecutive slices of at most size elements, preserving order.
// The returned slices alias ids.
func Batches(ids []int64, size int) [][]int64 {
	if len(ids) == 0 {
		return nil
	}
	if size <= 0 {
		size = DefaultBatchSize
	}
	out := make([][]int64, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		out = append(out, ids[start:end:end])
	}
	return out
}

// Dedupe returns ids with repeated values removed, keeping the first occurrence of each.
func Dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

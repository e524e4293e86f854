package chunk

import "fmt"

type Size uint64

const Megabyte Size = 1024 * 1024

// Human-readable format for size
func (s Size) HumanSize() string {
	val := float64(s)
	units := []string{"B", "KB", "MB", "GB", "TB"}
	i := 0
	for val >= 1024 && i < len(units)-1 {
		val /= 1024
		i++
	}
	return fmt.Sprintf("%.2f %s", val, units[i])
}

func (s Size) MB() uint64 { return uint64(s / Megabyte) }

// Partition splits total into total/capacity chunks of capacity bytes
// followed by one remainder chunk of total%capacity bytes when that is
// nonzero.
func Partition(total, capacity Size) []Size {
	if total == 0 || capacity == 0 {
		return nil
	}
	full := total / capacity
	rem := total % capacity
	sizes := make([]Size, 0, full+1)
	for i := Size(0); i < full; i++ {
		sizes = append(sizes, capacity)
	}
	if rem > 0 {
		sizes = append(sizes, rem)
	}
	return sizes
}

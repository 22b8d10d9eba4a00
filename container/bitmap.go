package container

// Bitmap keeps one flag per slot of a sliding window. Index 0 is always the
// window base; Slide drops the leading set flags and shifts the rest down.
type Bitmap struct {
	data []uint32
}

func NewBitmap(size int) *Bitmap {
	return &Bitmap{data: make([]uint32, size)}
}

func (m *Bitmap) Len() int {
	return len(m.data)
}

func (m *Bitmap) Set(index uint32, value uint32) {
	if value >= 1 {
		value = 1
	}

	m.data[index] = value
}

func (m *Bitmap) Get(index uint32) uint32 {
	if int(index) >= len(m.data) {
		return 0
	}
	return m.data[index]
}

func (m *Bitmap) IsSet(index uint32) bool {
	return m.Get(index) == 1
}

// Slide advances the window past every contiguous set flag starting at index 0
// and returns the number of slots it moved.
func (m *Bitmap) Slide() int {
	n := 0
	for n < len(m.data) && m.data[n] == 1 {
		n++
	}
	if n == 0 {
		return 0
	}
	copy(m.data, m.data[n:])
	for i := len(m.data) - n; i < len(m.data); i++ {
		m.data[i] = 0
	}
	return n
}

func (m *Bitmap) ToNumber() uint32 {
	result := uint32(0)
	for i := 0; i < len(m.data) && i < 32; i++ {
		result |= m.data[i] << i
	}

	return result
}

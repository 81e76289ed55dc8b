package transfer

// Plan делит файл размера size на части по chunkSize байт. Часть i покрывает
// [i*chunkSize, min((i+1)*chunkSize, size)); короче может быть только последняя.
type Plan struct {
	size      int64
	chunkSize int64
	count     int
}

// NewPlan строит план. Для пустого файла или неположительного chunkSize план пуст.
func NewPlan(size, chunkSize int64) Plan {
	if size <= 0 || chunkSize <= 0 {
		return Plan{size: max(size, 0), chunkSize: chunkSize}
	}
	return Plan{
		size:      size,
		chunkSize: chunkSize,
		count:     int((size + chunkSize - 1) / chunkSize),
	}
}

// Len возвращает число частей.
func (p Plan) Len() int { return p.count }

// Size возвращает размер файла.
func (p Plan) Size() int64 { return p.size }

// Range возвращает полуинтервал байт части i.
func (p Plan) Range(i int) (start, end int64) {
	if i < 0 || i >= p.count {
		return 0, 0
	}
	start = int64(i) * p.chunkSize
	end = min(start+p.chunkSize, p.size)
	return start, end
}

// Length возвращает длину части i.
func (p Plan) Length(i int) int64 {
	start, end := p.Range(i)
	return end - start
}

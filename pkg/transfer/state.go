package transfer

import "github.com/sir_venger/chunkload/pkg/uploadproto"

// Phase — стадия загрузки.
type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhaseValidating   Phase = "validating"
	PhaseInitializing Phase = "initializing"
	PhaseUploading    Phase = "uploading"
	PhaseFinalizing   Phase = "finalizing"
	PhaseDone         Phase = "done"
	PhaseError        Phase = "error"
	PhaseCanceled     Phase = "canceled"
)

// ChunkStatus — статус одной части.
type ChunkStatus string

const (
	StatusPending   ChunkStatus = "pending"
	StatusUploading ChunkStatus = "uploading"
	StatusUploaded  ChunkStatus = "uploaded"
	StatusFailed    ChunkStatus = "failed"
)

// Подсказки пользователю после ошибки.
const (
	HintChooseFile     = "choose a different file"
	HintRestart        = "start the upload again"
	HintResume         = "resume to retry failed chunks"
	HintResumeMissing  = "resume to re-send the chunks the server is missing"
	HintRetryFinalize  = "retry finalize, do not re-upload"
	HintResumeCanceled = "resume to continue from the last uploaded chunk"
)

// State — снимок состояния загрузки. Меняет его только Controller.
type State struct {
	Phase         Phase
	SessionID     string
	FileName      string
	TotalBytes    int64
	UploadedBytes int64
	Chunks        []ChunkStatus
	// CurrentChunk хранит индекс последней взятой в работу части, -1 если такой нет.
	CurrentChunk int
	Err          error
	Hint         string
	Preview      *uploadproto.Preview
}

// Progress возвращает долю загруженных байт от 0 до 1.
func (s State) Progress() float64 {
	if s.TotalBytes <= 0 {
		return 0
	}
	return float64(s.UploadedBytes) / float64(s.TotalBytes)
}

// Count возвращает число частей в статусе st.
func (s State) Count(st ChunkStatus) int {
	n := 0
	for _, c := range s.Chunks {
		if c == st {
			n++
		}
	}
	return n
}

func (s State) clone() State {
	out := s
	out.Chunks = append([]ChunkStatus(nil), s.Chunks...)
	return out
}

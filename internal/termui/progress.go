// Package termui рисует состояние загрузки и ответы сервера в терминале.
package termui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/sir_venger/chunkload/pkg/transfer"
)

const (
	progressBarWidth     = 32
	progressRenderPeriod = 120 * time.Millisecond
)

// Progress рисует ASCII-индикатор выполнения загрузки по снимкам transfer.State.
type Progress struct {
	w             io.Writer
	period        time.Duration
	lastRender    time.Time
	lastPhase     transfer.Phase
	lastLineWidth int
	mu            sync.Mutex
}

// NewProgress создаёт индикатор, пишущий в w.
func NewProgress(w io.Writer) *Progress {
	return &Progress{w: w, period: progressRenderPeriod}
}

// Update перерисовывает строку не чаще раза в period. Смена фазы рисуется всегда,
// конечные фазы завершают строку переводом строки.
func (p *Progress) Update(st transfer.State) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	phaseChanged := st.Phase != p.lastPhase
	if !phaseChanged && now.Sub(p.lastRender) < p.period {
		return
	}
	p.lastPhase = st.Phase
	p.lastRender = now

	line := Line(st)
	padding := ""
	if p.lastLineWidth > len(line) {
		padding = strings.Repeat(" ", p.lastLineWidth-len(line))
	}
	p.lastLineWidth = len(line)

	end := ""
	if isTerminal(st.Phase) {
		end = "\n"
		p.lastLineWidth = 0
	}
	fmt.Fprintf(p.w, "\r%s%s%s", line, padding, end)
}

func isTerminal(ph transfer.Phase) bool {
	switch ph {
	case transfer.PhaseDone, transfer.PhaseError, transfer.PhaseCanceled:
		return true
	}
	return false
}

// Line возвращает одну строку статуса без управляющих символов.
func Line(st transfer.State) string {
	var builder strings.Builder
	builder.Grow(len(st.FileName) + 96)
	builder.WriteString(phaseLabel(st.Phase))
	if st.FileName != "" {
		builder.WriteByte(' ')
		builder.WriteString(st.FileName)
	}
	builder.WriteByte(' ')

	ratio := st.Progress()
	if ratio > 1 {
		ratio = 1
	}
	filled := int(ratio*float64(progressBarWidth) + 0.5)
	if filled > progressBarWidth {
		filled = progressBarWidth
	}
	builder.WriteByte('[')
	builder.WriteString(strings.Repeat("=", filled))
	builder.WriteString(strings.Repeat(" ", progressBarWidth-filled))
	builder.WriteString("] ")
	builder.WriteString(fmt.Sprintf("%3d%% ", int(ratio*100+0.5)))
	builder.WriteString(HumanBytes(st.UploadedBytes))
	builder.WriteByte('/')
	builder.WriteString(HumanBytes(st.TotalBytes))

	if n := len(st.Chunks); n > 0 {
		builder.WriteString(fmt.Sprintf(" chunks %d/%d", st.Count(transfer.StatusUploaded), n))
		if failed := st.Count(transfer.StatusFailed); failed > 0 {
			builder.WriteString(fmt.Sprintf(" (%d failed)", failed))
		}
	}

	switch st.Phase {
	case transfer.PhaseDone:
		builder.WriteString(" ✓")
	case transfer.PhaseError, transfer.PhaseCanceled:
		builder.WriteString(" ✗")
		if st.Err != nil {
			builder.WriteString(" ")
			builder.WriteString(st.Err.Error())
		}
	}

	return builder.String()
}

func phaseLabel(ph transfer.Phase) string {
	switch ph {
	case transfer.PhaseValidating:
		return "Checking"
	case transfer.PhaseInitializing:
		return "Opening session for"
	case transfer.PhaseUploading:
		return "Uploading"
	case transfer.PhaseFinalizing:
		return "Assembling"
	case transfer.PhaseDone:
		return "Uploaded"
	case transfer.PhaseCanceled:
		return "Canceled"
	case transfer.PhaseError:
		return "Failed"
	default:
		return "Idle"
	}
}

// HumanBytes форматирует размер в двоичных единицах.
func HumanBytes(v int64) string {
	units := []string{"B", "KB", "MB", "GB", "TB", "PB"}
	value := float64(v)
	unit := 0
	for value >= 1024 && unit < len(units)-1 {
		value /= 1024
		unit++
	}
	if unit == 0 {
		return fmt.Sprintf("%d %s", v, units[unit])
	}
	return fmt.Sprintf("%.1f %s", value, units[unit])
}

package sinks

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/JakeFAU/nga-crawler/internal/progress"
)

const barWidth = 28

// BarSink redraws a single-line progress bar on a terminal for every
// section completion and ends the line when the build finishes.
type BarSink struct {
	out   io.Writer
	drawn bool
}

// NewBarSink renders to out.
func NewBarSink(out io.Writer) *BarSink {
	return &BarSink{out: out}
}

// Consume draws each section event in order.
func (s *BarSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageSectionDone:
			if _, err := fmt.Fprint(s.out, "\r"+RenderBar(evt)); err != nil {
				return fmt.Errorf("draw progress bar: %w", err)
			}
			s.drawn = true
		case progress.StageBuildDone, progress.StageBuildError:
			if err := s.endLine(); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close ends a pending bar line.
func (s *BarSink) Close(context.Context) error {
	return s.endLine()
}

func (s *BarSink) endLine() error {
	if !s.drawn {
		return nil
	}
	s.drawn = false
	if _, err := fmt.Fprintln(s.out); err != nil {
		return fmt.Errorf("end progress bar: %w", err)
	}
	return nil
}

// RenderBar formats one progress line, e.g.
// "抓取子级进度 [██████----] 3/10 已用: 12s 预估: 28s".
func RenderBar(evt progress.Event) string {
	total := max(evt.Total, 1)
	filled := min(barWidth*evt.Done/total, barWidth)
	bar := strings.Repeat("█", filled) + strings.Repeat("-", barWidth-filled)
	eta := "--"
	if evt.HasETA {
		eta = FormatDuration(evt.ETA)
	}
	return fmt.Sprintf("抓取子级进度 [%s] %d/%d 已用: %s 预估: %s", bar, evt.Done, evt.Total, FormatDuration(evt.Elapsed), eta)
}

// FormatDuration renders d as "45s", "3m07s" or "1h05m".
func FormatDuration(d time.Duration) string {
	sec := int(max(d, 0) / time.Second)
	switch {
	case sec >= 3600:
		return fmt.Sprintf("%dh%02dm", sec/3600, sec%3600/60)
	case sec >= 60:
		return fmt.Sprintf("%dm%02ds", sec/60, sec%60)
	default:
		return fmt.Sprintf("%ds", sec)
	}
}

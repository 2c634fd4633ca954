// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	applog "spectro/internal/log"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

var logRec = applog.With("Recorder")

// recorderBlocks is the number of host blocks that can wait for the writer.
const recorderBlocks = 32

// Recorder writes interleaved float32 blocks to a WAV file from its own
// goroutine. The audio thread only copies into a free block and queues it;
// when the writer falls behind, blocks are dropped.
type Recorder struct {
	file     *os.File
	encoder  *wav.Encoder
	sample   *audio.IntBuffer
	scale    float64
	bitDepth int

	free   chan []float32
	filled chan []float32
	done   chan struct{}
	wg     sync.WaitGroup

	closeOnce sync.Once
	written   atomic.Uint64
	dropped   atomic.Uint64
	err       error
}

// NewRecorder creates filename and starts the writer. blockSize is the
// largest block, in samples, that write accepts.
func NewRecorder(filename string, sampleRate float64, channels, bitDepth, blockSize int) (*Recorder, error) {
	switch bitDepth {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("unsupported bit depth %d", bitDepth)
	}
	if channels < 1 || blockSize < 1 {
		return nil, fmt.Errorf("invalid recording shape %d channels, %d samples", channels, blockSize)
	}

	file, err := os.Create(filename)
	if err != nil {
		return nil, err
	}

	r := &Recorder{
		file:     file,
		encoder:  wav.NewEncoder(file, int(sampleRate), bitDepth, channels, 1),
		scale:    float64(int64(1)<<(bitDepth-1) - 1),
		bitDepth: bitDepth,
		sample: &audio.IntBuffer{
			Format: &audio.Format{
				NumChannels: channels,
				SampleRate:  int(sampleRate),
			},
			Data:           make([]int, blockSize),
			SourceBitDepth: bitDepth,
		},
		free:   make(chan []float32, recorderBlocks),
		filled: make(chan []float32, recorderBlocks),
		done:   make(chan struct{}),
	}
	for range recorderBlocks {
		r.free <- make([]float32, 0, blockSize)
	}

	r.wg.Add(1)
	go r.run()
	logRec.Infof("Recording to %s (%d-bit, %d ch, %.0f Hz)", filename, bitDepth, channels, sampleRate)
	return r, nil
}

// write queues a copy of block without blocking.
func (r *Recorder) write(block []float32) {
	select {
	case buf := <-r.free:
		if cap(buf) < len(block) {
			r.free <- buf
			r.dropped.Add(1)
			return
		}
		buf = append(buf[:0], block...)
		select {
		case r.filled <- buf:
		default:
			r.dropped.Add(1)
		}
	default:
		r.dropped.Add(1)
	}
}

func (r *Recorder) run() {
	defer r.wg.Done()
	for {
		select {
		case buf := <-r.filled:
			r.encode(buf)
		case <-r.done:
			// Drain what was queued before Close.
			for {
				select {
				case buf := <-r.filled:
					r.encode(buf)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) encode(buf []float32) {
	if r.err == nil {
		data := r.sample.Data[:len(buf)]
		for i, s := range buf {
			v := math.Round(float64(max(-1, min(s, 1))) * r.scale)
			data[i] = int(v)
		}
		r.sample.Data = data
		if err := r.encoder.Write(r.sample); err != nil {
			r.err = err
			logRec.Errorf("Error writing to WAV file: %v", err)
		} else {
			r.written.Add(uint64(len(buf)))
		}
	}
	r.free <- buf[:0]
}

// Written returns the number of samples encoded.
func (r *Recorder) Written() uint64 {
	return r.written.Load()
}

// Dropped returns the number of blocks lost to a slow writer.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

// Close flushes queued blocks and finalises the WAV header.
func (r *Recorder) Close() error {
	var err error
	r.closeOnce.Do(func() {
		close(r.done)
		r.wg.Wait()
		err = errors.Join(r.err, r.encoder.Close(), r.file.Close())
		logRec.Infof("Recording closed (%d samples, %d blocks dropped)", r.written.Load(), r.dropped.Load())
	})
	return err
}

// RecordingFilename returns a timestamped WAV path inside dir.
func RecordingFilename(dir string, now time.Time) string {
	return filepath.Join(dir, "spectro-"+now.Format("20060102-150405")+".wav")
}

// StartRecording begins writing the input stream to filename at bitDepth.
func (e *Engine) StartRecording(filename string, bitDepth int) error {
	if e.recorder.Load() != nil {
		return errors.New("already recording")
	}
	r, err := NewRecorder(filename, e.cfg.SampleRate, e.cfg.InputChannels, bitDepth, len(e.inputBuffer))
	if err != nil {
		return err
	}
	if !e.recorder.CompareAndSwap(nil, r) {
		r.Close()
		return errors.New("already recording")
	}
	return nil
}

// StopRecording finishes the current recording, if any.
func (e *Engine) StopRecording() error {
	r := e.recorder.Swap(nil)
	if r == nil {
		return nil
	}
	return r.Close()
}

// Recording reports whether a recording is in progress.
func (e *Engine) Recording() bool {
	return e.recorder.Load() != nil
}

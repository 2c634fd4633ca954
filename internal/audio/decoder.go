// SPDX-License-Identifier: MIT
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	"github.com/mewkiz/flac"
)

// Decoder streams a file as interleaved float32 samples in [-1, 1].
type Decoder interface {
	// Read fills dst with whole frames and returns the number of samples
	// written. It returns io.EOF once the stream is exhausted.
	Read(dst []float32) (int, error)
	Channels() int
	SampleRate() float64
	io.Closer
}

// OpenFile picks a decoder by file extension: .wav, .mp3, .flac or .ogg.
func OpenFile(path string) (Decoder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	var dec Decoder
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".wav":
		dec, err = newWAVDecoder(f)
	case ".mp3":
		dec, err = newMP3Decoder(f)
	case ".flac":
		dec, err = newFLACDecoder(f)
	case ".ogg":
		dec, err = newOGGDecoder(f)
	default:
		err = fmt.Errorf("unsupported format: %s", ext)
	}
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return dec, nil
}

// frameAligned trims n samples down to whole frames.
func frameAligned(n, channels int) int {
	return n - n%channels
}

// --- WAV decoder ---

type wavDecoder struct {
	file     *os.File
	dec      *wav.Decoder
	buf      *audio.IntBuffer
	channels int
	rate     float64
	scale    float32
	offset   int // 8-bit WAV is unsigned
}

func newWAVDecoder(f *os.File) (*wavDecoder, error) {
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, errors.New("invalid WAV file")
	}
	if err := dec.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("reading WAV PCM data: %w", err)
	}

	channels := int(dec.NumChans)
	bitDepth := int(dec.BitDepth)
	if channels < 1 || bitDepth < 8 || bitDepth > 32 {
		return nil, fmt.Errorf("unsupported WAV layout: %d channels, %d bits", channels, bitDepth)
	}

	d := &wavDecoder{
		file:     f,
		dec:      dec,
		channels: channels,
		rate:     float64(dec.SampleRate),
		scale:    1 / float32(int64(1)<<(bitDepth-1)),
		buf: &audio.IntBuffer{
			Format: &audio.Format{NumChannels: channels, SampleRate: int(dec.SampleRate)},
		},
	}
	if bitDepth == 8 {
		d.offset = 128
	}
	return d, nil
}

func (d *wavDecoder) Read(dst []float32) (int, error) {
	want := frameAligned(len(dst), d.channels)
	if want == 0 {
		return 0, nil
	}
	if cap(d.buf.Data) < want {
		d.buf.Data = make([]int, want)
	}
	d.buf.Data = d.buf.Data[:want]

	n, err := d.dec.PCMBuffer(d.buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, err
	}
	n = frameAligned(n, d.channels)
	if n == 0 {
		return 0, io.EOF
	}
	for i, s := range d.buf.Data[:n] {
		dst[i] = float32(s-d.offset) * d.scale
	}
	return n, nil
}

func (d *wavDecoder) Channels() int       { return d.channels }
func (d *wavDecoder) SampleRate() float64 { return d.rate }
func (d *wavDecoder) Close() error        { return d.file.Close() }

// --- MP3 decoder ---

// go-mp3 always yields 16-bit little-endian stereo.
type mp3Decoder struct {
	file *os.File
	dec  *mp3.Decoder
	raw  []byte
}

func newMP3Decoder(f *os.File) (*mp3Decoder, error) {
	dec, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, err
	}
	return &mp3Decoder{file: f, dec: dec}, nil
}

func (d *mp3Decoder) Read(dst []float32) (int, error) {
	want := frameAligned(len(dst), 2)
	if want == 0 {
		return 0, nil
	}
	if cap(d.raw) < 2*want {
		d.raw = make([]byte, 2*want)
	}
	raw := d.raw[:2*want]

	n, err := io.ReadFull(d.dec, raw)
	samples := frameAligned(n/2, 2)
	for i := range samples {
		dst[i] = float32(int16(binary.LittleEndian.Uint16(raw[2*i:]))) / 32768
	}
	if samples > 0 {
		return samples, nil
	}
	if err == nil || errors.Is(err, io.ErrUnexpectedEOF) {
		err = io.EOF
	}
	return 0, err
}

func (d *mp3Decoder) Channels() int       { return 2 }
func (d *mp3Decoder) SampleRate() float64 { return float64(d.dec.SampleRate()) }
func (d *mp3Decoder) Close() error        { return d.file.Close() }

// --- FLAC decoder ---

type flacDecoder struct {
	file     *os.File
	stream   *flac.Stream
	pending  []float32 // Decoded samples not yet returned.
	channels int
	rate     float64
	scale    float32
}

func newFLACDecoder(f *os.File) (*flacDecoder, error) {
	stream, err := flac.New(f)
	if err != nil {
		return nil, fmt.Errorf("decoding FLAC: %w", err)
	}
	info := stream.Info
	return &flacDecoder{
		file:     f,
		stream:   stream,
		channels: int(info.NChannels),
		rate:     float64(info.SampleRate),
		scale:    1 / float32(int64(1)<<(info.BitsPerSample-1)),
	}, nil
}

func (d *flacDecoder) Read(dst []float32) (int, error) {
	if len(d.pending) == 0 {
		frame, err := d.stream.ParseNext()
		if err != nil {
			return 0, err // io.EOF at the end of the stream
		}
		samples := int(frame.Subframes[0].NSamples)
		need := samples * d.channels
		if cap(d.pending) < need {
			d.pending = make([]float32, need)
		}
		d.pending = d.pending[:need]
		for i := range samples {
			for ch := range d.channels {
				d.pending[i*d.channels+ch] = float32(frame.Subframes[ch].Samples[i]) * d.scale
			}
		}
	}

	n := frameAligned(min(len(dst), len(d.pending)), d.channels)
	copy(dst, d.pending[:n])
	d.pending = d.pending[n:]
	return n, nil
}

func (d *flacDecoder) Channels() int       { return d.channels }
func (d *flacDecoder) SampleRate() float64 { return d.rate }
func (d *flacDecoder) Close() error        { return d.file.Close() }

// --- OGG Vorbis decoder ---

type oggDecoder struct {
	file   *os.File
	reader *oggvorbis.Reader
}

func newOGGDecoder(f *os.File) (*oggDecoder, error) {
	reader, err := oggvorbis.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("decoding OGG: %w", err)
	}
	return &oggDecoder{file: f, reader: reader}, nil
}

func (d *oggDecoder) Read(dst []float32) (int, error) {
	want := frameAligned(len(dst), d.reader.Channels())
	if want == 0 {
		return 0, nil
	}
	n, err := d.reader.Read(dst[:want])
	if n > 0 {
		return n, nil
	}
	if err == nil {
		err = io.EOF
	}
	return 0, err
}

func (d *oggDecoder) Channels() int       { return d.reader.Channels() }
func (d *oggDecoder) SampleRate() float64 { return float64(d.reader.SampleRate()) }
func (d *oggDecoder) Close() error        { return d.file.Close() }

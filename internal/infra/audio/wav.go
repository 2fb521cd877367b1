// Package audio provides media resources backed by local WAV files.
package audio

import (
	"encoding/binary"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Errors
var (
	ErrUnsupportedSource = errors.New("unsupported source")
	ErrInvalidWAV        = errors.New("invalid wav file")
	ErrFormatMismatch    = errors.New("wav format does not match output")
)

// LocalPath resolves uri to a local WAV path. Plain paths and file:// URIs
// ending in .wav are accepted.
func LocalPath(uri string) (string, error) {
	path := strings.TrimPrefix(uri, "file://")
	if path == "" || strings.Contains(path, "://") {
		return "", errors.Wrapf(ErrUnsupportedSource, "%q", uri)
	}
	if !strings.EqualFold(filepath.Ext(path), ".wav") {
		return "", errors.Wrapf(ErrUnsupportedSource, "%q is not a wav file", uri)
	}
	return path, nil
}

// Probe returns the duration of the WAV file at uri in seconds.
func Probe(uri string) (float64, error) {
	path, err := LocalPath(uri)
	if err != nil {
		return 0, err
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, errors.Wrap(err, "failed to open source")
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return 0, errors.Wrapf(ErrInvalidWAV, "%s", path)
	}

	dur, err := decoder.Duration()
	if err != nil {
		return 0, errors.Wrap(err, "failed to read duration")
	}
	return dur.Seconds(), nil
}

// pcm is a decoded WAV source as signed 16-bit little-endian frames.
type pcm struct {
	data        []byte
	sampleRate  int
	numChannels int
}

// bytesPerSecond returns the byte rate of the decoded stream.
func (p *pcm) bytesPerSecond() int {
	return p.sampleRate * p.numChannels * 2
}

// frameSize returns the size of one frame in bytes.
func (p *pcm) frameSize() int {
	return p.numChannels * 2
}

// duration returns the stream length in seconds.
func (p *pcm) duration() float64 {
	return float64(len(p.data)) / float64(p.bytesPerSecond())
}

// offsetAt returns the byte offset of seconds, aligned down to a frame and
// clamped to the stream.
func (p *pcm) offsetAt(seconds float64) int64 {
	if math.IsNaN(seconds) || seconds <= 0 {
		return 0
	}
	frame := int64(p.frameSize())
	end := int64(len(p.data)) / frame * frame
	if seconds >= p.duration() {
		return end
	}
	return int64(seconds*float64(p.bytesPerSecond())) / frame * frame
}

// positionAt returns the audible position in seconds when offset bytes have
// been read and buffered of them are still queued for output.
func (p *pcm) positionAt(offset, buffered int64) float64 {
	played := offset - buffered
	if played < 0 {
		played = 0
	}
	return float64(played) / float64(p.bytesPerSecond())
}

// decodePCM decodes the WAV file at uri into 16-bit PCM.
func decodePCM(uri string) (*pcm, error) {
	path, err := LocalPath(uri)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open source")
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return nil, errors.Wrapf(ErrInvalidWAV, "%s", path)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode pcm")
	}

	data, err := toInt16LE(buf)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	return &pcm{
		data:        data,
		sampleRate:  buf.Format.SampleRate,
		numChannels: buf.Format.NumChannels,
	}, nil
}

// toInt16LE converts decoded integer samples to signed 16-bit little endian.
func toInt16LE(buf *goaudio.IntBuffer) ([]byte, error) {
	var shift int
	switch buf.SourceBitDepth {
	case 16:
		shift = 0
	case 24:
		shift = 8
	case 32:
		shift = 16
	default:
		return nil, errors.Newf("unsupported bit depth %d", buf.SourceBitDepth)
	}

	out := make([]byte, len(buf.Data)*2)
	for i, s := range buf.Data {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(s>>shift)))
	}
	return out, nil
}

// pcmReader serves decoded PCM to oto. The offset is read concurrently by
// the progress ticker.
type pcmReader struct {
	data []byte
	off  atomic.Int64
}

func (p *pcmReader) Read(b []byte) (int, error) {
	off := p.off.Load()
	if off >= int64(len(p.data)) {
		return 0, io.EOF
	}
	n := copy(b, p.data[off:])
	p.off.Add(int64(n))
	return n, nil
}

func (p *pcmReader) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = p.off.Load() + offset
	case io.SeekEnd:
		abs = int64(len(p.data)) + offset
	default:
		return 0, errors.Newf("invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, errors.New("negative position")
	}
	if abs > int64(len(p.data)) {
		abs = int64(len(p.data))
	}
	p.off.Store(abs)
	return abs, nil
}

func (p *pcmReader) offset() int64 {
	return p.off.Load()
}

func (p *pcmReader) exhausted() bool {
	return p.off.Load() >= int64(len(p.data))
}

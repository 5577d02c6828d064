// Package audioconv turns voice attachments (OGG/Opus, OGG/Vorbis, MP3, WAV)
// into 16 kHz mono float32 PCM, the input format speech models expect.
package audioconv

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	popus "github.com/pekim/opus"
)

const SampleRate = 16000

type Format string

const (
	FormatUnknown Format = ""
	FormatWAV     Format = "wav"
	FormatMP3     Format = "mp3"
	FormatOgg     Format = "ogg"
)

var ErrUnsupported = errors.New("unsupported audio format")

type Options struct {
	// MaxSamples truncates the output; 0 keeps everything.
	MaxSamples int
}

// ConvertFileToPCM16k decodes the file at path. The extension is used as a
// hint; when it is missing or unknown the header is sniffed.
func ConvertFileToPCM16k(ctx context.Context, path string, opt Options) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Decode(ctx, f, formatFromExt(path), opt)
}

// Decode converts r to 16 kHz mono PCM. hint may be FormatUnknown.
func Decode(ctx context.Context, r io.ReadSeeker, hint Format, opt Options) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	format := hint
	if format == FormatUnknown {
		sniffed, err := Sniff(r)
		if err != nil {
			return nil, err
		}
		format = sniffed
	}

	var (
		pcm []float32
		err error
	)
	switch format {
	case FormatWAV:
		pcm, err = decodeWAV(r)
	case FormatMP3:
		pcm, err = decodeMP3(r)
	case FormatOgg:
		pcm, err = decodeOgg(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, format)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", format, err)
	}

	if opt.MaxSamples > 0 && len(pcm) > opt.MaxSamples {
		pcm = pcm[:opt.MaxSamples]
	}
	return pcm, nil
}

// Sniff inspects the container magic and rewinds r.
func Sniff(r io.ReadSeeker) (Format, error) {
	magic, _ := bufio.NewReader(r).Peek(4)
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return FormatUnknown, err
	}

	switch {
	case string(magic) == "RIFF":
		return FormatWAV, nil
	case string(magic) == "OggS":
		return FormatOgg, nil
	case len(magic) >= 3 && string(magic[:3]) == "ID3":
		return FormatMP3, nil
	case len(magic) >= 2 && magic[0] == 0xFF && magic[1]&0xE0 == 0xE0:
		return FormatMP3, nil
	default:
		return FormatUnknown, fmt.Errorf("%w: unrecognised header %q", ErrUnsupported, magic)
	}
}

func formatFromExt(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return FormatWAV
	case ".mp3":
		return FormatMP3
	case ".ogg", ".oga", ".opus":
		return FormatOgg
	default:
		return FormatUnknown
	}
}

func decodeWAV(r io.ReadSeeker) ([]float32, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, errors.New("invalid wav")
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, err
	}
	if buf == nil || len(buf.Data) == 0 {
		return nil, errors.New("empty wav")
	}

	depth := int(dec.BitDepth)
	if depth == 0 {
		depth = 16
	}

	channels, rate := 1, 44100
	if buf.Format != nil {
		if buf.Format.NumChannels > 0 {
			channels = buf.Format.NumChannels
		}
		if buf.Format.SampleRate > 0 {
			rate = buf.Format.SampleRate
		}
	}

	return toMono16k(intsToFloat(buf.Data, depth), channels, rate), nil
}

func decodeMP3(r io.Reader) ([]float32, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, err
	}

	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, err
	}

	// go-mp3 always yields 16-bit little-endian stereo frames.
	samples := make([]int16, len(raw)/2)
	if err := binary.Read(bytes.NewReader(raw[:len(samples)*2]), binary.LittleEndian, samples); err != nil {
		return nil, err
	}

	rate := dec.SampleRate()
	if rate <= 0 {
		rate = 44100
	}
	return toMono16k(int16sToFloat(samples), 2, rate), nil
}

// decodeOgg tries Vorbis first, then Opus (Telegram voice notes are Opus).
func decodeOgg(r io.ReadSeeker) ([]float32, error) {
	pcm, vorbisErr := decodeVorbis(r)
	if vorbisErr == nil {
		return pcm, nil
	}

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	pcm, opusErr := decodeOpus(r)
	if opusErr != nil {
		return nil, fmt.Errorf("not vorbis (%v), not opus (%w)", vorbisErr, opusErr)
	}
	return pcm, nil
}

func decodeVorbis(r io.Reader) ([]float32, error) {
	pcm, format, err := oggvorbis.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if format == nil || format.Channels <= 0 || format.SampleRate <= 0 {
		return nil, errors.New("invalid vorbis stream")
	}
	return toMono16k(pcm, format.Channels, format.SampleRate), nil
}

func decodeOpus(r io.ReadSeeker) ([]float32, error) {
	dec, err := popus.NewDecoder(r)
	if err != nil {
		return nil, err
	}
	defer dec.Destroy()

	channels := dec.ChannelCount()
	if channels <= 0 {
		channels = 1
	}

	// Opus always decodes at 48 kHz. Read roughly half a second per call.
	const opusRate = 48000
	chunk := make([]int16, opusRate/2*channels)

	var pcm []float32
	for {
		n, err := dec.Read(chunk)
		if n > 0 {
			pcm = append(pcm, int16sToFloat(chunk[:n*channels])...)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
	}

	if len(pcm) == 0 {
		return nil, errors.New("empty opus stream")
	}
	return toMono16k(pcm, channels, opusRate), nil
}

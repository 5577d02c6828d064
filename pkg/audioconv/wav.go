package audioconv

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WriteWAV encodes 16 kHz mono PCM as 16-bit PCM WAV.
func WriteWAV(w io.WriteSeeker, pcm []float32) error {
	enc := wav.NewEncoder(w, SampleRate, 16, 1, 1)

	data := make([]int, len(pcm))
	for i, s := range pcm {
		data[i] = floatToInt16(s)
	}

	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: SampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}
	return enc.Close()
}

// TranscodeFile decodes src and writes a 16 kHz mono WAV to dst.
func TranscodeFile(ctx context.Context, src, dst string) error {
	pcm, err := ConvertFileToPCM16k(ctx, src, Options{})
	if err != nil {
		return err
	}
	if len(pcm) == 0 {
		return fmt.Errorf("%s: no audio samples", src)
	}

	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	if err := WriteWAV(f, pcm); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

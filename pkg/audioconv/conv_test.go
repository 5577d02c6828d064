package audioconv

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

func writeTestWAV(t *testing.T, path string, rate, channels int, seconds float64) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	frames := int(float64(rate) * seconds)
	data := make([]int, frames*channels)
	for i := 0; i < frames; i++ {
		v := int(8000 * math.Sin(2*math.Pi*440*float64(i)/float64(rate)))
		for c := 0; c < channels; c++ {
			data[i*channels+c] = v
		}
	}

	enc := wav.NewEncoder(f, rate, 16, channels, 1)
	if err := enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	}); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestConvertFileToPCM16k_WAVStereo48k(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.wav")
	writeTestWAV(t, path, 48000, 2, 0.5)

	pcm, err := ConvertFileToPCM16k(context.Background(), path, Options{})
	if err != nil {
		t.Fatalf("convert: %v", err)
	}

	if want := 8000; abs(len(pcm)-want) > 2 {
		t.Errorf("samples: got %d, want ~%d", len(pcm), want)
	}

	var peak float32
	for _, s := range pcm {
		if s > peak {
			peak = s
		}
	}
	if peak < 0.2 || peak > 0.3 {
		t.Errorf("peak amplitude: got %.3f, want ~0.244", peak)
	}
}

func TestConvertFileToPCM16k_SniffsWithoutExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voice")
	writeTestWAV(t, path, 16000, 1, 0.25)

	pcm, err := ConvertFileToPCM16k(context.Background(), path, Options{MaxSamples: 1000})
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if len(pcm) != 1000 {
		t.Errorf("MaxSamples: got %d samples, want 1000", len(pcm))
	}
}

func TestDecode_Unsupported(t *testing.T) {
	_, err := Decode(context.Background(), bytes.NewReader([]byte("hello world")), FormatUnknown, Options{})
	if !errors.Is(err, ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
}

func TestSniff(t *testing.T) {
	tests := []struct {
		name  string
		head  []byte
		want  Format
		fails bool
	}{
		{"wav", []byte("RIFF....WAVE"), FormatWAV, false},
		{"ogg", []byte("OggS\x00\x02"), FormatOgg, false},
		{"mp3 id3", []byte("ID3\x04"), FormatMP3, false},
		{"mp3 frame", []byte{0xFF, 0xFB, 0x90, 0x00}, FormatMP3, false},
		{"text", []byte("text"), FormatUnknown, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := bytes.NewReader(tt.head)
			got, err := Sniff(r)
			if (err != nil) != tt.fails {
				t.Fatalf("error: %v", err)
			}
			if got != tt.want {
				t.Errorf("format: got %q, want %q", got, tt.want)
			}
			if pos, _ := r.Seek(0, 1); pos != 0 {
				t.Errorf("reader not rewound, at %d", pos)
			}
		})
	}
}

func TestTranscodeFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.wav")
	dst := filepath.Join(dir, "out.wav")
	writeTestWAV(t, src, 44100, 2, 1)

	if err := TranscodeFile(context.Background(), src, dst); err != nil {
		t.Fatalf("transcode: %v", err)
	}

	f, err := os.Open(dst)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("decoding output: %v", err)
	}
	if buf.Format.SampleRate != SampleRate || buf.Format.NumChannels != 1 {
		t.Errorf("output format: got %d Hz x %d ch", buf.Format.SampleRate, buf.Format.NumChannels)
	}
	if abs(len(buf.Data)-SampleRate) > 2 {
		t.Errorf("output samples: got %d, want ~%d", len(buf.Data), SampleRate)
	}
}

func TestDownmix(t *testing.T) {
	got := downmix([]float32{1, 0, 0.5, 0.5, -1, 1}, 2)
	want := []float32{0.5, 0.5, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("downmix: got %v, want %v", got, want)
		}
	}
}

func TestResample(t *testing.T) {
	in := make([]float32, 48)
	for i := range in {
		in[i] = float32(i)
	}

	out := resample(in, 48000, 16000)
	if len(out) != 16 {
		t.Fatalf("length: got %d, want 16", len(out))
	}
	for i, v := range out {
		if v != float32(i*3) {
			t.Errorf("out[%d] = %v, want %v", i, v, i*3)
		}
	}

	if same := resample(in, 16000, 16000); len(same) != len(in) {
		t.Errorf("identity resample changed length")
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

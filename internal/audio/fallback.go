package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	mp3 "github.com/hajimehoshi/go-mp3"
)

// mixFallback decodes the segments in pure Go and writes a single WAV with
// silence gaps between segments. MP3 input goes through go-mp3; WAV input
// has its PCM copied straight through. No intro, outro or music: when
// ffmpeg is gone, a plain listenable file beats no episode at all.
func (m *Mixer) mixFallback(paths []string, outputPath string) (*MixResult, error) {
	wavPath := strings.TrimSuffix(outputPath, filepath.Ext(outputPath)) + ".wav"

	out, err := os.Create(wavPath)
	if err != nil {
		return nil, fmt.Errorf("create fallback output: %w", err)
	}
	defer out.Close()

	// Reserve the header; rewritten once the data size is known.
	if _, err := out.Write(make([]byte, 44)); err != nil {
		return nil, fmt.Errorf("write wav header: %w", err)
	}

	var (
		sampleRate int
		channels   int
		dataBytes  int64
		mixed      int
	)

	for _, p := range paths {
		n, rate, ch, err := m.appendDecoded(out, p)
		if err != nil {
			m.logger.Warn("fallback decode failed for segment", "path", p, "error", err)
			continue
		}
		if sampleRate == 0 {
			sampleRate, channels = rate, ch
		} else if rate != sampleRate || ch != channels {
			// All output shares one fmt chunk; a stray odd segment
			// would play at the wrong speed, so drop it.
			m.logger.Warn("segment stream differs from episode, skipping",
				"path", p, "rate", rate, "channels", ch)
			continue
		}

		dataBytes += n
		mixed++

		gap := silenceBytes(sampleRate, channels, m.pauseMs)
		if _, err := out.Write(gap); err != nil {
			return nil, fmt.Errorf("write gap: %w", err)
		}
		dataBytes += int64(len(gap))
	}

	if mixed == 0 {
		os.Remove(wavPath)
		return nil, fmt.Errorf("no segments could be decoded")
	}

	if channels == 0 {
		channels = 2
	}
	if err := writeWAVHeader(out, sampleRate, channels, dataBytes); err != nil {
		return nil, err
	}

	// 16-bit PCM.
	duration := float64(dataBytes) / float64(sampleRate*channels*2)
	return &MixResult{Path: wavPath, DurationSeconds: duration, SegmentsMixed: mixed}, nil
}

// appendDecoded streams one segment's PCM into w, returning bytes written,
// sample rate and channel count. MP3 decoding reads from disk, so only one
// frame's worth of audio is resident at a time.
func (m *Mixer) appendDecoded(w io.Writer, path string) (int64, int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, 0, err
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".wav") {
		return copyWAVData(w, f)
	}

	dec, err := mp3.NewDecoder(f)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("decode mp3: %w", err)
	}

	// go-mp3 always emits 16-bit stereo.
	n, err := io.Copy(w, dec)
	if err != nil {
		return n, dec.SampleRate(), 2, fmt.Errorf("copy pcm: %w", err)
	}
	return n, dec.SampleRate(), 2, nil
}

// copyWAVData walks the RIFF chunks of r and copies the data chunk's PCM
// into w. Only 16-bit integer PCM is accepted.
func copyWAVData(w io.Writer, r io.Reader) (int64, int, int, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return 0, 0, 0, fmt.Errorf("read riff header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return 0, 0, 0, fmt.Errorf("not a wav file")
	}

	var (
		sampleRate int
		channels   int
	)
	for {
		var chunk [8]byte
		if _, err := io.ReadFull(r, chunk[:]); err != nil {
			return 0, 0, 0, fmt.Errorf("read chunk header: %w", err)
		}
		id := string(chunk[0:4])
		size := int64(binary.LittleEndian.Uint32(chunk[4:8]))

		switch id {
		case "fmt ":
			var f [16]byte
			if _, err := io.ReadFull(r, f[:]); err != nil {
				return 0, 0, 0, fmt.Errorf("read fmt chunk: %w", err)
			}
			format := binary.LittleEndian.Uint16(f[0:2])
			bits := binary.LittleEndian.Uint16(f[14:16])
			if format != 1 || bits != 16 {
				return 0, 0, 0, fmt.Errorf("unsupported wav encoding: format %d, %d bits", format, bits)
			}
			channels = int(binary.LittleEndian.Uint16(f[2:4]))
			sampleRate = int(binary.LittleEndian.Uint32(f[4:8]))
			if size > 16 {
				if _, err := io.CopyN(io.Discard, r, size-16); err != nil {
					return 0, 0, 0, err
				}
			}
		case "data":
			if sampleRate == 0 {
				return 0, 0, 0, fmt.Errorf("data chunk before fmt chunk")
			}
			n, err := io.CopyN(w, r, size)
			if err != nil {
				return n, sampleRate, channels, fmt.Errorf("copy wav pcm: %w", err)
			}
			return n, sampleRate, channels, nil
		default:
			if size%2 == 1 {
				size++ // chunks are word aligned
			}
			if _, err := io.CopyN(io.Discard, r, size); err != nil {
				return 0, 0, 0, err
			}
		}
	}
}

func silenceBytes(sampleRate, channels, ms int) []byte {
	if sampleRate == 0 {
		sampleRate = 44100
	}
	if channels == 0 {
		channels = 2
	}
	samples := sampleRate * ms / 1000
	return make([]byte, samples*channels*2)
}

func writeWAVHeader(f *os.File, sampleRate, channels int, dataBytes int64) error {
	if sampleRate == 0 {
		sampleRate = 44100
	}

	blockAlign := channels * 2
	var header [44]byte
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+dataBytes))
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(header[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(sampleRate*blockAlign))
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], 16) // bits per sample
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(dataBytes))

	if _, err := f.WriteAt(header[:], 0); err != nil {
		return fmt.Errorf("rewrite wav header: %w", err)
	}
	return nil
}

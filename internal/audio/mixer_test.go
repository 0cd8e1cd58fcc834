package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConcatListOrdering(t *testing.T) {
	dir := t.TempDir()
	intro := writeDummy(t, dir, "intro.mp3")
	outro := writeDummy(t, dir, "outro.mp3")
	gap := writeDummy(t, dir, "gap.mp3")
	seg0 := writeDummy(t, dir, "segment_0000.mp3")
	seg1 := writeDummy(t, dir, "segment_0001.mp3")

	list := concatList(intro, outro, gap, []string{seg0, seg1})
	lines := strings.Split(strings.TrimSpace(list), "\n")

	want := []string{
		"file '" + intro + "'",
		"file '" + gap + "'",
		"file '" + seg0 + "'",
		"file '" + gap + "'",
		"file '" + seg1 + "'",
		"file '" + gap + "'",
		"file '" + outro + "'",
	}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d:\n%s", len(lines), len(want), list)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestConcatListSkipsMissingIntroOutro(t *testing.T) {
	dir := t.TempDir()
	gap := writeDummy(t, dir, "gap.mp3")
	seg := writeDummy(t, dir, "segment_0000.mp3")

	list := concatList(filepath.Join(dir, "missing.mp3"), "", gap, []string{seg})
	if strings.Contains(list, "missing.mp3") {
		t.Errorf("concat list references a missing intro:\n%s", list)
	}
	lines := strings.Split(strings.TrimSpace(list), "\n")
	if len(lines) != 2 {
		t.Errorf("got %d lines, want 2 (gap + segment)", len(lines))
	}
}

func TestConcatListEscapesQuotes(t *testing.T) {
	list := concatList("", "", "/tmp/gap.mp3", []string{"/tmp/it's.mp3"})
	if !strings.Contains(list, `'\''`) {
		t.Errorf("single quote not escaped:\n%s", list)
	}
}

func TestFadeArgsOnlyWithoutOutro(t *testing.T) {
	args := fadeArgs("in.mp3", "out.mp3", 10)
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "afade=t=out:st=9.500:d=0.500") {
		t.Errorf("fade filter wrong: %s", joined)
	}
}

func TestFadeArgsShortAudioClampsToZero(t *testing.T) {
	args := fadeArgs("in.mp3", "out.mp3", 0.2)
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "st=0.000") {
		t.Errorf("fade start not clamped: %s", joined)
	}
}

func TestMusicArgsVolumeAndLoop(t *testing.T) {
	args := musicArgs("voice.mp3", "music.mp3", "out.mp3", 0.1)
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "volume=0.100") {
		t.Errorf("music volume missing: %s", joined)
	}
	if !strings.Contains(joined, "-stream_loop -1") {
		t.Errorf("music loop missing: %s", joined)
	}
	if !strings.Contains(joined, "duration=first") {
		t.Errorf("music not truncated to voice duration: %s", joined)
	}
}

func TestExistingFilesFiltersMissingAndEmpty(t *testing.T) {
	dir := t.TempDir()
	present := writeDummy(t, dir, "a.mp3")

	got := existingFiles([]string{present, filepath.Join(dir, "gone.mp3"), ""})
	if len(got) != 1 || got[0] != present {
		t.Errorf("existingFiles = %v", got)
	}
}

func TestSilenceBytesLength(t *testing.T) {
	// 400ms at 44100Hz stereo 16-bit = 44100 * 0.4 * 4 bytes.
	got := silenceBytes(44100, 2, 400)
	if len(got) != 70560 {
		t.Errorf("silence length = %d, want 70560", len(got))
	}

	// Mono halves the byte count.
	got = silenceBytes(22050, 1, 400)
	if len(got) != 17640 {
		t.Errorf("mono silence length = %d, want 17640", len(got))
	}
}

func TestWriteWAVHeader(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "*.wav")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if _, err := f.Write(make([]byte, 44)); err != nil {
		t.Fatal(err)
	}
	if err := writeWAVHeader(f, 22050, 1, 1000); err != nil {
		t.Fatalf("writeWAVHeader: %v", err)
	}

	header := make([]byte, 44)
	if _, err := f.ReadAt(header, 0); err != nil {
		t.Fatal(err)
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		t.Errorf("bad header magic: %q %q", header[0:4], header[8:12])
	}
	if ch := binary.LittleEndian.Uint16(header[22:24]); ch != 1 {
		t.Errorf("channels = %d, want 1", ch)
	}
	if rate := binary.LittleEndian.Uint32(header[24:28]); rate != 22050 {
		t.Errorf("sample rate = %d, want 22050", rate)
	}
	if align := binary.LittleEndian.Uint16(header[32:34]); align != 2 {
		t.Errorf("block align = %d, want 2", align)
	}
}

func writeDummy(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestGapArgsMatchSegmentFormat(t *testing.T) {
	m := &Mixer{pauseMs: 400}

	joined := strings.Join(m.gapArgs("gap.wav", ".wav", 22050, 1), " ")
	if !strings.Contains(joined, "anullsrc=r=22050:cl=mono") {
		t.Errorf("wav gap source wrong: %s", joined)
	}
	if !strings.Contains(joined, "pcm_s16le") {
		t.Errorf("wav gap not raw pcm: %s", joined)
	}

	joined = strings.Join(m.gapArgs("gap.mp3", ".mp3", 44100, 2), " ")
	if !strings.Contains(joined, "anullsrc=r=44100:cl=stereo") {
		t.Errorf("mp3 gap source wrong: %s", joined)
	}
	if !strings.Contains(joined, "libmp3lame") {
		t.Errorf("mp3 gap not lame encoded: %s", joined)
	}
}

func TestConcatListSkipsMismatchedIntroOutro(t *testing.T) {
	dir := t.TempDir()
	intro := writeDummy(t, dir, "intro.mp3")
	outro := writeDummy(t, dir, "outro.mp3")
	gap := writeDummy(t, dir, "gap.wav")
	seg := writeDummy(t, dir, "segment_0000.wav")

	list := concatList(intro, outro, gap, []string{seg})
	if strings.Contains(list, "intro.mp3") || strings.Contains(list, "outro.mp3") {
		t.Errorf("concat list splices mp3 into a wav episode:\n%s", list)
	}
	lines := strings.Split(strings.TrimSpace(list), "\n")
	if len(lines) != 2 {
		t.Errorf("got %d lines, want 2 (gap + segment)", len(lines))
	}
}

func TestCopyWAVData(t *testing.T) {
	pcm := make([]byte, 2000)
	for i := range pcm {
		pcm[i] = byte(i)
	}
	src := buildWAV(t, 22050, 1, pcm)

	var out bytes.Buffer
	n, rate, channels, err := copyWAVData(&out, bytes.NewReader(src))
	if err != nil {
		t.Fatalf("copyWAVData: %v", err)
	}
	if n != int64(len(pcm)) || rate != 22050 || channels != 1 {
		t.Errorf("got n=%d rate=%d channels=%d", n, rate, channels)
	}
	if !bytes.Equal(out.Bytes(), pcm) {
		t.Error("pcm payload altered in transit")
	}
}

func TestCopyWAVDataRejectsNonPCM(t *testing.T) {
	src := buildWAV(t, 22050, 1, make([]byte, 100))
	binary.LittleEndian.PutUint16(src[20:22], 3) // IEEE float

	var out bytes.Buffer
	if _, _, _, err := copyWAVData(&out, bytes.NewReader(src)); err == nil {
		t.Error("float wav should be rejected")
	}
}

func TestMixFallbackAssemblesWAVSegments(t *testing.T) {
	dir := t.TempDir()
	m := &Mixer{pauseMs: 100, logger: slog.New(slog.DiscardHandler)}

	segLen := 22050 * 2 / 10 // 100ms of mono 16-bit audio
	var paths []string
	for i := 0; i < 2; i++ {
		p := filepath.Join(dir, fmt.Sprintf("segment_%04d.wav", i))
		if err := os.WriteFile(p, buildWAV(t, 22050, 1, make([]byte, segLen)), 0o644); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, p)
	}

	result, err := m.mixFallback(paths, filepath.Join(dir, "episode.wav"))
	if err != nil {
		t.Fatalf("mixFallback: %v", err)
	}
	if result.SegmentsMixed != 2 {
		t.Errorf("mixed %d segments, want 2", result.SegmentsMixed)
	}
	if !strings.HasSuffix(result.Path, "episode.wav") {
		t.Errorf("output path = %q", result.Path)
	}

	header := make([]byte, 44)
	f, err := os.Open(result.Path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := io.ReadFull(f, header); err != nil {
		t.Fatal(err)
	}
	if ch := binary.LittleEndian.Uint16(header[22:24]); ch != 1 {
		t.Errorf("output channels = %d, want 1", ch)
	}
	if rate := binary.LittleEndian.Uint32(header[24:28]); rate != 22050 {
		t.Errorf("output sample rate = %d, want 22050", rate)
	}

	// Two 100ms segments plus two 100ms gaps.
	if result.DurationSeconds < 0.39 || result.DurationSeconds > 0.41 {
		t.Errorf("duration = %v, want ~0.4s", result.DurationSeconds)
	}
}

func buildWAV(t *testing.T, sampleRate, channels int, pcm []byte) []byte {
	t.Helper()
	blockAlign := channels * 2
	buf := make([]byte, 44+len(pcm))
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+len(pcm)))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1)
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*blockAlign))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], 16)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(len(pcm)))
	copy(buf[44:], pcm)
	return buf
}

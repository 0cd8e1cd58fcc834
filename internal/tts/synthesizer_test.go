package tts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/podforge/podforge/internal/fault"
	"github.com/podforge/podforge/internal/models"
)

type fakeProvider struct {
	calls     []string
	languages []string
	format    string
	fail      map[string]error
}

func (f *fakeProvider) Synthesize(_ context.Context, text, voice, language string) ([]byte, error) {
	f.calls = append(f.calls, text+"|"+voice)
	f.languages = append(f.languages, language)
	if err, ok := f.fail[text]; ok {
		return nil, err
	}
	return []byte("audio:" + text), nil
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Format() string {
	if f.format == "" {
		return "mp3"
	}
	return f.format
}

func newTestSynthesizer(p Provider) *Synthesizer {
	s := NewSynthesizer(p, "onyx", "nova", slog.New(slog.DiscardHandler))
	s.sleep = func(time.Duration) {}
	return s
}

var personas = []models.Persona{
	{Name: "Alex", Gender: "male"},
	{Name: "Jordan", Gender: "female"},
}

func segs(texts ...string) []models.DialogueSegment {
	out := make([]models.DialogueSegment, len(texts))
	for i, t := range texts {
		speaker := "Alex"
		if i%2 == 1 {
			speaker = "Jordan"
		}
		out[i] = models.DialogueSegment{Index: i, Speaker: speaker, Text: t}
	}
	return out
}

func TestSynthesizeWritesSegmentFiles(t *testing.T) {
	p := &fakeProvider{}
	s := newTestSynthesizer(p)

	out, err := s.Synthesize(context.Background(), t.TempDir(), segs("hello", "world"), personas, "en", nil)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d segments, want 2", len(out))
	}
	for i, sa := range out {
		if sa.Path == "" {
			t.Errorf("segment %d has no path", i)
		}
	}
}

func TestSegmentExtensionFollowsProviderFormat(t *testing.T) {
	p := &fakeProvider{format: "wav"}
	s := newTestSynthesizer(p)

	out, err := s.Synthesize(context.Background(), t.TempDir(),
		[]models.DialogueSegment{{Index: 0, Speaker: "Alex", Text: "hi"}}, personas, "en", nil)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if got := filepath.Base(out[0].Path); got != "segment_0000.wav" {
		t.Errorf("segment file = %q, want wav extension for a wav provider", got)
	}
}

func TestLanguageReachesProvider(t *testing.T) {
	p := &fakeProvider{}
	s := newTestSynthesizer(p)

	_, err := s.Synthesize(context.Background(), t.TempDir(), segs("hola"), personas, "es", nil)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if len(p.languages) != 1 || p.languages[0] != "es" {
		t.Errorf("provider saw languages %v, want [es]", p.languages)
	}
}

func TestVoiceAlternatesByGender(t *testing.T) {
	p := &fakeProvider{}
	s := newTestSynthesizer(p)

	_, err := s.Synthesize(context.Background(), t.TempDir(), segs("a", "b"), personas, "en", nil)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if p.calls[0] != "a|onyx" {
		t.Errorf("first call = %q, want male voice", p.calls[0])
	}
	if p.calls[1] != "b|nova" {
		t.Errorf("second call = %q, want female voice", p.calls[1])
	}
}

func TestVoiceStableAcrossSpeakerLines(t *testing.T) {
	p := &fakeProvider{}
	s := newTestSynthesizer(p)
	plain := []models.Persona{{Name: "Alex"}, {Name: "Jordan"}}

	// Jordan speaks at both an odd and an even segment index; the voice
	// follows the persona's position, never the segment's.
	segments := []models.DialogueSegment{
		{Index: 0, Speaker: "Alex", Text: "a"},
		{Index: 1, Speaker: "Jordan", Text: "b"},
		{Index: 2, Speaker: "Jordan", Text: "c"},
	}
	_, err := s.Synthesize(context.Background(), t.TempDir(), segments, plain, "en", nil)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	want := []string{"a|onyx", "b|nova", "c|nova"}
	for i := range want {
		if p.calls[i] != want[i] {
			t.Errorf("call %d = %q, want %q", i, p.calls[i], want[i])
		}
	}
}

func TestUndeclaredSpeakerGetsDefaultVoice(t *testing.T) {
	p := &fakeProvider{}
	s := newTestSynthesizer(p)

	_, err := s.Synthesize(context.Background(), t.TempDir(),
		[]models.DialogueSegment{{Index: 1, Speaker: "Narrator", Text: "hi"}}, personas, "en", nil)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if p.calls[0] != "hi|onyx" {
		t.Errorf("call = %q, want the male default for an undeclared speaker", p.calls[0])
	}
}

func TestExplicitVoiceIDWins(t *testing.T) {
	p := &fakeProvider{}
	s := newTestSynthesizer(p)
	custom := []models.Persona{{Name: "Alex", Gender: "male", VoiceID: "echo"}}

	_, err := s.Synthesize(context.Background(), t.TempDir(),
		[]models.DialogueSegment{{Index: 0, Speaker: "Alex", Text: "hi"}}, custom, "en", nil)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if p.calls[0] != "hi|echo" {
		t.Errorf("call = %q, want explicit voice id", p.calls[0])
	}
}

func TestRetryableErrorRetriesThreeTimes(t *testing.T) {
	p := &fakeProvider{fail: map[string]error{
		"flaky": fault.Transient(fault.KindSpeech, errors.New("rate limited")),
	}}
	s := newTestSynthesizer(p)

	out, err := s.Synthesize(context.Background(), t.TempDir(), segs("flaky", "fine"), personas, "en", nil)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if len(p.calls) != maxAttempts+1 {
		t.Errorf("got %d provider calls, want %d", len(p.calls), maxAttempts+1)
	}
	if out[0].Path != "" || out[0].Err == nil {
		t.Errorf("flaky segment = %+v, want empty path with error", out[0])
	}
	if out[1].Path == "" {
		t.Errorf("healthy segment missing path")
	}
}

func TestNonRetryableErrorFailsFast(t *testing.T) {
	p := &fakeProvider{fail: map[string]error{
		"bad": errors.New("invalid voice"),
	}}
	s := newTestSynthesizer(p)

	_, err := s.Synthesize(context.Background(), t.TempDir(), segs("bad", "fine"), personas, "en", nil)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	count := 0
	for _, c := range p.calls {
		if strings.HasPrefix(c, "bad|") {
			count++
		}
	}
	if count != 1 {
		t.Errorf("non-retryable segment attempted %d times, want 1", count)
	}
}

func TestAllSegmentsFailedReturnsError(t *testing.T) {
	p := &fakeProvider{fail: map[string]error{
		"a": errors.New("boom"),
		"b": errors.New("boom"),
	}}
	s := newTestSynthesizer(p)

	_, err := s.Synthesize(context.Background(), t.TempDir(), segs("a", "b"), personas, "en", nil)
	if err == nil {
		t.Fatal("want error when every segment fails")
	}
	if fault.IsFatal(err) {
		t.Error("all-segments-failed should be degradable, not fatal")
	}
	if fault.KindOf(err) != fault.KindSpeech {
		t.Errorf("kind = %q", fault.KindOf(err))
	}
}

func TestProgressCallback(t *testing.T) {
	p := &fakeProvider{}
	s := newTestSynthesizer(p)

	var seen []string
	_, err := s.Synthesize(context.Background(), t.TempDir(), segs("a", "b", "c"), personas, "en",
		func(done, total int) { seen = append(seen, fmt.Sprintf("%d/%d", done, total)) })
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	want := []string{"1/3", "2/3", "3/3"}
	for i := range want {
		if i >= len(seen) || seen[i] != want[i] {
			t.Fatalf("progress = %v, want %v", seen, want)
		}
	}
}

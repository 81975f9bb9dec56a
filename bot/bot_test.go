package bot

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maastricht-university/voicebot/analysis"
	"github.com/maastricht-university/voicebot/clients"
	"github.com/maastricht-university/voicebot/metrics"
	"github.com/maastricht-university/voicebot/orchestrator"
)

type sent struct {
	kind     string
	chatID   int64
	replyTo  int
	text     string
	filename string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sent
}

func (f *fakeNotifier) add(s sent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, s)
	return nil
}

func (f *fakeNotifier) SendText(_ context.Context, chatID int64, replyTo int, text string) error {
	return f.add(sent{kind: "text", chatID: chatID, replyTo: replyTo, text: text})
}

func (f *fakeNotifier) SendImage(_ context.Context, chatID int64, replyTo int, _ []byte, caption string) error {
	return f.add(sent{kind: "image", chatID: chatID, replyTo: replyTo, text: caption})
}

func (f *fakeNotifier) SendDocument(_ context.Context, chatID int64, replyTo int, _ []byte, filename, caption string) error {
	return f.add(sent{kind: "document", chatID: chatID, replyTo: replyTo, text: caption, filename: filename})
}

func (f *fakeNotifier) all() []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sent(nil), f.sent...)
}

type fakeAudio struct {
	err     error
	fileIDs []string
	names   []string
}

func (f *fakeAudio) Fetch(_ context.Context, fileID, dir, name string) (string, error) {
	f.fileIDs = append(f.fileIDs, fileID)
	f.names = append(f.names, name)
	if f.err != nil {
		return "", f.err
	}
	return dir + "/clip.pcm.wav", nil
}

type fakeAnalyzer struct {
	outcomes []orchestrator.Outcome
	reqs     []analysis.Request
}

func (f *fakeAnalyzer) Run(_ context.Context, req analysis.Request, _ string) []orchestrator.Outcome {
	f.reqs = append(f.reqs, req)
	return f.outcomes
}

type env struct {
	n  *fakeNotifier
	a  *fakeAudio
	an *fakeAnalyzer
	h  *Handler
}

func newEnv(t *testing.T) *env {
	log := logrus.New()
	log.SetOutput(io.Discard)
	e := &env{n: &fakeNotifier{}, a: &fakeAudio{}, an: &fakeAnalyzer{}}
	e.h = NewHandler(e.n, e.a, e.an, t.TempDir(), log, metrics.New())
	e.h.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 0, 0, time.UTC) }
	return e
}

var (
	alice = &clients.TgUser{ID: 1, Username: "alice"}
	bob   = &clients.TgUser{ID: 2, Username: "bob"}
	dm    = clients.TgChat{ID: 1, Type: "private"}
	group = clients.TgChat{ID: -100, Type: "group"}
)

func voiceMsg(from *clients.TgUser, chat clients.TgChat, id int) *clients.TgMessage {
	return &clients.TgMessage{MessageID: id, From: from, Chat: chat, Voice: &clients.TgFile{FileID: "voice-1"}}
}

func okOutcomes() []orchestrator.Outcome {
	return []orchestrator.Outcome{
		{Component: orchestrator.Classification, Message: &orchestrator.Message{Kind: orchestrator.ImageMessage, Text: "pct", Data: []byte("png")}},
		{Component: orchestrator.Spectral, Message: &orchestrator.Message{Kind: orchestrator.DocumentMessage, Text: "spectrogram caption", Data: []byte("jpg"), Filename: "spectrogram.jpg"}},
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in  string
		cmd string
		ok  bool
	}{
		{"!ml", "ml", true},
		{"/Analyze", "analyze", true},
		{"/pitch@voicebot please", "pitch", true},
		{"  !STATS now", "stats", true},
		{"!formant", "formant", true},
		{"ml", "", false},
		{"!", "", false},
		{"!bogus", "", false},
		{"!spectrogram", "", false},
		{"", "", false},
		{"hello !ml", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			cmd, ok := ParseCommand(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.cmd, cmd)
		})
	}
}

func TestStartInPrivateChat(t *testing.T) {
	e := newEnv(t)
	e.h.Handle(context.Background(), clients.TgUpdate{UpdateID: 1, Message: &clients.TgMessage{MessageID: 1, From: alice, Chat: dm, Text: "/start"}})

	require.Len(t, e.n.all(), 1)
	assert.Equal(t, welcomeText, e.n.all()[0].text)
}

func TestStartInGroupIgnored(t *testing.T) {
	e := newEnv(t)
	e.h.Handle(context.Background(), clients.TgUpdate{Message: &clients.TgMessage{From: alice, Chat: group, Text: "/start"}})
	assert.Empty(t, e.n.all())
}

func TestNilMessageIgnored(t *testing.T) {
	e := newEnv(t)
	e.h.Handle(context.Background(), clients.TgUpdate{UpdateID: 1})
	assert.Empty(t, e.n.all())
}

func TestDirectVoiceRunsFullAnalysis(t *testing.T) {
	e := newEnv(t)
	e.an.outcomes = okOutcomes()

	e.h.Handle(context.Background(), clients.TgUpdate{Message: voiceMsg(alice, dm, 7)})

	require.Len(t, e.an.reqs, 1)
	assert.Equal(t, analysis.ParseRequest("analyze"), e.an.reqs[0])
	assert.Equal(t, []string{"voice-1"}, e.a.fileIDs)
	assert.Equal(t, []string{"2024-01-02 03-04 alice.oga"}, e.a.names)

	got := e.n.all()
	require.Len(t, got, 2)
	assert.Equal(t, sent{kind: "image", chatID: 1, replyTo: 7, text: "pct"}, got[0])
	assert.Equal(t, sent{kind: "document", chatID: 1, replyTo: 7, text: "spectrogram caption", filename: "spectrogram.jpg"}, got[1])
}

func TestVoiceInGroupWithoutCommandIgnored(t *testing.T) {
	e := newEnv(t)
	e.h.Handle(context.Background(), clients.TgUpdate{Message: voiceMsg(alice, group, 7)})
	assert.Empty(t, e.an.reqs)
	assert.Empty(t, e.n.all())
}

func TestReplyCommandOnOwnAudio(t *testing.T) {
	e := newEnv(t)
	e.an.outcomes = okOutcomes()[:1]
	audio := voiceMsg(alice, group, 10)
	audio.Voice = nil
	audio.Audio = &clients.TgFile{FileID: "song"}

	e.h.Handle(context.Background(), clients.TgUpdate{Message: &clients.TgMessage{
		MessageID: 11, From: alice, Chat: group, Text: "!ML", ReplyToMessage: audio,
	}})

	require.Len(t, e.an.reqs, 1)
	assert.Equal(t, analysis.Request{Classification: true}, e.an.reqs[0])
	assert.Equal(t, []string{"song"}, e.a.fileIDs)
	assert.Equal(t, ".mp3", e.a.names[0][len(e.a.names[0])-4:])
	got := e.n.all()
	require.Len(t, got, 1)
	assert.Equal(t, 10, got[0].replyTo)
}

func TestReplyCommandOnSomeoneElsesAudio(t *testing.T) {
	e := newEnv(t)
	e.h.Handle(context.Background(), clients.TgUpdate{Message: &clients.TgMessage{
		MessageID: 11, From: bob, Chat: group, Text: "/pitch", ReplyToMessage: voiceMsg(alice, group, 10),
	}})

	assert.Empty(t, e.a.fileIDs)
	assert.Empty(t, e.an.reqs)
	got := e.n.all()
	require.Len(t, got, 1)
	assert.Equal(t, notOwnerText, got[0].text)
	assert.Equal(t, 11, got[0].replyTo)
}

func TestReplyCommandWithoutAudio(t *testing.T) {
	e := newEnv(t)
	e.h.Handle(context.Background(), clients.TgUpdate{Message: &clients.TgMessage{
		MessageID: 11, From: alice, Chat: group, Text: "!analyze",
		ReplyToMessage: &clients.TgMessage{MessageID: 10, From: alice, Chat: group, Text: "hi"},
	}})

	assert.Empty(t, e.an.reqs)
	got := e.n.all()
	require.Len(t, got, 1)
	assert.Equal(t, replyToAudioText, got[0].text)
}

func TestReplyWithoutCommandIsSilent(t *testing.T) {
	e := newEnv(t)
	e.h.Handle(context.Background(), clients.TgUpdate{Message: &clients.TgMessage{
		MessageID: 11, From: alice, Chat: group, Text: "nice voice!", ReplyToMessage: voiceMsg(alice, group, 10),
	}})
	assert.Empty(t, e.an.reqs)
	assert.Empty(t, e.n.all())
}

func TestEmptyResultIsReported(t *testing.T) {
	e := newEnv(t)
	e.an.outcomes = []orchestrator.Outcome{
		{Component: orchestrator.Classification, Err: analysis.NewError(analysis.KindEmptyResult, analysis.EmptyResultText)},
		okOutcomes()[1],
	}

	e.h.Handle(context.Background(), clients.TgUpdate{Message: voiceMsg(alice, dm, 3)})

	got := e.n.all()
	require.Len(t, got, 2)
	assert.Equal(t, sent{kind: "text", chatID: 1, replyTo: 3, text: analysis.EmptyResultText}, got[0])
	assert.Equal(t, "document", got[1].kind)
}

func TestCollaborationFailureIsGeneric(t *testing.T) {
	e := newEnv(t)
	e.an.outcomes = []orchestrator.Outcome{
		{Component: orchestrator.Spectral, Err: analysis.Collaboration(errors.New("praat: 500 internal"), "spectral")},
	}

	e.h.Handle(context.Background(), clients.TgUpdate{Message: voiceMsg(alice, dm, 3)})

	got := e.n.all()
	require.Len(t, got, 1)
	assert.Equal(t, failureText, got[0].text)
}

func TestDownloadFailure(t *testing.T) {
	e := newEnv(t)
	e.a.err = errors.New("file is too big")

	e.h.Handle(context.Background(), clients.TgUpdate{Message: voiceMsg(alice, dm, 3)})

	assert.Empty(t, e.an.reqs)
	got := e.n.all()
	require.Len(t, got, 1)
	assert.Equal(t, failureText, got[0].text)
}

func TestImplicitFailuresAreNotSent(t *testing.T) {
	e := newEnv(t)
	entry := logrus.NewEntry(e.h.log)

	e.h.fail(context.Background(), entry, 1, 0, errors.New("boom"), false)
	e.h.fail(context.Background(), entry, 1, 0, analysis.NewError(analysis.KindMissingInput, replyToAudioText), false)
	assert.Empty(t, e.n.all())

	e.h.fail(context.Background(), entry, 1, 0, analysis.NewError(analysis.KindUnauthorized, notOwnerText), false)
	assert.Len(t, e.n.all(), 1)
}

type scriptedUpdates struct {
	mu      sync.Mutex
	batches [][]clients.TgUpdate
	offsets []int64
}

func (s *scriptedUpdates) GetUpdates(ctx context.Context, offset int64, _ time.Duration) ([]clients.TgUpdate, error) {
	s.mu.Lock()
	s.offsets = append(s.offsets, offset)
	if len(s.batches) > 0 {
		b := s.batches[0]
		s.batches = s.batches[1:]
		s.mu.Unlock()
		return b, nil
	}
	s.mu.Unlock()
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestPollerDispatchesAndAdvancesOffset(t *testing.T) {
	e := newEnv(t)
	src := &scriptedUpdates{batches: [][]clients.TgUpdate{
		{
			{UpdateID: 5, Message: &clients.TgMessage{MessageID: 1, From: alice, Chat: dm, Text: "/start"}},
			{UpdateID: 6, Message: &clients.TgMessage{MessageID: 2, From: bob, Chat: clients.TgChat{ID: 2, Type: "private"}, Text: "/start"}},
		},
	}}
	p := NewPoller(src, e.h, time.Second, 2, e.h.log, e.h.metrics)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool { return len(e.n.all()) == 2 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	src.mu.Lock()
	defer src.mu.Unlock()
	assert.Equal(t, []int64{0, 7}, src.offsets)
}

type failingUpdates struct{ calls int }

func (f *failingUpdates) GetUpdates(ctx context.Context, _ int64, _ time.Duration) ([]clients.TgUpdate, error) {
	f.calls++
	return nil, errors.New("bad gateway")
}

func TestPollerStopsDuringPause(t *testing.T) {
	e := newEnv(t)
	src := &failingUpdates{}
	p := NewPoller(src, e.h, time.Second, 1, e.h.log, nil)
	p.pause = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- p.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop")
	}
}

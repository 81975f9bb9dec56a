package bot

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/maastricht-university/voicebot/analysis"
	"github.com/maastricht-university/voicebot/clients"
	"github.com/maastricht-university/voicebot/media"
	"github.com/maastricht-university/voicebot/metrics"
	"github.com/maastricht-university/voicebot/orchestrator"
)

const (
	welcomeText      = "Welcome! Tap the record button below and send me a voice message to get started."
	notOwnerText     = "You can only analyze your own audio 👀"
	replyToAudioText = "Reply to a voice message or audio file with the command to analyze it."
	failureText      = "Something went wrong while analyzing this audio. Please try again later."
)

// Notifier delivers messages to a chat, optionally as a reply.
type Notifier interface {
	SendText(ctx context.Context, chatID int64, replyTo int, text string) error
	SendImage(ctx context.Context, chatID int64, replyTo int, img []byte, caption string) error
	SendDocument(ctx context.Context, chatID int64, replyTo int, doc []byte, filename, caption string) error
}

// AudioSource downloads an attachment and returns a local WAV path.
type AudioSource interface {
	Fetch(ctx context.Context, fileID, dir, name string) (string, error)
}

// Analyzer composes the report for one clip.
type Analyzer interface {
	Run(ctx context.Context, req analysis.Request, wavPath string) []orchestrator.Outcome
}

type Handler struct {
	notify   Notifier
	audio    AudioSource
	analyzer Analyzer
	tmpDir   string
	log      *logrus.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewHandler(n Notifier, a AudioSource, an Analyzer, tmpDir string, log *logrus.Logger, m *metrics.Metrics) *Handler {
	return &Handler{notify: n, audio: a, analyzer: an, tmpDir: tmpDir, log: log, metrics: m, now: time.Now}
}

// Handle routes one update. It never returns an error: every failure is
// either answered in the chat or logged.
func (h *Handler) Handle(ctx context.Context, u clients.TgUpdate) {
	msg := u.Message
	if msg == nil {
		return
	}
	log := h.log.WithFields(logrus.Fields{"update_id": u.UpdateID, "chat_id": msg.Chat.ID})
	private := msg.Chat.Type == "private"

	switch {
	case private && isStart(msg.Text):
		h.sendText(ctx, log, msg.Chat.ID, 0, welcomeText)
	case msg.ReplyToMessage != nil:
		h.onReply(ctx, log, msg)
	case private && msg.AudioFile() != nil:
		h.process(ctx, log, msg, "analyze")
	}
}

func isStart(text string) bool {
	f := strings.Fields(text)
	return len(f) > 0 && (f[0] == "/start" || strings.HasPrefix(f[0], "/start@"))
}

func (h *Handler) onReply(ctx context.Context, log *logrus.Entry, msg *clients.TgMessage) {
	cmd, ok := ParseCommand(msg.Text)
	if !ok {
		return
	}
	target := msg.ReplyToMessage
	log = log.WithField("command", cmd)

	if target.AudioFile() == nil {
		h.fail(ctx, log, msg.Chat.ID, msg.MessageID, analysis.NewError(analysis.KindMissingInput, replyToAudioText), true)
		return
	}
	if msg.From == nil || target.From == nil || msg.From.ID != target.From.ID {
		h.fail(ctx, log, msg.Chat.ID, msg.MessageID, analysis.NewError(analysis.KindUnauthorized, notOwnerText), true)
		return
	}
	h.process(ctx, log, target, cmd)
}

// process analyzes the audio attached to msg and answers in reply to it.
func (h *Handler) process(ctx context.Context, log *logrus.Entry, msg *clients.TgMessage, cmd string) {
	h.metrics.Request(cmd)
	chatID, replyTo := msg.Chat.ID, msg.MessageID

	ws, err := orchestrator.NewWorkspace(h.tmpDir)
	if err != nil {
		h.fail(ctx, log, chatID, replyTo, analysis.Collaboration(err, "workspace"), true)
		return
	}
	defer func() {
		if err := ws.Close(); err != nil {
			log.WithError(err).Warn("workspace cleanup failed")
		}
	}()
	log = log.WithFields(logrus.Fields{"request_id": ws.ID, "command": cmd})

	file := msg.AudioFile()
	ext := ".mp3"
	if msg.Audio == nil {
		ext = ".oga"
	}
	wav, err := h.audio.Fetch(ctx, file.FileID, ws.Dir, media.AudioName(h.now(), msg.From.Name(), ext))
	if err != nil {
		h.fail(ctx, log, chatID, replyTo, analysis.Collaboration(err, "audio source"), true)
		return
	}
	log.WithField("wav", wav).Info("analyzing")

	outcomes := h.analyzer.Run(orchestrator.WithLogger(ctx, log), analysis.ParseRequest(cmd), wav)
	for _, o := range outcomes {
		olog := log.WithField("component", o.Component)
		if o.Err != nil {
			h.fail(ctx, olog, chatID, replyTo, o.Err, true)
			continue
		}
		h.send(ctx, olog, chatID, replyTo, o.Message)
	}
}

func (h *Handler) send(ctx context.Context, log *logrus.Entry, chatID int64, replyTo int, m *orchestrator.Message) {
	var err error
	switch m.Kind {
	case orchestrator.ImageMessage:
		err = h.notify.SendImage(ctx, chatID, replyTo, m.Data, m.Text)
	case orchestrator.DocumentMessage:
		err = h.notify.SendDocument(ctx, chatID, replyTo, m.Data, m.Filename, m.Text)
	default:
		err = h.notify.SendText(ctx, chatID, replyTo, m.Text)
	}
	if err != nil {
		log.WithError(err).Error("send failed")
		return
	}
	h.metrics.Reply(m.Kind.String())
}

func (h *Handler) sendText(ctx context.Context, log *logrus.Entry, chatID int64, replyTo int, text string) {
	h.send(ctx, log, chatID, replyTo, &orchestrator.Message{Kind: orchestrator.TextMessage, Text: text})
}

// fail is the single place deciding whether an error reaches the user.
// explicit marks requests the user clearly addressed to the bot.
func (h *Handler) fail(ctx context.Context, log *logrus.Entry, chatID int64, replyTo int, err error, explicit bool) {
	kind := analysis.KindOf(err)
	log = log.WithField("kind", kind.String())

	text := analysis.UserText(err)
	switch kind {
	case analysis.KindEmptyResult, analysis.KindUnauthorized:
		log.WithError(err).Info("request rejected")
	case analysis.KindMissingInput:
		log.WithError(err).Debug("no audio attached")
		if !explicit {
			return
		}
	default:
		log.WithError(err).Error("analysis failed")
		if !explicit {
			return
		}
		text = failureText
	}
	if text == "" {
		return
	}
	h.sendText(ctx, log, chatID, replyTo, text)
}

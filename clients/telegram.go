package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// --- Telegram Bot API ---

const DefaultTelegramAPI = "https://api.telegram.org"

type TgUser struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	Username  string `json:"username,omitempty"`
}

// Name is the @username when set, else the first name.
func (u *TgUser) Name() string {
	if u == nil {
		return ""
	}
	if u.Username != "" {
		return u.Username
	}
	return u.FirstName
}

type TgChat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"` // "private", "group", ...
}

type TgFile struct {
	FileID   string `json:"file_id"`
	Duration int    `json:"duration,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	FileSize int64  `json:"file_size,omitempty"`
	FilePath string `json:"file_path,omitempty"`
}

type TgMessage struct {
	MessageID      int        `json:"message_id"`
	From           *TgUser    `json:"from,omitempty"`
	Chat           TgChat     `json:"chat"`
	Date           int64      `json:"date"`
	Text           string     `json:"text,omitempty"`
	Voice          *TgFile    `json:"voice,omitempty"`
	Audio          *TgFile    `json:"audio,omitempty"`
	ReplyToMessage *TgMessage `json:"reply_to_message,omitempty"`
}

// AudioFile is the attached audio or voice note, if any.
func (m *TgMessage) AudioFile() *TgFile {
	if m == nil {
		return nil
	}
	if m.Audio != nil {
		return m.Audio
	}
	return m.Voice
}

type TgUpdate struct {
	UpdateID int64      `json:"update_id"`
	Message  *TgMessage `json:"message,omitempty"`
}

type tgEnvelope struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code,omitempty"`
	Description string          `json:"description,omitempty"`
}

// Telegram is a minimal Bot API client: long polling, file download and the
// three send methods the report needs.
type Telegram struct {
	c     *http.Client
	base  string
	token string
}

func NewTelegram(base, token string, timeout time.Duration) *Telegram {
	if base == "" {
		base = DefaultTelegramAPI
	}
	return &Telegram{
		c:     &http.Client{Timeout: timeout},
		base:  strings.TrimRight(base, "/"),
		token: token,
	}
}

func (t *Telegram) methodURL(method string) string {
	return t.base + "/bot" + t.token + "/" + method
}

func (t *Telegram) decode(resp *http.Response, method string, out any) error {
	defer resp.Body.Close()
	var env tgEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("telegram %s decode (%s): %w", method, resp.Status, err)
	}
	if !env.OK {
		return fmt.Errorf("telegram %s: %d %s", method, env.ErrorCode, env.Description)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("telegram %s result: %w", method, err)
	}
	return nil
}

func (t *Telegram) call(ctx context.Context, method string, params, out any) error {
	b, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("telegram %s marshal: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.methodURL(method), bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := t.c.Do(req)
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, redact(err, t.token))
	}
	return t.decode(resp, method, out)
}

func (t *Telegram) upload(ctx context.Context, method string, fields map[string]string, field, filename string, data []byte) error {
	var b bytes.Buffer
	w := multipart.NewWriter(&b)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return fmt.Errorf("telegram %s field %s: %w", method, k, err)
		}
	}
	fw, err := w.CreateFormFile(field, filename)
	if err != nil {
		return fmt.Errorf("telegram %s form file: %w", method, err)
	}
	if _, err := fw.Write(data); err != nil {
		return fmt.Errorf("telegram %s write: %w", method, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("telegram %s close multipart: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.methodURL(method), &b)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	resp, err := t.c.Do(req)
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, redact(err, t.token))
	}
	return t.decode(resp, method, nil)
}

// GetUpdates long-polls for updates after offset.
func (t *Telegram) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]TgUpdate, error) {
	params := map[string]any{
		"offset":          offset,
		"timeout":         int(timeout / time.Second),
		"allowed_updates": []string{"message"},
	}
	var out []TgUpdate
	if err := t.call(ctx, "getUpdates", params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Download fetches a file by id and writes it to dst.
func (t *Telegram) Download(ctx context.Context, fileID string, dst io.Writer) error {
	var f TgFile
	if err := t.call(ctx, "getFile", map[string]string{"file_id": fileID}, &f); err != nil {
		return err
	}
	if f.FilePath == "" {
		return fmt.Errorf("telegram getFile: no file_path for %s", fileID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.base+"/file/bot"+t.token+"/"+f.FilePath, nil)
	if err != nil {
		return err
	}
	resp, err := t.c.Do(req)
	if err != nil {
		return fmt.Errorf("telegram download: %w", redact(err, t.token))
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, "telegram download"); err != nil {
		return err
	}
	if _, err := io.Copy(dst, resp.Body); err != nil {
		return fmt.Errorf("telegram download copy: %w", err)
	}
	return nil
}

func replyFields(chatID int64, replyTo int) map[string]string {
	f := map[string]string{"chat_id": strconv.FormatInt(chatID, 10)}
	if replyTo != 0 {
		f["reply_to_message_id"] = strconv.Itoa(replyTo)
	}
	return f
}

func (t *Telegram) SendText(ctx context.Context, chatID int64, replyTo int, text string) error {
	params := map[string]any{"chat_id": chatID, "text": text}
	if replyTo != 0 {
		params["reply_to_message_id"] = replyTo
	}
	return t.call(ctx, "sendMessage", params, nil)
}

func (t *Telegram) SendImage(ctx context.Context, chatID int64, replyTo int, img []byte, caption string) error {
	f := replyFields(chatID, replyTo)
	f["caption"] = caption
	return t.upload(ctx, "sendPhoto", f, "photo", "result.png", img)
}

func (t *Telegram) SendDocument(ctx context.Context, chatID int64, replyTo int, doc []byte, filename, caption string) error {
	f := replyFields(chatID, replyTo)
	f["caption"] = caption
	return t.upload(ctx, "sendDocument", f, "document", filename, doc)
}

// redact keeps the bot token out of logged url errors.
func redact(err error, token string) error {
	if token == "" {
		return err
	}
	return fmt.Errorf("%s", strings.ReplaceAll(err.Error(), token, "<token>"))
}

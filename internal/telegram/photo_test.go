package telegram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"gosha-bot/internal/persona"
)

type fakeFiles struct {
	url string
	err error
}

func (f fakeFiles) GetFileDirectURL(string) (string, error) { return f.url, f.err }

type fakeOCR struct {
	text string
	got  []byte
}

func (f *fakeOCR) Extract(_ context.Context, data []byte) (string, error) {
	f.got = data
	return f.text, nil
}

func photoServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func photoMsg(caption string) *tgbotapi.Message {
	msg := groupMsg("anya", "")
	msg.Caption = caption
	msg.Photo = []tgbotapi.PhotoSize{
		{FileID: "small", Width: 90, Height: 60},
		{FileID: "large", Width: 1280, Height: 960},
		{FileID: "medium", Width: 320, Height: 240},
	}
	return msg
}

func TestLargestPhoto(t *testing.T) {
	if got := largestPhoto(photoMsg("").Photo); got.FileID != "large" {
		t.Fatalf("picked %s", got.FileID)
	}
}

func TestPhoto_RecognizedTextIsAnswered(t *testing.T) {
	srv := photoServer(t, "image-bytes")
	tb := newTestBot(t, nil, Options{MaxPhotoBytes: 1024})
	ocr := &fakeOCR{text: "2 + 2 = ?"}
	tb.files = fakeFiles{url: srv.URL}
	tb.ocr = ocr
	tb.fl.resp.Content = "4"

	tb.handle(photoMsg("гоша, реши"))

	if string(ocr.got) != "image-bytes" {
		t.Fatalf("ocr got %q", ocr.got)
	}
	q := tb.fl.last[len(tb.fl.last)-1].Content
	if !strings.Contains(q, "гоша, реши") || !strings.Contains(q, "2 + 2 = ?") {
		t.Fatalf("question not built from caption and text: %q", q)
	}
	if tb.fs.last().text != "4" {
		t.Fatalf("unexpected reply: %+v", tb.fs.sent)
	}
}

func TestPhoto_NoTextReply(t *testing.T) {
	srv := photoServer(t, "image-bytes")
	tb := newTestBot(t, nil, Options{})
	tb.files = fakeFiles{url: srv.URL}
	tb.ocr = &fakeOCR{}

	tb.handle(photoMsg("гоша"))

	if tb.fl.calls != 0 {
		t.Fatalf("provider must not be called without text")
	}
	if tb.fs.last().text != persona.Default().Replies.NoText {
		t.Fatalf("expected no-text reply, got %+v", tb.fs.sent)
	}
}

func TestPhoto_WithoutTriggerIgnoredInGroup(t *testing.T) {
	tb := newTestBot(t, nil, Options{})
	ocr := &fakeOCR{text: "x"}
	tb.ocr = ocr
	tb.files = fakeFiles{err: errors.New("must not be called")}

	tb.handle(photoMsg("котик"))
	if len(tb.fs.sent) != 0 || ocr.got != nil {
		t.Fatalf("photo without trigger must be ignored: %+v", tb.fs.sent)
	}
}

func TestPhoto_TooLarge(t *testing.T) {
	srv := photoServer(t, strings.Repeat("x", 100))
	tb := newTestBot(t, nil, Options{MaxPhotoBytes: 10})
	tb.files = fakeFiles{url: srv.URL}
	ocr := &fakeOCR{text: "x"}
	tb.ocr = ocr

	tb.handle(photoMsg("гоша"))

	if ocr.got != nil {
		t.Fatalf("oversized photo must not reach ocr")
	}
	if !strings.Contains(tb.fs.last().text, "too large") {
		t.Fatalf("expected size error, got %+v", tb.fs.sent)
	}
}

func TestPhoto_ResolveError(t *testing.T) {
	tb := newTestBot(t, nil, Options{})
	tb.files = fakeFiles{err: errors.New("file not found")}
	tb.ocr = &fakeOCR{text: "x"}

	tb.handle(photoMsg("гоша"))
	out := tb.fs.last().text
	if !strings.HasPrefix(out, persona.Default().Replies.ErrorPrefix) || !strings.Contains(out, "file not found") {
		t.Fatalf("unexpected reply: %q", out)
	}
}

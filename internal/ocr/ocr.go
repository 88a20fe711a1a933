package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	"gosha-bot/internal/logging"
)

// Recognizer reads text from an image file on disk.
type Recognizer interface {
	Recognize(ctx context.Context, imagePath string) (string, error)
}

// TesseractCLI runs the tesseract binary and reads its stdout.
type TesseractCLI struct {
	Binary    string
	Languages string
}

func (t TesseractCLI) Recognize(ctx context.Context, imagePath string) (string, error) {
	bin := t.Binary
	if bin == "" {
		bin = "tesseract"
	}
	args := []string{imagePath, "stdout"}
	if t.Languages != "" {
		args = append(args, "-l", t.Languages)
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("tesseract: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return string(out), nil
}

// Extractor prepares photos for recognition and returns the recognized text.
type Extractor struct {
	Recognizer Recognizer
	// TempDir holds the intermediate PNG; empty means the OS default.
	TempDir string
	// Timeout bounds one recognition run. Zero disables it.
	Timeout time.Duration
	// MinWidth is the width small images are upscaled to.
	MinWidth int
}

func NewExtractor(r Recognizer, timeout time.Duration) *Extractor {
	return &Extractor{Recognizer: r, Timeout: timeout, MinWidth: 1000}
}

// Extract returns the trimmed text found in data. Undecodable images and
// recognizer failures yield "" with a nil error; only cancellation of ctx is
// reported. The temporary file is removed before returning.
func (e *Extractor) Extract(ctx context.Context, data []byte) (string, error) {
	l := logging.Ctx(ctx)

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		l.Warn().Err(err).Int("bytes", len(data)).Msg("ocr: decode image failed")
		return "", nil
	}

	f, err := os.CreateTemp(e.TempDir, "ocr-*.png")
	if err != nil {
		l.Error().Err(err).Msg("ocr: create temp file failed")
		return "", nil
	}
	path := f.Name()
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			l.Warn().Err(err).Str("path", path).Msg("ocr: remove temp file failed")
		}
	}()

	err = imaging.Encode(f, e.prepare(img), imaging.PNG)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		l.Error().Err(err).Msg("ocr: write temp file failed")
		return "", nil
	}

	runCtx := ctx
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}
	start := time.Now()
	text, err := e.Recognizer.Recognize(runCtx, path)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		l.Warn().Err(err).Dur("took", time.Since(start)).Msg("ocr: recognition failed")
		return "", nil
	}
	text = strings.TrimSpace(text)
	l.Debug().Int("chars", len([]rune(text))).Dur("took", time.Since(start)).Msg("ocr: done")
	return text, nil
}

// prepare converts to grayscale, raises contrast and upscales narrow images,
// which is what tesseract does best with.
func (e *Extractor) prepare(img image.Image) image.Image {
	out := imaging.Grayscale(img)
	out = imaging.AdjustContrast(out, 20)
	if w := out.Bounds().Dx(); e.MinWidth > 0 && w > 0 && w < e.MinWidth {
		out = imaging.Resize(out, e.MinWidth, 0, imaging.Lanczos)
	}
	return out
}

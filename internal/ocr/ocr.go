// Copyright 2025 Matthew Gall <me@matthewgall.dev>
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package ocr obtains raw text from invoice files. The parsing core does not
// care how text was obtained; these sources shell out to pdftotext and
// tesseract or read plain text files directly.
package ocr

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/Amenkhnisi/strom-sense/internal/config"
)

// Source extracts text content from an invoice file
type Source interface {
	ExtractText(ctx context.Context, path string) (string, error)
}

// PdfToText extracts text from PDFs using the pdftotext CLI tool
type PdfToText struct {
	binPath string
}

// NewPdfToText creates a PdfToText source. If binPath is empty, "pdftotext" is used.
func NewPdfToText(binPath string) *PdfToText {
	if binPath == "" {
		binPath = "pdftotext"
	}
	return &PdfToText{binPath: binPath}
}

// ExtractText runs pdftotext -layout on the given PDF and returns stdout
func (p *PdfToText) ExtractText(ctx context.Context, path string) (string, error) {
	out, err := run(ctx, p.binPath, "-layout", path, "-")
	if err != nil {
		return "", eris.Wrapf(err, "ocr: pdftotext failed for %s", path)
	}
	return out, nil
}

// Tesseract extracts text from scanned invoice images
type Tesseract struct {
	binPath  string
	language string
}

// NewTesseract creates a Tesseract source. Empty arguments default to
// "tesseract" and German.
func NewTesseract(binPath, language string) *Tesseract {
	if binPath == "" {
		binPath = "tesseract"
	}
	if language == "" {
		language = "deu"
	}
	return &Tesseract{binPath: binPath, language: language}
}

// ExtractText runs tesseract on the image and returns stdout
func (t *Tesseract) ExtractText(ctx context.Context, path string) (string, error) {
	out, err := run(ctx, t.binPath, path, "stdout", "-l", t.language)
	if err != nil {
		return "", eris.Wrapf(err, "ocr: tesseract failed for %s", path)
	}
	return out, nil
}

// PlainText reads text that was extracted elsewhere
type PlainText struct{}

// ExtractText returns the file content
func (PlainText) ExtractText(_ context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", eris.Wrapf(err, "ocr: read %s", path)
	}
	return string(data), nil
}

// Router picks a Source by file extension and bounds each extraction
// with a timeout
type Router struct {
	pdf     Source
	image   Source
	text    Source
	timeout time.Duration
}

// NewRouter creates a Router from the OCR configuration
func NewRouter(cfg config.OCRConfig) *Router {
	return &Router{
		pdf:     NewPdfToText(cfg.PdfToTextPath),
		image:   NewTesseract(cfg.TesseractPath, cfg.Language),
		text:    PlainText{},
		timeout: cfg.Timeout(),
	}
}

// SourceFor returns the source responsible for path
func (r *Router) SourceFor(path string) (Source, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return r.pdf, nil
	case ".png", ".jpg", ".jpeg", ".tif", ".tiff":
		return r.image, nil
	case ".txt", ".text":
		return r.text, nil
	default:
		return nil, eris.Errorf("ocr: unsupported file type %q", filepath.Ext(path))
	}
}

// ExtractText implements Source by dispatching on the file extension
func (r *Router) ExtractText(ctx context.Context, path string) (string, error) {
	src, err := r.SourceFor(path)
	if err != nil {
		return "", err
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	return src.ExtractText(ctx, path)
}

func run(ctx context.Context, bin string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, bin, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", eris.Wrapf(err, "%s", strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

package ocr

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/kirillkom/study-assistant/internal/core/domain"
	"github.com/kirillkom/study-assistant/internal/core/ports"
)

type Config struct {
	Binary      string
	Language    string
	PageSegMode int
}

func (c Config) normalize() Config {
	out := c
	if strings.TrimSpace(out.Binary) == "" {
		out.Binary = "tesseract"
	}
	if strings.TrimSpace(out.Language) == "" {
		out.Language = "ara"
	}
	if out.PageSegMode <= 0 {
		out.PageSegMode = 6
	}
	return out
}

// Worker is one recognition session. Terminate must be called exactly once.
type Worker interface {
	Recognize(ctx context.Context, image []byte, progress func(float64)) (string, error)
	Terminate() error
}

// Engine is a verified OCR installation that can start workers.
type Engine struct {
	cfg       Config
	newWorker func(ctx context.Context) (Worker, error)
}

// NewEngineFactory returns a loader factory that verifies the binary and language data.
func NewEngineFactory(cfg Config) func(context.Context) (ports.EngineHandle, error) {
	cfg = cfg.normalize()
	return func(ctx context.Context) (ports.EngineHandle, error) {
		path, err := exec.LookPath(cfg.Binary)
		if err != nil {
			return nil, fmt.Errorf("locate ocr binary %q: %w", cfg.Binary, err)
		}
		if err := verifyLanguages(ctx, path, cfg.Language); err != nil {
			return nil, err
		}
		engine := &Engine{cfg: cfg}
		engine.newWorker = func(context.Context) (Worker, error) {
			return newCLIWorker(path, cfg)
		}
		return engine, nil
	}
}

func (e *Engine) Kind() domain.EngineKind {
	return domain.EngineOCR
}

func (e *Engine) NewWorker(ctx context.Context) (Worker, error) {
	return e.newWorker(ctx)
}

func verifyLanguages(ctx context.Context, binary, language string) error {
	out, err := exec.CommandContext(ctx, binary, "--list-langs").CombinedOutput()
	if err != nil {
		return fmt.Errorf("list ocr languages: %w", err)
	}
	available := parseLanguages(out)
	for _, lang := range strings.Split(language, "+") {
		if !available[lang] {
			return fmt.Errorf("ocr language data %q is not installed", lang)
		}
	}
	return nil
}

func parseLanguages(out []byte) map[string]bool {
	langs := make(map[string]bool)
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.Contains(line, " ") {
			continue
		}
		langs[line] = true
	}
	return langs
}

type cliWorker struct {
	binary string
	cfg    Config
	dir    string

	mu         sync.Mutex
	cmd        *exec.Cmd
	terminated bool
}

func newCLIWorker(binary string, cfg Config) (*cliWorker, error) {
	dir, err := os.MkdirTemp("", "ocr-worker-*")
	if err != nil {
		return nil, fmt.Errorf("create ocr workspace: %w", err)
	}
	return &cliWorker{binary: binary, cfg: cfg, dir: dir}, nil
}

func (w *cliWorker) Recognize(ctx context.Context, image []byte, progress func(float64)) (string, error) {
	input := filepath.Join(w.dir, "input")
	if err := os.WriteFile(input, image, 0o600); err != nil {
		return "", fmt.Errorf("write ocr input: %w", err)
	}

	cmd := exec.CommandContext(ctx, w.binary, input, "stdout",
		"-l", w.cfg.Language,
		"--psm", strconv.Itoa(w.cfg.PageSegMode),
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	w.mu.Lock()
	if w.terminated {
		w.mu.Unlock()
		return "", errors.New("ocr worker terminated")
	}
	w.cmd = cmd
	w.mu.Unlock()

	// The tesseract CLI prints no progress, so the ocr band moves from start to end in one step.
	progress(0)
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("run ocr: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	progress(1)
	return stdout.String(), nil
}

func (w *cliWorker) Terminate() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.terminated {
		return nil
	}
	w.terminated = true
	if w.cmd != nil && w.cmd.Process != nil && w.cmd.ProcessState == nil {
		_ = w.cmd.Process.Kill()
	}
	return os.RemoveAll(w.dir)
}

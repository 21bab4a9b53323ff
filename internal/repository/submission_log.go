package repository

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"tour-service/internal/logging"
	"tour-service/internal/models"
)

// FileSubmissionRepository keeps submissions as newline-delimited JSON in a
// single log file. Unparseable lines are skipped.
type FileSubmissionRepository struct {
	path   string
	logger *zap.Logger
	mu     sync.Mutex
}

func NewFileSubmissionRepository(path string, logger *zap.Logger) *FileSubmissionRepository {
	return &FileSubmissionRepository{path: path, logger: logging.OrNop(logger)}
}

// Path is the log file location.
func (r *FileSubmissionRepository) Path() string { return r.path }

// ReadSubmissionLog parses NDJSON submissions from rd.
func ReadSubmissionLog(rd io.Reader, logger *zap.Logger) ([]models.Submission, error) {
	logger = logging.OrNop(logger)
	var subs []models.Submission
	scanner := bufio.NewScanner(rd)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var sub models.Submission
		if err := json.Unmarshal([]byte(line), &sub); err != nil {
			logger.Warn("skipping malformed submission log line", zap.Error(err))
			continue
		}
		subs = append(subs, sub)
	}
	return subs, errors.Wrap(scanner.Err(), "read submission log")
}

func (r *FileSubmissionRepository) readAll() ([]models.Submission, error) {
	f, err := os.Open(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "open submission log")
	}
	defer f.Close()
	return ReadSubmissionLog(f, r.logger)
}

func (r *FileSubmissionRepository) writeAll(subs []models.Submission) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range subs {
		if err := enc.Encode(&subs[i]); err != nil {
			return errors.Wrap(err, "encode submission")
		}
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return errors.Wrap(err, "create log directory")
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return errors.Wrap(err, "write submission log")
	}
	return errors.Wrap(os.Rename(tmp, r.path), "replace submission log")
}

// Create appends one line to the log.
func (r *FileSubmissionRepository) Create(_ context.Context, sub *models.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	line, err := json.Marshal(sub)
	if err != nil {
		return errors.Wrap(err, "encode submission")
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return errors.Wrap(err, "create log directory")
	}
	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrap(err, "open submission log")
	}
	defer f.Close()
	_, err = f.Write(append(line, '\n'))
	return errors.Wrap(err, "append submission")
}

func (r *FileSubmissionRepository) Save(_ context.Context, sub *models.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	subs, err := r.readAll()
	if err != nil {
		return err
	}
	replaced := false
	for i := range subs {
		if subs[i].FileName == sub.FileName {
			subs[i] = *sub
			replaced = true
		}
	}
	if !replaced {
		subs = append(subs, *sub)
	}
	return r.writeAll(subs)
}

func (r *FileSubmissionRepository) Get(_ context.Context, fileName string) (*models.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	subs, err := r.readAll()
	if err != nil {
		return nil, err
	}
	for i := range subs {
		if subs[i].FileName == fileName {
			return &subs[i], nil
		}
	}
	return nil, ErrSubmissionNotFound
}

func (r *FileSubmissionRepository) List(_ context.Context) ([]models.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	subs, err := r.readAll()
	if subs == nil && err == nil {
		subs = []models.Submission{}
	}
	return subs, err
}

func (r *FileSubmissionRepository) Delete(_ context.Context, fileName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	subs, err := r.readAll()
	if err != nil {
		return err
	}
	kept := subs[:0]
	for _, s := range subs {
		if s.FileName != fileName {
			kept = append(kept, s)
		}
	}
	return r.writeAll(kept)
}

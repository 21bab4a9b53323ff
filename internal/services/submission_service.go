package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/mholt/archives"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"tour-service/internal/extraction"
	"tour-service/internal/logging"
	"tour-service/internal/metrics"
	"tour-service/internal/models"
	"tour-service/internal/repository"
)

var (
	ErrInvalidSubmission = errors.New("a project file and a student name are required")
	ErrInvalidFileName   = errors.New("invalid file name")
	ErrInvalidURLPath    = errors.New("Invalid URL path. Use only letters, numbers, underscores, and hyphens.")
	ErrNotHosted         = errors.New("Project is not currently hosted")
)

var (
	unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9]`)
	urlPathPattern  = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	legacyHostedURL = regexp.MustCompile(`/hosted/([^/]+)/`)
)

// Backup archive layout. Restores also accept the layout of older servers.
const (
	backupArchivesDir = "submissions"
	backupLog         = "submissions.log"
	backupHostedDir   = "hosted"

	legacyArchivesDir = "student-projects"
	legacyLog         = "submissions.json"
	legacyHostedDir   = "hosted-projects"
)

// SubmissionService accepts submitted tour bundles and publishes them as
// static sites under the hosted directory.
type SubmissionService struct {
	repo      repository.SubmissionRepository
	archives  ArchiveStore
	hostedDir string
	logger    *zap.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewSubmissionService(repo repository.SubmissionRepository, store ArchiveStore, hostedDir string,
	logger *zap.Logger, m *metrics.Metrics) *SubmissionService {
	return &SubmissionService{
		repo:      repo,
		archives:  store,
		hostedDir: hostedDir,
		logger:    logging.OrNop(logger),
		metrics:   m,
		now:       time.Now,
	}
}

// SubmissionFileName derives the stored file name of a submission.
func SubmissionFileName(studentName string, at time.Time) string {
	return fmt.Sprintf("%s_%d.zip", unsafeNameChars.ReplaceAllString(studentName, "_"), at.UnixMilli())
}

func checkFileName(name string) error {
	if name == "" || name != filepath.Base(name) || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return errors.Wrap(ErrInvalidFileName, name)
	}
	return nil
}

// Submit stores an uploaded bundle and records it.
func (s *SubmissionService) Submit(ctx context.Context, studentName, projectName string, r io.Reader, size int64) (sub *models.Submission, err error) {
	defer func() { s.metrics.ObserveSubmission("submit", err == nil) }()
	if strings.TrimSpace(studentName) == "" || r == nil {
		return nil, ErrInvalidSubmission
	}

	now := s.now()
	fileName := SubmissionFileName(studentName, now)
	written, err := s.archives.Put(ctx, fileName, r, size)
	if err != nil {
		return nil, err
	}
	sub = &models.Submission{
		FileName:    fileName,
		StudentName: studentName,
		ProjectName: projectName,
		Size:        written,
		SubmittedAt: now.UTC(),
	}
	if err := s.repo.Create(ctx, sub); err != nil {
		// remove the archive so it is not left without a record
		if derr := s.archives.Delete(ctx, fileName); derr != nil {
			s.logger.Warn("could not remove orphaned archive", zap.String("file", fileName), zap.Error(derr))
		}
		return nil, errors.Wrap(err, "failed to record submission")
	}
	s.logger.Info("project submitted",
		zap.String("file", fileName), zap.String("student", studentName), zap.Int64("bytes", written))
	return sub, nil
}

func (s *SubmissionService) List(ctx context.Context) ([]models.Submission, error) {
	return s.repo.List(ctx)
}

// Open returns the stored archive of a submission.
func (s *SubmissionService) Open(ctx context.Context, fileName string) (io.ReadCloser, error) {
	if err := checkFileName(fileName); err != nil {
		return nil, err
	}
	return s.archives.Open(ctx, fileName)
}

// Delete removes the archive, the hosted site and the record of a
// submission.
func (s *SubmissionService) Delete(ctx context.Context, fileName string) (err error) {
	defer func() { s.metrics.ObserveSubmission("delete", err == nil) }()
	if err := checkFileName(fileName); err != nil {
		return err
	}
	exists, err := s.archives.Exists(ctx, fileName)
	if err != nil {
		return err
	}
	sub, err := s.repo.Get(ctx, fileName)
	if err != nil && !errors.Is(err, repository.ErrSubmissionNotFound) {
		return err
	}
	if sub == nil && !exists {
		return errors.Wrap(repository.ErrSubmissionNotFound, fileName)
	}

	if sub != nil {
		if p := hostedPathOf(sub); p != "" {
			if err := os.RemoveAll(filepath.Join(s.hostedDir, p)); err != nil {
				return errors.Wrap(err, "remove hosted site")
			}
			s.logger.Info("deleted hosted folder", zap.String("path", p))
		}
		if err := s.repo.Delete(ctx, fileName); err != nil {
			return errors.Wrap(err, "remove submission record")
		}
	}
	if err := s.archives.Delete(ctx, fileName); err != nil {
		return errors.Wrap(err, "remove archive")
	}
	return nil
}

// hostedPathOf returns the hosted folder of sub. Entries written by older
// servers only carry the hosted URL.
func hostedPathOf(sub *models.Submission) string {
	p := sub.HostedPath
	if p == "" && sub.HostedURL != "" {
		if m := legacyHostedURL.FindStringSubmatch(sub.HostedURL); m != nil {
			p = m[1]
		}
	}
	if !urlPathPattern.MatchString(p) {
		return ""
	}
	return p
}

// Host extracts the submission to hosted/<urlPath> and records the hosted
// location. A previous site of the same submission and any site already at
// urlPath are replaced.
func (s *SubmissionService) Host(ctx context.Context, fileName, urlPath string) (sub *models.Submission, err error) {
	defer func() { s.metrics.ObserveSubmission("host", err == nil) }()
	if !urlPathPattern.MatchString(urlPath) {
		return nil, ErrInvalidURLPath
	}
	if err := checkFileName(fileName); err != nil {
		return nil, err
	}
	rc, err := s.archives.Open(ctx, fileName)
	if err != nil {
		return nil, err
	}
	local, err := spool(rc)
	rc.Close()
	if err != nil {
		return nil, err
	}
	defer os.Remove(local)

	sub, err = s.repo.Get(ctx, fileName)
	if errors.Is(err, repository.ErrSubmissionNotFound) {
		sub, err = &models.Submission{FileName: fileName}, nil
	}
	if err != nil {
		return nil, err
	}

	if old := hostedPathOf(sub); old != "" && old != urlPath {
		if err := os.RemoveAll(filepath.Join(s.hostedDir, old)); err != nil {
			return nil, errors.Wrap(err, "remove old hosted version")
		}
		s.logger.Info("removed old hosted version", zap.String("path", old))
	}
	target := filepath.Join(s.hostedDir, urlPath)
	if err := os.RemoveAll(target); err != nil {
		return nil, errors.Wrap(err, "clear hosted directory")
	}
	if err := os.MkdirAll(target, 0o755); err != nil {
		return nil, errors.Wrap(err, "create hosted directory")
	}
	if _, err := extraction.ExtractArchive(ctx, local, target); err != nil {
		os.RemoveAll(target)
		return nil, errors.Wrap(err, "Error extracting project")
	}

	hostedAt := s.now().UTC()
	sub.HostedURL = "/hosted/" + urlPath + "/index.html"
	sub.HostedPath = urlPath
	sub.HostedAt = &hostedAt
	sub.IsHosted = true
	if err := s.repo.Save(ctx, sub); err != nil {
		return nil, errors.Wrap(err, "update submission record")
	}
	s.logger.Info("project hosted", zap.String("file", fileName), zap.String("path", urlPath))
	return sub, nil
}

// spool copies rc to a temporary file and returns its path.
func spool(rc io.Reader) (string, error) {
	f, err := os.CreateTemp("", "submission-*.zip")
	if err != nil {
		return "", errors.Wrap(err, "could not create temporary file")
	}
	_, err = io.Copy(f, rc)
	f.Close()
	if err != nil {
		os.Remove(f.Name())
		return "", errors.Wrap(err, "failed to write temporary file")
	}
	return f.Name(), nil
}

// Unhost removes the hosted site of a submission and clears its hosting
// fields.
func (s *SubmissionService) Unhost(ctx context.Context, fileName string) (err error) {
	defer func() { s.metrics.ObserveSubmission("unhost", err == nil) }()
	if err := checkFileName(fileName); err != nil {
		return err
	}
	sub, err := s.repo.Get(ctx, fileName)
	if errors.Is(err, repository.ErrSubmissionNotFound) {
		return ErrNotHosted
	}
	if err != nil {
		return err
	}
	p := hostedPathOf(sub)
	if p == "" {
		return ErrNotHosted
	}
	if err := os.RemoveAll(filepath.Join(s.hostedDir, p)); err != nil {
		return errors.Wrap(err, "remove hosted site")
	}
	sub.HostedURL, sub.HostedPath, sub.HostedAt, sub.IsHosted = "", "", nil, false
	if err := s.repo.Save(ctx, sub); err != nil {
		return errors.Wrap(err, "update submission record")
	}
	s.logger.Info("project unhosted", zap.String("file", fileName), zap.String("path", p))
	return nil
}

// Backup writes one zip holding every archive, the submission log and all
// hosted sites.
func (s *SubmissionService) Backup(ctx context.Context, w io.Writer) (err error) {
	defer func() { s.metrics.ObserveSubmission("backup", err == nil) }()
	staging, err := os.MkdirTemp("", "tour-backup-*")
	if err != nil {
		return errors.Wrap(err, "create staging dir")
	}
	defer os.RemoveAll(staging)

	if err := s.stageArchives(ctx, filepath.Join(staging, backupArchivesDir)); err != nil {
		return err
	}
	if err := s.stageLog(ctx, filepath.Join(staging, backupLog)); err != nil {
		return err
	}

	sources := map[string]string{staging + string(os.PathSeparator): ""}
	if info, err := os.Stat(s.hostedDir); err == nil && info.IsDir() {
		sources[s.hostedDir] = backupHostedDir
	}
	files, err := archives.FilesFromDisk(ctx, nil, sources)
	if err != nil {
		return errors.Wrap(err, "collect backup files")
	}
	if err := (archives.Zip{}).Archive(ctx, w, files); err != nil {
		return errors.Wrap(err, "write backup")
	}
	s.logger.Info("backup created", zap.Int("files", len(files)))
	return nil
}

func (s *SubmissionService) stageArchives(ctx context.Context, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	names, err := s.archives.Names(ctx)
	if err != nil {
		return errors.Wrap(err, "list archives")
	}
	for _, name := range names {
		rc, err := s.archives.Open(ctx, name)
		if err != nil {
			return err
		}
		err = writeFile(filepath.Join(dir, name), rc)
		rc.Close()
		if err != nil {
			return errors.Wrapf(err, "stage %s", name)
		}
	}
	return nil
}

func (s *SubmissionService) stageLog(ctx context.Context, p string) error {
	subs, err := s.repo.List(ctx)
	if err != nil {
		return errors.Wrap(err, "list submissions")
	}
	f, err := os.Create(p)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	for i := range subs {
		if err := enc.Encode(&subs[i]); err != nil {
			return errors.Wrap(err, "encode submission")
		}
	}
	return nil
}

func writeFile(p string, r io.Reader) error {
	f, err := os.Create(p)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(f, r)
	return err
}

// RestoreReport counts what a restore brought back.
type RestoreReport struct {
	Archives    int `json:"archives"`
	Submissions int `json:"submissions"`
	HostedSites int `json:"hostedSites"`
}

// Restore reads a backup written by Backup, or by older servers, and puts
// its archives, records and hosted sites back. Existing entries with the
// same names are replaced.
func (s *SubmissionService) Restore(ctx context.Context, archivePath string) (report RestoreReport, err error) {
	defer func() { s.metrics.ObserveSubmission("restore", err == nil) }()
	_, dir, err := extraction.ExtractToTemp(ctx, archivePath)
	if err != nil {
		return report, errors.Wrap(err, "Failed to restore backup")
	}
	defer os.RemoveAll(dir)

	for _, sub := range []string{backupArchivesDir, legacyArchivesDir} {
		n, err := s.restoreArchives(ctx, filepath.Join(dir, sub))
		if err != nil {
			return report, err
		}
		report.Archives += n
	}
	for _, name := range []string{backupLog, legacyLog} {
		n, err := s.restoreLog(ctx, filepath.Join(dir, name))
		if err != nil {
			return report, err
		}
		report.Submissions += n
	}
	for _, sub := range []string{backupHostedDir, legacyHostedDir} {
		n, err := s.restoreHosted(filepath.Join(dir, sub))
		if err != nil {
			return report, err
		}
		report.HostedSites += n
	}
	s.logger.Info("backup restored",
		zap.Int("archives", report.Archives),
		zap.Int("submissions", report.Submissions),
		zap.Int("hosted_sites", report.HostedSites))
	return report, nil
}

func (s *SubmissionService) restoreArchives(ctx context.Context, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		f, err := os.Open(filepath.Join(dir, e.Name()))
		if err != nil {
			return n, err
		}
		info, _ := f.Stat()
		_, err = s.archives.Put(ctx, e.Name(), f, info.Size())
		f.Close()
		if err != nil {
			return n, errors.Wrapf(err, "restore %s", e.Name())
		}
		n++
	}
	return n, nil
}

func (s *SubmissionService) restoreLog(ctx context.Context, p string) (int, error) {
	f, err := os.Open(p)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	defer f.Close()
	subs, err := repository.ReadSubmissionLog(f, s.logger)
	if err != nil {
		return 0, err
	}
	for i := range subs {
		if err := s.repo.Save(ctx, &subs[i]); err != nil {
			return i, errors.Wrapf(err, "restore record %s", subs[i].FileName)
		}
	}
	return len(subs), nil
}

func (s *SubmissionService) restoreHosted(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir() || !urlPathPattern.MatchString(e.Name()) {
			continue
		}
		target := filepath.Join(s.hostedDir, e.Name())
		if err := os.RemoveAll(target); err != nil {
			return n, err
		}
		if err := os.MkdirAll(s.hostedDir, 0o755); err != nil {
			return n, err
		}
		if err := os.CopyFS(target, os.DirFS(filepath.Join(dir, e.Name()))); err != nil {
			return n, errors.Wrapf(err, "restore hosted site %s", e.Name())
		}
		n++
	}
	return n, nil
}

package export

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/purchase-export/extract"
)

// SessionLayout names session folders. A second session in the same
// second gets a "_2", "_3", ... suffix.
const SessionLayout = "20060102_150405"

// DefaultPrefix starts every export file name.
const DefaultPrefix = "apple_purchases"

// ErrNoRecords is returned when a run produced nothing to save.
var ErrNoRecords = errors.New("no purchases were found")

// File is one exported file.
type File struct {
	Name    string `json:"filename"`
	Content []byte `json:"content"`
}

// Session is the content of one session folder.
type Session struct {
	Folder string `json:"sessionFolder"`
	Files  []File `json:"files"`
}

// Store saves run results as CSV files, one session folder per run.
type Store struct {
	dir    string
	prefix string
	now    func() time.Time
	logger *zap.SugaredLogger
}

// NewStore returns a store rooted at dir.
func NewStore(dir, prefix string, logger *zap.SugaredLogger) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Store{dir: dir, prefix: prefix, now: time.Now, logger: logger}
}

// Dir returns the store root.
func (s *Store) Dir() string {
	return s.dir
}

// FileName is the export file name for a run that ended with status on day.
// Cancelled runs are marked partial.
func (s *Store) FileName(status extract.Status, day time.Time) string {
	name := s.prefix
	if status == extract.StatusCancelled {
		name += "_partial"
	}
	return name + "_" + day.Format("2006-01-02") + ".csv"
}

// Save writes res.Records into a new session folder and returns the file
// path. Results without records are not saved.
func (s *Store) Save(res *extract.Result) (string, error) {
	if len(res.Records) == 0 {
		return "", ErrNoRecords
	}

	now := s.now()
	folder, err := s.newSession(now)
	if err != nil {
		return "", err
	}

	path := filepath.Join(folder, s.FileName(res.Status, now))
	f, err := os.Create(path)
	if err != nil {
		return "", errors.Wrap(err, "failed to create export file")
	}
	if err := Write(f, res.Records); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", errors.Wrap(err, "failed to close export file")
	}

	s.logger.Infow("Export saved", "path", path, "records", len(res.Records), "status", res.Status)
	return path, nil
}

// Latest returns the newest session folder and its files, or nil when no
// session exists yet.
func (s *Store) Latest() (*Session, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to list sessions")
	}

	var (
		latest   string
		latestAt time.Time
		latestN  int
	)
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		at, n, ok := parseSession(e.Name())
		if !ok {
			continue
		}
		if latest == "" || at.After(latestAt) || (at.Equal(latestAt) && n > latestN) {
			latest, latestAt, latestN = e.Name(), at, n
		}
	}
	if latest == "" {
		s.logger.Debug("No session folder found")
		return nil, nil
	}

	sessionPath := filepath.Join(s.dir, latest)
	files, err := os.ReadDir(sessionPath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read session %s", latest)
	}

	session := &Session{Folder: latest}
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		content, err := os.ReadFile(filepath.Join(sessionPath, f.Name()))
		if err != nil {
			s.logger.Warnf("Could not read file %s: %v", f.Name(), err)
			continue
		}
		session.Files = append(session.Files, File{Name: f.Name(), Content: content})
	}
	s.logger.Debugf("Returning %d files from session %s", len(session.Files), latest)
	return session, nil
}

// newSession creates the session folder for now, suffixing the name when a
// session from the same second already exists.
func (s *Store) newSession(now time.Time) (string, error) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", errors.Wrap(err, "failed to create export directory")
	}
	base := now.Format(SessionLayout)
	name := base
	for n := 2; ; n++ {
		folder := filepath.Join(s.dir, name)
		err := os.Mkdir(folder, 0755)
		if err == nil {
			return folder, nil
		}
		if !os.IsExist(err) {
			return "", errors.Wrap(err, "failed to create session folder")
		}
		name = base + "_" + strconv.Itoa(n)
	}
}

// parseSession reads a session folder name back into its time and
// same-second sequence number, 1 for an unsuffixed name.
func parseSession(name string) (time.Time, int, bool) {
	if len(name) < len(SessionLayout) {
		return time.Time{}, 0, false
	}
	at, err := time.Parse(SessionLayout, name[:len(SessionLayout)])
	if err != nil {
		return time.Time{}, 0, false
	}
	rest := name[len(SessionLayout):]
	if rest == "" {
		return at, 1, true
	}
	if rest[0] != '_' {
		return time.Time{}, 0, false
	}
	n, err := strconv.Atoi(rest[1:])
	if err != nil || n < 2 {
		return time.Time{}, 0, false
	}
	return at, n, true
}

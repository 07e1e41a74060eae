package codecontext

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"regexp"
	"strings"

	"github.com/vibecollab/vibeagent/internal/domain"
	"github.com/vibecollab/vibeagent/internal/observability"
)

var (
	ErrInvalidURL   = errors.New("please enter a valid GitHub file URL")
	ErrDuplicateURL = errors.New("file is already in the context list")
)

// ContentLoading is the placeholder shown while a fetch is in flight.
const ContentLoading = "Loading..."

var githubFileURL = regexp.MustCompile(`^https://github\.com/[^/]+/[^/]+/blob/.+`)

// Session is the replicated view the store mutates. Placeholder inserts and
// rollbacks stay local; only resolved entries are published to peers.
type Session interface {
	HasContextURL(url string) bool
	InsertContextLocal(f domain.CodeContextFile)
	DropContextLocal(id domain.ContextID)
	PublishContext(f domain.CodeContextFile)
	RemoveContext(id domain.ContextID)
}

// Store maintains the deduplicated list of externally fetched code snippets
// attached to every assistant request.
type Store struct {
	session Session
	client  *http.Client
	log     *slog.Logger
}

func NewStore(session Session, client *http.Client) *Store {
	if client == nil {
		client = http.DefaultClient
	}
	return &Store{
		session: session,
		client:  client,
		log:     observability.Component("codecontext"),
	}
}

// FileID derives the entry id from the normalized URL, so two peers that add
// the same file independently assign the same id and converge under the
// reducer's AddContext idempotence.
func FileID(fileURL string) domain.ContextID {
	sum := sha256.Sum256([]byte(strings.TrimSpace(fileURL)))
	return domain.ContextID(hex.EncodeToString(sum[:8]))
}

// RawContentURL maps a GitHub file page URL to its raw-content variant.
func RawContentURL(fileURL string) string {
	raw := strings.Replace(fileURL, "github.com", "raw.githubusercontent.com", 1)
	return strings.Replace(raw, "/blob/", "/", 1)
}

// AddFile validates the locator, inserts an optimistic placeholder, fetches
// the raw content, and resolves the entry in place. On any fetch failure the
// placeholder is removed again and the error is returned to the caller; the
// failure is never replicated. Returns the resolved entry on success.
func (s *Store) AddFile(ctx context.Context, fileURL string) (domain.CodeContextFile, error) {
	fileURL = strings.TrimSpace(fileURL)

	if !githubFileURL.MatchString(fileURL) {
		return domain.CodeContextFile{}, ErrInvalidURL
	}
	if s.session.HasContextURL(fileURL) {
		return domain.CodeContextFile{}, ErrDuplicateURL
	}

	file := domain.CodeContextFile{
		ID:       FileID(fileURL),
		URL:      fileURL,
		FileName: path.Base(fileURL),
		Content:  ContentLoading,
	}
	s.session.InsertContextLocal(file)

	content, err := s.fetchRaw(ctx, fileURL)
	if err != nil {
		s.session.DropContextLocal(file.ID)
		s.log.Warn("context fetch failed, rolled back", "url", fileURL, "error", err)
		return domain.CodeContextFile{}, err
	}

	file.Content = content
	s.session.PublishContext(file)
	s.log.Info("context file added", "file", file.FileName, "bytes", len(content))
	return file, nil
}

// RemoveFile removes by id and replicates the removal. Removing an absent id
// is a no-op.
func (s *Store) RemoveFile(id domain.ContextID) {
	s.session.RemoveContext(id)
}

func (s *Store) fetchRaw(ctx context.Context, fileURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, RawContentURL(fileURL), nil)
	if err != nil {
		return "", fmt.Errorf("building raw content request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching file content: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to fetch file, status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading file content: %w", err)
	}
	return string(body), nil
}

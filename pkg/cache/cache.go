package cache

import (
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/netpie/microgear-go/pkg/file"
	"github.com/netpie/microgear-go/pkg/models"
)

// record is the serialized content of a per-identity cache file.
type record struct {
	Key          string               `json:"key,omitempty"`
	RequestToken *models.RequestToken `json:"requesttoken,omitempty"`
	AccessToken  *models.AccessToken  `json:"accesstoken,omitempty"`
}

// CredentialStore persists the token records for one gear identity across
// restarts. Read failures are never fatal: a missing or corrupt record is
// reported as absent so the caller can always fall back to a fresh
// handshake. Write failures propagate.
type CredentialStore interface {
	Key() string
	RequestToken() (*models.RequestToken, bool)
	SetRequestToken(t *models.RequestToken) error
	ClearRequestToken() error
	AccessToken() (*models.AccessToken, bool)
	SetAccessToken(t *models.AccessToken) error
	ClearAccessToken() error
	Clear() error
	Path() string
}

// FileStore is a CredentialStore backed by a single JSON file. The file
// path is derived from the gear key so that multiple identities in one
// process never collide. Concurrent instances sharing one path are not
// supported; there is no file locking.
type FileStore struct {
	path     string
	ownerKey string
	fileOps  file.FileOperations
	logger   zerolog.Logger
}

// NewFileStore creates a credential store at the given path, stamping
// every persisted record with ownerKey.
func NewFileStore(path, ownerKey string, fileOps file.FileOperations, logger zerolog.Logger) *FileStore {
	return &FileStore{
		path:     path,
		ownerKey: ownerKey,
		fileOps:  fileOps,
		logger:   logger,
	}
}

// DefaultPath derives the cache file location for a gear key.
func DefaultPath(dir, gearKey string) string {
	return filepath.Join(dir, "microgear-"+sanitize(gearKey)+".cache")
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, s)
}

// Path returns the backing file location.
func (s *FileStore) Path() string {
	return s.path
}

// Key returns the gear key the persisted record belongs to, or empty when
// no record exists.
func (s *FileStore) Key() string {
	return s.load().Key
}

// RequestToken returns the cached request token, if any.
func (s *FileStore) RequestToken() (*models.RequestToken, bool) {
	rec := s.load()
	if rec.RequestToken == nil || rec.RequestToken.Token == "" {
		return nil, false
	}
	return rec.RequestToken, true
}

// SetRequestToken persists the request token.
func (s *FileStore) SetRequestToken(t *models.RequestToken) error {
	rec := s.load()
	rec.Key = s.ownerKey
	rec.RequestToken = t
	return s.store(rec)
}

// ClearRequestToken drops the request token, keeping the rest of the record.
func (s *FileStore) ClearRequestToken() error {
	rec := s.load()
	if rec.RequestToken == nil {
		return nil
	}
	rec.RequestToken = nil
	return s.store(rec)
}

// AccessToken returns the cached access token, if any.
func (s *FileStore) AccessToken() (*models.AccessToken, bool) {
	rec := s.load()
	if rec.AccessToken == nil || rec.AccessToken.Token == "" {
		return nil, false
	}
	return rec.AccessToken, true
}

// SetAccessToken persists the access token.
func (s *FileStore) SetAccessToken(t *models.AccessToken) error {
	rec := s.load()
	rec.Key = s.ownerKey
	rec.AccessToken = t
	return s.store(rec)
}

// ClearAccessToken drops the access token, keeping the rest of the record.
func (s *FileStore) ClearAccessToken() error {
	rec := s.load()
	if rec.AccessToken == nil {
		return nil
	}
	rec.AccessToken = nil
	return s.store(rec)
}

// Clear wipes the whole record.
func (s *FileStore) Clear() error {
	exists, err := s.fileOps.IsFileExists(s.path)
	if err == nil && !exists {
		return nil
	}
	return s.fileOps.Remove(s.path)
}

func (s *FileStore) load() record {
	var rec record
	if err := s.fileOps.ReadJsonFile(s.path, &rec); err != nil {
		// Missing or corrupt cache reads as empty so the handshake can
		// start over.
		s.logger.Debug().Err(err).Str("path", s.path).Msg("Credential cache read as empty")
		return record{}
	}
	return rec
}

func (s *FileStore) store(rec record) error {
	return s.fileOps.WriteJsonFile(s.path, rec)
}

package session

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/mr-tron/base58"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/victimvoice/internal/models"
)

// Sentinel errors
var (
	// ErrTokenNotFound is returned when no token is stored for a role.
	ErrTokenNotFound = errors.New("token not found")

	// ErrEmptyToken is returned when saving an empty token.
	ErrEmptyToken = errors.New("token is empty")
)

const tokensFile = "tokens.json"

// StoredToken is a bearer token persisted for one role.
type StoredToken struct {
	Role        models.Role `json:"role"`
	Token       string      `json:"token"`
	Fingerprint string      `json:"fingerprint"`
	SavedAt     time.Time   `json:"saved_at"`
}

// tokenFile is the on-disk layout of the token store.
type tokenFile struct {
	Version int                    `json:"version"`
	Tokens  map[string]StoredToken `json:"tokens"`
}

// Store persists bearer tokens on the local filesystem, one slot per role.
type Store struct {
	baseDir string
}

// NewStore creates a new token store.
// If baseDir is empty, uses ~/.victimvoice/
func NewStore(baseDir string) (*Store, error) {
	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		baseDir = filepath.Join(home, ".victimvoice")
	}

	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create token directory: %w", err)
	}

	store := &Store{baseDir: baseDir}

	if err := store.ensureFile(); err != nil {
		return nil, err
	}

	log.Debug().Str("baseDir", baseDir).Msg("token store initialized")

	return store, nil
}

// Fingerprint returns a Base58 SHA256 of the token, safe to log.
func Fingerprint(token string) string {
	hash := sha256.Sum256([]byte(token))
	return base58.Encode(hash[:])
}

// Save stores the token for a role, replacing any previous one.
func (s *Store) Save(role models.Role, token string) (*StoredToken, error) {
	if token == "" {
		return nil, ErrEmptyToken
	}

	tf, err := s.load()
	if err != nil {
		return nil, err
	}

	stored := StoredToken{
		Role:        role,
		Token:       token,
		Fingerprint: Fingerprint(token),
		SavedAt:     time.Now().UTC(),
	}
	tf.Tokens[role.TokenKey()] = stored

	if err := s.save(tf); err != nil {
		return nil, err
	}

	log.Debug().
		Str("role", string(role)).
		Str("fingerprint", stored.Fingerprint).
		Msg("token saved")

	return &stored, nil
}

// Load returns the token stored for a role.
func (s *Store) Load(role models.Role) (*StoredToken, error) {
	tf, err := s.load()
	if err != nil {
		return nil, err
	}

	stored, ok := tf.Tokens[role.TokenKey()]
	if !ok || stored.Token == "" {
		return nil, ErrTokenNotFound
	}

	return &stored, nil
}

// Delete removes the token for a role.
func (s *Store) Delete(role models.Role) error {
	tf, err := s.load()
	if err != nil {
		return err
	}

	if _, ok := tf.Tokens[role.TokenKey()]; !ok {
		return ErrTokenNotFound
	}

	delete(tf.Tokens, role.TokenKey())

	if err := s.save(tf); err != nil {
		return err
	}

	log.Debug().Str("role", string(role)).Msg("token deleted")

	return nil
}

// List returns every stored token ordered by role.
func (s *Store) List() ([]StoredToken, error) {
	tf, err := s.load()
	if err != nil {
		return nil, err
	}

	tokens := make([]StoredToken, 0, len(tf.Tokens))
	for _, t := range tf.Tokens {
		tokens = append(tokens, t)
	}
	sort.Slice(tokens, func(i, j int) bool { return tokens[i].Role < tokens[j].Role })

	return tokens, nil
}

func (s *Store) path() string {
	return filepath.Join(s.baseDir, tokensFile)
}

// ensureFile creates an empty token file if it doesn't exist.
func (s *Store) ensureFile() error {
	if _, err := os.Stat(s.path()); err == nil {
		return nil
	}

	return s.save(&tokenFile{
		Version: 1,
		Tokens:  make(map[string]StoredToken),
	})
}

func (s *Store) load() (*tokenFile, error) {
	data, err := os.ReadFile(s.path())
	if err != nil {
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	var tf tokenFile
	if err := json.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("failed to parse token file: %w", err)
	}

	if tf.Tokens == nil {
		tf.Tokens = make(map[string]StoredToken)
	}

	return &tf, nil
}

// save writes the token file atomically.
func (s *Store) save(tf *tokenFile) error {
	data, err := json.MarshalIndent(tf, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal token file: %w", err)
	}

	tempPath := s.path() + ".tmp"

	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}

	if err := os.Rename(tempPath, s.path()); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to save token file: %w", err)
	}

	return nil
}

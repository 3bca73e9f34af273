package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"
	"unicode/utf16"

	"github.com/MarcoPoloResearchLab/khoji/backend/internal/localstore"
	"go.uber.org/zap"
)

var errMissingStorage = errors.New("identity: storage required")

// StoreConfig describes the dependencies of the identity store.
type StoreConfig struct {
	Storage localstore.Store
	Clock   func() time.Time
	Logger  *zap.Logger
}

// Store owns the registered accounts and the current session of one profile.
// Mutations are serialized; the persisted values are rewritten on every change.
type Store struct {
	mu      sync.Mutex
	storage localstore.Store
	now     func() time.Time
	logger  *zap.Logger
	current *Account
}

// NewStore constructs the store and loads the persisted session. A session value
// that cannot be parsed is removed and the store starts signed out.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Storage == nil {
		return nil, errMissingStorage
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	store := &Store{
		storage: cfg.Storage,
		now:     clock,
		logger:  logger,
	}
	if err := store.loadSession(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *Store) loadSession() error {
	raw, found, err := s.storage.GetItem(SessionKey)
	if err != nil {
		return fmt.Errorf("identity: load session: %w", err)
	}
	if !found {
		return nil
	}
	var session *Account
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		s.logger.Warn("discarding corrupt stored session", zap.Error(err))
		if removeErr := s.storage.RemoveItem(SessionKey); removeErr != nil {
			s.logger.Error("failed to remove corrupt session", zap.Error(removeErr))
		}
		return nil
	}
	if session != nil {
		stripped := session.WithoutPassword()
		s.current = &stripped
	}
	return nil
}

// Signup registers a new account and signs it in. Rules are checked in this
// order: duplicate email, required fields, password length, email format.
func (s *Store) Signup(name, email, password string) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts, err := s.loadAccounts()
	if err != nil {
		return Account{}, err
	}

	for _, account := range accounts {
		if account.Email == email {
			return Account{}, newValidationError(MessageEmailRegistered)
		}
	}
	if name == "" || email == "" || password == "" {
		return Account{}, newValidationError(MessageFieldsRequired)
	}
	if passwordLength(password) < minPasswordLength {
		return Account{}, newValidationError(MessagePasswordTooShort)
	}
	if !validEmail(email) {
		return Account{}, newValidationError(MessageInvalidEmail)
	}

	now := s.now()
	account := Account{
		ID:        nextAccountID(now, accounts),
		Name:      name,
		Email:     email,
		Password:  password,
		CreatedAt: Timestamp{Time: now.UTC()},
	}
	accounts = append(accounts, account)
	if err := s.saveAccounts(accounts); err != nil {
		return Account{}, err
	}

	session := account.WithoutPassword()
	if err := s.saveSession(session); err != nil {
		return Account{}, err
	}
	s.logger.Info("account registered", zap.String("account_id", account.ID))
	return session, nil
}

// SignupConfirmed checks the repeated password before running Signup.
func (s *Store) SignupConfirmed(name, email, password, confirmation string) (Account, error) {
	if password != confirmation {
		return Account{}, newValidationError(MessagePasswordMismatch)
	}
	return s.Signup(name, email, password)
}

// Login signs in the account whose email and password both match exactly.
func (s *Store) Login(email, password string) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts, err := s.loadAccounts()
	if err != nil {
		return Account{}, err
	}
	for _, account := range accounts {
		if account.Email == email && account.Password == password {
			session := account.WithoutPassword()
			if err := s.saveSession(session); err != nil {
				return Account{}, err
			}
			return session, nil
		}
	}
	return Account{}, ErrInvalidCredentials
}

// Logout clears the current session. It never fails; a storage error is logged.
func (s *Store) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = nil
	if err := s.storage.RemoveItem(SessionKey); err != nil {
		s.logger.Error("failed to remove stored session", zap.Error(err))
	}
}

// CurrentUser returns the signed-in account without its password.
func (s *Store) CurrentUser() (Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return Account{}, false
	}
	return *s.current, true
}

// IsAuthenticated reports whether a session is active.
func (s *Store) IsAuthenticated() bool {
	_, ok := s.CurrentUser()
	return ok
}

func (s *Store) loadAccounts() ([]Account, error) {
	raw, found, err := s.storage.GetItem(AccountsKey)
	if err != nil {
		return nil, fmt.Errorf("identity: load accounts: %w", err)
	}
	if !found {
		return []Account{}, nil
	}
	var accounts []Account
	if err := json.Unmarshal([]byte(raw), &accounts); err != nil {
		return nil, fmt.Errorf("identity: decode accounts: %w", err)
	}
	if accounts == nil {
		accounts = []Account{}
	}
	return accounts, nil
}

func (s *Store) saveAccounts(accounts []Account) error {
	encoded, err := json.Marshal(accounts)
	if err != nil {
		return fmt.Errorf("identity: encode accounts: %w", err)
	}
	if err := s.storage.SetItem(AccountsKey, string(encoded)); err != nil {
		return fmt.Errorf("identity: save accounts: %w", err)
	}
	return nil
}

func (s *Store) saveSession(session Account) error {
	encoded, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("identity: encode session: %w", err)
	}
	if err := s.storage.SetItem(SessionKey, string(encoded)); err != nil {
		return fmt.Errorf("identity: save session: %w", err)
	}
	s.current = &session
	return nil
}

// nextAccountID derives an identifier from the clock in unix milliseconds,
// stepping forward past identifiers already taken.
func nextAccountID(now time.Time, accounts []Account) string {
	taken := make(map[string]struct{}, len(accounts))
	for _, account := range accounts {
		taken[account.ID] = struct{}{}
	}
	millis := now.UnixMilli()
	for {
		candidate := strconv.FormatInt(millis, 10)
		if _, exists := taken[candidate]; !exists {
			return candidate
		}
		millis++
	}
}

// passwordLength counts UTF-16 code units, the length browsers report for a string.
func passwordLength(password string) int {
	return len(utf16.Encode([]rune(password)))
}

// Package session holds the per-visitor authentication state machine.
//
// Every asynchronous operation publishes a pending event and then exactly
// one fulfilled or rejected event. Subscribers receive events one at a time
// in commit order and must not dispatch operations from inside the callback.
package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/nexlearn-dashboard/internal/gateway"
	"github.com/noah-isme/nexlearn-dashboard/internal/models"
	"github.com/noah-isme/nexlearn-dashboard/internal/persistence"
)

// Messages stored in State.Error when the remote API gives none.
const (
	LoginFailed          = "Login failed. Please try again."
	RegistrationFailed   = "Registration failed. Please try again."
	FetchProfileFailed   = "Failed to fetch profile."
	UpdateProfileFailed  = "Failed to update profile."
	ChangePasswordFailed = "Failed to change password."
	ForgotPasswordFailed = "Failed to send reset email."
	ResetPasswordFailed  = "Failed to reset password."
	UploadAvatarFailed   = "Failed to upload avatar."
)

// AuthGateway is the remote API as seen by the store.
type AuthGateway interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.AuthData, error)
	Register(ctx context.Context, req models.RegisterRequest) (*models.AuthData, error)
	Profile(ctx context.Context) (*models.User, error)
	UpdateProfile(ctx context.Context, req models.ProfileUpdateRequest) (*models.User, error)
	ChangePassword(ctx context.Context, req models.ChangePasswordRequest) (string, error)
	ForgotPassword(ctx context.Context, req models.ForgotPasswordRequest) (string, error)
	ResetPassword(ctx context.Context, req models.ResetPasswordRequest) (string, error)
	UploadAvatar(ctx context.Context, filename string, data []byte) (*models.User, error)
}

// Persister mirrors state into durable storage.
type Persister interface {
	Load(ctx context.Context) (persistence.Snapshot, bool)
	Save(ctx context.Context, token string, user *models.User) error
	SaveUser(ctx context.Context, user *models.User) error
	Clear(ctx context.Context) error
}

// Failure is returned by a rejected operation. Message is the value now held
// in State.Error.
type Failure struct {
	Op      models.Operation
	Message string
	Status  int
	Err     error
}

func (f *Failure) Error() string {
	return string(f.Op) + ": " + f.Message
}

func (f *Failure) Unwrap() error {
	return f.Err
}

type persistFn func(ctx context.Context) error

// Store is one visitor's session. It is safe for concurrent use.
type Store struct {
	persist  Persister
	gateway  AuthGateway
	strict   bool
	observer Observer
	logger   *zap.Logger
	now      func() time.Time

	mu         sync.Mutex
	state      models.SessionState
	inFlight   int
	generation uint64
	lastUsed   time.Time

	// dispatchMu orders persistence writes and event delivery by commit.
	dispatchMu sync.Mutex

	subMu   sync.RWMutex
	subs    map[uint64]func(models.SessionEvent)
	nextSub uint64
}

// NewStore creates a store and rehydrates it from persist before returning.
// Either collaborator may be nil: a nil persister keeps the session in memory
// only, a nil gateway rejects every remote operation.
func NewStore(ctx context.Context, persist Persister, gw AuthGateway, opts ...Option) *Store {
	s := &Store{
		persist: persist,
		gateway: gw,
		logger:  zap.NewNop(),
		now:     time.Now,
		subs:    make(map[uint64]func(models.SessionEvent)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.lastUsed = s.now()
	s.rehydrate(ctx)
	return s
}

func (s *Store) rehydrate(ctx context.Context) {
	if s.persist == nil {
		return
	}
	snap, ok := s.persist.Load(ctx)
	if !ok {
		s.observe(models.OpRehydrate, models.PhaseFulfilled, 0)
		return
	}

	s.mu.Lock()
	s.state.User = snap.User
	s.state.Token = snap.Token
	s.state.IsAuthenticated = snap.Token != ""
	s.mu.Unlock()

	s.logger.Debug("session rehydrated", zap.String("user_id", userID(snap.User)))
	s.observe(models.OpRehydrate, models.PhaseFulfilled, 0)
}

// State returns a copy of the current state.
func (s *Store) State() models.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// credentials returns the token and user tenant without copying the state.
func (s *Store) credentials() (token, tenantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.User != nil {
		tenantID = s.state.User.TenantID
	}
	return s.state.Token, tenantID
}

// Generation returns the number of session-replacing dispatches so far.
func (s *Store) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Subscribe registers fn for every subsequent event and returns a function
// that removes it.
func (s *Store) Subscribe(fn func(models.SessionEvent)) func() {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

// Watch delivers the current state to fn and then registers it like
// Subscribe. Both happen under the dispatch lock, so no commit lands between
// the snapshot and the registration and fn sees every state exactly once, in
// commit order. fn must not call back into the store.
func (s *Store) Watch(fn func(models.SessionEvent)) func() {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	s.mu.Lock()
	current := models.SessionEvent{State: s.state.Clone(), Generation: s.generation}
	s.mu.Unlock()

	fn(current)
	return s.Subscribe(fn)
}

// Login authenticates with email and password.
func (s *Store) Login(ctx context.Context, req models.LoginRequest) (models.SessionState, error) {
	return s.authenticate(ctx, models.OpLogin, LoginFailed, func(ctx context.Context) (*models.AuthData, error) {
		return s.gatewayOrErr().Login(ctx, req)
	})
}

// Register creates an account and signs it in.
func (s *Store) Register(ctx context.Context, req models.RegisterRequest) (models.SessionState, error) {
	return s.authenticate(ctx, models.OpRegister, RegistrationFailed, func(ctx context.Context) (*models.AuthData, error) {
		return s.gatewayOrErr().Register(ctx, req)
	})
}

func (s *Store) authenticate(ctx context.Context, op models.Operation, fallback string, call func(context.Context) (*models.AuthData, error)) (models.SessionState, error) {
	ctx = detach(ctx)
	gen, started := s.begin(ctx, op, true)

	data, err := call(ctx)
	if err != nil {
		return s.reject(ctx, op, gen, started, fallback, err)
	}

	state := s.fulfil(ctx, op, gen, started, func(st *models.SessionState) persistFn {
		st.User = data.User.Clone()
		st.Token = data.Token
		st.Error = ""
		user := data.User.Clone()
		token := data.Token
		return func(ctx context.Context) error { return s.persistSave(ctx, token, user) }
	})
	return state, nil
}

// FetchProfile refreshes the user from the remote API.
func (s *Store) FetchProfile(ctx context.Context) (models.SessionState, error) {
	ctx = detach(ctx)
	gen, started := s.begin(ctx, models.OpFetchProfile, false)

	user, err := s.gatewayOrErr().Profile(ctx)
	if err != nil {
		return s.reject(ctx, models.OpFetchProfile, gen, started, FetchProfileFailed, err)
	}

	return s.fulfil(ctx, models.OpFetchProfile, gen, started, func(st *models.SessionState) persistFn {
		if user == nil {
			return nil
		}
		st.User = user.Clone()
		return s.saveUserFn(user)
	}), nil
}

// UpdateProfile applies a partial edit. When the API echoes no user the
// patch is merged onto the current one.
func (s *Store) UpdateProfile(ctx context.Context, req models.ProfileUpdateRequest) (models.SessionState, error) {
	ctx = detach(ctx)
	gen, started := s.begin(ctx, models.OpUpdateProfile, false)

	user, err := s.gatewayOrErr().UpdateProfile(ctx, req)
	if err != nil {
		return s.reject(ctx, models.OpUpdateProfile, gen, started, UpdateProfileFailed, err)
	}

	return s.fulfil(ctx, models.OpUpdateProfile, gen, started, func(st *models.SessionState) persistFn {
		next := user.Clone()
		if next == nil {
			next = req.Apply(st.User)
		}
		if next == nil {
			return nil
		}
		st.User = next
		return s.saveUserFn(next)
	}), nil
}

// ChangePassword changes the signed-in user's password.
func (s *Store) ChangePassword(ctx context.Context, req models.ChangePasswordRequest) (string, error) {
	return s.simple(ctx, models.OpChangePassword, ChangePasswordFailed, func(ctx context.Context) (string, error) {
		return s.gatewayOrErr().ChangePassword(ctx, req)
	})
}

// ForgotPassword asks the API to email a reset link.
func (s *Store) ForgotPassword(ctx context.Context, req models.ForgotPasswordRequest) (string, error) {
	return s.simple(ctx, models.OpForgotPassword, ForgotPasswordFailed, func(ctx context.Context) (string, error) {
		return s.gatewayOrErr().ForgotPassword(ctx, req)
	})
}

// ResetPassword completes the reset flow.
func (s *Store) ResetPassword(ctx context.Context, req models.ResetPasswordRequest) (string, error) {
	return s.simple(ctx, models.OpResetPassword, ResetPasswordFailed, func(ctx context.Context) (string, error) {
		return s.gatewayOrErr().ResetPassword(ctx, req)
	})
}

func (s *Store) simple(ctx context.Context, op models.Operation, fallback string, call func(context.Context) (string, error)) (string, error) {
	ctx = detach(ctx)
	gen, started := s.begin(ctx, op, false)

	message, err := call(ctx)
	if err != nil {
		_, failure := s.reject(ctx, op, gen, started, fallback, err)
		return "", failure
	}

	s.fulfil(ctx, op, gen, started, nil)
	return message, nil
}

// UploadAvatar uploads a new avatar and patches user.avatar with the
// server's URI.
func (s *Store) UploadAvatar(ctx context.Context, filename string, data []byte) (models.SessionState, error) {
	ctx = detach(ctx)
	gen, started := s.begin(ctx, models.OpUploadAvatar, false)

	user, err := s.gatewayOrErr().UploadAvatar(ctx, filename, data)
	if err != nil {
		return s.reject(ctx, models.OpUploadAvatar, gen, started, UploadAvatarFailed, err)
	}

	return s.fulfil(ctx, models.OpUploadAvatar, gen, started, func(st *models.SessionState) persistFn {
		if user == nil || st.User == nil {
			return nil
		}
		st.User.Avatar = user.Avatar
		return s.saveUserFn(st.User)
	}), nil
}

// Logout clears the session and its persisted copy. Calling it again is a
// no-op apart from the event.
func (s *Store) Logout(ctx context.Context) models.SessionState {
	return s.apply(detach(ctx), models.OpLogout, true, func(st *models.SessionState) persistFn {
		st.User = nil
		st.Token = ""
		st.Error = ""
		return func(ctx context.Context) error {
			if s.persist == nil {
				return nil
			}
			return s.persist.Clear(ctx)
		}
	})
}

// SetCredentials installs a user and token obtained elsewhere.
func (s *Store) SetCredentials(ctx context.Context, user *models.User, token string) models.SessionState {
	user = user.Clone()
	return s.apply(detach(ctx), models.OpSetCredentials, true, func(st *models.SessionState) persistFn {
		st.User = user.Clone()
		st.Token = token
		st.Error = ""
		return func(ctx context.Context) error { return s.persistSave(ctx, token, user) }
	})
}

// UpdateAvatar patches the avatar of the current user, if any.
func (s *Store) UpdateAvatar(ctx context.Context, avatar string) models.SessionState {
	return s.apply(detach(ctx), models.OpUpdateAvatar, false, func(st *models.SessionState) persistFn {
		if st.User == nil {
			return nil
		}
		st.User.Avatar = avatar
		return s.saveUserFn(st.User)
	})
}

// ClearError drops the current error message.
func (s *Store) ClearError(ctx context.Context) models.SessionState {
	return s.apply(detach(ctx), models.OpClearError, false, func(st *models.SessionState) persistFn {
		st.Error = ""
		return nil
	})
}

// Busy reports whether an operation is in flight.
func (s *Store) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight > 0
}

// Subscribers returns the number of registered subscribers.
func (s *Store) Subscribers() int {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	return len(s.subs)
}

// LastUsed returns when an operation was last dispatched.
func (s *Store) LastUsed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

func (s *Store) touch() {
	s.mu.Lock()
	s.lastUsed = s.now()
	s.mu.Unlock()
}

func (s *Store) begin(ctx context.Context, op models.Operation, replacesSession bool) (uint64, time.Time) {
	var gen uint64
	started := s.now()
	s.transition(ctx, op, models.PhasePending, 0, func(st *models.SessionState) persistFn {
		s.inFlight++
		if replacesSession {
			s.generation++
		}
		gen = s.generation
		st.IsLoading = true
		st.Error = ""
		return nil
	})
	return gen, started
}

func (s *Store) fulfil(ctx context.Context, op models.Operation, gen uint64, started time.Time, mutate func(*models.SessionState) persistFn) models.SessionState {
	return s.transition(ctx, op, models.PhaseFulfilled, s.now().Sub(started), func(st *models.SessionState) persistFn {
		s.settle(st)
		if mutate == nil {
			return nil
		}
		if s.strict && gen != s.generation {
			s.logger.Debug("discarding stale resolution",
				zap.String("operation", string(op)),
				zap.Uint64("generation", gen),
				zap.Uint64("current", s.generation),
			)
			return nil
		}
		return mutate(st)
	})
}

func (s *Store) reject(ctx context.Context, op models.Operation, gen uint64, started time.Time, fallback string, err error) (models.SessionState, error) {
	failure := &Failure{
		Op:      op,
		Message: gateway.MessageOr(err, fallback),
		Status:  gateway.StatusOf(err),
		Err:     err,
	}
	s.logger.Info("session operation rejected",
		zap.String("operation", string(op)),
		zap.Int("status", failure.Status),
		zap.Error(err),
	)

	state := s.transition(ctx, op, models.PhaseRejected, s.now().Sub(started), func(st *models.SessionState) persistFn {
		s.settle(st)
		st.Error = failure.Message
		return nil
	})
	return state, failure
}

func (s *Store) settle(st *models.SessionState) {
	if s.inFlight > 0 {
		s.inFlight--
	}
	st.IsLoading = s.inFlight > 0
}

// apply runs a synchronous operation as a single fulfilled commit.
func (s *Store) apply(ctx context.Context, op models.Operation, replacesSession bool, mutate func(*models.SessionState) persistFn) models.SessionState {
	return s.transition(ctx, op, models.PhaseFulfilled, 0, func(st *models.SessionState) persistFn {
		if replacesSession {
			s.generation++
		}
		return mutate(st)
	})
}

// transition commits one change and publishes its event. dispatchMu is taken
// before mu so persistence and delivery follow commit order.
func (s *Store) transition(ctx context.Context, op models.Operation, phase models.Phase, elapsed time.Duration, mutate func(*models.SessionState) persistFn) models.SessionState {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	s.mu.Lock()
	persist := mutate(&s.state)
	s.state.IsAuthenticated = s.state.Token != ""
	s.lastUsed = s.now()
	event := models.SessionEvent{
		Operation:  op,
		Phase:      phase,
		State:      s.state.Clone(),
		Generation: s.generation,
	}
	s.mu.Unlock()

	if persist != nil {
		if err := persist(ctx); err != nil {
			s.logger.Warn("failed to persist session",
				zap.String("operation", string(op)),
				zap.Error(err),
			)
		}
	}

	s.observe(op, phase, elapsed)
	s.publish(event)
	return event.State
}

func (s *Store) publish(event models.SessionEvent) {
	s.subMu.RLock()
	subs := make([]func(models.SessionEvent), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.subMu.RUnlock()

	for _, fn := range subs {
		fn(event)
	}
}

func (s *Store) observe(op models.Operation, phase models.Phase, elapsed time.Duration) {
	if s.observer != nil {
		s.observer.ObserveSessionPhase(op, phase, elapsed)
	}
}

func (s *Store) persistSave(ctx context.Context, token string, user *models.User) error {
	if s.persist == nil {
		return nil
	}
	return s.persist.Save(ctx, token, user)
}

func (s *Store) saveUserFn(user *models.User) persistFn {
	user = user.Clone()
	return func(ctx context.Context) error {
		if s.persist == nil {
			return nil
		}
		return s.persist.SaveUser(ctx, user)
	}
}

func (s *Store) gatewayOrErr() AuthGateway {
	if s.gateway == nil {
		return unavailableGateway{}
	}
	return s.gateway
}

// detach keeps ctx values such as the request id but drops cancellation, so
// a caller that goes away cannot abandon an operation between its phases.
func detach(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return context.WithoutCancel(ctx)
}

func userID(u *models.User) string {
	if u == nil {
		return ""
	}
	return u.ID
}

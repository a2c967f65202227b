package web

import (
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ulle78/DeepMSI/internal/intake"
	"github.com/ulle78/DeepMSI/internal/workflow"
	"github.com/ulle78/DeepMSI/pkg/models"
)

// SessionCookie names the cookie carrying the session id.
const SessionCookie = "deepmsi_session"

const defaultSessionTTL = 2 * time.Hour

// Store keeps one workflow state per browser session in memory.
// The lock is held only while a transition is applied.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*session
	ttl      time.Duration
	now      func() time.Time
}

type session struct {
	state    workflow.State
	form     *intake.Form
	lastSeen time.Time
}

func (s *session) formOpen() bool {
	return s.form != nil && s.form.IsOpen()
}

// NewStore returns an empty store. A zero ttl uses two hours.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &Store{
		sessions: make(map[string]*session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Get returns the state of id; unknown sessions start empty.
func (s *Store) Get(id string) workflow.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookup(id).state
}

// Apply transitions the state of id. On error the stored state is unchanged
// and returned alongside the error.
func (s *Store) Apply(id string, ev workflow.Event) (workflow.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.lookup(id)
	next, err := workflow.Transition(sess.state, ev)
	if err != nil {
		return sess.state, err
	}
	sess.state = next

	switch ev.(type) {
	case workflow.Reset, workflow.Upload:
		if sess.form != nil {
			sess.form.Cancel()
		}
	}
	return next, nil
}

// OpenForm shows the patient form of id. Submitting it applies the event
// built by compose to the session.
func (s *Store) OpenForm(id string, compose func(models.PatientInfo) workflow.Event) (workflow.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.lookup(id)
	if !sess.state.CanGenerateReport() {
		return sess.state, workflow.ErrReportUnavailable
	}

	sess.form = intake.New(func(p models.PatientInfo) error {
		next, err := workflow.Transition(sess.state, compose(p))
		if err != nil {
			return err
		}
		sess.state = next
		return nil
	})
	sess.form.Open()
	return sess.state, nil
}

// CancelForm closes the patient form of id without submitting it.
func (s *Store) CancelForm(id string) workflow.State {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.lookup(id)
	if sess.form != nil {
		sess.form.Cancel()
	}
	return sess.state
}

// FormOpen reports whether the patient form of id is shown.
func (s *Store) FormOpen(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookup(id).formOpen()
}

// SubmitForm submits values to the open patient form of id. It returns
// intake.ErrClosed when no form is open.
func (s *Store) SubmitForm(id string, values url.Values) (workflow.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.lookup(id)
	if sess.form == nil {
		return sess.state, intake.ErrClosed
	}
	_, err := sess.form.Submit(values)
	return sess.state, err
}

// Sweep removes idle sessions and returns how many were dropped.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.ttl)
	n := 0
	for id, sess := range s.sessions {
		if sess.lastSeen.Before(cutoff) && !sess.state.Loading {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Store) lookup(id string) *session {
	sess, ok := s.sessions[id]
	if !ok {
		sess = &session{}
		s.sessions[id] = sess
	}
	sess.lastSeen = s.now()
	return sess
}

// sessionID returns the caller's session id, issuing a cookie when absent.
func sessionID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(SessionCookie); err == nil {
		if id, err := uuid.Parse(c.Value); err == nil {
			return id.String()
		}
	}

	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

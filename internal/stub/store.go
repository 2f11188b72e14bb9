package stub

import (
	"errors"
	"sort"
	"sync"

	"github.com/quizdesk/quizdesk/internal/api"
)

// Store errors the handlers map onto HTTP statuses.
var (
	ErrNotFound = errors.New("not found")
	ErrExists   = errors.New("already exists")
)

// Store is the persistence surface of the stub. The memory
// implementation backs tests and quick local runs; the SQL one keeps
// state across restarts.
type Store interface {
	CreateUser(u User) (User, error)
	GetUser(id string) (User, error)
	GetUserByUsername(username string) (User, error)
	CountUsersByRole() (map[string]int, error)

	PutPDF(p PDF) error
	GetPDF(id string) (PDF, error)
	ListPDFs() ([]PDF, error)
	DeletePDF(id string) error

	PutQuiz(q QuizRecord) error
	GetQuiz(id string) (QuizRecord, error)
	ListQuizzes() ([]QuizRecord, error)
	DeleteQuiz(id string) error
	UpdateQuestion(questionID string, upd api.QuestionUpdate) (api.Question, error)
	DeleteQuestion(questionID string) error

	PutAttempt(a Attempt) error
	GetAttempt(id string) (Attempt, error)
	OpenAttempt(quizID, userID string) (Attempt, bool, error)
	ListAttemptsByUser(userID string) ([]Attempt, error)
	ListAttemptsByQuiz(quizID string) ([]Attempt, error)
	ListAttempts() ([]Attempt, error)

	AppendActivity(e api.ActivityEntry) error
	RecentActivity(n int) ([]api.ActivityEntry, error)
}

type memoryStore struct {
	mu       sync.RWMutex
	users    map[string]User
	byName   map[string]string // username -> user id
	pdfs     map[string]PDF
	quizzes  map[string]QuizRecord
	attempts map[string]Attempt
	activity []api.ActivityEntry
}

func NewMemoryStore() Store {
	return &memoryStore{
		users:    map[string]User{},
		byName:   map[string]string{},
		pdfs:     map[string]PDF{},
		quizzes:  map[string]QuizRecord{},
		attempts: map[string]Attempt{},
	}
}

func (m *memoryStore) CreateUser(u User) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byName[u.Username]; ok {
		return User{}, ErrExists
	}
	m.users[u.ID] = u
	m.byName[u.Username] = u.ID
	return u, nil
}

func (m *memoryStore) GetUser(id string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (m *memoryStore) GetUserByUsername(username string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byName[username]
	if !ok {
		return User{}, ErrNotFound
	}
	return m.users[id], nil
}

func (m *memoryStore) CountUsersByRole() (map[string]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := map[string]int{}
	for _, u := range m.users {
		counts[u.Role]++
	}
	return counts, nil
}

func (m *memoryStore) PutPDF(p PDF) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pdfs[p.ID] = p
	return nil
}

func (m *memoryStore) GetPDF(id string) (PDF, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.pdfs[id]
	if !ok {
		return PDF{}, ErrNotFound
	}
	return p, nil
}

func (m *memoryStore) ListPDFs() ([]PDF, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]PDF, 0, len(m.pdfs))
	for _, p := range m.pdfs {
		out = append(out, p)
	}
	sortPDFs(out)
	return out, nil
}

func (m *memoryStore) DeletePDF(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pdfs[id]; !ok {
		return ErrNotFound
	}
	delete(m.pdfs, id)
	return nil
}

func (m *memoryStore) PutQuiz(q QuizRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quizzes[q.ID] = q
	return nil
}

func (m *memoryStore) GetQuiz(id string) (QuizRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.quizzes[id]
	if !ok {
		return QuizRecord{}, ErrNotFound
	}
	return q, nil
}

func (m *memoryStore) ListQuizzes() ([]QuizRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]QuizRecord, 0, len(m.quizzes))
	for _, q := range m.quizzes {
		out = append(out, q)
	}
	sortQuizzes(out)
	return out, nil
}

func (m *memoryStore) DeleteQuiz(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.quizzes[id]; !ok {
		return ErrNotFound
	}
	delete(m.quizzes, id)
	// mirror the SQL cascade
	for aid, a := range m.attempts {
		if a.QuizID == id {
			delete(m.attempts, aid)
		}
	}
	return nil
}

func (m *memoryStore) UpdateQuestion(questionID string, upd api.QuestionUpdate) (api.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for qid, quiz := range m.quizzes {
		for i, q := range quiz.Questions {
			if q.ID != questionID {
				continue
			}
			quiz.Questions[i] = applyUpdate(q, upd)
			m.quizzes[qid] = quiz
			return quiz.Questions[i], nil
		}
	}
	return api.Question{}, ErrNotFound
}

func (m *memoryStore) DeleteQuestion(questionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for qid, quiz := range m.quizzes {
		for i, q := range quiz.Questions {
			if q.ID != questionID {
				continue
			}
			quiz.Questions = append(quiz.Questions[:i], quiz.Questions[i+1:]...)
			renumber(quiz.Questions)
			quiz.TotalQuestions = len(quiz.Questions)
			m.quizzes[qid] = quiz
			return nil
		}
	}
	return ErrNotFound
}

func (m *memoryStore) PutAttempt(a Attempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts[a.ID] = a
	return nil
}

func (m *memoryStore) GetAttempt(id string) (Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.attempts[id]
	if !ok {
		return Attempt{}, ErrNotFound
	}
	return a, nil
}

// OpenAttempt returns the user's in-progress attempt at the quiz, if any.
func (m *memoryStore) OpenAttempt(quizID, userID string) (Attempt, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.attempts {
		if a.QuizID == quizID && a.UserID == userID && a.Status == api.AttemptInProgress {
			return a, true, nil
		}
	}
	return Attempt{}, false, nil
}

func (m *memoryStore) ListAttemptsByUser(userID string) ([]Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Attempt
	for _, a := range m.attempts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sortAttempts(out)
	return out, nil
}

func (m *memoryStore) ListAttemptsByQuiz(quizID string) ([]Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Attempt
	for _, a := range m.attempts {
		if a.QuizID == quizID {
			out = append(out, a)
		}
	}
	sortAttempts(out)
	return out, nil
}

func (m *memoryStore) ListAttempts() ([]Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Attempt, 0, len(m.attempts))
	for _, a := range m.attempts {
		out = append(out, a)
	}
	sortAttempts(out)
	return out, nil
}

func (m *memoryStore) AppendActivity(e api.ActivityEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activity = append(m.activity, e)
	if len(m.activity) > 100 {
		m.activity = m.activity[len(m.activity)-100:]
	}
	return nil
}

func (m *memoryStore) RecentActivity(n int) ([]api.ActivityEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if n > len(m.activity) {
		n = len(m.activity)
	}
	out := make([]api.ActivityEntry, 0, n)
	for i := len(m.activity) - 1; i >= len(m.activity)-n; i-- {
		out = append(out, m.activity[i])
	}
	return out, nil
}

func applyUpdate(q api.Question, upd api.QuestionUpdate) api.Question {
	if upd.Text != "" {
		q.Text = upd.Text
	}
	if len(upd.Options) > 0 {
		q.Options = upd.Options
	}
	if upd.CorrectAnswer != "" {
		q.CorrectAnswer = upd.CorrectAnswer
	}
	if upd.Explanation != "" {
		q.Explanation = upd.Explanation
	}
	if upd.Difficulty != "" {
		q.Difficulty = upd.Difficulty
	}
	if upd.Topic != "" {
		q.Topic = upd.Topic
	}
	return q
}

func renumber(qs []api.Question) {
	for i := range qs {
		qs[i].Order = i + 1
	}
}

func sortPDFs(ps []PDF) {
	sort.Slice(ps, func(i, j int) bool { return ps[i].CreatedAt.After(ps[j].CreatedAt) })
}

func sortQuizzes(qs []QuizRecord) {
	sort.Slice(qs, func(i, j int) bool { return qs[i].CreatedAt.After(qs[j].CreatedAt) })
}

func sortAttempts(as []Attempt) {
	sort.Slice(as, func(i, j int) bool { return as[i].StartedAt.After(as[j].StartedAt) })
}

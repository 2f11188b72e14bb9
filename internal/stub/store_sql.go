package stub

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/quizdesk/quizdesk/internal/api"
)

// SQLStore keeps stub state in SQLite or Postgres. Questions, difficulty
// splits and answers are stored as JSON text next to the scalar columns,
// times as unix seconds.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) CreateUser(u User) (User, error) {
	var exist int
	err := s.db.QueryRow(`SELECT 1 FROM users WHERE username=$1`, u.Username).Scan(&exist)
	if err == nil {
		return User{}, ErrExists
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return User{}, err
	}
	_, err = s.db.Exec(`INSERT INTO users (id,username,email,full_name,role,password_hash,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		u.ID, u.Username, u.Email, u.FullName, u.Role, u.PasswordHash, u.CreatedAt.Unix())
	if err != nil {
		return User{}, err
	}
	return u, nil
}

func (s *SQLStore) GetUser(id string) (User, error) {
	return s.scanUser(s.db.QueryRow(
		`SELECT id,username,email,full_name,role,password_hash,created_at FROM users WHERE id=$1`, id))
}

func (s *SQLStore) GetUserByUsername(username string) (User, error) {
	return s.scanUser(s.db.QueryRow(
		`SELECT id,username,email,full_name,role,password_hash,created_at FROM users WHERE username=$1`, username))
}

func (s *SQLStore) scanUser(row *sql.Row) (User, error) {
	var u User
	var created int64
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.FullName, &u.Role, &u.PasswordHash, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	u.CreatedAt = time.Unix(created, 0).UTC()
	return u, nil
}

func (s *SQLStore) CountUsersByRole() (map[string]int, error) {
	rows, err := s.db.Query(`SELECT role, COUNT(*) FROM users GROUP BY role`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := map[string]int{}
	for rows.Next() {
		var role string
		var n int
		if err := rows.Scan(&role, &n); err != nil {
			return nil, err
		}
		counts[role] = n
	}
	return counts, rows.Err()
}

func (s *SQLStore) PutPDF(p PDF) error {
	_, err := s.db.Exec(`INSERT INTO pdfs (id,filename,original_filename,title,description,status,page_count,word_count,error_message,blob_key,created_at,processed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, description=EXCLUDED.description,
			status=EXCLUDED.status, page_count=EXCLUDED.page_count, word_count=EXCLUDED.word_count,
			error_message=EXCLUDED.error_message, processed_at=EXCLUDED.processed_at`,
		p.ID, p.Filename, p.OriginalFilename, p.Title, p.Description, p.Status,
		p.PageCount, p.WordCount, p.ErrorMessage, p.BlobKey, p.CreatedAt.Unix(), unixPtr(p.ProcessedAt))
	return err
}

func (s *SQLStore) GetPDF(id string) (PDF, error) {
	row := s.db.QueryRow(`SELECT id,filename,original_filename,title,description,status,page_count,word_count,error_message,blob_key,created_at,processed_at
		FROM pdfs WHERE id=$1`, id)
	p, err := scanPDF(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return PDF{}, ErrNotFound
	}
	return p, err
}

func (s *SQLStore) ListPDFs() ([]PDF, error) {
	rows, err := s.db.Query(`SELECT id,filename,original_filename,title,description,status,page_count,word_count,error_message,blob_key,created_at,processed_at
		FROM pdfs ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PDF
	for rows.Next() {
		p, err := scanPDF(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPDF(scan func(...any) error) (PDF, error) {
	var p PDF
	var created int64
	var processed sql.NullInt64
	err := scan(&p.ID, &p.Filename, &p.OriginalFilename, &p.Title, &p.Description, &p.Status,
		&p.PageCount, &p.WordCount, &p.ErrorMessage, &p.BlobKey, &created, &processed)
	if err != nil {
		return PDF{}, err
	}
	p.CreatedAt = time.Unix(created, 0).UTC()
	p.ProcessedAt = timePtr(processed)
	return p, nil
}

func (s *SQLStore) DeletePDF(id string) error {
	res, err := s.db.Exec(`DELETE FROM pdfs WHERE id=$1`, id)
	if err != nil {
		return err
	}
	return noRowsAsNotFound(res)
}

func (s *SQLStore) PutQuiz(q QuizRecord) error {
	qj, err := json.Marshal(q.Questions)
	if err != nil {
		return err
	}
	dj, err := json.Marshal(q.Difficulty)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO quizzes (id,pdf_id,title,description,status,total_questions,difficulty_json,estimated_time,error_message,questions_json,created_at,published_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, description=EXCLUDED.description,
			status=EXCLUDED.status, total_questions=EXCLUDED.total_questions,
			difficulty_json=EXCLUDED.difficulty_json, estimated_time=EXCLUDED.estimated_time,
			error_message=EXCLUDED.error_message, questions_json=EXCLUDED.questions_json,
			published_at=EXCLUDED.published_at`,
		q.ID, q.PDFID, q.Title, q.Description, q.Status, q.TotalQuestions,
		string(dj), q.EstimatedTime, q.ErrorMessage, string(qj), q.CreatedAt.Unix(), unixPtr(q.PublishedAt))
	return err
}

func (s *SQLStore) GetQuiz(id string) (QuizRecord, error) {
	row := s.db.QueryRow(`SELECT id,pdf_id,title,description,status,total_questions,difficulty_json,estimated_time,error_message,questions_json,created_at,published_at
		FROM quizzes WHERE id=$1`, id)
	q, err := scanQuiz(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return QuizRecord{}, ErrNotFound
	}
	return q, err
}

func (s *SQLStore) ListQuizzes() ([]QuizRecord, error) {
	rows, err := s.db.Query(`SELECT id,pdf_id,title,description,status,total_questions,difficulty_json,estimated_time,error_message,questions_json,created_at,published_at
		FROM quizzes ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []QuizRecord
	for rows.Next() {
		q, err := scanQuiz(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func scanQuiz(scan func(...any) error) (QuizRecord, error) {
	var q QuizRecord
	var dj, qj string
	var created int64
	var published sql.NullInt64
	err := scan(&q.ID, &q.PDFID, &q.Title, &q.Description, &q.Status, &q.TotalQuestions,
		&dj, &q.EstimatedTime, &q.ErrorMessage, &qj, &created, &published)
	if err != nil {
		return QuizRecord{}, err
	}
	if err := json.Unmarshal([]byte(dj), &q.Difficulty); err != nil {
		q.Difficulty = api.DifficultyMix{}
	}
	if err := json.Unmarshal([]byte(qj), &q.Questions); err != nil {
		q.Questions = nil
	}
	q.CreatedAt = time.Unix(created, 0).UTC()
	q.PublishedAt = timePtr(published)
	return q, nil
}

func (s *SQLStore) DeleteQuiz(id string) error {
	res, err := s.db.Exec(`DELETE FROM quizzes WHERE id=$1`, id)
	if err != nil {
		return err
	}
	return noRowsAsNotFound(res)
}

func (s *SQLStore) UpdateQuestion(questionID string, upd api.QuestionUpdate) (api.Question, error) {
	quiz, idx, err := s.findQuestion(questionID)
	if err != nil {
		return api.Question{}, err
	}
	quiz.Questions[idx] = applyUpdate(quiz.Questions[idx], upd)
	if err := s.PutQuiz(quiz); err != nil {
		return api.Question{}, err
	}
	return quiz.Questions[idx], nil
}

func (s *SQLStore) DeleteQuestion(questionID string) error {
	quiz, idx, err := s.findQuestion(questionID)
	if err != nil {
		return err
	}
	quiz.Questions = append(quiz.Questions[:idx], quiz.Questions[idx+1:]...)
	renumber(quiz.Questions)
	quiz.TotalQuestions = len(quiz.Questions)
	return s.PutQuiz(quiz)
}

// findQuestion walks quizzes until it sees the question id. Questions
// live inside questions_json, so there is no direct lookup.
func (s *SQLStore) findQuestion(questionID string) (QuizRecord, int, error) {
	quizzes, err := s.ListQuizzes()
	if err != nil {
		return QuizRecord{}, 0, err
	}
	for _, quiz := range quizzes {
		for i, q := range quiz.Questions {
			if q.ID == questionID {
				return quiz, i, nil
			}
		}
	}
	return QuizRecord{}, 0, ErrNotFound
}

func (s *SQLStore) PutAttempt(a Attempt) error {
	aj, err := json.Marshal(a.Answers)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO attempts (id,quiz_id,user_id,status,answers_json,score,correct_answers,auto,time_limit_minutes,started_at,completed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (id) DO UPDATE SET status=EXCLUDED.status, answers_json=EXCLUDED.answers_json,
			score=EXCLUDED.score, correct_answers=EXCLUDED.correct_answers, auto=EXCLUDED.auto,
			completed_at=EXCLUDED.completed_at`,
		a.ID, a.QuizID, a.UserID, a.Status, string(aj), nullFloat(a.Score), a.CorrectAnswers,
		a.Auto, a.TimeLimitMinutes, a.StartedAt.Unix(), unixPtr(a.CompletedAt))
	return err
}

func (s *SQLStore) GetAttempt(id string) (Attempt, error) {
	row := s.db.QueryRow(`SELECT id,quiz_id,user_id,status,answers_json,score,correct_answers,auto,time_limit_minutes,started_at,completed_at
		FROM attempts WHERE id=$1`, id)
	a, err := scanAttempt(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return Attempt{}, ErrNotFound
	}
	return a, err
}

func (s *SQLStore) OpenAttempt(quizID, userID string) (Attempt, bool, error) {
	row := s.db.QueryRow(`SELECT id,quiz_id,user_id,status,answers_json,score,correct_answers,auto,time_limit_minutes,started_at,completed_at
		FROM attempts WHERE quiz_id=$1 AND user_id=$2 AND status=$3 LIMIT 1`,
		quizID, userID, api.AttemptInProgress)
	a, err := scanAttempt(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return Attempt{}, false, nil
	}
	if err != nil {
		return Attempt{}, false, err
	}
	return a, true, nil
}

func (s *SQLStore) ListAttemptsByUser(userID string) ([]Attempt, error) {
	return s.listAttempts(`SELECT id,quiz_id,user_id,status,answers_json,score,correct_answers,auto,time_limit_minutes,started_at,completed_at
		FROM attempts WHERE user_id=$1 ORDER BY started_at DESC`, userID)
}

func (s *SQLStore) ListAttemptsByQuiz(quizID string) ([]Attempt, error) {
	return s.listAttempts(`SELECT id,quiz_id,user_id,status,answers_json,score,correct_answers,auto,time_limit_minutes,started_at,completed_at
		FROM attempts WHERE quiz_id=$1 ORDER BY started_at DESC`, quizID)
}

func (s *SQLStore) ListAttempts() ([]Attempt, error) {
	return s.listAttempts(`SELECT id,quiz_id,user_id,status,answers_json,score,correct_answers,auto,time_limit_minutes,started_at,completed_at
		FROM attempts ORDER BY started_at DESC`)
}

func (s *SQLStore) listAttempts(query string, args ...any) ([]Attempt, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Attempt
	for rows.Next() {
		a, err := scanAttempt(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanAttempt(scan func(...any) error) (Attempt, error) {
	var a Attempt
	var aj string
	var score sql.NullFloat64
	var started int64
	var completed sql.NullInt64
	err := scan(&a.ID, &a.QuizID, &a.UserID, &a.Status, &aj, &score, &a.CorrectAnswers,
		&a.Auto, &a.TimeLimitMinutes, &started, &completed)
	if err != nil {
		return Attempt{}, err
	}
	if err := json.Unmarshal([]byte(aj), &a.Answers); err != nil {
		a.Answers = map[string]string{}
	}
	if score.Valid {
		v := score.Float64
		a.Score = &v
	}
	a.StartedAt = time.Unix(started, 0).UTC()
	a.CompletedAt = timePtr(completed)
	return a, nil
}

func (s *SQLStore) AppendActivity(e api.ActivityEntry) error {
	_, err := s.db.Exec(`INSERT INTO activity (kind,subject,detail,created_at) VALUES ($1,$2,$3,$4)`,
		e.Kind, e.Subject, e.Detail, e.Timestamp.Unix())
	return err
}

func (s *SQLStore) RecentActivity(n int) ([]api.ActivityEntry, error) {
	rows, err := s.db.Query(`SELECT kind,subject,detail,created_at FROM activity ORDER BY seq DESC LIMIT $1`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []api.ActivityEntry
	for rows.Next() {
		var e api.ActivityEntry
		var created int64
		if err := rows.Scan(&e.Kind, &e.Subject, &e.Detail, &created); err != nil {
			return nil, err
		}
		e.Timestamp = time.Unix(created, 0).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

func unixPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}

func timePtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0).UTC()
	return &t
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func noRowsAsNotFound(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

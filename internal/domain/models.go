package domain

import "strings"

// Question is a single quiz item. Only ID and CorrectAnswer carry meaning for the
// session store; the rest is payload for whoever renders it.
type Question struct {
	ID            string   `json:"id" yaml:"id"`
	Prompt        string   `json:"prompt,omitempty" yaml:"prompt,omitempty"`
	Options       []string `json:"options,omitempty" yaml:"options,omitempty"`
	CorrectAnswer string   `json:"correct_answer" yaml:"correct_answer"`
	Explanation   string   `json:"explanation,omitempty" yaml:"explanation,omitempty"`
}

// Quiz is a loadable question set.
type Quiz struct {
	ID        string     `json:"id" yaml:"id"`
	Title     string     `json:"title,omitempty" yaml:"title,omitempty"`
	Questions []Question `json:"questions" yaml:"questions"`
}

// ScopedQuestions returns the quiz questions with ids prefixed by "{quizID}_",
// which is what per-quiz stats aggregation keys on. Already prefixed ids are kept.
func (q Quiz) ScopedQuestions() []Question {
	prefix := StatsPrefix(q.ID)
	out := make([]Question, len(q.Questions))
	for i, question := range q.Questions {
		if !strings.HasPrefix(question.ID, prefix) {
			question.ID = prefix + question.ID
		}
		question.Options = append([]string(nil), question.Options...)
		out[i] = question
	}
	return out
}

// Clone returns a copy sharing no slices with q.
func (q Quiz) Clone() Quiz {
	questions := make([]Question, len(q.Questions))
	for i, question := range q.Questions {
		question.Options = append([]string(nil), question.Options...)
		questions[i] = question
	}
	q.Questions = questions
	return q
}

// StatsPrefix is the question id prefix shared by every question of a quiz.
func StatsPrefix(quizID string) string {
	return quizID + "_"
}

// StatEntry is the attempt history of one question.
type StatEntry struct {
	Attempts    int     `json:"attempts"`
	Correct     int     `json:"correct"`
	SuccessRate float64 `json:"successRate"`
}

// Record returns the entry after one more attempt.
func (e StatEntry) Record(correct bool) StatEntry {
	e.Attempts++
	if correct {
		e.Correct++
	}
	e.SuccessRate = float64(e.Correct) / float64(e.Attempts)
	return e
}

// StatsMap maps question id to its stats.
type StatsMap map[string]StatEntry

// Clone returns an independent copy; a nil map clones to an empty one.
func (m StatsMap) Clone() StatsMap {
	out := make(StatsMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// QuizStats aggregates the stats of every question in a quiz.
type QuizStats struct {
	Attempts    int     `json:"attempts"`
	Correct     int     `json:"correct"`
	SuccessRate float64 `json:"successRate"`
}

// SessionState is a snapshot of the session store. Snapshots never share memory
// with the store that produced them.
type SessionState struct {
	Questions       []Question `json:"questions"`
	QuestionQueue   []Question `json:"questionQueue"`
	SessionQueue    []Question `json:"sessionQueue"`
	CurrentQuestion *Question  `json:"currentQuestion"`
	Stats           StatsMap   `json:"stats"`
}

// AnswerResult summarizes the outcome of answering the current question.
type AnswerResult struct {
	QuestionID string    `json:"questionId"`
	Correct    bool      `json:"correct"`
	Expected   string    `json:"expected"`
	Stat       StatEntry `json:"stat"`
	Complete   bool      `json:"complete"` // no question left in this session
}

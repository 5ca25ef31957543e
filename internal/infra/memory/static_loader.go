package memory

import (
	"context"

	"adaptive-quiz/internal/domain"
)

// StaticQuizLoader serves a fixed set of quizzes, such as the built-in samples
// used when no quiz source is configured.
type StaticQuizLoader struct {
	quizzes map[string]domain.Quiz
}

func NewStaticQuizLoader(quizzes map[string]domain.Quiz) *StaticQuizLoader {
	own := make(map[string]domain.Quiz, len(quizzes))
	for id, quiz := range quizzes {
		own[id] = quiz.Clone()
	}
	return &StaticQuizLoader{quizzes: own}
}

func (l *StaticQuizLoader) LoadQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	quiz, ok := l.quizzes[quizID]
	if !ok {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return quiz.Clone(), nil
}

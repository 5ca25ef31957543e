package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"adaptive-quiz/internal/domain"
	"gopkg.in/yaml.v3"
)

// QuizLoader reads question sets from a JSON or YAML file holding a list of quizzes.
// The file is read on every load; put a repository in front of it for caching.
type QuizLoader struct {
	path string
}

func NewQuizLoader(path string) *QuizLoader {
	return &QuizLoader{path: path}
}

func (l *QuizLoader) LoadQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	quizzes, err := l.Quizzes()
	if err != nil {
		return domain.Quiz{}, err
	}
	for _, quiz := range quizzes {
		if quiz.ID == quizID {
			return quiz, nil
		}
	}
	return domain.Quiz{}, domain.ErrQuizNotFound
}

// Quizzes returns every quiz in the file, in file order.
func (l *QuizLoader) Quizzes() ([]domain.Quiz, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("read quizzes: %w", err)
	}

	var quizzes []domain.Quiz
	switch strings.ToLower(filepath.Ext(l.path)) {
	case ".json":
		err = json.Unmarshal(data, &quizzes)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &quizzes)
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, l.path)
	}
	if err != nil {
		return nil, fmt.Errorf("parse quizzes: %w", err)
	}
	return quizzes, nil
}

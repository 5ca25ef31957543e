package app

import (
	"context"
	"sync"

	"adaptive-quiz/internal/domain"
)

// QuestionRepository loads quiz content (from cache/backing store).
type QuestionRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// QuizService wires question sets and stats persistence into per-user session stores.
// Stores it hands out for the same user observe each other's clears.
type QuizService struct {
	kv      KeyValueStore
	quizzes QuestionRepository
	opts    Options

	mu     sync.Mutex
	clears map[string]*clearGen
}

// NewQuizService returns a service whose stores persist to kv under opts.Key scoped
// per user. opts.Rand is ignored: stores may live on different goroutines, so each
// one gets its own source derived from opts.Seed.
func NewQuizService(kv KeyValueStore, quizzes QuestionRepository, opts Options) *QuizService {
	opts.Rand = nil
	return &QuizService{kv: kv, quizzes: quizzes, opts: opts, clears: make(map[string]*clearGen)}
}

// NewStore returns a store for userID with its persisted stats and no questions.
func (s *QuizService) NewStore(ctx context.Context, userID string) *QuizSessionStore {
	opts := s.opts
	opts.Key = StatsKey(s.opts.Key, userID)

	g := s.clearGen(opts.Key)
	g.mu.Lock()
	defer g.mu.Unlock()
	store := NewQuizSessionStore(ctx, s.kv, opts)
	store.clears = g
	store.seenGen = g.gen
	return store
}

// Start loads quizID and returns a store for userID positioned on the first question.
func (s *QuizService) Start(ctx context.Context, quizID, userID string) (*QuizSessionStore, domain.Quiz, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, domain.Quiz{}, err
	}
	if len(quiz.Questions) == 0 {
		return nil, domain.Quiz{}, domain.ErrEmptyQuiz
	}

	store := s.NewStore(ctx, userID)
	store.SetQuestions(quiz.ScopedQuestions())
	return store, quiz, nil
}

// QuizStats returns the aggregate stats of userID for quizID.
func (s *QuizService) QuizStats(ctx context.Context, quizID, userID string) domain.QuizStats {
	return s.NewStore(ctx, userID).GetQuizStats(quizID)
}

// ClearStats erases every stat recorded for userID. Open sessions of the user
// drop their in-memory stats before their next write.
func (s *QuizService) ClearStats(ctx context.Context, userID string) {
	key := StatsKey(s.opts.Key, userID)
	s.clearGen(key).clear(ctx, s.kv, key)
}

func (s *QuizService) clearGen(key string) *clearGen {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.clears[key]
	if !ok {
		g = &clearGen{}
		s.clears[key] = g
	}
	return g
}

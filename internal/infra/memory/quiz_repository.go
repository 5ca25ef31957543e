package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"adaptive-quiz/internal/domain"
	"golang.org/x/sync/singleflight"
)

// QuizLoader returns the question set stored under a quiz id, or
// domain.ErrQuizNotFound.
type QuizLoader interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// QuizRepository keeps loaded question sets in process so starting a session
// does not hit the quiz source every time. Each caller gets its own copy of a
// set; sessions never share option slices with the cache or with each other.
type QuizRepository struct {
	loader QuizLoader
	ttl    time.Duration
	clock  func() time.Time
	loads  singleflight.Group

	mu     sync.RWMutex
	jitter *rand.Rand
	sets   map[string]questionSet
}

type questionSet struct {
	quiz    domain.Quiz
	staleAt time.Time
}

func (s questionSet) fresh(now time.Time) bool {
	return now.Before(s.staleAt)
}

// NewQuizRepository caches sets from loader for ttl plus up to 10% jitter.
// A ttl of zero or less disables caching.
func NewQuizRepository(loader QuizLoader, ttl time.Duration) *QuizRepository {
	return &QuizRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		jitter: rand.New(rand.NewSource(time.Now().UnixNano())),
		sets:   make(map[string]questionSet),
	}
}

func (r *QuizRepository) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	if quiz, ok := r.lookup(quizID); ok {
		return quiz, nil
	}

	// Concurrent session starts for one quiz share a single load.
	loaded, err, _ := r.loads.Do(quizID, func() (interface{}, error) {
		if quiz, ok := r.lookup(quizID); ok {
			return quiz, nil
		}
		quiz, err := r.loader.LoadQuiz(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}
		r.store(quizID, quiz)
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return loaded.(domain.Quiz).Clone(), nil
}

func (r *QuizRepository) lookup(quizID string) (domain.Quiz, bool) {
	now := r.clock()
	r.mu.RLock()
	defer r.mu.RUnlock()
	set, ok := r.sets[quizID]
	if !ok || !set.fresh(now) {
		return domain.Quiz{}, false
	}
	return set.quiz.Clone(), true
}

func (r *QuizRepository) store(quizID string, quiz domain.Quiz) {
	if r.ttl <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	spread := r.jitter.Int63n(int64(r.ttl)/10 + 1)
	r.sets[quizID] = questionSet{
		quiz:    quiz.Clone(),
		staleAt: r.clock().Add(r.ttl + time.Duration(spread)),
	}
}

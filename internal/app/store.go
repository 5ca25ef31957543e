package app

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"adaptive-quiz/internal/domain"
)

const (
	// DefaultStatsKey is the key the stats map is persisted under.
	DefaultStatsKey = "quiz_stats"
	// DefaultDeferOffset is how many slots a missed question moves back in the question queue.
	DefaultDeferOffset = 3
)

// KeyValueStore abstracts where the stats map is persisted (memory, Redis, SQLite, Postgres).
type KeyValueStore interface {
	// Get returns the value and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Options tune a QuizSessionStore. The zero value is usable.
type Options struct {
	Key         string
	DeferOffset int
	// Endless starts a new weighted round instead of finishing the session.
	Endless bool
	// Seed makes shuffles reproducible when Rand is nil. Zero seeds from the clock.
	Seed int64
	Rand *rand.Rand
}

// QuizSessionStore holds the quiz state of a single user: the loaded questions,
// the adaptive question queue, the fixed traversal order of the current session,
// and per-question stats.
//
// A store is not safe for concurrent use. Every mutation is delivered
// synchronously to subscribers before the mutating call returns.
type QuizSessionStore struct {
	kv          KeyValueStore
	key         string
	deferOffset int
	endless     bool
	rnd         *rand.Rand

	questions     []domain.Question
	questionQueue []domain.Question
	sessionQueue  []domain.Question
	sessionIndex  int
	stats         domain.StatsMap

	subscribers []subscriber
	nextSubID   int

	// clears is shared by every store of the service writing the same key.
	clears  *clearGen
	seenGen uint64
}

type subscriber struct {
	id int
	fn func(domain.SessionState)
}

// NewQuizSessionStore reads persisted stats from kv and returns an empty session.
// A nil kv keeps stats in memory only.
func NewQuizSessionStore(ctx context.Context, kv KeyValueStore, opts Options) *QuizSessionStore {
	if opts.Key == "" {
		opts.Key = DefaultStatsKey
	}
	if opts.DeferOffset <= 0 {
		opts.DeferOffset = DefaultDeferOffset
	}
	if opts.Rand == nil {
		seed := opts.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		opts.Rand = rand.New(rand.NewSource(seed))
	}
	return &QuizSessionStore{
		kv:          kv,
		key:         opts.Key,
		deferOffset: opts.DeferOffset,
		endless:     opts.Endless,
		rnd:         opts.Rand,
		stats:       loadStats(ctx, kv, opts.Key),
	}
}

// SetQuestions replaces the question set and starts a new session. The question
// queue and the session queue are shuffled independently.
func (s *QuizSessionStore) SetQuestions(questions []domain.Question) {
	s.questions = cloneQuestions(questions)
	s.questionQueue = shuffled(s.rnd, s.questions)
	s.sessionQueue = shuffled(s.rnd, s.questions)
	s.sessionIndex = 0
	s.broadcast()
}

// AnswerQuestion scores answer against the current question, records and persists
// the stats, defers the question in the question queue on a miss, and moves on to
// the next question of the session. It reports false, changing nothing, when there
// is no current question.
func (s *QuizSessionStore) AnswerQuestion(ctx context.Context, answer string) (domain.AnswerResult, bool) {
	current, ok := s.current()
	if !ok {
		return domain.AnswerResult{}, false
	}

	correct := answer == current.CorrectAnswer
	entry := s.record(ctx, current.ID, correct)

	if !correct {
		s.questionQueue = deferQuestion(s.questionQueue, current.ID, s.deferOffset)
	}

	s.sessionIndex++
	if s.endless && s.sessionIndex >= len(s.sessionQueue) {
		s.startRound()
	}
	_, hasNext := s.current()
	s.broadcast()

	return domain.AnswerResult{
		QuestionID: current.ID,
		Correct:    correct,
		Expected:   current.CorrectAnswer,
		Stat:       entry,
		Complete:   !hasNext,
	}, true
}

// StartNextRound rebuilds the question queue weighted by the current stats and
// uses it as the traversal order of a fresh session.
func (s *QuizSessionStore) StartNextRound() {
	s.startRound()
	s.broadcast()
}

func (s *QuizSessionStore) startRound() {
	s.syncClears()
	s.questionQueue = BuildQuestionQueue(s.questions, s.stats, s.rnd)
	s.sessionQueue = cloneQuestions(s.questionQueue)
	s.sessionIndex = 0
}

// ResetQuiz drops the queues and the current question. Questions and stats are kept.
func (s *QuizSessionStore) ResetQuiz() {
	s.questionQueue = nil
	s.sessionQueue = nil
	s.sessionIndex = 0
	s.broadcast()
}

// ClearStats erases persisted and in-memory stats. Queues are left alone.
func (s *QuizSessionStore) ClearStats(ctx context.Context) {
	if s.clears != nil {
		s.seenGen = s.clears.clear(ctx, s.kv, s.key)
	} else {
		deleteStats(ctx, s.kv, s.key)
	}
	s.stats = domain.StatsMap{}
	s.broadcast()
}

// GetQuizStats aggregates the stats of every question id prefixed with "{quizID}_".
func (s *QuizSessionStore) GetQuizStats(quizID string) domain.QuizStats {
	s.syncClears()
	return AggregateQuizStats(s.stats, quizID)
}

// record updates the entry of id and persists the map. A clear issued for the
// key by another store since the last write empties the map first.
func (s *QuizSessionStore) record(ctx context.Context, id string, correct bool) domain.StatEntry {
	if s.clears != nil {
		s.clears.mu.Lock()
		defer s.clears.mu.Unlock()
		s.dropClearedLocked()
	}
	entry := s.stats[id].Record(correct)
	s.stats[id] = entry
	saveStats(ctx, s.kv, s.key, s.stats)
	return entry
}

func (s *QuizSessionStore) syncClears() {
	if s.clears == nil {
		return
	}
	s.clears.mu.Lock()
	defer s.clears.mu.Unlock()
	s.dropClearedLocked()
}

func (s *QuizSessionStore) dropClearedLocked() {
	if s.clears.gen != s.seenGen {
		s.stats = domain.StatsMap{}
		s.seenGen = s.clears.gen
	}
}

// CurrentQuestion returns a copy of the question awaiting an answer.
func (s *QuizSessionStore) CurrentQuestion() (domain.Question, bool) {
	q, ok := s.current()
	if !ok {
		return domain.Question{}, false
	}
	return cloneQuestion(q), true
}

// State returns a snapshot of the store.
func (s *QuizSessionStore) State() domain.SessionState {
	s.syncClears()
	state := domain.SessionState{
		Questions:     cloneQuestions(s.questions),
		QuestionQueue: cloneQuestions(s.questionQueue),
		SessionQueue:  cloneQuestions(s.sessionQueue),
		Stats:         s.stats.Clone(),
	}
	if q, ok := s.current(); ok {
		c := cloneQuestion(q)
		state.CurrentQuestion = &c
	}
	return state
}

// Subscribe registers fn for state snapshots. fn is called right away with the
// current state and after every mutation. The returned function unsubscribes and
// may be called more than once. A nil fn is ignored.
func (s *QuizSessionStore) Subscribe(fn func(domain.SessionState)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	id := s.nextSubID
	s.nextSubID++
	s.subscribers = append(s.subscribers, subscriber{id: id, fn: fn})
	fn(s.State())

	return func() {
		for i, sub := range s.subscribers {
			if sub.id == id {
				s.subscribers = append(s.subscribers[:i:i], s.subscribers[i+1:]...)
				return
			}
		}
	}
}

func (s *QuizSessionStore) current() (domain.Question, bool) {
	if s.sessionIndex < 0 || s.sessionIndex >= len(s.sessionQueue) {
		return domain.Question{}, false
	}
	return s.sessionQueue[s.sessionIndex], true
}

func (s *QuizSessionStore) broadcast() {
	if len(s.subscribers) == 0 {
		return
	}
	// Subscribers may unsubscribe from inside their callback.
	subs := append([]subscriber(nil), s.subscribers...)
	for _, sub := range subs {
		sub.fn(s.State())
	}
}

// AggregateQuizStats sums the entries of stats that belong to quizID.
func AggregateQuizStats(stats domain.StatsMap, quizID string) domain.QuizStats {
	prefix := domain.StatsPrefix(quizID)
	var out domain.QuizStats
	for id, entry := range stats {
		if !strings.HasPrefix(id, prefix) {
			continue
		}
		out.Attempts += entry.Attempts
		out.Correct += entry.Correct
	}
	if out.Attempts > 0 {
		out.SuccessRate = float64(out.Correct) / float64(out.Attempts)
	}
	return out
}

func cloneQuestion(q domain.Question) domain.Question {
	q.Options = append([]string(nil), q.Options...)
	return q
}

func cloneQuestions(qs []domain.Question) []domain.Question {
	out := make([]domain.Question, len(qs))
	for i, q := range qs {
		out[i] = cloneQuestion(q)
	}
	return out
}

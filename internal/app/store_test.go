package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"reflect"
	"testing"

	"adaptive-quiz/internal/app"
	"adaptive-quiz/internal/domain"
	"adaptive-quiz/internal/infra/memory"
)

func TestSetQuestionsEmpty(t *testing.T) {
	store := newTestStore(t, memory.NewKVStore())

	store.SetQuestions(nil)

	state := store.State()
	if state.CurrentQuestion != nil {
		t.Fatalf("expected no current question, got %+v", state.CurrentQuestion)
	}
	if len(state.QuestionQueue) != 0 || len(state.SessionQueue) != 0 {
		t.Fatalf("expected empty queues, got %d and %d", len(state.QuestionQueue), len(state.SessionQueue))
	}
}

func TestSetQuestionsBuildsBothQueues(t *testing.T) {
	store := newTestStore(t, memory.NewKVStore())
	questions := sampleQuestions("quiz1", 6)

	store.SetQuestions(questions)

	state := store.State()
	if !sameIDs(state.QuestionQueue, questions) || !sameIDs(state.SessionQueue, questions) {
		t.Fatalf("queues must be permutations of the question set")
	}
	if state.CurrentQuestion == nil || state.CurrentQuestion.ID != state.SessionQueue[0].ID {
		t.Fatalf("expected current question to be the head of the session queue")
	}
	if !reflect.DeepEqual(state.Questions, questions) {
		t.Fatalf("questions must be kept in load order")
	}
}

func TestAnswerQuestionTracksStats(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewKVStore()
	store := newTestStore(t, kv)
	q := domain.Question{ID: "quiz1_q1", CorrectAnswer: "yes"}

	answers := []string{"yes", "no", "yes", "yes", "maybe", "yes", "no"}
	correct := 0
	for i, answer := range answers {
		store.SetQuestions([]domain.Question{q})
		result, ok := store.AnswerQuestion(ctx, answer)
		if !ok {
			t.Fatalf("answer %d: expected a current question", i)
		}
		if answer == "yes" {
			correct++
		}
		if result.Correct != (answer == "yes") {
			t.Fatalf("answer %d: wrong correctness %v", i, result.Correct)
		}
		if !result.Complete {
			t.Fatalf("answer %d: single question session should be complete", i)
		}
	}

	entry := store.State().Stats[q.ID]
	if entry.Attempts != len(answers) || entry.Correct != correct {
		t.Fatalf("expected %d/%d, got %+v", correct, len(answers), entry)
	}
	if entry.SuccessRate != float64(correct)/float64(len(answers)) {
		t.Fatalf("unexpected success rate %v", entry.SuccessRate)
	}

	persisted := readStats(t, kv, app.DefaultStatsKey)
	if persisted[q.ID] != entry {
		t.Fatalf("expected persisted entry %+v, got %+v", entry, persisted[q.ID])
	}
}

func TestAnswerWithoutCurrentQuestionIsNoop(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewKVStore()
	store := newTestStore(t, kv)
	store.SetQuestions(sampleQuestions("quiz1", 1))
	store.AnswerQuestion(ctx, "a")

	before := store.State()
	notified := 0
	unsubscribe := store.Subscribe(func(domain.SessionState) { notified++ })
	defer unsubscribe()

	if _, ok := store.AnswerQuestion(ctx, "a"); ok {
		t.Fatalf("expected no current question")
	}
	if !reflect.DeepEqual(before, store.State()) {
		t.Fatalf("state changed on a no-op answer")
	}
	if notified != 1 {
		t.Fatalf("expected only the initial notification, got %d", notified)
	}
}

func TestIncorrectAnswerDefersQuestion(t *testing.T) {
	for _, n := range []int{2, 3, 5, 8} {
		store := newTestStore(t, memory.NewKVStore())
		store.SetQuestions(sampleQuestions("quiz1", n))

		state := store.State()
		current := state.CurrentQuestion.ID
		from := indexOf(state.QuestionQueue, current)

		store.AnswerQuestion(context.Background(), "wrong")

		queue := store.State().QuestionQueue
		if len(queue) != n {
			t.Fatalf("n=%d: queue length changed to %d", n, len(queue))
		}
		want := min(from+app.DefaultDeferOffset, n-1)
		if got := indexOf(queue, current); got != want {
			t.Fatalf("n=%d: expected %s at %d (was %d), got %d", n, current, want, from, got)
		}
	}
}

func TestTwoQuestionDeferral(t *testing.T) {
	// q1 answered wrong first ends up last whatever its starting slot.
	for seed := int64(1); seed <= 10; seed++ {
		store := app.NewQuizSessionStore(context.Background(), nil, app.Options{Rand: rand.New(rand.NewSource(seed))})
		store.SetQuestions([]domain.Question{{ID: "q1", CorrectAnswer: "a"}, {ID: "q2", CorrectAnswer: "b"}})
		if store.State().CurrentQuestion.ID != "q1" {
			continue
		}
		from := indexOf(store.State().QuestionQueue, "q1")
		store.AnswerQuestion(context.Background(), "x")
		if got := indexOf(store.State().QuestionQueue, "q1"); got != min(from+3, 1) {
			t.Fatalf("seed %d: expected q1 at %d, got %d", seed, min(from+3, 1), got)
		}
	}
}

func TestCorrectAnswerKeepsQuestionQueue(t *testing.T) {
	store := newTestStore(t, memory.NewKVStore())
	store.SetQuestions(sampleQuestions("quiz1", 5))
	before := store.State().QuestionQueue

	current := store.State().CurrentQuestion
	store.AnswerQuestion(context.Background(), current.CorrectAnswer)

	if !reflect.DeepEqual(before, store.State().QuestionQueue) {
		t.Fatalf("question queue must not change on a correct answer")
	}
}

func TestSessionTraversalIsFixed(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, memory.NewKVStore())
	store.SetQuestions(sampleQuestions("quiz1", 5))
	order := store.State().SessionQueue

	for i, want := range order {
		current, ok := store.CurrentQuestion()
		if !ok || current.ID != want.ID {
			t.Fatalf("step %d: expected %s, got %+v", i, want.ID, current)
		}
		answer := "wrong"
		if i%2 == 0 {
			answer = current.CorrectAnswer
		}
		result, _ := store.AnswerQuestion(ctx, answer)
		if result.Complete != (i == len(order)-1) {
			t.Fatalf("step %d: unexpected completion %v", i, result.Complete)
		}
		if !reflect.DeepEqual(order, store.State().SessionQueue) {
			t.Fatalf("step %d: session queue changed mid-session", i)
		}
	}
	if _, ok := store.CurrentQuestion(); ok {
		t.Fatalf("expected session to be complete")
	}
}

func TestResetQuizKeepsQuestionsAndStats(t *testing.T) {
	store := newTestStore(t, memory.NewKVStore())
	questions := sampleQuestions("quiz1", 3)
	store.SetQuestions(questions)
	store.AnswerQuestion(context.Background(), "x")

	store.ResetQuiz()

	state := store.State()
	if state.CurrentQuestion != nil || len(state.QuestionQueue) != 0 || len(state.SessionQueue) != 0 {
		t.Fatalf("expected cleared queues, got %+v", state)
	}
	if len(state.Questions) != 3 || len(state.Stats) != 1 {
		t.Fatalf("expected questions and stats retained, got %d questions, %d stats", len(state.Questions), len(state.Stats))
	}
}

func TestClearStats(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewKVStore()
	store := newTestStore(t, kv)
	store.SetQuestions(sampleQuestions("quiz1", 3))
	store.AnswerQuestion(ctx, "x")
	queue := store.State().QuestionQueue

	store.ClearStats(ctx)

	if got := store.GetQuizStats("quiz1"); got != (domain.QuizStats{}) {
		t.Fatalf("expected zero stats, got %+v", got)
	}
	if got := store.GetQuizStats("anything"); got != (domain.QuizStats{}) {
		t.Fatalf("expected zero stats, got %+v", got)
	}
	if _, ok, _ := kv.Get(ctx, app.DefaultStatsKey); ok {
		t.Fatalf("expected persisted stats removed")
	}
	if !reflect.DeepEqual(queue, store.State().QuestionQueue) {
		t.Fatalf("queues must survive ClearStats")
	}
}

func TestGetQuizStatsScopesByPrefix(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewKVStore()
	seedStats(t, kv, app.DefaultStatsKey, domain.StatsMap{
		"quiz1_a":  {Attempts: 4, Correct: 3, SuccessRate: 0.75},
		"quiz1_b":  {Attempts: 2, Correct: 0, SuccessRate: 0},
		"quiz2_x":  {Attempts: 10, Correct: 10, SuccessRate: 1},
		"quiz10_y": {Attempts: 5, Correct: 5, SuccessRate: 1},
	})
	store := app.NewQuizSessionStore(ctx, kv, app.Options{})

	got := store.GetQuizStats("quiz1")
	want := domain.QuizStats{Attempts: 6, Correct: 3, SuccessRate: 0.5}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
	if got := store.GetQuizStats("quiz3"); got != (domain.QuizStats{}) {
		t.Fatalf("expected zero stats for unknown quiz, got %+v", got)
	}
}

func TestStatsPersistAcrossStores(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewKVStore()
	first := newTestStore(t, kv)
	first.SetQuestions(sampleQuestions("quiz1", 4))
	for i := 0; i < 4; i++ {
		q, _ := first.CurrentQuestion()
		first.AnswerQuestion(ctx, q.CorrectAnswer)
	}

	second := newTestStore(t, kv)
	if !reflect.DeepEqual(first.State().Stats, second.State().Stats) {
		t.Fatalf("expected reloaded stats to match: %+v vs %+v", first.State().Stats, second.State().Stats)
	}
	if got := second.GetQuizStats("quiz1"); got.Attempts != 4 || got.SuccessRate != 1 {
		t.Fatalf("unexpected reloaded aggregate %+v", got)
	}
}

func TestMalformedStatsFallBackToEmpty(t *testing.T) {
	ctx := context.Background()
	for _, raw := range []string{"{not json", "null", "[1,2]", ""} {
		kv := memory.NewKVStore()
		_ = kv.Set(ctx, app.DefaultStatsKey, raw)
		store := app.NewQuizSessionStore(ctx, kv, app.Options{})
		if len(store.State().Stats) != 0 {
			t.Fatalf("%q: expected empty stats", raw)
		}
		store.SetQuestions(sampleQuestions("quiz1", 1))
		store.AnswerQuestion(ctx, "x")
		if store.GetQuizStats("quiz1").Attempts != 1 {
			t.Fatalf("%q: expected store to keep working", raw)
		}
	}
}

func TestMissingStorageIsEphemeral(t *testing.T) {
	ctx := context.Background()
	store := app.NewQuizSessionStore(ctx, nil, app.Options{Seed: 7})
	store.SetQuestions(sampleQuestions("quiz1", 2))
	store.AnswerQuestion(ctx, "x")
	store.ClearStats(ctx)
	store.AnswerQuestion(ctx, "x")

	if got := store.GetQuizStats("quiz1"); got.Attempts != 1 {
		t.Fatalf("expected in-memory stats, got %+v", got)
	}
}

func TestFailingStorageIsSwallowed(t *testing.T) {
	ctx := context.Background()
	store := app.NewQuizSessionStore(ctx, failingKV{}, app.Options{Seed: 7})
	store.SetQuestions(sampleQuestions("quiz1", 2))

	if _, ok := store.AnswerQuestion(ctx, "x"); !ok {
		t.Fatalf("expected answer to be recorded")
	}
	store.ClearStats(ctx)
	if got := store.GetQuizStats("quiz1"); got != (domain.QuizStats{}) {
		t.Fatalf("expected cleared stats, got %+v", got)
	}
}

func TestSubscribeReceivesSnapshots(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, memory.NewKVStore())

	var updates []domain.SessionState
	unsubscribe := store.Subscribe(func(state domain.SessionState) {
		updates = append(updates, state)
	})

	if len(updates) != 1 || updates[0].CurrentQuestion != nil {
		t.Fatalf("expected initial empty snapshot, got %+v", updates)
	}

	store.SetQuestions(sampleQuestions("quiz1", 2))
	store.AnswerQuestion(ctx, "x")
	store.ClearStats(ctx)
	store.ResetQuiz()
	if len(updates) != 5 {
		t.Fatalf("expected 5 snapshots, got %d", len(updates))
	}
	if updates[2].Stats[updates[1].CurrentQuestion.ID].Attempts != 1 {
		t.Fatalf("expected answer snapshot to carry the new stat")
	}

	// Snapshots are detached from the store.
	updates[1].SessionQueue[0].ID = "mutated"
	updates[2].Stats["mutated"] = domain.StatEntry{Attempts: 9}
	if store.State().Questions[0].ID == "mutated" || len(store.State().Stats) != 0 {
		t.Fatalf("snapshot mutation leaked into the store")
	}

	unsubscribe()
	unsubscribe()
	store.SetQuestions(sampleQuestions("quiz1", 2))
	if len(updates) != 5 {
		t.Fatalf("expected no updates after unsubscribe, got %d", len(updates))
	}
}

func TestUnsubscribeDuringBroadcast(t *testing.T) {
	store := newTestStore(t, memory.NewKVStore())
	calls := 0
	var unsubscribe func()
	unsubscribe = store.Subscribe(func(domain.SessionState) {
		calls++
		if calls == 2 {
			unsubscribe()
		}
	})
	other := 0
	store.Subscribe(func(domain.SessionState) { other++ })

	store.SetQuestions(sampleQuestions("quiz1", 2))
	store.ResetQuiz()

	if calls != 2 || other != 3 {
		t.Fatalf("expected calls=2 other=3, got calls=%d other=%d", calls, other)
	}
}

func TestSubscribeIgnoresNilCallback(t *testing.T) {
	store := newTestStore(t, memory.NewKVStore())
	unsubscribe := store.Subscribe(nil)
	store.SetQuestions(sampleQuestions("quiz1", 2))
	unsubscribe()
	unsubscribe()

	if _, ok := store.AnswerQuestion(context.Background(), "x"); !ok {
		t.Fatalf("expected the store to keep working")
	}
}

func TestStartNextRoundWeightsByStats(t *testing.T) {
	kv := memory.NewKVStore()
	seedStats(t, kv, app.DefaultStatsKey, domain.StatsMap{
		"quiz1_q0": {Attempts: 2, Correct: 2, SuccessRate: 1},
		"quiz1_q1": {Attempts: 2, Correct: 1, SuccessRate: 0.5},
	})
	store := newTestStore(t, kv)
	store.SetQuestions(sampleQuestions("quiz1", 3))

	store.StartNextRound()

	state := store.State()
	counts := map[string]int{}
	for _, q := range state.QuestionQueue {
		counts[q.ID]++
	}
	want := map[string]int{"quiz1_q0": 1, "quiz1_q1": 3, "quiz1_q2": 5}
	if !reflect.DeepEqual(counts, want) {
		t.Fatalf("expected weights %v, got %v", want, counts)
	}
	if !reflect.DeepEqual(state.QuestionQueue, state.SessionQueue) {
		t.Fatalf("expected the new session to follow the weighted queue")
	}
	if state.CurrentQuestion == nil || state.CurrentQuestion.ID != state.SessionQueue[0].ID {
		t.Fatalf("expected current question at the head of the new session")
	}
}

func TestEndlessModeStartsNextRound(t *testing.T) {
	ctx := context.Background()
	store := app.NewQuizSessionStore(ctx, memory.NewKVStore(), app.Options{Endless: true, Seed: 3})
	store.SetQuestions(sampleQuestions("quiz1", 2))

	for i := 0; i < 2; i++ {
		result, ok := store.AnswerQuestion(ctx, "wrong")
		if !ok || result.Complete {
			t.Fatalf("answer %d: endless sessions never complete", i)
		}
	}
	// Both questions were missed, so both get the maximum weight.
	if got := len(store.State().SessionQueue); got != 10 {
		t.Fatalf("expected 10 weighted entries, got %d", got)
	}
}

func TestEndlessModeWithoutQuestions(t *testing.T) {
	store := app.NewQuizSessionStore(context.Background(), nil, app.Options{Endless: true})
	store.SetQuestions(nil)
	if _, ok := store.AnswerQuestion(context.Background(), "a"); ok {
		t.Fatalf("expected no current question")
	}
}

func TestStatsKey(t *testing.T) {
	if got := app.StatsKey("", ""); got != app.DefaultStatsKey {
		t.Fatalf("unexpected default key %q", got)
	}
	if got := app.StatsKey("quiz_stats", "u1"); got != "quiz_stats:u1" {
		t.Fatalf("unexpected user key %q", got)
	}
}

type failingKV struct{}

var errBackend = errors.New("backend unavailable")

func (failingKV) Get(context.Context, string) (string, bool, error) { return "", false, errBackend }
func (failingKV) Set(context.Context, string, string) error         { return errBackend }
func (failingKV) Delete(context.Context, string) error              { return errBackend }

func newTestStore(t *testing.T, kv app.KeyValueStore) *app.QuizSessionStore {
	t.Helper()
	return app.NewQuizSessionStore(context.Background(), kv, app.Options{Rand: rand.New(rand.NewSource(42))})
}

func sampleQuestions(quizID string, n int) []domain.Question {
	questions := make([]domain.Question, n)
	for i := range questions {
		questions[i] = domain.Question{
			ID:            domain.StatsPrefix(quizID) + "q" + string(rune('0'+i)),
			Prompt:        "question",
			Options:       []string{"a", "b", "c"},
			CorrectAnswer: string(rune('a' + i%3)),
		}
	}
	return questions
}

func seedStats(t *testing.T, kv app.KeyValueStore, key string, stats domain.StatsMap) {
	t.Helper()
	data, err := json.Marshal(stats)
	if err != nil {
		t.Fatalf("marshal stats: %v", err)
	}
	if err := kv.Set(context.Background(), key, string(data)); err != nil {
		t.Fatalf("seed stats: %v", err)
	}
}

func readStats(t *testing.T, kv app.KeyValueStore, key string) domain.StatsMap {
	t.Helper()
	raw, ok, err := kv.Get(context.Background(), key)
	if err != nil || !ok {
		t.Fatalf("read stats: ok=%v err=%v", ok, err)
	}
	var stats domain.StatsMap
	if err := json.Unmarshal([]byte(raw), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	return stats
}

func indexOf(queue []domain.Question, id string) int {
	for i, q := range queue {
		if q.ID == id {
			return i
		}
	}
	return -1
}

func sameIDs(a, b []domain.Question) bool {
	if len(a) != len(b) {
		return false
	}
	counts := map[string]int{}
	for _, q := range a {
		counts[q.ID]++
	}
	for _, q := range b {
		counts[q.ID]--
	}
	for _, c := range counts {
		if c != 0 {
			return false
		}
	}
	return true
}

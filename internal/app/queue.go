package app

import (
	"math"
	"math/rand"

	"adaptive-quiz/internal/domain"
)

const maxQuestionWeight = 5

// QuestionWeight maps a success rate to the number of copies a question gets in a
// weighted queue: 5 for never answered or always wrong, down to 1 for perfect.
func QuestionWeight(successRate float64) int {
	if successRate < 0 {
		successRate = 0
	}
	return max(1, maxQuestionWeight-int(math.Floor(successRate*maxQuestionWeight)))
}

// BuildQuestionQueue expands every question into QuestionWeight copies based on its
// stats and shuffles the result, biasing the queue towards weaker questions.
func BuildQuestionQueue(questions []domain.Question, stats domain.StatsMap, rnd *rand.Rand) []domain.Question {
	queue := make([]domain.Question, 0, len(questions))
	for _, q := range questions {
		weight := QuestionWeight(stats[q.ID].SuccessRate)
		for i := 0; i < weight; i++ {
			queue = append(queue, cloneQuestion(q))
		}
	}
	shuffle(rnd, queue)
	return queue
}

// deferQuestion moves the first occurrence of id offset slots later, capped at the
// end of the queue. It returns a new slice.
func deferQuestion(queue []domain.Question, id string, offset int) []domain.Question {
	from := -1
	for i := range queue {
		if queue[i].ID == id {
			from = i
			break
		}
	}
	if from < 0 {
		return queue
	}

	moved := queue[from]
	rest := make([]domain.Question, 0, len(queue))
	rest = append(rest, queue[:from]...)
	rest = append(rest, queue[from+1:]...)

	to := min(from+offset, len(rest))
	out := make([]domain.Question, 0, len(queue))
	out = append(out, rest[:to]...)
	out = append(out, moved)
	out = append(out, rest[to:]...)
	return out
}

func shuffled(rnd *rand.Rand, qs []domain.Question) []domain.Question {
	out := cloneQuestions(qs)
	shuffle(rnd, out)
	return out
}

// shuffle is an in-place Fisher-Yates shuffle.
func shuffle(rnd *rand.Rand, qs []domain.Question) {
	for i := len(qs) - 1; i > 0; i-- {
		j := rnd.Intn(i + 1)
		qs[i], qs[j] = qs[j], qs[i]
	}
}

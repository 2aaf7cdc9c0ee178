package app

import (
	"sort"

	"trivia-race-service/internal/domain"
)

// PointsForRank returns the award for the n-th correct answer (0-based).
func PointsForRank(rank int) int {
	switch rank {
	case 0:
		return 20
	case 1:
		return 10
	case 2:
		return 5
	default:
		// every correct answer after the podium still earns a point
		return 1
	}
}

// ScoreAnswers ranks the answers marked correct at submission by arrival time and returns
// the awards in rank order. Answers with equal timestamps keep their submission order.
func ScoreAnswers(answers map[string]domain.Answer) []domain.Award {
	type arrival struct {
		playerID string
		answer   domain.Answer
	}

	hits := make([]arrival, 0, len(answers))
	for playerID, answer := range answers {
		if answer.Correct {
			hits = append(hits, arrival{playerID: playerID, answer: answer})
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if !hits[i].answer.At.Equal(hits[j].answer.At) {
			return hits[i].answer.At.Before(hits[j].answer.At)
		}
		return hits[i].answer.Seq < hits[j].answer.Seq
	})

	awards := make([]domain.Award, len(hits))
	for rank, hit := range hits {
		awards[rank] = domain.Award{PlayerID: hit.playerID, Points: PointsForRank(rank)}
	}
	return awards
}

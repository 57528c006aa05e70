package sitecontext

import (
	"cmp"
	"slices"
	"strings"

	"github.com/RomanRochniak/CapstoneGym/internal/model"
)

// DefaultTopK is the number of recommendations returned per list.
const DefaultTopK = 3

const keywordWeight = 2

// Detection order matters: the first goal with a matching keyword wins.
var goalKeywords = []struct {
	goal     model.Goal
	keywords []string
}{
	{model.GoalMuscleGain, []string{"muscle", "bulk", "mass", "strength", "hypertrophy", "gain", "big"}},
	{model.GoalWeightLoss, []string{"lose", "loss", "cut", "fat", "lean", "weight loss", "calories"}},
	{model.GoalEndurance, []string{"endurance", "cardio", "stamina", "run", "running", "conditioning", "fitness"}},
}

var trainerKeywords = map[model.Goal][]string{
	model.GoalMuscleGain: {"muscle", "mass", "strength", "gain", "hypertrophy", "bulk"},
	model.GoalWeightLoss: {"fat", "loss", "cut", "lean", "weight", "cardio"},
	model.GoalEndurance:  {"endurance", "cardio", "fitness", "stamina", "conditioning", "run"},
}

var programKeywords = map[model.Goal][]string{
	model.GoalMuscleGain: {"mass", "muscle", "strength", "bulk", "hypertrophy"},
	model.GoalWeightLoss: {"fat", "loss", "cut", "lean", "weight"},
	model.GoalEndurance:  {"endurance", "cardio", "fitness", "conditioning", "stamina"},
}

// DetectGoal infers a fitness goal from free text by substring match.
func DetectGoal(text string) model.Goal {
	q := strings.ToLower(text)
	for _, g := range goalKeywords {
		for _, k := range g.keywords {
			if strings.Contains(q, k) {
				return g.goal
			}
		}
	}
	return model.GoalNone
}

// Match detects the goal of message and returns up to topK trainers and
// programs with a positive keyword score, best first. Equal scores keep
// their order in site. Without a goal both lists are empty.
func Match(site *model.SiteContext, message string, topK int) ([]model.TrainerInfo, []model.ProgramInfo, model.Goal) {
	trainers := []model.TrainerInfo{}
	programs := []model.ProgramInfo{}

	goal := DetectGoal(message)
	if goal == model.GoalNone {
		return trainers, programs, model.GoalNone
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	trainers = rank(site.Trainers, topK, func(t model.TrainerInfo) int {
		return score(t.Specialization+" "+t.Description, trainerKeywords[goal])
	})
	programs = rank(site.Programs, topK, func(p model.ProgramInfo) int {
		return score(p.Name+" "+p.Description, programKeywords[goal])
	})

	return trainers, programs, goal
}

func score(text string, keywords []string) int {
	hay := strings.ToLower(text)
	total := 0
	for _, k := range keywords {
		if strings.Contains(hay, k) {
			total += keywordWeight
		}
	}
	return total
}

type scored[T any] struct {
	item  T
	score int
}

func rank[T any](items []T, topK int, scoreFn func(T) int) []T {
	ranked := make([]scored[T], 0, len(items))
	for _, it := range items {
		if s := scoreFn(it); s > 0 {
			ranked = append(ranked, scored[T]{item: it, score: s})
		}
	}
	slices.SortStableFunc(ranked, func(a, b scored[T]) int {
		return cmp.Compare(b.score, a.score)
	})

	out := make([]T, 0, min(topK, len(ranked)))
	for i := 0; i < len(ranked) && i < topK; i++ {
		out = append(out, ranked[i].item)
	}
	return out
}

// Suggestions assembles the recommendation payload for a message.
func Suggestions(site *model.SiteContext, message string, topK int) *model.Suggestions {
	trainers, programs, goal := Match(site, message, topK)
	s := &model.Suggestions{
		RecommendedTrainers: trainers,
		RecommendedPrograms: programs,
		Membership:          site.Membership,
	}
	if goal != model.GoalNone {
		s.GoalDetected = &goal
	}
	return s
}

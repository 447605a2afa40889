package score

import (
	"fmt"
	"math"
	"reflect"
	"strings"
	"testing"
	"time"

	"wellness-score/internal/domain"
)

var testDay = time.Date(2024, 5, 14, 12, 0, 0, 0, time.UTC)

func food(name string, systems ...domain.DefenseSystem) domain.FoodItem {
	return domain.FoodItem{Name: name, Systems: systems}
}

func event(meal domain.MealTime, foods ...domain.FoodItem) domain.ConsumptionEvent {
	return domain.ConsumptionEvent{UserID: "u", ConsumedAt: testDay, MealTime: meal, Foods: foods}
}

func TestSystemScoreFor(t *testing.T) {
	want := []int{0, 30, 50, 70, 85, 100, 100, 100, 100}
	for n, expected := range want {
		if got := SystemScoreFor(n); got != expected {
			t.Fatalf("SystemScoreFor(%d) = %d, ожидали %d", n, got, expected)
		}
	}
}

func TestVarietyScoreFor(t *testing.T) {
	cases := map[int]int{0: 0, 1: 4, 10: 40, 12: 48, 24: 96, 25: 100, 40: 100}
	for unique, expected := range cases {
		if got := VarietyScoreFor(unique); got != expected {
			t.Fatalf("VarietyScoreFor(%d) = %d, ожидали %d", unique, got, expected)
		}
	}
}

func TestOverallScoreStaysInRange(t *testing.T) {
	counts := make([]int, 5)
	var walk func(i int)
	walk = func(i int) {
		if i == len(counts) {
			scores := make([]int, len(counts))
			sum := 0
			for j, c := range counts {
				scores[j] = SystemScoreFor(c)
				sum += scores[j]
			}
			for meals := 0; meals <= len(domain.MealTimes); meals++ {
				for unique := 0; unique <= 30; unique += 3 {
					variety := VarietyScoreFor(unique)
					got := OverallScoreFor(scores, meals, len(domain.MealTimes), variety)
					if got < 0 || got > 100 {
						t.Fatalf("скор %d вне диапазона для %v/%d/%d", got, counts, meals, unique)
					}
					avg := float64(sum) / 5
					want := int(math.Round(0.5*avg + 0.3*float64(meals)/4*100 + 0.2*float64(variety)))
					if got != want {
						t.Fatalf("скор %d, ожидали %d для %v/%d/%d", got, want, counts, meals, unique)
					}
				}
			}
			return
		}
		for c := 0; c <= 6; c++ {
			counts[i] = c
			walk(i + 1)
		}
	}
	walk(0)
}

func TestCalculateZeroActivity(t *testing.T) {
	s := Calculate("u", testDay, nil)
	if s.OverallScore != 0 {
		t.Fatalf("ожидали 0, получили %d", s.OverallScore)
	}
	if len(s.SystemScores) != 5 || len(s.MealTimeScores) != 4 {
		t.Fatalf("ожидали 5 систем и 4 слота, получили %d/%d", len(s.SystemScores), len(s.MealTimeScores))
	}
	if s.Insights.StrongestSystem != nil {
		t.Fatalf("при нуле не должно быть сильнейшей системы")
	}
	if s.Insights.WeakestSystem == nil || *s.Insights.WeakestSystem != domain.SystemAngiogenesis {
		t.Fatalf("ожидали слабейшей первую систему, получили %v", s.Insights.WeakestSystem)
	}
	if len(s.Insights.MissedMeals) != 4 {
		t.Fatalf("ожидали 4 пропущенных слота")
	}
	if s.Insights.SystemBalance != 100 {
		t.Fatalf("равные оценки дают баланс 100, получили %d", s.Insights.SystemBalance)
	}
	if err := Validate(s); err != nil {
		t.Fatalf("нулевой скор должен проходить проверку: %v", err)
	}
}

func TestCalculatePerfectDay(t *testing.T) {
	var events []domain.ConsumptionEvent
	for i, system := range domain.DefenseSystems {
		var foods []domain.FoodItem
		for j := 0; j < 5; j++ {
			foods = append(foods, food(fmt.Sprintf("%s-%d", system, j), system))
		}
		events = append(events, event(domain.MealTimes[i%len(domain.MealTimes)], foods...))
	}
	s := Calculate("u", testDay, events)
	if s.OverallScore != 100 {
		t.Fatalf("ожидали 100, получили %d", s.OverallScore)
	}
	if s.FoodVariety.TotalUniqueFoods != 25 || s.FoodVariety.Score != 100 {
		t.Fatalf("ожидали 25 уникальных и разнообразие 100, получили %+v", s.FoodVariety)
	}
	if !strings.Contains(s.Insights.Recommendation, "Outstanding") {
		t.Fatalf("ожидали поздравление, получили %q", s.Insights.Recommendation)
	}
	if s.Insights.WeakestSystem != nil {
		t.Fatalf("при полном покрытии слабейшей системы нет")
	}
	for _, step := range s.Insights.NextSteps {
		if strings.Contains(step, "unique foods today") {
			t.Fatalf("шаг разнообразия не нужен при 25 продуктах")
		}
	}
}

func TestCalculateMixedDay(t *testing.T) {
	events := []domain.ConsumptionEvent{
		event(domain.MealBreakfast, food("Kale", domain.SystemAngiogenesis, domain.SystemDNAProtection)),
		event(domain.MealLunch, food("Yogurt", domain.SystemMicrobiome)),
		event(domain.MealDinner, food("yogurt ", domain.SystemMicrobiome)),
	}
	s := Calculate("u", testDay, events)

	if s.OverallScore != 33 {
		t.Fatalf("ожидали 33, получили %d", s.OverallScore)
	}
	if got := s.System(domain.SystemMicrobiome); got.FoodsConsumed != 1 || got.Score != 30 || got.CoveragePercent != 20 {
		t.Fatalf("неожиданная оценка микробиома: %+v", got)
	}
	if !reflect.DeepEqual(s.FoodVariety.RepeatedFoods, []string{"Yogurt"}) {
		t.Fatalf("ожидали повтор Yogurt, получили %v", s.FoodVariety.RepeatedFoods)
	}
	if math.Abs(s.FoodVariety.DiversityIndex-2.0/3.0) > 1e-9 {
		t.Fatalf("ожидали индекс 2/3, получили %v", s.FoodVariety.DiversityIndex)
	}
	if *s.Insights.StrongestSystem != domain.SystemAngiogenesis {
		t.Fatalf("ожидали сильнейшей ангиогенез, получили %v", *s.Insights.StrongestSystem)
	}
	if *s.Insights.WeakestSystem != domain.SystemRegeneration {
		t.Fatalf("ожидали слабейшей регенерацию, получили %v", *s.Insights.WeakestSystem)
	}
	if !strings.Contains(s.Insights.Recommendation, "add 5 more unique foods") {
		t.Fatalf("ожидали точное число недостающих продуктов: %q", s.Insights.Recommendation)
	}
	wantSteps := []string{
		"Add 5 foods that support Regeneration",
		"Log your snack to cover more systems",
		"Aim for at least 10 unique foods today (currently 2)",
	}
	if !reflect.DeepEqual(s.Insights.NextSteps, wantSteps) {
		t.Fatalf("шаги %v, ожидали %v", s.Insights.NextSteps, wantSteps)
	}
	breakfast := s.MealTimeScores[0]
	if !breakfast.HasFood || breakfast.Score != 100 || len(breakfast.SystemsCovered) != 2 {
		t.Fatalf("неожиданный завтрак: %+v", breakfast)
	}
	if snack := s.MealTimeScores[3]; snack.HasFood || snack.Score != 0 {
		t.Fatalf("перекус не логировался: %+v", snack)
	}
}

func TestCalculateIsIdempotent(t *testing.T) {
	events := []domain.ConsumptionEvent{
		event(domain.MealBreakfast, food("Blueberries", domain.SystemAngiogenesis, domain.SystemImmunity), food("Oats", domain.SystemMicrobiome)),
		event(domain.MealSnack, food("Walnuts", domain.SystemRegeneration, domain.SystemDNAProtection)),
	}
	first := Calculate("u", testDay, events)
	second := Calculate("u", testDay, events)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("повторный расчёт дал другой результат:\n%+v\n%+v", first, second)
	}
}

func TestCalculateToleratesMalformedFoods(t *testing.T) {
	events := []domain.ConsumptionEvent{
		{UserID: "u", MealTime: domain.MealLunch, Foods: nil},
		{UserID: "u", MealTime: domain.MealLunch, Foods: []domain.FoodItem{{Name: "  "}, {Name: "Tea", Systems: []domain.DefenseSystem{"UNKNOWN"}}}},
	}
	s := Calculate("u", testDay, events)
	if s.FoodVariety.TotalUniqueFoods != 0 {
		t.Fatalf("продукты без известных систем не учитываются в разнообразии")
	}
	if !s.MealTimeScores[1].HasFood {
		t.Fatalf("обед всё равно залогирован")
	}
}

func TestCalculateUsesFallbackForUntaggedEvents(t *testing.T) {
	events := []domain.ConsumptionEvent{
		{UserID: "u", Foods: []domain.FoodItem{food("a", domain.SystemImmunity), food("b", domain.SystemImmunity), food("c", domain.SystemImmunity)}},
		{UserID: "u", Foods: []domain.FoodItem{food("d", domain.SystemMicrobiome), food("e", domain.SystemMicrobiome), food("f", domain.SystemMicrobiome), food("g", domain.SystemMicrobiome)}},
	}
	s := Calculate("u", testDay, events)
	counts := []int{}
	for _, m := range s.MealTimeScores {
		counts = append(counts, m.FoodCount)
	}
	if !reflect.DeepEqual(counts, []int{3, 2, 2, 0}) {
		t.Fatalf("ожидали распределение [3 2 2 0], получили %v", counts)
	}
}

func TestEstimateMealCoverage(t *testing.T) {
	cases := []struct {
		entries int
		want    []int
	}{
		{entries: 0, want: []int{0, 0, 0, 0}},
		{entries: 1, want: []int{1, 0, 0, 0}},
		{entries: 2, want: []int{1, 1, 0, 0}},
		{entries: 3, want: []int{1, 1, 1, 0}},
		{entries: 10, want: []int{4, 3, 3, 0}},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("entries=%d", tc.entries), func(t *testing.T) {
			got := EstimateMealCoverage(tc.entries)
			for i, m := range got {
				if m.FoodCount != tc.want[i] {
					t.Fatalf("слот %s: %d, ожидали %d", m.MealTime, m.FoodCount, tc.want[i])
				}
				if (m.FoodCount > 0) != m.HasFood {
					t.Fatalf("слот %s: HasFood не согласован со счётчиком", m.MealTime)
				}
			}
		})
	}
}

func TestSystemBalance(t *testing.T) {
	systems := make([]domain.SystemScore, 0, 5)
	for i, system := range domain.DefenseSystems {
		score := 0
		if i == 0 {
			score = 100
		}
		systems = append(systems, domain.SystemScore{System: system, Score: score})
	}
	if got := SystemBalance(systems); got != 60 {
		t.Fatalf("ожидали баланс 60, получили %d", got)
	}
}

func TestValidateRejectsBrokenScores(t *testing.T) {
	good := Calculate("u", testDay, nil)
	broken := []domain.Score5x5x5{good, good, good}
	broken[0].OverallScore = 101
	broken[1].FoodVariety.Score = -1
	broken[2].SystemScores = nil
	for i, s := range broken {
		if err := Validate(s); err == nil {
			t.Fatalf("случай %d: ожидали ошибку проверки", i)
		}
	}
}

package recommend

import (
	"time"

	"wellness-score/internal/domain"
	"wellness-score/internal/usecase/gaps"
)

// Причины решения о генерации. Используются в логах и метриках.
const (
	ReasonZeroActivity  = "zero_activity"
	ReasonEligible      = "eligible"
	ReasonMaxActive     = "max_active"
	ReasonCooldown      = "cooldown"
	ReasonQuietHours    = "quiet_hours"
	ReasonLowAcceptance = "low_acceptance"
	ReasonCriticalOnly  = "critical_only"
)

// Decision описывает результат проверки допустимости генерации.
type Decision struct {
	Allowed      bool
	CriticalOnly bool
	Reason       string
}

// Eligibility проверяет, можно ли сейчас генерировать рекомендации.
// День без активности разрешён всегда, остальные проверки идут по порядку:
// число активных, пауза после последней рекомендации, тихие часы, доля принятия.
func Eligibility(analysis domain.GapAnalysis, profile domain.UserBehaviorProfile, active int, now time.Time, cfg Config) Decision {
	if gaps.IsZeroActivity(analysis) {
		return Decision{Allowed: true, Reason: ReasonZeroActivity}
	}
	if active >= cfg.MaxActive {
		return Decision{Reason: ReasonMaxActive}
	}
	if !CooldownElapsed(profile.LastRecommendationAt, now, cfg.Cooldown) {
		return Decision{Reason: ReasonCooldown}
	}
	if WithinWindow(MinuteOfDay(now, cfg.Location), cfg.QuietStart, cfg.QuietEnd) {
		return Decision{Reason: ReasonQuietHours}
	}
	if profile.AcceptanceRate < cfg.LowAcceptance {
		if analysis.OverallScore < cfg.CriticalScore {
			return Decision{Allowed: true, CriticalOnly: true, Reason: ReasonCriticalOnly}
		}
		return Decision{Reason: ReasonLowAcceptance}
	}
	return Decision{Allowed: true, Reason: ReasonEligible}
}

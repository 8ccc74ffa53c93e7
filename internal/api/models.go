package api

import (
	"fmt"
	"time"

	"github.com/phrazzld/bespoke/internal/domain"
	"github.com/phrazzld/bespoke/internal/service/session"
)

// StartSessionRequest is the payload of POST /api/session. Omitted modes and
// limits fall back to the server defaults.
type StartSessionRequest struct {
	TargetLanguage string   `json:"target_language" validate:"required"`
	NativeLanguage string   `json:"native_language" validate:"required,nefield=TargetLanguage"`
	Difficulty     string   `json:"difficulty"      validate:"required"`
	Modes          []string `json:"modes"           validate:"omitempty,dive,oneof=listen speak read write"`
	NewCardLimit   *int     `json:"new_card_limit"  validate:"omitempty,gte=0"`
	RecencyWindow  *int     `json:"recency_window"  validate:"omitempty,gte=0"`
}

// OutcomeRequest is the payload of POST /api/session/outcome. Items rates
// vocabulary items individually and may replace Rating.
type OutcomeRequest struct {
	Rating   string            `json:"rating"          validate:"required_without=Items,omitempty,oneof=again hard good easy"`
	Items    map[string]string `json:"items,omitempty" validate:"omitempty,dive,keys,required,endkeys,oneof=again hard good easy"`
	Reported bool              `json:"reported"`
}

// OutcomeResponse reports the card's new schedule.
type OutcomeResponse struct {
	State        session.State `json:"state"`
	IntervalDays float64       `json:"interval_days"`
	EaseFactor   float64       `json:"ease_factor"`
	ReviewCount  int           `json:"review_count"`
	Lapses       int           `json:"lapses"`
	NextDueAt    time.Time     `json:"next_due_at"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

func (req OutcomeRequest) answer() (session.Answer, error) {
	answer := session.Answer{Reported: req.Reported}
	if req.Rating != "" {
		rating, err := domain.ParseReviewOutcome(req.Rating)
		if err != nil {
			return session.Answer{}, err
		}
		answer.Rating = rating
	}
	if len(req.Items) > 0 {
		answer.Items = make(map[string]domain.ReviewOutcome, len(req.Items))
		for item, name := range req.Items {
			rating, err := domain.ParseReviewOutcome(name)
			if err != nil {
				return session.Answer{}, err
			}
			answer.Items[item] = rating
		}
	}
	if answer.Rating == "" && len(answer.Items) == 0 {
		return session.Answer{}, fmt.Errorf("%w: no rating", domain.ErrInvalidReviewOutcome)
	}
	return answer, nil
}

func outcomeToResponse(state session.State, s domain.SchedulingState) OutcomeResponse {
	return OutcomeResponse{
		State:        state,
		IntervalDays: s.Interval.Hours() / 24,
		EaseFactor:   s.EaseFactor,
		ReviewCount:  s.ReviewCount,
		Lapses:       s.Lapses,
		NextDueAt:    s.NextDueAt,
	}
}

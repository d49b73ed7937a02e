// Package scoring blends interview and resume signals into a final score.
package scoring

import (
	"math"

	"hiring-backend/internal/jobs"
)

// Inputs are the signals available for one application.
type Inputs struct {
	InterviewScore *float64
	ResumeScore    *float64
}

// Policy turns signals into a final score. ok is false when a required
// signal is still missing.
type Policy interface {
	Blend(in Inputs) (score float64, ok bool)
}

// WeightedBlend is a weighted mean of the interview and resume scores. A zero
// resume weight makes the resume score optional.
type WeightedBlend struct {
	InterviewWeight float64
	ResumeWeight    float64
}

// Blend implements Policy.
func (w WeightedBlend) Blend(in Inputs) (float64, bool) {
	if in.InterviewScore == nil {
		return 0, false
	}
	if w.ResumeWeight > 0 && in.ResumeScore == nil {
		return 0, false
	}
	total := w.InterviewWeight
	sum := w.InterviewWeight * *in.InterviewScore
	if w.ResumeWeight > 0 {
		total += w.ResumeWeight
		sum += w.ResumeWeight * *in.ResumeScore
	}
	if total <= 0 {
		return round2(*in.InterviewScore), true
	}
	return round2(sum / total), true
}

// PolicyFor returns the job's own weights when it declares them, otherwise
// fallback.
func PolicyFor(fallback WeightedBlend, job jobs.Job) Policy {
	if job.Weights != nil {
		return WeightedBlend{InterviewWeight: job.Weights.Interview, ResumeWeight: job.Weights.Resume}
	}
	return fallback
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

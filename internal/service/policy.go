package service

import "github.com/roomquest/idverify/internal/face"

// Face verification policy. The weights and the decision rule are a wire
// contract with the audit trail: the composite score blends liveness (up to
// 0.7: a 0.4 bonus for open eyes plus 0.3 scaled detector confidence) with
// identity match (up to 0.3), while the pass/fail decision ignores the
// composite and requires liveness plus a harder similarity bar.
const (
	// SimilarityFloor is passed to the comparator; matches below it are not
	// returned and count as similarity 0.
	SimilarityFloor float32 = 80

	// similarityBar is the decision threshold on the 0-1 similarity scale.
	similarityBar = 0.65

	liveBonus      = 0.4
	livenessWeight = 0.3
	matchWeight    = 0.3
)

// FaceOutcome is the result of evaluating one selfie against one document.
type FaceOutcome struct {
	IsLive        bool
	LivenessScore float64 // detector confidence scaled to 0-1
	Similarity    float64 // best match similarity scaled to 0-1
	Score         float64 // composite, informational only
	Verified      bool    // the actual decision
}

// scoreFaceMatch applies the policy to raw provider signals. similarityPct is
// the comparator's 0-100 best-match confidence (0 when nothing cleared the
// floor).
func scoreFaceMatch(live face.Liveness, similarityPct float64) FaceOutcome {
	out := FaceOutcome{
		IsLive:        live.EyesOpen,
		LivenessScore: live.Confidence / 100,
		Similarity:    similarityPct / 100,
	}

	if out.IsLive {
		out.Score = liveBonus
	}
	out.Score += out.LivenessScore*livenessWeight + out.Similarity*matchWeight

	out.Verified = out.IsLive && out.Similarity >= similarityBar
	return out
}

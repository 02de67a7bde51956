package face

import "context"

// Liveness is a coarse liveness signal for a selfie: whether the subject's
// eyes are open, and the detector's confidence in the face it found (0-100).
type Liveness struct {
	EyesOpen   bool
	Confidence float64
}

// Analyzer abstracts the face-analysis provider so the verification policy
// can be tested without AWS.
type Analyzer interface {
	// DetectFace inspects a single image and returns the liveness signal for
	// the most prominent face. No face found reports EyesOpen=false with
	// zero confidence, not an error.
	DetectFace(ctx context.Context, imageBytes []byte) (Liveness, error)

	// CompareFaces matches source (selfie) against target (document photo).
	// Matches below similarityFloor are not returned; the result is the best
	// match's similarity in 0-100, or 0 when nothing cleared the floor.
	CompareFaces(ctx context.Context, sourceBytes, targetBytes []byte, similarityFloor float32) (float64, error)
}

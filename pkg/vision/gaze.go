package vision

import "ProjectGaze/internal/entity"

// EstimatorFunc turns one frame's detections into an attention verdict.
// It is a plain function so stricter policies can replace the default
// without touching session or protocol code.
type EstimatorFunc func(entity.Detection) entity.GazeVerdict

// Confidence levels of the default estimator. The mapping is a fixed
// step function, monotonic in the number of detected features.
const (
	ConfidenceNone     = 0.0
	ConfidenceFaceOnly = 0.5
	ConfidenceOneEye   = 0.75
	ConfidenceBothEyes = 1.0
)

// Estimate is the default policy: a user counts as looking at the
// camera only when a face and both eyes are visible in the frame.
// No temporal smoothing is applied; every verdict reflects exactly one frame.
func Estimate(d entity.Detection) entity.GazeVerdict {
	verdict := entity.GazeVerdict{
		FaceDetected: len(d.Faces) > 0,
		EyeCount:     d.EyeCount(),
	}

	verdict.LookingAway = !verdict.FaceDetected || verdict.EyeCount < 2

	switch {
	case !verdict.FaceDetected:
		verdict.Confidence = ConfidenceNone
	case verdict.EyeCount >= 2:
		verdict.Confidence = ConfidenceBothEyes
	case verdict.EyeCount == 1:
		verdict.Confidence = ConfidenceOneEye
	default:
		verdict.Confidence = ConfidenceFaceOnly
	}

	return verdict
}

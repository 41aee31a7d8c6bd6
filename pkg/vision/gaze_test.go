package vision

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ProjectGaze/internal/entity"
)

func detectionWith(eyesPerFace ...int) entity.Detection {
	var d entity.Detection
	for i, eyes := range eyesPerFace {
		face := entity.FaceDetection{
			Bounds: entity.Rect{X: i * 100, Y: 50, W: 80, H: 80},
		}
		for e := 0; e < eyes; e++ {
			face.Eyes = append(face.Eyes, entity.Rect{
				X: i*100 + e*30, Y: 70, W: 20, H: 12,
			})
		}
		d.Faces = append(d.Faces, face)
	}
	return d
}

func TestEstimateNoFace(t *testing.T) {
	verdict := Estimate(entity.Detection{})

	assert.False(t, verdict.FaceDetected)
	assert.Equal(t, 0, verdict.EyeCount)
	assert.True(t, verdict.LookingAway)
	assert.Equal(t, ConfidenceNone, verdict.Confidence)
}

func TestEstimateFaceWithoutEyes(t *testing.T) {
	verdict := Estimate(detectionWith(0))

	assert.True(t, verdict.FaceDetected)
	assert.Equal(t, 0, verdict.EyeCount)
	assert.True(t, verdict.LookingAway)
	assert.Equal(t, ConfidenceFaceOnly, verdict.Confidence)
}

func TestEstimateFaceWithOneEye(t *testing.T) {
	verdict := Estimate(detectionWith(1))

	assert.True(t, verdict.FaceDetected)
	assert.Equal(t, 1, verdict.EyeCount)
	assert.True(t, verdict.LookingAway)
	assert.Equal(t, ConfidenceOneEye, verdict.Confidence)
}

func TestEstimateFaceWithBothEyes(t *testing.T) {
	verdict := Estimate(detectionWith(2))

	assert.True(t, verdict.FaceDetected)
	assert.Equal(t, 2, verdict.EyeCount)
	assert.False(t, verdict.LookingAway)
	assert.Equal(t, ConfidenceBothEyes, verdict.Confidence)
}

func TestEstimateEyeCountSumsAcrossFaces(t *testing.T) {
	verdict := Estimate(detectionWith(2, 1))

	assert.Equal(t, 3, verdict.EyeCount)
	assert.False(t, verdict.LookingAway)
	assert.Equal(t, ConfidenceBothEyes, verdict.Confidence)
}

func TestEstimateEyeCountMatchesDetection(t *testing.T) {
	for _, d := range []entity.Detection{
		{},
		detectionWith(0),
		detectionWith(1),
		detectionWith(2),
		detectionWith(2, 2, 1),
	} {
		verdict := Estimate(d)
		assert.Equal(t, d.EyeCount(), verdict.EyeCount)
	}
}

func TestEstimateConfidenceIsMonotonic(t *testing.T) {
	ordered := []entity.Detection{
		{},
		detectionWith(0),
		detectionWith(1),
		detectionWith(2),
	}

	previous := -1.0
	for _, d := range ordered {
		verdict := Estimate(d)
		assert.GreaterOrEqual(t, verdict.Confidence, previous)
		assert.LessOrEqual(t, verdict.Confidence, 1.0)
		previous = verdict.Confidence
	}
}

func TestEstimateIsDeterministic(t *testing.T) {
	d := detectionWith(2, 1)
	assert.Equal(t, Estimate(d), Estimate(d))
}

package vision

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"ProjectGaze/internal/entity"
	"ProjectGaze/pkg/camera"
)

var ErrEmptyFrame = errors.New("cannot detect on an empty frame")

// IEngine locates faces and, within each face, eyes in a single frame.
type IEngine interface {
	Detect(frame *camera.Frame) (entity.Detection, error)
	Loaded() bool
	Close() error
}

type engine struct {
	// Haar cascade detection mutates internal OpenCV buffers, so
	// concurrent Detect calls must not share the classifiers.
	mu          sync.Mutex
	faceCascade gocv.CascadeClassifier
	eyeCascade  gocv.CascadeClassifier
	loaded      bool
}

// NewEngine loads both cascade classifiers from disk. A missing or
// corrupt cascade file is a fatal configuration error: the engine
// refuses to construct rather than degrade silently.
func NewEngine(faceCascadePath, eyeCascadePath string) (IEngine, error) {
	faceCascade := gocv.NewCascadeClassifier()
	if !faceCascade.Load(faceCascadePath) {
		faceCascade.Close()
		return nil, fmt.Errorf("failed to load face cascade classifier from %q", faceCascadePath)
	}

	eyeCascade := gocv.NewCascadeClassifier()
	if !eyeCascade.Load(eyeCascadePath) {
		faceCascade.Close()
		eyeCascade.Close()
		return nil, fmt.Errorf("failed to load eye cascade classifier from %q", eyeCascadePath)
	}

	return &engine{
		faceCascade: faceCascade,
		eyeCascade:  eyeCascade,
		loaded:      true,
	}, nil
}

func (e *engine) Detect(frame *camera.Frame) (entity.Detection, error) {
	if frame == nil || frame.Mat.Empty() {
		return entity.Detection{}, ErrEmptyFrame
	}

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(frame.Mat, &gray, gocv.ColorBGRToGray)

	e.mu.Lock()
	defer e.mu.Unlock()

	faceRects := e.faceCascade.DetectMultiScaleWithParams(
		gray, 1.1, 5, 0, image.Pt(30, 30), image.Pt(0, 0),
	)

	detection := entity.Detection{}
	for _, faceRect := range faceRects {
		face := entity.FaceDetection{Bounds: toRect(faceRect)}

		// Eyes are searched only inside the face region, never on the
		// full frame, which bounds cost and kills background false
		// positives.
		roi := gray.Region(faceRect)
		eyeRects := e.eyeCascade.DetectMultiScaleWithParams(
			roi, 1.1, 5, 0, image.Pt(20, 20), image.Pt(0, 0),
		)
		roi.Close()

		for _, eyeRect := range eyeRects {
			face.Eyes = append(face.Eyes, entity.Rect{
				X: faceRect.Min.X + eyeRect.Min.X,
				Y: faceRect.Min.Y + eyeRect.Min.Y,
				W: eyeRect.Dx(),
				H: eyeRect.Dy(),
			})
		}

		detection.Faces = append(detection.Faces, face)
	}

	return detection, nil
}

func (e *engine) Loaded() bool {
	return e.loaded
}

func (e *engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.loaded {
		return nil
	}
	e.loaded = false

	if err := e.faceCascade.Close(); err != nil {
		return err
	}
	return e.eyeCascade.Close()
}

func toRect(r image.Rectangle) entity.Rect {
	return entity.Rect{X: r.Min.X, Y: r.Min.Y, W: r.Dx(), H: r.Dy()}
}

package entity

// Rect is an axis-aligned bounding box in frame coordinates.
type Rect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// FaceDetection is one detected face and the eye rectangles found
// inside its bounds. Eye coordinates are absolute frame coordinates.
type FaceDetection struct {
	Bounds Rect   `json:"bounds"`
	Eyes   []Rect `json:"eyes,omitempty"`
}

// Detection holds everything found in a single frame.
type Detection struct {
	Faces []FaceDetection `json:"faces,omitempty"`
}

// EyeCount returns the total number of eyes across all detected faces.
func (d Detection) EyeCount() int {
	count := 0
	for _, face := range d.Faces {
		count += len(face.Eyes)
	}
	return count
}

// GazeVerdict is the per-frame attention signal streamed to clients.
type GazeVerdict struct {
	FaceDetected bool    `json:"face_detected"`
	EyeCount     int     `json:"eye_count"`
	LookingAway  bool    `json:"looking_away"`
	Confidence   float64 `json:"confidence"`
}

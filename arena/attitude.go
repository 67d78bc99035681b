package arena

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"
)

// ErrNoAttitude is returned when no usable attitude reading is available
var ErrNoAttitude = errors.New("no attitude available")

// Attitude is a roll/pitch/yaw reading in radians. Yaw is carried but not
// used for rectification.
type Attitude struct {
	Roll      float64   `json:"roll"`
	Pitch     float64   `json:"pitch"`
	Yaw       float64   `json:"yaw"`
	Timestamp time.Time `json:"timestamp"`
}

// Level returns the zero attitude
func Level() Attitude {
	return Attitude{}
}

// AttitudeSource supplies the most recent attitude
type AttitudeSource interface {
	Current() (Attitude, error)
}

// AttitudeTracker keeps the latest reading received from the estimator
type AttitudeTracker struct {
	mu     sync.RWMutex
	latest Attitude
	valid  bool
	maxAge time.Duration
	now    func() time.Time
}

// NewAttitudeTracker creates a tracker. Readings older than maxAge are
// rejected; zero disables the age check.
func NewAttitudeTracker(maxAge time.Duration) *AttitudeTracker {
	return &AttitudeTracker{maxAge: maxAge, now: time.Now}
}

// Update stores a new reading. A zero timestamp is replaced by now.
func (t *AttitudeTracker) Update(a Attitude) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if a.Timestamp.IsZero() {
		a.Timestamp = t.now()
	}
	t.latest = a
	t.valid = true
}

// Current returns the latest reading or ErrNoAttitude
func (t *AttitudeTracker) Current() (Attitude, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.valid {
		return Attitude{}, ErrNoAttitude
	}
	if t.maxAge > 0 {
		if age := t.now().Sub(t.latest.Timestamp); age > t.maxAge {
			return Attitude{}, fmt.Errorf("%w: last reading is %v old", ErrNoAttitude, age.Round(time.Millisecond))
		}
	}
	return t.latest, nil
}

// Quaternion is an orientation as reported by an IMU
type Quaternion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// RPY extracts roll, pitch and yaw (ZYX convention)
func (q Quaternion) RPY() (roll, pitch, yaw float64) {
	n := math.Sqrt(q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W)
	if n == 0 {
		return 0, 0, 0
	}
	x, y, z, w := q.X/n, q.Y/n, q.Z/n, q.W/n

	roll = math.Atan2(2*(w*x+y*z), 1-2*(x*x+y*y))

	sinp := 2 * (w*y - z*x)
	if sinp > 1 {
		sinp = 1
	} else if sinp < -1 {
		sinp = -1
	}
	pitch = math.Asin(sinp)

	yaw = math.Atan2(2*(w*z+x*y), 1-2*(y*y+z*z))
	return roll, pitch, yaw
}

// attitudePayload accepts either explicit angles or an IMU quaternion
type attitudePayload struct {
	Roll        *float64    `json:"roll"`
	Pitch       *float64    `json:"pitch"`
	Yaw         *float64    `json:"yaw"`
	Timestamp   *float64    `json:"timestamp"` // unix seconds
	Orientation *Quaternion `json:"orientation"`
}

// ParseAttitude decodes an attitude message. Angles are radians.
func ParseAttitude(payload []byte) (Attitude, error) {
	var p attitudePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return Attitude{}, fmt.Errorf("parsing attitude JSON: %w", err)
	}

	var a Attitude
	switch {
	case p.Orientation != nil:
		a.Roll, a.Pitch, a.Yaw = p.Orientation.RPY()
	case p.Roll != nil && p.Pitch != nil:
		a.Roll, a.Pitch = *p.Roll, *p.Pitch
		if p.Yaw != nil {
			a.Yaw = *p.Yaw
		}
	default:
		return Attitude{}, fmt.Errorf("attitude payload needs roll and pitch or an orientation quaternion")
	}

	if p.Timestamp != nil {
		sec, frac := math.Modf(*p.Timestamp)
		a.Timestamp = time.Unix(int64(sec), int64(frac*1e9))
	}
	return a, nil
}

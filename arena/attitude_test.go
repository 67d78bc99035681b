package arena

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttitudeTracker_Empty(t *testing.T) {
	tr := NewAttitudeTracker(time.Second)
	_, err := tr.Current()
	assert.ErrorIs(t, err, ErrNoAttitude)
}

func TestAttitudeTracker_UpdateAndAge(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tr := NewAttitudeTracker(500 * time.Millisecond)
	tr.now = func() time.Time { return now }

	tr.Update(Attitude{Roll: 0.1, Pitch: -0.2})
	got, err := tr.Current()
	require.NoError(t, err)
	assert.Equal(t, 0.1, got.Roll)
	assert.Equal(t, -0.2, got.Pitch)
	assert.Equal(t, now, got.Timestamp, "zero timestamp replaced by now")

	now = now.Add(time.Second)
	_, err = tr.Current()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoAttitude))
	assert.Contains(t, err.Error(), "1s old")
}

func TestAttitudeTracker_NoMaxAge(t *testing.T) {
	tr := NewAttitudeTracker(0)
	tr.Update(Attitude{Roll: 0.3, Timestamp: time.Unix(0, 0)})
	got, err := tr.Current()
	require.NoError(t, err)
	assert.Equal(t, 0.3, got.Roll)
}

func TestQuaternion_RPY(t *testing.T) {
	tests := []struct {
		name             string
		q                Quaternion
		roll, pitch, yaw float64
	}{
		{"identity", Quaternion{W: 1}, 0, 0, 0},
		{"roll", Quaternion{X: math.Sin(0.15), W: math.Cos(0.15)}, 0.3, 0, 0},
		{"pitch", Quaternion{Y: math.Sin(-0.1), W: math.Cos(-0.1)}, 0, -0.2, 0},
		{"yaw", Quaternion{Z: math.Sin(0.5), W: math.Cos(0.5)}, 0, 0, 1.0},
		{"unnormalized", Quaternion{X: 2 * math.Sin(0.15), W: 2 * math.Cos(0.15)}, 0.3, 0, 0},
		{"zero", Quaternion{}, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, p, y := tt.q.RPY()
			assert.InDelta(t, tt.roll, r, 1e-12)
			assert.InDelta(t, tt.pitch, p, 1e-12)
			assert.InDelta(t, tt.yaw, y, 1e-12)
		})
	}
}

func TestQuaternion_RPY_GimbalClamp(t *testing.T) {
	s := math.Sqrt(0.5)
	_, p, _ := Quaternion{Y: s * 1.0000001, W: s}.RPY()
	assert.False(t, math.IsNaN(p))
	assert.InDelta(t, math.Pi/2, p, 1e-3)
}

func TestParseAttitude(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    Attitude
		wantErr string
	}{
		{
			name:    "angles",
			payload: `{"roll":0.1,"pitch":-0.05,"yaw":1.5}`,
			want:    Attitude{Roll: 0.1, Pitch: -0.05, Yaw: 1.5},
		},
		{
			name:    "angles with timestamp",
			payload: `{"roll":0,"pitch":0.2,"timestamp":1700000000.5}`,
			want:    Attitude{Pitch: 0.2, Timestamp: time.Unix(1700000000, 500000000)},
		},
		{
			name:    "quaternion",
			payload: `{"orientation":{"x":0,"y":0,"z":0,"w":1}}`,
			want:    Attitude{},
		},
		{
			name:    "missing pitch",
			payload: `{"roll":0.1}`,
			wantErr: "needs roll and pitch",
		},
		{
			name:    "not json",
			payload: `roll=1`,
			wantErr: "parsing attitude JSON",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAttitude([]byte(tt.payload))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want.Roll, got.Roll, 1e-12)
			assert.InDelta(t, tt.want.Pitch, got.Pitch, 1e-12)
			assert.InDelta(t, tt.want.Yaw, got.Yaw, 1e-12)
			assert.True(t, tt.want.Timestamp.Equal(got.Timestamp), "timestamp %v, want %v", got.Timestamp, tt.want.Timestamp)
		})
	}
}

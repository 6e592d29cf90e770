// Package squiggle turns a raw timestamped gesture trace into scalar
// kinematic features.
//
// A squiggle is the freehand stroke a user draws over an image: an ordered
// sequence of normalized (x, y) samples with millisecond timestamps. Extract
// reduces it to path length, bounding box area and speed statistics, which
// downstream prompt compilation maps onto rhythmic character.
//
// Extraction is pure and deterministic: identical input always yields
// identical features, so compiled prompts stay stable across reruns.
package squiggle

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// ErrInsufficientPoints is returned when fewer than 2 points are supplied.
var ErrInsufficientPoints = errors.New("squiggle: need at least 2 points")

// Point is one sample of the gesture trace. X and Y are normalized to the
// image ([0,1]); T is milliseconds since the gesture started.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	T int64   `json:"t"`
}

// Features are the kinematic scalars derived from a trace. All float fields
// are rounded to 6 decimal places.
type Features struct {
	TotalLength     float64 `json:"total_length"`
	BoundingBoxArea float64 `json:"bounding_box_area"`
	AverageSpeed    float64 `json:"average_speed"`
	SpeedVariance   float64 `json:"speed_variance"`
	PointCount      int     `json:"point_count"`
}

// Extract computes Features from an ordered trace. Order is temporal and
// significant. Pairs with dt <= 0 still contribute path length but are
// excluded from the speed statistics (avoids divide-by-zero without
// discarding geometry).
func Extract(points []Point) (Features, error) {
	if len(points) < 2 {
		return Features{}, ErrInsufficientPoints
	}

	var totalLength float64
	var speeds []float64
	for i := 1; i < len(points); i++ {
		dx := points[i].X - points[i-1].X
		dy := points[i].Y - points[i-1].Y
		dist := math.Sqrt(dx*dx + dy*dy)
		totalLength += dist

		if dt := points[i].T - points[i-1].T; dt > 0 {
			speeds = append(speeds, dist/float64(dt))
		}
	}

	minX, maxX := points[0].X, points[0].X
	minY, maxY := points[0].Y, points[0].Y
	for _, p := range points[1:] {
		minX = math.Min(minX, p.X)
		maxX = math.Max(maxX, p.X)
		minY = math.Min(minY, p.Y)
		maxY = math.Max(maxY, p.Y)
	}

	var avg, variance float64
	if len(speeds) > 0 {
		for _, s := range speeds {
			avg += s
		}
		avg /= float64(len(speeds))
		for _, s := range speeds {
			d := s - avg
			variance += d * d
		}
		variance /= float64(len(speeds))
	}

	return Features{
		TotalLength:     round6(totalLength),
		BoundingBoxArea: round6((maxX - minX) * (maxY - minY)),
		AverageSpeed:    round6(avg),
		SpeedVariance:   round6(variance),
		PointCount:      len(points),
	}, nil
}

// ParsePoints decodes a JSON point array from the API boundary and validates
// coordinate ranges. It enforces the same >=2 minimum as Extract so callers
// can reject bad input before any pipeline work starts.
func ParsePoints(raw []byte) ([]Point, error) {
	var points []Point
	if err := json.Unmarshal(raw, &points); err != nil {
		return nil, fmt.Errorf("squiggle: parse points: %w", err)
	}
	if len(points) < 2 {
		return nil, ErrInsufficientPoints
	}
	for i, p := range points {
		if p.X < 0 || p.X > 1 || p.Y < 0 || p.Y > 1 {
			return nil, fmt.Errorf("squiggle: point %d out of range: (%v, %v)", i, p.X, p.Y)
		}
	}
	return points, nil
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

// Package servo maps a requested water volume to the pour angle of the
// bucket servo. The map is linear; a calibrated curve replaces it once the
// hardware team has measured angle/time against millilitres.
package servo

import "math"

// BucketSpec describes the pour bucket mounted on the servo.
type BucketSpec struct {
	DiameterCm float64
	HeightCm   float64
}

// CapacityMl is the cylindrical volume of the bucket.
func (b BucketSpec) CapacityMl() float64 {
	r := b.DiameterCm / 2
	return math.Pi * r * r * b.HeightCm
}

// ServoSpec is the servo's travel range: MinAngleDeg holds the bucket
// upright, MaxAngleDeg tips it fully.
type ServoSpec struct {
	MinAngleDeg float64
	MaxAngleDeg float64
}

// Mapping is the resolved command for one water request.
type Mapping struct {
	RequestedWaterMl float64 `json:"requested_water_ml"`
	ClampedWaterMl   float64 `json:"clamped_water_ml"`
	BucketCapacityMl float64 `json:"bucket_capacity_ml"`
	FillFraction     float64 `json:"fill_fraction"`
	ServoAngleDeg    float64 `json:"servo_angle_deg"`
}

// WaterToAngle clamps waterMl to the bucket capacity and maps the fill
// fraction linearly onto the servo's travel.
func WaterToAngle(waterMl float64, bucket BucketSpec, servo ServoSpec) Mapping {
	cap := bucket.CapacityMl()
	clamped := clamp(waterMl, 0, cap)

	frac := 0.0
	if cap > 0 {
		frac = clamped / cap
	}

	return Mapping{
		RequestedWaterMl: waterMl,
		ClampedWaterMl:   clamped,
		BucketCapacityMl: cap,
		FillFraction:     frac,
		ServoAngleDeg:    servo.MinAngleDeg + frac*(servo.MaxAngleDeg-servo.MinAngleDeg),
	}
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}

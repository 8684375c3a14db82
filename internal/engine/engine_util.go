package engine

import "math"

type Vec3 struct {
	X, Y, Z float64
}

func (v Vec3) Add(o Vec3) Vec3      { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3      { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vec3) Scale(f float64) Vec3 { return Vec3{v.X * f, v.Y * f, v.Z * f} }
func (v Vec3) Dot(o Vec3) float64   { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }
func (v Vec3) Len() float64         { return math.Sqrt(v.Dot(v)) }

func (v Vec3) Normalize() Vec3 {
	l := v.Len()
	if l == 0 {
		return Vec3{}
	}
	return v.Scale(1 / l)
}

func (v Vec3) Finite() bool {
	for _, f := range [...]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

func Distance(a, b Vec3) float64 {
	return a.Sub(b).Len()
}

// Pose is a position plus a heading. Yaw is in radians around +Y; yaw 0
// faces +Z.
type Pose struct {
	Position Vec3
	Yaw      float64
}

func (p Pose) Forward() Vec3 {
	return Vec3{X: math.Sin(p.Yaw), Z: math.Cos(p.Yaw)}
}

func (p Pose) Finite() bool {
	return p.Position.Finite() && !math.IsNaN(p.Yaw) && !math.IsInf(p.Yaw, 0)
}

// InFront returns the point offset units ahead of p along its heading,
// at the same height.
func InFront(p Pose, offset float64) Vec3 {
	return p.Position.Add(p.Forward().Scale(offset))
}

type Ray struct {
	Origin Vec3
	Dir    Vec3
}

// Closest projects pt onto r. along is the signed distance from the origin to
// the projection and off is how far pt sits from the ray line.
func (r Ray) Closest(pt Vec3) (along, off float64) {
	dir := r.Dir.Normalize()
	rel := pt.Sub(r.Origin)
	along = rel.Dot(dir)
	off = Distance(r.Origin.Add(dir.Scale(along)), pt)
	return along, off
}

package layer

import (
	"cogentcore.org/core/math32"
)

// Camera is a perspective camera looking at Target
type Camera struct {
	Position math32.Vector3
	Target   math32.Vector3
	Up       math32.Vector3
	// vertical field of view in degrees
	FOV float32
}

// DefaultCamera looks down -Z at the origin from 5 units away
func DefaultCamera() Camera {
	return Camera{
		Position: math32.Vec3(0, 0, 5),
		Up:       math32.Vec3(0, 1, 0),
		FOV:      45,
	}
}

// Frame places the camera so that a sphere around box fills the view.
// Calling it twice with the same box gives the same camera.
func (c Camera) Frame(box math32.Box3) Camera {
	radius := box.Size().Length() / 2
	if radius == 0 {
		radius = 1
	}
	distance := radius / math32.Sin(math32.DegToRad(c.FOV)/2)

	center := box.Center()
	return Camera{
		Position: center.Add(math32.Vec3(0, 0, distance)),
		Target:   center,
		Up:       math32.Vec3(0, 1, 0),
		FOV:      c.FOV,
	}
}

// Distance is the distance between the camera and its target
func (c Camera) Distance() float32 {
	return c.Position.Sub(c.Target).Length()
}

// Orbit rotates the camera around its target by yaw and pitch in degrees
func (c Camera) Orbit(yaw, pitch float32) Camera {
	offset := c.Position.Sub(c.Target)
	r := offset.Length()
	if r == 0 {
		return c
	}

	theta := math32.Atan2(offset.X, offset.Z) + math32.DegToRad(yaw)
	phi := math32.Asin(math32.Clamp(offset.Y/r, -1, 1)) + math32.DegToRad(pitch)
	// stop short of the poles so the up vector stays valid
	limit := math32.DegToRad(89)
	phi = math32.Clamp(phi, -limit, limit)

	c.Position = c.Target.Add(math32.Vec3(
		r*math32.Cos(phi)*math32.Sin(theta),
		r*math32.Sin(phi),
		r*math32.Cos(phi)*math32.Cos(theta),
	))
	return c
}

// Pan moves camera and target along the view plane, in units of the target distance
func (c Camera) Pan(dx, dy float32) Camera {
	forward := c.Target.Sub(c.Position).Normal()
	right := forward.Cross(c.Up).Normal()
	up := right.Cross(forward).Normal()

	d := c.Distance()
	shift := right.MulScalar(dx * d).Add(up.MulScalar(dy * d))
	c.Position = c.Position.Add(shift)
	c.Target = c.Target.Add(shift)
	return c
}

// Zoom scales the distance to the target. Factors below 1 move closer.
func (c Camera) Zoom(factor float32) Camera {
	if factor <= 0 {
		return c
	}
	c.Position = c.Target.Add(c.Position.Sub(c.Target).MulScalar(factor))
	return c
}

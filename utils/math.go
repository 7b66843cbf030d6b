package utils

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// result in radians
func QuatToEuler(q mgl32.Quat) (e mgl32.Vec3) {
	sinr_cosp := float64(2 * (q.W*q.X() + q.Y()*q.Z()))
	cosr_cosp := float64(1 - 2*(q.X()*q.X()+q.Y()*q.Y()))

	e[0] = float32(math.Atan2(sinr_cosp, cosr_cosp))

	sinp := float64(2 * (q.W*q.Y() - q.Z()*q.X()))
	if math.Abs(sinp) >= 1 {
		e[1] = math.Pi / 2
		if sinp < 0 {
			e[1] *= -1
		}
	} else {
		e[1] = float32(math.Asin(sinp))
	}

	siny_cosp := float64(2 * (q.W*q.Z() + q.X()*q.Y()))
	cosy_cosp := float64(1 - 2*(q.Y()*q.Y()+q.Z()*q.Z()))
	e[2] = float32(math.Atan2(siny_cosp, cosy_cosp))

	return e
}

func RadiansToDegreesV3(v mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{mgl32.RadToDeg(v[0]), mgl32.RadToDeg(v[1]), mgl32.RadToDeg(v[2])}
}

// QuatToEulerDegrees is what the dump tools print for rotations.
func QuatToEulerDegrees(q mgl32.Quat) mgl32.Vec3 {
	return RadiansToDegreesV3(QuatToEuler(q))
}

// QuatDropW returns x, y, z of q after flipping it to the hemisphere with non negative w.
func QuatDropW(q mgl32.Quat) mgl32.Vec3 {
	if q.W < 0 {
		return q.V.Mul(-1)
	}
	return q.V
}

// QuatFromPositiveW rebuilds a unit quaternion whose w was dropped.
func QuatFromPositiveW(v mgl32.Vec3) mgl32.Quat {
	w := float32(math.Sqrt(math.Abs(float64(1 - v.Dot(v)))))
	return mgl32.Quat{W: w, V: v}
}

// Package pose holds the sinks decoders write bone transforms into.
package pose

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Writer receives decoded transforms, once per bone and pass, in increasing bone order.
type Writer interface {
	WriteBoneRotation(boneIndex uint32, rotation mgl32.Quat)
	WriteBoneTranslation(boneIndex uint32, translation mgl32.Vec3)
}

// ScaleWriter is implemented by sinks that also want scale tracks.
type ScaleWriter interface {
	Writer
	WriteBoneScale(boneIndex uint32, scale mgl32.Vec3)
}

type Transform struct {
	Rotation    mgl32.Quat `json:"rotation" yaml:"rotation"`
	Translation mgl32.Vec3 `json:"translation" yaml:"translation"`
	Scale       mgl32.Vec3 `json:"scale" yaml:"scale"`
}

func IdentityTransform() Transform {
	return Transform{
		Rotation: mgl32.QuatIdent(),
		Scale:    mgl32.Vec3{1, 1, 1},
	}
}

// Pose is a bone transform buffer. It is a ScaleWriter.
type Pose struct {
	Bones []Transform `json:"bones" yaml:"bones"`
}

func New(numBones uint32) *Pose {
	p := &Pose{Bones: make([]Transform, numBones)}
	p.SetIdentity()
	return p
}

func (p *Pose) SetIdentity() {
	for i := range p.Bones {
		p.Bones[i] = IdentityTransform()
	}
}

func (p *Pose) WriteBoneRotation(boneIndex uint32, rotation mgl32.Quat) {
	p.Bones[boneIndex].Rotation = rotation
}

func (p *Pose) WriteBoneTranslation(boneIndex uint32, translation mgl32.Vec3) {
	p.Bones[boneIndex].Translation = translation
}

func (p *Pose) WriteBoneScale(boneIndex uint32, scale mgl32.Vec3) {
	p.Bones[boneIndex].Scale = scale
}

// Matrix returns the local transform of a bone as scale, then rotation, then translation.
func (t *Transform) Matrix() mgl32.Mat4 {
	return mgl32.Translate3D(t.Translation[0], t.Translation[1], t.Translation[2]).
		Mul4(t.Rotation.Mat4()).
		Mul4(mgl32.Scale3D(t.Scale[0], t.Scale[1], t.Scale[2]))
}

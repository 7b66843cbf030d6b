package gltfutils

import (
	"fmt"
	"io"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/mogaika/anim_decompressor/pose"
)

func NewDocument() *gltf.Document {
	return gltf.NewDocument()
}

func ExportBinary(w io.Writer, doc *gltf.Document) error {
	encoder := gltf.NewEncoder(w)
	encoder.AsBinary = true
	return encoder.Encode(doc)
}

// AddSkeleton appends one node per bone, posed with p, and puts them into the default scene.
// There is no hierarchy in a clip, so the nodes stay flat. Returns the index of the first node.
func AddSkeleton(doc *gltf.Document, p *pose.Pose) uint32 {
	first := uint32(len(doc.Nodes))
	for iBone, bone := range p.Bones {
		doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, uint32(len(doc.Nodes)))
		doc.Nodes = append(doc.Nodes, &gltf.Node{
			Name:        fmt.Sprintf("bone_%d", iBone),
			Translation: bone.Translation,
			Rotation:    bone.Rotation.V.Vec4(bone.Rotation.W),
			Scale:       bone.Scale,
		})
	}
	return first
}

// AddAnimation writes sampled poses as a linear glTF animation targeting the nodes
// starting at firstNode. times and poses are parallel, every pose has the same bone count.
func AddAnimation(doc *gltf.Document, name string, firstNode uint32, times []float32, poses []*pose.Pose) *gltf.Animation {
	anim := &gltf.Animation{Name: name}
	if len(poses) == 0 {
		doc.Animations = append(doc.Animations, anim)
		return anim
	}

	input := modeler.WriteAccessor(doc, gltf.TargetNone, times)
	doc.Accessors[input].Min = []float32{times[0]}
	doc.Accessors[input].Max = []float32{times[len(times)-1]}

	addChannel := func(node uint32, path gltf.TRSProperty, data interface{}) {
		output := modeler.WriteAccessor(doc, gltf.TargetNone, data)
		anim.Samplers = append(anim.Samplers, &gltf.AnimationSampler{
			Input:         gltf.Index(input),
			Output:        gltf.Index(output),
			Interpolation: gltf.InterpolationLinear,
		})
		anim.Channels = append(anim.Channels, &gltf.Channel{
			Sampler: gltf.Index(uint32(len(anim.Samplers) - 1)),
			Target: gltf.ChannelTarget{
				Node: gltf.Index(node),
				Path: path,
			},
		})
	}

	for iBone := range poses[0].Bones {
		rotations := make([][4]float32, len(poses))
		translations := make([][3]float32, len(poses))
		scales := make([][3]float32, len(poses))
		for iPose, p := range poses {
			bone := &p.Bones[iBone]
			rotations[iPose] = bone.Rotation.V.Vec4(bone.Rotation.W)
			translations[iPose] = bone.Translation
			scales[iPose] = bone.Scale
		}

		node := firstNode + uint32(iBone)
		addChannel(node, gltf.TRSRotation, rotations)
		addChannel(node, gltf.TRSTranslation, translations)
		addChannel(node, gltf.TRSScale, scales)
	}

	doc.Animations = append(doc.Animations, anim)
	return anim
}

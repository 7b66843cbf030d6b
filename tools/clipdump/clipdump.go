package main

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/mogaika/anim_decompressor/clip"
	"github.com/mogaika/anim_decompressor/config"
	"github.com/mogaika/anim_decompressor/internal/clipbuilder"
	"github.com/mogaika/anim_decompressor/sampler"
	"github.com/mogaika/anim_decompressor/utils"
	"github.com/mogaika/anim_decompressor/utils/gltfutils"
	"github.com/mogaika/anim_decompressor/web"
)

type options struct {
	configPath string
	settings   string
	fps        float32
	format     string
	spew       bool
	output     string
	cfg        config.ToolConfig
	logger     *zap.Logger
}

func readClip(path string) (*clip.Clip, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Cannot read %q", path)
	}
	return clip.New(data)
}

func (o *options) settingsName() string {
	if o.settings != "" {
		return o.settings
	}
	return o.cfg.Settings
}

func (o *options) framesPerSecond() float32 {
	if o.fps > 0 {
		return o.fps
	}
	return o.cfg.FramesPerSecond
}

func printEncoded(format string, v interface{}) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(os.Stdout)
		defer enc.Close()
		return enc.Encode(v)
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	return errors.Errorf("Unknown format %q", format)
}

func (o *options) runInfo(cmd *cobra.Command, args []string) error {
	c, err := readClip(args[0])
	if err != nil {
		return err
	}
	info, err := sampler.Describe(c)
	if err != nil {
		return err
	}
	if o.format != "text" {
		return printEncoded(o.format, info)
	}

	fmt.Printf("%s: %s v%d, %d bones, %d samples at %v Hz (%vs)\n",
		args[0], info.Algorithm, info.Version, info.NumBones, info.NumSamples, info.SampleRate, info.Duration)
	fmt.Printf("formats: rotation %s, translation %s", info.RotationFormat, info.TranslationFormat)
	if info.HasScale {
		fmt.Printf(", scale %s", info.ScaleFormat)
	}
	fmt.Printf("\nsegments: %d, database: %v\n", info.NumSegments, info.HasDatabase)
	fmt.Print(c.Layout().StringTree())
	for _, o := range info.Overlaps {
		fmt.Println("warning:", o)
	}
	if o.spew {
		if c.Algorithm() == clip.AlgorithmUniformlySampled {
			fmt.Print(utils.SDump(c.UniformHeader()))
		} else {
			fmt.Print(utils.SDump(c.FullPrecisionHeader()))
		}
	}
	return nil
}

func (o *options) runSample(cmd *cobra.Command, args []string) error {
	c, err := readClip(args[0])
	if err != nil {
		return err
	}
	smp, err := sampler.New(c, o.settingsName(), nil)
	if err != nil {
		return err
	}

	times, poses, err := smp.SampleAll(o.framesPerSecond())
	if err != nil {
		return err
	}
	if o.format != "text" {
		frames := make([]web.PoseFrame, len(times))
		for i := range times {
			frames[i] = web.PoseFrame{Time: times[i], Pose: poses[i]}
		}
		return printEncoded(o.format, frames)
	}

	for i, t := range times {
		fmt.Printf("t=%.4f\n", t)
		for iBone, bone := range poses[i].Bones {
			fmt.Printf("  %3d rot %v (euler %v) pos %v scale %v\n", iBone,
				bone.Rotation, utils.QuatToEulerDegrees(bone.Rotation), bone.Translation, bone.Scale)
		}
	}
	return nil
}

func (o *options) runGltf(cmd *cobra.Command, args []string) error {
	c, err := readClip(args[0])
	if err != nil {
		return err
	}
	smp, err := sampler.New(c, o.settingsName(), nil)
	if err != nil {
		return err
	}
	times, poses, err := smp.SampleAll(o.framesPerSecond())
	if err != nil {
		return err
	}

	name := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
	doc := gltfutils.NewDocument()
	first := gltfutils.AddSkeleton(doc, poses[0])
	gltfutils.AddAnimation(doc, name, first, times, poses)

	output := o.output
	if output == "" {
		output = name + ".glb"
	}
	f, err := os.Create(output)
	if err != nil {
		return errors.Wrapf(err, "Cannot create %q", output)
	}
	defer f.Close()
	if err := gltfutils.ExportBinary(f, doc); err != nil {
		return errors.Wrapf(err, "Cannot export %q", output)
	}
	o.logger.Info("Exported", zap.String("output", output), zap.Int("frames", len(times)))
	return nil
}

// demoDescription is a small swinging arm, enough to try the server and the exporters.
func demoDescription(name string) clipbuilder.Description {
	const numSamples = 31
	root := clipbuilder.IdentityBone(numSamples)
	arm := clipbuilder.IdentityBone(numSamples)
	hand := clipbuilder.ConstantBone(numSamples, mgl32.QuatIdent(), mgl32.Vec3{0, 0.5, 0}, mgl32.Vec3{1, 1, 1})
	for i := 0; i < numSamples; i++ {
		phase := float64(i) / (numSamples - 1) * 2 * math.Pi
		root.Translations[i] = mgl32.Vec3{0, 0, float32(i) * 0.05}
		arm.Rotations[i] = mgl32.QuatRotate(float32(0.8*math.Sin(phase)), mgl32.Vec3{1, 0, 0})
		arm.Scales[i] = mgl32.Vec3{1, float32(1 + 0.1*math.Sin(phase)), 1}
	}
	return clipbuilder.Description{
		Name:       name,
		SampleRate: 30,
		NumSamples: numSamples,
		Bones:      []clipbuilder.BoneSamples{root, arm, hand},
	}
}

func (o *options) runBuildDemo(cmd *cobra.Command, args []string) error {
	dir := args[0]
	d := demoDescription("demo_full")
	if err := web.SaveClipFiles(dir, d.Name, clipbuilder.FullPrecision(d), nil); err != nil {
		return err
	}

	d = demoDescription("demo_variable")
	variable := clipbuilder.Uniform(d, clipbuilder.UniformSettings{
		RotationFormat:    clip.QuatfDropWVariable,
		TranslationFormat: clip.Vector3fVariable,
		ScaleFormat:       clip.Vector3fVariable,
		RangeReduction:    clip.RangeReductionRotations | clip.RangeReductionTranslations | clip.RangeReductionScales,
		HasScale:          true,
		BitRates:          []uint8{10, 14, 16},
		SegmentSize:       16,
	})
	if err := web.SaveClipFiles(dir, d.Name, variable.Buffer, nil); err != nil {
		return err
	}

	d = demoDescription("demo_database")
	tiered := clipbuilder.Uniform(d, clipbuilder.UniformSettings{
		HasScale:    true,
		SegmentSize: 8,
		Database:    true,
	})
	if err := web.SaveClipFiles(dir, d.Name, tiered.Buffer, tiered.Tiers[:]); err != nil {
		return err
	}
	o.logger.Info("Demo clips written", zap.String("dir", dir))
	return nil
}

func main() {
	o := &options{}

	root := &cobra.Command{
		Use:           "clipdump",
		Short:         "Inspect and convert compressed animation clips",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadToolConfig(o.configPath)
			if err != nil {
				return err
			}
			if err := cfg.Apply(); err != nil {
				return err
			}
			o.cfg = cfg
			if cfg.Debug {
				o.logger, err = zap.NewDevelopment()
			} else {
				o.logger, err = zap.NewProduction()
			}
			if err != nil {
				return err
			}
			zap.ReplaceGlobals(o.logger)
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&o.configPath, "config", "c", "", "yaml config file")
	root.PersistentFlags().StringVar(&o.format, "format", "text", "output format: text, yaml or json")

	info := &cobra.Command{
		Use:   "info <clip>",
		Short: "Print the header and the layout of a clip",
		Args:  cobra.ExactArgs(1),
		RunE:  o.runInfo,
	}
	info.Flags().BoolVar(&o.spew, "spew", false, "dump the raw header")

	sample := &cobra.Command{
		Use:   "sample <clip>",
		Short: "Print the poses of a clip at a fixed rate",
		Args:  cobra.ExactArgs(1),
		RunE:  o.runSample,
	}
	gltf := &cobra.Command{
		Use:   "gltf <clip>",
		Short: "Export a clip as a glb animation",
		Args:  cobra.ExactArgs(1),
		RunE:  o.runGltf,
	}
	gltf.Flags().StringVarP(&o.output, "output", "o", "", "output file, defaults to <clip name>.glb")
	for _, cmd := range []*cobra.Command{sample, gltf} {
		cmd.Flags().StringVar(&o.settings, "settings",
			"", "decoder settings: "+strings.Join(sampler.SettingsNames(), ", "))
		cmd.Flags().Float32Var(&o.fps, "fps", 0, "sampling rate, defaults to the config one")
	}

	buildDemo := &cobra.Command{
		Use:   "build-demo <dir>",
		Short: "Write a few demo clips into a directory",
		Args:  cobra.ExactArgs(1),
		RunE:  o.runBuildDemo,
	}

	encodings := &cobra.Command{
		Use:   "encodings",
		Short: "List the charmaps accepted by the encoding config option",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			current := config.GetEncoding().String()
			for _, name := range config.ListEncodings() {
				if name == current {
					fmt.Println(name, "(current)")
				} else {
					fmt.Println(name)
				}
			}
		},
	}

	root.AddCommand(info, sample, gltf, buildDemo, encodings)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if o.logger != nil {
		o.logger.Sync()
	}
}

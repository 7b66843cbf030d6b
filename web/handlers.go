package web

import (
	"bytes"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/mogaika/anim_decompressor/config"
	"github.com/mogaika/anim_decompressor/database"
	"github.com/mogaika/anim_decompressor/decompression"
	"github.com/mogaika/anim_decompressor/pose"
	"github.com/mogaika/anim_decompressor/sampler"
	"github.com/mogaika/anim_decompressor/utils/gltfutils"
	"github.com/mogaika/anim_decompressor/webutils"
)

type ClipListItem struct {
	Name string            `json:"name" yaml:"name"`
	Info *sampler.ClipInfo `json:"info" yaml:"info"`
}

type ClipDetails struct {
	Name   string            `json:"name" yaml:"name"`
	Info   *sampler.ClipInfo `json:"info" yaml:"info"`
	Tiers  map[uint8]bool    `json:"tiers,omitempty" yaml:"tiers,omitempty"`
	Layout string            `json:"layout" yaml:"layout"`
}

type PoseFrame struct {
	Time float32    `json:"time" yaml:"time"`
	Pose *pose.Pose `json:"pose" yaml:"pose"`
}

// errorCode maps library and decoder errors to http statuses.
func errorCode(err error) int {
	switch errors.Cause(err) {
	case ErrUnknownClip:
		return http.StatusNotFound
	case ErrInvalidName, sampler.ErrUnknownSettings, database.ErrUnknownTier:
		return http.StatusBadRequest
	case sampler.ErrNotResident:
		return http.StatusConflict
	case decompression.ErrUnsupportedFormat:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func writeErr(w http.ResponseWriter, err error) {
	webutils.WriteErrorCode(w, errorCode(err), err)
}

// writeEncoded picks the output format from the first path element of the route.
func writeEncoded(w http.ResponseWriter, r *http.Request, v interface{}) {
	if mux.Vars(r)["format"] == "yaml" {
		webutils.WriteYaml(w, v)
	} else {
		webutils.WriteJson(w, v)
	}
}

func (s *Server) newSampler(r *http.Request, e *Entry) (*sampler.Sampler, error) {
	settings := r.URL.Query().Get("settings")
	if settings == "" {
		settings = s.settings
	}
	return sampler.New(e.Clip, settings, s.lib.Database())
}

func (s *Server) fps(r *http.Request) (float32, error) {
	v := r.URL.Query().Get("fps")
	if v == "" {
		return s.framesPerSecond, nil
	}
	fps, err := strconv.ParseFloat(v, 32)
	if err != nil || !(fps > 0 && fps <= config.MaxFramesPerSecond) {
		return 0, errors.Errorf("Invalid fps %q, expected (0, %d]", v, config.MaxFramesPerSecond)
	}
	return float32(fps), nil
}

func (s *Server) HandlerClips(w http.ResponseWriter, r *http.Request) {
	names := s.lib.Names()
	items := make([]ClipListItem, 0, len(names))
	for _, name := range names {
		if e, err := s.lib.Get(name); err == nil {
			items = append(items, ClipListItem{Name: name, Info: e.Info})
		}
	}
	writeEncoded(w, r, items)
}

func (s *Server) HandlerClip(w http.ResponseWriter, r *http.Request) {
	e, err := s.lib.Get(mux.Vars(r)["name"])
	if err != nil {
		writeErr(w, err)
		return
	}
	writeEncoded(w, r, &ClipDetails{
		Name:   e.Name,
		Info:   e.Info,
		Tiers:  s.lib.TierStatus(e),
		Layout: e.Clip.Layout().StringTree(),
	})
}

func (s *Server) HandlerClipPose(w http.ResponseWriter, r *http.Request) {
	e, err := s.lib.Get(mux.Vars(r)["name"])
	if err != nil {
		writeErr(w, err)
		return
	}
	t, err := strconv.ParseFloat(r.URL.Query().Get("t"), 32)
	if err != nil {
		webutils.WriteErrorCode(w, http.StatusBadRequest, errors.Wrap(err, "Invalid time"))
		return
	}
	smp, err := s.newSampler(r, e)
	if err != nil {
		writeErr(w, err)
		return
	}
	p, err := smp.Pose(float32(t))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeEncoded(w, r, &PoseFrame{Time: float32(t), Pose: p})
}

func (s *Server) HandlerDumpClip(w http.ResponseWriter, r *http.Request) {
	e, err := s.lib.Get(mux.Vars(r)["name"])
	if err != nil {
		writeErr(w, err)
		return
	}
	webutils.WriteFile(w, bytes.NewReader(e.Clip.Bytes()), e.Name+ClipExtension)
}

func (s *Server) HandlerGltfClip(w http.ResponseWriter, r *http.Request) {
	e, err := s.lib.Get(mux.Vars(r)["name"])
	if err != nil {
		writeErr(w, err)
		return
	}
	fps, err := s.fps(r)
	if err != nil {
		webutils.WriteErrorCode(w, http.StatusBadRequest, err)
		return
	}
	smp, err := s.newSampler(r, e)
	if err != nil {
		writeErr(w, err)
		return
	}
	times, poses, err := smp.SampleAll(fps)
	if err != nil {
		writeErr(w, err)
		return
	}

	doc := gltfutils.NewDocument()
	first := gltfutils.AddSkeleton(doc, poses[0])
	gltfutils.AddAnimation(doc, e.Name, first, times, poses)

	var buf bytes.Buffer
	if err := gltfutils.ExportBinary(&buf, doc); err != nil {
		writeErr(w, errors.Wrap(err, "Cannot export gltf"))
		return
	}
	webutils.WriteFile(w, &buf, e.Name+".glb")
}

// HandlerExportPoses downloads every pose of a playback at fps as a json file of PoseFrame.
func (s *Server) HandlerExportPoses(w http.ResponseWriter, r *http.Request) {
	e, err := s.lib.Get(mux.Vars(r)["name"])
	if err != nil {
		writeErr(w, err)
		return
	}
	fps, err := s.fps(r)
	if err != nil {
		webutils.WriteErrorCode(w, http.StatusBadRequest, err)
		return
	}
	smp, err := s.newSampler(r, e)
	if err != nil {
		writeErr(w, err)
		return
	}
	times, poses, err := smp.SampleAll(fps)
	if err != nil {
		writeErr(w, err)
		return
	}
	frames := make([]PoseFrame, len(times))
	for i := range times {
		frames[i] = PoseFrame{Time: times[i], Pose: poses[i]}
	}
	webutils.WriteJsonFile(w, frames, e.Name+"_poses")
}

func (s *Server) HandlerUploadClip(w http.ResponseWriter, r *http.Request) {
	data, err := webutils.ReadFormFile(r, "data")
	if err != nil {
		webutils.WriteErrorCode(w, http.StatusBadRequest, err)
		return
	}
	e, err := s.lib.Save(mux.Vars(r)["name"], data)
	if err != nil {
		if errorCode(err) == http.StatusInternalServerError {
			webutils.WriteErrorCode(w, http.StatusBadRequest, err)
		} else {
			writeErr(w, err)
		}
		return
	}
	webutils.WriteJson(w, &ClipListItem{Name: e.Name, Info: e.Info})
}

func (s *Server) HandlerActionTier(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	tier, err := strconv.ParseUint(vars["tier"], 10, 8)
	if err != nil {
		webutils.WriteErrorCode(w, http.StatusBadRequest, errors.Errorf("Tier %q is not integer", vars["tier"]))
		return
	}
	if err := s.lib.StreamTier(vars["name"], uint8(tier), vars["action"] == "in"); err != nil {
		writeErr(w, err)
		return
	}
	e, _ := s.lib.Get(vars["name"])
	webutils.WriteJson(w, s.lib.TierStatus(e))
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

func (s *Server) HandlerStatus(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("Status upgrade failed", zap.Error(err))
		return
	}
	s.hub.NewClient(conn)
}

// HandlerPlay streams the clip pose by pose at the requested fps, then closes the connection.
// Every frame is a PoseFrame json message.
func (s *Server) HandlerPlay(w http.ResponseWriter, r *http.Request) {
	e, err := s.lib.Get(mux.Vars(r)["name"])
	if err != nil {
		writeErr(w, err)
		return
	}
	fps, err := s.fps(r)
	if err != nil {
		webutils.WriteErrorCode(w, http.StatusBadRequest, err)
		return
	}
	smp, err := s.newSampler(r, e)
	if err != nil {
		writeErr(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("Play upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	log := s.logger.With(zap.String("clip", e.Name))
	ticker := time.NewTicker(time.Duration(float32(time.Second) / fps))
	defer ticker.Stop()

	p := pose.New(smp.NumBones())
	for i, t := range sampler.SampleTimes(smp.Duration(), fps) {
		if i != 0 {
			select {
			case <-ticker.C:
			case <-r.Context().Done():
				return
			}
		}
		if err := smp.Sample(t, p); err != nil {
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseInternalServerErr, err.Error()))
			log.Info("Play stopped", zap.Error(err))
			return
		}
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteJSON(&PoseFrame{Time: t, Pose: p}); err != nil {
			log.Debug("Play write failed", zap.Error(err))
			return
		}
	}
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

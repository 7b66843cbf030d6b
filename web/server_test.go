package web

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gopkg.in/yaml.v3"

	"github.com/mogaika/anim_decompressor/clip"
	"github.com/mogaika/anim_decompressor/config"
	"github.com/mogaika/anim_decompressor/database"
	"github.com/mogaika/anim_decompressor/internal/clipbuilder"
	"github.com/mogaika/anim_decompressor/status"
)

func walkDescription(name string) clipbuilder.Description {
	bone := clipbuilder.IdentityBone(5)
	for i := range bone.Translations {
		bone.Translations[i] = mgl32.Vec3{float32(i) * 0.5, 0, 0}
	}
	return clipbuilder.Description{
		Name:       name,
		SampleRate: 4,
		NumSamples: 5,
		Bones:      []clipbuilder.BoneSamples{clipbuilder.IdentityBone(5), bone},
	}
}

type testServer struct {
	*httptest.Server
	dir string
	lib *Library
	hub *status.Hub
}

func newTestServer(t *testing.T) *testServer {
	dir := t.TempDir()

	walk := clipbuilder.Uniform(walkDescription("walk"), clipbuilder.UniformSettings{
		TranslationFormat: clip.Vector3fVariable,
		RangeReduction:    clip.RangeReductionTranslations,
	})
	require.NoError(t, SaveClipFiles(dir, "walk", walk.Buffer, nil))

	run := clipbuilder.Uniform(walkDescription("run"), clipbuilder.UniformSettings{
		SegmentSize: 2,
		Database:    true,
	})
	require.NoError(t, SaveClipFiles(dir, "run", run.Buffer, run.Tiers[:]))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken"+ClipExtension), []byte("nope"), 0644))

	logger := zaptest.NewLogger(t)
	db := database.New()
	t.Cleanup(db.Close)
	db.WithLogger(logger)

	hub := status.NewHub(logger)
	lib := NewLibrary(dir, db, hub, logger)
	require.NoError(t, lib.Load())

	cfg := config.DefaultToolConfig()
	cfg.FramesPerSecond = 8
	srv := httptest.NewServer(NewServer(lib, hub, cfg, logger).Handler())
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, dir: dir, lib: lib, hub: hub}
}

func (ts *testServer) get(t *testing.T, path string) (int, []byte) {
	resp, err := http.Get(ts.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, body
}

func (ts *testServer) pose(t *testing.T, path string) PoseFrame {
	code, body := ts.get(t, path)
	require.Equal(t, http.StatusOK, code, string(body))
	var frame PoseFrame
	require.NoError(t, json.Unmarshal(body, &frame))
	return frame
}

func TestLibraryLoad(t *testing.T) {
	ts := newTestServer(t)
	require.Equal(t, []string{"run", "walk"}, ts.lib.Names())

	run, err := ts.lib.Get("run")
	require.NoError(t, err)
	assert.Equal(t, []uint8{0, 1}, run.Tiers)
	assert.Equal(t, map[uint8]bool{0: false, 1: false}, ts.lib.TierStatus(run))

	walk, err := ts.lib.Get("walk")
	require.NoError(t, err)
	assert.Empty(t, walk.Tiers)

	_, err = ts.lib.Get("broken")
	require.Error(t, err)
	require.Contains(t, string(ts.hub.LastMessage()), "Loaded 2 clips")
}

func TestClipRoutes(t *testing.T) {
	ts := newTestServer(t)

	code, body := ts.get(t, "/json/clips")
	require.Equal(t, http.StatusOK, code)
	var items []ClipListItem
	require.NoError(t, json.Unmarshal(body, &items))
	require.Len(t, items, 2)
	assert.Equal(t, "run", items[0].Name)
	assert.True(t, items[0].Info.HasDatabase)
	assert.Equal(t, "walk", items[1].Info.Name)

	code, body = ts.get(t, "/yaml/clips/walk")
	require.Equal(t, http.StatusOK, code)
	var details ClipDetails
	require.NoError(t, yaml.Unmarshal(body, &details))
	assert.Equal(t, uint32(2), details.Info.NumBones)
	assert.Contains(t, details.Layout, "clip_name")

	code, _ = ts.get(t, "/json/clips/missing")
	assert.Equal(t, http.StatusNotFound, code)

	code, body = ts.get(t, "/dump/clips/walk")
	require.Equal(t, http.StatusOK, code)
	walk, _ := ts.lib.Get("walk")
	assert.Equal(t, walk.Clip.Bytes(), body)

	code, body = ts.get(t, "/gltf/clips/walk?fps=4")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []byte("glTF"), body[:4])

	code, _ = ts.get(t, "/gltf/clips/walk?fps=-1")
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = ts.get(t, "/metrics")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), "anim_database_tiers_registered 2")
}

func TestFpsBounds(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{
		"/gltf/clips/walk?fps=4e9",
		"/gltf/clips/walk?fps=NaN",
		"/export/clips/walk/poses?fps=1001",
		"/ws/clips/walk/play?fps=4e9",
		"/ws/clips/walk/play?fps=0",
	} {
		code, body := ts.get(t, path)
		assert.Equal(t, http.StatusBadRequest, code, path)
		assert.Contains(t, string(body), "Invalid fps", path)
	}

	code, _ := ts.get(t, "/export/clips/walk/poses?fps=1000")
	assert.Equal(t, http.StatusOK, code)
}

func TestExportPoses(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/export/clips/walk/poses?fps=4")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "walk_poses.json")

	var frames []PoseFrame
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&frames))
	require.Len(t, frames, 5)
	assert.Equal(t, float32(1), frames[4].Time)
	assert.InDelta(t, 2.0, frames[4].Pose.Bones[1].Translation[0], 1e-4)

	code, _ := ts.get(t, "/export/clips/missing/poses")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestPoseRoute(t *testing.T) {
	ts := newTestServer(t)

	frame := ts.pose(t, "/json/clips/walk/pose?t=0.5")
	require.Len(t, frame.Pose.Bones, 2)
	assert.InDelta(t, 1.0, frame.Pose.Bones[1].Translation[0], 1e-4)

	frame = ts.pose(t, "/json/clips/walk/pose?t=0.5&settings=default")
	assert.InDelta(t, 1.0, frame.Pose.Bones[1].Translation[0], 1e-4)

	// full rotations with variable translations fit neither specialized settings
	code, _ := ts.get(t, "/json/clips/walk/pose?t=0.5&settings=variable")
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	code, _ = ts.get(t, "/json/clips/walk/pose?t=0.5&settings=full")
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	code, _ = ts.get(t, "/json/clips/walk/pose?t=0.5&settings=fastest")
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = ts.get(t, "/json/clips/walk/pose?t=soon")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestTierStreaming(t *testing.T) {
	ts := newTestServer(t)

	code, _ := ts.get(t, "/json/clips/run/pose?t=0.5")
	require.Equal(t, http.StatusConflict, code)

	code, body := ts.get(t, "/action/clips/run/tiers/1/in")
	require.Equal(t, http.StatusOK, code, string(body))
	assert.JSONEq(t, `{"0":false,"1":true}`, string(body))

	frame := ts.pose(t, "/json/clips/run/pose?t=0.5")
	assert.InDelta(t, 1.0, frame.Pose.Bones[1].Translation[0], 1e-4)

	code, _ = ts.get(t, "/json/clips/run/pose?t=0")
	require.Equal(t, http.StatusConflict, code)

	code, _ = ts.get(t, "/action/clips/run/tiers/1/out")
	require.Equal(t, http.StatusOK, code)
	code, _ = ts.get(t, "/json/clips/run/pose?t=0.5")
	require.Equal(t, http.StatusConflict, code)

	code, _ = ts.get(t, "/action/clips/run/tiers/7/in")
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = ts.get(t, "/action/clips/run/tiers/x/in")
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = ts.get(t, "/action/clips/walk/tiers/0/in")
	assert.Equal(t, http.StatusBadRequest, code)
}

func upload(t *testing.T, url string, data []byte) *http.Response {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("data", "clip.bin")
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(url, mw.FormDataContentType(), &body)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestUpload(t *testing.T) {
	ts := newTestServer(t)

	jump := clipbuilder.FullPrecision(walkDescription("jump"))
	resp := upload(t, ts.URL+"/upload/clips/jump", jump)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, err := os.Stat(filepath.Join(ts.dir, "jump"+ClipExtension))
	require.NoError(t, err)
	require.Equal(t, []string{"jump", "run", "walk"}, ts.lib.Names())

	frame := ts.pose(t, "/json/clips/jump/pose?t=0.25")
	assert.InDelta(t, 0.5, frame.Pose.Bones[1].Translation[0], 1e-6)

	resp = upload(t, ts.URL+"/upload/clips/garbage", []byte("not a clip"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.NotContains(t, ts.lib.Names(), "garbage")

	resp, err = http.Get(ts.URL + "/upload/clips/jump")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestSaveWriteFailure(t *testing.T) {
	ts := newTestServer(t)
	require.NoError(t, os.Mkdir(filepath.Join(ts.dir, "jump"+ClipExtension), 0755))

	_, err := ts.lib.Save("jump", clipbuilder.FullPrecision(walkDescription("jump")))
	require.Error(t, err)
	_, err = ts.lib.Get("jump")
	require.ErrorIs(t, err, ErrUnknownClip)
	require.Equal(t, []string{"run", "walk"}, ts.lib.Names())
}

func TestSaveSharedTiers(t *testing.T) {
	ts := newTestServer(t)
	run, err := ts.lib.Get("run")
	require.NoError(t, err)
	hash := run.Clip.Hash()

	require.NoError(t, ts.lib.StreamTier("run", 1, true))
	for _, tier := range run.Tiers {
		data, err := os.ReadFile(filepath.Join(ts.dir, TierFileName("run", tier)))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(ts.dir, TierFileName("sprint", tier)), data, 0644))
	}

	// a second name for the same clip keeps the resident tiers
	_, err = ts.lib.Save("sprint", run.Clip.Bytes())
	require.NoError(t, err)
	assert.Equal(t, map[uint8]bool{0: false, 1: true}, ts.lib.TierStatus(run))

	// replacing it leaves the tiers of run registered
	_, err = ts.lib.Save("sprint", clipbuilder.FullPrecision(walkDescription("sprint")))
	require.NoError(t, err)
	assert.Equal(t, map[uint8]bool{0: false, 1: true}, ts.lib.TierStatus(run))
	require.NoError(t, ts.lib.StreamTier("run", 0, true))

	// the last holder takes them away
	_, err = ts.lib.Save("run", clipbuilder.FullPrecision(walkDescription("run")))
	require.NoError(t, err)
	assert.False(t, ts.lib.Database().IsResident(hash, 0))
	assert.ErrorIs(t, ts.lib.Database().StreamIn(hash, 0), database.ErrUnknownTier)
}

func wsURL(ts *testServer, path string) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + path
}

func TestPlay(t *testing.T) {
	ts := newTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "/ws/clips/walk/play?fps=16"), nil)
	require.NoError(t, err)
	defer conn.Close()

	var frames []PoseFrame
	for {
		var frame PoseFrame
		if err := conn.ReadJSON(&frame); err != nil {
			require.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "%v", err)
			break
		}
		frames = append(frames, frame)
	}
	require.Len(t, frames, 17)
	assert.Equal(t, float32(0), frames[0].Time)
	assert.Equal(t, float32(1), frames[16].Time)
	assert.InDelta(t, 2.0, frames[16].Pose.Bones[1].Translation[0], 1e-4)
}

func TestPlayNotResident(t *testing.T) {
	ts := newTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "/ws/clips/run/play"), nil)
	require.NoError(t, err)
	defer conn.Close()

	_, _, err = conn.ReadMessage()
	require.True(t, websocket.IsCloseError(err, websocket.CloseInternalServerErr), "%v", err)
}

func TestStatusSocket(t *testing.T) {
	ts := newTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "/ws/status"), nil)
	require.NoError(t, err)
	defer conn.Close()

	var st status.Status
	require.NoError(t, conn.ReadJSON(&st))
	assert.Equal(t, status.INFO, st.Type)
	assert.Contains(t, st.Message, "Loaded 2 clips")

	code, _ := ts.get(t, "/action/clips/run/tiers/0/in")
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, conn.ReadJSON(&st))
	assert.Equal(t, "Streamed in run tier 0", st.Message)
}

func TestStatusClientDisconnect(t *testing.T) {
	ts := newTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "/ws/status"), nil)
	require.NoError(t, err)

	var st status.Status
	require.NoError(t, conn.ReadJSON(&st))
	require.Equal(t, 1, ts.hub.NumClients())
	code, body := ts.get(t, "/metrics")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), "anim_status_clients 1")

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return ts.hub.NumClients() == 0 }, 5*time.Second, 10*time.Millisecond)

	// publishing after the peer left must not block or panic
	ts.hub.Info("still alive")
	require.Contains(t, string(ts.hub.LastMessage()), "still alive")
}

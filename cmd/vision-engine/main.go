// vision-engine reads raw BGR24 video frames from stdin (piped from
// ffmpeg), runs NES Zelda 1 game-state detection, and pushes state deltas
// to the dashboard:
//
//	ffmpeg -i rtmp://localhost:1935/live/racer1 -vf "fps=2" \
//	    -pix_fmt bgr24 -vcodec rawvideo -f rawvideo pipe:1 \
//	  | vision-engine --racer racer1 --crop 100,50,720,540 \
//	      --server http://localhost:3000
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/ttptv/vision/internal/autocrop"
	"github.com/ttptv/vision/internal/config"
	"github.com/ttptv/vision/internal/detector"
	"github.com/ttptv/vision/internal/framesrc"
	"github.com/ttptv/vision/internal/logic"
	"github.com/ttptv/vision/internal/nes"
	"github.com/ttptv/vision/internal/pix"
	"github.com/ttptv/vision/internal/profile"
	"github.com/ttptv/vision/internal/report"
	"github.com/ttptv/vision/internal/server"
)

type engineFlags struct {
	racer         string
	crop          string
	gridOffset    string
	width, height int
	templates     string
	serverURL     string
	landmarks     string
	cropProfileID string
	configPath    string
	fps           float64
	ws            bool
}

func main() {
	var ef engineFlags
	flag.StringVar(&ef.racer, "racer", "", "racer identifier (required)")
	flag.StringVar(&ef.crop, "crop", "0,0,1920,1080", "crop rectangle: x,y,w,h")
	flag.StringVar(&ef.gridOffset, "grid-offset", "0,0", "tile alignment offset: dx,dy")
	flag.IntVar(&ef.width, "width", 1920, "source frame width")
	flag.IntVar(&ef.height, "height", 1080, "source frame height")
	flag.StringVar(&ef.templates, "templates", "", "template directory")
	flag.StringVar(&ef.serverURL, "server", "", "dashboard base URL")
	flag.StringVar(&ef.landmarks, "landmarks", "", "JSON array of HUD landmark rectangles")
	flag.StringVar(&ef.cropProfileID, "crop-profile-id", "", "profile to update after calibration")
	flag.StringVar(&ef.configPath, "config", "", "YAML config file")
	flag.Float64Var(&ef.fps, "fps", 2, "sampled frames per second (informational)")
	flag.BoolVar(&ef.ws, "ws", false, "mirror deltas onto the websocket live feed")
	flag.Parse()

	log := newLogger()
	defer log.Sync()

	if ef.racer == "" {
		fmt.Fprintln(os.Stderr, "vision-engine: --racer is required")
		os.Exit(1)
	}

	cfg, err := config.Load(ef.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vision-engine: %v\n", err)
		os.Exit(1)
	}
	if ef.serverURL != "" {
		cfg.Server = ef.serverURL
	}
	if ef.templates != "" {
		cfg.Templates = ef.templates
	}
	if ef.ws {
		cfg.LiveFeed = true
	}

	cropX, cropY, cropW, cropH, err := parseQuad(ef.crop)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vision-engine: invalid --crop: %v\n", err)
		os.Exit(1)
	}
	gridDX, gridDY, err := parsePair(ef.gridOffset)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vision-engine: invalid --grid-offset: %v\n", err)
		os.Exit(1)
	}

	var landmarks []profile.Landmark
	if ef.landmarks != "" {
		landmarks, err = profile.ParseLandmarks(ef.landmarks)
		if err != nil {
			log.Warn("failed to parse landmarks", zap.Error(err))
			landmarks = nil
		} else {
			log.Info("landmarks provided", zap.Int("count", len(landmarks)))
		}
	}
	if len(landmarks) == 0 && len(cfg.Landmarks) > 0 {
		landmarks = cfg.Landmarks
	}

	// Derive the grid offset and life row from the LIFE landmark when no
	// explicit offset was given.
	lifeRow := 5
	calibrated := gridDX != 0 || gridDY != 0
	if len(landmarks) > 0 && !calibrated {
		for _, lm := range landmarks {
			if strings.Contains(lm.Label, "-LIFE-") {
				gridDX = lm.X % 8
				gridDY = lm.Y % 8
				lifeRow = lm.Y / 8
				calibrated = true
				log.Info("calibrated from LIFE landmark",
					zap.Int("x", lm.X), zap.Int("y", lm.Y),
					zap.Int("dx", gridDX), zap.Int("dy", gridDY),
					zap.Int("life_row", lifeRow))
				break
			}
		}
	}

	engine, err := newEngine(cfg, ef, landmarks, lifeRow, gridDX, gridDY,
		cropX, cropY, cropW, cropH, calibrated, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vision-engine: %v\n", err)
		os.Exit(1)
	}
	engine.run()
}

func newLogger() *zap.Logger {
	zcfg := zap.NewProductionConfig()
	zcfg.OutputPaths = []string{"stderr"}
	if term.IsTerminal(int(os.Stderr.Fd())) {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.OutputPaths = []string{"stderr"}
	}
	log, err := zcfg.Build()
	if err != nil {
		panic(err)
	}
	return log
}

// engine is the per-racer streaming pipeline state.
type engine struct {
	cfg config.Config
	ef  engineFlags
	log *zap.Logger

	detector  *detector.StateDetector
	validator *logic.Validator
	buffer    *detector.TemporalBuffer
	client    *server.Client

	cropX, cropY, cropW, cropH int
	gridDX, gridDY             int
	lifeRow                    int
	calibrated                 bool
	landmarks                  []profile.Landmark

	// Tighter NES boundaries found inside a loose crop, or nil.
	subCrop *[4]int

	mergedState map[string]any
	prevSent    map[string]any
	frameCount  int
	startTime   time.Time
	diagDone    bool

	lifeTextAttempts int
	previewPath      string
}

func newEngine(cfg config.Config, ef engineFlags, landmarks []profile.Landmark,
	lifeRow, gridDX, gridDY, cropX, cropY, cropW, cropH int, calibrated bool,
	log *zap.Logger) (*engine, error) {

	sd, err := detector.NewStateDetector(cfg.Templates, lifeRow, landmarks)
	if err != nil {
		return nil, err
	}
	if !sd.Digits.HasTemplates() {
		return nil, fmt.Errorf("no digit templates found under %s", cfg.Templates)
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	e := &engine{
		cfg: cfg, ef: ef, log: log,
		detector:    sd,
		validator:   logic.NewValidator(cfg.AnyRoads),
		buffer:      detector.NewTemporalBuffer(cfg.BufferSize),
		client:      server.NewClient(cfg.Server, cfg.APISecret, log),
		cropX:       cropX, cropY: cropY, cropW: cropW, cropH: cropH,
		gridDX: gridDX, gridDY: gridDY,
		lifeRow:     lifeRow,
		calibrated:  calibrated,
		landmarks:   landmarks,
		mergedState: map[string]any{},
		prevSent:    map[string]any{},
		startTime:   time.Now(),
		previewPath: filepath.Join(cfg.DataDir, "vision-frame-"+ef.racer+".jpg"),
	}
	if cfg.LiveFeed {
		if err := e.client.DialLiveFeed(ef.racer); err != nil {
			log.Warn("live feed unavailable", zap.Error(err))
		}
	}
	return e, nil
}

func (e *engine) run() {
	e.log.Info("starting",
		zap.String("racer", e.ef.racer),
		zap.Int("width", e.ef.width), zap.Int("height", e.ef.height),
		zap.Int("crop_x", e.cropX), zap.Int("crop_y", e.cropY),
		zap.Int("crop_w", e.cropW), zap.Int("crop_h", e.cropH),
		zap.Int("grid_dx", e.gridDX), zap.Int("grid_dy", e.gridDY),
		zap.Bool("calibrated", e.calibrated))

	reader, err := framesrc.NewReader(os.Stdin, e.ef.width, e.ef.height)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vision-engine: %v\n", err)
		os.Exit(1)
	}

	for {
		stream, err := reader.Next()
		if err == io.EOF {
			e.log.Info("end of input stream", zap.Int("frames", e.frameCount))
			e.client.Close()
			return
		}
		if err != nil {
			e.log.Error("frame read failed", zap.Error(err))
			e.client.Close()
			os.Exit(1)
		}
		e.processStreamFrame(stream)
	}
}

func (e *engine) processStreamFrame(stream *pix.Image) {
	nesRegion := nes.ExtractCrop(stream, e.cropX, e.cropY, e.cropW, e.cropH)
	if e.subCrop != nil {
		sc := *e.subCrop
		nesRegion = nesRegion.Sub(sc[0], sc[1], sc[2], sc[3])
	}

	if !e.calibrated {
		e.tryCalibrate(nesRegion)
		if e.subCrop != nil {
			sc := *e.subCrop
			nesRegion = nes.ExtractCrop(stream, e.cropX, e.cropY, e.cropW, e.cropH).
				Sub(sc[0], sc[1], sc[2], sc[3])
		}
	}

	frame := nes.NewFrame(nesRegion, e.gridDX, e.gridDY)
	e.processFrame(frame)

	// Overwrite the live preview used by the dashboard.
	if err := report.WritePreview(e.previewPath, frame.ToCanonical()); err != nil {
		e.log.Debug("preview write failed", zap.Error(err))
	}
}

// tryCalibrate attempts calibration on every frame until one succeeds:
// direct grid alignment when the crop is tight, and (rate-limited; it is
// expensive) LIFE-text sub-crop detection when the crop is loose.
func (e *engine) tryCalibrate(nesRegion *pix.Image) {
	canonical := nesRegion.ResizeNearest(nes.Width, nes.Height)
	if dx, dy, lifeRow, ok := autocrop.FindGridAlignment(canonical); ok {
		e.applyCalibration(dx, dy, lifeRow, "grid")
		return
	}

	e.lifeTextAttempts++
	if e.lifeTextAttempts%5 != 1 {
		return
	}
	cal, ok := autocrop.CalibrateFromLifeText(nesRegion)
	if !ok {
		return
	}
	sc := [4]int{cal.CropX, cal.CropY, cal.CropW, cal.CropH}
	e.subCrop = &sc
	dx, dy, lifeRow := cal.DX, cal.DY, 5
	tight := nesRegion.Sub(cal.CropX, cal.CropY, cal.CropW, cal.CropH).
		ResizeNearest(nes.Width, nes.Height)
	if d2x, d2y, lr, ok := autocrop.FindGridAlignment(tight); ok {
		dx, dy, lifeRow = d2x, d2y, lr
	}
	e.log.Info("auto-calibrated via LIFE-text sub-crop",
		zap.Ints("sub_crop", sc[:]))
	e.applyCalibration(dx, dy, lifeRow, "life_text")
}

func (e *engine) applyCalibration(dx, dy, lifeRow int, method string) {
	e.gridDX, e.gridDY = dx, dy
	e.lifeRow = lifeRow
	e.calibrated = true
	e.diagDone = false
	sd, err := detector.NewStateDetector(e.cfg.Templates, lifeRow, e.landmarks)
	if err == nil {
		e.detector = sd
	}
	e.log.Info("auto-calibrated",
		zap.String("method", method),
		zap.Int("dx", dx), zap.Int("dy", dy), zap.Int("life_row", lifeRow),
		zap.Int("frame", e.frameCount+1))
}

func (e *engine) processFrame(frame *nes.Frame) {
	state := e.detector.Detect(frame)
	if detector.IsGameplay(state.ScreenType) {
		e.runDiagnostics(frame)
	}
	e.frameCount++

	stable := e.buffer.Push(state)
	result := e.validator.Validate(stable, e.frameCount)

	newFields := stateFields(result.State)
	if result.State.ScreenType != detector.ScreenSubscreen {
		delete(newFields, "items")
		delete(newFields, "triforce")
	}

	// Z1R: substitute the accumulated inventory while the subscreen reader
	// yields nothing.
	if !hasEntries(e.mergedState["items"]) {
		accumulated := e.validator.AccumulatedInventory()
		if anyTrue(accumulated) {
			e.mergedState["items"] = accumulated
		}
	}

	for k, v := range newFields {
		e.mergedState[k] = v
	}
	delta := map[string]any{}
	for k, v := range e.mergedState {
		if !jsonEqual(e.prevSent[k], v) {
			delta[k] = v
		}
	}
	if len(result.Events) > 0 {
		delta["game_events"] = result.Events
	}

	if len(delta) > 0 {
		e.client.PushDelta(e.ef.racer, delta)
		// game_events are one-shot; never delta-deduplicated.
		for k, v := range delta {
			if k != "game_events" {
				e.prevSent[k] = v
			}
		}
	}

	if e.frameCount%20 == 0 {
		elapsed := time.Since(e.startTime).Seconds()
		fps := 0.0
		if elapsed > 0 {
			fps = float64(e.frameCount) / elapsed
		}
		e.log.Info("progress",
			zap.Int("frames", e.frameCount),
			zap.Float64("fps", fps),
			zap.String("state", result.State.ScreenType),
			zap.Bool("calibrated", e.calibrated))
	}
}

// runDiagnostics dumps one JSON record of grid offset, LIFE tile color, and
// per-position digit scores on the first gameplay frame, and writes the
// calibrated offset back to the crop profile.
func (e *engine) runDiagnostics(frame *nes.Frame) {
	if e.diagDone {
		return
	}
	e.diagDone = true

	diag := map[string]any{
		"grid_offset":  map[string]int{"dx": e.gridDX, "dy": e.gridDY},
		"life_row":     e.lifeRow,
		"template_set": detector.FingerprintDir(e.cfg.Templates),
	}
	lifeTile := frame.Tile(22, e.lifeRow)
	b, g, r := lifeTile.ChannelMeans()
	diag["life_tile"] = map[string]any{
		"bgr": []int{int(b), int(g), int(r)},
		"pos": []int{22*8 + e.gridDX, e.lifeRow*8 + e.gridDY},
	}

	digitPositions := map[string][2]int{
		"rupee_digit": {13, 2},
		"key_digit":   {13, 4},
		"bomb_digit":  {13, 5},
		"level_digit": {8, 1},
	}
	for name, pos := range digitPositions {
		tile := frame.Tile(pos[0], pos[1]+e.lifeRow-5)
		d, score := e.detector.Digits.ReadDigit(tile)
		diag[name] = map[string]any{
			"col": pos[0], "row": pos[1] + e.lifeRow - 5,
			"brightness": tile.Mean(),
			"best_digit": d, "best_score": score,
		}
	}

	diagPath := filepath.Join(e.cfg.DataDir, "vision-diag-"+shortID(e.ef.racer)+".json")
	if data, err := json.MarshalIndent(diag, "", "  "); err == nil {
		if err := os.WriteFile(diagPath, data, 0644); err != nil {
			e.log.Warn("diagnostics write failed", zap.Error(err))
		} else {
			e.log.Info("wrote diagnostics", zap.String("path", diagPath))
		}
	}

	if e.ef.cropProfileID != "" && e.cfg.Server != "" {
		err := e.client.UpdateCropProfile(e.ef.cropProfileID, map[string]any{
			"grid_offset_dx": e.gridDX,
			"grid_offset_dy": e.gridDY,
		})
		if err != nil {
			e.log.Warn("crop profile update failed", zap.Error(err))
		} else {
			e.log.Info("updated crop profile",
				zap.String("id", shortID(e.ef.cropProfileID)),
				zap.Int("dx", e.gridDX), zap.Int("dy", e.gridDY))
		}
	}
}

// stateFields converts a GameState to its snake_case field map via its JSON
// form, the same shape the dashboard consumes.
func stateFields(s detector.GameState) map[string]any {
	data, err := json.Marshal(s)
	if err != nil {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]any{}
	}
	return out
}

func jsonEqual(a, b any) bool {
	if a == nil && b == nil {
		return true
	}
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return string(ja) == string(jb)
}

func hasEntries(v any) bool {
	switch m := v.(type) {
	case map[string]bool:
		return len(m) > 0
	case map[string]any:
		return len(m) > 0
	}
	return false
}

func anyTrue(m map[string]bool) bool {
	for _, v := range m {
		if v {
			return true
		}
	}
	return false
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func parseQuad(s string) (a, b, c, d int, err error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return 0, 0, 0, 0, fmt.Errorf("want x,y,w,h, got %q", s)
	}
	vals := make([]int, 4)
	for i, p := range parts {
		vals[i], err = strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return 0, 0, 0, 0, fmt.Errorf("bad component %q", p)
		}
	}
	return vals[0], vals[1], vals[2], vals[3], nil
}

func parsePair(s string) (a, b int, err error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("want dx,dy, got %q", s)
	}
	if a, err = strconv.Atoi(strings.TrimSpace(parts[0])); err != nil {
		return 0, 0, fmt.Errorf("bad component %q", parts[0])
	}
	if b, err = strconv.Atoi(strings.TrimSpace(parts[1])); err != nil {
		return 0, 0, fmt.Errorf("bad component %q", parts[1])
	}
	return a, b, nil
}

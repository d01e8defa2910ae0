// learn-session runs the full detection pipeline over a recorded frame
// stream and produces a detection-quality report with frame snapshots:
//
//	ffmpeg -i vod.mp4 -vf "fps=2" -pix_fmt bgr24 -vcodec rawvideo \
//	    -f rawvideo pipe:1 \
//	  | learn-session --racer bogie --crop 420,60,720,675 --fps 2 \
//	      --output report.json
//
// A .bgr or .bgr.zst dump recorded earlier can be passed with --source.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ttptv/vision/internal/config"
	"github.com/ttptv/vision/internal/detector"
	"github.com/ttptv/vision/internal/framesrc"
	"github.com/ttptv/vision/internal/logic"
	"github.com/ttptv/vision/internal/nes"
	"github.com/ttptv/vision/internal/profile"
	"github.com/ttptv/vision/internal/report"
	"github.com/ttptv/vision/internal/roommatch"
	"github.com/ttptv/vision/internal/server"
)

func main() {
	racer := flag.String("racer", "", "racer identifier")
	source := flag.String("source", "-", "frame source: - for stdin, or a .bgr/.bgr.zst dump")
	crop := flag.String("crop", "0,0,1920,1080", "crop rectangle: x,y,w,h")
	gridOffset := flag.String("grid-offset", "0,0", "tile alignment offset: dx,dy")
	width := flag.Int("width", 1920, "source frame width")
	height := flag.Int("height", 1080, "source frame height")
	fps := flag.Float64("fps", 2, "sampled frames per second (drives timestamps)")
	serverURL := flag.String("server", "", "dashboard base URL for progress/report posting")
	sessionID := flag.String("session-id", "", "learn session id (generated when empty)")
	output := flag.String("output", "", "report JSON output path")
	snapshotsDir := flag.String("snapshots-dir", "", "snapshot output directory")
	snapshotInterval := flag.Float64("snapshot-interval", 60, "seconds of video between interval snapshots")
	maxSnapshots := flag.Int("max-snapshots", 5000, "snapshot cap")
	roomTiles := flag.String("room-tiles", "content/overworld_rooms", "overworld room tile directory")
	bundle := flag.String("bundle", "", "write a zip session bundle to this path")
	configPath := flag.String("config", "", "YAML config file")
	flag.Parse()

	log, err := zap.NewProduction()
	if err != nil {
		log = zap.NewNop()
	}
	defer log.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "learn-session: %v\n", err)
		os.Exit(1)
	}
	if *serverURL != "" {
		cfg.Server = *serverURL
	}

	cx, cy, cw, ch, err := parseQuad(*crop)
	if err != nil {
		fmt.Fprintf(os.Stderr, "learn-session: invalid --crop: %v\n", err)
		os.Exit(1)
	}
	dx, dy, err := parsePair(*gridOffset)
	if err != nil {
		fmt.Fprintf(os.Stderr, "learn-session: invalid --grid-offset: %v\n", err)
		os.Exit(1)
	}

	id := *sessionID
	if id == "" {
		id = uuid.NewString()
	}
	outPath := *output
	if outPath == "" {
		outPath = filepath.Join(cfg.DataDir, "report_"+id+".json")
	}
	snapDir := *snapshotsDir
	if snapDir == "" && *serverURL != "" {
		snapDir = filepath.Join(cfg.DataDir, "learn-snapshots", id)
	}

	sd, err := detector.NewStateDetector(cfg.Templates, 5, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "learn-session: %v\n", err)
		os.Exit(1)
	}
	validator := logic.NewValidator(cfg.AnyRoads)
	buffer := detector.NewTemporalBuffer(cfg.BufferSize)
	client := server.NewClient(cfg.Server, cfg.APISecret, log)

	var snapshots *report.SnapshotWriter
	if snapDir != "" {
		snapshots, err = report.NewSnapshotWriter(snapDir, *maxSnapshots)
		if err != nil {
			fmt.Fprintf(os.Stderr, "learn-session: %v\n", err)
			os.Exit(1)
		}
		log.Info("snapshots dir ready", zap.String("dir", snapDir))
	}

	reader, err := framesrc.Open(*source, *width, *height)
	if err != nil {
		fmt.Fprintf(os.Stderr, "learn-session: %v\n", err)
		os.Exit(1)
	}
	defer reader.Close()

	rep := report.NewLearnReport(id, *racer, *source)
	prevScreen := ""
	lastSnapshotTS := -999.0
	frameNum := 0

	for {
		stream, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Error("frame read failed", zap.Error(err))
			break
		}
		frameNum++
		videoTS := float64(frameNum) / *fps

		region := nes.ExtractCrop(stream, cx, cy, cw, ch)
		frame := nes.NewFrame(region, dx, dy)

		state := sd.Detect(frame)
		stable := buffer.Push(state)
		result := validator.Validate(stable, frameNum)

		rep.CountFrame(frameNum, videoTS, prevScreen, result.State.ScreenType)

		if snapshots != nil {
			reason := ""
			if prevScreen != "" && prevScreen != result.State.ScreenType {
				reason = "transition"
			} else if videoTS-lastSnapshotTS >= *snapshotInterval {
				reason = "interval"
			}
			if reason != "" {
				info := report.SnapshotInfo{
					Screen:       result.State.ScreenType,
					ScreenType:   result.State.ScreenType,
					MapPosition:  result.State.MapPosition,
					DungeonLevel: result.State.DungeonLevel,
				}
				if saved, ok := snapshots.Save(frame.ToCanonical(), reason, frameNum, videoTS, info); ok {
					rep.Snapshots = append(rep.Snapshots, saved)
					if reason == "interval" {
						lastSnapshotTS = videoTS
					}
				}
			}
		}
		prevScreen = result.State.ScreenType

		if *serverURL != "" && frameNum%200 == 0 {
			client.PostLearnProgress(id, map[string]any{
				"frames": frameNum, "ts": videoTS,
				"screen": result.State.ScreenType,
			})
		}
	}

	rep.Finish(validator.Anomalies(), validator.Events(),
		validator.TriforceInferred(), validator.AccumulatedInventory())

	// Post-hoc position calibration from room-tile matching.
	if snapDir != "" {
		matcher, err := roommatch.NewMatcher(*roomTiles)
		if err == nil && matcher.HasTiles() {
			cal := roommatch.CalibratePositions(rep, snapDir, matcher, dx, dy)
			log.Info("position calibration",
				zap.Int("checked", cal.SnapshotsChecked),
				zap.Int("matched", cal.SnapshotsMatched),
				zap.Int("corrected", cal.Corrected))
		}
	}

	written, err := rep.Write(outPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "learn-session: %v\n", err)
		os.Exit(1)
	}
	log.Info("report written",
		zap.String("path", written), zap.Int("frames", rep.TotalFrames))

	if *serverURL != "" {
		if err := client.PostLearnReport(id, rep); err != nil {
			log.Warn("report post failed", zap.Error(err))
		}
	}

	// Cache the session pointer locally.
	if store, err := profile.OpenStore(filepath.Join(cfg.DataDir, "profiles.db")); err == nil {
		if err := store.RecordLearnSession(id, *racer, written, rep.TotalFrames); err != nil {
			log.Debug("session record failed", zap.Error(err))
		}
		store.Close()
	}

	if *bundle != "" {
		if err := report.WriteSessionBundle(*bundle, written, snapDir); err != nil {
			log.Warn("bundle write failed", zap.Error(err))
		} else {
			log.Info("session bundle written", zap.String("path", *bundle))
		}
	}
}

func parseQuad(s string) (a, b, c, d int, err error) {
	var vals [4]int
	n, err := fmt.Sscanf(s, "%d,%d,%d,%d", &vals[0], &vals[1], &vals[2], &vals[3])
	if err != nil || n != 4 {
		return 0, 0, 0, 0, fmt.Errorf("want x,y,w,h, got %q", s)
	}
	return vals[0], vals[1], vals[2], vals[3], nil
}

func parsePair(s string) (a, b int, err error) {
	n, err := fmt.Sscanf(s, "%d,%d", &a, &b)
	if err != nil || n != 2 {
		return 0, 0, fmt.Errorf("want dx,dy, got %q", s)
	}
	return a, b, nil
}

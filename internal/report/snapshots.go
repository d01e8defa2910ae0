package report

import (
	"fmt"
	"image/jpeg"
	"os"
	"path/filepath"

	"golang.org/x/crypto/blake2b"

	"github.com/ttptv/vision/internal/pix"
)

// SnapshotInfo indexes one saved frame snapshot.
type SnapshotInfo struct {
	File   string  `json:"file"`
	Frame  int     `json:"frame"`
	TS     float64 `json:"ts"`
	Reason string  `json:"reason"` // "transition" | "interval"
	Screen string  `json:"screen"`

	// State summary at snapshot time, for post-hoc position calibration.
	MapPosition  int    `json:"map_position"`
	DungeonLevel int    `json:"dungeon_level"`
	ScreenType   string `json:"screen_type"`
}

// SnapshotWriter saves decimated canonical-frame snapshots for post-hoc
// analysis. Consecutive identical frames are content-hash deduped so a
// paused stream doesn't flood the session directory.
type SnapshotWriter struct {
	dir      string
	max      int
	count    int
	lastHash [32]byte
	haveHash bool
}

// NewSnapshotWriter creates the session directory.
func NewSnapshotWriter(dir string, maxSnapshots int) (*SnapshotWriter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create snapshots dir: %w", err)
	}
	return &SnapshotWriter{dir: dir, max: maxSnapshots}, nil
}

// Count returns the number of snapshots written.
func (w *SnapshotWriter) Count() int { return w.count }

// Save writes one snapshot named NNNN_<reason>_<ts>.jpg and returns its
// index record. Returns ok=false when the cap is reached or the frame is
// byte-identical to the previous snapshot.
func (w *SnapshotWriter) Save(frame *pix.Image, reason string, frameNum int,
	ts float64, info SnapshotInfo) (SnapshotInfo, bool) {
	if w.count >= w.max {
		return SnapshotInfo{}, false
	}
	hash := blake2b.Sum256(frame.Pix)
	if w.haveHash && hash == w.lastHash {
		return SnapshotInfo{}, false
	}

	w.count++
	name := fmt.Sprintf("%04d_%s_%.1f.jpg", w.count, reason, ts)
	path := filepath.Join(w.dir, name)

	f, err := os.Create(path)
	if err != nil {
		w.count--
		return SnapshotInfo{}, false
	}
	err = jpeg.Encode(f, frame, &jpeg.Options{Quality: 85})
	f.Close()
	if err != nil {
		w.count--
		os.Remove(path)
		return SnapshotInfo{}, false
	}

	w.lastHash = hash
	w.haveHash = true

	info.File = name
	info.Frame = frameNum
	info.TS = ts
	info.Reason = reason
	return info, true
}

// WritePreview overwrites the live preview JPEG the dashboard serves.
func WritePreview(path string, frame *pix.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create preview: %w", err)
	}
	defer f.Close()
	if err := jpeg.Encode(f, frame, &jpeg.Options{Quality: 75}); err != nil {
		return fmt.Errorf("encode preview: %w", err)
	}
	return nil
}

// Package report builds the learn-session detection-quality report and its
// snapshot artifacts.
package report

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/ttptv/vision/internal/autocrop"
	"github.com/ttptv/vision/internal/logic"
)

// Anomalies beyond this count are dropped from the report.
const maxReportAnomalies = 1000

// Reports larger than this are written zstd-compressed.
const compressThreshold = 4 << 20

// ScreenTransition is one change of classified screen type.
type ScreenTransition struct {
	Frame int     `json:"frame"`
	From  string  `json:"from"`
	To    string  `json:"to"`
	TS    float64 `json:"ts"`
}

// LearnReport is the complete detection-quality report for a session.
type LearnReport struct {
	SessionID string `json:"session_id"`
	Racer     string `json:"racer"`
	Source    string `json:"source,omitempty"`

	Calibration  *autocrop.Detection `json:"calibration,omitempty"`
	TotalFrames  int                 `json:"total_frames"`
	ScreenCounts map[string]int      `json:"screen_counts"`

	Transitions []ScreenTransition `json:"transitions"`
	Anomalies   []logic.Anomaly    `json:"anomalies"`
	Events      []logic.Event      `json:"events"`
	Snapshots   []SnapshotInfo     `json:"snapshots"`

	TriforceInferred [8]bool         `json:"triforce_inferred"`
	FinalInventory   map[string]bool `json:"final_inventory,omitempty"`
}

// NewLearnReport initializes a report shell.
func NewLearnReport(sessionID, racer, source string) *LearnReport {
	return &LearnReport{
		SessionID:    sessionID,
		Racer:        racer,
		Source:       source,
		ScreenCounts: map[string]int{},
	}
}

// CountFrame tallies one classified frame and records a transition when the
// screen type changed.
func (r *LearnReport) CountFrame(frame int, ts float64, prevScreen, screen string) {
	r.TotalFrames++
	r.ScreenCounts[screen]++
	if prevScreen != "" && prevScreen != screen {
		r.Transitions = append(r.Transitions, ScreenTransition{
			Frame: frame, From: prevScreen, To: screen, TS: ts,
		})
	}
}

// Finish caps the anomaly list and attaches the event stream.
func (r *LearnReport) Finish(anomalies []logic.Anomaly, events []logic.Event,
	triforce [8]bool, inventory map[string]bool) {
	if len(anomalies) > maxReportAnomalies {
		anomalies = anomalies[:maxReportAnomalies]
	}
	r.Anomalies = anomalies
	r.Events = events
	r.TriforceInferred = triforce
	r.FinalInventory = inventory
}

// Write saves the report as JSON, switching to zstd compression (with a
// .zst suffix added) when the encoded report is large. Returns the path
// actually written.
func (r *LearnReport) Write(path string) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal learn report: %w", err)
	}
	if len(data) > compressThreshold {
		path += ".zst"
		f, err := os.Create(path)
		if err != nil {
			return "", fmt.Errorf("create report: %w", err)
		}
		defer f.Close()
		enc, err := zstd.NewWriter(f)
		if err != nil {
			return "", fmt.Errorf("zstd writer: %w", err)
		}
		if _, err := enc.Write(data); err != nil {
			enc.Close()
			return "", fmt.Errorf("write report: %w", err)
		}
		if err := enc.Close(); err != nil {
			return "", fmt.Errorf("close report: %w", err)
		}
		return path, nil
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

// Load reads a report back, decompressing .zst files.
func Load(path string) (*LearnReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	if len(path) > 4 && path[len(path)-4:] == ".zst" {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("zstd reader: %w", err)
		}
		defer dec.Close()
		data, err = dec.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("decompress report: %w", err)
		}
	}
	var r LearnReport
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse report: %w", err)
	}
	return &r, nil
}

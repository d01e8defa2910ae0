// auto-crop detects the NES game rectangle in stream frame images and
// prints the calibration as JSON:
//
//	auto-crop --input frame.png
//	auto-crop --inputs frame1.png,frame2.png,frame3.png
//
// With --inputs the full fallback chain runs (contour → LIFE-text →
// layout library); with --input only single-frame contour detection.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/ttptv/vision/internal/autocrop"
	"github.com/ttptv/vision/internal/detector"
	"github.com/ttptv/vision/internal/pix"
	"github.com/ttptv/vision/internal/profile"
)

func main() {
	input := flag.String("input", "", "path to a single frame image")
	inputs := flag.String("inputs", "", "comma-separated frame image paths")
	layoutsPath := flag.String("layouts", "data/common-crop-layouts.json",
		"common layout catalog")
	savePath := flag.String("save-profile", "", "write the detection as a crop profile JSON")
	flag.Parse()

	log.SetFlags(0)
	log.SetPrefix("[auto-crop] ")

	switch {
	case *inputs != "":
		frames := loadFrames(strings.Split(*inputs, ","))
		if len(frames) == 0 {
			printJSON(map[string]any{"error": "no valid images could be read"})
			os.Exit(1)
		}
		log.Printf("loaded %d frames, running detection chain...", len(frames))

		var layouts []autocrop.Layout
		if ls, err := autocrop.LoadLayouts(*layoutsPath); err == nil {
			layouts = ls
		}

		det, ok := autocrop.DetectWithFallback(frames, layouts, nil)
		if !ok {
			printJSON(map[string]any{"crop": nil})
			return
		}
		out := map[string]any{
			"crop":        map[string]int{"x": det.CropX, "y": det.CropY, "w": det.CropW, "h": det.CropH},
			"grid_offset": map[string]int{"dx": det.DX, "dy": det.DY},
			"life_row":    det.LifeRow,
			"confidence":  det.Confidence,
			"method":      det.Method,
			"hud_verified": det.HUDVerified,
		}
		printJSON(out)

		if *savePath != "" {
			p := &profile.CropProfile{
				StreamWidth:  frames[0].W,
				StreamHeight: frames[0].H,
				CropX:        det.CropX, CropY: det.CropY,
				CropW: det.CropW, CropH: det.CropH,
				GridDX: det.DX, GridDY: det.DY,
				LifeRow: det.LifeRow,
			}
			if err := p.Save(*savePath); err != nil {
				log.Printf("warning: %v", err)
			} else {
				log.Printf("profile saved to %s", *savePath)
			}
		}

	case *input != "":
		frame, err := detector.LoadTemplateImage(*input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "auto-crop: %v\n", err)
			os.Exit(1)
		}
		result, ok := autocrop.DetectCrop(frame)
		if !ok {
			printJSON(map[string]any{"error": "no NES game region detected"})
			os.Exit(1)
		}
		printJSON(map[string]any{
			"x": result.X, "y": result.Y, "w": result.W, "h": result.H,
			"confidence":    result.Confidence,
			"aspect_ratio":  result.AspectRatio,
			"source_width":  result.SourceWidth,
			"source_height": result.SourceHeight,
			"hud_verified":  result.HUDVerified,
		})

	default:
		fmt.Fprintln(os.Stderr, "auto-crop: either --input or --inputs is required")
		os.Exit(1)
	}
}

func loadFrames(paths []string) []*pix.Image {
	var frames []*pix.Image
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		frame, err := detector.LoadTemplateImage(p)
		if err != nil {
			log.Printf("warning: could not read %s: %v", p, err)
			continue
		}
		frames = append(frames, frame)
	}
	return frames
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "auto-crop: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(data))
}

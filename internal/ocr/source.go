package ocr

import (
	"context"
	"encoding/json"
	"os"
	"strconv"
	"strings"

	"github.com/Sundramrai3691/ReXcan/constants"
	"github.com/Sundramrai3691/ReXcan/internal/common"
	"github.com/Sundramrai3691/ReXcan/internal/entity"
)

// BlockSource produces positioned text blocks for one document page.
// Implementations cover the embedded text layer, the local engine, and
// pre-extracted block files used by the batch tool and tests.
type BlockSource interface {
	Extract(ctx context.Context, path string, page int) ([]entity.OCRBlock, error)
	Engine() constants.OCREngine
}

// JSONBlockSource reads blocks from a sidecar JSON file, the format
// the batch tool and the test corpus use. The file holds either a bare
// block array or {"blocks": [...]}.
type JSONBlockSource struct{}

type blockFile struct {
	Blocks []entity.OCRBlock `json:"blocks"`
}

func (JSONBlockSource) Engine() constants.OCREngine { return constants.EngineTextLayer }

func (JSONBlockSource) Extract(_ context.Context, path string, _ int) ([]entity.OCRBlock, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, common.WrapError(err, "reading blocks file")
	}

	var direct []entity.OCRBlock
	if err := json.Unmarshal(data, &direct); err == nil {
		return direct, nil
	}
	var wrapped blockFile
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, common.WrapError(err, "parsing blocks file")
	}
	return wrapped.Blocks, nil
}

// TesseractSource runs the local OCR binary in TSV mode and converts
// its word rows into blocks.
type TesseractSource struct {
	Binary string
	runner Runner
}

// NewTesseractSource builds the local engine source. An empty binary
// name defaults to "tesseract".
func NewTesseractSource(binary string, runner Runner) *TesseractSource {
	if binary == "" {
		binary = "tesseract"
	}
	if runner == nil {
		runner = execRunner{}
	}
	return &TesseractSource{Binary: binary, runner: runner}
}

func (s *TesseractSource) Engine() constants.OCREngine { return constants.EngineLocalPrimary }

func (s *TesseractSource) Extract(ctx context.Context, path string, _ int) ([]entity.OCRBlock, error) {
	stdout, _, err := s.runner.Run(ctx, s.Binary, path, "stdout", "tsv")
	if err != nil {
		return nil, common.WrapError(err, "running tesseract")
	}
	return parseTSV(string(stdout)), nil
}

// parseTSV converts tesseract TSV output to blocks. Column layout:
// level page block par line word left top width height conf text.
func parseTSV(out string) []entity.OCRBlock {
	var blocks []entity.OCRBlock
	lines := strings.Split(out, "\n")
	for i, line := range lines {
		if i == 0 || strings.TrimSpace(line) == "" {
			continue
		}
		cols := strings.Split(line, "\t")
		if len(cols) < 12 {
			continue
		}
		text := strings.TrimSpace(cols[11])
		if text == "" {
			continue
		}
		conf, err := strconv.ParseFloat(cols[10], 64)
		if err != nil || conf < 0 {
			continue
		}
		left, _ := strconv.ParseFloat(cols[6], 64)
		top, _ := strconv.ParseFloat(cols[7], 64)
		width, _ := strconv.ParseFloat(cols[8], 64)
		height, _ := strconv.ParseFloat(cols[9], 64)

		blocks = append(blocks, entity.OCRBlock{
			Text:       text,
			BBox:       [4]float64{left, top, left + width, top + height},
			Confidence: conf / 100,
			Engine:     constants.EngineLocalPrimary,
		})
	}
	return blocks
}

package trace

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/halcyon-sh/warden/internal/protocol"
)

// Export writes a chained timeline as JSONL, one event per line.
func Export(w io.Writer, events []protocol.TRACEEvent) error {
	bw := bufio.NewWriter(w)
	for _, ev := range events {
		line, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("trace: marshal event %s: %w", ev.EventID, err)
		}
		if _, err := bw.Write(append(line, '\n')); err != nil {
			return fmt.Errorf("trace: write event: %w", err)
		}
	}
	return bw.Flush()
}

// ExportFile writes a timeline to a JSONL file.
func ExportFile(path string, events []protocol.TRACEEvent) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("trace: open %s: %w", path, err)
	}
	defer f.Close()
	return Export(f, events)
}

// VerifyFile re-verifies an exported JSONL timeline against a genesis
// seed. Line numbers in diagnostics are 1-based; FirstInvalidIndex is the
// 0-based event index, matching VerifyChain.
func VerifyFile(path, genesis string) VerifyResult {
	f, err := os.Open(path)
	if err != nil {
		return VerifyResult{
			FirstInvalidIndex: 0,
			Message:           fmt.Sprintf("open: %v", err),
		}
	}
	defer f.Close()

	var events []protocol.TRACEEvent
	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		var ev protocol.TRACEEvent
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			return VerifyResult{
				EventCount:        lineNum,
				FirstInvalidIndex: lineNum - 1,
				Message:           fmt.Sprintf("parse error at line %d: %v", lineNum, err),
			}
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return VerifyResult{
			EventCount:        lineNum,
			FirstInvalidIndex: lineNum,
			Message:           fmt.Sprintf("scan: %v", err),
		}
	}

	return VerifyEvents(events, genesis)
}

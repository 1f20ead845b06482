package imaging

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/RouteToVasanth/Quantum-Care/pkg/logger"
	"github.com/RouteToVasanth/Quantum-Care/pkg/monitoring"
	"github.com/RouteToVasanth/Quantum-Care/pkg/types"
)

const dcmodifyTool = "dcmodify"

// commandRunner runs an external program and returns what it wrote
type commandRunner func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// DcmodifyEditor applies tag edits with the DCMTK dcmodify tool
type DcmodifyEditor struct {
	path    string
	timeout time.Duration
	run     commandRunner
	logger  *logger.Logger
	metrics *monitoring.MetricsCollector
}

// NewDcmodifyEditor creates an editor invoking the binary at path
func NewDcmodifyEditor(path string, timeout time.Duration, log *logger.Logger, metrics *monitoring.MetricsCollector) *DcmodifyEditor {
	if path == "" {
		path = dcmodifyTool
	}
	return &DcmodifyEditor{
		path:    path,
		timeout: timeout,
		run:     execRunner,
		logger:  log,
		metrics: metrics,
	}
}

// Args builds the dcmodify argument list. Existing attributes are
// overwritten, missing ones inserted, and no backup file is kept.
func (e *DcmodifyEditor) Args(file string, tags types.TagSet) []string {
	args := make([]string, 0, 2*len(tags)+3)
	args = append(args, "-ie", "-nb")
	for _, t := range tags {
		args = append(args, "-ma", t.Tag+"="+t.Value)
	}
	return append(args, file)
}

// Apply rewrites the file in place. Anything written to stderr counts as a
// failure and is reported verbatim.
func (e *DcmodifyEditor) Apply(ctx context.Context, file string, tags types.TagSet) error {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	_, stderr, err := e.run(ctx, e.path, e.Args(file, tags)...)
	diagnostic := strings.TrimSpace(string(stderr))

	var toolErr error
	switch {
	case diagnostic != "":
		toolErr = types.NewExternalToolError(dcmodifyTool, diagnostic, err)
	case err != nil:
		toolErr = types.NewExternalToolError(dcmodifyTool, err.Error(), err)
	}

	e.logger.ExternalTool(ctx, dcmodifyTool, time.Since(start).Milliseconds(), toolErr)
	if toolErr != nil {
		e.metrics.RecordExternalToolFailure(dcmodifyTool)
		return toolErr
	}
	return nil
}

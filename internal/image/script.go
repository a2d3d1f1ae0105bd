package image

import (
	"fmt"

	"github.com/terabiome/golem/pkg/constants"
	"github.com/terabiome/golem/pkg/templator"
)

// RunScriptData feeds the boot command script template.
type RunScriptData struct {
	Command string
}

// WriteRunScript renders the boot command script (shebang, the user's
// command, poweroff) to path. Workloads with a "command" option boot into
// this script instead of an interactive init.
func WriteRunScript(engine *templator.Engine, path, command string) (string, error) {
	err := engine.RenderToFile(constants.TemplateRunScript, path, 0o755, RunScriptData{Command: command})
	if err != nil {
		return "", fmt.Errorf("failed to write run script: %w", err)
	}
	return path, nil
}

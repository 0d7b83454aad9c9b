package transform

import (
	"bytes"
	"strings"

	"github.com/signalize/signalize/internal/dartast"
)

const (
	annotationsImport = "package:solid_signals/annotations.dart"
	runtimeImport     = "package:solid_signals/solid_signals.dart"
	configSymbol      = "SignalsConfig."
)

// patchMain returns the edit disabling automatic disposal at the top of a
// main that calls runApp. Apps that already configure SignalsConfig keep
// their setting.
func patchMain(u *dartast.Unit) (edit, bool) {
	m := u.Main()
	if m == nil || !m.CallsRunApp {
		return edit{}, false
	}
	if strings.Contains(u.Text(m.BodyStart, m.BodyEnd), "SignalsConfig.autoDispose") {
		return edit{}, false
	}
	return edit{m.BodyStart, m.BodyStart, "\n  SignalsConfig.autoDispose = false;"}, true
}

// reconcileImports drops the annotations import and adds the runtime
// import to the file's leading directive block. Untouched files keep
// their imports unless they reference SignalsConfig without importing
// the runtime.
func reconcileImports(src []byte, edited bool) []byte {
	if !edited && !bytes.Contains(src, []byte(configSymbol)) {
		return src
	}
	lines := strings.Split(string(src), "\n")
	run := 0
	for run < len(lines) {
		t := strings.TrimSpace(lines[run])
		if t == "" || strings.HasPrefix(t, "import ") || strings.HasPrefix(t, "export ") ||
			strings.HasPrefix(t, "library ") || strings.HasPrefix(t, "part ") || strings.HasPrefix(t, "//") {
			run++
			continue
		}
		break
	}

	kept := make([]string, 0, run+1)
	haveRuntime := false
	for _, line := range lines[:run] {
		if strings.Contains(line, annotationsImport) {
			continue
		}
		if strings.Contains(line, runtimeImport) {
			haveRuntime = true
		}
		kept = append(kept, line)
	}
	if !haveRuntime {
		at := 0
		for i, line := range kept {
			t := strings.TrimSpace(line)
			if strings.HasPrefix(t, "import ") || strings.HasPrefix(t, "export ") || strings.HasPrefix(t, "library ") {
				at = i + 1
			}
		}
		stmt := "import '" + runtimeImport + "';"
		kept = append(kept[:at], append([]string{stmt}, kept[at:]...)...)
	}
	return []byte(strings.Join(append(kept, lines[run:]...), "\n"))
}

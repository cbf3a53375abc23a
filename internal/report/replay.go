package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/elektrokombinacija/pibt-mapd/internal/core"
)

// MapPath resolves the log's map_file. A relative path is looked up next to
// the log first, then taken as written.
func (l *Log) MapPath(logPath string) string {
	if filepath.IsAbs(l.MapFile) {
		return l.MapFile
	}
	p := filepath.Join(filepath.Dir(logPath), l.MapFile)
	if _, err := os.Stat(p); err == nil {
		return p
	}
	return l.MapFile
}

// Plan rebuilds the logged solution as a plan on w.
func (l *Log) Plan(w *core.Workspace) (*core.Plan, error) {
	plan := &core.Plan{}
	for t, cfg := range l.Solution {
		c := make(core.Config, len(cfg))
		for i, p := range cfg {
			v, ok := w.NodeAt(p)
			if !ok {
				return nil, fmt.Errorf("%w: agent %d at %s, timestep %d", core.ErrNodeNotFound, i, p, t)
			}
			c[i] = v
		}
		plan.Add(c)
	}
	return plan, nil
}

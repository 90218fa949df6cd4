package writer

import (
	"fmt"

	"github.com/danpilch/gonytprof/pkg/format"
)

// CopyModel records everything in m into w: files, embedded source,
// subroutines, line statistics and call edges. Identifiers are remapped
// to the ones w assigns, so m need not have dense ids. Call edges naming
// an undefined sid get a "sub#<sid>" definition without source. w is
// left open.
func CopyModel(w *Writer, m *format.TraceModel) error {
	fids := make(map[uint32]uint32, len(m.Files))
	for _, f := range m.Files {
		rec := f
		rec.Flags &^= format.FileHasSrc
		if f.EvalFID != 0 {
			parent, ok := fids[f.EvalFID]
			if !ok {
				return fmt.Errorf("copy file %q: eval parent fid %d not defined before it", f.Path, f.EvalFID)
			}
			rec.EvalFID = parent
		}
		fid, err := w.AddFileRecord(rec)
		if err != nil {
			return err
		}
		fids[f.FID] = fid
	}
	fid := func(old uint32) (uint32, error) {
		if old == 0 {
			return 0, nil
		}
		n, ok := fids[old]
		if !ok {
			return 0, fmt.Errorf("copy: unknown fid %d", old)
		}
		return n, nil
	}

	for _, src := range m.Sources {
		f, err := fid(src.FID)
		if err != nil {
			return err
		}
		if err := w.AddSourceLine(f, src.Line, src.Text); err != nil {
			return err
		}
	}

	sids := make(map[uint32]uint32, len(m.Defs))
	for _, d := range m.Defs {
		f, err := fid(d.FID)
		if err != nil {
			return err
		}
		sid, err := w.DefineSub(f, d.FirstLine, d.LastLine, d.Name)
		if err != nil {
			return err
		}
		sids[d.SID] = sid
	}
	// callers and callees without a definition get a placeholder so they
	// cannot alias a sid assigned above; 0 stays the root caller
	sid := func(old uint32) (uint32, error) {
		if n, ok := sids[old]; ok || old == 0 {
			return n, nil
		}
		n, err := w.DefineSub(0, 0, 0, fmt.Sprintf("sub#%d", old))
		if err != nil {
			return 0, err
		}
		sids[old] = n
		return n, nil
	}

	for _, r := range m.Records {
		f, err := fid(r.FID)
		if err != nil {
			return err
		}
		if err := w.RecordLine(f, r.Line, r.Calls, r.InclusiveTicks, r.ExclusiveTicks); err != nil {
			return err
		}
	}
	for _, c := range m.Calls {
		caller, err := sid(c.Caller)
		if err != nil {
			return err
		}
		callee, err := sid(c.Callee)
		if err != nil {
			return err
		}
		if err := w.RecordCallEdgeTimes(caller, callee, c.Calls, c.InclusiveTicks, c.ExclusiveTicks); err != nil {
			return err
		}
	}
	return nil
}

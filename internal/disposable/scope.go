package disposable

// Scope runs fn with d entered, guaranteeing d.Dispose() on every exit path,
// including a panic propagating out of fn. The panic is re-raised after
// disposal so callers still observe it.
func Scope(d Disposable, fn func() error) (err error) {
	defer func() {
		disposeErr := d.Dispose()

		if r := recover(); r != nil {
			panic(r)
		}

		if err == nil {
			err = disposeErr
		}
	}()

	return fn()
}

// MultiScope tracks disposables entered within a wider scope and disposes
// them in LIFO order when Close runs, regardless of which enter call failed
// or whether the wrapped work panicked. It is used by the workflow (§4.5) to
// unwind the draw stream and every opened drain stream together.
type MultiScope struct {
	entries []Disposable
}

// Enter registers d for disposal and returns it unchanged, so callers can
// write `stream := scope.Enter(src.StartDraw(meta))`-shaped code.
func (s *MultiScope) Enter(d Disposable) Disposable {
	s.entries = append(s.entries, d)
	return d
}

// Close disposes every entered disposable in LIFO order, collecting (but not
// stopping on) individual disposal errors. It returns the first error seen,
// matching the "first release error" guidance in §4.1; all entries are still
// disposed even if an earlier one failed.
func (s *MultiScope) Close() error {
	var first error

	for i := len(s.entries) - 1; i >= 0; i-- {
		if err := s.entries[i].Dispose(); err != nil && first == nil {
			first = err
		}
	}

	s.entries = nil

	return first
}

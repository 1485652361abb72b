package mailbox

// moveOps carries the session-bound primitives the move state machine
// drives. Split out so the copy → flag-delete → expunge ordering can
// be exercised without a live session.
type moveOps struct {
	copyTo       func(target string) error
	createFolder func(name string) error
	flagDeleted  func() error
	expunge      func() error
}

// performMove runs the move state machine against an already-selected
// source folder: resolve (or create) the target, copy, flag the source
// copy deleted, expunge. The first candidate that accepts the copy
// wins. Flag-delete and expunge only run after a successful copy; any
// earlier failure leaves the source message untouched.
func performMove(aliases Aliases, targetLogical string, ops moveOps) (string, error) {
	cands := aliases.Candidates(targetLogical)

	var lastErr error
	target := ""
	for _, cand := range cands {
		if err := ops.copyTo(cand); err == nil {
			target = cand
			break
		} else {
			lastErr = err
		}

		// Candidate may simply not exist yet; create the hierarchy one
		// segment at a time and retry once.
		created := true
		for _, segment := range pathSegments(cand) {
			if err := ops.createFolder(segment); err != nil {
				lastErr = err
				created = false
				break
			}
		}
		if !created {
			continue
		}

		if err := ops.copyTo(cand); err == nil {
			target = cand
			break
		} else {
			lastErr = err
		}
	}

	if target == "" {
		return "", &FolderNotFound{
			Logical:    targetLogical,
			Candidates: cands,
			LastErr:    lastErr,
		}
	}

	if err := ops.flagDeleted(); err != nil {
		return "", &ProtocolError{Op: "store", Err: err}
	}
	if err := ops.expunge(); err != nil {
		return "", &ProtocolError{Op: "expunge", Err: err}
	}

	return target, nil
}

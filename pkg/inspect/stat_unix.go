//go:build unix

package inspect

import (
	"os"
	"syscall"
)

// ownerIDs returns the numeric owner and group of fi, or nils when the
// filesystem does not expose them (for example an in-memory fixture).
func ownerIDs(fi os.FileInfo) (uid, gid any) {
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok || st == nil {
		return nil, nil
	}
	return st.Uid, st.Gid
}

package inspect

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"os"

	"github.com/spf13/afero"

	"github.com/cgast/idemverify/pkg/resource"
)

func inspectFile(_ context.Context, h *HostResolver, ref resource.Ref) (resource.Attributes, error) {
	fi, err := h.lstat(ref.Name)
	if err != nil {
		return nil, err
	}
	if !fi.Mode().IsRegular() {
		return nil, fmt.Errorf("%s is a %s, not a regular file", ref.Name, fileType(fi.Mode()))
	}

	attrs := pathAttributes(ref.Name, fi)
	attrs["size"] = fi.Size()
	attrs["checksum"] = nil
	if h.Sandbox.AllowsContent(fi.Size()) {
		sum, err := h.checksum(ref.Name)
		if err != nil {
			return nil, err
		}
		attrs["checksum"] = sum
	}
	return attrs, nil
}

func inspectDirectory(_ context.Context, h *HostResolver, ref resource.Ref) (resource.Attributes, error) {
	fi, err := h.lstat(ref.Name)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("%s is a %s, not a directory", ref.Name, fileType(fi.Mode()))
	}
	return pathAttributes(ref.Name, fi), nil
}

func inspectLink(_ context.Context, h *HostResolver, ref resource.Ref) (resource.Attributes, error) {
	fi, err := h.lstat(ref.Name)
	if err != nil {
		return nil, err
	}
	if fi.Mode()&os.ModeSymlink == 0 {
		return nil, fmt.Errorf("%s is a %s, not a symbolic link", ref.Name, fileType(fi.Mode()))
	}
	reader, ok := h.Fs.(afero.LinkReader)
	if !ok {
		return nil, fmt.Errorf("filesystem %s cannot read links", h.Fs.Name())
	}
	to, err := reader.ReadlinkIfPossible(ref.Name)
	if err != nil {
		return nil, fmt.Errorf("readlink %s: %w", ref.Name, err)
	}

	uid, gid := ownerIDs(fi)
	return resource.Attributes{
		"target_file": ref.Name,
		"to":          to,
		"link_type":   "symbolic",
		"mode":        fi.Mode(),
		"owner":       uid,
		"group":       gid,
	}, nil
}

// lstat checks the sandbox and stats path without following a final
// symlink when the filesystem supports it.
func (h *HostResolver) lstat(path string) (os.FileInfo, error) {
	if err := h.checkPath(path); err != nil {
		return nil, err
	}
	if l, ok := h.Fs.(afero.Lstater); ok {
		fi, _, err := l.LstatIfPossible(path)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}
		return fi, nil
	}
	fi, err := h.Fs.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	return fi, nil
}

func (h *HostResolver) checksum(path string) (string, error) {
	f, err := h.Fs.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	sum := sha256.New()
	if _, err := io.Copy(sum, f); err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return fmt.Sprintf("%x", sum.Sum(nil)), nil
}

func pathAttributes(path string, fi os.FileInfo) resource.Attributes {
	uid, gid := ownerIDs(fi)
	return resource.Attributes{
		"path":  path,
		"type":  fileType(fi.Mode()),
		"mode":  fi.Mode(),
		"owner": uid,
		"group": gid,
	}
}

func fileType(m os.FileMode) string {
	switch {
	case m.IsRegular():
		return "file"
	case m.IsDir():
		return "directory"
	case m&os.ModeSymlink != 0:
		return "link"
	case m&os.ModeNamedPipe != 0:
		return "fifo"
	case m&os.ModeSocket != 0:
		return "socket"
	case m&os.ModeDevice != 0:
		return "device"
	}
	return "unknown"
}

package inspect

import (
	"bufio"
	"fmt"
	"os/user"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

// UserRecord is one entry of the user database.
type UserRecord struct {
	Name    string
	UID     int
	GID     int
	Comment string
	Home    string
	Shell   string
}

// GroupRecord is one entry of the group database.
type GroupRecord struct {
	Name    string
	GID     int
	Members []string
}

// AccountDB resolves users and groups by id or by name.
type AccountDB interface {
	UserByID(uid int) (UserRecord, error)
	UserByName(name string) (UserRecord, error)
	GroupByID(gid int) (GroupRecord, error)
	GroupByName(name string) (GroupRecord, error)
}

// SystemAccounts queries the host account databases through os/user.
// It cannot report login shells or group members.
type SystemAccounts struct{}

func (SystemAccounts) UserByID(uid int) (UserRecord, error) {
	u, err := user.LookupId(strconv.Itoa(uid))
	if err != nil {
		return UserRecord{}, err
	}
	return userRecord(u)
}

func (SystemAccounts) UserByName(name string) (UserRecord, error) {
	u, err := user.Lookup(name)
	if err != nil {
		return UserRecord{}, err
	}
	return userRecord(u)
}

func (SystemAccounts) GroupByID(gid int) (GroupRecord, error) {
	g, err := user.LookupGroupId(strconv.Itoa(gid))
	if err != nil {
		return GroupRecord{}, err
	}
	return groupRecord(g)
}

func (SystemAccounts) GroupByName(name string) (GroupRecord, error) {
	g, err := user.LookupGroup(name)
	if err != nil {
		return GroupRecord{}, err
	}
	return groupRecord(g)
}

func userRecord(u *user.User) (UserRecord, error) {
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return UserRecord{}, fmt.Errorf("user %s: non-numeric uid %q", u.Username, u.Uid)
	}
	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		return UserRecord{}, fmt.Errorf("user %s: non-numeric gid %q", u.Username, u.Gid)
	}
	return UserRecord{Name: u.Username, UID: uid, GID: gid, Comment: u.Name, Home: u.HomeDir}, nil
}

func groupRecord(g *user.Group) (GroupRecord, error) {
	gid, err := strconv.Atoi(g.Gid)
	if err != nil {
		return GroupRecord{}, fmt.Errorf("group %s: non-numeric gid %q", g.Name, g.Gid)
	}
	return GroupRecord{Name: g.Name, GID: gid}, nil
}

// FileAccounts reads passwd(5) and group(5) formatted files through an
// afero filesystem, which lets a verification target an alternate root or
// an in-memory fixture. Files are re-read on every lookup.
type FileAccounts struct {
	Fs         afero.Fs
	PasswdPath string
	GroupPath  string
}

// NewFileAccounts uses /etc/passwd and /etc/group on fs.
func NewFileAccounts(fs afero.Fs) *FileAccounts {
	return &FileAccounts{Fs: fs, PasswdPath: "/etc/passwd", GroupPath: "/etc/group"}
}

func (a *FileAccounts) UserByID(uid int) (UserRecord, error) {
	return a.findUser(func(r UserRecord) bool { return r.UID == uid }, fmt.Sprintf("uid %d", uid))
}

func (a *FileAccounts) UserByName(name string) (UserRecord, error) {
	return a.findUser(func(r UserRecord) bool { return r.Name == name }, fmt.Sprintf("user %q", name))
}

func (a *FileAccounts) GroupByID(gid int) (GroupRecord, error) {
	return a.findGroup(func(r GroupRecord) bool { return r.GID == gid }, fmt.Sprintf("gid %d", gid))
}

func (a *FileAccounts) GroupByName(name string) (GroupRecord, error) {
	return a.findGroup(func(r GroupRecord) bool { return r.Name == name }, fmt.Sprintf("group %q", name))
}

func (a *FileAccounts) findUser(match func(UserRecord) bool, what string) (UserRecord, error) {
	var found *UserRecord
	err := readColonFile(a.Fs, a.PasswdPath, 7, func(f []string) bool {
		uid, err1 := strconv.Atoi(f[2])
		gid, err2 := strconv.Atoi(f[3])
		if err1 != nil || err2 != nil {
			return false
		}
		r := UserRecord{Name: f[0], UID: uid, GID: gid, Comment: f[4], Home: f[5], Shell: f[6]}
		if match(r) {
			found = &r
			return true
		}
		return false
	})
	if err != nil {
		return UserRecord{}, err
	}
	if found == nil {
		return UserRecord{}, fmt.Errorf("unknown %s in %s", what, a.PasswdPath)
	}
	return *found, nil
}

func (a *FileAccounts) findGroup(match func(GroupRecord) bool, what string) (GroupRecord, error) {
	var found *GroupRecord
	err := readColonFile(a.Fs, a.GroupPath, 4, func(f []string) bool {
		gid, err := strconv.Atoi(f[2])
		if err != nil {
			return false
		}
		r := GroupRecord{Name: f[0], GID: gid, Members: []string{}}
		if f[3] != "" {
			r.Members = strings.Split(f[3], ",")
		}
		if match(r) {
			found = &r
			return true
		}
		return false
	})
	if err != nil {
		return GroupRecord{}, err
	}
	if found == nil {
		return GroupRecord{}, fmt.Errorf("unknown %s in %s", what, a.GroupPath)
	}
	return *found, nil
}

// readColonFile calls fn for each well-formed line until fn returns true.
func readColonFile(fs afero.Fs, path string, fields int, fn func([]string) bool) error {
	f, err := fs.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, ":")
		if len(parts) < fields {
			continue
		}
		if fn(parts[:fields]) {
			return nil
		}
	}
	return scanner.Err()
}

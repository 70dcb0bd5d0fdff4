package rsync

import (
	"github.com/msolo/mcp-gas/internal/hashutil"
	"github.com/msolo/mcp-gas/internal/remote"
)

func contentHash(s string) string { return hashutil.HashString(s) }

// Operation selects which side is authoritative (spec §4.5).
type Operation int

const (
	OpPull Operation = iota // Remote -> local
	OpPush                  // local -> Remote
)

func (o Operation) String() string {
	if o == OpPush {
		return "push"
	}
	return "pull"
}

// ChangeKind classifies one filename's three-way status.
type ChangeKind int

const (
	Unchanged ChangeKind = iota
	Update
	Add
	Delete
)

func (c ChangeKind) String() string {
	switch c {
	case Update:
		return "update"
	case Add:
		return "add"
	case Delete:
		return "delete"
	default:
		return "unchanged"
	}
}

// FileOp is one entry of a computed diff plan.
type FileOp struct {
	Name string
	Kind remote.FileKind
	Op   ChangeKind
}

// localEntry is one file found while walking the local working tree.
type localEntry struct {
	Name string
	Kind remote.FileKind
	Hash string
}

// diff computes the three-way classification between local and remote file
// sets for operation op: for pull, remote is the source and local is the
// destination; for push, the reverse (spec §4.5 step 3).
func diff(op Operation, local map[string]localEntry, remoteFiles []remote.File) []FileOp {
	var source map[string]fileRef
	var dest map[string]fileRef
	if op == OpPull {
		source = remoteRefs(remoteFiles)
		dest = localRefs(local)
	} else {
		source = localRefs(local)
		dest = remoteRefs(remoteFiles)
	}

	ops := make([]FileOp, 0, len(source)+len(dest))
	for name, s := range source {
		if d, ok := dest[name]; ok {
			if hashesEqual(s.hash, d.hash) {
				ops = append(ops, FileOp{Name: name, Kind: s.kind, Op: Unchanged})
			} else {
				ops = append(ops, FileOp{Name: name, Kind: s.kind, Op: Update})
			}
		} else {
			ops = append(ops, FileOp{Name: name, Kind: s.kind, Op: Add})
		}
	}
	for name, d := range dest {
		if _, ok := source[name]; !ok {
			ops = append(ops, FileOp{Name: name, Kind: d.kind, Op: Delete})
		}
	}
	return ops
}

type fileRef struct {
	kind remote.FileKind
	hash string
}

func remoteRefs(files []remote.File) map[string]fileRef {
	m := make(map[string]fileRef, len(files))
	for _, f := range files {
		m[f.Name] = fileRef{kind: f.Kind, hash: contentHash(f.Source)}
	}
	return m
}

func localRefs(local map[string]localEntry) map[string]fileRef {
	m := make(map[string]fileRef, len(local))
	for name, e := range local {
		m[name] = fileRef{kind: e.Kind, hash: e.Hash}
	}
	return m
}

func hashesEqual(a, b string) bool { return a == b }

// Summary aggregates a plan's operation counts for the caller-facing
// preview/result (spec §4.5 "returns either a preview or an execution
// result").
type Summary struct {
	Unchanged   int  `json:"unchanged"`
	Updates     int  `json:"updates"`
	Adds        int  `json:"adds"`
	Deletions   int  `json:"deletions"`
	IsBootstrap bool `json:"isBootstrap"`
}

func summarize(ops []FileOp, isBootstrap bool) Summary {
	s := Summary{IsBootstrap: isBootstrap}
	for _, o := range ops {
		switch o.Op {
		case Unchanged:
			s.Unchanged++
		case Update:
			s.Updates++
		case Add:
			s.Adds++
		case Delete:
			s.Deletions++
		}
	}
	return s
}

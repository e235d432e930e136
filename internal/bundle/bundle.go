// Package bundle decodes the output archive of a finished run into a result
// tree.
//
// Each archive entry is named by a slash-separated path. A path component
// with a period suffix ("1.txt") is a leaf holding the entry bytes; one
// without ("A") is a branch. Below each port, numeric components ("1", "2")
// index 1-based list positions, so the entries
//
//	A/1.txt
//	A/2.txt
//	B.txt
//
// decode to
//
//	Outputs{"A": []any{<1.txt>, <2.txt>}, "B": <B.txt>}
//
// Branch keys that are not positive integers are dropped when a branch is
// folded into a list. A port whose branch has only non-numeric keys therefore
// decodes to an empty list.
package bundle

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
)

// MaxPosition is the largest list position an archive may name. Larger
// positions fail the decode instead of allocating the list.
const MaxPosition = 1 << 16

// Outputs maps each output port to its value. A value is either a leaf
// ([]byte) or a list ([]any) whose elements are leaves, nested lists, or nil
// for positions the archive did not fill.
type Outputs map[string]any

// branch is an interior node while the archive is being walked.
type branch map[string]any

// Decode reads a zip archive and returns the result tree it describes.
// The result does not depend on the order of entries in the archive.
func Decode(data []byte) (Outputs, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("reading archive: %w", err)
	}

	// Name order puts "A.txt" before "A/1.txt", so the leaf always wins.
	files := slices.Clone(zr.File)
	slices.SortFunc(files, func(a, b *zip.File) int { return strings.Compare(a.Name, b.Name) })

	root := branch{}
	for _, f := range files {
		content, err := readEntry(f)
		if err != nil {
			return nil, err
		}
		root.insert(strings.Split(f.Name, "/"), content)
	}

	out := make(Outputs, len(root))
	for port, v := range root {
		if b, ok := v.(branch); ok {
			list, err := b.fold()
			if err != nil {
				return nil, fmt.Errorf("port %s: %w", port, err)
			}
			out[port] = list
			continue
		}
		out[port] = v
	}
	return out, nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", f.Name, err)
	}
	defer func() { _ = rc.Close() }()

	content, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", f.Name, err)
	}
	return content, nil
}

// insert walks parts from b, creating branches as needed, and attaches
// content at the first component that carries a suffix.
func (b branch) insert(parts []string, content []byte) {
	current := b
	for _, p := range parts {
		key, leaf := splitComponent(p)
		if existing, ok := current[key]; ok {
			next, isBranch := existing.(branch)
			if !isBranch {
				// A leaf already occupies this key.
				return
			}
			current = next
			continue
		}
		if leaf {
			current[key] = content
			return
		}
		next := branch{}
		current[key] = next
		current = next
	}
}

// splitComponent returns the text before the first period and whether the
// component had a suffix at all.
func splitComponent(p string) (string, bool) {
	key, _, found := strings.Cut(p, ".")
	return key, found
}

// fold converts a branch into a list indexed by its positive integer keys.
func (b branch) fold() ([]any, error) {
	size := 0
	for k := range b {
		if i, ok := position(k); ok && i > size {
			size = i
		}
	}
	if size > MaxPosition {
		return nil, fmt.Errorf("list position %d exceeds %d", size, MaxPosition)
	}

	list := make([]any, size)
	for k, v := range b {
		i, ok := position(k)
		if !ok {
			continue
		}
		if nested, isBranch := v.(branch); isBranch {
			folded, err := nested.fold()
			if err != nil {
				return nil, err
			}
			list[i-1] = folded
			continue
		}
		list[i-1] = v
	}
	return list, nil
}

// position parses a branch key as a 1-based list position.
func position(key string) (int, bool) {
	i, err := strconv.Atoi(key)
	if err != nil || i < 1 {
		return 0, false
	}
	return i, true
}

// Ports returns the port names in sorted order.
func (o Outputs) Ports() []string {
	ports := make([]string, 0, len(o))
	for p := range o {
		ports = append(ports, p)
	}
	slices.Sort(ports)
	return ports
}

package core

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// LoadMap reads a MovingAI .map file. When "<path>.pd" exists, its pickup,
// delivery and endpoint marks are applied to the workspace.
func LoadMap(path string) (*Workspace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open map: %w", err)
	}
	defer f.Close()

	w, err := ParseMap(f)
	if err != nil {
		return nil, fmt.Errorf("parse map %s: %w", path, err)
	}
	w.Name = filepath.Base(path)

	pd, err := os.Open(path + ".pd")
	if errors.Is(err, os.ErrNotExist) {
		return w, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open pd: %w", err)
	}
	defer pd.Close()
	if err := ParsePD(pd, w); err != nil {
		return nil, fmt.Errorf("parse pd %s: %w", path+".pd", err)
	}
	return w, nil
}

// ParseMap reads the MovingAI grid format:
//
//	type octile
//	height H
//	width W
//	map
//	<H rows of W cells>
//
// Cells '.', 'G' and 'S' are free; everything else is an obstacle.
func ParseMap(r io.Reader) (*Workspace, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	width, height := -1, -1
	var rows []string
	inMap := false
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if inMap {
			if len(rows) < height {
				rows = append(rows, line)
			}
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "height", "width":
			if len(fields) != 2 {
				return nil, fmt.Errorf("%w: malformed %q", ErrInvalidInstance, line)
			}
			n, err := strconv.Atoi(fields[1])
			if err != nil || n <= 0 {
				return nil, fmt.Errorf("%w: bad %s %q", ErrInvalidInstance, fields[0], fields[1])
			}
			if fields[0] == "height" {
				height = n
			} else {
				width = n
			}
		case "map":
			inMap = true
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if width < 0 || height < 0 {
		return nil, fmt.Errorf("%w: missing width or height", ErrInvalidInstance)
	}
	if len(rows) != height {
		return nil, fmt.Errorf("%w: expected %d rows, got %d", ErrInvalidInstance, height, len(rows))
	}

	free := make([][]bool, height)
	for y, row := range rows {
		if len(row) != width {
			return nil, fmt.Errorf("%w: row %d has width %d, want %d", ErrInvalidInstance, y, len(row), width)
		}
		free[y] = make([]bool, width)
		for x := 0; x < width; x++ {
			switch row[x] {
			case '.', 'G', 'S':
				free[y][x] = true
			}
		}
	}
	return newGridFromMask(width, height, free), nil
}

// ParsePD applies task location marks, one row per map row:
// 'p' pickup, 'd' delivery, 's' both, 'e' parking endpoint, 'a' all roles.
func ParsePD(r io.Reader, w *Workspace) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	y := 0
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if len(line) != w.Width {
			return fmt.Errorf("%w: pd row %d has width %d, want %d", ErrInvalidInstance, y, len(line), w.Width)
		}
		for x := 0; x < w.Width; x++ {
			v, ok := w.NodeAt(Pos{X: x, Y: y})
			if !ok {
				continue
			}
			var kind VertexKind
			switch line[x] {
			case 'p':
				kind = KindPickup
			case 'd':
				kind = KindDelivery
			case 's':
				kind = KindPickup | KindDelivery
			case 'e':
				kind = KindEndpoint
			case 'a':
				kind = KindPickup | KindDelivery | KindEndpoint
			}
			w.Mark(v, kind)
		}
		y++
	}
	return sc.Err()
}

package stl

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/taigrr/stlview/pkg/math3d"
	"github.com/taigrr/stlview/pkg/models"
)

func decodeASCII(data []byte) (*models.Geometry, error) {
	g := models.NewGeometry("")
	var (
		normals  []math3d.Vec3
		inFacet  bool
		facetLen int
		line     int
	)

	sc := bufio.NewScanner(bytes.NewReader(trimBOM(data)))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}

		switch strings.ToLower(fields[0]) {
		case "solid":
			if g.Name == "" && len(fields) > 1 {
				g.Name = strings.Join(fields[1:], " ")
			}
		case "facet":
			if inFacet {
				return nil, fmt.Errorf("%w: line %d: facet inside facet", ErrMalformed, line)
			}
			n := math3d.Zero3()
			if len(fields) >= 5 && strings.EqualFold(fields[1], "normal") {
				v, err := parseVec3(fields[2:5])
				if err != nil {
					return nil, fmt.Errorf("%w: line %d: %v", ErrMalformed, line, err)
				}
				n = v
			}
			normals = append(normals, n)
			inFacet = true
			facetLen = 0
		case "vertex":
			if !inFacet {
				return nil, fmt.Errorf("%w: line %d: vertex outside facet", ErrMalformed, line)
			}
			if len(fields) < 4 {
				return nil, fmt.Errorf("%w: line %d: vertex needs 3 coordinates", ErrMalformed, line)
			}
			p, err := parseVec3(fields[1:4])
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrMalformed, line, err)
			}
			g.Positions = append(g.Positions, p)
			facetLen++
		case "endfacet":
			if !inFacet || facetLen != 3 {
				return nil, fmt.Errorf("%w: line %d: facet with %d vertices", ErrMalformed, line, facetLen)
			}
			inFacet = false
		case "outer", "endloop", "endsolid":
		default:
			return nil, fmt.Errorf("%w: line %d: unexpected %q", ErrMalformed, line, fields[0])
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if inFacet {
		return nil, fmt.Errorf("%w: unterminated facet", ErrTruncated)
	}

	g.Normals = facetNormals(normals)
	return g, nil
}

func parseVec3(fields []string) (math3d.Vec3, error) {
	var c [3]float64
	for i := range c {
		f, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return math3d.Vec3{}, err
		}
		c[i] = f
	}
	v := math3d.V3(c[0], c[1], c[2])
	if !finite(v) {
		return math3d.Vec3{}, fmt.Errorf("non-finite coordinate %v", v)
	}
	return v, nil
}

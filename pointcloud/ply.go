package pointcloud

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"image/color"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// PLYType is the encoding of a PLY file body.
type PLYType int

const (
	// PLYAscii writes one whitespace separated record per line.
	PLYAscii PLYType = iota
	// PLYBinary writes little endian records.
	PLYBinary
)

func (t PLYType) format() (string, error) {
	switch t {
	case PLYAscii:
		return "ascii", nil
	case PLYBinary:
		return "binary_little_endian", nil
	default:
		return "", errors.Errorf("unknown ply type %d", t)
	}
}

// WriteToPLYFile writes the valid points of cloud to fn, replacing any existing file.
func WriteToPLYFile(cloud PointCloud, fn string, plyType PLYType) (err error) {
	//nolint:gosec
	f, err := os.Create(fn)
	if err != nil {
		return NewWriteError(fn, err)
	}
	defer func() {
		err = NewWriteError(fn, multierr.Combine(err, f.Close()))
	}()
	return WritePLY(cloud, f, plyType)
}

// WritePLY writes one vertex record per point of cloud: float x, y, z followed by uchar red,
// green, blue. Positions keep the units of the cloud. Points without color are written black.
func WritePLY(cloud PointCloud, out io.Writer, plyType PLYType) error {
	format, err := plyType.format()
	if err != nil {
		return err
	}
	w := bufio.NewWriter(out)
	fmt.Fprintf(w, "ply\n"+
		"format %s 1.0\n"+
		"comment generated by depthcloud\n"+
		"element vertex %d\n"+
		"property float x\n"+
		"property float y\n"+
		"property float z\n"+
		"property uchar red\n"+
		"property uchar green\n"+
		"property uchar blue\n"+
		"end_header\n", format, cloud.Size())

	record := make([]byte, 15)
	cloud.Iterate(0, 0, func(p r3.Vector, d Data) bool {
		var r, g, b uint8
		if d != nil && d.HasColor() {
			r, g, b = d.RGB255()
		}
		if plyType == PLYBinary {
			binary.LittleEndian.PutUint32(record, math.Float32bits(float32(p.X)))
			binary.LittleEndian.PutUint32(record[4:], math.Float32bits(float32(p.Y)))
			binary.LittleEndian.PutUint32(record[8:], math.Float32bits(float32(p.Z)))
			record[12], record[13], record[14] = r, g, b
			_, _ = w.Write(record)
			return true
		}
		fmt.Fprintf(w, "%s %s %s %d %d %d\n", formatPLYFloat(p.X), formatPLYFloat(p.Y), formatPLYFloat(p.Z), r, g, b)
		return true
	})
	return w.Flush()
}

func formatPLYFloat(v float64) string {
	return strconv.FormatFloat(float64(float32(v)), 'g', -1, 32)
}

type plyProperty struct {
	name string
	kind string
}

var plyPropertySizes = map[string]int{
	"char": 1, "int8": 1, "uchar": 1, "uint8": 1,
	"short": 2, "int16": 2, "ushort": 2, "uint16": 2,
	"int": 4, "int32": 4, "uint": 4, "uint32": 4,
	"float": 4, "float32": 4, "double": 8, "float64": 8,
}

type plyHeader struct {
	binary     bool
	vertices   int
	properties []plyProperty
}

func readPLYHeader(in *bufio.Reader) (plyHeader, error) {
	var header plyHeader
	magic, err := in.ReadString('\n')
	if err != nil {
		return header, errors.Wrap(err, "reading ply magic")
	}
	if strings.TrimSpace(magic) != "ply" {
		return header, errors.New("not a ply file")
	}
	inVertex := false
	seenVertex := false
	for {
		line, err := in.ReadString('\n')
		if err != nil {
			return header, errors.Wrap(err, "reading ply header")
		}
		tokens := strings.Fields(line)
		if len(tokens) == 0 {
			continue
		}
		switch tokens[0] {
		case "format":
			if len(tokens) != 3 {
				return header, errors.Errorf("bad format line %q", line)
			}
			switch tokens[1] {
			case "ascii":
			case "binary_little_endian":
				header.binary = true
			default:
				return header, errors.Errorf("unsupported ply format %s", tokens[1])
			}
		case "comment", "obj_info":
		case "element":
			if len(tokens) != 3 {
				return header, errors.Errorf("bad element line %q", line)
			}
			inVertex = tokens[1] == "vertex"
			if inVertex {
				if seenVertex {
					return header, errors.New("duplicate vertex element")
				}
				seenVertex = true
				header.vertices, err = strconv.Atoi(tokens[2])
				if err != nil || header.vertices < 0 {
					return header, errors.Errorf("bad vertex count %q", tokens[2])
				}
			} else if !seenVertex {
				return header, errors.Errorf("element %s before vertex element is not supported", tokens[1])
			}
		case "property":
			if !inVertex {
				continue
			}
			if len(tokens) != 3 {
				return header, errors.Errorf("unsupported vertex property %q", strings.TrimSpace(line))
			}
			if _, ok := plyPropertySizes[tokens[1]]; !ok {
				return header, errors.Errorf("unsupported property type %s", tokens[1])
			}
			header.properties = append(header.properties, plyProperty{name: tokens[2], kind: tokens[1]})
		case "end_header":
			if !seenVertex {
				return header, errors.New("ply file has no vertex element")
			}
			return header, nil
		default:
			return header, errors.Errorf("unexpected ply header line %q", strings.TrimSpace(line))
		}
	}
}

func decodePLYValue(kind string, raw []byte) float64 {
	switch kind {
	case "char", "int8":
		return float64(int8(raw[0]))
	case "uchar", "uint8":
		return float64(raw[0])
	case "short", "int16":
		return float64(int16(binary.LittleEndian.Uint16(raw)))
	case "ushort", "uint16":
		return float64(binary.LittleEndian.Uint16(raw))
	case "int", "int32":
		return float64(int32(binary.LittleEndian.Uint32(raw)))
	case "uint", "uint32":
		return float64(binary.LittleEndian.Uint32(raw))
	case "float", "float32":
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(raw)))
	default:
		return math.Float64frombits(binary.LittleEndian.Uint64(raw))
	}
}

// ReadPLY reads the vertex element of an ascii or little endian binary PLY file. Elements after
// the vertices are ignored.
func ReadPLY(inRaw io.Reader) (PointCloud, error) {
	in := bufio.NewReader(inRaw)
	header, err := readPLYHeader(in)
	if err != nil {
		return nil, err
	}
	index := map[string]int{}
	for i, p := range header.properties {
		index[p.name] = i
	}
	for _, name := range []string{"x", "y", "z"} {
		if _, ok := index[name]; !ok {
			return nil, errors.Errorf("ply vertex element has no %s property", name)
		}
	}
	_, hasRed := index["red"]
	_, hasGreen := index["green"]
	_, hasBlue := index["blue"]
	hasColor := hasRed && hasGreen && hasBlue

	pc := NewList(header.vertices)
	values := make([]float64, len(header.properties))
	for i := 0; i < header.vertices; i++ {
		if header.binary {
			for j, p := range header.properties {
				raw := make([]byte, plyPropertySizes[p.kind])
				if _, err := io.ReadFull(in, raw); err != nil {
					return nil, errors.Wrapf(err, "reading vertex %d", i)
				}
				values[j] = decodePLYValue(p.kind, raw)
			}
		} else {
			line, err := in.ReadString('\n')
			if err != nil && !(errors.Is(err, io.EOF) && line != "") {
				return nil, errors.Wrapf(err, "reading vertex %d", i)
			}
			tokens := strings.Fields(line)
			if len(tokens) != len(values) {
				return nil, errors.Errorf("vertex %d has %d values, expected %d", i, len(tokens), len(values))
			}
			for j, token := range tokens {
				values[j], err = strconv.ParseFloat(token, 64)
				if err != nil {
					return nil, errors.Wrapf(err, "invalid vertex %d value %s", i, token)
				}
			}
		}
		pos := r3.Vector{X: values[index["x"]], Y: values[index["y"]], Z: values[index["z"]]}
		var d Data = Uncolored
		if hasColor {
			d = ColoredData(colorFromPLY(values[index["red"]], values[index["green"]], values[index["blue"]]))
		}
		if err := pc.Set(pos, d); err != nil {
			return nil, err
		}
	}
	return pc, nil
}

func colorFromPLY(r, g, b float64) color.NRGBA {
	return color.NRGBA{R: clampUint8(r), G: clampUint8(g), B: clampUint8(b), A: math.MaxUint8}
}

func clampUint8(v float64) uint8 {
	return uint8(math.Max(0, math.Min(math.MaxUint8, v)))
}

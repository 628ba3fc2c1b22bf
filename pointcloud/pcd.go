package pointcloud

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"image/color"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// PCDType selects how the point rows of a PCD file are stored.
type PCDType int

// The DATA encodings of a PCD file. Only ascii and binary can be read or written.
const (
	PCDAscii PCDType = iota
	PCDBinary
	PCDCompressed
)

var pcdEncodings = map[string]PCDType{
	"ascii":             PCDAscii,
	"binary":            PCDBinary,
	"binary_compressed": PCDCompressed,
}

func (t PCDType) String() string {
	for name, enc := range pcdEncodings {
		if enc == t {
			return name
		}
	}
	return fmt.Sprintf("PCDType(%d)", int(t))
}

// packPCDColor packs a color into the 0x00RRGGBB layout of the PCD rgb field.
func packPCDColor(d Data) uint32 {
	if d == nil || !d.HasColor() {
		return 0
	}
	r, g, b := d.RGB255()
	return uint32(r)<<16 | uint32(g)<<8 | uint32(b)
}

func unpackPCDColor(v uint32) color.NRGBA {
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}
}

// ToPCD writes cloud as a single-row PCD. The rgb field is emitted only for colored clouds.
func ToPCD(cloud PointCloud, out io.Writer, enc PCDType) error {
	if enc != PCDAscii && enc != PCDBinary {
		return errors.Errorf("cannot write %s PCD data", enc)
	}
	colored := cloud.MetaData().HasColor

	fields, size, typ, count := "x y z", "4 4 4", "F F F", "1 1 1"
	if colored {
		fields, size, typ, count = fields+" rgb", size+" 4", typ+" U", count+" 1"
	}
	w := bufio.NewWriter(out)
	n := cloud.Size()
	fmt.Fprintf(w, "VERSION .7\nFIELDS %s\nSIZE %s\nTYPE %s\nCOUNT %s\n", fields, size, typ, count)
	fmt.Fprintf(w, "WIDTH %d\nHEIGHT 1\nVIEWPOINT 0 0 0 1 0 0 0\nPOINTS %d\nDATA %s\n", n, n, enc)

	row := make([]byte, 16)
	cloud.Iterate(0, 0, func(p r3.Vector, d Data) bool {
		if enc == PCDAscii {
			fmt.Fprintf(w, "%f %f %f", p.X, p.Y, p.Z)
			if colored {
				fmt.Fprintf(w, " %d", packPCDColor(d))
			}
			w.WriteByte('\n') //nolint:errcheck
			return true
		}
		binary.LittleEndian.PutUint32(row[0:], math.Float32bits(float32(p.X)))
		binary.LittleEndian.PutUint32(row[4:], math.Float32bits(float32(p.Y)))
		binary.LittleEndian.PutUint32(row[8:], math.Float32bits(float32(p.Z)))
		rowLen := 12
		if colored {
			binary.LittleEndian.PutUint32(row[12:], packPCDColor(d))
			rowLen = 16
		}
		w.Write(row[:rowLen]) //nolint:errcheck
		return true
	})
	// the first write error sticks and surfaces here
	return w.Flush()
}

type pcdHeader struct {
	colored       bool
	types         []string
	width, height int
	points        int
	encoding      PCDType
}

func (h *pcdHeader) columns() int {
	if h.colored {
		return 4
	}
	return 3
}

func (h *pcdHeader) perColumn(key string, args []string, check func(string) bool) error {
	if len(args) != h.columns() {
		return errors.Errorf("%s has %d values for %d fields", key, len(args), h.columns())
	}
	for _, a := range args {
		if !check(a) {
			return errors.Errorf("unsupported %s value %q", key, a)
		}
	}
	return nil
}

func parsePCDCount(key string, args []string, dst *int) error {
	if len(args) != 1 {
		return errors.Errorf("%s expects one value", key)
	}
	v, err := strconv.Atoi(args[0])
	if err != nil || v < 0 {
		return errors.Errorf("invalid %s %q", key, args[0])
	}
	*dst = v
	return nil
}

// pcdHeaderLines lists the header keywords in the order a PCD file must declare them.
var pcdHeaderLines = []struct {
	key   string
	parse func(h *pcdHeader, args []string) error
}{
	{"VERSION", func(_ *pcdHeader, args []string) error {
		if len(args) != 1 || (args[0] != ".7" && args[0] != "0.7") {
			return errors.Errorf("unsupported PCD version %q", strings.Join(args, " "))
		}
		return nil
	}},
	{"FIELDS", func(h *pcdHeader, args []string) error {
		switch strings.Join(args, " ") {
		case "x y z":
		case "x y z rgb":
			h.colored = true
		default:
			return errors.Errorf("unsupported PCD fields %q", strings.Join(args, " "))
		}
		return nil
	}},
	{"SIZE", func(h *pcdHeader, args []string) error {
		return h.perColumn("SIZE", args, func(a string) bool { return a == "4" })
	}},
	{"TYPE", func(h *pcdHeader, args []string) error {
		h.types = args
		return h.perColumn("TYPE", args, func(a string) bool { return a == "F" || a == "I" || a == "U" })
	}},
	{"COUNT", func(h *pcdHeader, args []string) error {
		return h.perColumn("COUNT", args, func(a string) bool { return a == "1" })
	}},
	{"WIDTH", func(h *pcdHeader, args []string) error { return parsePCDCount("WIDTH", args, &h.width) }},
	{"HEIGHT", func(h *pcdHeader, args []string) error { return parsePCDCount("HEIGHT", args, &h.height) }},
	{"VIEWPOINT", func(_ *pcdHeader, args []string) error {
		if len(args) != 7 {
			return errors.Errorf("VIEWPOINT needs 7 values, got %d", len(args))
		}
		return nil
	}},
	{"POINTS", func(h *pcdHeader, args []string) error {
		if err := parsePCDCount("POINTS", args, &h.points); err != nil {
			return err
		}
		if h.points != h.width*h.height {
			return errors.Errorf("POINTS %d disagrees with WIDTH*HEIGHT %d", h.points, h.width*h.height)
		}
		return nil
	}},
	{"DATA", func(h *pcdHeader, args []string) error {
		enc, ok := pcdEncodings[strings.Join(args, " ")]
		if !ok {
			return errors.Errorf("unknown PCD data encoding %q", strings.Join(args, " "))
		}
		h.encoding = enc
		return nil
	}},
}

func readPCDHeader(in *bufio.Reader) (*pcdHeader, error) {
	h := &pcdHeader{}
	for next := 0; next < len(pcdHeaderLines); {
		raw, err := in.ReadString('\n')
		if err != nil {
			return nil, errors.Wrapf(err, "reading PCD header, expecting %s", pcdHeaderLines[next].key)
		}
		body, _, _ := strings.Cut(raw, "#")
		words := strings.Fields(body)
		if len(words) == 0 {
			continue
		}
		want := pcdHeaderLines[next]
		if words[0] != want.key {
			return nil, errors.Errorf("expected PCD header %s, found %q", want.key, strings.TrimSpace(raw))
		}
		if err := want.parse(h, words[1:]); err != nil {
			return nil, err
		}
		next++
	}
	return h, nil
}

// ReadPCD reads an ascii or binary PCD carrying x y z and an optional rgb field.
func ReadPCD(r io.Reader) (PointCloud, error) {
	in := bufio.NewReader(r)
	h, err := readPCDHeader(in)
	if err != nil {
		return nil, err
	}

	var readRow func(row []float64) error
	switch h.encoding {
	case PCDAscii:
		readRow = h.asciiRowReader(in)
	case PCDBinary:
		readRow = h.binaryRowReader(in)
	default:
		return nil, errors.Errorf("cannot read %s PCD data", h.encoding)
	}

	cloud := NewList(h.points)
	row := make([]float64, h.columns())
	for i := 0; i < h.points; i++ {
		if err := readRow(row); err != nil {
			return nil, errors.Wrapf(err, "PCD point %d", i)
		}
		d := Uncolored
		if h.colored {
			d = ColoredData(unpackPCDColor(uint32(row[3])))
		}
		if err := cloud.Set(r3.Vector{X: row[0], Y: row[1], Z: row[2]}, d); err != nil {
			return nil, err
		}
	}
	return cloud, nil
}

// The rgb column holds packed bits. A float typed rgb (as written by PCL) is reinterpreted rather
// than converted.
func (h *pcdHeader) isRGBColumn(col int) bool {
	return h.colored && col == 3
}

func (h *pcdHeader) asciiRowReader(in *bufio.Reader) func([]float64) error {
	return func(row []float64) error {
		line, err := in.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return err
		}
		words := strings.Fields(line)
		if len(words) != len(row) {
			return errors.Errorf("has %d values, want %d", len(words), len(row))
		}
		for col, word := range words {
			v, err := strconv.ParseFloat(word, 64)
			if err != nil {
				return errors.Wrapf(err, "column %d", col)
			}
			if h.isRGBColumn(col) && h.types[col] == "F" {
				v = float64(math.Float32bits(float32(v)))
			}
			row[col] = v
		}
		return nil
	}
}

func (h *pcdHeader) binaryRowReader(in *bufio.Reader) func([]float64) error {
	buf := make([]byte, 4*h.columns())
	return func(row []float64) error {
		if _, err := io.ReadFull(in, buf); err != nil {
			return err
		}
		for col := range row {
			bits := binary.LittleEndian.Uint32(buf[4*col:])
			switch {
			case h.isRGBColumn(col), h.types[col] == "U":
				row[col] = float64(bits)
			case h.types[col] == "I":
				row[col] = float64(int32(bits))
			default:
				row[col] = float64(math.Float32frombits(bits))
			}
		}
		return nil
	}
}

package rimage

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Depth maps persist in NumPy's .npy format (version 1.0, dtype <u2,
// C order, shape (height, width)) so offline consumers can np.load them
// without a custom reader.

var npyMagic = []byte("\x93NUMPY")

// WriteNPY writes the depth map to w in .npy format.
func (dm *DepthMap) WriteNPY(w io.Writer) error {
	header := fmt.Sprintf(
		"{'descr': '<u2', 'fortran_order': False, 'shape': (%d, %d), }",
		dm.height, dm.width,
	)

	// pad with spaces so the data section starts on a 64-byte boundary,
	// newline terminated
	preamble := len(npyMagic) + 2 + 2
	padded := preamble + len(header) + 1
	if rem := padded % 64; rem != 0 {
		header += strings.Repeat(" ", 64-rem)
	}
	header += "\n"

	if _, err := w.Write(npyMagic); err != nil {
		return err
	}
	if _, err := w.Write([]byte{0x01, 0x00}); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(len(header))); err != nil {
		return err
	}
	if _, err := io.WriteString(w, header); err != nil {
		return err
	}

	buf := make([]byte, dm.width*2)
	for y := 0; y < dm.height; y++ {
		for x := 0; x < dm.width; x++ {
			binary.LittleEndian.PutUint16(buf[x*2:], dm.GetDepth(x, y))
		}
		if _, err := w.Write(buf); err != nil {
			return err
		}
	}
	return nil
}

// WriteDepthMapToNPYFile writes the depth map to fn.
func WriteDepthMapToNPYFile(fn string, dm *DepthMap) (err error) {
	//nolint:gosec
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	out := bufio.NewWriter(f)
	if err := dm.WriteNPY(out); err != nil {
		return err
	}
	return out.Flush()
}

// ReadNPYDepthMap reads a .npy depth map written by WriteNPY (or by numpy
// itself, as long as the dtype is <u2 and the array is 2-D C order).
func ReadNPYDepthMap(r io.Reader) (*DepthMap, error) {
	magic := make([]byte, len(npyMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, err
	}
	if string(magic) != string(npyMagic) {
		return nil, errors.New("not a .npy file")
	}

	version := make([]byte, 2)
	if _, err := io.ReadFull(r, version); err != nil {
		return nil, err
	}
	if version[0] != 1 {
		return nil, errors.Errorf("unsupported .npy version %d.%d", version[0], version[1])
	}

	var headerLen uint16
	if err := binary.Read(r, binary.LittleEndian, &headerLen); err != nil {
		return nil, err
	}
	headerBytes := make([]byte, headerLen)
	if _, err := io.ReadFull(r, headerBytes); err != nil {
		return nil, err
	}
	header := string(headerBytes)

	if !strings.Contains(header, "'descr': '<u2'") {
		return nil, errors.Errorf("unsupported .npy dtype in header %q", strings.TrimSpace(header))
	}
	if !strings.Contains(header, "'fortran_order': False") {
		return nil, errors.New("fortran order .npy not supported")
	}

	height, width, err := parseNPYShape(header)
	if err != nil {
		return nil, err
	}

	dm := NewEmptyDepthMap(width, height)
	buf := make([]byte, width*2)
	for y := 0; y < height; y++ {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, errors.Wrapf(err, "short .npy payload at row %d", y)
		}
		for x := 0; x < width; x++ {
			dm.Set(x, y, binary.LittleEndian.Uint16(buf[x*2:]))
		}
	}
	return dm, nil
}

// ParseNPYDepthMap reads a .npy depth map from fn.
func ParseNPYDepthMap(fn string) (*DepthMap, error) {
	//nolint:gosec
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck

	return ReadNPYDepthMap(bufio.NewReader(f))
}

func parseNPYShape(header string) (height, width int, err error) {
	open := strings.Index(header, "'shape': (")
	if open < 0 {
		return 0, 0, errors.New("no shape in .npy header")
	}
	rest := header[open+len("'shape': ("):]
	closeIdx := strings.Index(rest, ")")
	if closeIdx < 0 {
		return 0, 0, errors.New("malformed shape in .npy header")
	}

	parts := strings.Split(rest[:closeIdx], ",")
	dims := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		d, err := strconv.Atoi(p)
		if err != nil {
			return 0, 0, errors.Wrap(err, "malformed shape in .npy header")
		}
		dims = append(dims, d)
	}
	if len(dims) != 2 {
		return 0, 0, errors.Errorf("expected a 2-D array, got shape %v", dims)
	}
	if dims[0] <= 0 || dims[0] >= 100000 || dims[1] <= 0 || dims[1] >= 100000 {
		return 0, 0, errors.Errorf("bad width or height for depth map %v %v", dims[1], dims[0])
	}
	return dims[0], dims[1], nil
}

package camera

import (
	"fmt"

	"gocv.io/x/gocv"
)

// ToMat wraps a frame in a new OpenCV matrix. The caller must Close it.
func ToMat(f Frame) (gocv.Mat, error) {
	if f.Empty() {
		return gocv.NewMat(), fmt.Errorf("camera: empty frame")
	}

	mt := gocv.MatTypeCV8UC3
	if f.Format == FormatGray8 {
		mt = gocv.MatTypeCV8UC1
	}

	want := f.Width * f.Height * f.Format.Channels()
	if len(f.Data) != want {
		return gocv.NewMat(), fmt.Errorf("camera: frame has %d bytes, want %d", len(f.Data), want)
	}

	return gocv.NewMatFromBytes(f.Height, f.Width, mt, f.Data)
}

// EncodeJPEG compresses a frame for the dashboard.
func EncodeJPEG(f Frame, quality int) ([]byte, error) {
	mat, err := ToMat(f)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, mat, []int{int(gocv.IMWriteJpegQuality), quality})
	if err != nil {
		return nil, fmt.Errorf("camera: encode jpeg: %w", err)
	}
	defer buf.Close()

	// GetBytes aliases native memory that Close frees.
	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}

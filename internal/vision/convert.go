package vision

import (
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

var ErrEmptyFrame = errors.New("empty frame")

// DecodeFrame decodes an encoded image (JPEG, PNG) into an image.Image.
func DecodeFrame(buf []byte) (image.Image, error) {
	if len(buf) == 0 {
		return nil, ErrEmptyFrame
	}
	mat, err := gocv.IMDecode(buf, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	defer mat.Close()
	if mat.Empty() {
		return nil, ErrEmptyFrame
	}
	return mat.ToImage()
}

// toMat converts img to a BGR Mat. The caller owns the returned Mat.
func toMat(img image.Image) (gocv.Mat, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("convert image: %w", err)
	}
	return mat, nil
}

func fromMat(mat gocv.Mat) (image.Image, error) {
	if mat.Empty() {
		return nil, ErrEmptyFrame
	}
	return mat.ToImage()
}

// SaveImage writes img to path, the encoding chosen by the file extension.
func SaveImage(path string, img image.Image) error {
	mat, err := toMat(img)
	if err != nil {
		return err
	}
	defer mat.Close()
	if !gocv.IMWrite(path, mat) {
		return fmt.Errorf("write image file %s error", path)
	}
	return nil
}

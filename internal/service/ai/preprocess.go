package ai

import (
	"fmt"
	"image"

	"fractureapi/internal/model"

	"gocv.io/x/gocv"
)

// ImageNet channel means in BGR order, applied by the ResNet family's
// "caffe" style input normalisation.
var resnetMeanBGR = [3]float32{103.939, 116.779, 123.68}

// Preprocessor turns uploaded bytes into network input tensors.
type Preprocessor struct{}

// PreprocessFracture decodes raw as grayscale and builds the feature
// network input: 224x224, replicated to three channels, scaled to [0,1] and
// then mean-shifted per BGR channel. The result has shape (1,224,224,3).
func (Preprocessor) PreprocessFracture(raw []byte) (model.Tensor, error) {
	gray, err := decode(raw, gocv.IMReadGrayScale)
	if err != nil {
		return model.Tensor{}, err
	}
	defer gray.Close()

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(gray, &resized, image.Pt(model.InputSize, model.InputSize), 0, 0, gocv.InterpolationLinear)

	rgb := gocv.NewMat()
	defer rgb.Close()
	if err := gocv.CvtColor(resized, &rgb, gocv.ColorGrayToBGR); err != nil {
		return model.Tensor{}, fmt.Errorf("failed to expand grayscale image: %v", err)
	}

	pixels, err := hwcBytes(rgb)
	if err != nil {
		return model.Tensor{}, err
	}
	return fractureTensor(pixels), nil
}

// PreprocessDetector decodes raw as colour and builds the detector input:
// RGB order, 224x224, scaled to [0,1]. The result has shape (1,224,224,3).
func (Preprocessor) PreprocessDetector(raw []byte) (model.Tensor, error) {
	bgr, err := decode(raw, gocv.IMReadColor)
	if err != nil {
		return model.Tensor{}, err
	}
	defer bgr.Close()

	rgb := gocv.NewMat()
	defer rgb.Close()
	if err := gocv.CvtColor(bgr, &rgb, gocv.ColorBGRToRGB); err != nil {
		return model.Tensor{}, fmt.Errorf("failed to convert image to RGB: %v", err)
	}

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(rgb, &resized, image.Pt(model.InputSize, model.InputSize), 0, 0, gocv.InterpolationLinear)

	pixels, err := hwcBytes(resized)
	if err != nil {
		return model.Tensor{}, err
	}
	return detectorTensor(pixels), nil
}

// decode wraps IMDecode so that every way of failing to get pixels out of
// raw ends up as model.ErrInvalidImage.
func decode(raw []byte, flags gocv.IMReadFlag) (gocv.Mat, error) {
	if len(raw) == 0 {
		return gocv.Mat{}, model.ErrInvalidImage
	}

	mat, err := gocv.IMDecode(raw, flags)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("%w: %v", model.ErrInvalidImage, err)
	}
	if mat.Empty() {
		mat.Close()
		return gocv.Mat{}, model.ErrInvalidImage
	}
	return mat, nil
}

func hwcBytes(mat gocv.Mat) ([]byte, error) {
	want := model.InputSize * model.InputSize * 3
	if mat.Rows() != model.InputSize || mat.Cols() != model.InputSize || mat.Channels() != 3 {
		return nil, fmt.Errorf("resized image is %dx%dx%d, expected %dx%dx3",
			mat.Rows(), mat.Cols(), mat.Channels(), model.InputSize, model.InputSize)
	}
	pixels := mat.ToBytes()
	if len(pixels) != want {
		return nil, fmt.Errorf("resized image holds %d bytes, expected %d", len(pixels), want)
	}
	return pixels, nil
}

// fractureTensor expects interleaved 3-channel pixels in RGB order.
func fractureTensor(pixels []byte) model.Tensor {
	data := make([]float32, len(pixels))
	for i := 0; i < len(pixels); i += 3 {
		// RGB -> BGR, then subtract the channel mean.
		for c := 0; c < 3; c++ {
			data[i+c] = float32(pixels[i+2-c])/255.0 - resnetMeanBGR[c]
		}
	}
	return model.Tensor{Shape: model.ImageShape(), Data: data}
}

func detectorTensor(pixels []byte) model.Tensor {
	data := make([]float32, len(pixels))
	for i, p := range pixels {
		data[i] = float32(p) / 255.0
	}
	return model.Tensor{Shape: model.ImageShape(), Data: data}
}
